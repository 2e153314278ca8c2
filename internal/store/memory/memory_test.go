// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/store"
	"github.com/switchyard-dev/switchyard/internal/store/memory"
	"github.com/switchyard-dev/switchyard/internal/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	run := storetest.SeedRun(t, s, "r1")

	run.Planning = map[string]any{"model": "a"}
	require.NoError(t, s.Ledger().UpdateRun(ctx, run))
	run.Planning["model"] = "mutated"

	got, err := s.Ledger().GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Planning["model"])
}

func TestMemoryBackendRegistered(t *testing.T) {
	s, err := store.Open(&store.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.NoError(t, s.Close())
	assert.Contains(t, store.Backends(), "memory")

	_, err = store.Open(&store.StorageConfig{Backend: "etcd"})
	assert.ErrorContains(t, err, "etcd")
}
