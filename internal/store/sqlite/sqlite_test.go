// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/store"
	"github.com/switchyard-dev/switchyard/internal/store/sqlite"
	"github.com/switchyard-dev/switchyard/internal/store/storetest"
)

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTestStore(t) })
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t, "reopen")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	storetest.SeedRun(t, s, "r1")
	step := &store.Step{
		ID: "s1", RunID: "r1", Domain: "driver_road", Action: "find_matches",
		Outcome: store.StepOutcomeExecuted, CreatedAt: time.Now(),
	}
	require.NoError(t, s.Ledger().AppendStep(ctx, step))
	require.NoError(t, s.Close())

	s, err = sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	run, err := s.Ledger().GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusRunning, run.Status)

	steps, err := s.Ledger().ListSteps(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Seq)
}

func TestSQLiteBackendRegistered(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := store.Open(&store.StorageConfig{Backend: "sqlite", DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = os.Stat(filepath.Join(dir, "switchyard.db"))
	assert.NoError(t, err)
}

func TestSQLiteDefaultBackend(t *testing.T) {
	s, err := store.Open(&store.StorageConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.IsType(t, &sqlite.Store{}, s)
}

func TestSQLiteOpenFailsOnDirectoryPath(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "taken")
	require.NoError(t, os.Mkdir(dbPath, 0o755))

	_, err := sqlite.New(dbPath)
	assert.Error(t, err)
}
