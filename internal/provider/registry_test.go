// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/provider"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newRegistry(t *testing.T, providers ...*mockProvider) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	for _, p := range providers {
		require.NoError(t, reg.RegisterProvider(p.name, p))
	}
	return reg
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := newRegistry(t, newMockProvider("anthropic", true))

	got, err := reg.Get("anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", got.Name())

	_, err = reg.Get("nonexistent")
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderNotFound))

	err = reg.RegisterProvider("", nil)
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderRequestInvalid))
}

func TestRegistry_Route(t *testing.T) {
	reg := newRegistry(t, newMockProvider("anthropic", true), newMockProvider("openai", true))
	require.NoError(t, reg.SetDefault("anthropic/claude-sonnet-4-5"))
	require.NoError(t, reg.SetRoleOverride("admin", "openai/gpt-4.1"))

	tests := []struct {
		name         string
		role         string
		model        string
		wantProvider string
		wantModel    string
	}{
		{"default", "driver", "", "anthropic", "claude-sonnet-4-5"},
		{"explicit default keyword", "driver", "default", "anthropic", "claude-sonnet-4-5"},
		{"role override", "admin", "", "openai", "gpt-4.1"},
		{"explicit model beats override", "admin", "anthropic/claude-haiku-4-5", "anthropic", "claude-haiku-4-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, model, err := reg.Route(context.Background(), tt.role, tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, p.Name())
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestRegistry_RouteErrors(t *testing.T) {
	ctx := context.Background()

	reg := newRegistry(t, newMockProvider("anthropic", true))
	_, _, err := reg.Route(ctx, "driver", "")
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderNoDefault))

	_, _, err = reg.Route(ctx, "driver", "claude")
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderInvalidModelRef))

	assert.True(t, syerr.HasCode(reg.SetDefault("missing/model"), syerr.CodeProviderNotFound))
	assert.True(t, syerr.HasCode(reg.SetDefault("anthropic"), syerr.CodeProviderInvalidModelRef))
	assert.True(t, syerr.HasCode(reg.SetRoleOverride("driver", "missing/x"), syerr.CodeProviderNotFound))
	assert.True(t, syerr.HasCode(reg.SetFailover([]string{"missing/x"}), syerr.CodeProviderNotFound))
}

func TestRegistry_Failover(t *testing.T) {
	reg := newRegistry(t, newMockProvider("anthropic", false), newMockProvider("openai", true))
	require.NoError(t, reg.SetDefault("anthropic/claude-sonnet-4-5"))
	require.NoError(t, reg.SetFailover([]string{"openai/gpt-4.1"}))

	p, model, err := reg.Route(context.Background(), "driver", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-4.1", model)
	assert.Equal(t, 2, reg.MaxAttempts())
}

func TestRegistry_RouteExcluding(t *testing.T) {
	reg := newRegistry(t, newMockProvider("anthropic", true), newMockProvider("openai", true), newMockProvider("google", true))
	require.NoError(t, reg.SetDefault("anthropic/claude-sonnet-4-5"))
	require.NoError(t, reg.SetFailover([]string{"openai/gpt-4.1", "google/gemini-2.5-flash"}))
	ctx := context.Background()

	p, _, err := reg.RouteExcluding(ctx, "driver", "", []string{"anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, model, err := reg.RouteExcluding(ctx, "driver", "", []string{"anthropic", "openai"})
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, "gemini-2.5-flash", model)

	_, _, err = reg.RouteExcluding(ctx, "driver", "", []string{"anthropic", "openai", "google"})
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderAllUnavailable))
}

func TestRegistry_AllProvidersDown(t *testing.T) {
	reg := newRegistry(t, newMockProvider("anthropic", false), newMockProvider("openai", false))
	require.NoError(t, reg.SetDefault("anthropic/claude-sonnet-4-5"))
	require.NoError(t, reg.SetFailover([]string{"openai/gpt-4.1"}))

	_, _, err := reg.Route(context.Background(), "recruiter", "")
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderAllUnavailable))
}

func TestRegistry_CloseAndStatuses(t *testing.T) {
	a := newMockProvider("anthropic", true)
	o := newMockProvider("openai", false)
	o.closeErr = errors.New("boom")
	reg := newRegistry(t, o, a)

	statuses := reg.Statuses(context.Background())
	require.Len(t, statuses, 2)
	assert.Equal(t, "anthropic", statuses[0].Provider)
	assert.False(t, statuses[1].Available)
	assert.Equal(t, []string{"anthropic", "openai"}, reg.Names())

	err := reg.Close()
	require.Error(t, err)
	assert.True(t, a.closed)
	assert.True(t, o.closed)
}

func TestRegistry_ImplementsRouter(t *testing.T) {
	var _ provider.Router = provider.NewRegistry()
}
