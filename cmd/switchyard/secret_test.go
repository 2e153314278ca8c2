// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/switchyard-dev/switchyard/internal/secrets"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

// mockSecretStore is an in-memory secrets.Store.
type mockSecretStore struct {
	data map[string]string // key -> value; the service is always switchyard
}

func newMockSecretStore(data map[string]string) *mockSecretStore {
	m := &mockSecretStore{data: map[string]string{}}
	for k, v := range data {
		m.data[k] = v
	}
	return m
}

func (m *mockSecretStore) Set(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Get(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", syerr.Errorf(syerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return syerr.Errorf(syerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func withSecretStore(t *testing.T, s secrets.Store) {
	t.Helper()
	old := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return s }
	t.Cleanup(func() { secretStoreFactory = old })
}

func TestSecretSet(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"stdin", "sk-from-stdin\n", []string{"secret", "set", "anthropic"}, "sk-from-stdin"},
		{"stdin without newline", "sk-bare", []string{"secret", "set", "anthropic"}, "sk-bare"},
		{"crlf", "sk-crlf\r\n", []string{"secret", "set", "anthropic"}, "sk-crlf"},
		{"flag", "", []string{"secret", "set", "anthropic", "--value", "sk-flag"}, "sk-flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockSecretStore(nil)
			withSecretStore(t, store)

			out, err := execute(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.data["anthropic"])
			assert.Contains(t, out, "keyring://switchyard/anthropic")
			assert.NotContains(t, out, tt.want)
		})
	}
}

func TestSecretSet_EmptyValue(t *testing.T) {
	withSecretStore(t, newMockSecretStore(nil))

	for _, stdin := range []string{"", "\n"} {
		_, err := execute(t, stdin, "secret", "set", "anthropic")
		require.Error(t, err)
		assert.True(t, syerr.HasCode(err, syerr.CodeCLIInputInvalid))
	}
}

func TestSecretCheck(t *testing.T) {
	withSecretStore(t, newMockSecretStore(map[string]string{"anthropic": "sk-secret"}))

	out, err := execute(t, "", "secret", "check", "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "anthropic: set\n", out)

	out, err = execute(t, "", "secret", "check", "openai")
	require.NoError(t, err)
	assert.Equal(t, "openai: not set\n", out)
}

func TestSecretDelete(t *testing.T) {
	store := newMockSecretStore(map[string]string{"anthropic": "sk-secret"})
	withSecretStore(t, store)

	out, err := execute(t, "", "secret", "delete", "anthropic")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret: anthropic")
	assert.Empty(t, store.data)

	_, err = execute(t, "", "secret", "delete", "anthropic")
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeSecretNotFound))
}

func TestSecret_KeyringRoundTrip(t *testing.T) {
	// The default factory talks to the (mocked) OS keyring.
	_, err := execute(t, "", "secret", "set", "openai", "--value", "sk-real")
	require.NoError(t, err)

	got, err := secrets.NewKeyringStore().Get(secrets.DefaultService, "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-real", got)

	_, err = execute(t, "", "secret", "delete", "openai")
	require.NoError(t, err)
}

func TestSecretCommand_RequiresName(t *testing.T) {
	for _, sub := range []string{"set", "check", "delete"} {
		_, err := execute(t, "", "secret", sub)
		assert.Error(t, err, sub)
	}
}
