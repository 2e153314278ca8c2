// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestToolsCommand_JSONForRole(t *testing.T) {
	out, err := execute(t, "", "tools", "--role", "driver", "-o", "json")
	require.NoError(t, err)

	var rows []actionRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.NotEmpty(t, rows)

	domains := map[string]bool{}
	for _, r := range rows {
		domains[r.Domain] = true
		assert.Contains(t, r.Roles, "driver", "%s.%s", r.Domain, r.Action)
	}
	assert.True(t, domains["driver_road"])
	assert.True(t, domains["driver_tools"])
	assert.False(t, domains["recruiter_tools"])
}

func TestToolsCommand_YAMLAllRoles(t *testing.T) {
	out, err := execute(t, "", "tools", "--output", "yaml")
	require.NoError(t, err)

	var rows []actionRow
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))

	var found bool
	for _, r := range rows {
		if r.Domain == "recruiter_tools" && r.Action == "send_message" {
			found = true
			assert.Equal(t, "execute_high", r.Tier)
			assert.True(t, r.RequiresApproval)
			assert.Equal(t, 20, r.RateLimit)
			assert.Equal(t, "messaging.sendMessage", r.Target)
		}
	}
	assert.True(t, found, "send_message missing from catalogue")
}

func TestToolsCommand_Table(t *testing.T) {
	out, err := execute(t, "", "tools", "--role", "recruiter")
	require.NoError(t, err)
	assert.Contains(t, out, "DOMAIN")
	assert.Contains(t, out, "APPROVAL")
	assert.Contains(t, out, "send_message")
	assert.Contains(t, out, "required")
	assert.NotContains(t, out, "driver_road")
}

func TestToolsCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code syerr.Code
	}{
		{"unknown role", []string{"tools", "--role", "pilot"}, syerr.CodeAgentRoleInvalid},
		{"unknown format", []string{"tools", "-o", "xml"}, syerr.CodeCLIInputInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			require.Error(t, err)
			assert.True(t, syerr.HasCode(err, tt.code), "got %v", err)
		})
	}
}

const validConfigYAML = `
storage:
  backend: memory
policy:
  limiter: memory
providers:
  anthropic:
    api_key: sk-ant-good
  openai:
    api_key: sk-oai-bad
models:
  default: anthropic/claude-sonnet-4-5
  failover: [openai/gpt-4o]
`

func TestValidateCommand(t *testing.T) {
	path := writeConfigFile(t, validConfigYAML)
	out, err := execute(t, "", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "config: ok ("+path+")")
	assert.Contains(t, out, "catalogue: ok")
	assert.NotContains(t, out, "provider anthropic")
}

func TestValidateCommand_InvalidConfig(t *testing.T) {
	path := writeConfigFile(t, "agent:\n  max_rounds: 0\nstorage:\n  backend: floppy\n")
	_, err := execute(t, "", "validate", "--config", path)
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeConfigValidateInvalidValue))
	assert.Contains(t, err.Error(), "agent.max_rounds")
	assert.Contains(t, err.Error(), "storage.backend")
}

// keyServer accepts only the listed keys, via x-api-key or a bearer token.
func keyServer(t *testing.T, good ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("x-api-key")
		if key == "" {
			key = r.Header.Get("Authorization")
			if len(key) > len("Bearer ") {
				key = key[len("Bearer "):]
			}
		}
		for _, g := range good {
			if key == g {
				_, _ = w.Write([]byte(`{"data":[]}`))
				return
			}
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func withKeyCheckURLs(t *testing.T, urls map[string]string) {
	t.Helper()
	old := keyCheckURLs
	keyCheckURLs = urls
	t.Cleanup(func() { keyCheckURLs = old })
}

func TestValidateCommand_CheckKeys(t *testing.T) {
	srv := keyServer(t, "sk-ant-good")
	withKeyCheckURLs(t, map[string]string{
		"anthropic": srv.URL + "/v1/models",
		"openai":    srv.URL + "/v1/models",
	})

	path := writeConfigFile(t, validConfigYAML)
	out, err := execute(t, "", "validate", "--config", path, "--check-keys")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 provider key check(s) failed")
	assert.Contains(t, out, "provider anthropic: ok")
	assert.Contains(t, out, "provider openai: FAIL")
}

func TestValidateCommand_CheckKeysResolvesKeyring(t *testing.T) {
	srv := keyServer(t, "sk-from-keyring")
	withKeyCheckURLs(t, map[string]string{"anthropic": srv.URL + "/v1/models"})
	withSecretStore(t, newMockSecretStore(map[string]string{"anthropic": "sk-from-keyring"}))

	path := writeConfigFile(t, `
storage: {backend: memory}
policy: {limiter: memory}
providers:
  anthropic:
    api_key: keyring://switchyard/anthropic
  google:
    api_key: keyring://switchyard/google
models:
  default: anthropic/claude-sonnet-4-5
`)
	out, err := execute(t, "", "validate", "--config", path, "--check-keys")
	require.Error(t, err)
	assert.Contains(t, out, "provider anthropic: ok")
	assert.Contains(t, out, "provider google: FAIL")
	assert.Contains(t, out, "did not resolve")
}

func TestInitCommand(t *testing.T) {
	withSecretStore(t, newMockSecretStore(nil))
	path := filepath.Join(t.TempDir(), "nested", "switchyard.yaml")

	out, err := execute(t, "", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = execute(t, "", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	// The written file validates as-is.
	_, err = execute(t, "", "validate", "--config", path)
	require.NoError(t, err)
}
