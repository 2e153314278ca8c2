// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/config"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeConfigFile writes body to a switchyard.yaml in a temp dir.
func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "switchyard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "tools", "validate", "secret", "init", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	out, err := execute(t, "", "--verbose", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--config")
	assert.Contains(t, out, "--data-dir")
	assert.Contains(t, out, "--log-format")
	assert.Contains(t, out, "--verbose")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "switchyard dev")
	assert.Contains(t, out, "commit: unknown")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	_, err := execute(t, "", "validate", "--config", "/nonexistent/switchyard.yaml")
	require.Error(t, err)
	assert.True(t, syerr.HasCode(err, syerr.CodeConfigLoadReadFailure))
}

func TestRootCommand_MalformedConfigFile(t *testing.T) {
	path := writeConfigFile(t, "agent: [unclosed\n")
	_, err := execute(t, "", "validate", "--config", path)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		check   func(t *testing.T, out string)
		wantErr bool
	}{
		{
			name: "text",
			cfg:  config.LoggingConfig{Format: "text", Level: "info"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=hello")
				assert.NotContains(t, out, "hidden")
			},
		},
		{
			name: "json",
			cfg:  config.LoggingConfig{Format: "json", Level: "debug"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, `"msg":"hello"`)
				assert.Contains(t, out, `"msg":"hidden"`)
			},
		},
		{
			name:    "bad level",
			cfg:     config.LoggingConfig{Format: "text", Level: "loud"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Debug("hidden")
			logger.Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestNewLogger_Level(t *testing.T) {
	logger, err := newLogger(new(bytes.Buffer), config.LoggingConfig{Format: "text", Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
}
