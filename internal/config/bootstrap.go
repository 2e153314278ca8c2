// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

//go:embed switchyard.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/switchyard/switchyard.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", syerr.Wrap(err, syerr.CodeConfigLoadReadFailure, "resolving home directory")
	}
	return filepath.Join(home, ".config", "switchyard", "switchyard.yaml"), nil
}

// WriteDefault writes the commented default config to path with 0600
// permissions. It reports false when a file already exists there.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, syerr.Wrap(err, syerr.CodeConfigLoadReadFailure, "checking config path", syerr.Field("path", path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, syerr.Wrap(err, syerr.CodeConfigLoadReadFailure, "creating config directory", syerr.Field("path", path))
	}
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return false, syerr.Wrap(err, syerr.CodeConfigLoadReadFailure, "writing config", syerr.Field("path", path))
	}
	return true, nil
}
