// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

//go:build !windows

package config

import (
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file at path is
// readable by group or others, since it may hold provider keys. It reports
// whether a warning was logged.
func WarnInsecurePermissions(logger *slog.Logger, path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("could not stat config file for permission check", "path", path, "error", err)
		return false
	}
	if info.Mode().Perm()&0o044 == 0 {
		return false
	}
	logger.Warn("config file is readable by other users and may expose provider keys",
		"path", path, "mode", info.Mode().Perm(), "recommended", "0600")
	return true
}
