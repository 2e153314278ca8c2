// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, which uses ACLs instead
// of mode bits.
func WarnInsecurePermissions(logger *slog.Logger, path string) bool {
	if path != "" {
		logger.Debug("config permission check not implemented on Windows", "path", path)
	}
	return false
}
