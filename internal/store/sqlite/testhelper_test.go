// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/store/sqlite"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

// openTestStore opens a fresh store and closes it when the test ends.
func openTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(testDBPath(t, "switchyard"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}
