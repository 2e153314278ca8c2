// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package store

import (
	"errors"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Sentinel errors for store operations. Backends wrap them with a coded
// error so callers can use either errors.Is or the syerr predicates.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness or state-transition conflict.
	ErrConflict = errors.New("conflict")
)

// NotFound returns a coded not-found error for the named record.
func NotFound(kind, id string) error {
	return syerr.Wrapf(ErrNotFound, syerr.CodeStoreEntityNotFound, "%s %s", kind, id)
}

// Conflict returns a coded conflict error for the named record.
func Conflict(kind, id, detail string) error {
	return syerr.Wrapf(ErrConflict, syerr.CodeStoreConflict, "%s %s: %s", kind, id, detail)
}
