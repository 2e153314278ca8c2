// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package secrets

import (
	"sort"
	"strings"

	"github.com/spf13/viper"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

const scheme = "keyring://"

// Ref names one secret in a Store.
type Ref struct {
	Service string
	Key     string
}

func (r Ref) String() string { return scheme + r.Service + "/" + r.Key }

// IsRef reports whether value is a keyring:// reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, scheme)
}

// ParseRef parses keyring://service/key. The key may contain slashes.
func ParseRef(value string) (Ref, error) {
	if !IsRef(value) {
		return Ref{}, syerr.Errorf(syerr.CodeSecretInvalidInput, "not a keyring reference: %q", value)
	}
	service, key, ok := strings.Cut(strings.TrimPrefix(value, scheme), "/")
	if !ok || service == "" || key == "" {
		return Ref{}, syerr.Errorf(syerr.CodeSecretInvalidInput,
			"invalid keyring reference %q: want keyring://service/key", value)
	}
	return Ref{Service: service, Key: key}, nil
}

// Resolver replaces keyring references with their secret values.
type Resolver struct {
	store Store
}

// NewResolver returns a Resolver reading from store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the secret value references, or value itself when it
// is not a reference.
func (r *Resolver) Resolve(value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	ref, err := ParseRef(value)
	if err != nil {
		return "", err
	}
	secret, err := r.store.Get(ref.Service, ref.Key)
	if err != nil {
		return "", syerr.Wrapf(err, syerr.CodeSecretResolveFailure, "resolving %s", ref)
	}
	return secret, nil
}

// ResolveConfig rewrites every keyring reference in v in place. Keys that
// fail keep their reference and are reported, sorted by key, so config
// validation can name them.
func (r *Resolver) ResolveConfig(v *viper.Viper) []error {
	keys := v.AllKeys()
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		val := v.GetString(key)
		if !IsRef(val) {
			continue
		}
		secret, err := r.Resolve(val)
		if err != nil {
			errs = append(errs, syerr.With(err, syerr.Field("config_key", key)))
			continue
		}
		v.Set(key, secret)
	}
	return errs
}
