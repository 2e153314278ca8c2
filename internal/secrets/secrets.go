// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package secrets keeps provider keys and backend tokens out of config
// files. Config values may reference a secret as keyring://service/key.
package secrets

import (
	"errors"

	"github.com/zalando/go-keyring"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// DefaultService is the keyring service switchyard stores its own secrets
// under.
const DefaultService = "switchyard"

// Store reads and writes named secrets.
type Store interface {
	Set(service, key, value string) error
	// Get returns CodeSecretNotFound for a missing key.
	Get(service, key string) (string, error)
	Delete(service, key string) error
}

// KeyringStore is a Store over the OS keyring (Keychain, secret-service or
// Credential Manager).
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore { return &KeyringStore{} }

func checkName(op, service, key string) error {
	if service == "" || key == "" {
		return syerr.New(syerr.CodeSecretInvalidInput, op+": service and key are required",
			syerr.Field("service", service), syerr.Field("key", key))
	}
	return nil
}

func (KeyringStore) Set(service, key, value string) error {
	if err := checkName("secret set", service, key); err != nil {
		return err
	}
	if value == "" {
		return syerr.New(syerr.CodeSecretInvalidInput, "secret set: value is empty",
			syerr.Field("service", service), syerr.Field("key", key))
	}
	if err := keyring.Set(service, key, value); err != nil {
		return syerr.Wrapf(err, syerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return nil
}

func (KeyringStore) Get(service, key string) (string, error) {
	if err := checkName("secret get", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", syerr.Errorf(syerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", syerr.Wrapf(err, syerr.CodeSecretStoreFailure, "reading secret %s/%s", service, key)
	}
	return val, nil
}

func (KeyringStore) Delete(service, key string) error {
	if err := checkName("secret delete", service, key); err != nil {
		return err
	}
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return syerr.Errorf(syerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return syerr.Wrapf(err, syerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return nil
}
