// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/provider"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestValidateKey_Headers(t *testing.T) {
	tests := []struct {
		provider provider.ProviderName
		header   string
		want     string
	}{
		{provider.ProviderAnthropic, "x-api-key", "test-key"},
		{provider.ProviderOpenAI, "Authorization", "Bearer test-key"},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.want, r.Header.Get(tt.header))
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			err := provider.ValidateKeyWithURL(context.Background(), srv.Client(), tt.provider, "test-key", srv.URL+"/v1/models")
			require.NoError(t, err)
		})
	}
}

func TestValidateKey_Failures(t *testing.T) {
	tests := []struct {
		name       string
		provider   provider.ProviderName
		statusCode int
		wantCode   syerr.Code
	}{
		{"anthropic 401", provider.ProviderAnthropic, http.StatusUnauthorized, syerr.CodeProviderKeyInvalid},
		{"openai 403", provider.ProviderOpenAI, http.StatusForbidden, syerr.CodeProviderKeyInvalid},
		{"google 401", provider.ProviderGoogle, http.StatusUnauthorized, syerr.CodeProviderKeyInvalid},
		{"google 500", provider.ProviderGoogle, http.StatusInternalServerError, syerr.CodeProviderKeyCheckFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer srv.Close()

			err := provider.ValidateKeyWithURL(context.Background(), srv.Client(), tt.provider, "bad-key", srv.URL)
			require.Error(t, err)
			assert.True(t, syerr.HasCode(err, tt.wantCode), "got %s", syerr.CodeOf(err))
		})
	}
}

func TestValidateKey_UnknownProvider(t *testing.T) {
	err := provider.ValidateKeyWithURL(context.Background(), http.DefaultClient, "unknown", "key", "")
	require.Error(t, err)
	assert.True(t, syerr.IsInvalidInput(err))
}
