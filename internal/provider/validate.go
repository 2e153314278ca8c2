// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package provider

import (
	"context"
	"io"
	"net/http"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// ProviderName identifies a supported LLM provider for key validation.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderGoogle    ProviderName = "google"
)

// modelsEndpoint returns the default models URL for p.
func modelsEndpoint(p ProviderName, key string) (string, bool) {
	switch p {
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1/models", true
	case ProviderOpenAI:
		return "https://api.openai.com/v1/models", true
	case ProviderGoogle:
		// Google authenticates this endpoint by query parameter only.
		return "https://generativelanguage.googleapis.com/v1/models?key=" + key, true
	default:
		return "", false
	}
}

// ValidateKey makes a lightweight call to the provider's models endpoint
// to confirm the API key is accepted.
func ValidateKey(ctx context.Context, client *http.Client, p ProviderName, key string) error {
	return ValidateKeyWithURL(ctx, client, p, key, "")
}

// ValidateKeyWithURL is ValidateKey against an explicit endpoint; an empty
// url uses the provider default.
func ValidateKeyWithURL(ctx context.Context, client *http.Client, p ProviderName, key, url string) error {
	defaultURL, ok := modelsEndpoint(p, key)
	if !ok {
		return syerr.Errorf(syerr.CodeProviderRequestInvalid, "unknown provider: %s", p)
	}
	if url == "" {
		url = defaultURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return syerr.Wrapf(err, syerr.CodeProviderKeyCheckFailed, "building %s validation request", p)
	}
	switch p {
	case ProviderAnthropic:
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", "2023-06-01")
	case ProviderOpenAI:
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := client.Do(req)
	if err != nil {
		return syerr.Wrapf(err, syerr.CodeProviderKeyCheckFailed, "validating %s key", p)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return syerr.Errorf(syerr.CodeProviderKeyInvalid, "invalid %s API key (HTTP %d)", p, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return syerr.Errorf(syerr.CodeProviderKeyCheckFailed, "%s validation failed (HTTP %d)", p, resp.StatusCode)
	}
	return nil
}
