// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package backend invokes platform capabilities over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/switchyard-dev/switchyard/internal/registry"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

const (
	// DefaultTimeout bounds one backend request when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// Config configures an HTTPInvoker.
type Config struct {
	BaseURL string
	// Token, when set, is sent as a bearer token.
	Token   string
	Timeout time.Duration
	Client  *http.Client
	Logger  *slog.Logger
}

// HTTPInvoker calls POST {base}/{service}/{function} with {"args": [...]}
// and expects {"result": ...} back.
type HTTPInvoker struct {
	base   *url.URL
	token  string
	client *http.Client
	logger *slog.Logger
}

var _ registry.Invoker = (*HTTPInvoker)(nil)

type invokeRequest struct {
	Args []any `json:"args"`
}

type invokeResponse struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// NewHTTPInvoker validates cfg and returns an invoker.
func NewHTTPInvoker(cfg Config) (*HTTPInvoker, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, syerr.New(syerr.CodeServerConfigInvalid, "backend base URL must be absolute",
			syerr.Field("base_url", cfg.BaseURL))
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPInvoker{base: base, token: cfg.Token, client: client, logger: logger}, nil
}

// Invoke implements registry.Invoker. The raw failure is kept in the error
// chain for logs; the dispatcher never shows it to callers.
func (h *HTTPInvoker) Invoke(ctx context.Context, target registry.Target, args []any) (any, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(invokeRequest{Args: args})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeToolInputInvalid, "encoding backend arguments",
			syerr.Field("target", target.String()))
	}

	endpoint := h.base.JoinPath(target.Service, target.Function).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeToolCollaboratorFailure, "building backend request",
			syerr.Field("target", target.String()))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeToolCollaboratorFailure, "calling backend",
			syerr.Field("target", target.String()))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeToolCollaboratorFailure, "reading backend response",
			syerr.Field("target", target.String()))
	}

	var out invokeResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("backend returned %d", resp.StatusCode)
		if decodeErr == nil && out.Error != "" {
			msg += ": " + out.Error
		}
		return nil, syerr.New(syerr.CodeToolCollaboratorFailure, msg,
			syerr.Field("target", target.String()), syerr.Field("status", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, syerr.Wrap(decodeErr, syerr.CodeToolCollaboratorFailure, "decoding backend response",
			syerr.Field("target", target.String()))
	}
	if out.Error != "" {
		return nil, syerr.New(syerr.CodeToolCollaboratorFailure, "backend error: "+out.Error,
			syerr.Field("target", target.String()))
	}

	h.logger.DebugContext(ctx, "backend call succeeded", "target", target.String(), "status", resp.StatusCode)
	return out.Result, nil
}
