// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package telemetry configures OpenTelemetry tracing.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "switchyard"

// Shutdown flushes and stops the tracer provider.
type Shutdown func(ctx context.Context) error

// Config selects the OTLP/HTTP collector. An empty Endpoint disables
// export and leaves the global no-op provider in place.
type Config struct {
	Endpoint string
	Insecure bool
	Version  string
}

// Init installs the global tracer provider and W3C propagators.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	// Propagation is useful even without export: backend calls carry the
	// caller's traceparent through.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", cfg.Version),
	))
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeTelemetrySetupFailure, "creating telemetry resource")
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeTelemetrySetupFailure, "creating trace exporter",
			syerr.Field("endpoint", cfg.Endpoint))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return syerr.Wrap(err, syerr.CodeTelemetrySetupFailure, "shutting down tracer provider")
		}
		return nil
	}, nil
}
