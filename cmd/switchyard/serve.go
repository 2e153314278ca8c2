// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/switchyard-dev/switchyard/internal/config"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f := cmd.Flags().Lookup("listen"); f.Changed {
				if err := c.v.BindPFlag("networking.listen", f); err != nil {
					return syerr.Wrap(err, syerr.CodeCLISetupFailure, "binding listen flag")
				}
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Logging)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			config.WarnInsecurePermissions(logger, c.v.ConfigFileUsed())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().String("listen", "", "listen address (overrides networking.listen)")
	return cmd
}

// serve wires the application and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	app, err := Wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	logger.Info("switchyard starting",
		"version", version,
		"listen", cfg.Networking.Listen,
		"storage", cfg.Storage.Backend,
		"limiter", cfg.Policy.Limiter,
		"default_model", cfg.Models.Default,
	)
	return app.Start(ctx)
}
