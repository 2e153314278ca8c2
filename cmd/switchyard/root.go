// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/switchyard-dev/switchyard/internal/config"
	"github.com/switchyard-dev/switchyard/internal/secrets"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	v *viper.Viper
}

// NewRootCmd creates the root switchyard command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "switchyard",
		Short:         "Switchyard, an agent action orchestrator",
		Long:          "Switchyard routes agent tool calls through role scoping, risk tiers, rate limits and human approval gates.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.initViper(cmd)
		},
	}

	// Global flags map to viper keys in initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().String("log-format", "", "log format (text or json)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newServeCmd(c),
		newToolsCmd(),
		newValidateCmd(c),
		newSecretCmd(),
		newVersionCmd(),
	)
	return root
}

// initViper builds a fresh viper with defaults, environment overrides, an
// optional config file and flag bindings, so precedence is
// flag > env > file > defaults.
func (c *cli) initViper(cmd *cobra.Command) error {
	v := config.NewViper()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}
	} else {
		v.SetConfigName("switchyard")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/switchyard")
		v.AddConfigPath("/etc/switchyard")
		// A missing file is fine; parse and permission errors are not.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return syerr.Wrap(err, syerr.CodeConfigLoadReadFailure, "reading config")
			}
		}
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"storage.data_dir": "data-dir",
		"logging.format":   "log-format",
	} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return syerr.Wrapf(err, syerr.CodeCLISetupFailure, "binding %s flag", flag)
			}
		}
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		v.Set("logging.level", "debug")
	}

	c.v = v
	return nil
}

// secretStoreFactory returns the secrets.Store used to resolve keyring
// references and by the secret command. Tests replace it.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

// loadConfig resolves keyring references and validates the merged
// configuration.
func (c *cli) loadConfig() (*config.Config, error) {
	return config.FromViper(c.v, secrets.NewResolver(secretStoreFactory()))
}

// newLogger builds the process logger from logging.*.
func newLogger(w io.Writer, cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
