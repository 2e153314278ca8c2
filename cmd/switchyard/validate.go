// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/secrets"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Key checks use these; tests point them at a mock server.
var (
	keyCheckClient = &http.Client{Timeout: 10 * time.Second}
	keyCheckURLs   = map[string]string{}
)

func newValidateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the action catalogue",
		Long: "Load and validate the configuration, then self-check the action catalogue.\n" +
			"With --check-keys, each configured provider key is tried against the provider's models endpoint.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			source := c.v.ConfigFileUsed()
			if source == "" {
				source = "defaults and environment"
			}
			_, _ = fmt.Fprintf(out, "config: ok (%s)\n", source)

			reg, err := registry.Default()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "catalogue: ok (%d domains, %d actions)\n", len(reg.Definitions()), reg.Len())

			if check, _ := cmd.Flags().GetBool("check-keys"); !check {
				return nil
			}

			names := make([]string, 0, len(cfg.Providers))
			for name := range cfg.Providers {
				names = append(names, name)
			}
			sort.Strings(names)

			failed := 0
			for _, name := range names {
				key := cfg.Providers[name].APIKey
				var err error
				switch {
				case key == "":
					err = syerr.New(syerr.CodeConfigValidateInvalidValue, "no api_key configured")
				case secrets.IsRef(key):
					err = syerr.New(syerr.CodeSecretResolveFailure, "keyring reference "+key+" did not resolve")
				default:
					err = provider.ValidateKeyWithURL(cmd.Context(), keyCheckClient,
						provider.ProviderName(name), key, keyCheckURLs[name])
				}
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(out, "provider %s: FAIL %v\n", name, err)
					continue
				}
				_, _ = fmt.Fprintf(out, "provider %s: ok\n", name)
			}
			if failed > 0 {
				return syerr.Errorf(syerr.CodeConfigValidateInvalidValue, "%d provider key check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().Bool("check-keys", false, "verify provider API keys with a live request")
	return cmd
}
