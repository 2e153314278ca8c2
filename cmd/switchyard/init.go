// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/switchyard-dev/switchyard/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Long: "Write the default switchyard.yaml with 0600 permissions. An existing file is left untouched.\n" +
			"Store provider keys with `switchyard secret set <provider>` so the file only holds keyring references.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("path")
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}
			written, err := config.WriteDefault(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !written {
				_, err = fmt.Fprintf(out, "config already exists at %s\n", path)
				return err
			}
			_, err = fmt.Fprintf(out, "wrote %s\n", path)
			return err
		},
	}
	cmd.Flags().String("path", "", "destination (default ~/.config/switchyard/switchyard.yaml)")
	return cmd
}
