// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/switchyard-dev/switchyard/internal/secrets"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: "Store, check and delete secrets under the switchyard keyring service.\n" +
			"Reference a stored secret from config as keyring://switchyard/<name>.",
	}
	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretCheckCmd(),
		newSecretDeleteCmd(),
	)
	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (value from --value or the first line of stdin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
	cmd.Flags().String("value", "", "secret value; prefer stdin so it stays out of shell history")
	return cmd
}

func newSecretCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <name>",
		Short: "Report whether a secret is stored, without printing it",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretCheck,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	value, _ := cmd.Flags().GetString("value")
	if value == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return syerr.New(syerr.CodeCLIInputInvalid, "no secret value given on stdin or --value")
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return syerr.New(syerr.CodeCLIInputInvalid, "secret value must not be empty")
	}

	if err := secretStoreFactory().Set(secrets.DefaultService, name, value); err != nil {
		return err
	}
	ref := secrets.Ref{Service: secrets.DefaultService, Key: name}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Stored secret %s\nReference it in config as %s\n", name, ref)
	return err
}

func runSecretCheck(cmd *cobra.Command, args []string) error {
	name := args[0]
	_, err := secretStoreFactory().Get(secrets.DefaultService, name)
	switch {
	case syerr.HasCode(err, syerr.CodeSecretNotFound):
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: not set\n", name)
		return err
	case err != nil:
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: set\n", name)
	return err
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := secretStoreFactory().Delete(secrets.DefaultService, name); err != nil {
		if syerr.HasCode(err, syerr.CodeSecretNotFound) {
			return syerr.Errorf(syerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return syerr.Wrapf(err, syerr.CodeSecretDeleteFailure, "deleting secret %q", name)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return err
}
