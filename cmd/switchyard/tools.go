// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/switchyard-dev/switchyard/internal/registry"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// actionRow is one bound action as printed by the tools command.
type actionRow struct {
	Domain           string   `json:"domain" yaml:"domain"`
	Action           string   `json:"action" yaml:"action"`
	Tier             string   `json:"tier" yaml:"tier"`
	RequiresApproval bool     `json:"requires_approval" yaml:"requires_approval"`
	RateLimit        int      `json:"rate_limit" yaml:"rate_limit"`
	Target           string   `json:"target" yaml:"target"`
	Roles            []string `json:"roles" yaml:"roles"`
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the action catalogue and its policies",
		Long:  "List every bound action with its risk tier, approval requirement and rate limit.\nWith --role, only domains visible to that role are shown.",
		Args:  cobra.NoArgs,
		RunE:  runTools,
	}
	cmd.Flags().String("role", "", "only show actions visible to this role")
	cmd.Flags().StringP("output", "o", "table", "output format (table, json or yaml)")
	return cmd
}

func runTools(cmd *cobra.Command, _ []string) error {
	roleName, _ := cmd.Flags().GetString("role")
	format, _ := cmd.Flags().GetString("output")

	reg, err := registry.Default()
	if err != nil {
		return err
	}
	defs := reg.Definitions()
	if roleName != "" {
		role, err := registry.ParseRole(roleName)
		if err != nil {
			return err
		}
		defs = reg.ListForRole(role)
	}

	rows := catalogueRows(reg, defs)
	return writeRows(cmd.OutOrStdout(), format, rows)
}

func catalogueRows(reg *registry.Registry, defs []registry.RouterDefinition) []actionRow {
	var rows []actionRow
	for _, def := range defs {
		roles := make([]string, len(def.Roles))
		for i, r := range def.Roles {
			roles[i] = string(r)
		}
		for _, b := range reg.Bindings(def.Domain) {
			rows = append(rows, actionRow{
				Domain:           b.Domain,
				Action:           b.Action,
				Tier:             string(b.Policy.Tier),
				RequiresApproval: b.Policy.RequiresApproval,
				RateLimit:        b.Policy.RateLimit,
				Target:           b.Target.String(),
				Roles:            roles,
			})
		}
	}
	return rows
}

func writeRows(w io.Writer, format string, rows []actionRow) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "DOMAIN\tACTION\tTIER\tAPPROVAL\tRATE\tROLES")
		for _, r := range rows {
			approval := "-"
			if r.RequiresApproval {
				approval = "required"
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.Domain, r.Action, r.Tier, approval, r.RateLimit, strings.Join(r.Roles, ","))
		}
		return tw.Flush()
	default:
		return syerr.Errorf(syerr.CodeCLIInputInvalid, "unknown output format %q (want table, json or yaml)", format)
	}
}
