// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Command openapi-gen writes the OpenAPI document huma derives from the
// switchyard route types.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/gate"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/server"
	"github.com/switchyard-dev/switchyard/internal/store"
	"github.com/switchyard-dev/switchyard/internal/store/memory"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec registers every route against throwaway services and
// returns the resulting document. Handlers are never invoked.
func generateSpec() ([]byte, error) {
	st := memory.New()
	defer func() { _ = st.Close() }()

	svc, err := server.NewServices(
		stubTurns{},
		gate.NewMachine(st.Ledger()),
		ledger.New(st.Ledger()),
		st.Audit(),
		stubProviders{},
	)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating server")
	}
	defer srv.Close()
	srv.RegisterServices(svc)

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

type stubTurns struct{}

func (stubTurns) HandleTurn(context.Context, agent.TurnRequest) (*agent.TurnResult, error) {
	return nil, nil
}

func (stubTurns) Resume(context.Context, string, store.GateDecision, string) (*agent.TurnResult, error) {
	return nil, nil
}

func (stubTurns) ExecuteTool(context.Context, agent.ExecuteRequest) (*agent.TurnResult, error) {
	return nil, nil
}

func (stubTurns) AvailableTools(string) ([]registry.ToolSpec, error) { return nil, nil }

type stubProviders struct{}

func (stubProviders) Statuses(context.Context) []provider.ProviderStatus { return nil }
