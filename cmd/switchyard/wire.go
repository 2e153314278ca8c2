// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/backend"
	"github.com/switchyard-dev/switchyard/internal/config"
	"github.com/switchyard-dev/switchyard/internal/gate"
	"github.com/switchyard-dev/switchyard/internal/ledger"
	"github.com/switchyard-dev/switchyard/internal/metrics"
	"github.com/switchyard-dev/switchyard/internal/notify"
	"github.com/switchyard-dev/switchyard/internal/policy"
	"github.com/switchyard-dev/switchyard/internal/provider"
	anthropicprov "github.com/switchyard-dev/switchyard/internal/provider/anthropic"
	googleprov "github.com/switchyard-dev/switchyard/internal/provider/google"
	openaiprov "github.com/switchyard-dev/switchyard/internal/provider/openai"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/secrets"
	"github.com/switchyard-dev/switchyard/internal/server"
	"github.com/switchyard-dev/switchyard/internal/store"
	_ "github.com/switchyard-dev/switchyard/internal/store/memory" // register memory backend
	_ "github.com/switchyard-dev/switchyard/internal/store/sqlite" // register sqlite backend
	"github.com/switchyard-dev/switchyard/internal/telemetry"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// App holds every wired subsystem and owns their lifecycle.
type App struct {
	Server       *server.Server
	Store        store.Store
	Providers    *provider.Registry
	Orchestrator *agent.Orchestrator
	Gates        *gate.Machine
	Ledger       *ledger.Service

	closers  []io.Closer
	shutdown telemetry.Shutdown
}

// Wire builds the orchestrator and HTTP server from cfg. On error every
// resource opened so far is released.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	// 1. Tracing. Propagators are installed even when export is off.
	app.shutdown, err = telemetry.Init(ctx, telemetry.Config{
		Endpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure: cfg.Telemetry.Insecure,
		Version:  version,
	})
	if err != nil {
		return nil, err
	}

	// 2. Storage.
	if cfg.Storage.Backend == "sqlite" {
		if err = os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
			return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating data directory",
				syerr.Field("data_dir", cfg.Storage.DataDir))
		}
	}
	app.Store, err = store.Open(&store.StorageConfig{Backend: cfg.Storage.Backend, DataDir: cfg.Storage.DataDir})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "opening store")
	}
	app.closers = append(app.closers, app.Store)

	// 3. Side channels.
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}
	notifier := newNotifier(cfg.AMQP, logger)
	app.closers = append(app.closers, notifier)

	// 4. Gates and the run ledger share the ledger store and audit log.
	app.Gates = gate.NewMachine(app.Store.Ledger(),
		gate.WithAudit(app.Store.Audit()),
		gate.WithNotifier(notifier),
		gate.WithMetrics(m),
		gate.WithLogger(logger),
	)
	app.Ledger = ledger.New(app.Store.Ledger(),
		ledger.WithAudit(app.Store.Audit()),
		ledger.WithLogger(logger),
	)

	// 5. Registry and the capability backend.
	invoker, err := newInvoker(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Default()
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "building registry")
	}

	// 6. Policy.
	limiter, err := newLimiter(ctx, cfg, app.Store)
	if err != nil {
		return nil, err
	}
	if c, ok := limiter.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}
	enforcer := policy.NewEnforcer(reg, limiter,
		policy.WithWindow(cfg.Policy.Window),
		policy.WithAudit(app.Store.Audit()),
		policy.WithMetrics(m),
		policy.WithLogger(logger),
	)

	dispatcher, err := agent.NewDispatcher(agent.DispatcherConfig{
		Registry: reg,
		Enforcer: enforcer,
		Invoker:  invoker,
		Gates:    app.Gates,
		Ledger:   app.Ledger,
		Metrics:  m,
		Timeout:  cfg.Agent.ToolTimeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating dispatcher")
	}

	// 7. Reasoning providers.
	app.Providers, err = newProviderRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, app.Providers)

	// 8. Orchestrator.
	app.Orchestrator, err = agent.New(agent.Config{
		Registry:      reg,
		Providers:     app.Providers,
		Dispatcher:    dispatcher,
		Conversations: agent.NewConversationManager(app.Store.Conversations(), cfg.Agent.HistoryWindow),
		Ledger:        app.Ledger,
		Gates:         app.Gates,
		Metrics:       m,
		MaxRounds:     cfg.Agent.MaxRounds,
		Logger:        logger,
	})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating orchestrator")
	}

	// 9. HTTP server.
	services, err := server.NewServices(app.Orchestrator, app.Gates, app.Ledger, app.Store.Audit(), app.Providers)
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating services")
	}
	app.Server, err = server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Networking.RateLimit.RequestsPerSecond,
			Burst:             cfg.Networking.RateLimit.Burst,
		},
		Metrics: cfg.Metrics.Enabled,
		Logger:  logger,
	})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating server")
	}
	app.Server.RegisterServices(services)

	return app, nil
}

// Start runs the HTTP server until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	if a.Server != nil {
		a.Server.Close()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.shutdown = nil
	return errors.Join(errs...)
}

// newNotifier connects to AMQP when configured. Gate events are
// best-effort, so a broker that is down at startup only costs events.
func newNotifier(cfg config.AMQPConfig, logger *slog.Logger) notify.Notifier {
	if cfg.URL == "" {
		return notify.Nop{}
	}
	pub, err := notify.NewAMQPPublisher(notify.AMQPConfig{URL: cfg.URL, Exchange: cfg.Exchange})
	if err != nil {
		logger.Warn("amqp unavailable, gate events disabled", "error", err)
		return notify.Nop{}
	}
	return pub
}

// newInvoker returns the HTTP backend invoker, or an empty function table
// when no backend is configured. Every execution then fails as a
// collaborator error, which keeps read-only demos and policy checks usable.
func newInvoker(cfg config.BackendConfig, logger *slog.Logger) (registry.Invoker, error) {
	if cfg.BaseURL == "" {
		logger.Warn("backend.base_url not set, tool executions will fail")
		return registry.NewFuncTable(), nil
	}
	inv, err := backend.NewHTTPInvoker(backend.Config{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "creating backend invoker")
	}
	return inv, nil
}

func newLimiter(ctx context.Context, cfg *config.Config, st store.Store) (policy.Limiter, error) {
	switch cfg.Policy.Limiter {
	case "memory":
		return policy.NewMemoryLimiter(), nil
	case "redis":
		l, err := policy.NewRedisLimiter(ctx, policy.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, "connecting rate limiter")
		}
		return l, nil
	default:
		return policy.NewCounterLimiter(st.Counters(), nil), nil
	}
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject fakes.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openai": func(pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
}

func newProviderRegistry(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	registerBuiltinProviders(cfg, reg, logger)

	fail := func(err error, msg string) (*provider.Registry, error) {
		_ = reg.Close()
		return nil, syerr.Wrap(err, syerr.CodeCLISetupFailure, msg)
	}
	if err := reg.SetDefault(cfg.Models.Default); err != nil {
		return fail(err, "setting default model")
	}
	if len(cfg.Models.Failover) > 0 {
		if err := reg.SetFailover(cfg.Models.Failover); err != nil {
			return fail(err, "setting failover chain")
		}
	}
	for role, ref := range cfg.Models.Roles {
		if err := reg.SetRoleOverride(role, ref); err != nil {
			return fail(err, "setting role model for "+role)
		}
	}
	return reg, nil
}

// registerBuiltinProviders registers every configured provider with a
// usable key. Missing keys and unresolved keyring references are logged
// and skipped; routing to a skipped provider then fails at SetDefault.
func registerBuiltinProviders(cfg *config.Config, reg *provider.Registry, logger *slog.Logger) {
	for name, pc := range cfg.Providers {
		if pc.APIKey == "" || secrets.IsRef(pc.APIKey) {
			logger.Warn("skipping provider without api key", "provider", name)
			continue
		}
		factory, ok := builtinProviderFactories[name]
		if !ok {
			logger.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(pc)
		if err != nil {
			logger.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		logger.Info("registered provider", "provider", name)
	}
}
