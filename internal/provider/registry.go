// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package provider

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Registry manages provider registration and routing with a default model,
// per-role overrides and an ordered failover chain. It implements Router.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider

	defaultRef string            // "provider/model"
	overrides  map[string]string // role → "provider/model"
	failover   []string
}

var _ Router = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		overrides: make(map[string]string),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// RegisterProvider adds a provider to the registry (Router interface).
func (r *Registry) RegisterProvider(name string, p Provider) error {
	if name == "" || p == nil {
		return syerr.New(syerr.CodeProviderRequestInvalid, "provider name and implementation are required")
	}
	r.Register(name, p)
	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, syerr.New(syerr.CodeProviderNotFound, "provider not found: "+name,
			syerr.FieldProvider(name))
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// caller holds r.mu.
func (r *Registry) requireRegistered(op, ref string) error {
	provName, model := parseRef(ref)
	if provName == "" || model == "" {
		return syerr.Errorf(syerr.CodeProviderInvalidModelRef,
			"%s: model ref %q must use provider/model format", op, ref)
	}
	if _, ok := r.providers[provName]; !ok {
		return syerr.New(syerr.CodeProviderNotFound, op+": provider not registered: "+provName,
			syerr.FieldProvider(provName))
	}
	return nil
}

// SetDefault sets the "provider/model" used when neither the caller nor a
// role override names one.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireRegistered("SetDefault", ref); err != nil {
		return err
	}
	r.defaultRef = ref
	return nil
}

// SetRoleOverride routes every turn for role to ref.
func (r *Registry) SetRoleOverride(role, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireRegistered("SetRoleOverride", ref); err != nil {
		return err
	}
	r.overrides[role] = ref
	return nil
}

// SetFailover sets the ordered failover chain of "provider/model" refs.
func (r *Registry) SetFailover(chain []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range chain {
		if err := r.requireRegistered("SetFailover", ref); err != nil {
			return err
		}
	}
	r.failover = append([]string(nil), chain...)
	return nil
}

// MaxAttempts returns 1 (primary) + len(failover chain) so the orchestrator
// caps provider retries to the number of configured candidates.
func (r *Registry) MaxAttempts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return 1 + len(r.failover)
}

// Route selects a provider for role and model. An empty model uses the
// role override, then the default.
func (r *Registry) Route(ctx context.Context, role, modelName string) (Provider, string, error) {
	return r.RouteExcluding(ctx, role, modelName, nil)
}

// RouteExcluding is Route that skips providers already tried in the current
// failover sequence, so failover progresses even while a failed provider
// still reports itself available.
func (r *Registry) RouteExcluding(ctx context.Context, role, modelName string, exclude []string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, err := r.resolveRef(role, modelName)
	if err != nil {
		return nil, "", err
	}
	if ref == "" {
		return nil, "", syerr.New(syerr.CodeProviderNoDefault, "no default provider configured")
	}

	for _, candidate := range append([]string{ref}, r.failover...) {
		provName, _ := parseRef(candidate)
		if slices.Contains(exclude, provName) {
			continue
		}
		if p, model, err := r.tryRef(ctx, candidate); err == nil {
			return p, model, nil
		}
	}

	return nil, "", syerr.New(syerr.CodeProviderAllUnavailable,
		"all providers unavailable: no healthy provider found", syerr.FieldRole(role))
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return syerr.Join(errs...)
	}
	return nil
}

// Statuses reports every registered provider's status, sorted by name.
func (r *Registry) Statuses(ctx context.Context) []ProviderStatus {
	names := r.Names()
	out := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		st, err := p.Status(ctx)
		if err != nil {
			st = ProviderStatus{Provider: name, Message: err.Error()}
		}
		out = append(out, st)
	}
	return out
}

// caller holds r.mu.
func (r *Registry) resolveRef(role, modelName string) (string, error) {
	if modelName != "" && modelName != "default" {
		if !strings.Contains(modelName, "/") {
			return "", syerr.Errorf(syerr.CodeProviderInvalidModelRef,
				"model name %q must use provider/model format", modelName)
		}
		return modelName, nil
	}
	if role != "" {
		if override, ok := r.overrides[role]; ok {
			return override, nil
		}
	}
	return r.defaultRef, nil
}

// caller holds r.mu.
func (r *Registry) tryRef(ctx context.Context, ref string) (Provider, string, error) {
	providerName, model := parseRef(ref)

	p, ok := r.providers[providerName]
	if !ok {
		return nil, "", syerr.New(syerr.CodeProviderNotFound, "provider not found: "+providerName,
			syerr.FieldProvider(providerName))
	}
	if !p.Available(ctx) {
		return nil, "", syerr.New(syerr.CodeProviderUpstreamFailure, "provider unavailable: "+providerName,
			syerr.FieldProvider(providerName))
	}
	return p, model, nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
