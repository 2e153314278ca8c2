// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package registry is the static catalogue of actions the orchestrator can
// dispatch: router definitions per domain, capability bindings and their
// authorization policies. A Registry is validated once and read-only after.
package registry

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Registry resolves (domain, action) pairs to bindings.
type Registry struct {
	defs     []RouterDefinition
	byDomain map[string]int
	bindings map[string]map[string]Binding
	flat     map[string]Binding
}

// Option configures New.
type Option func(*options)

type options struct {
	checker TargetChecker
}

// WithTargetChecker makes New fail when a binding's target is not wired.
func WithTargetChecker(c TargetChecker) Option {
	return func(o *options) { o.checker = c }
}

// New builds a Registry and runs the startup self-check.
func New(defs []RouterDefinition, bindings []Binding, opts ...Option) (*Registry, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		defs:     make([]RouterDefinition, 0, len(defs)),
		byDomain: make(map[string]int, len(defs)),
		bindings: make(map[string]map[string]Binding, len(defs)),
		flat:     map[string]Binding{},
	}

	var problems []string
	for _, d := range defs {
		if d.Domain == "" {
			problems = append(problems, "router definition with empty domain")
			continue
		}
		if _, dup := r.byDomain[d.Domain]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate router definition", d.Domain))
			continue
		}
		d.Roles = slices.Clone(d.Roles)
		d.Actions = slices.Clone(d.Actions)
		r.byDomain[d.Domain] = len(r.defs)
		r.defs = append(r.defs, d)
		r.bindings[d.Domain] = map[string]Binding{}
	}

	for _, b := range bindings {
		actions, ok := r.bindings[b.Domain]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: binding for undeclared domain", b.Key()))
			continue
		}
		if _, dup := actions[b.Action]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate binding", b.Key()))
			continue
		}
		actions[b.Action] = b
	}

	problems = append(problems, r.validate(o.checker)...)
	if len(problems) > 0 {
		return nil, syerr.New(syerr.CodeRegistryDefinitionInvalid,
			"registry self-check failed: "+strings.Join(problems, "; "),
			syerr.Field("problems", len(problems)))
	}
	return r, nil
}

// validate checks schema/implementation drift and policy consistency.
func (r *Registry) validate(checker TargetChecker) []string {
	var problems []string
	for _, d := range r.defs {
		if strings.TrimSpace(d.Description) == "" {
			problems = append(problems, fmt.Sprintf("%s: missing description", d.Domain))
		}
		if len(d.Roles) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no roles", d.Domain))
		}
		for _, role := range d.Roles {
			if !role.Valid() {
				problems = append(problems, fmt.Sprintf("%s: unknown role %q", d.Domain, role))
			}
		}

		declared := slices.Clone(d.Actions)
		sort.Strings(declared)
		unique := slices.Compact(slices.Clone(declared))
		if len(unique) != len(declared) {
			problems = append(problems, fmt.Sprintf("%s: duplicate action in enum", d.Domain))
		}
		bound := make([]string, 0, len(r.bindings[d.Domain]))
		for name := range r.bindings[d.Domain] {
			bound = append(bound, name)
		}
		sort.Strings(bound)
		if !slices.Equal(unique, bound) {
			problems = append(problems, fmt.Sprintf("%s: action enum %v does not match bindings %v",
				d.Domain, declared, bound))
		}

		for _, name := range bound {
			b := r.bindings[d.Domain][name]
			problems = append(problems, checkBinding(b, checker)...)
			if !d.Flat {
				continue
			}
			if _, clash := r.byDomain[name]; clash {
				problems = append(problems, fmt.Sprintf("%s: flat tool name collides with a domain", b.Key()))
			}
			if prev, dup := r.flat[name]; dup {
				problems = append(problems, fmt.Sprintf("%s: flat tool name already used by %s", b.Key(), prev.Key()))
				continue
			}
			r.flat[name] = b
		}
	}
	return problems
}

func checkBinding(b Binding, checker TargetChecker) []string {
	var problems []string
	p := b.Policy
	if !p.Tier.Valid() {
		problems = append(problems, fmt.Sprintf("%s: unknown risk tier %q", b.Key(), p.Tier))
	}
	if p.Tier == TierExecuteHigh && !p.RequiresApproval {
		problems = append(problems, fmt.Sprintf("%s: execute_high must require approval", b.Key()))
	}
	if p.Tier == TierRead && p.RequiresApproval {
		problems = append(problems, fmt.Sprintf("%s: read must not require approval", b.Key()))
	}
	if p.RateLimit <= 0 {
		problems = append(problems, fmt.Sprintf("%s: rate limit must be positive", b.Key()))
	}
	if b.Target.Service == "" || b.Target.Function == "" {
		problems = append(problems, fmt.Sprintf("%s: incomplete target", b.Key()))
	} else if checker != nil && !checker.Has(b.Target) {
		problems = append(problems, fmt.Sprintf("%s: target %s is not bound", b.Key(), b.Target))
	}
	return problems
}

// notFound hides whether the domain or the action was unknown.
func notFound(name string) error {
	return syerr.New(syerr.CodeRegistryActionNotFound,
		fmt.Sprintf("Unknown action '%s'", name), syerr.FieldAction(name))
}

// Resolve returns the binding for (domain, action).
func (r *Registry) Resolve(domain, action string) (Binding, error) {
	actions, ok := r.bindings[domain]
	if !ok {
		return Binding{}, notFound(action)
	}
	b, ok := actions[action]
	if !ok {
		return Binding{}, notFound(action)
	}
	return b, nil
}

// ResolveTool maps a provider tool call to a binding and its params. A router
// tool carries {action, params}; a call without an action, or to any other
// name, falls through to the flat tool index.
func (r *Registry) ResolveTool(name string, input map[string]any) (Binding, map[string]any, error) {
	if idx, ok := r.byDomain[name]; ok && !r.defs[idx].Flat {
		if action, _ := input["action"].(string); action != "" {
			b, err := r.Resolve(name, action)
			if err != nil {
				return Binding{}, nil, err
			}
			params, _ := input["params"].(map[string]any)
			if params == nil {
				params = map[string]any{}
			}
			return b, params, nil
		}
	}

	b, ok := r.flat[name]
	if !ok {
		return Binding{}, nil, notFound(name)
	}
	if input == nil {
		input = map[string]any{}
	}
	return b, input, nil
}

// Definition returns the router definition for domain.
func (r *Registry) Definition(domain string) (RouterDefinition, bool) {
	idx, ok := r.byDomain[domain]
	if !ok {
		return RouterDefinition{}, false
	}
	return r.defs[idx], true
}

// VisibleTo reports whether role may use domain.
func (r *Registry) VisibleTo(role Role, domain string) bool {
	d, ok := r.Definition(domain)
	return ok && d.VisibleTo(role)
}

// Definitions returns every router definition in declaration order.
func (r *Registry) Definitions() []RouterDefinition {
	return slices.Clone(r.defs)
}

// ListForRole returns the domains visible to role.
func (r *Registry) ListForRole(role Role) []RouterDefinition {
	var out []RouterDefinition
	for _, d := range r.defs {
		if d.VisibleTo(role) {
			out = append(out, d)
		}
	}
	return out
}

// Bindings returns the bindings of domain in declared action order.
func (r *Registry) Bindings(domain string) []Binding {
	d, ok := r.Definition(domain)
	if !ok {
		return nil
	}
	out := make([]Binding, 0, len(d.Actions))
	for _, name := range d.Actions {
		out = append(out, r.bindings[domain][name])
	}
	return out
}

// Tools returns the provider-facing tool list for role.
func (r *Registry) Tools(role Role) []ToolSpec {
	var tools []ToolSpec
	for _, d := range r.ListForRole(role) {
		if !d.Flat {
			tools = append(tools, ToolSpec{
				Name:        d.Domain,
				Description: d.Description,
				Domain:      d.Domain,
				InputSchema: d.InputSchema(),
			})
			continue
		}
		for _, b := range r.Bindings(d.Domain) {
			desc := b.Description
			if desc == "" {
				desc = d.Description
			}
			tools = append(tools, ToolSpec{
				Name:        b.Action,
				Description: desc,
				Domain:      d.Domain,
				Flat:        true,
				InputSchema: flatSchema(b),
			})
		}
	}
	return tools
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	n := 0
	for _, actions := range r.bindings {
		n += len(actions)
	}
	return n
}
