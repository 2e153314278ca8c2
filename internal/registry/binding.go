// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package registry

import (
	"context"
	"fmt"
	"maps"
	"sync"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Target names the collaborator function a binding invokes.
type Target struct {
	Service  string `json:"service"`
	Function string `json:"function"`
}

func (t Target) String() string {
	return t.Service + "." + t.Function
}

type argKind int

const (
	argUserID argKind = iota
	argParam
	argAllParams
)

// Arg is one positional argument of a collaborator call.
type Arg struct {
	kind     argKind
	name     string
	fallback any
}

// UserID passes the caller's user id.
func UserID() Arg { return Arg{kind: argUserID} }

// Param passes params[name], or nil when absent.
func Param(name string) Arg { return Arg{kind: argParam, name: name} }

// ParamOr passes params[name], or fallback when absent.
func ParamOr(name string, fallback any) Arg {
	return Arg{kind: argParam, name: name, fallback: fallback}
}

// AllParams passes the whole params object.
func AllParams() Arg { return Arg{kind: argAllParams} }

func (a Arg) String() string {
	switch a.kind {
	case argUserID:
		return "userId"
	case argAllParams:
		return "params"
	default:
		return "params." + a.name
	}
}

// ArgMapping turns the flat {action, params} shape the provider sees into a
// collaborator's positional signature. It is pure.
type ArgMapping []Arg

// Apply builds the positional argument list.
func (m ArgMapping) Apply(userID string, params map[string]any) []any {
	if params == nil {
		params = map[string]any{}
	}
	args := make([]any, 0, len(m))
	for _, a := range m {
		switch a.kind {
		case argUserID:
			args = append(args, userID)
		case argAllParams:
			args = append(args, maps.Clone(params))
		case argParam:
			v, ok := params[a.name]
			if !ok {
				v = a.fallback
			}
			args = append(args, v)
		}
	}
	return args
}

// Binding connects an abstract (domain, action) to a collaborator and its
// policy. Bindings are immutable after the registry is built.
type Binding struct {
	Domain      string
	Action      string
	Target      Target
	Args        ArgMapping
	Policy      Policy
	Description string
	// Params is the JSON schema "properties" object for flat tools.
	Params map[string]any
}

// Key is the canonical "domain.action" name.
func (b Binding) Key() string {
	return b.Domain + "." + b.Action
}

// Func is an in-process collaborator function.
type Func func(ctx context.Context, args []any) (any, error)

// Invoker calls collaborators. Implementations know nothing about tiers,
// gates or rate limits.
type Invoker interface {
	Invoke(ctx context.Context, target Target, args []any) (any, error)
}

// TargetChecker reports whether a target can be invoked. Invokers that
// implement it let New verify every binding is wired.
type TargetChecker interface {
	Has(target Target) bool
}

// FuncTable is an in-process Invoker keyed by target.
type FuncTable struct {
	mu    sync.RWMutex
	funcs map[Target]Func
}

var (
	_ Invoker       = (*FuncTable)(nil)
	_ TargetChecker = (*FuncTable)(nil)
)

// NewFuncTable returns an empty table.
func NewFuncTable() *FuncTable {
	return &FuncTable{funcs: map[Target]Func{}}
}

// Register binds fn to target, replacing any previous function.
func (t *FuncTable) Register(target Target, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs[target] = fn
}

// Has implements TargetChecker.
func (t *FuncTable) Has(target Target) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.funcs[target]
	return ok
}

// Invoke implements Invoker.
func (t *FuncTable) Invoke(ctx context.Context, target Target, args []any) (any, error) {
	t.mu.RLock()
	fn, ok := t.funcs[target]
	t.mu.RUnlock()
	if !ok {
		return nil, syerr.New(syerr.CodeRegistryTargetNotFound,
			fmt.Sprintf("no function bound for %s", target))
	}
	return fn(ctx, args)
}
