// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package registry

import (
	"maps"
	"slices"
)

// RouterDefinition is the role-scoped schema a domain exposes to the
// reasoning provider.
type RouterDefinition struct {
	Domain      string
	Description string
	Roles       []Role
	// Actions is the declared action enum. It must equal the domain's
	// bindings exactly.
	Actions []string
	// Flat exposes each action as its own tool instead of one router tool.
	Flat bool
}

// VisibleTo reports whether role may see this domain.
func (d RouterDefinition) VisibleTo(role Role) bool {
	return slices.Contains(d.Roles, role)
}

// InputSchema is the router tool's JSON schema: a required action enum plus
// a free-form params object.
func (d RouterDefinition) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        slices.Clone(d.Actions),
				"description": "The action to perform",
			},
			"params": map[string]any{
				"type":        "object",
				"description": "Parameters for the selected action",
			},
		},
		"required": []string{"action"},
	}
}

// ToolSpec is one tool offered to the reasoning provider.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Domain      string         `json:"domain"`
	Flat        bool           `json:"flat"`
	InputSchema map[string]any `json:"input_schema"`
}

func flatSchema(b Binding) map[string]any {
	props := map[string]any{}
	if b.Params != nil {
		props = maps.Clone(b.Params)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
	}
}
