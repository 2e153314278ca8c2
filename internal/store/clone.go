// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package store

import (
	"maps"
	"slices"
)

// Clone helpers give in-process backends value semantics so callers never
// share mutable maps with stored records.

func (c *Conversation) Clone() *Conversation {
	cp := *c
	return &cp
}

func (m *Message) Clone() *Message {
	cp := *m
	cp.ToolCalls = slices.Clone(m.ToolCalls)
	cp.Metadata = maps.Clone(m.Metadata)
	return &cp
}

func (r *Run) Clone() *Run {
	cp := *r
	cp.Planning = maps.Clone(r.Planning)
	return &cp
}

func (s *Step) Clone() *Step {
	cp := *s
	cp.Params = maps.Clone(s.Params)
	return &cp
}

func (g *Gate) Clone() *Gate {
	cp := *g
	cp.Params = maps.Clone(g.Params)
	return &cp
}

func (e *AuditEntry) Clone() *AuditEntry {
	cp := *e
	cp.Details = maps.Clone(e.Details)
	return &cp
}
