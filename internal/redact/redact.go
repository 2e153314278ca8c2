// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package redact masks credentials and personal identifiers in text that
// is persisted for humans: step result summaries and gate descriptions.
package redact

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// Placeholder replaces every masked region.
const Placeholder = "[REDACTED]"

// DefaultMaxLength bounds the input Redact will scan. Longer input is
// cut to this length first.
const DefaultMaxLength = 1 << 20

// Rule is one named detection pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Match is a detected region of the normalized input.
type Match struct {
	Rule     string
	Location int // byte offset
	Length   int
}

// Redactor applies a fixed rule set. It is safe for concurrent use.
type Redactor struct {
	rules     []Rule
	maxLength int
}

// New validates rules and returns a Redactor.
func New(rules []Rule) (*Redactor, error) {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			return nil, syerr.Errorf(syerr.CodeRedactRuleInvalid, "rule %d has empty name", i)
		}
		if r.Pattern == nil {
			return nil, syerr.Errorf(syerr.CodeRedactRuleInvalid, "rule %d (%s) has nil pattern", i, r.Name)
		}
		if seen[r.Name] {
			return nil, syerr.Errorf(syerr.CodeRedactRuleInvalid, "duplicate rule name %q", r.Name)
		}
		seen[r.Name] = true
	}
	return &Redactor{rules: rules, maxLength: DefaultMaxLength}, nil
}

// Default returns a Redactor over DefaultRules.
func Default() *Redactor {
	r, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return r
}

// invisible strips zero-width and other invisible characters that would
// otherwise split a token past its pattern.
var invisible = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // BOM
	"\u00ad", "", // soft hyphen
	"\u2060", "", // word joiner
)

func normalize(s string) string {
	return norm.NFKC.String(invisible.Replace(s))
}

// Scan returns the normalized input and every match in it. Offsets refer
// to the returned string.
func (r *Redactor) Scan(s string) (string, []Match) {
	s = normalize(s)
	if len(s) > r.maxLength {
		s = s[:r.maxLength]
	}
	var matches []Match
	for _, rule := range r.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(s, -1) {
			matches = append(matches, Match{Rule: rule.Name, Location: loc[0], Length: loc[1] - loc[0]})
		}
	}
	return s, matches
}

// Redact returns s with every match replaced by Placeholder. A nil
// Redactor returns s unchanged.
func (r *Redactor) Redact(s string) string {
	if r == nil || s == "" {
		return s
	}
	content, matches := r.Scan(s)
	if len(matches) == 0 {
		return s
	}
	return mask(content, matches)
}

// mask merges overlapping matches and substitutes them left to right.
func mask(content string, matches []Match) string {
	if len(matches) == 0 {
		return content
	}
	sorted := slices.Clone(matches)
	slices.SortFunc(sorted, func(a, b Match) int { return a.Location - b.Location })

	type span struct{ start, end int }
	spans := []span{{sorted[0].Location, sorted[0].Location + sorted[0].Length}}
	for _, m := range sorted[1:] {
		last := &spans[len(spans)-1]
		end := m.Location + m.Length
		if m.Location <= last.end {
			last.end = max(last.end, end)
			continue
		}
		spans = append(spans, span{m.Location, end})
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, s := range spans {
		b.WriteString(content[pos:s.start])
		b.WriteString(Placeholder)
		pos = min(s.end, len(content))
	}
	b.WriteString(content[pos:])
	return b.String()
}

// DefaultRules covers provider and platform credentials, connection
// strings with passwords, and the personal identifiers that show up in
// driver records.
func DefaultRules() []Rule {
	return []Rule{
		{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
		{"openai_api_key", regexp.MustCompile(`sk-proj-[A-Za-z0-9_-]{20,}`)},
		{"openai_legacy_key", regexp.MustCompile(`sk-[A-Za-z0-9]{40,}`)},
		{"anthropic_api_key", regexp.MustCompile(`sk-ant-api\d{2}-[A-Za-z0-9_-]{20,}`)},
		{"google_api_key", regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`)},
		{"github_pat", regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`)},
		{"slack_token", regexp.MustCompile(`xox[bpas]-[A-Za-z0-9-]+`)},
		{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-.]{20,}`)},
		{"pem_private_key", regexp.MustCompile(`-----BEGIN\s+(RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
		{"connection_string", regexp.MustCompile(`(?i)(postgres|mysql|mongodb|redis|amqp|jdbc:[a-z]+)://[^\s:@/]+:[^\s@]+@[^\s"]+`)},
		{"us_ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{"payment_card", regexp.MustCompile(`\b(?:\d[ -]?){15}\d\b`)},
	}
}
