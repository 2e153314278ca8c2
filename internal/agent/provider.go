// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// callProvider runs one provider round, failing over to the next candidate
// when a provider errors before or during its stream.
func (o *Orchestrator) callProvider(ctx context.Context, st *turnState) (string, []provider.ToolCall, error) {
	req := provider.ChatRequest{
		Messages:     st.transcript,
		Tools:        o.toolDefinitions(st.role),
		SystemPrompt: fmt.Sprintf(systemPromptFormat, st.role),
		Options:      provider.ChatOptions{Stream: true},
	}

	var tried []string
	var lastErr error
	for range o.providers.MaxAttempts() {
		prov, model, err := o.providers.RouteExcluding(ctx, string(st.role), st.model, tried)
		if err != nil {
			if lastErr != nil {
				break
			}
			return "", nil, err
		}
		tried = append(tried, prov.Name())

		req.Model = model
		eventCh, err := prov.Chat(ctx, req)
		if err != nil {
			lastErr = err
			o.logger.WarnContext(ctx, "provider chat failed, trying next",
				"provider", prov.Name(), "run_id", st.runID, "error", err)
			continue
		}
		text, calls, usage, streamErr := processEvents(eventCh)
		if streamErr != nil {
			lastErr = streamErr
			o.logger.WarnContext(ctx, "provider stream failed, trying next",
				"provider", prov.Name(), "run_id", st.runID, "error", streamErr)
			continue
		}

		st.rounds++
		st.pending.Rounds++
		if usage != nil {
			st.pending.InputTokens += usage.InputTokens
			st.pending.OutputTokens += usage.OutputTokens
		}
		st.providerName = prov.Name()
		st.resolvedModel = model
		return text, calls, nil
	}
	return "", nil, syerr.Wrap(lastErr, syerr.CodeProviderUpstreamFailure, "all provider attempts failed",
		syerr.FieldRunID(st.runID), syerr.Field("attempts", tried))
}

// processEvents drains eventCh, buffering text and collecting tool calls.
// A partial response from a failed stream is discarded by the caller.
func processEvents(eventCh <-chan provider.ChatEvent) (string, []provider.ToolCall, *provider.Usage, error) {
	var (
		text      strings.Builder
		calls     []provider.ToolCall
		usage     *provider.Usage
		streamErr error
	)
	for ev := range eventCh {
		switch ev.Type {
		case provider.EventTypeTextDelta:
			text.WriteString(ev.Text)
		case provider.EventTypeToolCall:
			if ev.ToolCall != nil {
				tc := *ev.ToolCall
				if tc.ID == "" {
					tc.ID = fmt.Sprintf("call-%d", len(calls)+1)
				}
				calls = append(calls, tc)
			}
		case provider.EventTypeUsage:
			if ev.Usage != nil {
				u := *ev.Usage
				usage = &u
			}
		case provider.EventTypeError:
			if streamErr == nil {
				streamErr = syerr.New(syerr.CodeProviderUpstreamFailure, ev.Error)
			}
		}
	}
	return text.String(), calls, usage, streamErr
}

func (o *Orchestrator) toolDefinitions(role registry.Role) []provider.ToolDefinition {
	specs := o.registry.Tools(role)
	defs := make([]provider.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, provider.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.InputSchema,
		})
	}
	return defs
}

// assistantMessage is the transcript entry for one provider round.
func assistantMessage(text string, calls []provider.ToolCall) provider.Message {
	return provider.Message{Role: store.MessageRoleAssistant, Content: text, ToolCalls: calls}
}
