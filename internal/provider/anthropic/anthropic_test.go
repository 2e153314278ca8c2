// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package anthropic_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/provider/anthropic"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func mustNewProvider(t *testing.T, baseURL string) *anthropic.Provider {
	t.Helper()
	p, err := anthropic.New(anthropic.Config{APIKey: "test-key-not-real", BaseURL: baseURL})
	require.NoError(t, err)
	return p
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := anthropic.New(anthropic.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderRequestInvalid))
}

func TestProvider_Basics(t *testing.T) {
	p := mustNewProvider(t, "")
	ctx := context.Background()

	assert.Equal(t, "anthropic", p.Name())
	assert.True(t, p.Available(ctx))
	assert.NoError(t, p.Close())

	models, err := p.ListModels(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, models)
	for _, m := range models {
		assert.Equal(t, "anthropic", m.Provider)
		assert.True(t, m.Capabilities.SupportsTools, m.ID)
	}

	status, err := p.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Available)
	require.NotNil(t, status.Health)
	assert.Zero(t, status.Health.FailureCount)
}

func TestConvertMessages_ReplaysToolCalls(t *testing.T) {
	msgs := []provider.Message{
		{Role: store.MessageRoleSystem, Content: "ignored"},
		{Role: store.MessageRoleUser, Content: "find carriers near 75001"},
		{Role: store.MessageRoleAssistant, ToolCalls: []provider.ToolCall{
			{ID: "toolu_1", Name: "find_matches", Arguments: `{"zip":"75001"}`},
			{ID: "toolu_2", Name: "get_road_conditions", Arguments: ""},
		}},
		{Role: store.MessageRoleTool, ToolCallID: "toolu_1", ToolName: "find_matches", Content: `{"matches":3}`},
		{Role: store.MessageRoleTool, ToolCallID: "toolu_2", ToolName: "get_road_conditions", Content: `{"ok":true}`},
		{Role: store.MessageRoleAssistant, Content: "Found 3 carriers."},
	}

	got, err := anthropic.ConvertMessages(msgs)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "user", string(got[0].Role))
	assert.Equal(t, "assistant", string(got[1].Role))
	require.Len(t, got[1].Content, 2)
	require.NotNil(t, got[1].Content[0].OfToolUse)
	assert.Equal(t, "toolu_1", got[1].Content[0].OfToolUse.ID)
	assert.Equal(t, "find_matches", got[1].Content[0].OfToolUse.Name)

	assert.Equal(t, "user", string(got[2].Role))
	require.Len(t, got[2].Content, 2, "tool results share one user turn")
	require.NotNil(t, got[2].Content[1].OfToolResult)
	assert.Equal(t, "toolu_2", got[2].Content[1].OfToolResult.ToolUseID)

	assert.Equal(t, "assistant", string(got[3].Role))
}

func TestConvertMessages_UnknownRole(t *testing.T) {
	_, err := anthropic.ConvertMessages([]provider.Message{{Role: "narrator", Content: "x"}})
	require.Error(t, err)
	assert.True(t, syerr.IsInvalidInput(err))
}

func TestBuildParams(t *testing.T) {
	temp := float32(0.2)
	params, err := anthropic.BuildParams(provider.ChatRequest{
		Model:        "claude-sonnet-4-5",
		SystemPrompt: "You are a dispatcher.",
		Messages:     []provider.Message{{Role: store.MessageRoleUser, Content: "hi"}},
		Tools: []provider.ToolDefinition{{
			Name: "find_matches", Description: "Find carriers",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"zip": map[string]any{"type": "string"}},
				"required":   []string{"zip"},
			},
		}},
		Options: provider.ChatOptions{Temperature: &temp},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), params.MaxTokens)
	require.Len(t, params.System, 1)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, []string{"zip"}, params.Tools[0].OfTool.InputSchema.Required)
}

const toolUseStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Checking."}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"find_matches","input":{}}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"zip\":"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"75001\"}"}}

event: content_block_stop
data: {"type":"content_block_stop","index":1}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use","stop_sequence":null},"usage":{"output_tokens":20}}

event: message_stop
data: {"type":"message_stop"}

`

func TestChat_StreamsToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, toolUseStream)
	}))
	defer srv.Close()

	p := mustNewProvider(t, srv.URL)
	ch, err := p.Chat(context.Background(), provider.ChatRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []provider.Message{{Role: store.MessageRoleUser, Content: "find carriers"}},
	})
	require.NoError(t, err)

	var text string
	var calls []*provider.ToolCall
	var usage *provider.Usage
	var done bool
	for ev := range ch {
		switch ev.Type {
		case provider.EventTypeTextDelta:
			text += ev.Text
		case provider.EventTypeToolCall:
			calls = append(calls, ev.ToolCall)
		case provider.EventTypeUsage:
			usage = ev.Usage
		case provider.EventTypeDone:
			done = true
		case provider.EventTypeError:
			t.Fatalf("unexpected error event: %s", ev.Error)
		}
	}

	assert.True(t, done)
	assert.Equal(t, "Checking.", text)
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.Equal(t, "find_matches", calls[0].Name)
	assert.JSONEq(t, `{"zip":"75001"}`, calls[0].Arguments)
	require.NotNil(t, usage)
	assert.Equal(t, 12, usage.InputTokens)
	assert.Equal(t, 20, usage.OutputTokens)
}
