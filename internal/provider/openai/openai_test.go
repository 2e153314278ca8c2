// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package openai_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/provider/openai"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func mustNewProvider(t *testing.T, baseURL string) *openai.Provider {
	t.Helper()
	p, err := openai.New(openai.Config{APIKey: "test-key-not-real", BaseURL: baseURL})
	require.NoError(t, err)
	return p
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := openai.New(openai.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.True(t, syerr.HasCode(err, syerr.CodeProviderRequestInvalid))
}

func TestProvider_Basics(t *testing.T) {
	p := mustNewProvider(t, "")
	ctx := context.Background()

	assert.Equal(t, "openai", p.Name())
	assert.True(t, p.Available(ctx))
	assert.NoError(t, p.Close())

	models, err := p.ListModels(ctx)
	require.NoError(t, err)
	for _, m := range models {
		assert.Equal(t, "openai", m.Provider)
		assert.NotEmpty(t, m.Name)
	}

	status, err := p.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openai", status.Provider)
	assert.NotNil(t, status.Health)
}

func TestConvertMessages(t *testing.T) {
	msgs := []provider.Message{
		{Role: store.MessageRoleUser, Content: "message driver-9"},
		{Role: store.MessageRoleAssistant, ToolCalls: []provider.ToolCall{
			{ID: "call_1", Name: "send_message", Arguments: `{"to":"driver-9"}`},
			{ID: "call_2", Name: "get_funnel_metrics", Arguments: "not json"},
		}},
		{Role: store.MessageRoleTool, ToolCallID: "call_1", Content: `{"sent":true}`},
		{Role: store.MessageRoleAssistant, Content: "Sent."},
	}

	got, err := openai.ConvertMessages(msgs, "You are a recruiting assistant.")
	require.NoError(t, err)
	require.Len(t, got, 5)

	require.NotNil(t, got[0].OfSystem)
	require.NotNil(t, got[1].OfUser)
	assert.Equal(t, "message driver-9", got[1].OfUser.Content.OfString.Value)

	require.NotNil(t, got[2].OfAssistant)
	calls := got[2].OfAssistant.ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "send_message", calls[0].Function.Name)
	assert.Equal(t, "{}", calls[1].Function.Arguments)

	require.NotNil(t, got[3].OfTool)
	assert.Equal(t, "call_1", got[3].OfTool.ToolCallID)

	require.NotNil(t, got[4].OfAssistant)
	assert.Equal(t, "Sent.", got[4].OfAssistant.Content.OfString.Value)
}

func TestConvertMessages_UnknownRole(t *testing.T) {
	_, err := openai.ConvertMessages([]provider.Message{{Role: "narrator"}}, "")
	require.Error(t, err)
	assert.True(t, syerr.IsInvalidInput(err))
}

func TestBuildParams(t *testing.T) {
	temp := float32(0)
	params, err := openai.BuildParams(provider.ChatRequest{
		Model:    "gpt-4.1",
		Messages: []provider.Message{{Role: store.MessageRoleUser, Content: "hi"}},
		Tools:    []provider.ToolDefinition{{Name: "find_matches", InputSchema: map[string]any{"type": "object"}}},
		Options:  provider.ChatOptions{Temperature: &temp, MaxTokens: 256},
	})
	require.NoError(t, err)
	assert.True(t, params.Temperature.Valid(), "explicit zero temperature is sent")
	assert.Equal(t, int64(256), params.MaxCompletionTokens.Value)
	require.Len(t, params.Tools, 1)
}

func sseChunks(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "data: %s\n\n", c)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestChat_StreamsOrderedToolCalls(t *testing.T) {
	body := sseChunks(
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4.1","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"send_message","arguments":""}},{"index":1,"id":"call_b","type":"function","function":{"name":"get_funnel_metrics","arguments":"{}"}}]},"finish_reason":null}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4.1","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"to\":\"driver-9\"}"}}]},"finish_reason":null}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4.1","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4.1","choices":[],"usage":{"prompt_tokens":30,"completion_tokens":12,"total_tokens":42}}`,
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, body)
	}))
	defer srv.Close()

	p := mustNewProvider(t, srv.URL)
	ch, err := p.Chat(context.Background(), provider.ChatRequest{
		Model:    "gpt-4.1",
		Messages: []provider.Message{{Role: store.MessageRoleUser, Content: "message driver-9"}},
	})
	require.NoError(t, err)

	var calls []*provider.ToolCall
	var usage *provider.Usage
	var done bool
	for ev := range ch {
		switch ev.Type {
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
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.JSONEq(t, `{"to":"driver-9"}`, calls[0].Arguments)
	assert.Equal(t, "call_b", calls[1].ID)
	require.NotNil(t, usage)
	assert.Equal(t, 30, usage.InputTokens)
	assert.Equal(t, 12, usage.OutputTokens)
}
