// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package agent_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchyard-dev/switchyard/internal/agent"
	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	"github.com/switchyard-dev/switchyard/internal/store/memory"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

func TestEnsure_OnePerRoleAndUser(t *testing.T) {
	cm := agent.NewConversationManager(memory.New().Conversations(), 0)
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, err := cm.Ensure(ctx, registry.RoleDriver, "drv-1")
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	other, err := cm.Ensure(ctx, registry.RoleRecruiter, "drv-1")
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], other.ID)

	got, err := cm.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "driver", got.Role)
	assert.Equal(t, "drv-1", got.UserID)
}

func TestGet_NotFound(t *testing.T) {
	cm := agent.NewConversationManager(memory.New().Conversations(), 0)

	_, err := cm.Get(context.Background(), "missing")
	assert.True(t, syerr.HasCode(err, syerr.CodeAgentConversationGetNotFound), "got %v", err)
}

func TestHistory_PairsToolResults(t *testing.T) {
	user := func(s string) provider.Message { return provider.Message{Role: store.MessageRoleUser, Content: s} }
	tool := func(id, s string) provider.Message {
		return provider.Message{Role: store.MessageRoleTool, ToolCallID: id, ToolName: "find_matches", Content: s}
	}
	assistant := func(text string, ids ...string) provider.Message {
		msg := provider.Message{Role: store.MessageRoleAssistant, Content: text}
		for _, id := range ids {
			msg.ToolCalls = append(msg.ToolCalls, provider.ToolCall{ID: id, Name: "find_matches", Arguments: `{"zip":"75001"}`})
		}
		return msg
	}

	tests := []struct {
		name    string
		stored  []provider.Message
		want    []string
		wantIDs [][]string
	}{
		{
			name:   "answered calls replay",
			stored: []provider.Message{user("hi"), assistant("", "c1"), tool("c1", "3 found"), assistant("Found 3.")},
			want:   []string{"user:hi", "assistant:", "tool:3 found", "assistant:Found 3."},
		},
		{
			name:   "unanswered call of a paused run is dropped",
			stored: []provider.Message{user("send it"), assistant("", "c1"), user("anything else?")},
			want:   []string{"user:send it", "user:anything else?"},
		},
		{
			name:   "partially answered round keeps the answered call",
			stored: []provider.Message{user("go"), assistant("checking", "c1", "c2"), tool("c1", "ok"), user("next")},
			want:   []string{"user:go", "assistant:checking", "tool:ok", "user:next"},
		},
		{
			name:   "text survives when every call is dropped",
			stored: []provider.Message{assistant("let me look", "c9"), user("hello")},
			want:   []string{"assistant:let me look", "user:hello"},
		},
		{
			name:   "orphan tool message is dropped",
			stored: []provider.Message{tool("c0", "stale"), user("hello")},
			want:   []string{"user:hello"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := agent.NewConversationManager(memory.New().Conversations(), 0)
			ctx := context.Background()
			conv, err := cm.Ensure(ctx, registry.RoleDriver, "drv-1")
			require.NoError(t, err)
			for _, msg := range tt.stored {
				require.NoError(t, cm.AppendProvider(ctx, conv.ID, msg))
			}

			history, err := cm.History(ctx, conv.ID)
			require.NoError(t, err)

			var got []string
			for _, msg := range history {
				got = append(got, fmt.Sprintf("%s:%s", msg.Role, msg.Content))
				if msg.Role == store.MessageRoleAssistant {
					for _, tc := range msg.ToolCalls {
						assert.Equal(t, `{"zip":"75001"}`, tc.Arguments)
					}
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistory_Window(t *testing.T) {
	cm := agent.NewConversationManager(memory.New().Conversations(), 3)
	ctx := context.Background()
	conv, err := cm.Ensure(ctx, registry.RoleCarrier, "car-1")
	require.NoError(t, err)

	for i := range 5 {
		require.NoError(t, cm.Append(ctx, conv.ID, &store.Message{
			Role:    store.MessageRoleUser,
			Content: fmt.Sprintf("m%d", i),
		}))
	}

	history, err := cm.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m2", history[0].Content)
	assert.Equal(t, "m4", history[2].Content)
}

func TestAppendProvider_InvalidArgumentsStoredAsEmptyObject(t *testing.T) {
	cm := agent.NewConversationManager(memory.New().Conversations(), 0)
	ctx := context.Background()
	conv, err := cm.Ensure(ctx, registry.RoleDriver, "drv-1")
	require.NoError(t, err)

	require.NoError(t, cm.AppendProvider(ctx, conv.ID, provider.Message{
		Role:      store.MessageRoleAssistant,
		ToolCalls: []provider.ToolCall{{ID: "c1", Name: "find_matches", Arguments: "{broken"}},
	}))
	require.NoError(t, cm.AppendProvider(ctx, conv.ID, provider.Message{
		Role: store.MessageRoleTool, ToolCallID: "c1", Content: "error: tool input must be a JSON object",
	}))

	history, err := cm.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Len(t, history[0].ToolCalls, 1)
	assert.Equal(t, "{}", history[0].ToolCalls[0].Arguments)
}
