// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/switchyard-dev/switchyard/internal/provider"
	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/store"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// DefaultHistoryWindow is the number of stored messages replayed to the
// provider at the start of a turn.
const DefaultHistoryWindow = 50

// ConversationManager owns the one conversation each (role, user) pair has.
type ConversationManager struct {
	store  store.ConversationStore
	window int
	now    func() time.Time
	group  singleflight.Group
}

// NewConversationManager creates a ConversationManager. A non-positive
// window uses DefaultHistoryWindow.
func NewConversationManager(cs store.ConversationStore, window int) *ConversationManager {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &ConversationManager{store: cs, window: window, now: time.Now}
}

// Ensure returns the conversation for (role, userID), creating it on first
// use. Concurrent first turns for the same pair share one creation.
func (m *ConversationManager) Ensure(ctx context.Context, role registry.Role, userID string) (*store.Conversation, error) {
	v, err, _ := m.group.Do(string(role)+"\x00"+userID, func() (any, error) {
		conv, err := m.store.FindConversation(ctx, string(role), userID)
		if err == nil {
			return conv, nil
		}
		if !syerr.IsNotFound(err) {
			return nil, err
		}

		now := m.now().UTC()
		conv = &store.Conversation{
			ID:        uuid.NewString(),
			Role:      string(role),
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.CreateConversation(ctx, conv); err != nil {
			if syerr.IsConflict(err) {
				// Another process created it first.
				return m.store.FindConversation(ctx, string(role), userID)
			}
			return nil, err
		}
		return conv, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Conversation), nil
}

// Get returns a conversation by id.
func (m *ConversationManager) Get(ctx context.Context, id string) (*store.Conversation, error) {
	conv, err := m.store.GetConversation(ctx, id)
	if syerr.IsNotFound(err) {
		return nil, syerr.New(syerr.CodeAgentConversationGetNotFound, "conversation not found",
			syerr.Field("conversation_id", id))
	}
	return conv, err
}

// Append stores msg, filling in its ID and CreatedAt when empty.
func (m *ConversationManager) Append(ctx context.Context, conversationID string, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now().UTC()
	}
	return m.store.AppendMessage(ctx, conversationID, msg)
}

// AppendProvider stores a transcript entry.
func (m *ConversationManager) AppendProvider(ctx context.Context, conversationID string, msg provider.Message) error {
	return m.Append(ctx, conversationID, toStoreMessage(msg))
}

// History returns the active window as a provider transcript. Tool calls
// whose results are not stored directly after them are dropped, so a window
// that starts mid-exchange or spans a paused run still replays cleanly.
func (m *ConversationManager) History(ctx context.Context, conversationID string) ([]provider.Message, error) {
	stored, err := m.store.GetActiveWindow(ctx, conversationID, m.window)
	if err != nil {
		return nil, err
	}
	msgs := make([]provider.Message, 0, len(stored))
	for _, sm := range stored {
		msgs = append(msgs, toProviderMessage(sm))
	}
	return pairToolResults(msgs), nil
}

func toProviderMessage(sm *store.Message) provider.Message {
	msg := provider.Message{
		Role:       sm.Role,
		Content:    sm.Content,
		ToolCallID: sm.ToolCallID,
		ToolName:   sm.ToolName,
	}
	for _, tc := range sm.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, provider.ToolCall{
			ID:        tc.ID,
			Name:      tc.Name,
			Arguments: string(tc.Input),
		})
	}
	return msg
}

func toStoreMessage(msg provider.Message) *store.Message {
	sm := &store.Message{
		Role:       msg.Role,
		Content:    msg.Content,
		ToolCallID: msg.ToolCallID,
		ToolName:   msg.ToolName,
	}
	for _, tc := range msg.ToolCalls {
		input := json.RawMessage(tc.Arguments)
		if !json.Valid(input) {
			input = json.RawMessage("{}")
		}
		sm.ToolCalls = append(sm.ToolCalls, store.ToolCall{ID: tc.ID, Name: tc.Name, Input: input})
	}
	return sm
}

// pairToolResults keeps only tool calls answered by the tool messages that
// immediately follow their assistant message, and drops every other tool
// message.
func pairToolResults(msgs []provider.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for i := 0; i < len(msgs); i++ {
		msg := msgs[i]
		switch {
		case msg.Role == store.MessageRoleTool:
			continue
		case msg.Role != store.MessageRoleAssistant || len(msg.ToolCalls) == 0:
			out = append(out, msg)
			continue
		}

		end := i + 1
		results := map[string]provider.Message{}
		for end < len(msgs) && msgs[end].Role == store.MessageRoleTool {
			results[msgs[end].ToolCallID] = msgs[end]
			end++
		}

		var kept []provider.ToolCall
		var answers []provider.Message
		for _, tc := range msg.ToolCalls {
			if res, ok := results[tc.ID]; ok {
				kept = append(kept, tc)
				answers = append(answers, res)
			}
		}
		msg.ToolCalls = kept
		if msg.Content != "" || len(kept) > 0 {
			out = append(out, msg)
			out = append(out, answers...)
		}
		i = end - 1
	}
	return out
}
