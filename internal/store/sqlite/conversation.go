// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/switchyard-dev/switchyard/internal/store"
)

type conversationStore struct {
	db *sql.DB
}

func (s *conversationStore) CreateConversation(ctx context.Context, conv *store.Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}

	const q = `INSERT INTO conversations (id, role, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		conv.ID, conv.Role, conv.UserID, formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.Conflict("conversation", conv.ID, "already exists for role and user")
	}
	if err != nil {
		return fmt.Errorf("creating conversation %s: %w", conv.ID, err)
	}
	return nil
}

const conversationColumns = `id, role, user_id, created_at, updated_at`

func scanConversation(row *sql.Row, key string) (*store.Conversation, error) {
	var c store.Conversation
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Role, &c.UserID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("conversation", key)
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation %s: %w", key, err)
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing conversation %s created_at: %w", c.ID, err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing conversation %s updated_at: %w", c.ID, err)
	}
	return &c, nil
}

func (s *conversationStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	return scanConversation(row, id)
}

func (s *conversationStore) FindConversation(ctx context.Context, role, userID string) (*store.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE role = ? AND user_id = ?`, role, userID)
	return scanConversation(row, role+"/"+userID)
}

func (s *conversationStore) AppendMessage(ctx context.Context, conversationID string, msg *store.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling message metadata: %w", err)
	}
	toolCalls, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("marshalling message tool calls: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append for conversation %s: %w", conversationID, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	const q = `INSERT INTO messages (id, conversation_id, role, content, tool_call_id, tool_name, tool_calls, created_at, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		msg.ID,
		conversationID,
		string(msg.Role),
		msg.Content,
		msg.ToolCallID,
		msg.ToolName,
		string(toolCalls),
		formatTime(msg.CreatedAt),
		string(metadata),
	)
	if isForeignKeyViolation(err) {
		return store.NotFound("conversation", conversationID)
	}
	if err != nil {
		return fmt.Errorf("appending message %s to conversation %s: %w", msg.ID, conversationID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(msg.CreatedAt), conversationID); err != nil {
		return fmt.Errorf("touching conversation %s: %w", conversationID, err)
	}
	return tx.Commit()
}

func (s *conversationStore) GetActiveWindow(ctx context.Context, conversationID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = -1
	}

	// Sub-select the N most recent, then re-order chronologically.
	const q = `SELECT id, conversation_id, role, content, tool_call_id, tool_name, tool_calls, created_at, metadata
FROM (
	SELECT rowid AS rid, id, conversation_id, role, content, tool_call_id, tool_name, tool_calls, created_at, metadata
	FROM messages WHERE conversation_id = ?
	ORDER BY created_at DESC, rowid DESC LIMIT ?
) ORDER BY created_at ASC, rid ASC`

	rows, err := s.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("getting active window for conversation %s: %w", conversationID, err)
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var msgs []*store.Message
	for rows.Next() {
		var msg store.Message
		var createdAt, toolCalls, metaJSON string
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.ToolCallID,
			&msg.ToolName,
			&toolCalls,
			&createdAt,
			&metaJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		if msg.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing message %s created_at: %w", msg.ID, err)
		}
		if toolCalls != "" && toolCalls != "null" && toolCalls != "[]" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("unmarshalling message tool calls: %w", err)
			}
		}
		if metaJSON != "" && metaJSON != "null" && metaJSON != "{}" {
			if err := json.Unmarshal([]byte(metaJSON), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling message metadata: %w", err)
			}
		}
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}
