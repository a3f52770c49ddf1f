// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentworld/agentworld/world"
)

func (s *Store) SaveChat(ctx context.Context, worldID string, c world.Chat) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.LoadChat(ctx, worldID, c.ID)
	if err == nil {
		_, err = s.exec(ctx, `UPDATE chats SET name=?, description=?, message_count=?, updated_at=?
			WHERE world_id=? AND id=?`, c.Name, c.Description, c.MessageCount, c.UpdatedAt, worldID, c.ID)
		if err != nil {
			return storageErr("SaveChat", "update chat", err)
		}
		return nil
	}

	_, err = s.exec(ctx, `INSERT INTO chats (world_id, id, name, description, message_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, worldID, c.ID, c.Name, c.Description, c.MessageCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return storageErr("SaveChat", "insert chat", err)
	}
	return nil
}

func (s *Store) LoadChat(ctx context.Context, worldID, chatID string) (world.Chat, error) {
	var c world.Chat
	row := s.queryRow(ctx, `SELECT id, name, description, message_count, created_at, updated_at
		FROM chats WHERE world_id=? AND id=?`, worldID, chatID)
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return world.Chat{}, notFound("LoadChat", "chat not found: "+chatID)
	}
	if err != nil {
		return world.Chat{}, storageErr("LoadChat", "scan chat", err)
	}
	return c, nil
}

func (s *Store) ListChats(ctx context.Context, worldID string) ([]world.Chat, error) {
	rows, err := s.query(ctx, `SELECT id, name, description, message_count, created_at, updated_at
		FROM chats WHERE world_id=? ORDER BY created_at`, worldID)
	if err != nil {
		return nil, storageErr("ListChats", "query chats", err)
	}
	defer rows.Close()

	var out []world.Chat
	for rows.Next() {
		var c world.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.MessageCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storageErr("ListChats", "scan chat", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteChat(ctx context.Context, worldID, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("DeleteChat", "begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM chat_messages WHERE world_id=? AND chat_id=?"), worldID, chatID); err != nil {
		return storageErr("DeleteChat", "delete messages", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM chats WHERE world_id=? AND id=?"), worldID, chatID); err != nil {
		return storageErr("DeleteChat", "delete chat", err)
	}
	return storageErrOrNil("DeleteChat", "commit", tx.Commit())
}

func storageErrOrNil(op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return storageErr(op, msg, err)
}

// AppendChatMessage is a sqlstore-only convenience mirroring
// memstore's method of the same name: it assigns the next sequence
// number and inserts one row into chat_messages.
func (s *Store) AppendChatMessage(ctx context.Context, worldID, chatID string, msg world.AgentMessage) error {
	toolCallsJSON, err := marshal("AppendChatMessage", msg.ToolCalls)
	if err != nil {
		return err
	}
	var nextSeq int
	row := s.queryRow(ctx, "SELECT COALESCE(MAX(seq), -1) + 1 FROM chat_messages WHERE world_id=? AND chat_id=?", worldID, chatID)
	if err := row.Scan(&nextSeq); err != nil {
		return storageErr("AppendChatMessage", "compute next seq", err)
	}

	_, err = s.exec(ctx, `INSERT INTO chat_messages (world_id, chat_id, seq, role, content, sender,
		tool_call_id, tool_calls_json, message_id, reply_to_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		worldID, chatID, nextSeq, string(msg.Role), msg.Content, msg.Sender, msg.ToolCallID,
		toolCallsJSON, msg.MessageID, msg.ReplyToMessageID, msg.CreatedAt)
	if err != nil {
		return storageErr("AppendChatMessage", "insert message", err)
	}
	return nil
}

func (s *Store) loadChatMessages(ctx context.Context, worldID, chatID string) ([]world.AgentMessage, error) {
	rows, err := s.query(ctx, `SELECT role, content, sender, tool_call_id, tool_calls_json, message_id,
		reply_to_message_id, created_at FROM chat_messages WHERE world_id=? AND chat_id=? ORDER BY seq`, worldID, chatID)
	if err != nil {
		return nil, storageErr("loadChatMessages", "query messages", err)
	}
	defer rows.Close()

	var out []world.AgentMessage
	for rows.Next() {
		var m world.AgentMessage
		var role, toolCallsJSON string
		if err := rows.Scan(&role, &m.Content, &m.Sender, &m.ToolCallID, &toolCallsJSON,
			&m.MessageID, &m.ReplyToMessageID, &m.CreatedAt); err != nil {
			return nil, storageErr("loadChatMessages", "scan message", err)
		}
		m.Role = world.Role(role)
		m.ChatID = chatID
		if err := unmarshal("loadChatMessages", toolCallsJSON, &m.ToolCalls); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) LoadWorldChatFull(ctx context.Context, worldID, chatID string) (world.WorldChat, error) {
	cfg, err := s.LoadWorld(ctx, worldID)
	if err != nil {
		return world.WorldChat{}, err
	}
	agents, err := s.ListAgents(ctx, worldID)
	if err != nil {
		return world.WorldChat{}, err
	}
	for _, a := range agents {
		filtered := make([]world.AgentMessage, 0, len(a.Memory))
		for _, m := range a.Memory {
			if m.ChatID == chatID {
				filtered = append(filtered, m)
			}
		}
		a.Memory = filtered
	}
	messages, err := s.loadChatMessages(ctx, worldID, chatID)
	if err != nil {
		return world.WorldChat{}, err
	}
	return world.WorldChat{World: cfg, Agents: agents, Messages: messages, Threads: world.CalculateThreadMetadata(messages)}, nil
}
