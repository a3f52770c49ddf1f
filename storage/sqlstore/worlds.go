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

func (s *Store) SaveWorld(ctx context.Context, cfg world.Config) error {
	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	existing, err := s.LoadWorld(ctx, cfg.ID)
	if err == nil {
		cfg.CreatedAt = existing.CreatedAt
		_, err = s.exec(ctx, `UPDATE worlds SET name=?, description=?, turn_limit=?, current_chat_id=?,
			chat_llm_provider=?, chat_llm_model=?, updated_at=? WHERE id=?`,
			cfg.Name, cfg.Description, cfg.TurnLimit, cfg.CurrentChatID,
			cfg.ChatLLMProvider, cfg.ChatLLMModel, cfg.UpdatedAt, cfg.ID)
		if err != nil {
			return storageErr("SaveWorld", "update world", err)
		}
		return nil
	}

	_, err = s.exec(ctx, `INSERT INTO worlds
		(id, name, description, turn_limit, current_chat_id, chat_llm_provider, chat_llm_model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.Description, cfg.TurnLimit, cfg.CurrentChatID,
		cfg.ChatLLMProvider, cfg.ChatLLMModel, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return storageErr("SaveWorld", "insert world", err)
	}
	return nil
}

func (s *Store) LoadWorld(ctx context.Context, worldID string) (world.Config, error) {
	var cfg world.Config
	var currentChatID, provider, model sql.NullString
	row := s.queryRow(ctx, `SELECT id, name, description, turn_limit, current_chat_id,
		chat_llm_provider, chat_llm_model, created_at, updated_at FROM worlds WHERE id=?`, worldID)
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Description, &cfg.TurnLimit, &currentChatID,
		&provider, &model, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return world.Config{}, notFound("LoadWorld", "world not found: "+worldID)
	}
	if err != nil {
		return world.Config{}, storageErr("LoadWorld", "scan world", err)
	}
	cfg.CurrentChatID = currentChatID.String
	cfg.ChatLLMProvider = provider.String
	cfg.ChatLLMModel = model.String
	return cfg, nil
}

func (s *Store) DeleteWorld(ctx context.Context, worldID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("DeleteWorld", "begin tx", err)
	}
	defer tx.Rollback()

	stmts := []string{
		"DELETE FROM memory_archives WHERE world_id=?",
		"DELETE FROM chat_messages WHERE world_id=?",
		"DELETE FROM chats WHERE world_id=?",
		"DELETE FROM agents WHERE world_id=?",
		"DELETE FROM worlds WHERE id=?",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, s.rebind(stmt), worldID); err != nil {
			return storageErr("DeleteWorld", "cascade delete", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("DeleteWorld", "commit", err)
	}
	return nil
}

func (s *Store) ListWorlds(ctx context.Context) ([]world.Config, error) {
	rows, err := s.query(ctx, `SELECT id, name, description, turn_limit, current_chat_id,
		chat_llm_provider, chat_llm_model, created_at, updated_at FROM worlds ORDER BY created_at`)
	if err != nil {
		return nil, storageErr("ListWorlds", "query worlds", err)
	}
	defer rows.Close()

	var out []world.Config
	for rows.Next() {
		var cfg world.Config
		var currentChatID, provider, model sql.NullString
		if err := rows.Scan(&cfg.ID, &cfg.Name, &cfg.Description, &cfg.TurnLimit, &currentChatID,
			&provider, &model, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
			return nil, storageErr("ListWorlds", "scan world", err)
		}
		cfg.CurrentChatID = currentChatID.String
		cfg.ChatLLMProvider = provider.String
		cfg.ChatLLMModel = model.String
		out = append(out, cfg)
	}
	return out, rows.Err()
}
