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
)

const createSchemaVersionSQL = `
CREATE TABLE IF NOT EXISTS agentworld_schema_version (
    version INTEGER NOT NULL
)`

const createWorldsSQL = `
CREATE TABLE IF NOT EXISTS worlds (
    id VARCHAR(255) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    turn_limit INTEGER NOT NULL,
    current_chat_id VARCHAR(255),
    chat_llm_provider VARCHAR(255),
    chat_llm_model VARCHAR(255),
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const createAgentsSQL = `
CREATE TABLE IF NOT EXISTS agents (
    world_id VARCHAR(255) NOT NULL,
    id VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    type VARCHAR(255),
    status VARCHAR(32) NOT NULL,
    provider VARCHAR(255),
    model VARCHAR(255),
    system_prompt TEXT,
    temperature DOUBLE PRECISION,
    max_tokens INTEGER,
    provider_cfg_json TEXT,
    llm_call_count INTEGER NOT NULL,
    last_llm_call TIMESTAMP,
    memory_json TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (world_id, id)
)`

const createChatsSQL = `
CREATE TABLE IF NOT EXISTS chats (
    world_id VARCHAR(255) NOT NULL,
    id VARCHAR(255) NOT NULL,
    name VARCHAR(255),
    description TEXT,
    message_count INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (world_id, id)
)`

const createChatMessagesSQL = `
CREATE TABLE IF NOT EXISTS chat_messages (
    world_id VARCHAR(255) NOT NULL,
    chat_id VARCHAR(255) NOT NULL,
    seq INTEGER NOT NULL,
    role VARCHAR(32) NOT NULL,
    content TEXT,
    sender VARCHAR(255),
    tool_call_id VARCHAR(255),
    tool_calls_json TEXT,
    message_id VARCHAR(255),
    reply_to_message_id VARCHAR(255),
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (world_id, chat_id, seq)
)`

const createChatMessagesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_chat_messages_chat ON chat_messages(world_id, chat_id)`

const createArchivesSQL = `
CREATE TABLE IF NOT EXISTS memory_archives (
    archive_id VARCHAR(255) PRIMARY KEY,
    world_id VARCHAR(255) NOT NULL,
    agent_id VARCHAR(255) NOT NULL,
    session_name VARCHAR(255),
    reason VARCHAR(255),
    message_count INTEGER NOT NULL,
    start_time TIMESTAMP,
    end_time TIMESTAMP,
    participants_json TEXT,
    tags_json TEXT,
    summary TEXT,
    messages_json TEXT,
    created_at TIMESTAMP NOT NULL
)`

const createArchivesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_archives_agent ON memory_archives(world_id, agent_id)`

// bootstrap creates every table if missing and records the schema
// version inside a single transaction, mirroring v2/task/store.go's
// needsMigration/migrate/setSchemaVersion sequence but collapsed to a
// single version since this schema has not yet shipped a v2. Running
// the DDL and the version seed in one tx means a crash mid-bootstrap
// never leaves the schema half-created with no version row (or vice
// versa).
func (s *Store) bootstrap() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("bootstrap", "begin transaction", err)
	}
	defer tx.Rollback()

	statements := []string{
		createSchemaVersionSQL,
		createWorldsSQL,
		createAgentsSQL,
		createChatsSQL,
		createChatMessagesSQL,
		createChatMessagesIndexSQL,
		createArchivesSQL,
		createArchivesIndexSQL,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return storageErr("bootstrap", "create schema", err)
		}
	}

	needs, err := s.needsVersionSeed(ctx, tx)
	if err != nil {
		return err
	}
	if needs {
		if err := s.setSchemaVersion(ctx, tx, schemaVersion); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("bootstrap", "commit transaction", err)
	}
	return nil
}

func (s *Store) needsVersionSeed(ctx context.Context, tx *sql.Tx) (bool, error) {
	var count int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM agentworld_schema_version")
	if err := row.Scan(&count); err != nil {
		return false, storageErr("needsVersionSeed", "count schema_version rows", err)
	}
	return count == 0, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO agentworld_schema_version (version) VALUES (?)"), version); err != nil {
		return storageErr("setSchemaVersion", "insert version row", err)
	}
	return nil
}
