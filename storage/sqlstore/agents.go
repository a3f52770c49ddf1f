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

func (s *Store) SaveAgent(ctx context.Context, worldID string, a *world.Agent) error {
	a.Lock()
	cp := *a
	mem := make([]world.AgentMessage, len(a.Memory))
	copy(mem, a.Memory)
	a.Unlock()

	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	providerCfgJSON, err := marshal("SaveAgent", cp.ProviderCfg)
	if err != nil {
		return err
	}
	memJSON, err := marshal("SaveAgent", mem)
	if err != nil {
		return err
	}

	_, loadErr := s.LoadAgent(ctx, worldID, cp.ID)
	if loadErr == nil {
		_, err = s.exec(ctx, `UPDATE agents SET name=?, type=?, status=?, provider=?, model=?,
			system_prompt=?, temperature=?, max_tokens=?, provider_cfg_json=?, llm_call_count=?,
			last_llm_call=?, memory_json=?, updated_at=? WHERE world_id=? AND id=?`,
			cp.Name, cp.Type, string(cp.Status), cp.Provider, cp.Model, cp.SystemPrompt,
			cp.Temperature, cp.MaxTokens, providerCfgJSON, cp.LLMCallCount, nullTime(cp.LastLLMCall),
			memJSON, cp.UpdatedAt, worldID, cp.ID)
		if err != nil {
			return storageErr("SaveAgent", "update agent", err)
		}
		return nil
	}

	_, err = s.exec(ctx, `INSERT INTO agents (world_id, id, name, type, status, provider, model,
		system_prompt, temperature, max_tokens, provider_cfg_json, llm_call_count, last_llm_call,
		memory_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		worldID, cp.ID, cp.Name, cp.Type, string(cp.Status), cp.Provider, cp.Model, cp.SystemPrompt,
		cp.Temperature, cp.MaxTokens, providerCfgJSON, cp.LLMCallCount, nullTime(cp.LastLLMCall),
		memJSON, cp.CreatedAt, cp.UpdatedAt)
	if err != nil {
		return storageErr("SaveAgent", "insert agent", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func (s *Store) scanAgent(row interface {
	Scan(dest ...any) error
}) (*world.Agent, error) {
	var a world.Agent
	var status, providerCfgJSON, memJSON string
	var lastLLMCall sql.NullTime
	err := row.Scan(&a.ID, &a.Name, &a.Type, &status, &a.Provider, &a.Model, &a.SystemPrompt,
		&a.Temperature, &a.MaxTokens, &providerCfgJSON, &a.LLMCallCount, &lastLLMCall,
		&memJSON, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Status = world.AgentStatus(status)
	if lastLLMCall.Valid {
		a.LastLLMCall = lastLLMCall.Time
	}
	if err := unmarshal("scanAgent", providerCfgJSON, &a.ProviderCfg); err != nil {
		return nil, err
	}
	if err := unmarshal("scanAgent", memJSON, &a.Memory); err != nil {
		return nil, err
	}
	return &a, nil
}

const agentColumns = `id, name, type, status, provider, model, system_prompt, temperature,
	max_tokens, provider_cfg_json, llm_call_count, last_llm_call, memory_json, created_at, updated_at`

func (s *Store) LoadAgent(ctx context.Context, worldID, agentID string) (*world.Agent, error) {
	row := s.queryRow(ctx, "SELECT "+agentColumns+" FROM agents WHERE world_id=? AND id=?", worldID, agentID)
	a, err := s.scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, notFound("LoadAgent", "agent not found: "+agentID)
	}
	if err != nil {
		return nil, storageErr("LoadAgent", "scan agent", err)
	}
	return a, nil
}

func (s *Store) DeleteAgent(ctx context.Context, worldID, agentID string) error {
	if _, err := s.exec(ctx, "DELETE FROM agents WHERE world_id=? AND id=?", worldID, agentID); err != nil {
		return storageErr("DeleteAgent", "delete agent", err)
	}
	return nil
}

func (s *Store) ListAgents(ctx context.Context, worldID string) ([]*world.Agent, error) {
	rows, err := s.query(ctx, "SELECT "+agentColumns+" FROM agents WHERE world_id=? ORDER BY created_at", worldID)
	if err != nil {
		return nil, storageErr("ListAgents", "query agents", err)
	}
	defer rows.Close()

	var out []*world.Agent
	for rows.Next() {
		a, err := s.scanAgent(rows)
		if err != nil {
			return nil, storageErr("ListAgents", "scan agent", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SaveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage) error {
	memJSON, err := marshal("SaveAgentMemory", memory)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, "UPDATE agents SET memory_json=?, updated_at=? WHERE world_id=? AND id=?",
		memJSON, time.Now(), worldID, agentID)
	if err != nil {
		return storageErr("SaveAgentMemory", "update memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("SaveAgentMemory", "agent not found: "+agentID)
	}
	return nil
}

func (s *Store) SaveAgentsBatch(ctx context.Context, worldID string, agents []*world.Agent) error {
	for _, a := range agents {
		if err := s.SaveAgent(ctx, worldID, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadAgentsBatch(ctx context.Context, worldID string, agentIDs []string) ([]*world.Agent, error) {
	var out []*world.Agent
	for _, id := range agentIDs {
		a, err := s.LoadAgent(ctx, worldID, id)
		if err != nil {
			if werrorsIsNotFound(err) {
				continue
			}
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
