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

package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentworld/agentworld/world"
)

// agentConfig is the config.json shape: every Agent field except
// Memory and SystemPrompt, which get their own files
// (spec.md §6: memory.jsonl, system-prompt.md).
type agentConfig struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Type         string              `json:"type"`
	Status       world.AgentStatus   `json:"status"`
	Provider     string              `json:"provider"`
	Model        string              `json:"model"`
	Temperature  float64             `json:"temperature"`
	MaxTokens    int                 `json:"maxTokens"`
	ProviderCfg  world.ProviderConfig `json:"providerConfig"`
	LLMCallCount int                 `json:"llmCallCount"`
	LastLLMCall  time.Time           `json:"lastLlmCall,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

func toAgentConfig(a *world.Agent) agentConfig {
	return agentConfig{
		ID: a.ID, Name: a.Name, Type: a.Type, Status: a.Status, Provider: a.Provider,
		Model: a.Model, Temperature: a.Temperature, MaxTokens: a.MaxTokens,
		ProviderCfg: a.ProviderCfg, LLMCallCount: a.LLMCallCount, LastLLMCall: a.LastLLMCall,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

// SaveAgent implements storage.Store. SystemPrompt is written to
// system-prompt.md and memory to memory.jsonl as separate files
// (spec.md §6); config.json never embeds either. memory.jsonl is only
// written when it does not exist yet; an existing one is left as is
// (SaveAgentMemory replaces it).
func (s *Store) SaveAgent(ctx context.Context, worldID string, a *world.Agent) error {
	a.Lock()
	cp := toAgentConfig(a)
	systemPrompt := a.SystemPrompt
	mem := make([]world.AgentMessage, len(a.Memory))
	copy(mem, a.Memory)
	a.Unlock()

	dir := s.agentDir(worldID, cp.ID)
	now := time.Now()

	if existing, err := s.readAgentConfig(worldID, cp.ID); err == nil {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now

	if err := writeJSONFileAtomic(filepath.Join(dir, "config.json"), cp); err != nil {
		return storageErr("SaveAgent", "write config.json", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "system-prompt.md"), []byte(systemPrompt)); err != nil {
		return storageErr("SaveAgent", "write system-prompt.md", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "memory.jsonl")); os.IsNotExist(err) {
		if err := writeJSONLAtomic(filepath.Join(dir, "memory.jsonl"), mem); err != nil {
			return storageErr("SaveAgent", "write memory.jsonl", err)
		}
	}
	return nil
}

func (s *Store) readAgentConfig(worldID, agentID string) (agentConfig, error) {
	var cp agentConfig
	err := readJSONFile(filepath.Join(s.agentDir(worldID, agentID), "config.json"), &cp)
	return cp, err
}

// LoadAgent implements storage.Store, reassembling SystemPrompt and
// Memory from their dedicated files.
func (s *Store) LoadAgent(ctx context.Context, worldID, agentID string) (*world.Agent, error) {
	cp, err := s.readAgentConfig(worldID, agentID)
	if err != nil {
		if isNotExist(err) {
			return nil, notFound("LoadAgent", fmt.Sprintf("agent not found: %s/%s", worldID, agentID))
		}
		return nil, storageErr("LoadAgent", "read config.json", err)
	}

	promptBytes, err := os.ReadFile(filepath.Join(s.agentDir(worldID, agentID), "system-prompt.md"))
	if err != nil && !isNotExist(err) {
		return nil, storageErr("LoadAgent", "read system-prompt.md", err)
	}

	mem, err := readJSONL[world.AgentMessage](filepath.Join(s.agentDir(worldID, agentID), "memory.jsonl"))
	if err != nil {
		return nil, storageErr("LoadAgent", "read memory.jsonl", err)
	}

	a := &world.Agent{
		ID: cp.ID, Name: cp.Name, Type: cp.Type, Status: cp.Status, Provider: cp.Provider,
		Model: cp.Model, SystemPrompt: string(promptBytes), Temperature: cp.Temperature,
		MaxTokens: cp.MaxTokens, ProviderCfg: cp.ProviderCfg, LLMCallCount: cp.LLMCallCount,
		LastLLMCall: cp.LastLLMCall, CreatedAt: cp.CreatedAt, UpdatedAt: cp.UpdatedAt, Memory: mem,
	}
	return a, nil
}

// DeleteAgent implements storage.Store.
func (s *Store) DeleteAgent(ctx context.Context, worldID, agentID string) error {
	if err := os.RemoveAll(s.agentDir(worldID, agentID)); err != nil {
		return storageErr("DeleteAgent", "remove agent directory", err)
	}
	return nil
}

// ListAgents implements storage.Store.
func (s *Store) ListAgents(ctx context.Context, worldID string) ([]*world.Agent, error) {
	entries, err := os.ReadDir(s.agentsDir(worldID))
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("ListAgents", "read agents directory", err)
	}
	var out []*world.Agent
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		a, err := s.LoadAgent(ctx, worldID, e.Name())
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveAgentMemory implements storage.Store: a full replace of
// memory.jsonl via temp-file-and-rename (spec.md §4.8 atomicity).
func (s *Store) SaveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage) error {
	if _, err := s.readAgentConfig(worldID, agentID); err != nil {
		if isNotExist(err) {
			return notFound("SaveAgentMemory", fmt.Sprintf("agent not found: %s/%s", worldID, agentID))
		}
		return storageErr("SaveAgentMemory", "read config.json", err)
	}
	path := filepath.Join(s.agentDir(worldID, agentID), "memory.jsonl")
	if err := writeJSONLAtomic(path, memory); err != nil {
		return storageErr("SaveAgentMemory", "write memory.jsonl", err)
	}
	return nil
}

// SaveAgentsBatch implements storage.Store.
func (s *Store) SaveAgentsBatch(ctx context.Context, worldID string, agents []*world.Agent) error {
	for _, a := range agents {
		if err := s.SaveAgent(ctx, worldID, a); err != nil {
			return err
		}
	}
	return nil
}

// LoadAgentsBatch implements storage.Store, skipping agents that fail
// to load rather than failing the whole batch (spec.md §7: storage
// errors during batch load are warnings the caller may choose to
// repair, not fatal to the batch).
func (s *Store) LoadAgentsBatch(ctx context.Context, worldID string, agentIDs []string) ([]*world.Agent, error) {
	out := make([]*world.Agent, 0, len(agentIDs))
	for _, id := range agentIDs {
		a, err := s.LoadAgent(ctx, worldID, id)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
