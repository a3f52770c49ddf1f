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

// Package memstore is an in-memory storage.Store used by this module's
// own tests (spec.md §8) and by hosts that want a zero-dependency
// backend for experimentation. It honors the same cascade-delete and
// archive-immutability invariants as the durable backends.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/werrors"
	"github.com/agentworld/agentworld/world"
)

func marshalArchive(a world.MemoryArchive) ([]byte, error) {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, werrors.New(werrors.Storage, "memstore", "ExportArchive", "marshal archive", err)
	}
	return b, nil
}

type agentKey struct{ worldID, agentID string }
type chatKey struct{ worldID, chatID string }

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu       sync.Mutex
	worlds   map[string]world.Config
	agents   map[agentKey]*world.Agent
	chats    map[chatKey]world.Chat
	messages map[chatKey][]world.AgentMessage
	archives map[string]world.MemoryArchive
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		worlds:   make(map[string]world.Config),
		agents:   make(map[agentKey]*world.Agent),
		chats:    make(map[chatKey]world.Chat),
		messages: make(map[chatKey][]world.AgentMessage),
		archives: make(map[string]world.MemoryArchive),
	}
}

var _ storage.Store = (*Store)(nil)

func notFound(component, op, msg string) error {
	return werrors.New(werrors.NotFound, component, op, msg, nil)
}

// SaveWorld implements storage.Store.
func (s *Store) SaveWorld(ctx context.Context, cfg world.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}
	cfg.UpdatedAt = time.Now()
	s.worlds[cfg.ID] = cfg
	return nil
}

// LoadWorld implements storage.Store.
func (s *Store) LoadWorld(ctx context.Context, worldID string) (world.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.worlds[worldID]
	if !ok {
		return world.Config{}, notFound("memstore", "LoadWorld", "world not found: "+worldID)
	}
	return cfg, nil
}

// DeleteWorld cascades to agents, chats, messages and archives
// (spec.md §4.8).
func (s *Store) DeleteWorld(ctx context.Context, worldID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.worlds, worldID)
	for k := range s.agents {
		if k.worldID == worldID {
			delete(s.agents, k)
		}
	}
	for k := range s.chats {
		if k.worldID == worldID {
			delete(s.chats, k)
			delete(s.messages, k)
		}
	}
	for id, a := range s.archives {
		if a.WorldID == worldID {
			delete(s.archives, id)
		}
	}
	return nil
}

// ListWorlds implements storage.Store.
func (s *Store) ListWorlds(ctx context.Context) ([]world.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]world.Config, 0, len(s.worlds))
	for _, c := range s.worlds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveAgent implements storage.Store.
func (s *Store) SaveAgent(ctx context.Context, worldID string, a *world.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a.Clone()
	cp.UpdatedAt = time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.agents[agentKey{worldID, a.ID}] = cp
	return nil
}

// LoadAgent implements storage.Store.
func (s *Store) LoadAgent(ctx context.Context, worldID, agentID string) (*world.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentKey{worldID, agentID}]
	if !ok {
		return nil, notFound("memstore", "LoadAgent", fmt.Sprintf("agent not found: %s/%s", worldID, agentID))
	}
	return a.Clone(), nil
}

// DeleteAgent implements storage.Store.
func (s *Store) DeleteAgent(ctx context.Context, worldID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.agents, agentKey{worldID, agentID})
	return nil
}

// ListAgents implements storage.Store.
func (s *Store) ListAgents(ctx context.Context, worldID string) ([]*world.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*world.Agent
	for k, a := range s.agents {
		if k.worldID == worldID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveAgentMemory replaces an agent's memory wholesale (spec.md §4.8).
func (s *Store) SaveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentKey{worldID, agentID}]
	if !ok {
		return notFound("memstore", "SaveAgentMemory", fmt.Sprintf("agent not found: %s/%s", worldID, agentID))
	}
	mem := make([]world.AgentMessage, len(memory))
	copy(mem, memory)
	a.Memory = mem
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

// LoadAgentsBatch implements storage.Store.
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

// SaveChat implements storage.Store.
func (s *Store) SaveChat(ctx context.Context, worldID string, c world.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	s.chats[chatKey{worldID, c.ID}] = c
	return nil
}

// LoadChat implements storage.Store.
func (s *Store) LoadChat(ctx context.Context, worldID, chatID string) (world.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatKey{worldID, chatID}]
	if !ok {
		return world.Chat{}, notFound("memstore", "LoadChat", "chat not found: "+chatID)
	}
	return c, nil
}

// ListChats implements storage.Store.
func (s *Store) ListChats(ctx context.Context, worldID string) ([]world.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []world.Chat
	for k, c := range s.chats {
		if k.worldID == worldID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteChat implements storage.Store.
func (s *Store) DeleteChat(ctx context.Context, worldID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := chatKey{worldID, chatID}
	delete(s.chats, k)
	delete(s.messages, k)
	return nil
}

// AppendChatMessage appends msg to the chat's ordered message list,
// which LoadWorldChatFull returns. It is not part of the storage.Store
// interface; filestore and sqlstore carry their own methods of the same
// name, and in this module only tests call it.
func (s *Store) AppendChatMessage(worldID, chatID string, msg world.AgentMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := chatKey{worldID, chatID}
	s.messages[k] = append(s.messages[k], msg)
}

// LoadWorldChatFull implements storage.Store.
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
		filtered := a.Memory[:0:0]
		for _, m := range a.Memory {
			if m.ChatID == chatID {
				filtered = append(filtered, m)
			}
		}
		a.Memory = filtered
	}
	s.mu.Lock()
	msgs := append([]world.AgentMessage(nil), s.messages[chatKey{worldID, chatID}]...)
	s.mu.Unlock()
	return world.WorldChat{World: cfg, Agents: agents, Messages: msgs, Threads: world.CalculateThreadMetadata(msgs)}, nil
}

// ArchiveAgentMemory freezes memory into an immutable MemoryArchive and
// returns its id (spec.md §4.8).
func (s *Store) ArchiveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage, meta storage.ArchiveMetadata) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frozen := make([]world.AgentMessage, len(memory))
	copy(frozen, memory)

	var start, end time.Time
	if len(frozen) > 0 {
		start = frozen[0].CreatedAt
		end = frozen[len(frozen)-1].CreatedAt
	}

	id := uuid.NewString()
	s.archives[id] = world.MemoryArchive{
		ArchiveID:    id,
		AgentID:      agentID,
		WorldID:      worldID,
		SessionName:  meta.SessionName,
		Reason:       meta.Reason,
		MessageCount: len(frozen),
		StartTime:    start,
		EndTime:      end,
		Participants: append([]string(nil), meta.Participants...),
		Tags:         append([]string(nil), meta.Tags...),
		Summary:      meta.Summary,
		CreatedAt:    time.Now(),
		Messages:     frozen,
	}
	return id, nil
}

// SearchArchives implements storage.Store (naive substring match over
// session name, reason, summary and tags).
func (s *Store) SearchArchives(ctx context.Context, worldID, agentID, query string) ([]world.MemoryArchive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []world.MemoryArchive
	for _, a := range s.archives {
		if worldID != "" && a.WorldID != worldID {
			continue
		}
		if agentID != "" && a.AgentID != agentID {
			continue
		}
		if q != "" && !matchesArchive(a, q) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matchesArchive(a world.MemoryArchive, q string) bool {
	haystacks := []string{strings.ToLower(a.SessionName), strings.ToLower(a.Reason), strings.ToLower(a.Summary)}
	for _, t := range a.Tags {
		haystacks = append(haystacks, strings.ToLower(t))
	}
	for _, h := range haystacks {
		if strings.Contains(h, q) {
			return true
		}
	}
	return false
}

// ExportArchive implements storage.Store. Only the "json" format is
// supported; formats like Markdown export are out of scope
// (spec.md §1).
func (s *Store) ExportArchive(ctx context.Context, archiveID string, opts storage.ArchiveOptions) ([]byte, error) {
	s.mu.Lock()
	a, ok := s.archives[archiveID]
	s.mu.Unlock()
	if !ok {
		return nil, notFound("memstore", "ExportArchive", "archive not found: "+archiveID)
	}
	if opts.Format != "" && opts.Format != "json" {
		return nil, werrors.New(werrors.Validation, "memstore", "ExportArchive", "unsupported format: "+opts.Format, nil)
	}
	return marshalArchive(a)
}

// ValidateIntegrity implements storage.Store: checks that every
// role:"tool" message in an agent's memory references a tool_call_id
// emitted by a preceding assistant message (spec.md §3 invariant).
func (s *Store) ValidateIntegrity(ctx context.Context, worldID string, agentID string) (storage.IntegrityReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := storage.IntegrityReport{WorldID: worldID, AgentID: agentID}
	for k, a := range s.agents {
		if k.worldID != worldID {
			continue
		}
		if agentID != "" && k.agentID != agentID {
			continue
		}
		report.Problems = append(report.Problems, validateAgentMemory(k.agentID, a.Memory)...)
	}
	return report, nil
}

func validateAgentMemory(agentID string, memory []world.AgentMessage) []string {
	var problems []string
	emitted := make(map[string]bool)
	for _, m := range memory {
		for _, tc := range m.ToolCalls {
			emitted[tc.ID] = true
		}
		if m.Role == world.RoleTool {
			if m.ToolCallID == "" {
				problems = append(problems, fmt.Sprintf("agent %s: tool message missing tool_call_id", agentID))
				continue
			}
			if !emitted[m.ToolCallID] {
				problems = append(problems, fmt.Sprintf("agent %s: tool message references unknown tool_call_id %s", agentID, m.ToolCallID))
			}
		}
	}
	return problems
}

// RepairData implements storage.Store: drops orphaned tool messages
// found by ValidateIntegrity (best-effort, logged by the caller).
func (s *Store) RepairData(ctx context.Context, worldID string, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, a := range s.agents {
		if k.worldID != worldID {
			continue
		}
		if agentID != "" && k.agentID != agentID {
			continue
		}
		a.Memory = repairAgentMemory(a.Memory)
	}
	return nil
}

func repairAgentMemory(memory []world.AgentMessage) []world.AgentMessage {
	emitted := make(map[string]bool)
	for _, m := range memory {
		for _, tc := range m.ToolCalls {
			emitted[tc.ID] = true
		}
	}
	out := memory[:0:0]
	for _, m := range memory {
		if m.Role == world.RoleTool && (m.ToolCallID == "" || !emitted[m.ToolCallID]) {
			continue
		}
		out = append(out, m)
	}
	return out
}
