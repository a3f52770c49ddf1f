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

// Package worldmanager implements World/Agent CRUD and the runtime
// roster lifecycle (spec.md §4.7): GetWorld rebuilds the roster from
// storage and auto-subscribes every agent to its world's bus. Grounded
// in the retrieval pack's team.Team agent-registration-plus-shared-state
// pattern, generalized from a fixed DAG/autonomous workflow team to a
// dynamically loaded world/roster.
package worldmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentworld/agentworld/logger"
	"github.com/agentworld/agentworld/mention"
	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/werrors"
	"github.com/agentworld/agentworld/world"
)

// MessageHandler is invoked for every message published on a world's
// TopicMessage; Manager wires one per agent when auto-subscribing
// (spec.md §4.7 getWorld).
type MessageHandler func(ctx context.Context, w *world.World, a *world.Agent, evt world.MessageEvent)

// Manager wraps a storage.Store and the set of live *world.World
// instances currently loaded into the process.
type Manager struct {
	store   storage.Store
	newBus  func() world.Emitter
	onMsg   MessageHandler

	mu     sync.Mutex
	worlds map[string]*world.World
	subs   map[string][]func() // per-world unsubscribe closures, for Close/reload
	log    *slog.Logger
}

// New creates a Manager. newBus constructs a fresh per-world Emitter
// (normally bus.New wrapped to satisfy world.Emitter); onMsg is called
// for every message delivered to a roster agent, and deciding whether
// the agent responds (the router's ShouldRespond) is left to onMsg —
// Manager itself only wires the subscription, it does not decide or
// stream.
func New(store storage.Store, newBus func() world.Emitter, onMsg MessageHandler) *Manager {
	return &Manager{
		store:  store,
		newBus: newBus,
		onMsg:  onMsg,
		worlds: make(map[string]*world.World),
		subs:   make(map[string][]func()),
		log:    logger.Get(),
	}
}

// CreateWorldParams carries the caller-supplied fields of a new world.
type CreateWorldParams struct {
	ID              string
	Name            string
	Description     string
	TurnLimit       int
	ChatLLMProvider string
	ChatLLMModel    string
}

// CreateWorld writes a new world's config to storage and returns the
// freshly constructed runtime World with an empty roster and a new bus
// (spec.md §4.7 createWorld).
func (m *Manager) CreateWorld(ctx context.Context, params CreateWorldParams) (*world.World, error) {
	id := params.ID
	if id == "" {
		id = mention.ToKebabCase(params.Name)
	}
	if id == "" {
		return nil, werrors.New(werrors.Validation, "worldmanager", "CreateWorld", "world id/name required", nil)
	}

	if _, err := m.store.LoadWorld(ctx, id); err == nil {
		return nil, werrors.New(werrors.Conflict, "worldmanager", "CreateWorld", "world already exists: "+id, nil)
	}

	cfg := world.Config{
		ID:              id,
		Name:            params.Name,
		Description:     params.Description,
		TurnLimit:       params.TurnLimit,
		ChatLLMProvider: params.ChatLLMProvider,
		ChatLLMModel:    params.ChatLLMModel,
		CreatedAt:       time.Now(),
	}
	if err := m.store.SaveWorld(ctx, cfg); err != nil {
		return nil, werrors.New(werrors.Storage, "worldmanager", "CreateWorld", "save world", err)
	}

	w := world.New(cfg, m.newBus())
	m.mu.Lock()
	m.worlds[id] = w
	m.mu.Unlock()
	return w, nil
}

// GetWorld loads config and every agent from storage into a runtime
// World, replacing any previously cached instance, and auto-subscribes
// each agent's handler to the bus (spec.md §4.7 getWorld).
func (m *Manager) GetWorld(ctx context.Context, id string) (*world.World, error) {
	cfg, err := m.store.LoadWorld(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	for _, unsub := range m.subs[id] {
		unsub()
	}
	delete(m.subs, id)
	m.mu.Unlock()

	w := world.New(cfg, m.newBus())

	agents, err := m.store.ListAgents(ctx, id)
	if err != nil {
		return nil, err
	}

	w.Lock()
	for _, a := range agents {
		w.PutAgent(a)
	}
	w.Unlock()

	var unsubs []func()
	for _, a := range agents {
		unsubs = append(unsubs, m.autoSubscribe(w, a))
	}

	m.mu.Lock()
	m.worlds[id] = w
	m.subs[id] = unsubs
	m.mu.Unlock()

	return w, nil
}

func (m *Manager) autoSubscribe(w *world.World, a *world.Agent) func() {
	if w.Bus == nil || m.onMsg == nil {
		return func() {}
	}
	return w.Bus.Subscribe(world.TopicMessage, func(payload any) {
		evt, ok := payload.(world.MessageEvent)
		if !ok {
			return
		}
		m.onMsg(context.Background(), w, a, evt)
	})
}

// UpdateWorld persists cfg and refreshes the runtime copy's Config if
// the world is currently loaded.
func (m *Manager) UpdateWorld(ctx context.Context, cfg world.Config) error {
	if err := m.store.SaveWorld(ctx, cfg); err != nil {
		return werrors.New(werrors.Storage, "worldmanager", "UpdateWorld", "save world", err)
	}
	m.mu.Lock()
	if w, ok := m.worlds[cfg.ID]; ok {
		w.Lock()
		w.Config = cfg
		w.Unlock()
	}
	m.mu.Unlock()
	return nil
}

// DeleteWorld cascades in storage and drops the runtime instance.
func (m *Manager) DeleteWorld(ctx context.Context, id string) error {
	if err := m.store.DeleteWorld(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	for _, unsub := range m.subs[id] {
		unsub()
	}
	delete(m.subs, id)
	delete(m.worlds, id)
	m.mu.Unlock()
	return nil
}

// ListWorlds returns every world's config.
func (m *Manager) ListWorlds(ctx context.Context) ([]world.Config, error) {
	return m.store.ListWorlds(ctx)
}

// GetWorldConfig loads just a world's durable config.
func (m *Manager) GetWorldConfig(ctx context.Context, id string) (world.Config, error) {
	return m.store.LoadWorld(ctx, id)
}

// CreateAgentParams carries the caller-supplied fields of a new agent.
type CreateAgentParams struct {
	ID           string
	Name         string
	Type         string
	Provider     string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// CreateAgent persists a new agent under worldID and, if that world is
// currently loaded, inserts it into the live roster and auto-subscribes
// it.
func (m *Manager) CreateAgent(ctx context.Context, worldID string, params CreateAgentParams) (*world.Agent, error) {
	id := params.ID
	if id == "" {
		id = mention.ToKebabCase(params.Name)
	}
	if id == "" {
		return nil, werrors.New(werrors.Validation, "worldmanager", "CreateAgent", "agent id/name required", nil)
	}
	if _, err := m.store.LoadAgent(ctx, worldID, id); err == nil {
		return nil, werrors.New(werrors.Conflict, "worldmanager", "CreateAgent", "agent already exists: "+id, nil)
	}

	a := &world.Agent{
		ID:           id,
		Name:         params.Name,
		Type:         params.Type,
		Status:       world.AgentStatusActive,
		Provider:     params.Provider,
		Model:        params.Model,
		SystemPrompt: params.SystemPrompt,
		Temperature:  params.Temperature,
		MaxTokens:    params.MaxTokens,
		CreatedAt:    time.Now(),
	}
	if err := m.store.SaveAgent(ctx, worldID, a); err != nil {
		return nil, werrors.New(werrors.Storage, "worldmanager", "CreateAgent", "save agent", err)
	}

	m.mu.Lock()
	w, ok := m.worlds[worldID]
	m.mu.Unlock()
	if ok {
		w.Lock()
		w.PutAgent(a)
		w.Unlock()
		unsub := m.autoSubscribe(w, a)
		m.mu.Lock()
		m.subs[worldID] = append(m.subs[worldID], unsub)
		m.mu.Unlock()
	}

	return a, nil
}

// GetAgent resolves name first as a literal id, falling back to its
// kebab-cased form (spec.md §4.7 name lookups).
func (m *Manager) GetAgent(ctx context.Context, worldID, name string) (*world.Agent, error) {
	if a, err := m.store.LoadAgent(ctx, worldID, name); err == nil {
		return a, nil
	}
	return m.store.LoadAgent(ctx, worldID, mention.ToKebabCase(name))
}

// UpdateAgent persists a's config/memory and refreshes the live roster
// entry if the world is loaded.
func (m *Manager) UpdateAgent(ctx context.Context, worldID string, a *world.Agent) error {
	if err := m.store.SaveAgent(ctx, worldID, a); err != nil {
		return werrors.New(werrors.Storage, "worldmanager", "UpdateAgent", "save agent", err)
	}
	m.mu.Lock()
	w, ok := m.worlds[worldID]
	m.mu.Unlock()
	if ok {
		w.Lock()
		w.PutAgent(a)
		w.Unlock()
	}
	return nil
}

// UpdateAgentMemory replaces an agent's memory wholesale.
func (m *Manager) UpdateAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage) error {
	return m.store.SaveAgentMemory(ctx, worldID, agentID, memory)
}

// DeleteAgent removes an agent from storage and, if loaded, the live
// roster.
func (m *Manager) DeleteAgent(ctx context.Context, worldID, agentID string) error {
	if err := m.store.DeleteAgent(ctx, worldID, agentID); err != nil {
		return err
	}
	m.mu.Lock()
	if w, ok := m.worlds[worldID]; ok {
		w.Lock()
		w.RemoveAgent(agentID)
		w.Unlock()
	}
	m.mu.Unlock()
	return nil
}

// ListAgents returns every agent in worldID.
func (m *Manager) ListAgents(ctx context.Context, worldID string) ([]*world.Agent, error) {
	return m.store.ListAgents(ctx, worldID)
}

// ClearAgentMemory archives the agent's current memory with
// reason="manual_clear" then truncates it to empty, both in storage and
// the live roster if loaded (spec.md §4.7).
func (m *Manager) ClearAgentMemory(ctx context.Context, worldID, agentID string) (archiveID string, err error) {
	a, err := m.store.LoadAgent(ctx, worldID, agentID)
	if err != nil {
		return "", err
	}

	archiveID, err = m.store.ArchiveAgentMemory(ctx, worldID, agentID, a.Memory, storage.ArchiveMetadata{
		Reason:      "manual_clear",
		SessionName: fmt.Sprintf("%s-%s", agentID, uuid.NewString()[:8]),
	})
	if err != nil {
		return "", werrors.New(werrors.Storage, "worldmanager", "ClearAgentMemory", "archive memory", err)
	}

	if err := m.store.SaveAgentMemory(ctx, worldID, agentID, nil); err != nil {
		return "", werrors.New(werrors.Storage, "worldmanager", "ClearAgentMemory", "truncate memory", err)
	}

	m.mu.Lock()
	w, ok := m.worlds[worldID]
	m.mu.Unlock()
	if ok {
		if live, found := w.Agent(agentID); found {
			live.Lock()
			live.Memory = nil
			live.Unlock()
		}
	}

	return archiveID, nil
}

// resolveAgentName is the shared literal-then-kebab-case lookup helper
// used wherever a caller supplies a human-typed agent name rather than
// a stable id.
func resolveAgentName(w *world.World, name string) (*world.Agent, bool) {
	if a, ok := w.Agent(name); ok {
		return a, true
	}
	return w.Agent(mention.ToKebabCase(name))
}

// ResolveAgentName exposes resolveAgentName against a loaded world's
// live roster (literal id, then kebab-cased).
func ResolveAgentName(w *world.World, name string) (*world.Agent, bool) {
	return resolveAgentName(w, name)
}
