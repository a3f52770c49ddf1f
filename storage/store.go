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

// Package storage defines the durable Store contract (spec.md §4.8)
// shared by the file-tree backend (storage/filestore), the SQL backend
// (storage/sqlstore) and the in-memory test backend
// (storage/memstore). The package itself has no no-op implementation.
package storage

import (
	"context"

	"github.com/agentworld/agentworld/world"
)

// ArchiveOptions configures an archive export (spec.md §4.8 exportArchive).
type ArchiveOptions struct {
	Format string // "json" is the only format this module implements
}

// ArchiveMetadata is the caller-supplied part of a MemoryArchive; the
// store fills in ArchiveID, CreatedAt and the frozen Messages.
type ArchiveMetadata struct {
	SessionName  string
	Reason       string
	Participants []string
	Tags         []string
	Summary      string
}

// IntegrityReport is the result of validateIntegrity (spec.md §4.8).
type IntegrityReport struct {
	WorldID  string
	AgentID  string // empty means "all agents in the world"
	Problems []string
}

// Store is the durable persistence contract. Every method may return a
// *werrors.Error of Kind Storage (wrapping the backend's own error) or
// Kind NotFound for missing ids.
type Store interface {
	// Worlds
	SaveWorld(ctx context.Context, cfg world.Config) error
	LoadWorld(ctx context.Context, worldID string) (world.Config, error)
	DeleteWorld(ctx context.Context, worldID string) error
	ListWorlds(ctx context.Context) ([]world.Config, error)

	// Agents
	SaveAgent(ctx context.Context, worldID string, a *world.Agent) error
	LoadAgent(ctx context.Context, worldID, agentID string) (*world.Agent, error)
	DeleteAgent(ctx context.Context, worldID, agentID string) error
	ListAgents(ctx context.Context, worldID string) ([]*world.Agent, error)

	// Memory
	SaveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage) error
	SaveAgentsBatch(ctx context.Context, worldID string, agents []*world.Agent) error
	LoadAgentsBatch(ctx context.Context, worldID string, agentIDs []string) ([]*world.Agent, error)

	// Chats
	SaveChat(ctx context.Context, worldID string, c world.Chat) error
	LoadChat(ctx context.Context, worldID, chatID string) (world.Chat, error)
	ListChats(ctx context.Context, worldID string) ([]world.Chat, error)
	DeleteChat(ctx context.Context, worldID, chatID string) error
	LoadWorldChatFull(ctx context.Context, worldID, chatID string) (world.WorldChat, error)

	// Archives
	ArchiveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage, meta ArchiveMetadata) (string, error)
	SearchArchives(ctx context.Context, worldID, agentID, query string) ([]world.MemoryArchive, error)
	ExportArchive(ctx context.Context, archiveID string, opts ArchiveOptions) ([]byte, error)

	// Maintenance
	ValidateIntegrity(ctx context.Context, worldID string, agentID string) (IntegrityReport, error)
	RepairData(ctx context.Context, worldID string, agentID string) error
}
