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

package filestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/storage/filestore"
	"github.com/agentworld/agentworld/werrors"
	"github.com/agentworld/agentworld/world"
)

func newStore(t *testing.T) *filestore.Store {
	t.Helper()
	s, err := filestore.Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveLoadWorld_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cfg := world.Config{ID: "w1", Name: "Test World", TurnLimit: 3}
	require.NoError(t, s.SaveWorld(ctx, cfg))

	got, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Test World", got.Name)
	assert.Equal(t, 3, got.TurnLimit)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestLoadWorld_MissingReturnsNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadWorld(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.NotFound))
}

func TestSaveAgent_PersistsConfigPromptAndMemorySeparately(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveWorld(ctx, world.Config{ID: "w1"}))

	a := &world.Agent{
		ID: "a1", Name: "Alice", Provider: "anthropic", Model: "claude-3-haiku",
		SystemPrompt: "Be terse.",
		Memory:       []world.AgentMessage{{Role: world.RoleUser, Content: "hi", CreatedAt: time.Now()}},
	}
	require.NoError(t, s.SaveAgent(ctx, "w1", a))

	loaded, err := s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Name)
	assert.Equal(t, "Be terse.", loaded.SystemPrompt)
	require.Len(t, loaded.Memory, 1)
	assert.Equal(t, "hi", loaded.Memory[0].Content)
}

func TestSaveAgentMemory_FullReplaceDoesNotTouchConfig(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveWorld(ctx, world.Config{ID: "w1"}))
	require.NoError(t, s.SaveAgent(ctx, "w1", &world.Agent{ID: "a1", Name: "Alice"}))

	newMemory := []world.AgentMessage{{Role: world.RoleUser, Content: "replaced"}}
	require.NoError(t, s.SaveAgentMemory(ctx, "w1", "a1", newMemory))

	loaded, err := s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", loaded.Name)
	require.Len(t, loaded.Memory, 1)
	assert.Equal(t, "replaced", loaded.Memory[0].Content)
}

func TestSaveAgentMemory_MissingAgentReturnsNotFound(t *testing.T) {
	s := newStore(t)
	err := s.SaveAgentMemory(context.Background(), "w1", "nope", nil)
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.NotFound))
}

func TestDeleteWorld_CascadesAgentsChatsArchives(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.SaveWorld(ctx, world.Config{ID: "w1"}))
	require.NoError(t, s.SaveAgent(ctx, "w1", &world.Agent{ID: "a1"}))
	require.NoError(t, s.SaveChat(ctx, "w1", world.Chat{ID: "c1"}))
	_, err := s.ArchiveAgentMemory(ctx, "w1", "a1", nil, storage.ArchiveMetadata{SessionName: "s"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteWorld(ctx, "w1"))

	agents, err := s.ListAgents(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, agents)

	chats, err := s.ListChats(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, chats)

	archives, err := s.SearchArchives(ctx, "w1", "", "")
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestArchiveAgentMemory_IsImmutableAndSearchable(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveWorld(ctx, world.Config{ID: "w1"}))

	memory := []world.AgentMessage{
		{Role: world.RoleUser, Content: "hello", CreatedAt: time.Now()},
		{Role: world.RoleAssistant, Content: "hi there", CreatedAt: time.Now()},
	}
	archiveID, err := s.ArchiveAgentMemory(ctx, "w1", "a1", memory, storage.ArchiveMetadata{
		SessionName: "onboarding", Tags: []string{"greeting"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, archiveID)

	results, err := s.SearchArchives(ctx, "w1", "a1", "greeting")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].MessageCount)

	exported, err := s.ExportArchive(ctx, archiveID, storage.ArchiveOptions{})
	require.NoError(t, err)
	assert.Contains(t, string(exported), "onboarding")
}

func TestValidateIntegrity_FlagsOrphanedToolMessage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveWorld(ctx, world.Config{ID: "w1"}))

	a := &world.Agent{
		ID: "a1",
		Memory: []world.AgentMessage{
			{Role: world.RoleTool, ToolCallID: "missing"},
		},
	}
	require.NoError(t, s.SaveAgent(ctx, "w1", a))

	report, err := s.ValidateIntegrity(ctx, "w1", "a1")
	require.NoError(t, err)
	require.Len(t, report.Problems, 1)

	require.NoError(t, s.RepairData(ctx, "w1", "a1"))

	repaired, err := s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	assert.Empty(t, repaired.Memory)
}

func TestLoadWorldChatFull_FiltersMemoryByChatID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveWorld(ctx, world.Config{ID: "w1", Name: "World"}))
	require.NoError(t, s.SaveChat(ctx, "w1", world.Chat{ID: "c1"}))

	a := &world.Agent{
		ID: "a1",
		Memory: []world.AgentMessage{
			{Role: world.RoleUser, Content: "in chat", ChatID: "c1"},
			{Role: world.RoleUser, Content: "other chat", ChatID: "c2"},
		},
	}
	require.NoError(t, s.SaveAgent(ctx, "w1", a))
	require.NoError(t, s.AppendChatMessage("w1", "c1", world.AgentMessage{Role: world.RoleUser, Content: "in chat"}))

	full, err := s.LoadWorldChatFull(ctx, "w1", "c1")
	require.NoError(t, err)
	require.Len(t, full.Agents, 1)
	require.Len(t, full.Agents[0].Memory, 1)
	assert.Equal(t, "in chat", full.Agents[0].Memory[0].Content)
	require.Len(t, full.Messages, 1)
}
