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

package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/storage/memstore"
	"github.com/agentworld/agentworld/werrors"
	"github.com/agentworld/agentworld/world"
)

func TestSaveLoadWorld_RoundTrips(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	cfg := world.Config{ID: "w1", Name: "Test World", TurnLimit: 3}
	require.NoError(t, s.SaveWorld(ctx, cfg))

	got, err := s.LoadWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Test World", got.Name)
	assert.Equal(t, 3, got.TurnLimit)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestLoadWorld_MissingReturnsNotFound(t *testing.T) {
	s := memstore.New()
	_, err := s.LoadWorld(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.NotFound))
}

func TestDeleteWorld_CascadesAgentsChatsArchives(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

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

func TestAgentClone_IsIndependentOfStoredCopy(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	a := &world.Agent{ID: "a1", Name: "Alice"}
	require.NoError(t, s.SaveAgent(ctx, "w1", a))

	loaded, err := s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	loaded.Name = "Mutated"

	reloaded, err := s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", reloaded.Name)
}

func TestSaveAgentMemory_ReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.SaveAgent(ctx, "w1", &world.Agent{ID: "a1"}))

	mem := []world.AgentMessage{{Role: world.RoleUser, Content: "hi"}}
	require.NoError(t, s.SaveAgentMemory(ctx, "w1", "a1", mem))

	a, err := s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	require.Len(t, a.Memory, 1)
	assert.Equal(t, "hi", a.Memory[0].Content)

	require.NoError(t, s.SaveAgentMemory(ctx, "w1", "a1", nil))
	a, err = s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	assert.Empty(t, a.Memory)
}

func TestArchiveAgentMemory_ThenExportAndSearch(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	now := time.Now()
	mem := []world.AgentMessage{
		{Role: world.RoleUser, Content: "hello", CreatedAt: now},
		{Role: world.RoleAssistant, Content: "hi there", CreatedAt: now.Add(time.Second)},
	}

	id, err := s.ArchiveAgentMemory(ctx, "w1", "a1", mem, storage.ArchiveMetadata{
		SessionName: "planning session",
		Reason:      "context reset",
		Tags:        []string{"planning"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	found, err := s.SearchArchives(ctx, "w1", "a1", "planning")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 2, found[0].MessageCount)

	notFound, err := s.SearchArchives(ctx, "w1", "a1", "nonexistent-term")
	require.NoError(t, err)
	assert.Empty(t, notFound)

	data, err := s.ExportArchive(ctx, id, storage.ArchiveOptions{Format: "json"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "planning session")

	_, err = s.ExportArchive(ctx, id, storage.ArchiveOptions{Format: "markdown"})
	require.Error(t, err)
	assert.True(t, werrors.OfKind(err, werrors.Validation))
}

func TestValidateIntegrity_FlagsOrphanedToolMessage(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	mem := []world.AgentMessage{
		{Role: world.RoleAssistant, ToolCalls: []world.ToolCall{{ID: "tc1"}}},
		{Role: world.RoleTool, ToolCallID: "tc1", Content: "ok"},
		{Role: world.RoleTool, ToolCallID: "tc-missing", Content: "orphan"},
	}
	require.NoError(t, s.SaveAgent(ctx, "w1", &world.Agent{ID: "a1"}))
	require.NoError(t, s.SaveAgentMemory(ctx, "w1", "a1", mem))

	report, err := s.ValidateIntegrity(ctx, "w1", "a1")
	require.NoError(t, err)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0], "tc-missing")
}

func TestRepairData_DropsOrphanedToolMessages(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	mem := []world.AgentMessage{
		{Role: world.RoleAssistant, ToolCalls: []world.ToolCall{{ID: "tc1"}}},
		{Role: world.RoleTool, ToolCallID: "tc1", Content: "ok"},
		{Role: world.RoleTool, ToolCallID: "tc-missing", Content: "orphan"},
	}
	require.NoError(t, s.SaveAgent(ctx, "w1", &world.Agent{ID: "a1"}))
	require.NoError(t, s.SaveAgentMemory(ctx, "w1", "a1", mem))

	require.NoError(t, s.RepairData(ctx, "w1", "a1"))

	a, err := s.LoadAgent(ctx, "w1", "a1")
	require.NoError(t, err)
	require.Len(t, a.Memory, 2)

	report, err := s.ValidateIntegrity(ctx, "w1", "a1")
	require.NoError(t, err)
	assert.Empty(t, report.Problems)
}

func TestLoadWorldChatFull_FiltersMessagesByChatID(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.SaveWorld(ctx, world.Config{ID: "w1", Name: "W"}))

	a := &world.Agent{ID: "a1", Memory: []world.AgentMessage{
		{Role: world.RoleUser, Content: "in chat 1", ChatID: "c1"},
		{Role: world.RoleUser, Content: "in chat 2", ChatID: "c2"},
	}}
	require.NoError(t, s.SaveAgent(ctx, "w1", a))
	s.AppendChatMessage("w1", "c1", world.AgentMessage{Content: "room msg", ChatID: "c1"})

	wc, err := s.LoadWorldChatFull(ctx, "w1", "c1")
	require.NoError(t, err)
	require.Len(t, wc.Agents, 1)
	require.Len(t, wc.Agents[0].Memory, 1)
	assert.Equal(t, "in chat 1", wc.Agents[0].Memory[0].Content)
	require.Len(t, wc.Messages, 1)
	assert.Equal(t, "room msg", wc.Messages[0].Content)
}

func TestLoadAgentsBatch_SkipsMissingIDs(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.SaveAgentsBatch(ctx, "w1", []*world.Agent{{ID: "a1"}, {ID: "a2"}}))

	got, err := s.LoadAgentsBatch(ctx, "w1", []string{"a1", "missing", "a2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

var _ storage.Store = (*memstore.Store)(nil)
