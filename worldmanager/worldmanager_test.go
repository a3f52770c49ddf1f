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

package worldmanager_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/bus"
	"github.com/agentworld/agentworld/storage/memstore"
	"github.com/agentworld/agentworld/world"
	"github.com/agentworld/agentworld/worldmanager"
)

func newManager(onMsg worldmanager.MessageHandler) (*worldmanager.Manager, *memstore.Store) {
	store := memstore.New()
	m := worldmanager.New(store, func() world.Emitter { return bus.New() }, onMsg)
	return m, store
}

func TestCreateWorld_PersistsAndReturnsRuntimeWorld(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(nil)

	w, err := m.CreateWorld(ctx, worldmanager.CreateWorldParams{Name: "My World", TurnLimit: 3})
	require.NoError(t, err)
	assert.Equal(t, "my-world", w.ID)

	cfg, err := store.LoadWorld(ctx, "my-world")
	require.NoError(t, err)
	assert.Equal(t, "My World", cfg.Name)
}

func TestCreateWorld_DuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(nil)

	_, err := m.CreateWorld(ctx, worldmanager.CreateWorldParams{Name: "dup"})
	require.NoError(t, err)

	_, err = m.CreateWorld(ctx, worldmanager.CreateWorldParams{Name: "dup"})
	require.Error(t, err)
}

func TestGetWorld_RebuildsRosterAndAutoSubscribes(t *testing.T) {
	ctx := context.Background()
	var delivered []string
	m, store := newManager(func(ctx context.Context, w *world.World, a *world.Agent, evt world.MessageEvent) {
		delivered = append(delivered, a.ID)
	})

	require.NoError(t, store.SaveWorld(ctx, world.Config{ID: "w1"}))
	require.NoError(t, store.SaveAgent(ctx, "w1", &world.Agent{ID: "alice", Name: "Alice"}))
	require.NoError(t, store.SaveAgent(ctx, "w1", &world.Agent{ID: "bob", Name: "Bob"}))

	w, err := m.GetWorld(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, w.Agents(), 2)

	w.Bus.Publish(world.TopicMessage, world.MessageEvent{Content: "hi", Sender: "human"})
	assert.ElementsMatch(t, []string{"alice", "bob"}, delivered)
}

func TestGetWorld_ReloadUnsubscribesPreviousHandlers(t *testing.T) {
	ctx := context.Background()
	callCount := 0
	m, store := newManager(func(ctx context.Context, w *world.World, a *world.Agent, evt world.MessageEvent) {
		callCount++
	})

	require.NoError(t, store.SaveWorld(ctx, world.Config{ID: "w1"}))
	require.NoError(t, store.SaveAgent(ctx, "w1", &world.Agent{ID: "alice", Name: "Alice"}))

	firstWorld, err := m.GetWorld(ctx, "w1")
	require.NoError(t, err)

	_, err = m.GetWorld(ctx, "w1")
	require.NoError(t, err)

	// The first world's bus should no longer deliver to the manager's
	// handler after reload rebuilt the roster on a fresh bus.
	firstWorld.Bus.Publish(world.TopicMessage, world.MessageEvent{Content: "stale", Sender: "human"})
	assert.Equal(t, 0, callCount)
}

func TestDeleteWorld_RemovesFromStorageAndRuntime(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(nil)

	_, err := m.CreateWorld(ctx, worldmanager.CreateWorldParams{Name: "gone"})
	require.NoError(t, err)

	require.NoError(t, m.DeleteWorld(ctx, "gone"))

	_, err = store.LoadWorld(ctx, "gone")
	assert.Error(t, err)
}

func TestCreateAgent_InsertsIntoLiveRosterWhenWorldLoaded(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(nil)

	w, err := m.CreateWorld(ctx, worldmanager.CreateWorldParams{Name: "w1"})
	require.NoError(t, err)

	a, err := m.CreateAgent(ctx, w.ID, worldmanager.CreateAgentParams{Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", a.ID)

	live, ok := w.Agent("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", live.Name)
}

func TestGetAgent_FallsBackToKebabCase(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(nil)
	require.NoError(t, store.SaveWorld(ctx, world.Config{ID: "w1"}))
	require.NoError(t, store.SaveAgent(ctx, "w1", &world.Agent{ID: "my-agent", Name: "My Agent"}))

	a, err := m.GetAgent(ctx, "w1", "My Agent")
	require.NoError(t, err)
	assert.Equal(t, "my-agent", a.ID)
}

func TestClearAgentMemory_ArchivesThenTruncates(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(nil)
	require.NoError(t, store.SaveWorld(ctx, world.Config{ID: "w1"}))
	agent := &world.Agent{ID: "alice", Name: "Alice", Memory: []world.AgentMessage{{Role: world.RoleUser, Content: "hi"}}}
	require.NoError(t, store.SaveAgent(ctx, "w1", agent))

	archiveID, err := m.ClearAgentMemory(ctx, "w1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, archiveID)

	archives, err := store.SearchArchives(ctx, "w1", "alice", "")
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, "manual_clear", archives[0].Reason)

	reloaded, err := store.LoadAgent(ctx, "w1", "alice")
	require.NoError(t, err)
	assert.Empty(t, reloaded.Memory)
}
