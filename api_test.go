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

package agentworld_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld"
	"github.com/agentworld/agentworld/activity"
	"github.com/agentworld/agentworld/llmprovider"
	"github.com/agentworld/agentworld/storage/memstore"
	"github.com/agentworld/agentworld/toolexec"
	"github.com/agentworld/agentworld/world"
	"github.com/agentworld/agentworld/worldmanager"
)

func newHost(t *testing.T, provider llmprovider.Provider) (*agentworld.Host, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	registry := llmprovider.NewRegistry()
	registry.Register(llmprovider.Anthropic, provider)
	queue := llmprovider.NewQueue(2)
	tracker := activity.New(queue)
	tools := toolexec.New(nil, &toolexec.SheetMusicAckTool{})
	return agentworld.NewHost(store, registry, queue, tracker, tools, nil), store
}

func TestHost_OnMessage_RoutesAndStreamsWhenMentioned(t *testing.T) {
	ctx := context.Background()
	provider := &llmprovider.EchoProvider{Scripted: []llmprovider.ScriptedResponse{{Text: "hi back"}}}
	host, _ := newHost(t, provider)

	w, err := host.CreateWorld(ctx, worldmanager.CreateWorldParams{ID: "w1", Name: "World", TurnLimit: 5})
	require.NoError(t, err)
	_, err = host.CreateAgent(ctx, w.ID, worldmanager.CreateAgentParams{ID: "alice", Name: "Alice", Provider: string(llmprovider.Anthropic), Model: "test-model"})
	require.NoError(t, err)

	w, err = host.GetWorld(ctx, w.ID)
	require.NoError(t, err)

	var published []world.MessageEvent
	agentworld.SubscribeWorld(w, world.TopicMessage, func(v any) { published = append(published, v.(world.MessageEvent)) })

	agentworld.PublishMessage(w, "@alice hello", "human", "")

	// alice's reply is published from inside her handler, so it reaches
	// this later subscriber before the human's own message does.
	require.Len(t, published, 2)
	assert.Contains(t, published[0].Content, "hi back")
	assert.Equal(t, "alice", published[0].Sender)
	assert.Equal(t, "human", published[1].Sender)
}

func TestHost_DisableStreaming_StillPersistsMemoryButSkipsReply(t *testing.T) {
	ctx := context.Background()
	provider := &llmprovider.EchoProvider{Scripted: []llmprovider.ScriptedResponse{{Text: "should not be sent"}}}
	host, store := newHost(t, provider)

	w, err := host.CreateWorld(ctx, worldmanager.CreateWorldParams{ID: "w1", Name: "World", TurnLimit: 5})
	require.NoError(t, err)
	_, err = host.CreateAgent(ctx, w.ID, worldmanager.CreateAgentParams{ID: "alice", Name: "Alice", Provider: string(llmprovider.Anthropic), Model: "test-model"})
	require.NoError(t, err)

	w, err = host.GetWorld(ctx, w.ID)
	require.NoError(t, err)

	host.DisableStreaming()
	assert.False(t, host.Streaming())

	var published []world.MessageEvent
	agentworld.SubscribeWorld(w, world.TopicMessage, func(v any) { published = append(published, v.(world.MessageEvent)) })

	agentworld.PublishMessage(w, "@alice hello", "human", "")
	require.Len(t, published, 1)
	assert.Equal(t, "human", published[0].Sender)

	stored, err := store.LoadAgent(ctx, w.ID, "alice")
	require.NoError(t, err)
	require.Len(t, stored.Memory, 1)
	assert.Equal(t, "@alice hello", stored.Memory[0].Content)
}
