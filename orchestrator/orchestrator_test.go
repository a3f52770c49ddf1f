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

package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/activity"
	"github.com/agentworld/agentworld/bus"
	"github.com/agentworld/agentworld/llmprovider"
	"github.com/agentworld/agentworld/orchestrator"
	"github.com/agentworld/agentworld/storage/memstore"
	"github.com/agentworld/agentworld/toolexec"
	"github.com/agentworld/agentworld/world"
)

func newHarness(t *testing.T, provider llmprovider.Provider) (*world.World, *bus.Bus, *orchestrator.Orchestrator, *world.Agent) {
	t.Helper()
	b := bus.New()
	w := world.New(world.Config{ID: "w1", TurnLimit: 5}, b)

	registry := llmprovider.NewRegistry()
	registry.Register(llmprovider.Anthropic, provider)

	tracker := activity.New(nil)
	tools := toolexec.New(nil, &toolexec.SheetMusicAckTool{})
	store := memstore.New()

	orch := orchestrator.New(registry, llmprovider.NewQueue(2), tracker, tools, store)

	a := &world.Agent{ID: "alice", Name: "Alice", Provider: string(llmprovider.Anthropic), Model: "test-model"}
	w.Lock()
	w.PutAgent(a)
	w.Unlock()

	return w, b, orch, a
}

func TestStreamAgentResponse_PlainTextFromHumanPublishesWithoutAutoPrefix(t *testing.T) {
	provider := &llmprovider.EchoProvider{Scripted: []llmprovider.ScriptedResponse{{Text: "hello there"}}}
	w, b, orch, a := newHarness(t, provider)

	var published []world.MessageEvent
	b.Subscribe(world.TopicMessage, func(v any) { published = append(published, v.(world.MessageEvent)) })

	incoming := world.MessageEvent{Content: "@alice hi", Sender: "human"}
	result, err := orch.StreamAgentResponse(context.Background(), w, a, "chat1", incoming)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, published, 1)
	assert.Equal(t, "hello there", published[0].Content)
	assert.Equal(t, "alice", published[0].Sender)

	a.Lock()
	assert.Equal(t, 1, a.LLMCallCount)
	require.Len(t, a.Memory, 1)
	a.Unlock()
}

func TestStreamAgentResponse_ReplyToAgentGetsAutoPrefix(t *testing.T) {
	provider := &llmprovider.EchoProvider{Scripted: []llmprovider.ScriptedResponse{{Text: "hello there"}}}
	w, b, orch, a := newHarness(t, provider)

	var published []world.MessageEvent
	b.Subscribe(world.TopicMessage, func(v any) { published = append(published, v.(world.MessageEvent)) })

	incoming := world.MessageEvent{Content: "@alice hi", Sender: "bob"}
	result, err := orch.StreamAgentResponse(context.Background(), w, a, "chat1", incoming)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, published, 1)
	assert.Equal(t, "@bob hello there", published[0].Content)
	assert.Equal(t, "alice", published[0].Sender)
}

func TestStreamAgentResponse_AutoPrefixSkippedWhenMentionPresent(t *testing.T) {
	provider := &llmprovider.EchoProvider{Scripted: []llmprovider.ScriptedResponse{{Text: "@bob already mentioned you"}}}
	w, b, orch, a := newHarness(t, provider)

	var published []world.MessageEvent
	b.Subscribe(world.TopicMessage, func(v any) { published = append(published, v.(world.MessageEvent)) })

	incoming := world.MessageEvent{Content: "@alice hi", Sender: "bob"}
	_, err := orch.StreamAgentResponse(context.Background(), w, a, "chat1", incoming)
	require.NoError(t, err)

	require.Len(t, published, 1)
	assert.Equal(t, 1, countOccurrences(published[0].Content, "@bob"))
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}

func TestStreamAgentResponse_PassCommandSuppressesAndPublishesSystemMessage(t *testing.T) {
	provider := &llmprovider.EchoProvider{Scripted: []llmprovider.ScriptedResponse{{Text: "I think <world>pass</world> is right."}}}
	w, b, orch, a := newHarness(t, provider)

	var published []world.MessageEvent
	b.Subscribe(world.TopicMessage, func(v any) { published = append(published, v.(world.MessageEvent)) })

	incoming := world.MessageEvent{Content: "@alice go", Sender: "human"}
	result, err := orch.StreamAgentResponse(context.Background(), w, a, "chat1", incoming)
	require.NoError(t, err)
	assert.Nil(t, result)

	require.Len(t, published, 1)
	assert.Equal(t, "system", published[0].Sender)
	assert.Contains(t, published[0].Content, "alice is passing control to you")
}

func TestStreamAgentResponse_ToolRoundTrip(t *testing.T) {
	provider := &llmprovider.EchoProvider{Scripted: []llmprovider.ScriptedResponse{
		{ToolCalls: []world.ToolCall{{ID: "tc1", Function: world.ToolCallFunction{Name: "sheet_music_ack", Arguments: `{"title":"Fur Elise"}`}}}},
		{Text: "done acknowledging"},
	}}
	w, b, orch, a := newHarness(t, provider)

	var sse []world.SSEEvent
	b.Subscribe(world.TopicSSE, func(v any) { sse = append(sse, v.(world.SSEEvent)) })

	incoming := world.MessageEvent{Content: "@alice ack it", Sender: "human"}
	result, err := orch.StreamAgentResponse(context.Background(), w, a, "chat1", incoming)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.Content, "done acknowledging")

	var sawToolStart, sawToolEnd bool
	for _, e := range sse {
		if e.Type == world.SSEToolStart {
			sawToolStart = true
		}
		if e.Type == world.SSEToolEnd {
			sawToolEnd = true
			assert.Equal(t, "succeeded", e.ToolExecution.Phase)
		}
	}
	assert.True(t, sawToolStart)
	assert.True(t, sawToolEnd)

	a.Lock()
	defer a.Unlock()
	assert.Equal(t, 2, a.LLMCallCount)
}

func TestStreamAgentResponse_ToolIterationCapStopsLoop(t *testing.T) {
	var scripted []llmprovider.ScriptedResponse
	for i := 0; i < 10; i++ {
		scripted = append(scripted, llmprovider.ScriptedResponse{
			ToolCalls: []world.ToolCall{{ID: "tc", Function: world.ToolCallFunction{Name: "sheet_music_ack", Arguments: `{"title":"x"}`}}},
		})
	}
	provider := &llmprovider.EchoProvider{Scripted: scripted}
	w, b, _, a := newHarness(t, provider)

	registry := llmprovider.NewRegistry()
	registry.Register(llmprovider.Anthropic, provider)
	tracker := activity.New(nil)
	tools := toolexec.New(nil, &toolexec.SheetMusicAckTool{})
	orch := orchestrator.New(registry, llmprovider.NewQueue(2), tracker, tools, memstore.New(), orchestrator.WithToolIterationCap(3))

	var sse []world.SSEEvent
	b.Subscribe(world.TopicSSE, func(v any) { sse = append(sse, v.(world.SSEEvent)) })

	incoming := world.MessageEvent{Content: "@alice loop", Sender: "human"}
	_, err := orch.StreamAgentResponse(context.Background(), w, a, "chat1", incoming)
	require.NoError(t, err)

	var sawLoopError bool
	for _, e := range sse {
		if e.Type == world.SSEError && e.Error == "tool-call loop exceeded" {
			sawLoopError = true
		}
	}
	assert.True(t, sawLoopError)
}
