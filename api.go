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

package agentworld

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agentworld/agentworld/activity"
	"github.com/agentworld/agentworld/bus"
	"github.com/agentworld/agentworld/llmprovider"
	"github.com/agentworld/agentworld/logger"
	"github.com/agentworld/agentworld/observability"
	"github.com/agentworld/agentworld/orchestrator"
	"github.com/agentworld/agentworld/router"
	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/toolexec"
	"github.com/agentworld/agentworld/world"
	"github.com/agentworld/agentworld/worldmanager"
)

// LLMProvider names the provider a registered llmprovider.Provider is
// resolved by. Concrete SDK clients for these are an external
// collaborator (spec.md §1); the module ships only EchoProvider.
type LLMProvider string

const (
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderOllama    LLMProvider = "ollama"
	ProviderAzure     LLMProvider = "azure"
)

// NewID returns a fresh random identifier, the same generator used
// internally for message and archive ids.
func NewID() string { return uuid.NewString() }

// Host wires storage, the LLM provider queue, the activity tracker,
// the tool executor, the router and the orchestrator into one running
// process. It embeds *worldmanager.Manager, so World/Agent CRUD
// (CreateWorld, GetWorld, CreateAgent, ...) are called directly on a
// *Host; Chat CRUD lives on Host.Store (spec.md §6).
type Host struct {
	*worldmanager.Manager

	Store        storage.Store
	Router       *router.Router
	Orchestrator *orchestrator.Orchestrator

	streaming atomic.Bool
}

// NewHost constructs a Host with streaming enabled by default. metrics
// may be nil (a nil *observability.Metrics is a safe no-op recorder
// everywhere it is threaded through). opts are forwarded to
// orchestrator.New (WithTracer, WithHistoryWindow, ...); WithMetrics is
// applied to both the Router and the Orchestrator automatically.
func NewHost(store storage.Store, registry *llmprovider.Registry, queue *llmprovider.Queue, tracker *activity.Tracker, tools *toolexec.Executor, metrics *observability.Metrics, opts ...orchestrator.Option) *Host {
	h := &Host{
		Store:        store,
		Router:       router.New(store, router.WithMetrics(metrics)),
		Orchestrator: orchestrator.New(registry, queue, tracker, tools, store, append(opts, orchestrator.WithMetrics(metrics))...),
	}
	h.streaming.Store(true)
	h.Manager = worldmanager.New(store, func() world.Emitter { return bus.New() }, h.onMessage)
	return h
}

// EnableStreaming resumes normal router+orchestrator handling of
// incoming messages. Safe to call at any time.
func (h *Host) EnableStreaming() { h.streaming.Store(true) }

// DisableStreaming turns off routing and LLM streaming while leaving
// message persistence (memory append) intact — useful for a host that
// wants pure storage/bus behavior without incurring LLM calls, e.g. in
// tests or during a maintenance window.
func (h *Host) DisableStreaming() { h.streaming.Store(false) }

// Streaming reports whether routing/streaming is currently enabled.
func (h *Host) Streaming() bool { return h.streaming.Load() }

// onMessage is the MessageHandler every auto-subscribed agent runs: it
// records every non-self incoming turn in the agent's memory, then —
// if streaming is enabled and the router decides the agent should act
// — drives one orchestrator turn (spec.md §4.4/§8: an agent must
// remember a turn it silently observed just as much as one it
// answered, but never its own republished reply).
func (h *Host) onMessage(ctx context.Context, w *world.World, a *world.Agent, evt world.MessageEvent) {
	if strings.EqualFold(evt.Sender, a.ID) {
		return
	}
	appendIncoming(ctx, h.Store, w, a, evt)

	if !h.streaming.Load() {
		return
	}
	if !h.Router.ShouldRespond(ctx, w, a, evt) {
		return
	}

	chatID := w.Config.CurrentChatID
	if _, err := h.Orchestrator.StreamAgentResponse(ctx, w, a, chatID, evt); err != nil {
		logger.Get().Error("agent turn failed", "world", w.ID, "agent", a.ID, "error", err)
	}
}

func appendIncoming(ctx context.Context, store storage.Store, w *world.World, a *world.Agent, evt world.MessageEvent) {
	msg := world.AgentMessage{
		Role:             world.RoleUser,
		Content:          evt.Content,
		Sender:           evt.Sender,
		CreatedAt:        evt.Timestamp,
		ChatID:           w.Config.CurrentChatID,
		MessageID:        evt.MessageID,
		ReplyToMessageID: evt.ReplyToMessageID,
	}
	a.Lock()
	a.AppendMemory(msg)
	a.Unlock()
	if err := store.SaveAgentMemory(ctx, w.ID, a.ID, a.Clone().Memory); err != nil {
		logger.Get().Warn("persist incoming message failed", "world", w.ID, "agent", a.ID, "error", err)
	}
}

// PublishMessage publishes content as sender on w's bus, stamping a
// fresh message id and the current time (spec.md §6 PublishMessage).
func PublishMessage(w *world.World, content, sender, replyTo string) world.MessageEvent {
	evt := world.MessageEvent{
		Content:          content,
		Sender:           sender,
		Timestamp:        time.Now(),
		MessageID:        NewID(),
		ReplyToMessageID: replyTo,
	}
	w.Bus.Publish(world.TopicMessage, evt)
	return evt
}

// SubscribeWorld is a read-only facade over a world's bus, for hosts
// (an HTTP/WS server, a CLI) that only want to observe traffic without
// taking on routing/streaming responsibility themselves.
func SubscribeWorld(w *world.World, topic world.Topic, handler func(any)) func() {
	return w.Bus.Subscribe(topic, handler)
}
