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

// Package router implements shouldAgentRespond (spec.md §4.4): the
// authoritative decision of whether an agent reacts to an incoming
// WorldMessageEvent, plus its side effects (turn-limit broadcast,
// best-effort counter reset/persist). Grounded in the retrieval pack's
// team package's orchestration-by-state-machine style, generalized from
// a fixed team roster to mention-routed worlds.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentworld/agentworld/logger"
	"github.com/agentworld/agentworld/mention"
	"github.com/agentworld/agentworld/observability"
	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/world"
)

// Router decides whether agents respond to incoming messages and
// carries the storage handle needed for best-effort counter persistence.
type Router struct {
	store   storage.Store
	log     *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithMetrics attaches a Prometheus Metrics recorder. A nil *Metrics is
// a safe no-op receiver, so this is also safe to call with nil.
func WithMetrics(m *observability.Metrics) Option { return func(r *Router) { r.metrics = m } }

// New creates a Router. store may be nil, in which case counter resets
// are applied in-memory only (no persistence attempted).
func New(store storage.Store, opts ...Option) *Router {
	r := &Router{store: store, log: logger.Get()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const turnLimitMarker = "Turn limit reached"

// ShouldRespond implements the seven-step decision in spec.md §4.4.
// Every non-self message is appended to the agent's memory before this
// is called, regardless of the returned decision — that append is the
// caller's responsibility (orchestrator/worldmanager), not this
// package's, since it happens unconditionally for both outcomes.
func (r *Router) ShouldRespond(ctx context.Context, w *world.World, a *world.Agent, evt world.MessageEvent) bool {
	// 1. never self-reply.
	if strings.EqualFold(evt.Sender, a.ID) {
		return false
	}

	// 2. loop breaker.
	if strings.Contains(evt.Content, turnLimitMarker) {
		return false
	}

	// 3. turn-limit enforcement.
	limit := mention.GetWorldTurnLimit(w.Config)
	a.Lock()
	callCount := a.LLMCallCount
	a.Unlock()
	if callCount >= limit {
		r.publishTurnLimitNotice(w, a, limit)
		return false
	}

	// 4. HUMAN/SYSTEM resets the counter — strictly after the step-3
	// rejection check, so a human ping landing exactly at the boundary
	// yields the turn-limit message without a reset (spec.md §9 open
	// question, decided in favor of the source's original ordering).
	senderType := mention.DetermineSenderType(evt.Sender)
	if (senderType == mention.SenderHuman || senderType == mention.SenderSystem) && callCount > 0 {
		r.resetCallCount(ctx, w, a)
	}

	// 5. unattributed or explicit "system" sender always gets through.
	if evt.Sender == "" || strings.EqualFold(evt.Sender, "system") {
		return true
	}

	mentions := mention.ExtractMentions(evt.Content)
	nameLower := strings.ToLower(a.Name)

	// 6. HUMAN sender: broadcast when unmentioned, else mention-gated.
	if senderType == mention.SenderHuman {
		if len(mentions) == 0 {
			return true
		}
		return mentions[0] == nameLower
	}

	// 7. AGENT sender: mention-gated only.
	if len(mentions) == 0 {
		return false
	}
	return mentions[0] == nameLower
}

func (r *Router) publishTurnLimitNotice(w *world.World, a *world.Agent, limit int) {
	content := fmt.Sprintf("@human Turn limit reached (%d LLM calls). Please take control of the conversation.", limit)
	if w.Bus == nil {
		return
	}
	w.Bus.Publish(world.TopicMessage, world.MessageEvent{
		Content:   content,
		Sender:    a.ID,
		Timestamp: time.Now(),
		MessageID: uuid.NewString(),
	})
	r.metrics.RecordMessagePublished(w.ID, string(mention.SenderAgent))
}

func (r *Router) resetCallCount(ctx context.Context, w *world.World, a *world.Agent) {
	a.Lock()
	a.LLMCallCount = 0
	a.Unlock()

	if r.store == nil {
		return
	}
	if err := r.store.SaveAgent(ctx, w.ID, a); err != nil {
		r.log.Warn("router: failed to persist agent turn-counter reset",
			"world", w.ID, "agent", a.ID, "error", err)
	}
}
