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

// Package orchestrator implements streamAgentResponse (spec.md §4.5):
// provider-agnostic streaming, tool-call detection and the round-trip
// loop, SSE fan-out, the pass-command and auto-@-prefix rules of
// spec.md §6, and OTel tracing spans. Grounded in the retrieval pack's
// v2/model/aggregator.go streaming-aggregation style and
// v2/observability/tracer.go's span helpers.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentworld/agentworld/activity"
	"github.com/agentworld/agentworld/llmprovider"
	"github.com/agentworld/agentworld/logger"
	"github.com/agentworld/agentworld/mention"
	"github.com/agentworld/agentworld/observability"
	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/toolexec"
	"github.com/agentworld/agentworld/world"
)

// DefaultHistoryWindow is N in spec.md §4.5 step 2: the last N memory
// entries are appended as history ahead of the current turn.
const DefaultHistoryWindow = 10

// DefaultToolIterationCap bounds the tool-call round-trip loop
// (spec.md §4.5 step 7).
const DefaultToolIterationCap = 8

var passCommandPattern = regexp.MustCompile(`(?i)<world>pass</world>`)

// Result is what streamAgentResponse returns on a successful,
// non-suppressed turn.
type Result struct {
	Content          string
	AssistantMessage world.AgentMessage
	Usage            *world.Usage
}

// Orchestrator drives one agent's LLM turn: provider resolution,
// streaming, tool dispatch and the publish-time text transforms.
type Orchestrator struct {
	providers   *llmprovider.Registry
	queue       *llmprovider.Queue
	tracker     *activity.Tracker
	tools       *toolexec.Executor
	store       storage.Store
	historyN    int
	toolIterCap int
	log         *slog.Logger
	tracer      Tracer
	metrics     *observability.Metrics
}

// Tracer is the subset of OTel span-starting behavior the orchestrator
// needs; observability.Tracer implements it. A nil Tracer disables
// tracing.
type Tracer interface {
	StartTurn(ctx context.Context, worldID, agentID string) (context.Context, func())
	StartLLMCall(ctx context.Context, agentID, provider, model string) (context.Context, func())
	StartToolExecution(ctx context.Context, toolName string) (context.Context, func())
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithHistoryWindow overrides DefaultHistoryWindow.
func WithHistoryWindow(n int) Option { return func(o *Orchestrator) { o.historyN = n } }

// WithToolIterationCap overrides DefaultToolIterationCap.
func WithToolIterationCap(n int) Option { return func(o *Orchestrator) { o.toolIterCap = n } }

// WithTracer attaches a Tracer; omit for no-op tracing.
func WithTracer(t Tracer) Option { return func(o *Orchestrator) { o.tracer = t } }

// WithMetrics attaches a Prometheus Metrics recorder. A nil *Metrics is
// a safe no-op receiver, so this is also safe to call with nil.
func WithMetrics(m *observability.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// New creates an Orchestrator.
func New(providers *llmprovider.Registry, queue *llmprovider.Queue, tracker *activity.Tracker, tools *toolexec.Executor, store storage.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers:   providers,
		queue:       queue,
		tracker:     tracker,
		tools:       tools,
		store:       store,
		historyN:    DefaultHistoryWindow,
		toolIterCap: DefaultToolIterationCap,
		log:         logger.Get(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StreamAgentResponse implements spec.md §4.5 end to end: it composes
// the prompt, opens an Activity scope, streams from the agent's
// provider, executes any tool calls and loops, then applies the
// pass-command/auto-@-prefix transforms before publishing the final
// assistant message on the world's message bus.
//
// incoming is the WorldMessageEvent that triggered this turn; chatID
// scopes tool approval caching. Returns the Result of the final
// non-suppressed turn, or a nil Result if the turn was suppressed by
// the pass command.
func (o *Orchestrator) StreamAgentResponse(ctx context.Context, w *world.World, a *world.Agent, chatID string, incoming world.MessageEvent) (result *Result, err error) {
	if o.tracer != nil {
		var end func()
		ctx, end = o.tracer.StartTurn(ctx, w.ID, a.ID)
		defer end()
	}

	end := o.tracker.Begin(w, "agent:"+a.ID)
	defer end()

	turnStart := time.Now()
	o.metrics.IncActiveTurns(w.ID)
	defer func() {
		o.metrics.DecActiveTurns(w.ID)
		o.metrics.RecordTurn(w.ID, a.ID, time.Since(turnStart))
		if err != nil {
			o.metrics.RecordTurnError(w.ID, a.ID, "stream")
		}
	}()

	messageID := uuid.NewString()

	provider, ok := o.providers.Resolve(llmprovider.Name(a.Provider))
	if !ok {
		o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEError, Error: fmt.Sprintf("unknown provider: %s", a.Provider), MessageID: messageID})
		return nil, fmt.Errorf("orchestrator: unknown provider %q for agent %s", a.Provider, a.ID)
	}

	messages := o.composeMessages(a, incoming)

	var lastContent string
	for iteration := 0; ; iteration++ {
		if iteration >= o.toolIterCap {
			o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEError, Error: "tool-call loop exceeded", MessageID: messageID})
			return o.finalize(w, a, chatID, messages, lastContent, messageID, incoming)
		}

		content, toolCalls, usage, streamErr := o.streamOnce(ctx, w, a, provider, messages, messageID, iteration == 0)
		lastContent = content
		if streamErr != nil {
			o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEError, Error: streamErr.Error(), MessageID: messageID})
			return nil, streamErr
		}

		if len(toolCalls) == 0 {
			o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEEnd, MessageID: messageID, Usage: usage})
			return o.finalize(w, a, chatID, messages, content, messageID, incoming)
		}

		valid, malformed := toolexec.Validate(toolCalls)
		for _, m := range malformed {
			o.publishSSE(w, m.SSE)
		}

		assistantMsg := world.AgentMessage{
			Role:      world.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
			CreatedAt: time.Now(),
			ChatID:    chatID,
			MessageID: messageID,
		}
		messages = append(messages, llmprovider.ChatMessage{Role: assistantMsg.Role, Content: assistantMsg.Content, ToolCalls: assistantMsg.ToolCalls})

		for _, call := range valid {
			o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEToolStart, MessageID: messageID,
				ToolExecution: &world.ToolExecutionInfo{ToolName: call.Function.Name, ToolCallID: call.ID, Phase: "started"}})

			toolCtx := ctx
			var toolEnd func()
			if o.tracer != nil {
				toolCtx, toolEnd = o.tracer.StartToolExecution(ctx, call.Function.Name)
			}
			toolStart := time.Now()
			toolMsg := o.tools.Execute(toolCtx, chatID, call)
			if toolEnd != nil {
				toolEnd()
			}
			toolMsg.ChatID = chatID
			messages = append(messages, llmprovider.ChatMessage{Role: toolMsg.Role, Content: toolMsg.Content, ToolCallID: toolMsg.ToolCallID})

			phase := "succeeded"
			var toolErr string
			failed := strings.HasPrefix(toolMsg.Content, "Error:")
			if failed {
				phase = "failed"
				toolErr = toolMsg.Content
			}
			o.metrics.RecordToolCall(call.Function.Name, time.Since(toolStart), failed)
			o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEToolEnd, MessageID: messageID,
				ToolExecution: &world.ToolExecutionInfo{ToolName: call.Function.Name, ToolCallID: call.ID, Phase: phase, Error: toolErr}})
		}

		// loop back to stream again with the extended message list
		for _, m := range malformed {
			messages = append(messages, llmprovider.ChatMessage{Role: m.Message.Role, Content: m.Message.Content, ToolCallID: m.Message.ToolCallID})
		}
	}
}

func (o *Orchestrator) composeMessages(a *world.Agent, incoming world.MessageEvent) []llmprovider.ChatMessage {
	var out []llmprovider.ChatMessage

	a.Lock()
	history := a.Memory
	if len(history) > o.historyN {
		history = history[len(history)-o.historyN:]
	}
	for _, m := range history {
		out = append(out, llmprovider.ChatMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, ToolCalls: m.ToolCalls})
	}
	a.Unlock()

	out = append(out, llmprovider.ChatMessage{Role: world.RoleUser, Content: incoming.Content, Sender: incoming.Sender})
	return out
}

// streamOnce runs one stream call against provider. emitStart gates the
// sse{type:start} event: it fires only on a turn's first iteration, so
// a multi-iteration tool round-trip under one messageId still produces
// the single start required by spec.md §5 ordering invariant (b) and
// scenario 5 (start, chunk*, (tool-start, tool-end)*, end|error) rather
// than one start per loop iteration.
func (o *Orchestrator) streamOnce(ctx context.Context, w *world.World, a *world.Agent, provider llmprovider.Provider, messages []llmprovider.ChatMessage, messageID string, emitStart bool) (string, []world.ToolCall, *world.Usage, error) {
	if o.tracer != nil {
		var end func()
		ctx, end = o.tracer.StartLLMCall(ctx, a.ID, a.Provider, a.Model)
		defer end()
	}

	if emitStart {
		o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEStart, MessageID: messageID})
	}

	var content strings.Builder
	var toolCalls []world.ToolCall
	var usage *world.Usage

	llmStart := time.Now()
	err := o.queue.Acquire(ctx, func(ctx context.Context) error {
		o.reportQueueStatus()
		req := llmprovider.Request{Messages: messages, Model: a.Model, SystemPrompt: a.SystemPrompt, Temperature: a.Temperature, MaxTokens: a.MaxTokens}
		return provider.Stream(ctx, req, func(chunk llmprovider.Chunk) error {
			switch chunk.Kind {
			case llmprovider.ChunkTextDelta:
				content.WriteString(chunk.Delta)
				o.publishSSE(w, world.SSEEvent{AgentName: a.ID, Type: world.SSEChunk, Content: chunk.Delta, MessageID: messageID})
			case llmprovider.ChunkToolUse:
				toolCalls = append(toolCalls, chunk.Tool)
			case llmprovider.ChunkUsage:
				usage = chunk.Usage
			}
			return nil
		})
	})
	o.reportQueueStatus()

	a.Lock()
	a.LLMCallCount++
	a.LastLLMCall = time.Now()
	a.Unlock()

	if err != nil {
		o.metrics.RecordLLMError(a.Provider, a.Model, "stream")
		return "", nil, nil, err
	}

	inputTokens, outputTokens := 0, 0
	if usage != nil {
		inputTokens, outputTokens = usage.PromptTokens, usage.CompletionTokens
	}
	o.metrics.RecordLLMCall(a.Provider, a.Model, time.Since(llmStart), inputTokens, outputTokens)
	return content.String(), toolCalls, usage, nil
}

// reportQueueStatus publishes the llmprovider.Queue's current depth to
// the Prometheus queue gauges (spec.md §5 "LLM queue").
func (o *Orchestrator) reportQueueStatus() {
	status := o.queue.Status()
	o.metrics.SetQueueStatus(status.Running, status.Queued)
}

// finalize applies the pass-command and auto-@-prefix transforms
// (spec.md §6), publishes the resulting message (or the system
// pass-through message), persists memory, and returns the Result.
//
// The auto-@-prefix only fires when an agent replies to another
// agent — spec.md §6 scopes it to agent-to-agent replies, not replies
// to a human or system sender.
func (o *Orchestrator) finalize(w *world.World, a *world.Agent, chatID string, messages []llmprovider.ChatMessage, content, messageID string, incoming world.MessageEvent) (*Result, error) {
	assistantMsg := world.AgentMessage{
		Role:      world.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
		ChatID:    chatID,
		MessageID: messageID,
		Sender:    a.ID,
	}

	a.Lock()
	a.AppendMemory(assistantMsg)
	a.Unlock()
	o.persistMemory(w, a)

	if passCommandPattern.MatchString(content) {
		passMsg := world.MessageEvent{
			Content:   fmt.Sprintf("@human %s is passing control to you", a.ID),
			Sender:    "system",
			Timestamp: time.Now(),
			MessageID: uuid.NewString(),
		}
		if w.Bus != nil {
			w.Bus.Publish(world.TopicMessage, passMsg)
		}
		o.metrics.RecordMessagePublished(w.ID, string(mention.SenderSystem))
		return nil, nil
	}

	published := content
	if incoming.Sender != "" && mention.DetermineSenderType(incoming.Sender) == mention.SenderAgent &&
		!strings.Contains(strings.ToLower(published), strings.ToLower("@"+incoming.Sender)) {
		published = fmt.Sprintf("@%s %s", incoming.Sender, published)
	}

	if w.Bus != nil {
		w.Bus.Publish(world.TopicMessage, world.MessageEvent{
			Content:          published,
			Sender:           a.ID,
			Timestamp:        time.Now(),
			MessageID:        uuid.NewString(),
			ReplyToMessageID: incoming.MessageID,
		})
	}
	o.metrics.RecordMessagePublished(w.ID, string(mention.SenderAgent))

	return &Result{Content: published, AssistantMessage: assistantMsg}, nil
}

func (o *Orchestrator) persistMemory(w *world.World, a *world.Agent) {
	if o.store == nil {
		return
	}
	a.Lock()
	mem := make([]world.AgentMessage, len(a.Memory))
	copy(mem, a.Memory)
	a.Unlock()
	if err := o.store.SaveAgentMemory(context.Background(), w.ID, a.ID, mem); err != nil {
		o.log.Warn("orchestrator: failed to persist agent memory", "world", w.ID, "agent", a.ID, "error", err)
	}
}

func (o *Orchestrator) publishSSE(w *world.World, evt world.SSEEvent) {
	if w.Bus == nil {
		return
	}
	if evt.MessageID == "" {
		evt.MessageID = uuid.NewString()
	}
	w.Bus.Publish(world.TopicSSE, evt)
}
