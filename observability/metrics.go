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

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Metrics registrar.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// SetDefaults fills unset fields with conventional defaults.
func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "agentworld"
	}
}

// Metrics collects Prometheus metrics across the orchestrator, tool
// executor, and LLM provider queue. A nil *Metrics is a valid no-op
// receiver for every Record/Set/Inc/Dec method, so callers never need
// to nil-check before instrumenting a hot path.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	turnErrors    *prometheus.CounterVec
	activeTurns   *prometheus.GaugeVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	queueDepth   prometheus.Gauge
	queueRunning prometheus.Gauge

	messagesPublished *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance from cfg. A nil/disabled cfg
// returns a nil *Metrics.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initTurnMetrics(cfg.Namespace)
	m.initLLMMetrics(cfg.Namespace)
	m.initToolMetrics(cfg.Namespace)
	m.initQueueMetrics(cfg.Namespace)
	m.initMessageMetrics(cfg.Namespace)
	return m, nil
}

func (m *Metrics) initTurnMetrics(ns string) {
	m.turnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "orchestrator", Name: "turns_total",
		Help: "Total number of agent turns started.",
	}, []string{"world_id", "agent_id"})

	m.turnDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "orchestrator", Name: "turn_duration_seconds",
		Help:    "Agent turn duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"world_id", "agent_id"})

	m.turnErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "orchestrator", Name: "turn_errors_total",
		Help: "Total number of agent turns that ended in error.",
	}, []string{"world_id", "agent_id", "error_type"})

	m.activeTurns = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "orchestrator", Name: "active_turns",
		Help: "Number of agent turns currently in progress.",
	}, []string{"world_id"})

	m.registry.MustRegister(m.turnsTotal, m.turnDuration, m.turnErrors, m.activeTurns)
}

func (m *Metrics) initLLMMetrics(ns string) {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "calls_total",
		Help: "Total number of LLM provider stream calls.",
	}, []string{"provider", "model"})

	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "llm", Name: "call_duration_seconds",
		Help:    "LLM provider stream call duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"provider", "model"})

	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "tokens_input_total",
		Help: "Total input tokens consumed.",
	}, []string{"provider", "model"})

	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "tokens_output_total",
		Help: "Total output tokens produced.",
	}, []string{"provider", "model"})

	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "llm", Name: "errors_total",
		Help: "Total number of LLM provider call errors.",
	}, []string{"provider", "model", "error_type"})

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initToolMetrics(ns string) {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations.",
	}, []string{"tool_name"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "tool", Name: "call_duration_seconds",
		Help:    "Tool invocation duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool invocation errors.",
	}, []string{"tool_name"})

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors)
}

func (m *Metrics) initQueueMetrics(ns string) {
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "queue", Name: "queued",
		Help: "Number of LLM calls currently waiting for a queue slot.",
	})
	m.queueRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "queue", Name: "running",
		Help: "Number of LLM calls currently holding a queue slot.",
	})
	m.registry.MustRegister(m.queueDepth, m.queueRunning)
}

func (m *Metrics) initMessageMetrics(ns string) {
	m.messagesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "bus", Name: "messages_published_total",
		Help: "Total number of messages published on a world's message bus.",
	}, []string{"world_id", "sender_kind"})
	m.registry.MustRegister(m.messagesPublished)
}

// RecordTurn records one completed agent turn.
func (m *Metrics) RecordTurn(worldID, agentID string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(worldID, agentID).Inc()
	m.turnDuration.WithLabelValues(worldID, agentID).Observe(d.Seconds())
}

// RecordTurnError records one agent turn that ended in error.
func (m *Metrics) RecordTurnError(worldID, agentID, errType string) {
	if m == nil {
		return
	}
	m.turnErrors.WithLabelValues(worldID, agentID, errType).Inc()
}

// IncActiveTurns/DecActiveTurns track in-flight turns per world.
func (m *Metrics) IncActiveTurns(worldID string) {
	if m == nil {
		return
	}
	m.activeTurns.WithLabelValues(worldID).Inc()
}

func (m *Metrics) DecActiveTurns(worldID string) {
	if m == nil {
		return
	}
	m.activeTurns.WithLabelValues(worldID).Dec()
}

// RecordLLMCall records one provider stream call and its token usage.
func (m *Metrics) RecordLLMCall(provider, model string, d time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(provider, model).Inc()
	m.llmCallDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if inputTokens > 0 {
		m.llmTokensInput.WithLabelValues(provider, model).Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokensOutput.WithLabelValues(provider, model).Add(float64(outputTokens))
	}
}

// RecordLLMError records one provider call error.
func (m *Metrics) RecordLLMError(provider, model, errType string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(provider, model, errType).Inc()
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(toolName string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(d.Seconds())
	if failed {
		m.toolErrors.WithLabelValues(toolName).Inc()
	}
}

// SetQueueStatus publishes the llmprovider.Queue's current depth.
func (m *Metrics) SetQueueStatus(running, queued int) {
	if m == nil {
		return
	}
	m.queueRunning.Set(float64(running))
	m.queueDepth.Set(float64(queued))
}

// RecordMessagePublished records one message published on a world bus.
func (m *Metrics) RecordMessagePublished(worldID, senderKind string) {
	if m == nil {
		return
	}
	m.messagesPublished.WithLabelValues(worldID, senderKind).Inc()
}

// Handler exposes the registered metrics for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
