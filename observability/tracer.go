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

// Package observability wires OpenTelemetry tracing and Prometheus
// metrics for the orchestrator and tool executor, adapted from
// v2/observability/tracer.go's span-helper style and
// pkg/observability/metrics.go's registration pattern. The OTLP
// exporter here uses otlptracehttp rather than the teacher's
// otlptracegrpc to avoid the heavier gRPC/protobuf dependency chain for
// a module that otherwise has no other gRPC surface (documented in
// DESIGN.md).
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig configures the Tracer (spec.md's ambient observability
// stack, carried regardless of the spec's own Non-goals since it is an
// ambient concern, not a feature).
type TracingConfig struct {
	Enabled      bool
	Exporter     string // "stdout" | "otlp"
	Endpoint     string // required for "otlp"
	Insecure     bool
	ServiceName  string
	SamplingRate float64
	Timeout      time.Duration
}

// SetDefaults fills unset fields with the teacher's conventional
// defaults.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "agentworld"
	}
	if c.SamplingRate <= 0 {
		c.SamplingRate = 1.0
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Exporter == "" {
		c.Exporter = "stdout"
	}
}

// Tracer wraps an OTel TracerProvider with the span helpers the
// orchestrator and tool executor need (orchestrator.Tracer,
// toolexec's optional tracing hook).
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer from cfg. A nil/disabled cfg returns a nil
// *Tracer, which every method below treats as a no-op.
func NewTracer(ctx context.Context, cfg *TracingConfig) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: create exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

func createExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		return createOTLPExporter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

func createOTLPExporter(ctx context.Context, cfg *TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	client := otlptracehttp.NewClient(opts...)
	return otlptrace.New(ctx, client)
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	if t == nil || t.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// StartTurn begins the top-level span for one agent turn
// (orchestrator.Tracer).
func (t *Tracer) StartTurn(ctx context.Context, worldID, agentID string) (context.Context, func()) {
	return t.start(ctx, "agentworld.orchestrator.turn",
		attribute.String("agentworld.world_id", worldID),
		attribute.String("agentworld.agent_id", agentID),
	)
}

// StartLLMCall begins a child span for one provider stream call
// (orchestrator.Tracer).
func (t *Tracer) StartLLMCall(ctx context.Context, agentID, provider, model string) (context.Context, func()) {
	return t.start(ctx, "agentworld.orchestrator.llm_call",
		attribute.String("agentworld.agent_id", agentID),
		attribute.String("gen_ai.system", provider),
		attribute.String("gen_ai.request.model", model),
	)
}

// StartToolExecution begins a child span for one tool call
// (orchestrator.Tracer, toolexec).
func (t *Tracer) StartToolExecution(ctx context.Context, toolName string) (context.Context, func()) {
	return t.start(ctx, "agentworld.tool.execute",
		attribute.String("agentworld.tool_name", toolName),
	)
}

// Shutdown flushes and stops the underlying TracerProvider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
