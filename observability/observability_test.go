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

package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/observability"
)

func TestNewTracer_DisabledReturnsNilWithoutError(t *testing.T) {
	tr, err := observability.NewTracer(context.Background(), &observability.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tr)

	// nil *Tracer methods are no-ops, never panic.
	ctx, done := tr.StartTurn(context.Background(), "w1", "alice")
	assert.NotNil(t, ctx)
	done()
}

func TestNewTracer_StdoutExporterStartsSpans(t *testing.T) {
	tr, err := observability.NewTracer(context.Background(), &observability.TracingConfig{
		Enabled:  true,
		Exporter: "stdout",
	})
	require.NoError(t, err)
	require.NotNil(t, tr)
	defer tr.Shutdown(context.Background())

	ctx, done := tr.StartTurn(context.Background(), "w1", "alice")
	require.NotNil(t, ctx)
	done()

	ctx, done = tr.StartLLMCall(ctx, "alice", "anthropic", "test-model")
	done()

	ctx, done = tr.StartToolExecution(ctx, "shell_cmd")
	done()
}

func TestNewMetrics_DisabledReturnsNilWithoutError(t *testing.T) {
	m, err := observability.NewMetrics(&observability.MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, m)

	// nil *Metrics methods are no-ops, never panic.
	m.RecordTurn("w1", "alice", 0)
	m.RecordLLMCall("anthropic", "test-model", 0, 10, 20)
	m.RecordToolCall("shell_cmd", 0, false)
	m.SetQueueStatus(1, 2)
}

func TestNewMetrics_RegistersAndRecords(t *testing.T) {
	m, err := observability.NewMetrics(&observability.MetricsConfig{Enabled: true, Namespace: "test"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordTurn("w1", "alice", 0)
	m.IncActiveTurns("w1")
	m.DecActiveTurns("w1")
	m.RecordLLMCall("anthropic", "test-model", 0, 10, 20)
	m.RecordLLMError("anthropic", "test-model", "timeout")
	m.RecordToolCall("shell_cmd", 0, true)
	m.SetQueueStatus(1, 2)
	m.RecordMessagePublished("w1", "human")

	metricFamilies, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, metricFamilies)
}
