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

// Package config provides env-first configuration for the Agent-World
// runtime, mirroring pkg/config/env.go and v2/config/dotenv.go's
// load-from-environment style rather than the teacher's YAML service
// graph (worlds and agents here are persisted through storage.Store,
// not declared in a static file).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StorageDriver selects which storage.Store backend the host process
// wires up.
type StorageDriver string

const (
	StorageDriverFile     StorageDriver = "file"
	StorageDriverSQLite   StorageDriver = "sqlite"
	StorageDriverPostgres StorageDriver = "postgres"
	StorageDriverMySQL    StorageDriver = "mysql"
)

// Config is the complete process configuration for an Agent-World
// host. Every field has an AGENT_WORLD_* environment variable and a
// default, resolved by Load.
type Config struct {
	// DataPath is the root directory the file storage backend writes
	// under. Ignored by sqlstore.
	DataPath string

	// SeedFile, if set, points at a worldmanager.SeedDocument YAML file
	// loaded once at startup to bulk-create worlds/agents that don't
	// already exist in storage.
	SeedFile string

	// DefaultTurnLimit holds AGENT_WORLD_TURN_LIMIT. No package in this
	// module reads it: a world created without an explicit limit falls
	// back to world.DefaultTurnLimit.
	DefaultTurnLimit int

	LogLevel string

	StorageDriver StorageDriver
	// DSN is the connection string for sqlite/postgres/mysql. For
	// sqlite it may be a file path; for file storage it is unused.
	DSN string

	// HITLDefaultOption holds the configured HITL default option. No
	// package in this module reads it: toolexec's
	// human_intervention_request tool uses only the default_option
	// argument of each call.
	HITLDefaultOption string

	// ToolIterationCap bounds the orchestrator's tool-call loop per turn.
	ToolIterationCap int

	// HistoryWindow bounds how many prior memory entries are sent to
	// the LLM provider per call.
	HistoryWindow int

	// LLMConcurrency sizes the llmprovider.Queue's semaphore.
	LLMConcurrency int

	Tracing TracingConfig
	Metrics MetricsConfig
}

// TracingConfig mirrors observability.TracingConfig's env-facing shape.
type TracingConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	Insecure     bool
	SamplingRate float64
}

// MetricsConfig mirrors observability.MetricsConfig's env-facing shape.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// SetDefaults fills unset fields with the teacher's conventional
// defaults (pkg/config/env.go's zero-config posture).
func (c *Config) SetDefaults() {
	if c.DataPath == "" {
		c.DataPath = "./data/worlds"
	}
	if c.DefaultTurnLimit <= 0 {
		c.DefaultTurnLimit = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.StorageDriver == "" {
		c.StorageDriver = StorageDriverFile
	}
	if c.HITLDefaultOption == "" {
		c.HITLDefaultOption = "Deny"
	}
	if c.ToolIterationCap <= 0 {
		c.ToolIterationCap = 8
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10
	}
	if c.LLMConcurrency <= 0 {
		c.LLMConcurrency = 4
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.SamplingRate <= 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "agentworld"
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverFile, StorageDriverSQLite, StorageDriverPostgres, StorageDriverMySQL:
	default:
		return fmt.Errorf("invalid storage driver: %s", c.StorageDriver)
	}
	if c.StorageDriver != StorageDriverFile && c.DSN == "" {
		return fmt.Errorf("AGENT_WORLD_DSN is required for storage driver %s", c.StorageDriver)
	}
	if c.DefaultTurnLimit <= 0 {
		return fmt.Errorf("default turn limit must be positive")
	}
	if c.ToolIterationCap <= 0 {
		return fmt.Errorf("tool iteration cap must be positive")
	}
	if c.HistoryWindow <= 0 {
		return fmt.Errorf("history window must be positive")
	}
	if c.LLMConcurrency <= 0 {
		return fmt.Errorf("LLM concurrency must be positive")
	}
	return nil
}

// Load reads AGENT_WORLD_* environment variables into a Config,
// applying defaults and validating the result. Callers that want
// .env file support should call LoadEnvFiles before Load.
func Load() (*Config, error) {
	c := &Config{
		DataPath:          getEnv("AGENT_WORLD_DATA_PATH", ""),
		SeedFile:          getEnv("AGENT_WORLD_SEED_FILE", ""),
		DefaultTurnLimit:  getEnvInt("AGENT_WORLD_TURN_LIMIT", 0),
		LogLevel:          getEnv("AGENT_WORLD_LOG_LEVEL", ""),
		StorageDriver:     StorageDriver(getEnv("AGENT_WORLD_STORAGE_DRIVER", "")),
		DSN:               getEnv("AGENT_WORLD_DSN", ""),
		HITLDefaultOption: getEnv("AGENT_WORLD_HITL_DEFAULT_OPTION", ""),
		ToolIterationCap:  getEnvInt("AGENT_WORLD_TOOL_ITERATION_CAP", 0),
		HistoryWindow:     getEnvInt("AGENT_WORLD_HISTORY_WINDOW", 0),
		LLMConcurrency:    getEnvInt("AGENT_WORLD_LLM_CONCURRENCY", 0),
		Tracing: TracingConfig{
			Enabled:      getEnvBool("AGENT_WORLD_TRACING_ENABLED", false),
			Exporter:     getEnv("AGENT_WORLD_TRACING_EXPORTER", ""),
			Endpoint:     getEnv("AGENT_WORLD_TRACING_ENDPOINT", ""),
			Insecure:     getEnvBool("AGENT_WORLD_TRACING_INSECURE", false),
			SamplingRate: getEnvFloat("AGENT_WORLD_TRACING_SAMPLING_RATE", 0),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvBool("AGENT_WORLD_METRICS_ENABLED", false),
			Namespace: getEnv("AGENT_WORLD_METRICS_NAMESPACE", ""),
		},
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return expandEnvVars(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// DefaultTurnTimeout is a bound on how long a single orchestrator turn
// may run end-to-end; nothing in this module applies it. The teacher's
// PerformanceConfig carried an analogous global Timeout.
const DefaultTurnTimeout = 5 * time.Minute
