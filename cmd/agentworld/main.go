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

// Command agentworld hosts the Agent-World runtime as a single process:
// it wires storage, the LLM provider registry, tracing/metrics, and the
// world manager, then keeps the process alive until interrupted. The
// HTTP/WebSocket front door and CLI subcommands the teacher's cmd/hector
// exposed are an external collaborator (spec.md §1); this binary only
// implements the host-process wiring those surfaces would sit on top of.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentworld/agentworld"
	"github.com/agentworld/agentworld/activity"
	"github.com/agentworld/agentworld/config"
	"github.com/agentworld/agentworld/llmprovider"
	"github.com/agentworld/agentworld/logger"
	"github.com/agentworld/agentworld/observability"
	"github.com/agentworld/agentworld/orchestrator"
	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/storage/filestore"
	"github.com/agentworld/agentworld/storage/sqlstore"
	"github.com/agentworld/agentworld/toolexec"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "agentworld:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Init(level, os.Stderr)
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	tracer, err := observability.NewTracer(ctx, &observability.TracingConfig{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		Endpoint:     cfg.Tracing.Endpoint,
		Insecure:     cfg.Tracing.Insecure,
		ServiceName:  "agentworld",
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	if tracer != nil {
		defer tracer.Shutdown(context.Background())
	}

	metrics, err := observability.NewMetrics(&observability.MetricsConfig{
		Enabled:   cfg.Metrics.Enabled,
		Namespace: cfg.Metrics.Namespace,
	})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if metrics != nil {
		log.Info("metrics enabled", "namespace", cfg.Metrics.Namespace)
	}

	registry := llmprovider.NewRegistry()
	registry.Register(llmprovider.Anthropic, &llmprovider.EchoProvider{})
	queue := llmprovider.NewQueue(cfg.LLMConcurrency)
	tracker := activity.New(queue)
	tools := toolexec.New(nil, &toolexec.SheetMusicAckTool{})

	host := agentworld.NewHost(store, registry, queue, tracker, tools, metrics,
		orchestrator.WithHistoryWindow(cfg.HistoryWindow),
		orchestrator.WithToolIterationCap(cfg.ToolIterationCap),
		orchestrator.WithTracer(tracer),
	)

	if cfg.SeedFile != "" {
		if err := host.SeedFromYAML(ctx, cfg.SeedFile); err != nil {
			return fmt.Errorf("seed worlds: %w", err)
		}
	}

	log.Info("agentworld host ready", "storage", cfg.StorageDriver, "data_path", cfg.DataPath)

	worlds, err := host.ListWorlds(ctx)
	if err != nil {
		return fmt.Errorf("list worlds: %w", err)
	}
	for _, w := range worlds {
		if _, err := host.GetWorld(ctx, w.ID); err != nil {
			log.Warn("failed to load world into roster", "world", w.ID, "error", err)
		}
	}

	<-ctx.Done()
	log.Info("agentworld host shutting down")
	return nil
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverFile:
		return filestore.Open(cfg.DataPath)
	case config.StorageDriverSQLite:
		return sqlstore.Open("sqlite3", cfg.DSN)
	case config.StorageDriverPostgres:
		return sqlstore.Open("postgres", cfg.DSN)
	case config.StorageDriverMySQL:
		return sqlstore.Open("mysql", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
