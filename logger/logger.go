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

// Package logger configures the process-wide slog logger used by every
// Agent-World component (spec.md §6 "logger configuration").
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

var (
	defaultLogger *slog.Logger
	currentOutput *os.File
)

// modulePrefix identifies this module's own packages so third-party
// library logs can be filtered out at non-debug levels.
const modulePrefix = "github.com/agentworld/agentworld"

// LevelTrace is one notch more verbose than slog's LevelDebug, matching
// spec.md §6's trace|debug|info|warn|error level set.
const LevelTrace slog.Level = slog.LevelDebug - 4

// ParseLevel converts a string log level to slog.Level. Unknown values
// fall back to warn, matching the teacher's permissive default.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// filteringHandler wraps a slog handler and hides third-party library
// logs unless the configured level is debug/trace or finer.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	fullName := fn.Name()
	file, _ := fn.FileLine(pc)
	return strings.Contains(fullName, modulePrefix) || strings.Contains(file, "agentworld/")
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// coloredHandler renders level+message+attrs with ANSI color when the
// output is a terminal; otherwise it is a silent passthrough to the
// wrapped handler.
type coloredHandler struct {
	handler  slog.Handler
	writer   io.Writer
	useColor bool
}

func (h *coloredHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *coloredHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.useColor {
		return h.handler.Handle(ctx, record)
	}
	var buf strings.Builder
	color, reset := levelColor(record.Level), "\033[0m"
	levelStr := record.Level.String()
	buf.WriteString(color)
	buf.WriteString(strings.ToUpper(levelStr))
	buf.WriteString(reset)
	buf.WriteString(" ")
	buf.WriteString(record.Message)
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")
	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &coloredHandler{handler: h.handler.WithAttrs(attrs), writer: h.writer, useColor: h.useColor}
}

func (h *coloredHandler) WithGroup(name string) slog.Handler {
	return &coloredHandler{handler: h.handler.WithGroup(name), writer: h.writer, useColor: h.useColor}
}

// Init configures the process-wide default logger at the given level,
// writing to output. Call once at process start; safe to call again in
// tests to reconfigure.
func Init(level slog.Level, output *os.File) {
	opts := &slog.HandlerOptions{Level: level}
	base := slog.NewTextHandler(output, opts)

	var handler slog.Handler = base
	if isTerminal(output) {
		handler = &coloredHandler{handler: base, writer: output, useColor: true}
	}

	defaultLogger = slog.New(&filteringHandler{handler: handler, minLevel: level})
	currentOutput = output
	slog.SetDefault(defaultLogger)
}

// SetLevel reconfigures the process-wide logger at a new level, keeping
// whatever output Init last used (os.Stderr if Init was never called).
// A runtime knob a host can wire to a signal handler or admin endpoint
// (spec.md §6); the root package does not re-export it.
func SetLevel(level slog.Level) {
	output := currentOutput
	if output == nil {
		output = os.Stderr
	}
	Init(level, output)
}

// Get returns the process-wide logger, lazily initializing it at Info
// level to os.Stderr if Init was never called.
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr)
	}
	return defaultLogger
}
