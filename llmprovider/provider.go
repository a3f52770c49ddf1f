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

// Package llmprovider defines the provider-agnostic contract the LLM
// Streaming Orchestrator depends on (spec.md §4.5, §6). Concrete
// provider SDK wrappers (Anthropic/OpenAI/Ollama/Azure clients) are
// external collaborators and out of scope; this package only specifies
// the Provider interface, the neutral message/response shapes, a
// registry, the process-wide concurrency queue, and one reference
// implementation (EchoProvider) used by tests.
package llmprovider

import (
	"context"

	"github.com/agentworld/agentworld/world"
)

// Name enumerates the provider families a host process may register,
// mirroring spec.md §6's LLMProvider enumeration. It does not select an
// implementation by itself — Registry does that.
type Name string

const (
	Anthropic Name = "anthropic"
	OpenAI    Name = "openai"
	Ollama    Name = "ollama"
	Azure     Name = "azure"
)

// ChatMessage is the internal neutral shape the orchestrator builds
// requests from, translated from world.AgentMessage. Keeping it
// distinct from world.AgentMessage lets providers add fields (e.g.
// provider-native cache hints) without leaking into the durable model.
type ChatMessage struct {
	Role       world.Role
	Content    string
	Sender     string
	ToolCallID string
	ToolCalls  []world.ToolCall
}

// Request is one turn's worth of input to a provider.
type Request struct {
	Model       string
	SystemPrompt string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
}

// Response is a non-streaming generation result.
type Response struct {
	Content   string
	ToolCalls []world.ToolCall
	Usage     *world.Usage
}

// ChunkKind discriminates the variants yielded by Provider.Stream.
type ChunkKind string

const (
	ChunkTextDelta ChunkKind = "delta"
	ChunkToolUse   ChunkKind = "tool_use_block"
	ChunkUsage     ChunkKind = "usage"
)

// Chunk is one item from a provider's streaming iterator (spec.md
// §4.5: "async iterator of {delta | tool_use_block | usage}").
type Chunk struct {
	Kind  ChunkKind
	Delta string
	Tool  world.ToolCall
	Usage *world.Usage
}

// Provider is the contract a concrete LLM SDK wrapper must implement.
// The orchestrator never imports a concrete SDK; it only depends on
// this interface (spec.md §4.5).
type Provider interface {
	// Stream calls fn once per chunk, in order, until the stream ends
	// or ctx is canceled. It must preserve tool_call_id linkage across
	// round-trips (spec.md §4.5).
	Stream(ctx context.Context, req Request, fn func(Chunk) error) error
	// Generate performs a non-streaming call, used by tools/tests that
	// don't need incremental output.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Registry holds the Provider implementations a host process has
// registered, keyed by Name. The zero value is ready to use.
type Registry struct {
	providers map[Name]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Name]Provider)}
}

// Register associates name with p, overwriting any previous
// registration.
func (r *Registry) Register(name Name, p Provider) {
	if r.providers == nil {
		r.providers = make(map[Name]Provider)
	}
	r.providers[name] = p
}

// Resolve returns the Provider registered for name, or false if none.
func (r *Registry) Resolve(name Name) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}
