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

package llmprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentworld/agentworld/world"
)

// ScriptedResponse configures one call's worth of output for
// EchoProvider: either plain text or one or more tool calls.
type ScriptedResponse struct {
	Text      string
	ToolCalls []world.ToolCall
}

// EchoProvider is a reference Provider implementation used by tests and
// by hosts that want to exercise the orchestrator without a live model.
// It streams a scripted response word-by-word, or replays a queued
// ScriptedResponse, falling back to echoing the last user message back
// prefixed with "echo: ".
type EchoProvider struct {
	// Scripted, if non-empty, is consumed FIFO: each call to
	// Stream/Generate pops the first entry. When empty, the provider
	// falls back to its default echo behavior.
	Scripted []ScriptedResponse
}

func (p *EchoProvider) next() (ScriptedResponse, bool) {
	if len(p.Scripted) == 0 {
		return ScriptedResponse{}, false
	}
	r := p.Scripted[0]
	p.Scripted = p.Scripted[1:]
	return r, true
}

func lastUserContent(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == world.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

// Stream implements Provider.
func (p *EchoProvider) Stream(ctx context.Context, req Request, fn func(Chunk) error) error {
	resp, scripted := p.next()
	if !scripted {
		resp = ScriptedResponse{Text: fmt.Sprintf("echo: %s", lastUserContent(req))}
	}

	for _, tc := range resp.ToolCalls {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(Chunk{Kind: ChunkToolUse, Tool: tc}); err != nil {
			return err
		}
	}

	if resp.Text != "" {
		for i, word := range strings.Fields(resp.Text) {
			if err := ctx.Err(); err != nil {
				return err
			}
			delta := word
			if i > 0 {
				delta = " " + word
			}
			if err := fn(Chunk{Kind: ChunkTextDelta, Delta: delta}); err != nil {
				return err
			}
		}
	}

	return nil
}

// Generate implements Provider.
func (p *EchoProvider) Generate(ctx context.Context, req Request) (Response, error) {
	resp, scripted := p.next()
	if !scripted {
		resp = ScriptedResponse{Text: fmt.Sprintf("echo: %s", lastUserContent(req))}
	}
	return Response{Content: resp.Text, ToolCalls: resp.ToolCalls}, nil
}

var _ Provider = (*EchoProvider)(nil)
