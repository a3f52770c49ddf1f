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

// Package toolexec implements the Tool Executor (spec.md §4.6):
// malformed-call filtering, a chat-scoped approval cache, and dispatch
// to built-in tools. Grounded in the retrieval pack's
// v2/tool/commandtool (shell_cmd) and v2/tool/approvaltool
// (human_intervention_request), decoupled from their a2a-protocol
// task-state machinery since that concept is out of scope here.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agentworld/agentworld/logger"
	"github.com/agentworld/agentworld/werrors"
	"github.com/agentworld/agentworld/world"
)

// Tool is a built-in tool the executor can dispatch to.
type Tool interface {
	Name() string
	// RequiresApproval reports whether calls to this tool must pass
	// through the chat-scoped approval cache before running.
	RequiresApproval() bool
	// Call executes the tool with its already-decoded arguments and
	// returns the JSON-serializable result payload.
	Call(ctx context.Context, chatID string, args map[string]any) (map[string]any, error)
}

// approvalEntry is one chat-scoped, per-tool approval decision.
type approvalEntry struct {
	approved  bool
	timestamp time.Time
}

type approvalKey struct {
	chatID   string
	toolName string
}

// Executor validates, approves and dispatches tool calls emitted by an
// LLM turn.
type Executor struct {
	mu       sync.Mutex
	tools    map[string]Tool
	approval map[approvalKey]approvalEntry
	asker    Asker
	log      *slog.Logger
}

// New creates an Executor with the given built-in tools registered by
// name. asker may be nil if human_intervention_request is never used.
func New(asker Asker, tools ...Tool) *Executor {
	e := &Executor{
		tools:    make(map[string]Tool),
		approval: make(map[approvalKey]approvalEntry),
		asker:    asker,
		log:      logger.Get(),
	}
	for _, t := range tools {
		e.tools[t.Name()] = t
	}
	return e
}

// MalformedResult pairs a synthesized tool-error message with its
// corresponding SSE notification for a malformed tool call
// (spec.md §4.6 validate).
type MalformedResult struct {
	Message world.AgentMessage
	SSE     world.SSEEvent
}

// Validate drops calls whose function name is empty or whitespace,
// returning the surviving calls plus one MalformedResult per dropped
// call (spec.md §4.6).
func Validate(calls []world.ToolCall) (valid []world.ToolCall, malformed []MalformedResult) {
	for _, c := range calls {
		if strings.TrimSpace(c.Function.Name) == "" {
			malformed = append(malformed, MalformedResult{
				Message: world.AgentMessage{
					Role:       world.RoleTool,
					ToolCallID: c.ID,
					Content:    fmt.Sprintf("Error: Malformed tool call - empty or missing tool name. Tool call ID: %s", c.ID),
					CreatedAt:  time.Now(),
				},
				SSE: world.SSEEvent{
					Type: world.SSEToolError,
					ToolExecution: &world.ToolExecutionInfo{
						ToolName:   "",
						ToolCallID: c.ID,
						Phase:      "failed",
						Error:      "empty tool name from LLM",
					},
				},
			})
			continue
		}
		valid = append(valid, c)
	}
	return valid, malformed
}

// Execute dispatches a single validated tool call, consulting the
// approval cache first when the target tool requires it. Unknown tool
// names produce an error tool message rather than a hard error
// (spec.md §4.6 dispatch).
func (e *Executor) Execute(ctx context.Context, chatID string, call world.ToolCall) world.AgentMessage {
	e.mu.Lock()
	t, ok := e.tools[call.Function.Name]
	e.mu.Unlock()

	if !ok {
		return e.errorMessage(call, fmt.Sprintf("unknown tool: %s", call.Function.Name))
	}

	if t.RequiresApproval() {
		approved, err := e.ensureApproved(ctx, chatID, call)
		if err != nil {
			return e.errorMessage(call, err.Error())
		}
		if !approved {
			return e.errorMessage(call, fmt.Sprintf("tool %s was not approved", call.Function.Name))
		}
	}

	args, err := decodeArgs(call.Function.Arguments)
	if err != nil {
		return e.errorMessage(call, fmt.Sprintf("invalid arguments: %v", err))
	}

	result, err := t.Call(ctx, chatID, args)
	if err != nil {
		return e.errorMessage(call, err.Error())
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return e.errorMessage(call, fmt.Sprintf("failed to encode tool result: %v", err))
	}

	return world.AgentMessage{
		Role:       world.RoleTool,
		ToolCallID: call.ID,
		Content:    string(payload),
		CreatedAt:  time.Now(),
	}
}

func (e *Executor) errorMessage(call world.ToolCall, msg string) world.AgentMessage {
	return world.AgentMessage{
		Role:       world.RoleTool,
		ToolCallID: call.ID,
		Content:    fmt.Sprintf("Error: %s", msg),
		CreatedAt:  time.Now(),
	}
}

func decodeArgs(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ensureApproved consults the approval cache for (chatID, toolName); on
// miss it asks the Executor's Asker directly and caches the answer
// (spec.md §4.6 approval).
func (e *Executor) ensureApproved(ctx context.Context, chatID string, call world.ToolCall) (bool, error) {
	key := approvalKey{chatID: chatID, toolName: call.Function.Name}

	e.mu.Lock()
	entry, ok := e.approval[key]
	e.mu.Unlock()
	if ok {
		return entry.approved, nil
	}

	if e.asker == nil {
		return false, werrors.New(werrors.Tool, "toolexec", "ensureApproved",
			fmt.Sprintf("tool %s requires approval but no Asker is configured", call.Function.Name), nil)
	}

	resp, err := e.asker.Ask(ctx, OptionRequest{
		Message:       fmt.Sprintf("Approve execution of tool %q?", call.Function.Name),
		Options:       []string{"Approve", "Deny"},
		DefaultOption: "Deny",
	})
	if err != nil {
		return false, werrors.New(werrors.Tool, "toolexec", "ensureApproved", "approval request failed", err)
	}

	approved := resp.SelectedOption != nil && strings.EqualFold(*resp.SelectedOption, "Approve")

	e.mu.Lock()
	e.approval[key] = approvalEntry{approved: approved, timestamp: time.Now()}
	e.mu.Unlock()

	return approved, nil
}
