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

package world

import "time"

// SSEType enumerates the kinds of WorldSSEEvent emitted during a
// streaming LLM turn (spec.md §3, §4.5).
type SSEType string

const (
	SSEStart     SSEType = "start"
	SSEChunk     SSEType = "chunk"
	SSEEnd       SSEType = "end"
	SSEError     SSEType = "error"
	SSEToolError SSEType = "tool-error"
	SSEToolStart SSEType = "tool-start"
	SSEToolEnd   SSEType = "tool-end"
)

// ActivityType enumerates the World lifecycle transitions emitted by the
// Activity Tracker (spec.md §3, §4.2).
type ActivityType string

const (
	ActivityResponseStart ActivityType = "response-start"
	ActivityResponseEnd   ActivityType = "response-end"
	ActivityIdle          ActivityType = "idle"
)

// Usage carries token accounting for a completed LLM call, when the
// provider reports it (spec.md §9 open question: usage may be absent).
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// ToolExecutionInfo describes a tool invocation attached to an SSE event
// (spec.md §4.6 validate step).
type ToolExecutionInfo struct {
	ToolName   string `json:"toolName"`
	ToolCallID string `json:"toolCallId"`
	Phase      string `json:"phase"` // "started" | "succeeded" | "failed"
	Error      string `json:"error,omitempty"`
}

// MessageEvent is the payload fanned out on the "message" topic
// (spec.md §3, WorldMessageEvent).
type MessageEvent struct {
	Content           string    `json:"content"`
	Sender            string    `json:"sender"`
	Timestamp         time.Time `json:"timestamp"`
	MessageID         string    `json:"messageId"`
	ReplyToMessageID  string    `json:"replyToMessageId,omitempty"`
}

// SSEEvent is the payload fanned out on the "sse" topic
// (spec.md §3, WorldSSEEvent).
type SSEEvent struct {
	AgentName     string             `json:"agentName"`
	Type          SSEType            `json:"type"`
	Content       string             `json:"content,omitempty"`
	Error         string             `json:"error,omitempty"`
	MessageID     string             `json:"messageId"`
	Usage         *Usage             `json:"usage,omitempty"`
	ToolExecution *ToolExecutionInfo `json:"toolExecution,omitempty"`
}

// QueueStatus is the LLM concurrency queue snapshot attached to every
// ActivityEvent (spec.md §5 "LLM queue").
type QueueStatus struct {
	Capacity int `json:"capacity"`
	Running  int `json:"running"`
	Queued   int `json:"queued"`
}

// ActivityEvent is the payload fanned out on the "response-start",
// "response-end", "idle" and generic "world" topics
// (spec.md §3, WorldActivityEvent).
type ActivityEvent struct {
	Type              ActivityType `json:"type"`
	PendingOperations int          `json:"pendingOperations"`
	ActivityID        int64        `json:"activityId"`
	Timestamp         time.Time    `json:"timestamp"`
	Source            string       `json:"source,omitempty"`
	ActiveSources     []string     `json:"activeSources"`
	Queue             QueueStatus  `json:"queue"`
	MessageID         string       `json:"messageId,omitempty"`
}
