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

// Package world holds the Agent-World data model: worlds, their agent
// rosters, messages, chats and memory archives. It is intentionally
// free of storage, bus and orchestration concerns so every other
// package can depend on it without a cycle.
package world

import (
	"sync"
	"time"
)

// AgentStatus is the lifecycle status of an Agent.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
)

// Role is the role of a single message in an agent's memory.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallFunction is the function payload of a tool call emitted by an
// assistant message.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded arguments, provider-native shape preserved verbatim
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Function ToolCallFunction `json:"function"`
}

// AgentMessage is one entry in an agent's memory.
type AgentMessage struct {
	Role             Role       `json:"role"`
	Content          string     `json:"content"`
	Sender           string     `json:"sender,omitempty"`
	ToolCallID       string     `json:"tool_call_id,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	ChatID           string     `json:"chatId,omitempty"`
	MessageID        string     `json:"messageId,omitempty"`
	ReplyToMessageID string     `json:"replyToMessageId,omitempty"`
}

// ProviderConfig carries the provider-specific connection details for an
// Agent. Concrete provider SDK wrappers are out of scope (spec.md §1);
// this is only the configuration surface a provider implementation reads.
type ProviderConfig struct {
	APIKey           string `json:"apiKey,omitempty"`
	BaseURL          string `json:"baseUrl,omitempty"`
	AzureEndpoint    string `json:"azureEndpoint,omitempty"`
	AzureAPIVersion  string `json:"azureApiVersion,omitempty"`
	AzureDeployment  string `json:"azureDeployment,omitempty"`
	OllamaBaseURL    string `json:"ollamaBaseUrl,omitempty"`
}

// Agent is a configured LLM persona living inside a World.
type Agent struct {
	ID            string
	Name          string
	Type          string
	Status        AgentStatus
	Provider      string
	Model         string
	SystemPrompt  string
	Temperature   float64
	MaxTokens     int
	ProviderCfg   ProviderConfig
	LLMCallCount  int
	LastLLMCall   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Memory        []AgentMessage

	mu sync.Mutex
}

// Lock serializes mutation of Memory/LLMCallCount for this agent, per the
// single-writer-per-world rule (spec.md §5). Callers hold it across a
// read-modify-write sequence; it is re-entrant-unsafe by design (use once
// per logical operation).
func (a *Agent) Lock()   { a.mu.Lock() }
func (a *Agent) Unlock() { a.mu.Unlock() }

// AppendMemory appends msg to the agent's memory. Must be called with the
// agent locked.
func (a *Agent) AppendMemory(msg AgentMessage) {
	a.Memory = append(a.Memory, msg)
}

// Clone returns a shallow copy of the Agent with its own Memory slice,
// safe to hand to callers outside the lock.
func (a *Agent) Clone() *Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	mem := make([]AgentMessage, len(a.Memory))
	copy(mem, a.Memory)
	cp := *a
	cp.Memory = mem
	cp.mu = sync.Mutex{}
	return &cp
}

// Chat is a named conversation slice within a World.
type Chat struct {
	ID            string
	Name          string
	Description   string
	MessageCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WorldChat is a snapshot bundling world config, agents-with-memory and
// the ordered message list for a single chat.
type WorldChat struct {
	World    Config
	Agents   []*Agent
	Messages []AgentMessage
	// Threads maps each message's MessageID to its reply-chain root and
	// depth, computed by CalculateThreadMetadata over Messages.
	Threads map[string]ThreadMetadata
}

// MemoryArchive is an immutable, metadata-tagged snapshot of an agent's
// memory at a point in time.
type MemoryArchive struct {
	ArchiveID     string
	AgentID       string
	WorldID       string
	SessionName   string
	Reason        string
	MessageCount  int
	StartTime     time.Time
	EndTime       time.Time
	Participants  []string
	Tags          []string
	Summary       string
	CreatedAt     time.Time
	Messages      []AgentMessage
}

// Config is the durable, storage-facing configuration of a World (no
// runtime roster, no event emitter — see World for the live object).
type Config struct {
	ID              string
	Name            string
	Description     string
	TurnLimit       int
	CurrentChatID   string
	ChatLLMProvider string
	ChatLLMModel    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultTurnLimit is used whenever a World's TurnLimit is unset or
// non-positive (spec.md §4.3, getWorldTurnLimit).
const DefaultTurnLimit = 5
