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

// Package agentworld is a multi-tenant runtime that hosts conversational
// AI agents grouped into isolated "worlds". Each world maintains a
// roster of agents, an event bus, persistent chats, and an activity
// ledger: agents subscribe to their world's message stream, decide
// whether to respond via mention/turn-limit rules, stream an LLM
// response (optionally calling tools, including human-in-the-loop),
// and publish the result back into the bus — possibly triggering other
// agents, forming bounded conversational loops.
//
// # Core subsystems
//
//   - world: the World/Agent/Chat/Archive data model.
//   - bus: per-world pub/sub for messages, SSE and activity events.
//   - activity: the refcounted per-world activity lifecycle tracker.
//   - mention: pure mention/sender/kebab-case helpers.
//   - router: the shouldAgentRespond decision.
//   - orchestrator: the LLM streaming turn, tool round-trips, and the
//     pass-command/auto-@-prefix publish rules.
//   - toolexec: tool validation, built-in tools and HITL approval.
//   - storage: the durable Store contract plus file-tree, SQL and
//     in-memory backends (storage/filestore, storage/sqlstore,
//     storage/memstore).
//   - worldmanager: World/Agent CRUD and runtime roster wiring.
//   - llmprovider: the provider-agnostic streaming contract, registry
//     and concurrency queue.
//
// # Using as a Go library
//
//	import (
//	    "github.com/agentworld/agentworld/world"
//	    "github.com/agentworld/agentworld/worldmanager"
//	    "github.com/agentworld/agentworld/orchestrator"
//	)
//
// # Out of scope
//
// Concrete LLM SDK wrappers, an HTTP/WebSocket server, Markdown
// export, and a skill-file scanner are external collaborators; only
// their contract with the core is implemented here (spec.md §1).
//
// # License
//
// Apache-2.0 — see the license header at the top of each source file.
package agentworld
