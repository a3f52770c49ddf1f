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

package filestore

import (
	"context"
	"fmt"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/world"
)

// ValidateIntegrity implements storage.Store: every role:"tool"
// message must reference a tool_call_id emitted by a preceding
// assistant message in the same agent's memory (spec.md §3 invariant).
func (s *Store) ValidateIntegrity(ctx context.Context, worldID string, agentID string) (storage.IntegrityReport, error) {
	report := storage.IntegrityReport{WorldID: worldID, AgentID: agentID}

	agents, err := s.agentsToCheck(ctx, worldID, agentID)
	if err != nil {
		return report, err
	}
	for _, a := range agents {
		report.Problems = append(report.Problems, validateAgentMemory(a.ID, a.Memory)...)
	}
	return report, nil
}

func (s *Store) agentsToCheck(ctx context.Context, worldID, agentID string) ([]*world.Agent, error) {
	if agentID != "" {
		a, err := s.LoadAgent(ctx, worldID, agentID)
		if err != nil {
			return nil, err
		}
		return []*world.Agent{a}, nil
	}
	return s.ListAgents(ctx, worldID)
}

func validateAgentMemory(agentID string, memory []world.AgentMessage) []string {
	emitted := make(map[string]bool)
	var problems []string
	for _, m := range memory {
		for _, tc := range m.ToolCalls {
			emitted[tc.ID] = true
		}
		if m.Role == world.RoleTool {
			if m.ToolCallID == "" {
				problems = append(problems, fmt.Sprintf("agent %s: tool message missing tool_call_id", agentID))
				continue
			}
			if !emitted[m.ToolCallID] {
				problems = append(problems, fmt.Sprintf("agent %s: tool message references unknown tool_call_id %s", agentID, m.ToolCallID))
			}
		}
	}
	return problems
}

// RepairData implements storage.Store: drops orphaned tool messages
// found by ValidateIntegrity and rewrites memory.jsonl for any agent
// that changed (spec.md §7: repairData is attempted during
// loadAgentsIntoWorld when repairCorrupted is set).
func (s *Store) RepairData(ctx context.Context, worldID string, agentID string) error {
	agents, err := s.agentsToCheck(ctx, worldID, agentID)
	if err != nil {
		return err
	}
	for _, a := range agents {
		repaired := repairAgentMemory(a.Memory)
		if len(repaired) != len(a.Memory) {
			if err := s.SaveAgentMemory(ctx, worldID, a.ID, repaired); err != nil {
				return err
			}
		}
	}
	return nil
}

func repairAgentMemory(memory []world.AgentMessage) []world.AgentMessage {
	emitted := make(map[string]bool)
	for _, m := range memory {
		for _, tc := range m.ToolCalls {
			emitted[tc.ID] = true
		}
	}
	out := make([]world.AgentMessage, 0, len(memory))
	for _, m := range memory {
		if m.Role == world.RoleTool && (m.ToolCallID == "" || !emitted[m.ToolCallID]) {
			continue
		}
		out = append(out, m)
	}
	return out
}
