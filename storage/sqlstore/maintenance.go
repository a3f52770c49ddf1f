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

package sqlstore

import (
	"context"
	"fmt"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/world"
)

func (s *Store) ValidateIntegrity(ctx context.Context, worldID, agentID string) (storage.IntegrityReport, error) {
	report := storage.IntegrityReport{WorldID: worldID, AgentID: agentID}

	var agents []*world.Agent
	var err error
	if agentID != "" {
		a, loadErr := s.LoadAgent(ctx, worldID, agentID)
		if loadErr != nil {
			return report, loadErr
		}
		agents = []*world.Agent{a}
	} else {
		agents, err = s.ListAgents(ctx, worldID)
		if err != nil {
			return report, err
		}
	}

	for _, a := range agents {
		report.Problems = append(report.Problems, validateAgentMemory(a.ID, a.Memory)...)
	}
	return report, nil
}

func validateAgentMemory(agentID string, memory []world.AgentMessage) []string {
	known := map[string]bool{}
	var problems []string
	for _, m := range memory {
		if m.Role == world.RoleAssistant {
			for _, tc := range m.ToolCalls {
				known[tc.ID] = true
			}
		}
		if m.Role == world.RoleTool && !known[m.ToolCallID] {
			problems = append(problems, fmt.Sprintf("agent %s: orphaned tool message for tool_call_id %q", agentID, m.ToolCallID))
		}
	}
	return problems
}

func (s *Store) RepairData(ctx context.Context, worldID, agentID string) error {
	var agents []*world.Agent
	var err error
	if agentID != "" {
		a, loadErr := s.LoadAgent(ctx, worldID, agentID)
		if loadErr != nil {
			return loadErr
		}
		agents = []*world.Agent{a}
	} else {
		agents, err = s.ListAgents(ctx, worldID)
		if err != nil {
			return err
		}
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
	known := map[string]bool{}
	out := make([]world.AgentMessage, 0, len(memory))
	for _, m := range memory {
		if m.Role == world.RoleAssistant {
			for _, tc := range m.ToolCalls {
				known[tc.ID] = true
			}
		}
		if m.Role == world.RoleTool && !known[m.ToolCallID] {
			continue
		}
		out = append(out, m)
	}
	return out
}
