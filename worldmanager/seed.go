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

package worldmanager

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentworld/agentworld/werrors"
)

// SeedDocument is the bulk world-definition file shape accepted by
// SeedFromYAML: a list of worlds, each with its agents. world.json
// itself stays plain JSON (spec.md §6); this is only an initial-load
// convenience mirroring the teacher's docker-compose-style hector.yaml,
// generalized from one static agent graph to any number of worlds.
type SeedDocument struct {
	Worlds []SeedWorld `yaml:"worlds"`
}

// SeedWorld is one world's config plus its starting agent roster.
type SeedWorld struct {
	ID              string      `yaml:"id"`
	Name            string      `yaml:"name"`
	Description     string      `yaml:"description,omitempty"`
	TurnLimit       int         `yaml:"turnLimit,omitempty"`
	ChatLLMProvider string      `yaml:"chatLlmProvider,omitempty"`
	ChatLLMModel    string      `yaml:"chatLlmModel,omitempty"`
	Agents          []SeedAgent `yaml:"agents,omitempty"`
}

// SeedAgent is one agent definition within a SeedWorld.
type SeedAgent struct {
	ID           string  `yaml:"id,omitempty"`
	Name         string  `yaml:"name"`
	Type         string  `yaml:"type,omitempty"`
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"systemPrompt,omitempty"`
	Temperature  float64 `yaml:"temperature,omitempty"`
	MaxTokens    int     `yaml:"maxTokens,omitempty"`
}

// LoadSeedFile parses a SeedDocument from a YAML file.
func LoadSeedFile(path string) (*SeedDocument, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, werrors.New(werrors.Validation, "worldmanager", "LoadSeedFile", "read seed file", err)
	}
	var doc SeedDocument
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, werrors.New(werrors.Validation, "worldmanager", "LoadSeedFile", "parse seed yaml", err)
	}
	return &doc, nil
}

// SeedFromYAML creates every world in path that does not already exist
// in storage, together with its agents that do not exist yet. A world
// that already exists is skipped along with all its listed agents, and
// existing agents are left untouched; this is an initial-load
// convenience, not a reconciling sync.
func (m *Manager) SeedFromYAML(ctx context.Context, path string) error {
	doc, err := LoadSeedFile(path)
	if err != nil {
		return err
	}

	for _, sw := range doc.Worlds {
		w, err := m.CreateWorld(ctx, CreateWorldParams{
			ID:              sw.ID,
			Name:            sw.Name,
			Description:     sw.Description,
			TurnLimit:       sw.TurnLimit,
			ChatLLMProvider: sw.ChatLLMProvider,
			ChatLLMModel:    sw.ChatLLMModel,
		})
		if err != nil {
			if !werrors.OfKind(err, werrors.Conflict) {
				return fmt.Errorf("seed world %q: %w", sw.Name, err)
			}
			continue
		}

		for _, sa := range sw.Agents {
			if _, err := m.CreateAgent(ctx, w.ID, CreateAgentParams{
				ID:           sa.ID,
				Name:         sa.Name,
				Type:         sa.Type,
				Provider:     sa.Provider,
				Model:        sa.Model,
				SystemPrompt: sa.SystemPrompt,
				Temperature:  sa.Temperature,
				MaxTokens:    sa.MaxTokens,
			}); err != nil && !werrors.OfKind(err, werrors.Conflict) {
				return fmt.Errorf("seed agent %q in world %q: %w", sa.Name, w.ID, err)
			}
		}
	}
	return nil
}
