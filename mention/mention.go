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

// Package mention holds the pure, side-effect-free helpers the router
// and orchestrator share: mention extraction, sender classification,
// kebab-case, and turn-limit resolution (spec.md §4.3).
package mention

import (
	"regexp"
	"strings"

	"github.com/agentworld/agentworld/world"
)

// mentionPattern matches the first @name token where name is
// alphanumeric runs joined by single '-' or '_' (spec.md §4.3).
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9]+(?:[-_][A-Za-z0-9]+)*)`)

// ExtractMentions returns at most one mention: the first @name match,
// lowercased. An empty slice means broadcast.
func ExtractMentions(content string) []string {
	m := mentionPattern.FindStringSubmatch(content)
	if m == nil {
		return nil
	}
	return []string{strings.ToLower(m[1])}
}

// SenderType classifies the sender of a WorldMessageEvent.
type SenderType string

const (
	SenderHuman  SenderType = "human"
	SenderSystem SenderType = "system"
	SenderAgent  SenderType = "agent"
)

var humanSenders = map[string]struct{}{"human": {}, "user": {}, "you": {}}
var systemSenders = map[string]struct{}{"system": {}, "world": {}}

// DetermineSenderType classifies sender per spec.md §4.3: HUMAN for
// human/user/you (case-insensitive), SYSTEM for system/world or an
// empty sender, AGENT otherwise.
func DetermineSenderType(sender string) SenderType {
	lower := strings.ToLower(sender)
	if _, ok := humanSenders[lower]; ok {
		return SenderHuman
	}
	if lower == "" {
		return SenderSystem
	}
	if _, ok := systemSenders[lower]; ok {
		return SenderSystem
	}
	return SenderAgent
}

// upperBoundary reports whether transitioning from prev to cur is a
// lower→upper case boundary, used by ToKebabCase to split camelCase.
func upperBoundary(prev, cur rune) bool {
	return prev >= 'a' && prev <= 'z' && cur >= 'A' && cur <= 'Z'
}

var nonAlphaNumRun = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ToKebabCase converts s to kebab-case: trims, splits lower→upper
// boundaries with a hyphen, collapses runs of non-alphanumerics to a
// single hyphen, strips leading/trailing hyphens, and lowercases.
// Idempotent: ToKebabCase(ToKebabCase(s)) == ToKebabCase(s).
func ToKebabCase(s string) string {
	s = strings.TrimSpace(s)

	var withBoundaries strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && upperBoundary(runes[i-1], r) {
			withBoundaries.WriteByte('-')
		}
		withBoundaries.WriteRune(r)
	}

	collapsed := nonAlphaNumRun.ReplaceAllString(withBoundaries.String(), "-")
	collapsed = strings.Trim(collapsed, "-")
	return strings.ToLower(collapsed)
}

// GetWorldTurnLimit returns cfg.TurnLimit, defaulting to
// world.DefaultTurnLimit when unset or non-positive.
func GetWorldTurnLimit(cfg world.Config) int {
	if cfg.TurnLimit <= 0 {
		return world.DefaultTurnLimit
	}
	return cfg.TurnLimit
}
