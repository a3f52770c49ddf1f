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

package mention_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/mention"
	"github.com/agentworld/agentworld/world"
)

func TestExtractMentions_AtMostOne(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
	}{
		{"broadcast", "hello everyone", nil},
		{"single", "@Alice how are you", []string{"alice"}},
		{"first-of-many", "@Bob cc @alice", []string{"bob"}},
		{"hyphenated", "@sheet-music-bot ack", []string{"sheet-music-bot"}},
		{"underscored", "@agent_one hi", []string{"agent_one"}},
		{"email-domain-matches", "reach me at foo@bar.com", []string{"bar"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mention.ExtractMentions(tc.content)
			require.LessOrEqual(t, len(got), 1)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetermineSenderType(t *testing.T) {
	cases := []struct {
		sender string
		want   mention.SenderType
	}{
		{"HUMAN", mention.SenderHuman},
		{"user", mention.SenderHuman},
		{"You", mention.SenderHuman},
		{"system", mention.SenderSystem},
		{"World", mention.SenderSystem},
		{"", mention.SenderSystem},
		{"alice", mention.SenderAgent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mention.DetermineSenderType(tc.sender), tc.sender)
	}
}

func TestToKebabCase(t *testing.T) {
	cases := map[string]string{
		"Customer Support Team": "customer-support-team",
		"helloWorldAgent":        "hello-world-agent",
		"  Trim Me  ":            "trim-me",
		"multi___underscore":     "multi-underscore",
		"already-kebab":          "already-kebab",
	}
	for in, want := range cases {
		assert.Equal(t, want, mention.ToKebabCase(in), in)
	}
}

func TestToKebabCase_Idempotent(t *testing.T) {
	inputs := []string{"Customer Support Team", "helloWorldAgent", "already-kebab", "A B C"}
	for _, in := range inputs {
		once := mention.ToKebabCase(in)
		twice := mention.ToKebabCase(once)
		assert.Equal(t, once, twice, in)
	}
}

func TestGetWorldTurnLimit(t *testing.T) {
	assert.Equal(t, world.DefaultTurnLimit, mention.GetWorldTurnLimit(world.Config{}))
	assert.Equal(t, 12, mention.GetWorldTurnLimit(world.Config{TurnLimit: 12}))
	assert.Equal(t, world.DefaultTurnLimit, mention.GetWorldTurnLimit(world.Config{TurnLimit: -1}))
}
