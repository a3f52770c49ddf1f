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

// maxThreadDepth caps how far CalculateThreadMetadata walks a reply
// chain before giving up on finding a root (spec.md §9).
const maxThreadDepth = 100

// ThreadMetadata describes where a message sits in its reply chain.
type ThreadMetadata struct {
	RootMessageID string
	Depth         int
}

// CalculateThreadMetadata walks every message's ReplyToMessageID chain
// back to its root, across the given window of messages (typically one
// Chat's ordered message list). Cycles are detected via a per-message
// visited set; on a cycle, the message's immediate parent is treated as
// the root, at depth 0, instead of looping (spec.md §9). The
// walk never exceeds maxThreadDepth hops.
func CalculateThreadMetadata(messages []AgentMessage) map[string]ThreadMetadata {
	byID := make(map[string]AgentMessage, len(messages))
	for _, m := range messages {
		if m.MessageID != "" {
			byID[m.MessageID] = m
		}
	}

	result := make(map[string]ThreadMetadata, len(messages))
	for _, m := range messages {
		if m.MessageID == "" {
			continue
		}
		result[m.MessageID] = threadMetadataFor(m, byID)
	}
	return result
}

func threadMetadataFor(m AgentMessage, byID map[string]AgentMessage) ThreadMetadata {
	visited := map[string]bool{m.MessageID: true}
	root := m.MessageID
	current := m
	depth := 0

	for current.ReplyToMessageID != "" && depth < maxThreadDepth {
		parentID := current.ReplyToMessageID
		if visited[parentID] {
			// Cycle detected: m's immediate parent becomes the root (at
			// depth 0) rather than looping back through messages already
			// walked.
			root = m.ReplyToMessageID
			depth = 0
			break
		}

		parent, ok := byID[parentID]
		if !ok {
			// Parent falls outside this message window; it is the root
			// as far as this window can tell.
			root = parentID
			break
		}

		visited[parentID] = true
		root = parentID
		current = parent
		depth++
	}

	return ThreadMetadata{RootMessageID: root, Depth: depth}
}
