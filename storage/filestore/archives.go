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
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/world"
)

// archiveMeta is the archives/<archiveId>/meta.json shape; messages
// live separately in messages.jsonl so ExportArchive can stream them
// without re-parsing metadata (spec.md §6).
type archiveMeta struct {
	ArchiveID    string    `json:"archiveId"`
	AgentID      string    `json:"agentId"`
	WorldID      string    `json:"worldId"`
	SessionName  string    `json:"sessionName"`
	Reason       string    `json:"reason"`
	MessageCount int       `json:"messageCount"`
	StartTime    time.Time `json:"startTime,omitempty"`
	EndTime      time.Time `json:"endTime,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ArchiveAgentMemory implements storage.Store: freezes memory into an
// immutable archive directory. Archives are never rewritten once
// created (spec.md §4.8 "archives are append-only").
func (s *Store) ArchiveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage, meta storage.ArchiveMetadata) (string, error) {
	archiveID := uuid.NewString()
	frozen := make([]world.AgentMessage, len(memory))
	copy(frozen, memory)

	var start, end time.Time
	if len(frozen) > 0 {
		start = frozen[0].CreatedAt
		end = frozen[len(frozen)-1].CreatedAt
	}

	am := archiveMeta{
		ArchiveID: archiveID, AgentID: agentID, WorldID: worldID,
		SessionName: meta.SessionName, Reason: meta.Reason, MessageCount: len(frozen),
		StartTime: start, EndTime: end, Participants: meta.Participants, Tags: meta.Tags,
		Summary: meta.Summary, CreatedAt: time.Now(),
	}

	dir := s.archiveDir(archiveID)
	if err := writeJSONFileAtomic(filepath.Join(dir, "meta.json"), am); err != nil {
		return "", storageErr("ArchiveAgentMemory", "write meta.json", err)
	}
	if err := writeJSONLAtomic(filepath.Join(dir, "messages.jsonl"), frozen); err != nil {
		return "", storageErr("ArchiveAgentMemory", "write messages.jsonl", err)
	}
	return archiveID, nil
}

func (s *Store) readArchive(archiveID string) (world.MemoryArchive, error) {
	var meta archiveMeta
	dir := s.archiveDir(archiveID)
	if err := readJSONFile(filepath.Join(dir, "meta.json"), &meta); err != nil {
		if isNotExist(err) {
			return world.MemoryArchive{}, notFound("readArchive", "archive not found: "+archiveID)
		}
		return world.MemoryArchive{}, storageErr("readArchive", "read meta.json", err)
	}
	messages, err := readJSONL[world.AgentMessage](filepath.Join(dir, "messages.jsonl"))
	if err != nil {
		return world.MemoryArchive{}, storageErr("readArchive", "read messages.jsonl", err)
	}
	return world.MemoryArchive{
		ArchiveID: meta.ArchiveID, AgentID: meta.AgentID, WorldID: meta.WorldID,
		SessionName: meta.SessionName, Reason: meta.Reason, MessageCount: meta.MessageCount,
		StartTime: meta.StartTime, EndTime: meta.EndTime, Participants: meta.Participants,
		Tags: meta.Tags, Summary: meta.Summary, CreatedAt: meta.CreatedAt, Messages: messages,
	}, nil
}

// SearchArchives implements storage.Store with a naive substring match
// over session name, reason, summary and tags, matching memstore's
// SearchArchives semantics.
func (s *Store) SearchArchives(ctx context.Context, worldID, agentID, query string) ([]world.MemoryArchive, error) {
	entries, err := os.ReadDir(s.archivesDir())
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("SearchArchives", "read archives directory", err)
	}

	q := strings.ToLower(query)
	var out []world.MemoryArchive
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		a, err := s.readArchive(e.Name())
		if err != nil {
			continue
		}
		if worldID != "" && a.WorldID != worldID {
			continue
		}
		if agentID != "" && a.AgentID != agentID {
			continue
		}
		if q != "" && !matchesArchive(a, q) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matchesArchive(a world.MemoryArchive, q string) bool {
	haystacks := []string{strings.ToLower(a.SessionName), strings.ToLower(a.Reason), strings.ToLower(a.Summary)}
	for _, t := range a.Tags {
		haystacks = append(haystacks, strings.ToLower(t))
	}
	for _, h := range haystacks {
		if strings.Contains(h, q) {
			return true
		}
	}
	return false
}

// ExportArchive implements storage.Store. Only "json" is supported;
// Markdown export is an external collaborator (spec.md §1).
func (s *Store) ExportArchive(ctx context.Context, archiveID string, opts storage.ArchiveOptions) ([]byte, error) {
	if opts.Format != "" && opts.Format != "json" {
		return nil, storageErr("ExportArchive", "unsupported format: "+opts.Format, nil)
	}
	a, err := s.readArchive(archiveID)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, storageErr("ExportArchive", "marshal archive", err)
	}
	return b, nil
}
