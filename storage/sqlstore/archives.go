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
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/world"
)

func (s *Store) ArchiveAgentMemory(ctx context.Context, worldID, agentID string, memory []world.AgentMessage, meta storage.ArchiveMetadata) (string, error) {
	archiveID := newArchiveID()
	var start, end time.Time
	if len(memory) > 0 {
		start = memory[0].CreatedAt
		end = memory[len(memory)-1].CreatedAt
	}

	messagesJSON, err := marshal("ArchiveAgentMemory", memory)
	if err != nil {
		return "", err
	}
	participantsJSON, err := marshal("ArchiveAgentMemory", meta.Participants)
	if err != nil {
		return "", err
	}
	tagsJSON, err := marshal("ArchiveAgentMemory", meta.Tags)
	if err != nil {
		return "", err
	}

	_, err = s.exec(ctx, `INSERT INTO memory_archives (archive_id, world_id, agent_id, session_name, reason,
		message_count, start_time, end_time, participants_json, tags_json, summary, messages_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		archiveID, worldID, agentID, meta.SessionName, meta.Reason, len(memory),
		nullTime(start), nullTime(end), participantsJSON, tagsJSON, meta.Summary, messagesJSON, time.Now())
	if err != nil {
		return "", storageErr("ArchiveAgentMemory", "insert archive", err)
	}
	return archiveID, nil
}

func (s *Store) scanArchive(row interface {
	Scan(dest ...any) error
}) (world.MemoryArchive, error) {
	var a world.MemoryArchive
	var start, end sql.NullTime
	var participantsJSON, tagsJSON, messagesJSON string
	err := row.Scan(&a.ArchiveID, &a.WorldID, &a.AgentID, &a.SessionName, &a.Reason, &a.MessageCount,
		&start, &end, &participantsJSON, &tagsJSON, &a.Summary, &messagesJSON, &a.CreatedAt)
	if err != nil {
		return world.MemoryArchive{}, err
	}
	a.StartTime, a.EndTime = start.Time, end.Time
	if err := unmarshal("scanArchive", participantsJSON, &a.Participants); err != nil {
		return world.MemoryArchive{}, err
	}
	if err := unmarshal("scanArchive", tagsJSON, &a.Tags); err != nil {
		return world.MemoryArchive{}, err
	}
	if err := unmarshal("scanArchive", messagesJSON, &a.Messages); err != nil {
		return world.MemoryArchive{}, err
	}
	return a, nil
}

const archiveColumns = `archive_id, world_id, agent_id, session_name, reason, message_count,
	start_time, end_time, participants_json, tags_json, summary, messages_json, created_at`

func (s *Store) SearchArchives(ctx context.Context, worldID, agentID, query string) ([]world.MemoryArchive, error) {
	rows, err := s.query(ctx, "SELECT "+archiveColumns+" FROM memory_archives WHERE world_id=? AND agent_id=? ORDER BY created_at", worldID, agentID)
	if err != nil {
		return nil, storageErr("SearchArchives", "query archives", err)
	}
	defer rows.Close()

	needle := strings.ToLower(query)
	var out []world.MemoryArchive
	for rows.Next() {
		a, err := s.scanArchive(rows)
		if err != nil {
			return nil, storageErr("SearchArchives", "scan archive", err)
		}
		if matchesArchive(a, needle) {
			out = append(out, a)
		}
	}
	return out, rows.Err()
}

func matchesArchive(a world.MemoryArchive, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(a.SessionName), needle) ||
		strings.Contains(strings.ToLower(a.Reason), needle) ||
		strings.Contains(strings.ToLower(a.Summary), needle) {
		return true
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func (s *Store) ExportArchive(ctx context.Context, archiveID string, opts storage.ArchiveOptions) ([]byte, error) {
	if opts.Format != "json" {
		return nil, werrorsValidation("ExportArchive", fmt.Sprintf("unsupported format: %s", opts.Format))
	}
	row := s.queryRow(ctx, "SELECT "+archiveColumns+" FROM memory_archives WHERE archive_id=?", archiveID)
	a, err := s.scanArchive(row)
	if err == sql.ErrNoRows {
		return nil, notFound("ExportArchive", "archive not found: "+archiveID)
	}
	if err != nil {
		return nil, storageErr("ExportArchive", "scan archive", err)
	}
	return marshalIndent("ExportArchive", a)
}
