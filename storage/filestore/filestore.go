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

// Package filestore implements storage.Store on a plain directory tree
// (spec.md §6 "Persisted layout (file backend)"):
//
//	<root>/<worldId>/world.json
//	<root>/<worldId>/agents/<agentId>/config.json
//	<root>/<worldId>/agents/<agentId>/memory.jsonl
//	<root>/<worldId>/agents/<agentId>/system-prompt.md
//	<root>/<worldId>/chats/<chatId>/meta.json
//	<root>/<worldId>/chats/<chatId>/messages.jsonl
//	<root>/<worldId>/archives/<archiveId>/meta.json + messages.jsonl
//
// Grounded in v2/checkpoint's file-backed checkpoint store for the
// directory-per-entity layout and in v2/session's JSONL append style
// for ordered message logs. SaveAgentMemory is atomic via a
// temp-file-and-rename sequence in the same directory, matching
// spec.md §4.8's durability invariant.
package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentworld/agentworld/storage"
	"github.com/agentworld/agentworld/werrors"
	"github.com/agentworld/agentworld/world"
)

const component = "filestore"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store implements storage.Store rooted at a single directory.
type Store struct {
	root string
}

var _ storage.Store = (*Store)(nil)

// Open creates the root directory (if missing) and returns a Store
// rooted at it. root is typically AGENT_WORLD_DATA_PATH
// (default ./data/worlds, spec.md §6).
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, werrors.New(werrors.Validation, component, "Open", "root directory required", nil)
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, werrors.New(werrors.Storage, component, "Open", "create root", err)
	}
	return &Store{root: root}, nil
}

func notFound(op, msg string) error {
	return werrors.New(werrors.NotFound, component, op, msg, nil)
}

func storageErr(op, msg string, err error) error {
	return werrors.New(werrors.Storage, component, op, msg, err)
}

func (s *Store) worldDir(worldID string) string  { return filepath.Join(s.root, worldID) }
func (s *Store) agentsDir(worldID string) string { return filepath.Join(s.worldDir(worldID), "agents") }
func (s *Store) agentDir(worldID, agentID string) string {
	return filepath.Join(s.agentsDir(worldID), agentID)
}
func (s *Store) chatsDir(worldID string) string { return filepath.Join(s.worldDir(worldID), "chats") }
func (s *Store) chatDir(worldID, chatID string) string {
	return filepath.Join(s.chatsDir(worldID), chatID)
}
func (s *Store) archivesDir() string { return filepath.Join(s.root, "archives") }
func (s *Store) archiveDir(archiveID string) string {
	return filepath.Join(s.archivesDir(), archiveID)
}

// writeFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so a crash mid-write never leaves a
// truncated file in place (spec.md §4.8: "saveAgentMemory is atomic").
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

func readJSONFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func writeJSONFileAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

func isNotExist(err error) bool { return os.IsNotExist(err) }

// readJSONL reads one JSON value per line, skipping blank lines.
func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, scanner.Err()
}

// writeJSONLAtomic rewrites the whole JSONL file as a full replace,
// matching spec.md §4.8's "full replace of agent's memory rows".
func writeJSONLAtomic[T any](path string, items []T) error {
	var b strings.Builder
	for _, it := range items {
		line, err := json.Marshal(it)
		if err != nil {
			return err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return writeFileAtomic(path, []byte(b.String()))
}

func appendJSONL(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return err
	}
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// SaveWorld implements storage.Store.
func (s *Store) SaveWorld(ctx context.Context, cfg world.Config) error {
	now := time.Now()
	if existing, err := s.LoadWorld(ctx, cfg.ID); err == nil {
		cfg.CreatedAt = existing.CreatedAt
	} else if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	if err := writeJSONFileAtomic(filepath.Join(s.worldDir(cfg.ID), "world.json"), cfg); err != nil {
		return storageErr("SaveWorld", "write world.json", err)
	}
	return nil
}

// LoadWorld implements storage.Store.
func (s *Store) LoadWorld(ctx context.Context, worldID string) (world.Config, error) {
	var cfg world.Config
	path := filepath.Join(s.worldDir(worldID), "world.json")
	if err := readJSONFile(path, &cfg); err != nil {
		if isNotExist(err) {
			return world.Config{}, notFound("LoadWorld", "world not found: "+worldID)
		}
		return world.Config{}, storageErr("LoadWorld", "read world.json", err)
	}
	return cfg, nil
}

// DeleteWorld cascades to agents, chats and their messages (archives
// live outside the world directory and are pruned by WorldID below),
// matching spec.md §4.8.
func (s *Store) DeleteWorld(ctx context.Context, worldID string) error {
	if err := os.RemoveAll(s.worldDir(worldID)); err != nil {
		return storageErr("DeleteWorld", "remove world directory", err)
	}
	entries, err := os.ReadDir(s.archivesDir())
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return storageErr("DeleteWorld", "scan archives", err)
	}
	for _, e := range entries {
		var meta archiveMeta
		metaPath := filepath.Join(s.archivesDir(), e.Name(), "meta.json")
		if err := readJSONFile(metaPath, &meta); err != nil {
			continue
		}
		if meta.WorldID == worldID {
			os.RemoveAll(filepath.Join(s.archivesDir(), e.Name()))
		}
	}
	return nil
}

// ListWorlds implements storage.Store.
func (s *Store) ListWorlds(ctx context.Context) ([]world.Config, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("ListWorlds", "read root", err)
	}
	var out []world.Config
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "archives" {
			continue
		}
		cfg, err := s.LoadWorld(ctx, e.Name())
		if err != nil {
			continue
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
