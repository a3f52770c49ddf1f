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
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentworld/agentworld/world"
)

// SaveChat implements storage.Store, writing chats/<chatId>/meta.json.
func (s *Store) SaveChat(ctx context.Context, worldID string, c world.Chat) error {
	now := time.Now()
	if existing, err := s.LoadChat(ctx, worldID, c.ID); err == nil {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	path := filepath.Join(s.chatDir(worldID, c.ID), "meta.json")
	if err := writeJSONFileAtomic(path, c); err != nil {
		return storageErr("SaveChat", "write meta.json", err)
	}
	return nil
}

// LoadChat implements storage.Store.
func (s *Store) LoadChat(ctx context.Context, worldID, chatID string) (world.Chat, error) {
	var c world.Chat
	path := filepath.Join(s.chatDir(worldID, chatID), "meta.json")
	if err := readJSONFile(path, &c); err != nil {
		if isNotExist(err) {
			return world.Chat{}, notFound("LoadChat", "chat not found: "+chatID)
		}
		return world.Chat{}, storageErr("LoadChat", "read meta.json", err)
	}
	return c, nil
}

// ListChats implements storage.Store.
func (s *Store) ListChats(ctx context.Context, worldID string) ([]world.Chat, error) {
	entries, err := os.ReadDir(s.chatsDir(worldID))
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, storageErr("ListChats", "read chats directory", err)
	}
	var out []world.Chat
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		c, err := s.LoadChat(ctx, worldID, e.Name())
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteChat implements storage.Store.
func (s *Store) DeleteChat(ctx context.Context, worldID, chatID string) error {
	if err := os.RemoveAll(s.chatDir(worldID, chatID)); err != nil {
		return storageErr("DeleteChat", "remove chat directory", err)
	}
	return nil
}

// AppendChatMessage is a filestore-only convenience mirroring
// memstore/sqlstore's method of the same name: it appends one line to
// messages.jsonl (spec.md §6: chats/<chatId>/messages.jsonl).
func (s *Store) AppendChatMessage(worldID, chatID string, msg world.AgentMessage) error {
	path := filepath.Join(s.chatDir(worldID, chatID), "messages.jsonl")
	if err := appendJSONL(path, msg); err != nil {
		return storageErr("AppendChatMessage", "append messages.jsonl", err)
	}
	return nil
}

func (s *Store) loadChatMessages(worldID, chatID string) ([]world.AgentMessage, error) {
	path := filepath.Join(s.chatDir(worldID, chatID), "messages.jsonl")
	msgs, err := readJSONL[world.AgentMessage](path)
	if err != nil {
		return nil, storageErr("loadChatMessages", "read messages.jsonl", err)
	}
	return msgs, nil
}

// LoadWorldChatFull implements storage.Store: the world config, every
// agent with memory filtered to chatID, and the chat's ordered
// messages (spec.md §3 WorldChat).
func (s *Store) LoadWorldChatFull(ctx context.Context, worldID, chatID string) (world.WorldChat, error) {
	cfg, err := s.LoadWorld(ctx, worldID)
	if err != nil {
		return world.WorldChat{}, err
	}
	agents, err := s.ListAgents(ctx, worldID)
	if err != nil {
		return world.WorldChat{}, err
	}
	for _, a := range agents {
		filtered := make([]world.AgentMessage, 0, len(a.Memory))
		for _, m := range a.Memory {
			if m.ChatID == chatID {
				filtered = append(filtered, m)
			}
		}
		a.Memory = filtered
	}
	messages, err := s.loadChatMessages(worldID, chatID)
	if err != nil {
		return world.WorldChat{}, err
	}
	return world.WorldChat{World: cfg, Agents: agents, Messages: messages, Threads: world.CalculateThreadMetadata(messages)}, nil
}
