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

// Package bus implements the per-world event emitter (spec.md §4.1):
// synchronous, subscription-order fan-out across the message, sse and
// activity topics, isolated per world and per subscriber. Grounded in
// the nil-safe, isolated broadcast bus from the retrieval pack's
// internal/events package, generalized from a single global bus to one
// instance per world (spec.md §9's design note against a global
// emitter).
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentworld/agentworld/logger"
	"github.com/agentworld/agentworld/world"
)

type subscriber struct {
	id      int64
	handler func(any)
}

// Bus is one world's event emitter. The zero value is not usable; use
// New. Bus implements world.Emitter.
type Bus struct {
	mu     sync.RWMutex
	subs   map[world.Topic][]subscriber
	nextID int64
	log    *slog.Logger
}

var _ world.Emitter = (*Bus)(nil)

// New creates an empty, ready-to-use Bus for one world.
func New() *Bus {
	return &Bus{
		subs: make(map[world.Topic][]subscriber),
		log:  logger.Get(),
	}
}

// Subscribe registers handler on topic and returns an unsubscribe
// closure. Handlers are invoked in subscription order (spec.md §5).
func (b *Bus) Subscribe(topic world.Topic, handler func(any)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[topic] = append(b.subs[topic], subscriber{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, s := range list {
			if s.id == id {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers payload to every subscriber of topic, in
// subscription order. A panicking subscriber is recovered and logged;
// delivery continues to the remaining subscribers (spec.md §4.1, §5).
func (b *Bus) Publish(topic world.Topic, payload any) {
	b.mu.RLock()
	// Copy the slice under the lock so a subscriber that calls
	// Subscribe/Unsubscribe from inside its handler cannot deadlock or
	// corrupt the iteration.
	list := make([]subscriber, len(b.subs[topic]))
	copy(list, b.subs[topic])
	b.mu.RUnlock()

	for _, s := range list {
		b.dispatch(s, topic, payload)
	}
}

func (b *Bus) dispatch(s subscriber, topic world.Topic, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("bus subscriber panicked", "topic", string(topic), "subscriber", s.id, "panic", r)
		}
	}()
	s.handler(payload)
}

// PublishMessage stamps a timestamp and a fresh messageId onto content
// authored by sender and publishes it on TopicMessage (spec.md §4.1).
// replyTo may be empty.
func PublishMessage(b *Bus, content, sender, replyTo string) world.MessageEvent {
	evt := world.MessageEvent{
		Content:          content,
		Sender:           sender,
		Timestamp:        time.Now(),
		MessageID:        uuid.NewString(),
		ReplyToMessageID: replyTo,
	}
	b.Publish(world.TopicMessage, evt)
	return evt
}

// PublishSSE fills in a messageId if partial.MessageID is empty and
// publishes on TopicSSE (spec.md §4.1).
func PublishSSE(b *Bus, partial world.SSEEvent) world.SSEEvent {
	if partial.MessageID == "" {
		partial.MessageID = uuid.NewString()
	}
	b.Publish(world.TopicSSE, partial)
	return partial
}
