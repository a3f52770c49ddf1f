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

// Package activity implements the per-world Activity Tracker (spec.md
// §4.2, §4.9): a refcounted "is-processing" lifecycle that emits
// response-start/response-end/idle transitions and keeps
// World.IsProcessing in sync.
package activity

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentworld/agentworld/llmprovider"
	"github.com/agentworld/agentworld/world"
)

// worldState is the tracker's private bookkeeping for one world.
type worldState struct {
	mu             sync.Mutex
	pending        int
	lastActivityID int64
	sources        map[string]int
}

// Tracker is a process-wide registry of per-world activity state. Its
// zero value is not usable; use New.
type Tracker struct {
	mu     sync.Mutex
	states map[*world.World]*worldState
	queue  *llmprovider.Queue
	gauge  *prometheus.GaugeVec
}

// New creates a Tracker. queue may be nil if no LLM queue is wired
// (tests); the queue status is then reported as a zero QueueStatus.
func New(queue *llmprovider.Queue) *Tracker {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "agentworld",
		Subsystem: "world",
		Name:      "pending_operations",
		Help:      "Number of in-flight operations for a world.",
	}, []string{"world_id"})

	return &Tracker{
		states: make(map[*world.World]*worldState),
		queue:  queue,
		gauge:  gauge,
	}
}

// Collector returns the Prometheus collector backing this tracker's
// gauge, for registration with a metrics registry.
func (t *Tracker) Collector() prometheus.Collector { return t.gauge }

func (t *Tracker) stateFor(w *world.World) *worldState {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[w]
	if !ok {
		s = &worldState{sources: make(map[string]int)}
		t.states[w] = s
	}
	return s
}

func (t *Tracker) queueStatus() world.QueueStatus {
	if t.queue == nil {
		return world.QueueStatus{}
	}
	st := t.queue.Status()
	return world.QueueStatus{Capacity: st.Capacity, Running: st.Running, Queued: st.Queued}
}

// Begin opens an activity scope for w, attributed to source (may be
// empty). It increments the refcount, bumps lastActivityId only on the
// 0→1 transition, increments the per-source counter, and emits
// response-start. The returned end() closure is single-shot: only its
// first invocation has effect, matching spec.md §4.2.
func (t *Tracker) Begin(w *world.World, source string) (end func()) {
	s := t.stateFor(w)

	s.mu.Lock()
	s.pending++
	if s.pending == 1 {
		s.lastActivityID++
	}
	if source != "" {
		s.sources[source]++
	}
	activityID := s.lastActivityID
	pending := s.pending
	activeSources := activeSourceList(s.sources)
	s.mu.Unlock()

	w.Lock()
	w.IsProcessing = true
	w.Unlock()

	t.gauge.WithLabelValues(w.ID).Set(float64(pending))

	t.emit(w, world.ActivityResponseStart, pending, activityID, source, activeSources)

	var once sync.Once
	return func() {
		once.Do(func() { t.end(w, s, source) })
	}
}

func (t *Tracker) end(w *world.World, s *worldState, source string) {
	s.mu.Lock()
	if s.pending > 0 {
		s.pending--
	}
	if source != "" {
		if s.sources[source] > 0 {
			s.sources[source]--
		}
		if s.sources[source] == 0 {
			delete(s.sources, source)
		}
	}
	pending := s.pending
	activityID := s.lastActivityID
	activeSources := activeSourceList(s.sources)
	s.mu.Unlock()

	t.gauge.WithLabelValues(w.ID).Set(float64(pending))

	if pending == 0 {
		w.Lock()
		w.IsProcessing = false
		w.Unlock()
		t.emit(w, world.ActivityIdle, pending, activityID, source, activeSources)
		return
	}

	t.emit(w, world.ActivityResponseEnd, pending, activityID, source, activeSources)
}

func (t *Tracker) emit(w *world.World, typ world.ActivityType, pending int, activityID int64, source string, activeSources []string) {
	evt := world.ActivityEvent{
		Type:              typ,
		PendingOperations: pending,
		ActivityID:        activityID,
		Source:            source,
		ActiveSources:     activeSources,
		Queue:             t.queueStatus(),
	}
	if w.Bus == nil {
		return
	}
	topic := world.TopicActivity
	switch typ {
	case world.ActivityResponseStart:
		w.Bus.Publish(world.TopicResponseStart, evt)
	case world.ActivityResponseEnd:
		w.Bus.Publish(world.TopicResponseEnd, evt)
	case world.ActivityIdle:
		w.Bus.Publish(world.TopicIdle, evt)
	}
	w.Bus.Publish(topic, evt)
}

func activeSourceList(sources map[string]int) []string {
	out := make([]string, 0, len(sources))
	for s := range sources {
		out = append(out, s)
	}
	return out
}

// Track wraps op in an activity scope attributed to source, guaranteeing
// end() runs even if op panics or returns an error (spec.md §4.2
// trackActivity).
func (t *Tracker) Track(w *world.World, source string, op func() error) (err error) {
	end := t.Begin(w, source)
	defer end()
	return op()
}

// PendingOperations reports the current refcount for w, for tests and
// diagnostics.
func (t *Tracker) PendingOperations(w *world.World) int {
	s := t.stateFor(w)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
