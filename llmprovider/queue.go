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

package llmprovider

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// QueueStatus is the Queue's observable state (spec.md §5 "LLM queue").
type QueueStatus struct {
	Capacity int
	Running  int
	Queued   int
}

// Queue caps the number of concurrent provider calls process-wide using
// a weighted semaphore (golang.org/x/sync/semaphore), the same
// concurrency primitive the retrieval pack uses for bounded fan-out.
// Overflow waits; it is never expressed as failure (spec.md §5).
type Queue struct {
	sem      *semaphore.Weighted
	capacity int64

	mu      sync.Mutex
	running int64
	queued  int64
}

// NewQueue creates a Queue with the given capacity (must be >= 1).
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{sem: semaphore.NewWeighted(int64(capacity)), capacity: int64(capacity)}
}

// Acquire blocks until a slot is free or ctx is canceled, then runs fn
// holding that slot. Status() reflects the wait as Queued and the run
// as Running.
func (q *Queue) Acquire(ctx context.Context, fn func(context.Context) error) error {
	q.mu.Lock()
	q.queued++
	q.mu.Unlock()

	err := q.sem.Acquire(ctx, 1)

	q.mu.Lock()
	q.queued--
	q.mu.Unlock()

	if err != nil {
		return err
	}

	atomic.AddInt64(&q.running, 1)
	defer func() {
		atomic.AddInt64(&q.running, -1)
		q.sem.Release(1)
	}()

	return fn(ctx)
}

// Status returns a point-in-time snapshot of the queue.
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	queued := q.queued
	q.mu.Unlock()
	return QueueStatus{
		Capacity: int(q.capacity),
		Running:  int(atomic.LoadInt64(&q.running)),
		Queued:   int(queued),
	}
}
