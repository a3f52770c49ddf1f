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

package activity_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/activity"
	"github.com/agentworld/agentworld/bus"
	"github.com/agentworld/agentworld/world"
)

func newTestWorld() (*world.World, *bus.Bus) {
	b := bus.New()
	w := world.New(world.Config{ID: "w1"}, b)
	return w, b
}

func TestTracker_SingleBeginEnd_GoesIdle(t *testing.T) {
	w, b := newTestWorld()
	tr := activity.New(nil)

	var events []world.ActivityType
	b.Subscribe(world.TopicActivity, func(a any) {
		events = append(events, a.(world.ActivityEvent).Type)
	})

	end := tr.Begin(w, "agent:alice")
	assert.Equal(t, 1, tr.PendingOperations(w))
	assert.True(t, w.IsProcessing)

	end()
	assert.Equal(t, 0, tr.PendingOperations(w))
	assert.False(t, w.IsProcessing)

	require.Len(t, events, 2)
	assert.Equal(t, world.ActivityResponseStart, events[0])
	assert.Equal(t, world.ActivityIdle, events[1])
}

func TestTracker_NestedBegins_OnlyLastEndGoesIdle(t *testing.T) {
	w, b := newTestWorld()
	tr := activity.New(nil)

	var events []world.ActivityType
	b.Subscribe(world.TopicActivity, func(a any) {
		events = append(events, a.(world.ActivityEvent).Type)
	})

	end1 := tr.Begin(w, "agent:alice")
	end2 := tr.Begin(w, "agent:bob")
	assert.Equal(t, 2, tr.PendingOperations(w))

	end1()
	assert.Equal(t, 1, tr.PendingOperations(w))
	assert.True(t, w.IsProcessing)

	end2()
	assert.Equal(t, 0, tr.PendingOperations(w))
	assert.False(t, w.IsProcessing)

	require.Len(t, events, 4)
	assert.Equal(t, []world.ActivityType{
		world.ActivityResponseStart,
		world.ActivityResponseStart,
		world.ActivityResponseEnd,
		world.ActivityIdle,
	}, events)
}

func TestTracker_End_IsSingleShot(t *testing.T) {
	w, _ := newTestWorld()
	tr := activity.New(nil)

	end := tr.Begin(w, "agent:alice")
	end()
	end()
	end()

	assert.Equal(t, 0, tr.PendingOperations(w))
}

func TestTracker_Track_ReleasesOnError(t *testing.T) {
	w, _ := newTestWorld()
	tr := activity.New(nil)

	boom := errors.New("boom")
	err := tr.Track(w, "agent:alice", func() error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, tr.PendingOperations(w))
	assert.False(t, w.IsProcessing)
}

func TestTracker_ActivityIDMonotonic(t *testing.T) {
	w, b := newTestWorld()
	tr := activity.New(nil)

	var ids []int64
	b.Subscribe(world.TopicActivity, func(a any) {
		ids = append(ids, a.(world.ActivityEvent).ActivityID)
	})

	tr.Begin(w, "a")()
	tr.Begin(w, "a")()
	tr.Begin(w, "a")()

	for i := 1; i < len(ids); i++ {
		assert.GreaterOrEqual(t, ids[i], ids[i-1])
	}
	assert.Equal(t, int64(3), ids[len(ids)-1])
}
