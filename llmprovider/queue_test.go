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

package llmprovider_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/llmprovider"
)

func TestQueue_CapsConcurrency(t *testing.T) {
	q := llmprovider.NewQueue(2)
	var mu sync.Mutex
	maxObserved := 0
	current := 0

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Acquire(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				current++
				if current > maxObserved {
					maxObserved = current
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxObserved, 2)
}

func TestQueue_StatusReportsCapacity(t *testing.T) {
	q := llmprovider.NewQueue(4)
	st := q.Status()
	require.Equal(t, 4, st.Capacity)
	assert.Equal(t, 0, st.Running)
	assert.Equal(t, 0, st.Queued)
}
