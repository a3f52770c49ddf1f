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

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/config"
)

func TestLoad_DefaultsWithNoEnv(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "./data/worlds", c.DataPath)
	assert.Equal(t, 5, c.DefaultTurnLimit)
	assert.Equal(t, config.StorageDriverFile, c.StorageDriver)
	assert.Equal(t, 8, c.ToolIterationCap)
	assert.Equal(t, 10, c.HistoryWindow)
	assert.Equal(t, 4, c.LLMConcurrency)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("AGENT_WORLD_TURN_LIMIT", "12")
	t.Setenv("AGENT_WORLD_STORAGE_DRIVER", "sqlite")
	t.Setenv("AGENT_WORLD_DSN", "file:test.db")
	t.Setenv("AGENT_WORLD_LLM_CONCURRENCY", "2")

	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 12, c.DefaultTurnLimit)
	assert.Equal(t, config.StorageDriverSQLite, c.StorageDriver)
	assert.Equal(t, "file:test.db", c.DSN)
	assert.Equal(t, 2, c.LLMConcurrency)
}

func TestLoad_SQLDriverWithoutDSNFails(t *testing.T) {
	t.Setenv("AGENT_WORLD_STORAGE_DRIVER", "postgres")
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_InvalidStorageDriverFails(t *testing.T) {
	t.Setenv("AGENT_WORLD_STORAGE_DRIVER", "mongodb")
	_, err := config.Load()
	require.Error(t, err)
}
