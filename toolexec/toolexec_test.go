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

package toolexec_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentworld/agentworld/toolexec"
	"github.com/agentworld/agentworld/world"
)

// fakeAsker is a scripted Asker test double.
type fakeAsker struct {
	responses []toolexec.OptionResponse
	i         int
}

func (f *fakeAsker) Ask(ctx context.Context, req toolexec.OptionRequest) (toolexec.OptionResponse, error) {
	r := f.responses[f.i]
	f.i++
	return r, nil
}

func strPtr(s string) *string { return &s }

func TestValidate_DropsEmptyToolName(t *testing.T) {
	calls := []world.ToolCall{
		{ID: "tc1", Function: world.ToolCallFunction{Name: "shell_cmd", Arguments: "{}"}},
		{ID: "tc2", Function: world.ToolCallFunction{Name: "   ", Arguments: "{}"}},
	}
	valid, malformed := toolexec.Validate(calls)

	require.Len(t, valid, 1)
	assert.Equal(t, "tc1", valid[0].ID)

	require.Len(t, malformed, 1)
	assert.Equal(t, "tc2", malformed[0].Message.ToolCallID)
	assert.Contains(t, malformed[0].Message.Content, "Malformed tool call")
	assert.Equal(t, world.SSEToolError, malformed[0].SSE.Type)
}

func TestExecute_UnknownToolReturnsErrorMessage(t *testing.T) {
	ex := toolexec.New(nil)
	msg := ex.Execute(context.Background(), "chat1", world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{Name: "nope"}})

	assert.Equal(t, world.RoleTool, msg.Role)
	assert.Contains(t, msg.Content, "unknown tool")
}

func TestExecute_SheetMusicAck(t *testing.T) {
	ex := toolexec.New(nil, &toolexec.SheetMusicAckTool{})
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{Name: "sheet_music_ack", Arguments: `{"title":"Fur Elise"}`}}
	msg := ex.Execute(context.Background(), "chat1", call)

	assert.Equal(t, world.RoleTool, msg.Role)
	assert.Contains(t, msg.Content, "Fur Elise")
	assert.Contains(t, msg.Content, `"acknowledged":true`)
}

func TestExecute_SheetMusicAck_MissingTitleErrors(t *testing.T) {
	ex := toolexec.New(nil, &toolexec.SheetMusicAckTool{})
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{Name: "sheet_music_ack", Arguments: `{}`}}
	msg := ex.Execute(context.Background(), "chat1", call)

	assert.Contains(t, msg.Content, "Error:")
}

func TestHumanInterventionTool_ConfirmedSelection(t *testing.T) {
	asker := &fakeAsker{responses: []toolexec.OptionResponse{
		{RequestID: "r1", SelectedOption: strPtr("Yes"), Source: "user"},
	}}
	ex := toolexec.New(asker, toolexec.NewHumanInterventionTool(asker))
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{
		Name:      "human_intervention_request",
		Arguments: `{"message":"proceed?","options":["Yes","No"],"default_option":"No"}`,
	}}

	msg := ex.Execute(context.Background(), "chat1", call)
	assert.Contains(t, msg.Content, `"status":"confirmed"`)
	assert.Contains(t, msg.Content, `"selectedOption":"Yes"`)
}

func TestHumanInterventionTool_RequireConfirmation_Cancel(t *testing.T) {
	asker := &fakeAsker{responses: []toolexec.OptionResponse{
		{RequestID: "r1", SelectedOption: strPtr("Yes"), Source: "user"},
		{RequestID: "r2", SelectedOption: strPtr("Cancel"), Source: "user"},
	}}
	ex := toolexec.New(asker, toolexec.NewHumanInterventionTool(asker))
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{
		Name:      "human_intervention_request",
		Arguments: `{"message":"proceed?","options":["Yes","No"],"require_confirmation":true}`,
	}}

	msg := ex.Execute(context.Background(), "chat1", call)
	assert.Contains(t, msg.Content, `"status":"canceled"`)
	assert.Contains(t, msg.Content, `"confirmed":false`)
}

func TestHumanInterventionTool_BadDefaultOptionErrors(t *testing.T) {
	asker := &fakeAsker{}
	tool := toolexec.NewHumanInterventionTool(asker)
	_, err := tool.Call(context.Background(), "chat1", map[string]any{
		"options":        []any{"Yes", "No"},
		"default_option": "Maybe",
	})
	require.Error(t, err)
}

func TestShellTool_DeniedCommandRejected(t *testing.T) {
	ex := toolexec.New(nil, toolexec.NewShellTool(toolexec.ShellConfig{}))
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{
		Name:      "shell_cmd",
		Arguments: `{"command":"rm -rf /"}`,
	}}
	msg := ex.Execute(context.Background(), "chat1", call)
	assert.Contains(t, msg.Content, "Error:")
}

func TestShellTool_AllowedCommandRuns(t *testing.T) {
	ex := toolexec.New(nil, toolexec.NewShellTool(toolexec.ShellConfig{AllowedCommands: []string{"echo"}}))
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{
		Name:      "shell_cmd",
		Arguments: `{"command":"echo hello"}`,
	}}
	msg := ex.Execute(context.Background(), "chat1", call)
	assert.Contains(t, msg.Content, "hello")
	assert.Contains(t, msg.Content, `"exitCode":0`)
}

func TestShellTool_RequiresApproval_DeniedWithoutAsker(t *testing.T) {
	tool := toolexec.NewShellTool(toolexec.ShellConfig{AllowedCommands: []string{"echo"}, RequireApproval: true})
	ex := toolexec.New(nil, tool)
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{
		Name:      "shell_cmd",
		Arguments: `{"command":"echo hello"}`,
	}}
	msg := ex.Execute(context.Background(), "chat1", call)
	assert.Contains(t, msg.Content, "Error:")
}

func TestShellTool_ApprovalCache_IsChatAndToolScoped(t *testing.T) {
	asker := &fakeAsker{responses: []toolexec.OptionResponse{
		{SelectedOption: strPtr("Approve"), Source: "user"},
	}}
	tool := toolexec.NewShellTool(toolexec.ShellConfig{AllowedCommands: []string{"echo"}, RequireApproval: true})
	ex := toolexec.New(asker, tool)
	call := world.ToolCall{ID: "tc1", Function: world.ToolCallFunction{
		Name:      "shell_cmd",
		Arguments: `{"command":"echo hello"}`,
	}}

	msg1 := ex.Execute(context.Background(), "chat1", call)
	assert.Contains(t, msg1.Content, "hello")

	// Second call in the same chat reuses the cached approval without
	// consulting the asker again.
	msg2 := ex.Execute(context.Background(), "chat1", call)
	assert.Contains(t, msg2.Content, "hello")
	assert.Equal(t, 1, asker.i)
}
