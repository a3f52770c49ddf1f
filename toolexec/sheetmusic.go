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

package toolexec

import (
	"context"

	"github.com/agentworld/agentworld/werrors"
)

// SheetMusicAckTool is the sheet_music_ack built-in: there is no richer
// specification for it beyond its name, so it validates its arguments
// and echoes them back as an acknowledgement (documented in DESIGN.md).
type SheetMusicAckTool struct{}

func (t *SheetMusicAckTool) Name() string          { return "sheet_music_ack" }
func (t *SheetMusicAckTool) RequiresApproval() bool { return false }

func (t *SheetMusicAckTool) Call(ctx context.Context, chatID string, args map[string]any) (map[string]any, error) {
	title, _ := args["title"].(string)
	if title == "" {
		return nil, werrors.New(werrors.Validation, "toolexec", "sheet_music_ack", "title is required", nil)
	}
	return map[string]any{
		"acknowledged": true,
		"title":        title,
		"received":     args,
	}, nil
}

var _ Tool = (*SheetMusicAckTool)(nil)
