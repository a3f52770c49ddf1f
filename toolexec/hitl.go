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
	"fmt"
	"strings"
	"time"

	"github.com/agentworld/agentworld/werrors"
)

// OptionRequest is a single option-mode prompt presented to a human
// (spec.md §4.6 HITL protocol).
type OptionRequest struct {
	Message             string
	Options             []string
	DefaultOption       string
	TimeoutMs           int
	RequireConfirmation bool
}

// OptionResponse is the primary resolution of an OptionRequest.
type OptionResponse struct {
	RequestID      string
	SelectedOption *string
	Source         string // "user" | "timeout"
}

// Asker resolves an OptionRequest, decoupled from any particular
// transport (console, web, test double) — this module never implements
// a concrete Asker itself (spec.md §1 scope).
type Asker interface {
	Ask(ctx context.Context, req OptionRequest) (OptionResponse, error)
}

// NormalizeOptions trims whitespace from each option, dedupes
// case-insensitively (first occurrence wins as the display label), and
// drops empty entries (spec.md §4.6).
func NormalizeOptions(options []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range options {
		trimmed := strings.TrimSpace(o)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	return out
}

// HITLStatus is the terminal status of a human_intervention_request
// call (spec.md §4.6).
type HITLStatus string

const (
	HITLConfirmed HITLStatus = "confirmed"
	HITLCanceled  HITLStatus = "canceled"
	HITLTimeout   HITLStatus = "timeout"
	HITLError     HITLStatus = "error"
)

// HITLResult is the final JSON payload returned by
// human_intervention_request (spec.md §4.6).
type HITLResult struct {
	OK             bool       `json:"ok"`
	Status         HITLStatus `json:"status"`
	Confirmed      bool       `json:"confirmed"`
	SelectedOption *string    `json:"selectedOption"`
	Source         string     `json:"source"`
	RequestID      string     `json:"requestId"`
	Message        string     `json:"message,omitempty"`
}

// HumanInterventionTool implements the human_intervention_request
// built-in (spec.md §4.6), adapted from v2/tool/approvaltool's
// pending/resume shape into a single in-process round trip through an
// Asker, since the a2a input_required task state is out of scope here.
type HumanInterventionTool struct {
	asker Asker
}

// NewHumanInterventionTool creates the human_intervention_request tool.
func NewHumanInterventionTool(asker Asker) *HumanInterventionTool {
	return &HumanInterventionTool{asker: asker}
}

func (t *HumanInterventionTool) Name() string { return "human_intervention_request" }

// RequiresApproval is false: this tool IS the approval mechanism, so it
// must not recurse through the executor's own approval cache.
func (t *HumanInterventionTool) RequiresApproval() bool { return false }

func (t *HumanInterventionTool) Call(ctx context.Context, chatID string, args map[string]any) (map[string]any, error) {
	if t.asker == nil {
		return nil, werrors.New(werrors.Tool, "toolexec", "human_intervention_request", "no Asker configured", nil)
	}

	message, _ := args["message"].(string)
	defaultOption, _ := args["default_option"].(string)
	requireConfirmation, _ := args["require_confirmation"].(bool)

	rawOptions, _ := args["options"].([]any)
	options := make([]string, 0, len(rawOptions))
	for _, o := range rawOptions {
		if s, ok := o.(string); ok {
			options = append(options, s)
		}
	}
	options = NormalizeOptions(options)
	if len(options) == 0 {
		return nil, werrors.New(werrors.Validation, "toolexec", "human_intervention_request", "options must be non-empty after normalization", nil)
	}

	if defaultOption != "" && !containsFold(options, defaultOption) {
		return nil, werrors.New(werrors.Validation, "toolexec", "human_intervention_request",
			fmt.Sprintf("default_option %q does not match any normalized option", defaultOption), nil)
	}

	timeoutMs := 0
	if v, ok := args["timeout_ms"].(float64); ok && v > 0 {
		timeoutMs = int(v)
	}

	resp, err := t.resolve(ctx, OptionRequest{
		Message:       message,
		Options:       options,
		DefaultOption: defaultOption,
		TimeoutMs:     timeoutMs,
	})
	if err != nil {
		return resultJSON(HITLResult{OK: false, Status: HITLError, Message: err.Error()}), nil
	}

	result := HITLResult{
		OK:             true,
		Status:         HITLConfirmed,
		Confirmed:      true,
		SelectedOption: resp.SelectedOption,
		Source:         resp.Source,
		RequestID:      resp.RequestID,
	}
	if resp.Source == "timeout" {
		result.Status = HITLTimeout
		result.Confirmed = false
	}

	if requireConfirmation && result.Confirmed {
		confirmResp, err := t.resolve(ctx, OptionRequest{
			Message:       fmt.Sprintf("Confirm selection %q?", valueOrEmpty(resp.SelectedOption)),
			Options:       []string{"Confirm", "Cancel"},
			DefaultOption: "Cancel",
		})
		if err != nil {
			return resultJSON(HITLResult{OK: false, Status: HITLError, Message: err.Error()}), nil
		}
		if confirmResp.SelectedOption == nil || !strings.EqualFold(*confirmResp.SelectedOption, "Confirm") {
			result.Status = HITLCanceled
			result.Confirmed = false
		}
	}

	return resultJSON(result), nil
}

func (t *HumanInterventionTool) resolve(ctx context.Context, req OptionRequest) (OptionResponse, error) {
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	resp, err := t.asker.Ask(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			def := req.DefaultOption
			return OptionResponse{SelectedOption: optionalString(def), Source: "timeout"}, nil
		}
		return OptionResponse{}, err
	}
	return resp, nil
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func resultJSON(r HITLResult) map[string]any {
	return map[string]any{
		"ok":             r.OK,
		"status":         string(r.Status),
		"confirmed":      r.Confirmed,
		"selectedOption": r.SelectedOption,
		"source":         r.Source,
		"requestId":      r.RequestID,
		"message":        r.Message,
	}
}

var _ Tool = (*HumanInterventionTool)(nil)
