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
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/agentworld/agentworld/werrors"
)

// DefaultDeniedCommands are base commands blocked unless explicitly
// allowed, adapted from v2/tool/commandtool's DefaultDeniedCommands.
var DefaultDeniedCommands = []string{
	"rm", "rmdir", "sudo", "su", "chmod", "chown",
	"dd", "mkfs", "fdisk", "mount", "umount",
	"kill", "killall", "pkill", "reboot", "shutdown",
	"passwd", "useradd", "userdel", "groupadd",
}

// DefaultDeniedPatterns are regexes blocked regardless of the allow
// list, adapted from v2/tool/commandtool's DefaultDeniedPatterns.
var DefaultDeniedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+(-rf|-fr|--recursive)`),
	regexp.MustCompile(`>\s*/dev/`),
	regexp.MustCompile(`:\(\)\s*\{\s*:\|:\s*&\s*\}\s*;`),
	regexp.MustCompile(`wget.*\|\s*sh`),
	regexp.MustCompile(`curl.*\|\s*sh`),
	regexp.MustCompile(`eval\s*\$`),
	regexp.MustCompile(`\$\(.*\)\s*>\s*/`),
	regexp.MustCompile(`>\s*/etc/`),
	regexp.MustCompile(`chmod\s+777`),
	regexp.MustCompile(`--no-preserve-root`),
}

// ShellConfig configures ShellTool's security posture.
type ShellConfig struct {
	AllowedCommands []string
	DeniedCommands  []string // defaults to DefaultDeniedCommands when nil
	DeniedPatterns  []*regexp.Regexp
	DenyByDefault   bool
	WorkingDir      string
	Timeout         time.Duration
	RequireApproval bool
}

// ShellTool is the shell_cmd built-in (spec.md §4.6), adapted from
// v2/tool/commandtool with its iter.Seq2 live-streaming removed: the
// Tool interface here returns one aggregated result, matching the
// `{content, details:{exitCode,duration}}` shape spec.md specifies.
type ShellTool struct {
	allowed         map[string]bool
	denied          map[string]bool
	deniedPatterns  []*regexp.Regexp
	denyByDefault   bool
	workingDir      string
	timeout         time.Duration
	requireApproval bool
}

// NewShellTool creates the shell_cmd tool.
func NewShellTool(cfg ShellConfig) *ShellTool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	allowed := make(map[string]bool, len(cfg.AllowedCommands))
	for _, c := range cfg.AllowedCommands {
		allowed[c] = true
	}

	deniedList := cfg.DeniedCommands
	if deniedList == nil {
		deniedList = DefaultDeniedCommands
	}
	denied := make(map[string]bool, len(deniedList))
	for _, c := range deniedList {
		denied[c] = true
	}

	patterns := cfg.DeniedPatterns
	if patterns == nil {
		patterns = DefaultDeniedPatterns
	}

	return &ShellTool{
		allowed:         allowed,
		denied:          denied,
		deniedPatterns:  patterns,
		denyByDefault:   cfg.DenyByDefault,
		workingDir:      cfg.WorkingDir,
		timeout:         timeout,
		requireApproval: cfg.RequireApproval,
	}
}

func (t *ShellTool) Name() string          { return "shell_cmd" }
func (t *ShellTool) RequiresApproval() bool { return t.requireApproval }

func (t *ShellTool) validate(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command is required")
	}
	for _, p := range t.deniedPatterns {
		if p.MatchString(command) {
			return fmt.Errorf("command matches denied pattern: %s", p.String())
		}
	}
	base := extractBaseCommand(command)
	if base == "" {
		return fmt.Errorf("could not extract base command")
	}
	if t.denied[base] {
		return fmt.Errorf("command not allowed: %s (in deny list)", base)
	}
	if t.denyByDefault || len(t.allowed) > 0 {
		if !t.allowed[base] {
			return fmt.Errorf("command not allowed: %s (not in allow list)", base)
		}
	}
	return nil
}

func extractBaseCommand(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';' || r == '&'
	})
	if len(parts) == 0 {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(parts[0]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Call runs the command and returns shell_cmd's result shape: args are
// "command" (string), "parameters" ([]string, appended via shell word
// splitting is the caller's concern — passed through as additional
// positional words), and "directory" (string, overrides WorkingDir).
func (t *ShellTool) Call(ctx context.Context, chatID string, args map[string]any) (map[string]any, error) {
	command, _ := args["command"].(string)
	var extra []string
	if rawParams, ok := args["parameters"].([]any); ok {
		for _, p := range rawParams {
			if s, ok := p.(string); ok {
				extra = append(extra, s)
			}
		}
	}
	full := command
	if len(extra) > 0 {
		full = command + " " + strings.Join(extra, " ")
	}

	if err := t.validate(full); err != nil {
		return nil, werrors.New(werrors.Tool, "toolexec", "shell_cmd", err.Error(), nil)
	}

	dir := t.workingDir
	if d, ok := args["directory"].(string); ok && d != "" {
		dir = d
	}

	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", full)
	if dir != "" {
		cmd.Dir = dir
	}

	start := time.Now()
	output, runErr := cmd.CombinedOutput()
	duration := time.Since(start)

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	text := string(output)
	if text == "" {
		text = "(no output)"
	}
	if runErr != nil && exitCode == 0 {
		exitCode = -1
	}

	return map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"details": map[string]any{
			"exitCode": exitCode,
			"duration": duration.Milliseconds(),
		},
	}, nil
}

var _ Tool = (*ShellTool)(nil)
