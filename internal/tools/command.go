package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// GenericLinuxCommand is the canonical shell execution tool name.
const GenericLinuxCommand = "generic_linux_command"

// ShellConfig configures the shell command executor.
type ShellConfig struct {
	Shell   string        `json:"shell,omitempty"`   // defaults to /bin/sh
	Timeout time.Duration `json:"timeout,omitempty"` // per-invocation cap, 0 means none
}

// ShellExecutor runs the "command" field of a tool call through the shell and
// returns combined stdout and stderr.
type ShellExecutor struct {
	config ShellConfig
}

// NewShellExecutor creates a shell command executor.
func NewShellExecutor(config ShellConfig) *ShellExecutor {
	if config.Shell == "" {
		config.Shell = "/bin/sh"
	}
	return &ShellExecutor{config: config}
}

// Execute runs the command from the tool input.
func (e *ShellExecutor) Execute(ctx context.Context, input map[string]any) (string, error) {
	command, _ := input["command"].(string)
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("shell tool: missing \"command\" input")
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.config.Shell, "-c", command)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("shell tool: %w", ctx.Err())
		}
		// Non-zero exit still produced output worth returning to the model.
		return combined.String(), fmt.Errorf("shell tool: %s: %w", command, err)
	}

	return combined.String(), nil
}

// ShellDefinition returns the tool definition for generic_linux_command.
func ShellDefinition() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}
