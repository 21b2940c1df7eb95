package tools

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rfoxall/taskpilot/errors"
)

// Timeout bounds for a single command. Values outside the range are clamped
// rather than rejected so a sloppy model request still runs.
const (
	MinCommandTimeout     = 1 * time.Second
	MaxCommandTimeout     = 300 * time.Second
	DefaultCommandTimeout = 30 * time.Second
)

// ShellResult is what the model receives back from a command execution.
// Every failure mode is captured here as data; the executor never returns
// an error for something the model could reason over.
type ShellResult struct {
	Command string `json:"command"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
	// ExitCode is -1 when the command produced no exit status (timeout,
	// launch failure, denial).
	ExitCode       int     `json:"exit_code"`
	TimedOut       bool    `json:"timed_out,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// StatusLine is the one-line exit status shown on the operator console.
func (r ShellResult) StatusLine() string {
	if r.TimedOut {
		return fmt.Sprintf("timed out after %.1fs, success=false", r.ElapsedSeconds)
	}
	if r.ExitCode < 0 {
		return "success=false"
	}
	return fmt.Sprintf("exit code %d, success=%t", r.ExitCode, r.Success)
}

// Render serializes the result for the model's context.
func (r ShellResult) Render() string {
	data, err := json.Marshal(r)
	if err != nil {
		// Marshalling a flat struct of strings and numbers cannot fail,
		// but the model still needs text if it somehow does.
		return fmt.Sprintf("command: %s\nsuccess: %t\n%s", r.Command, r.Success, r.Output)
	}
	return string(data)
}

// Executor runs shell commands with a bounded timeout, capturing stdout,
// stderr and the exit code. Captured output is additionally streamed to
// Console while the command runs so the operator sees it live.
type Executor struct {
	Shell   string    // defaults to "bash"
	Console io.Writer // nil disables live output
}

// Run executes command through the shell. Success is strictly exit code 0.
// A timeout kills the subprocess and is tagged distinctly from an ordinary
// nonzero exit.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) ShellResult {
	shell := e.Shell
	if shell == "" {
		shell = "bash"
	}
	timeout = clampTimeout(timeout)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	// A backgrounded child inherits the output pipes and would otherwise pin
	// Wait long after the shell itself is killed or has exited; abandon the
	// pipes shortly after the process is gone so the timeout holds.
	cmd.WaitDelay = time.Second
	if e.Console != nil {
		cmd.Stdout = io.MultiWriter(&stdout, e.Console)
		cmd.Stderr = io.MultiWriter(&stderr, e.Console)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := ShellResult{Command: command, ExitCode: -1, ElapsedSeconds: elapsed.Seconds()}

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.Output = composeOutput(stdout.String(), stderr.String(),
			fmt.Sprintf("Command timed out after %s", timeout))
	case ctx.Err() != nil:
		// Operator interrupt. The subprocess was killed by CommandContext.
		res.Output = composeOutput(stdout.String(), stderr.String(),
			"Command aborted by operator interrupt")
	case err == nil, stderrors.Is(err, exec.ErrWaitDelay):
		// ErrWaitDelay means the shell exited 0 but a child it left behind
		// still held the pipes when the grace period ran out.
		res.Success = true
		res.ExitCode = 0
		res.Output = composeOutput(stdout.String(), stderr.String(), "Exit code: 0")
	default:
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			res.Output = composeOutput(stdout.String(), stderr.String(),
				fmt.Sprintf("Exit code: %d", res.ExitCode))
		} else {
			// Launch failure: shell missing, fork error, etc.
			res.Output = fmt.Sprintf("Failed to start command: %v", err)
		}
	}
	return res
}

func clampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultCommandTimeout
	case d < MinCommandTimeout:
		return MinCommandTimeout
	case d > MaxCommandTimeout:
		return MaxCommandTimeout
	}
	return d
}

func composeOutput(stdout, stderr string, trailer string) string {
	var b strings.Builder
	if stdout != "" {
		b.WriteString(strings.TrimRight(stdout, "\n"))
		b.WriteByte('\n')
	}
	if stderr != "" {
		b.WriteString(strings.TrimRight(stderr, "\n"))
		b.WriteByte('\n')
	}
	b.WriteString(trailer)
	return b.String()
}

// Mode controls whether state-mutating commands require confirmation.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModePrompt Mode = "prompt"
)

// Prompter asks the operator a yes/no question and blocks for the answer.
// Only an explicit affirmative returns true.
type Prompter interface {
	Confirm(prompt string) bool
}

// Gate decides, per command, whether execution needs interactive approval.
// Read-only commands pass unconditionally; the read_only flag is asserted
// by the model and trusted unless VerifyReadOnly is enabled.
type Gate struct {
	Mode           Mode
	Prompter       Prompter
	VerifyReadOnly bool

	readOnlyPatterns []*regexp.Regexp
}

func NewGate(mode Mode, prompter Prompter) *Gate {
	return &Gate{Mode: mode, Prompter: prompter}
}

// SetReadOnlyPatterns compiles the regex allowlist used when VerifyReadOnly
// is enabled.
func (g *Gate) SetReadOnlyPatterns(patterns []string) error {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return errors.Wrapf(err, "invalid read_only_commands pattern '%s'", p)
		}
		compiled = append(compiled, re)
	}
	g.readOnlyPatterns = compiled
	return nil
}

// ShouldExecute reports whether the command may run. In prompt mode a
// non-read-only command blocks on the operator's answer.
func (g *Gate) ShouldExecute(command string, readOnly bool) bool {
	if g.Mode == ModeAuto {
		return true
	}
	if readOnly && g.VerifyReadOnly {
		readOnly = g.matchesReadOnly(command)
	}
	if readOnly {
		return true
	}
	if g.Prompter == nil {
		return false
	}
	return g.Prompter.Confirm(fmt.Sprintf("taskpilot wants to run: %s\nDo you want to allow this? (y/n): ", command))
}

func (g *Gate) matchesReadOnly(command string) bool {
	for _, re := range g.readOnlyPatterns {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// ShellTool exposes run_shell_command to the model.
type ShellTool struct {
	gate *Gate

	// run is the executor entry point, replaceable in tests to assert the
	// gate short-circuits execution.
	run func(ctx context.Context, command string, timeout time.Duration) ShellResult
}

func NewShellTool(gate *Gate, exec *Executor) *ShellTool {
	return &ShellTool{gate: gate, run: exec.Run}
}

func (t *ShellTool) Name() string { return "run_shell_command" }

func (t *ShellTool) Description() string {
	return "Runs a shell command and returns its output, exit code and success flag. " +
		"Set read_only=true only for commands with no side effects; other commands " +
		"require operator confirmation and may be denied. " +
		"Args: command (string), read_only (boolean), timeout (integer seconds, 1-300, default 30)."
}

func (t *ShellTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute.",
			},
			"read_only": map[string]interface{}{
				"type":        "boolean",
				"description": "True if the command has no side effects.",
			},
			"timeout": map[string]interface{}{
				"type":        "integer",
				"description": "Timeout in seconds, between 1 and 300. Defaults to 30.",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ShellTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return "", errors.New("missing or invalid 'command' argument")
	}

	readOnly, _ := args["read_only"].(bool)

	var timeout time.Duration
	switch v := args["timeout"].(type) {
	case float64:
		timeout = time.Duration(v) * time.Second
	case int:
		timeout = time.Duration(v) * time.Second
	}

	if !t.gate.ShouldExecute(command, readOnly) {
		// Denial is a valid tool result, not an error; the model adapts.
		res := ShellResult{
			Command:  command,
			Output:   "Command cancelled by user",
			Success:  false,
			ExitCode: -1,
		}
		return res.Render(), nil
	}

	return t.run(ctx, command, timeout).Render(), nil
}
