// Package console handles the operator-facing side of a run: progress lines
// for iterations, tool calls and results, and the blocking stdin prompt the
// confirmation gate uses for state-mutating commands.
package console

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rfoxall/taskpilot/errors"
	"github.com/rfoxall/taskpilot/session"
	"github.com/rfoxall/taskpilot/tools"
)

// Verbosity controls how much tool execution detail is printed.
type Verbosity int

const (
	VerbosityNone Verbosity = iota
	VerbosityInfo
	VerbosityAll
)

// ParseVerbosity maps the config/flag value onto a Verbosity level.
func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "none":
		return VerbosityNone, nil
	case "info":
		return VerbosityInfo, nil
	case "all":
		return VerbosityAll, nil
	}
	return VerbosityNone, errors.New("invalid tool verbosity '%s', must be 'none', 'info' or 'all'", s)
}

// Console writes human-readable progress lines. It is not a machine
// protocol; the transcript is the structured record of a run.
type Console struct {
	out       io.Writer
	verbosity Verbosity
}

func New(out io.Writer, verbosity Verbosity) *Console {
	return &Console{out: out, verbosity: verbosity}
}

// Writer exposes the underlying writer so command output can stream to the
// same destination while it is being captured.
func (c *Console) Writer() io.Writer { return c.out }

func (c *Console) Iteration(n, max int) {
	fmt.Fprintf(c.out, "--- iteration %d/%d ---\n", n, max)
}

func (c *Console) ToolCall(tc session.ToolCall) {
	switch c.verbosity {
	case VerbosityAll:
		fmt.Fprintf(c.out, "taskpilot calls %s with args: %v\n", tc.Name, tc.Args)
	case VerbosityInfo:
		if cmd, ok := tc.Args["command"].(string); ok {
			fmt.Fprintf(c.out, "taskpilot runs: %s\n", cmd)
		} else {
			fmt.Fprintf(c.out, "taskpilot calls %s\n", tc.Name)
		}
	}
}

func (c *Console) ToolResult(tc session.ToolCall, result string) {
	switch c.verbosity {
	case VerbosityAll:
		fmt.Fprintf(c.out, "%s returned: %s\n", tc.Name, result)
	case VerbosityInfo:
		// Command executions get a one-line exit status; other tool
		// results stay quiet at this level.
		var res tools.ShellResult
		if err := json.Unmarshal([]byte(result), &res); err == nil && res.Command != "" {
			fmt.Fprintf(c.out, "%s finished: %s\n", res.Command, res.StatusLine())
		}
	}
}

func (c *Console) Warning(format string, a ...interface{}) {
	fmt.Fprintf(c.out, "Warning: %s\n", fmt.Sprintf(format, a...))
}

func (c *Console) Printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format, a...)
}

// StdinPrompter asks yes/no questions on the interactive console. Only the
// exact answer "y" (case-insensitive, trimmed) counts as approval; anything
// else, including EOF and empty input, denies.
type StdinPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewStdinPrompter(in io.Reader, out io.Writer) *StdinPrompter {
	return &StdinPrompter{in: bufio.NewReader(in), out: out}
}

func (p *StdinPrompter) Confirm(prompt string) bool {
	fmt.Fprint(p.out, prompt)
	answer, err := p.in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.TrimSpace(strings.ToLower(answer)) == "y"
}
