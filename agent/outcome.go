package agent

import (
	"encoding/json"
	"strings"

	"github.com/rfoxall/taskpilot/errors"
)

// TaskComplete is the terminal success verdict.
type TaskComplete struct {
	Result  string `json:"result"`
	Summary string `json:"summary"`
}

// TaskContinue requests another iteration.
type TaskContinue struct {
	NextStep string `json:"next_step"`
	Reason   string `json:"reason"`
}

// TaskFailed is the terminal failure verdict.
type TaskFailed struct {
	Error          string   `json:"error"`
	AttemptedSteps []string `json:"attempted_steps"`
}

// Outcome is the model's per-iteration verdict. Exactly one arm is non-nil.
type Outcome struct {
	Complete *TaskComplete
	Continue *TaskContinue
	Failed   *TaskFailed
}

// Terminal reports whether this outcome ends the run.
func (o *Outcome) Terminal() bool {
	return o.Complete != nil || o.Failed != nil
}

// outcomeEnvelope is the wire shape the model is instructed to emit.
type outcomeEnvelope struct {
	Status         string   `json:"status"`
	Result         string   `json:"result"`
	Summary        string   `json:"summary"`
	NextStep       string   `json:"next_step"`
	Reason         string   `json:"reason"`
	Error          string   `json:"error"`
	AttemptedSteps []string `json:"attempted_steps"`
}

// ParseOutcome extracts the outcome JSON from the model's final message of
// an iteration. Models wrap JSON in prose or code fences often enough that
// the parser scans for the object rather than requiring a bare document.
func ParseOutcome(text string) (*Outcome, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no outcome object found in model output: %q", truncate(text, 120))
	}

	var env outcomeEnvelope
	if err := json.Unmarshal([]byte(text[start:end+1]), &env); err != nil {
		return nil, errors.Wrapf(err, "malformed outcome object")
	}

	switch env.Status {
	case "complete":
		return &Outcome{Complete: &TaskComplete{Result: env.Result, Summary: env.Summary}}, nil
	case "continue":
		return &Outcome{Continue: &TaskContinue{NextStep: env.NextStep, Reason: env.Reason}}, nil
	case "failed":
		return &Outcome{Failed: &TaskFailed{Error: env.Error, AttemptedSteps: env.AttemptedSteps}}, nil
	default:
		return nil, errors.New("unknown outcome status %q", env.Status)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
