package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rfoxall/taskpilot/agent/console"
	"github.com/rfoxall/taskpilot/errors"
	"github.com/rfoxall/taskpilot/llm"
	"github.com/rfoxall/taskpilot/session"
	"github.com/rfoxall/taskpilot/tools"
)

const systemPrompt = `You are taskpilot, a command-line assistant that completes tasks by running shell commands.

Work step by step. Use the run_shell_command tool to inspect and change the system, and the lookup tool to search file contents. Set read_only=true only for commands with no side effects; other commands require operator confirmation and may be denied. A denied command is a normal result: adapt and try another approach or report failure.

When you are not calling a tool, reply with exactly one JSON object and nothing else, in one of these forms:
  {"status": "complete", "result": "<what was accomplished>", "summary": "<one-line summary>"}
  {"status": "continue", "next_step": "<what to do next>", "reason": "<why another iteration is needed>"}
  {"status": "failed", "error": "<what went wrong>", "attempted_steps": ["<step>", "..."]}

Use "continue" when the task needs another iteration, "complete" when it is done, and "failed" when it cannot be done.`

// Termination names the state the conversation loop ended in.
type Termination string

const (
	TerminationCompleted     Termination = "completed"
	TerminationFailed        Termination = "failed"
	TerminationMaxIterations Termination = "max iterations reached"
	TerminationRequestLimit  Termination = "request limit reached"
)

// DefaultErrorBudget is how many consecutive failed model invocations the
// loop tolerates before giving up.
const DefaultErrorBudget = 3

// errRequestLimit is compared by identity inside the loop; it is never
// wrapped.
var errRequestLimit = errors.New("request limit reached")

// ShellContext is the loop-owned working state for one run. It is mutated
// each iteration and discarded when the loop ends; StepsTaken is copied into
// the Result for reporting.
type ShellContext struct {
	Query         string
	StepsTaken    []string
	Discoveries   map[string]string
	MaxIterations int
}

// Result is what a finished run surfaces to the operator.
type Result struct {
	Outcome     *Outcome // nil when the loop ended on a budget, not a verdict
	Termination Termination
	Iterations  int
	Requests    int
	StepsTaken  []string
}

// Workflow drives repeated model invocations until the model returns a
// terminal outcome or a budget runs out.
type Workflow struct {
	client     llm.Client
	registry   *tools.Registry
	console    *console.Console
	transcript *session.Transcript

	maxIterations int
	requestLimit  int
	errorBudget   int
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithMaxIterations caps the number of loop iterations. Values below 1 keep
// the default of 10.
func WithMaxIterations(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.maxIterations = n
		}
	}
}

// WithRequestLimit caps the number of model invocations across the whole
// run, independent of the iteration cap.
func WithRequestLimit(n int) Option {
	return func(w *Workflow) {
		if n > 0 {
			w.requestLimit = n
		}
	}
}

// WithTranscript persists the message history to the given transcript as the
// run progresses.
func WithTranscript(t *session.Transcript) Option {
	return func(w *Workflow) {
		w.transcript = t
	}
}

// New creates a workflow around a model client, a tool registry and the
// operator console.
func New(client llm.Client, registry *tools.Registry, cons *console.Console, opts ...Option) (*Workflow, error) {
	if client == nil {
		return nil, errors.New("workflow requires a model client")
	}
	if registry == nil {
		return nil, errors.New("workflow requires a tool registry")
	}
	if cons == nil {
		return nil, errors.New("workflow requires a console")
	}
	w := &Workflow{
		client:        client,
		registry:      registry,
		console:       cons,
		maxIterations: 10,
		requestLimit:  25,
		errorBudget:   DefaultErrorBudget,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run executes the conversation loop for query. All failure information is
// carried in the Result; the returned error is reserved for misuse such as
// an empty query.
func (w *Workflow) Run(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query must not be empty")
	}

	sc := &ShellContext{
		Query:         query,
		Discoveries:   make(map[string]string),
		MaxIterations: w.maxIterations,
	}
	messages := []session.Message{{Role: "system", Content: systemPrompt}}
	res := &Result{}
	consecutiveErrors := 0

	for iteration := 1; ; iteration++ {
		if ctx.Err() != nil {
			res.Outcome = &Outcome{Failed: &TaskFailed{
				Error:          "run cancelled by operator",
				AttemptedSteps: sc.StepsTaken,
			}}
			res.Termination = TerminationFailed
			break
		}
		if iteration > sc.MaxIterations {
			res.Termination = TerminationMaxIterations
			break
		}
		// Checked here as well as before each Chat so an iteration that
		// would get no model reply is never counted or announced.
		if res.Requests >= w.requestLimit {
			res.Termination = TerminationRequestLimit
			break
		}
		res.Iterations = iteration
		w.console.Iteration(iteration, sc.MaxIterations)

		prompt := "Continue with the next step."
		if iteration == 1 {
			prompt = "Handle this query: " + query
		}

		outcome, updated, err := w.runIteration(ctx, res, messages, prompt)
		if err == errRequestLimit {
			res.Termination = TerminationRequestLimit
			break
		}
		if err != nil {
			consecutiveErrors++
			w.console.Warning("iteration %d failed: %v", iteration, err)
			if consecutiveErrors >= w.errorBudget {
				res.Outcome = &Outcome{Failed: &TaskFailed{
					Error:          fmt.Sprintf("%d consecutive model invocation failures, last: %v", consecutiveErrors, err),
					AttemptedSteps: sc.StepsTaken,
				}}
				res.Termination = TerminationFailed
				break
			}
			continue
		}
		consecutiveErrors = 0

		// Replace, not merge: the transcript the model returned is the
		// authoritative history for the next iteration.
		messages = updated
		if w.transcript != nil {
			w.transcript.Replace(messages)
		}

		if outcome.Continue != nil {
			sc.StepsTaken = append(sc.StepsTaken,
				fmt.Sprintf("iteration %d: %s", iteration, outcome.Continue.NextStep))
			if outcome.Continue.Reason != "" {
				sc.Discoveries[fmt.Sprintf("iteration_%d", iteration)] = outcome.Continue.Reason
			}
			continue
		}

		res.Outcome = outcome
		if outcome.Complete != nil {
			res.Termination = TerminationCompleted
		} else {
			res.Termination = TerminationFailed
		}
		break
	}

	res.StepsTaken = sc.StepsTaken
	if w.transcript != nil {
		if err := w.transcript.Save(); err != nil {
			w.console.Warning("failed to save session: %v", err)
		}
	}
	return res, nil
}

// runIteration performs one model invocation cycle: send the prompt, execute
// any tool calls the model requests, and repeat until the model replies with
// an outcome instead of a tool call. It returns the updated transcript on
// success and leaves the caller's transcript untouched on failure.
func (w *Workflow) runIteration(ctx context.Context, res *Result, transcript []session.Message, prompt string) (*Outcome, []session.Message, error) {
	msgs := make([]session.Message, len(transcript), len(transcript)+2)
	copy(msgs, transcript)
	msgs = append(msgs, session.Message{Role: "user", Content: prompt})

	for {
		if res.Requests >= w.requestLimit {
			return nil, nil, errRequestLimit
		}
		res.Requests++

		reply, err := w.client.Chat(ctx, msgs, w.registry.All())
		if err != nil {
			return nil, nil, errors.Wrapf(err, "model invocation failed")
		}
		msgs = append(msgs, *reply)

		if len(reply.ToolCalls) == 0 {
			outcome, err := ParseOutcome(reply.Content)
			if err != nil {
				return nil, nil, err
			}
			return outcome, msgs, nil
		}

		for _, tc := range reply.ToolCalls {
			w.console.ToolCall(tc)
			result := w.executeTool(ctx, tc)
			w.console.ToolResult(tc, result)
			msgs = append(msgs, session.Message{
				Role:      "tool",
				Content:   result,
				ToolCalls: []session.ToolCall{tc},
			})
		}
	}
}

// executeTool resolves and runs one tool call. Failures become text results
// so the model can reason over them instead of crashing the iteration.
func (w *Workflow) executeTool(ctx context.Context, tc session.ToolCall) string {
	t, ok := w.registry.Get(tc.Name)
	if !ok {
		return fmt.Sprintf("Error: tool '%s' is not registered", tc.Name)
	}
	out, err := t.Execute(ctx, tc.Args)
	if err != nil {
		return fmt.Sprintf("Error executing tool '%s': %v", tc.Name, err)
	}
	return out
}
