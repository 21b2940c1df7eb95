// Package agent implements taskpilot's conversation loop: the state machine
// that repeatedly invokes the model, executes the tool calls it requests and
// interprets its per-iteration verdict.
//
// # The loop
//
// A run starts from a single user query. Each iteration sends a prompt (the
// query on the first iteration, a continuation prompt afterwards) together
// with the full message history. Within an iteration the model may request
// any number of tool calls; each result is appended to the history and the
// model is invoked again until it answers with an outcome instead of a tool
// call.
//
// # Outcomes
//
// The model must classify its progress as exactly one of three shapes:
//
//   - TaskComplete: terminal success, carries the result and a summary
//   - TaskContinue: another iteration is needed, carries the next step
//   - TaskFailed: terminal failure, carries the error and attempted steps
//
// The loop consumes the Outcome tagged union exhaustively; anything else the
// model produces is an invocation-level error.
//
// # Budgets
//
// Three independent budgets bound a run: the iteration cap (default 10), the
// model request limit (default 25, counted per invocation including the ones
// triggered by tool calls), and a consecutive-error budget of 3 invocation
// failures. Whichever triggers first ends the loop with a distinct
// Termination value; partial progress is surfaced in Result.StepsTaken,
// never discarded.
//
// Nothing below the loop raises into the CLI surface: command failures are
// ShellResults, model verdicts are Outcomes, and budget exhaustion is a
// Termination, all data.
package agent
