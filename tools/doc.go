// Package tools implements the capabilities taskpilot exposes to the model:
// the shell command executor with its confirmation gate, and the file-search
// lookup tool. Tools are registered in a Registry and described to the
// provider through JSON-schema parameter definitions.
//
// The shell tool is the only state-mutating capability. Its execution policy
// is: read-only commands (as asserted by the model) run unconditionally,
// everything else blocks on an interactive yes/no prompt unless the gate is
// in auto mode. Denial is returned to the model as a normal failed
// ShellResult so the conversation can continue.
//
// Execution failures never escape as errors. Nonzero exits, launch failures
// and timeouts are all folded into the ShellResult the model reasons over,
// with timeouts tagged distinctly from ordinary failures.
package tools
