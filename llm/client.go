package llm

import (
	"context"

	"github.com/rfoxall/taskpilot/session"
	"github.com/rfoxall/taskpilot/tools"
)

// Client is the interface for one model invocation: it receives the full
// message history and the available tool signatures, and returns the next
// assistant message, which may carry tool calls.
type Client interface {
	Chat(ctx context.Context, messages []session.Message, available []tools.Tool) (*session.Message, error)
}

// MockClient is an offline client for the "mock" provider and for tests.
// It replays scripted responses in order; when the script is exhausted it
// returns a completed outcome so a run always terminates.
type MockClient struct {
	Script []*session.Message
	calls  int
}

// Calls reports how many times Chat was invoked.
func (m *MockClient) Calls() int { return m.calls }

func (m *MockClient) Chat(ctx context.Context, messages []session.Message, available []tools.Tool) (*session.Message, error) {
	m.calls++
	if m.calls <= len(m.Script) {
		return m.Script[m.calls-1], nil
	}
	return &session.Message{
		Role:    "assistant",
		Content: `{"status": "complete", "result": "mock run finished", "summary": "no provider configured"}`,
	}, nil
}
