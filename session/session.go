// Package session defines the message types exchanged with the model and
// persists finished run transcripts under .taskpilot/sessions.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rfoxall/taskpilot/errors"
)

// ToolCall is a structured request from the model to invoke a registered
// tool. On a "tool" role message it identifies which call the content
// answers.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// Message is one exchange in the conversation.
type Message struct {
	Role      string     `json:"role"` // "system", "user", "assistant", "tool"
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Transcript is the persisted record of one workflow run.
type Transcript struct {
	Name     string    `json:"name"`
	Query    string    `json:"query"`
	Started  time.Time `json:"started"`
	Messages []Message `json:"messages"`

	path string
}

// New creates a transcript that will be saved under .taskpilot/sessions.
func New(name, query string) (*Transcript, error) {
	path, err := transcriptPath(name)
	if err != nil {
		return nil, err
	}
	return &Transcript{
		Name:    name,
		Query:   query,
		Started: time.Now(),
		path:    path,
	}, nil
}

// Load reads a previously saved transcript by name.
func Load(name string) (*Transcript, error) {
	path, err := transcriptPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read session file %s", path)
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(err, "could not parse session file %s", path)
	}
	t.path = path
	return &t, nil
}

// Replace swaps in the full updated message history. The workflow replaces
// rather than merges so the saved transcript always matches what the model
// last saw.
func (t *Transcript) Replace(messages []Message) {
	t.Messages = messages
}

// Save writes the transcript to disk.
func (t *Transcript) Save() error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize session")
	}
	return os.WriteFile(t.path, data, 0644)
}

func transcriptPath(name string) (string, error) {
	dir := filepath.Join(".taskpilot", "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create session directory")
	}
	return filepath.Join(dir, name+".json"), nil
}
