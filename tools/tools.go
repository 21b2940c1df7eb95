package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rfoxall/taskpilot/errors"
)

// Tool defines the interface for any capability the model can invoke.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema describing the tool's arguments.
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Registry holds the tools exposed to the model, in registration order.
type Registry struct {
	tools map[string]Tool
	names []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice is a wiring bug.
func (r *Registry) Register(t Tool) error {
	if _, exists := r.tools[t.Name()]; exists {
		return errors.New("tool '%s' is already registered", t.Name())
	}
	r.tools[t.Name()] = t
	r.names = append(r.names, t.Name())
	return nil
}

// MustRegister is like Register but panics on error. Registration happens
// once at startup, so a duplicate name should stop the program.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.tools[name])
	}
	return out
}

// isPathRestricted reports whether path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, fmt.Errorf("invalid glob pattern '%s': %w", pattern, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}
