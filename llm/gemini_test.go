package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/rfoxall/taskpilot/session"
)

func TestConvertMessagesToGeminiContent(t *testing.T) {
	messages := []session.Message{
		{Role: "user", Content: "list files"},
		{Role: "assistant", Content: "", ToolCalls: []session.ToolCall{{
			ID:   "c1",
			Name: "run_shell_command",
			Args: map[string]interface{}{"command": "ls"},
		}}},
		{Role: "tool", Content: "README.md", ToolCalls: []session.ToolCall{{
			ID: "c1", Name: "run_shell_command",
		}}},
	}

	content := convertMessagesToGeminiContent(messages)
	if len(content) != 3 {
		t.Fatalf("got %d contents, want 3", len(content))
	}
	if content[0].Role != "user" {
		t.Errorf("first role = %q", content[0].Role)
	}
	if content[1].Role != "model" {
		t.Errorf("assistant must map to role model, got %q", content[1].Role)
	}
	fc, ok := content[1].Parts[0].(genai.FunctionCall)
	if !ok || fc.Name != "run_shell_command" {
		t.Errorf("expected function call part, got %#v", content[1].Parts)
	}
	fr, ok := content[2].Parts[0].(genai.FunctionResponse)
	if !ok || fr.Name != "run_shell_command" {
		t.Errorf("expected function response part, got %#v", content[2].Parts)
	}
	if fr.Response["result"] != "README.md" {
		t.Errorf("function response payload = %v", fr.Response)
	}
}

func TestToGeminiSchema(t *testing.T) {
	schema := toGeminiSchema(map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type":        "string",
				"description": "The shell command to execute.",
			},
			"read_only": map[string]interface{}{"type": "boolean"},
			"timeout":   map[string]interface{}{"type": "integer"},
			"tags": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"command"},
	})

	if schema.Type != genai.TypeObject {
		t.Errorf("root type = %v", schema.Type)
	}
	if schema.Properties["command"].Type != genai.TypeString {
		t.Errorf("command type = %v", schema.Properties["command"].Type)
	}
	if schema.Properties["command"].Description == "" {
		t.Error("command description lost")
	}
	if schema.Properties["read_only"].Type != genai.TypeBoolean {
		t.Errorf("read_only type = %v", schema.Properties["read_only"].Type)
	}
	if schema.Properties["timeout"].Type != genai.TypeInteger {
		t.Errorf("timeout type = %v", schema.Properties["timeout"].Type)
	}
	if schema.Properties["tags"].Items == nil || schema.Properties["tags"].Items.Type != genai.TypeString {
		t.Errorf("array items lost: %+v", schema.Properties["tags"])
	}
	if len(schema.Required) != 1 || schema.Required[0] != "command" {
		t.Errorf("required = %v", schema.Required)
	}
}

func TestToGeminiSchemaRequiredFromJSON(t *testing.T) {
	// Schemas that round-tripped through JSON carry []interface{} here.
	schema := toGeminiSchema(map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"pattern", "path"},
	})
	if len(schema.Required) != 2 {
		t.Errorf("required = %v", schema.Required)
	}
}

func TestProcessGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []genai.Part{
					genai.Text("running the command"),
					genai.FunctionCall{
						Name: "run_shell_command",
						Args: map[string]interface{}{"command": "ls"},
					},
				},
			},
		}},
	}

	msg, err := processGeminiResponse(resp)
	if err != nil {
		t.Fatalf("processGeminiResponse failed: %v", err)
	}
	if msg.Content != "running the command" {
		t.Errorf("content = %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].ID == "" {
		t.Error("tool call must get a generated ID")
	}
	if msg.ToolCalls[0].Name != "run_shell_command" {
		t.Errorf("tool call name = %q", msg.ToolCalls[0].Name)
	}
}

func TestProcessGeminiResponseEmpty(t *testing.T) {
	if _, err := processGeminiResponse(&genai.GenerateContentResponse{}); err == nil {
		t.Fatal("expected error for empty response")
	}
}
