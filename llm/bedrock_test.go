package llm

import (
	"encoding/json"
	"testing"

	"github.com/rfoxall/taskpilot/session"
	"github.com/rfoxall/taskpilot/tools"
)

func TestConvertMessagesToBedrockFormat(t *testing.T) {
	messages := []session.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "list files"},
		{Role: "assistant", Content: "", ToolCalls: []session.ToolCall{{
			ID:   "c1",
			Name: "run_shell_command",
			Args: map[string]interface{}{"command": "ls", "read_only": true},
		}}},
		{Role: "tool", Content: "README.md\nExit code: 0", ToolCalls: []session.ToolCall{{ID: "c1"}}},
		{Role: "assistant", Content: "done"},
	}

	out, systemPrompt := convertMessagesToBedrockFormat(messages)

	if systemPrompt != "be helpful" {
		t.Errorf("system prompt = %q", systemPrompt)
	}
	if len(out) != 4 {
		t.Fatalf("got %d messages, want 4", len(out))
	}
	if out[0]["role"] != "user" {
		t.Errorf("first message role = %v", out[0]["role"])
	}

	// The assistant tool call becomes a tool_use block.
	blocks := out[1]["content"].([]map[string]interface{})
	if len(blocks) != 1 || blocks[0]["type"] != "tool_use" || blocks[0]["id"] != "c1" {
		t.Errorf("tool_use block wrong: %v", blocks)
	}

	// The tool result goes back as a user message with a tool_result block.
	if out[2]["role"] != "user" {
		t.Errorf("tool result role = %v", out[2]["role"])
	}
	resBlocks := out[2]["content"].([]map[string]interface{})
	if resBlocks[0]["type"] != "tool_result" || resBlocks[0]["tool_use_id"] != "c1" {
		t.Errorf("tool_result block wrong: %v", resBlocks)
	}
}

func TestCreateBedrockRequest(t *testing.T) {
	messages, systemPrompt := convertMessagesToBedrockFormat([]session.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "hi"},
	})
	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewShellTool(tools.NewGate(tools.ModeAuto, nil), &tools.Executor{}))

	body, err := createBedrockRequest(messages, systemPrompt, registry.All())
	if err != nil {
		t.Fatalf("createBedrockRequest failed: %v", err)
	}

	var request map[string]interface{}
	if err := json.Unmarshal(body, &request); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if request["anthropic_version"] != "bedrock-2023-05-31" {
		t.Errorf("anthropic_version = %v", request["anthropic_version"])
	}
	if request["system"] != "be helpful" {
		t.Errorf("system = %v", request["system"])
	}
	toolDefs := request["tools"].([]interface{})
	if len(toolDefs) != 1 {
		t.Fatalf("got %d tool definitions, want 1", len(toolDefs))
	}
	def := toolDefs[0].(map[string]interface{})
	if def["name"] != "run_shell_command" {
		t.Errorf("tool name = %v", def["name"])
	}
	schema := def["input_schema"].(map[string]interface{})
	if schema["type"] != "object" {
		t.Errorf("input_schema type = %v", schema["type"])
	}
	props := schema["properties"].(map[string]interface{})
	if _, ok := props["command"]; !ok {
		t.Errorf("input_schema missing command property: %v", props)
	}
}

func TestProcessBedrockResponse(t *testing.T) {
	body := []byte(`{
		"content": [
			{"type": "text", "text": "I will list the files. "},
			{"type": "tool_use", "id": "tc-9", "name": "run_shell_command",
			 "input": {"command": "ls", "read_only": true}}
		]
	}`)

	msg, err := processBedrockResponse(body)
	if err != nil {
		t.Fatalf("processBedrockResponse failed: %v", err)
	}
	if msg.Role != "assistant" {
		t.Errorf("role = %q", msg.Role)
	}
	if msg.Content != "I will list the files. " {
		t.Errorf("content = %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "tc-9" || tc.Name != "run_shell_command" || tc.Args["command"] != "ls" {
		t.Errorf("tool call wrong: %+v", tc)
	}
}

func TestProcessBedrockResponseMissingID(t *testing.T) {
	body := []byte(`{"content": [
		{"type": "tool_use", "name": "run_shell_command", "input": {"command": "ls"}}
	]}`)

	msg, err := processBedrockResponse(body)
	if err != nil {
		t.Fatalf("processBedrockResponse failed: %v", err)
	}
	if len(msg.ToolCalls) != 1 || msg.ToolCalls[0].ID == "" {
		t.Errorf("missing call ID must be generated, got %+v", msg.ToolCalls)
	}
}

func TestProcessBedrockResponseError(t *testing.T) {
	if _, err := processBedrockResponse([]byte(`{"error": {"message": "throttled"}}`)); err == nil {
		t.Fatal("expected error for error response")
	}
	if _, err := processBedrockResponse([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed body")
	}
}
