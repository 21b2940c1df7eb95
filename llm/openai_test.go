package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/openai/openai-go/v2"
	"github.com/rfoxall/taskpilot/session"
	"github.com/rfoxall/taskpilot/tools"
)

func marshalParam(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal param: %v", err)
	}
	return string(data)
}

func TestConvertMessagesToOpenAIContent(t *testing.T) {
	messages := []session.Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "list files"},
		{Role: "assistant", ToolCalls: []session.ToolCall{{
			ID:   "c1",
			Name: "run_shell_command",
			Args: map[string]interface{}{"command": "ls"},
		}}},
		{Role: "tool", Content: "README.md", ToolCalls: []session.ToolCall{{ID: "c1"}}},
	}

	out := convertMessagesToOpenAIContent(messages)
	if len(out) != 4 {
		t.Fatalf("got %d messages, want 4", len(out))
	}

	system := marshalParam(t, out[0])
	if !strings.Contains(system, `"system"`) || !strings.Contains(system, "be helpful") {
		t.Errorf("system message wrong: %s", system)
	}

	assistant := marshalParam(t, out[2])
	if !strings.Contains(assistant, `"tool_calls"`) ||
		!strings.Contains(assistant, `"run_shell_command"`) ||
		!strings.Contains(assistant, `"c1"`) {
		t.Errorf("assistant tool call lost: %s", assistant)
	}
	if !strings.Contains(assistant, `\"command\":\"ls\"`) {
		t.Errorf("tool call arguments not serialized: %s", assistant)
	}

	toolMsg := marshalParam(t, out[3])
	if !strings.Contains(toolMsg, `"tool"`) ||
		!strings.Contains(toolMsg, `"c1"`) ||
		!strings.Contains(toolMsg, "README.md") {
		t.Errorf("tool result message wrong: %s", toolMsg)
	}
}

func TestConvertToolsToOpenAITools(t *testing.T) {
	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewShellTool(tools.NewGate(tools.ModeAuto, nil), &tools.Executor{}))

	out := convertToolsToOpenAITools(registry.All())
	if len(out) != 1 {
		t.Fatalf("got %d tools, want 1", len(out))
	}
	def := marshalParam(t, out[0])
	if !strings.Contains(def, `"run_shell_command"`) {
		t.Errorf("tool name lost: %s", def)
	}
	if !strings.Contains(def, `"properties"`) || !strings.Contains(def, `"command"`) {
		t.Errorf("tool schema lost: %s", def)
	}

	if got := convertToolsToOpenAITools(nil); got != nil {
		t.Errorf("no tools must map to nil, got %v", got)
	}
}

func TestProcessOpenAIResponse(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: "listing now",
				ToolCalls: []openai.ChatCompletionMessageToolCallUnion{{
					ID:   "c1",
					Type: "function",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      "run_shell_command",
						Arguments: `{"command": "ls", "read_only": true}`,
					},
				}},
			},
		}},
	}

	msg, err := processOpenAIResponse(resp)
	if err != nil {
		t.Fatalf("processOpenAIResponse failed: %v", err)
	}
	if msg.Content != "listing now" {
		t.Errorf("content = %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "c1" || tc.Name != "run_shell_command" || tc.Args["command"] != "ls" {
		t.Errorf("tool call wrong: %+v", tc)
	}
	if tc.Args["read_only"] != true {
		t.Errorf("read_only arg lost: %v", tc.Args)
	}
}

func TestProcessOpenAIResponseMalformedArguments(t *testing.T) {
	resp := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ChatCompletionMessageToolCallUnion{{
					ID:       "c1",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{Arguments: "not json"},
				}},
			},
		}},
	}
	if _, err := processOpenAIResponse(resp); err == nil {
		t.Fatal("expected error for malformed tool arguments")
	}
}
