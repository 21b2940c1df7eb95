// Package mcp connects taskpilot to an external MCP server that supplies
// the auxiliary lookup capability in place of the built-in file search.
// The server runs as a subprocess and its tools are exposed to the model
// through the same registry as the local ones.
package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"

	"github.com/rfoxall/taskpilot/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools []*RemoteTool
}

// Connect starts the server subprocess, performs the MCP handshake and
// discovers the tools it provides.
func Connect(ctx context.Context, name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "taskpilot", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.Wrapf(err, "failed to connect to lookup server '%s'", name)
	}

	c := &Client{name: name, cmd: cmd, conn: conn}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := conn.ListTools(ctx, params)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.Wrapf(err, "failed to list tools from lookup server '%s'", name)
		}
		for _, t := range list.Tools {
			c.tools = append(c.tools, &RemoteTool{
				name:        t.Name,
				description: t.Description,
				schema:      schemaToMap(t.InputSchema),
				client:      c,
			})
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}

	return c, nil
}

// Tools returns the tools discovered on the server.
func (c *Client) Tools() []*RemoteTool {
	return c.tools
}

// Close terminates the server subprocess.
func (c *Client) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// RemoteTool adapts one MCP server tool to the tools.Tool interface.
type RemoteTool struct {
	name        string
	description string
	schema      map[string]interface{}
	client      *Client
}

func (t *RemoteTool) Name() string        { return t.name }
func (t *RemoteTool) Description() string { return t.description }

func (t *RemoteTool) Parameters() map[string]interface{} {
	if t.schema != nil {
		return t.schema
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// Execute forwards the call to the server and concatenates the text content
// of the result.
func (t *RemoteTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to call lookup tool '%s'", t.name)
	}
	var out string
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			out += text.Text
		}
	}
	return out, nil
}

// schemaToMap converts the SDK's schema type into the plain map form the
// providers consume. A nil or unconvertible schema falls back to a generic
// object.
func schemaToMap(schema interface{}) map[string]interface{} {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
