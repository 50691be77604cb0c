// Package mcp connects to external Model Context Protocol servers and exposes
// the tools they provide. Each configured server runs as a subprocess speaking
// MCP over stdio; its tools are discovered at startup and joined into the
// agent's registry by the tools package.
package mcp

import (
	"context"
	"os"
	"os/exec"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nexteleven/eleven/errors"
)

// Client manages the connection to a single MCP server subprocess.
type Client struct {
	name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools []*ServerTool
}

// NewClient starts the MCP server subprocess and discovers its tools.
func NewClient(name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr

	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "eleven", Version: "v1.0.0"}, nil)
	ctx := context.Background()
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		return nil, errors.Wrapf(err, "failed to connect to MCP server %q", name)
	}

	client := &Client{name: name, cmd: cmd, conn: conn}

	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := conn.ListTools(ctx, params)
		if err != nil {
			client.Stop()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server %q", name)
		}
		for _, t := range list.Tools {
			client.tools = append(client.tools, &ServerTool{
				server:      name,
				name:        t.Name,
				description: t.Description,
				client:      client,
			})
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}

	return client, nil
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.name }

// Tools returns the tools discovered on this server.
func (c *Client) Tools() []*ServerTool { return c.tools }

// Stop terminates the MCP server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// ServerTool is one tool advertised by an MCP server.
type ServerTool struct {
	server      string
	name        string
	description string
	client      *Client
}

// Name returns the tool's short name as advertised by the server.
func (t *ServerTool) Name() string { return t.name }

// Description returns the server-provided description.
func (t *ServerTool) Description() string { return t.description }

// Call invokes the tool on the server and concatenates its text content.
func (t *ServerTool) Call(ctx context.Context, args map[string]any) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return "", errors.Wrapf(err, "MCP tool %q failed", t.name)
	}
	out := ""
	for _, c := range result.Content {
		if text, ok := c.(*mcpsdk.TextContent); ok {
			out += text.Text
		}
	}
	if result.IsError {
		return "", errors.New("MCP tool %q reported an error: %s", t.name, out)
	}
	return out, nil
}
