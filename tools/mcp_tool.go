package tools

import (
	"context"

	"github.com/nexteleven/eleven/policy"
	"github.com/nexteleven/eleven/tools/mcp"
)

// mcpTool adapts a server-provided MCP tool to the registry interface.
// External tools run code the runtime did not write, so every invocation
// needs approval regardless of what the server claims about itself.
type mcpTool struct {
	inner *mcp.ServerTool
}

func (t *mcpTool) Name() string        { return t.inner.Name() }
func (t *mcpTool) Description() string { return t.inner.Description() }

func (t *mcpTool) Parameters() map[string]any {
	// MCP servers carry their own schemas; the model gets a free-form
	// object and the server validates.
	return map[string]any{}
}

func (t *mcpTool) Classify(args map[string]any) policy.RiskClass {
	return policy.RiskApproval
}

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) Result {
	out, err := t.inner.Call(ctx, args)
	if err != nil {
		return ErrorResult("%v", err)
	}
	output, truncated := Truncate(out, DefaultOutputLimit)
	return Result{Output: output, Truncated: truncated}
}
