// Package tools defines the actions the agent can take on the local machine
// and the registry that maps tool names to handlers. Every tool carries a
// static risk classification the permission gate consults before execution;
// classification never runs the handler. Handlers are total: every internal
// fault is converted into an error Result, never raised into the session loop.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nexteleven/eleven/config"
	"github.com/nexteleven/eleven/policy"
	"github.com/nexteleven/eleven/tools/mcp"
)

// DefaultOutputLimit caps the captured output of any single tool invocation.
// Oversized output is hard-truncated and marked; it is never streamed to disk.
const DefaultOutputLimit = 64 * 1024

// TruncationMarker is appended to output that hit the cap.
const TruncationMarker = "\n[output truncated]"

// Result is the outcome of one tool invocation. ExitCode zero means success;
// IsError marks results the model should treat as failures (the output then
// carries the diagnostic).
type Result struct {
	ExitCode  int
	Output    string
	Truncated bool
	IsError   bool
}

// ErrorResult builds a failed Result from a diagnostic message.
func ErrorResult(format string, a ...any) Result {
	return Result{ExitCode: 1, Output: fmt.Sprintf(format, a...), IsError: true}
}

// Tool is one bounded local action the agent can perform.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON-schema properties of the argument map,
	// advertised to the model.
	Parameters() map[string]any
	// Classify reports the risk class of invoking the tool with the given
	// arguments. It must not perform the action or touch its targets.
	Classify(args map[string]any) policy.RiskClass
	// Execute performs the action. It never panics and never returns a Go
	// error; faults come back as error Results.
	Execute(ctx context.Context, args map[string]any) Result
}

// Registry holds all available tools.
type Registry struct {
	tools      map[string]Tool
	mcpClients []*mcp.Client
}

// NewRegistry builds the registry with the built-in tool set plus any
// configured MCP servers. MCP startup failures are reported through warn and
// do not prevent the built-ins from registering.
func NewRegistry(cfg *config.Config, warn func(string)) *Registry {
	if warn == nil {
		warn = func(string) {}
	}
	r := &Registry{tools: make(map[string]Tool)}

	restrict := pathRestrictions{
		hidden:   cfg.FilesystemAccess.Hidden,
		readOnly: cfg.FilesystemAccess.ReadOnly,
	}
	r.Register(&RunCommandTool{
		allowedPatterns: cfg.AllowedCommands,
		timeoutSeconds:  cfg.CommandTimeout,
	})
	r.Register(&ViewFileTool{restrict: restrict})
	r.Register(&WriteFileTool{restrict: restrict})
	r.Register(&ListDirTool{restrict: restrict})
	r.Register(&TodosTool{})

	for _, server := range cfg.MCPServers {
		client, err := mcp.NewClient(server.Name, server.Command, server.Args)
		if err != nil {
			warn(fmt.Sprintf("MCP server %q unavailable: %v", server.Name, err))
			continue
		}
		r.mcpClients = append(r.mcpClients, client)
		for _, t := range client.Tools() {
			r.Register(&mcpTool{inner: t})
		}
	}

	return r
}

// Register adds a tool, replacing any previous registration of the same name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []Tool {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Execute runs the named tool, shielding the caller from panics and unknown
// names. This is the only entry point the session loop uses.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			res = ErrorResult("tool %q panicked: %v", name, rec)
		}
	}()

	t, ok := r.Get(name)
	if !ok {
		return ErrorResult("unknown tool %q", name)
	}
	return t.Execute(ctx, args)
}

// Close shuts down any MCP server subprocesses.
func (r *Registry) Close() {
	for _, c := range r.mcpClients {
		c.Stop()
	}
}

// pathRestrictions holds the hidden and read-only glob patterns from the
// filesystem access config.
type pathRestrictions struct {
	hidden   []string
	readOnly []string
}

func (p pathRestrictions) isHidden(path string) bool   { return matchAny(path, p.hidden) }
func (p pathRestrictions) isReadOnly(path string) bool { return matchAny(path, p.readOnly) }

func matchAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		// Invalid patterns are treated as non-matching rather than
		// blocking every path.
		if ok, err := doublestar.PathMatch(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

// Truncate enforces the output cap, appending the marker when anything was
// cut.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	if len(s) <= limit {
		return s, false
	}
	return s[:limit] + TruncationMarker, true
}

func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok && strings.TrimSpace(v) != ""
}

func boolArg(args map[string]any, key string) bool {
	v, ok := args[key].(bool)
	return ok && v
}
