package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/nexteleven/eleven/config"
	"github.com/nexteleven/eleven/policy"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := &config.Config{
		CommandTimeout: 5,
		FilesystemAccess: config.FilesystemAccess{
			Hidden:   []string{".eleven", ".eleven/**"},
			ReadOnly: []string{"frozen/**"},
		},
	}
	r := NewRegistry(cfg, nil)
	t.Cleanup(r.Close)
	return r
}

func TestRegistryHasBuiltins(t *testing.T) {
	r := testRegistry(t)
	for _, name := range []string{"run_command", "view_file", "write_file", "list_dir", "todos"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("built-in tool %q not registered", name)
		}
	}
}

func TestRegistryAllSorted(t *testing.T) {
	r := testRegistry(t)
	all := r.All()
	for i := 1; i < len(all); i++ {
		if all[i-1].Name() >= all[i].Name() {
			t.Fatalf("tools not sorted: %q before %q", all[i-1].Name(), all[i].Name())
		}
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := testRegistry(t)
	res := r.Execute(context.Background(), "teleport", nil)
	if !res.IsError {
		t.Fatal("unknown tool must produce an error result")
	}
	if !strings.Contains(res.Output, "teleport") {
		t.Fatalf("diagnostic should name the tool: %q", res.Output)
	}
}

type panickyTool struct{}

func (panickyTool) Name() string               { return "panicky" }
func (panickyTool) Description() string        { return "always panics" }
func (panickyTool) Parameters() map[string]any { return map[string]any{} }
func (panickyTool) Classify(map[string]any) policy.RiskClass {
	return policy.RiskSafe
}
func (panickyTool) Execute(context.Context, map[string]any) Result {
	panic("kaboom")
}

func TestRegistryExecuteRecoversPanic(t *testing.T) {
	r := testRegistry(t)
	r.Register(panickyTool{})
	res := r.Execute(context.Background(), "panicky", nil)
	if !res.IsError {
		t.Fatal("panicking handler must produce an error result")
	}
	if !strings.Contains(res.Output, "kaboom") {
		t.Fatalf("diagnostic should carry the panic value: %q", res.Output)
	}
}

func TestTruncate(t *testing.T) {
	s, truncated := Truncate("short", 100)
	if truncated || s != "short" {
		t.Fatalf("unexpected truncation of short string: %q %v", s, truncated)
	}

	long := strings.Repeat("x", 200)
	s, truncated = Truncate(long, 100)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(s, TruncationMarker) {
		t.Fatalf("truncated output must carry the marker: %q", s[len(s)-40:])
	}
	if len(s) != 100+len(TruncationMarker) {
		t.Fatalf("len = %d, want %d", len(s), 100+len(TruncationMarker))
	}
}
