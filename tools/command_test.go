package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/nexteleven/eleven/policy"
)

func TestRunCommandCapturesOutput(t *testing.T) {
	tool := &RunCommandTool{timeoutSeconds: 10}
	res := tool.Execute(context.Background(), map[string]any{
		"command": "echo out; echo err 1>&2",
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Output)
	}
	if !strings.Contains(res.Output, "out") || !strings.Contains(res.Output, "err") {
		t.Fatalf("both streams must be captured, got: %q", res.Output)
	}
}

func TestRunCommandNonZeroExit(t *testing.T) {
	tool := &RunCommandTool{timeoutSeconds: 10}
	res := tool.Execute(context.Background(), map[string]any{
		"command": "echo partial; exit 3",
	})
	if !res.IsError {
		t.Fatal("non-zero exit must be an error result")
	}
	if res.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(res.Output, "partial") {
		t.Fatalf("output before the failure must be kept: %q", res.Output)
	}
}

func TestRunCommandMissingArgument(t *testing.T) {
	tool := &RunCommandTool{}
	res := tool.Execute(context.Background(), map[string]any{})
	if !res.IsError {
		t.Fatal("missing command must be an error result")
	}
}

func TestRunCommandTruncatesOutput(t *testing.T) {
	tool := &RunCommandTool{timeoutSeconds: 30}
	res := tool.Execute(context.Background(), map[string]any{
		// ~128 KiB of output against a 64 KiB cap.
		"command": "head -c 131072 /dev/zero | tr '\\0' 'x'",
	})
	if !res.Truncated {
		t.Fatal("oversized output must be marked truncated")
	}
	if !strings.Contains(res.Output, TruncationMarker) {
		t.Fatal("truncated output must carry the marker")
	}
	if len(res.Output) > DefaultOutputLimit+len(TruncationMarker) {
		t.Fatalf("output not capped: %d bytes", len(res.Output))
	}
}

func TestRunCommandTimeoutLeavesNoOrphans(t *testing.T) {
	// An unusual sleep duration acts as the marker in the process table.
	marker := fmt.Sprintf("sleep %d", 30000+os.Getpid()%1000)
	tool := &RunCommandTool{timeoutSeconds: 1}

	start := time.Now()
	res := tool.Execute(context.Background(), map[string]any{
		"command": fmt.Sprintf("%s & %s", marker, marker),
	})
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
	if !res.IsError {
		t.Fatal("timeout must be an error result")
	}
	if res.ExitCode != 124 {
		t.Fatalf("ExitCode = %d, want 124", res.ExitCode)
	}
	if !strings.Contains(res.Output, "timed out") {
		t.Fatalf("diagnostic should mention the timeout: %q", res.Output)
	}

	// The whole process group must be gone; check the process table for
	// the marker.
	time.Sleep(200 * time.Millisecond)
	out, _ := exec.Command("sh", "-c", "ps ax 2>/dev/null || ps aux").Output()
	if strings.Contains(string(out), marker) {
		t.Fatal("timed-out command left an orphaned process behind")
	}
}

func TestRunCommandClassify(t *testing.T) {
	tool := &RunCommandTool{allowedPatterns: []string{`^git status$`, `^ls\b`}}

	cases := []struct {
		command string
		want    policy.RiskClass
	}{
		{"git status", policy.RiskSafe},
		{"ls -la /tmp", policy.RiskSafe},
		{"make build", policy.RiskApproval},
		{"rm -rf /", policy.RiskBlocked},
		{"sudo reboot", policy.RiskBlocked},
		{"dd if=/dev/sda of=/dev/null", policy.RiskBlocked},
		{"chmod 777 secrets", policy.RiskBlocked},
		{"echo hello > /dev/sda", policy.RiskBlocked},
	}
	for _, tc := range cases {
		got := tool.Classify(map[string]any{"command": tc.command})
		if got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.command, got, tc.want)
		}
	}

	if got := tool.Classify(map[string]any{}); got != policy.RiskApproval {
		t.Errorf("Classify(no command) = %v, want %v", got, policy.RiskApproval)
	}
}

func TestRunCommandClassifyDoesNotExecute(t *testing.T) {
	dir := t.TempDir()
	witness := dir + "/witness"
	tool := &RunCommandTool{}
	tool.Classify(map[string]any{"command": "touch " + witness})
	if _, err := os.Stat(witness); err == nil {
		t.Fatal("Classify must never run the command")
	}
}
