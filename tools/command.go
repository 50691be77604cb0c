package tools

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nexteleven/eleven/policy"
)

// dangerousPatterns classify a command invocation as blocked-unless-forced.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-[a-z]*rf?\b|\brm\s+-[a-z]*fr?\b`),
	regexp.MustCompile(`\bsudo\s+`),
	regexp.MustCompile(`\bkill\s+-9\b`),
	regexp.MustCompile(`\bmkfs\b`),
	regexp.MustCompile(`\bdd\s+if=`),
	regexp.MustCompile(`\bchmod\s+777\b`),
	regexp.MustCompile(`>\s*/dev/`),
	regexp.MustCompile(`\bfdisk\b`),
}

const defaultCommandTimeout = 120 * time.Second

// RunCommandTool executes a shell command with a hard wall-clock timeout and
// bounded, combined output capture.
type RunCommandTool struct {
	allowedPatterns []string
	timeoutSeconds  int
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	desc := "Runs a shell command and returns its combined output. Args: command (string)."
	if len(t.allowedPatterns) > 0 {
		desc += " Pre-approved command patterns:\n- " + strings.Join(t.allowedPatterns, "\n- ")
	}
	return desc
}

func (t *RunCommandTool) Parameters() map[string]any {
	return map[string]any{
		"command": map[string]any{
			"type":        "string",
			"description": "The shell command to execute.",
		},
	}
}

// Classify inspects the command text only. Commands matching a dangerous
// pattern are blocked unless forced; commands matching a configured allow
// pattern are safe; everything else needs approval.
func (t *RunCommandTool) Classify(args map[string]any) policy.RiskClass {
	command, ok := stringArg(args, "command")
	if !ok {
		return policy.RiskApproval
	}
	lowered := strings.ToLower(command)
	for _, re := range dangerousPatterns {
		if re.MatchString(lowered) {
			return policy.RiskBlocked
		}
	}
	for _, pattern := range t.allowedPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			if command == pattern {
				return policy.RiskSafe
			}
			continue
		}
		if re.MatchString(command) {
			return policy.RiskSafe
		}
	}
	return policy.RiskApproval
}

func (t *RunCommandTool) Execute(ctx context.Context, args map[string]any) Result {
	command, ok := stringArg(args, "command")
	if !ok {
		return ErrorResult("missing or invalid 'command' argument")
	}

	timeout := defaultCommandTimeout
	if t.timeoutSeconds > 0 {
		timeout = time.Duration(t.timeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	// The command runs in its own process group so cancellation reaches
	// every descendant; a timeout must never leave an orphaned process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	out := newCappedBuffer(DefaultOutputLimit)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	output, truncated := out.contents()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{
			ExitCode:  124,
			Output:    fmt.Sprintf("command timed out after %s\n%s", timeout, output),
			Truncated: truncated,
			IsError:   true,
		}
	}
	if err != nil {
		exitCode := 1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return Result{
			ExitCode:  exitCode,
			Output:    fmt.Sprintf("command failed: %v\n%s", err, output),
			Truncated: truncated,
			IsError:   true,
		}
	}
	return Result{Output: output, Truncated: truncated}
}

// cappedBuffer captures stdout and stderr interleaved up to a byte limit.
// Writes past the limit are counted but discarded. Both streams share the
// buffer, so relative ordering between them is not guaranteed.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     []byte
	limit   int
	dropped bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - len(b.buf)
	if room <= 0 {
		b.dropped = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.dropped = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) contents() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := string(b.buf)
	if b.dropped {
		s += TruncationMarker
	}
	return s, b.dropped
}
