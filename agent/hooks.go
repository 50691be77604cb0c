package agent

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/session"
	"github.com/nexteleven/eleven/tools"
)

// Hook script names, resolved inside the configured hooks directory.
const (
	preToolUseHook  = "pre_tool_use"
	postToolUseHook = "post_tool_use"
)

// runHook executes one lifecycle hook script if it exists. The call details
// travel through the environment. A non-zero exit from the pre hook blocks
// the tool call; the caller decides what a post-hook failure means.
func runHook(ctx context.Context, dir, name string, call session.ToolCall, result *tools.Result) error {
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return nil // no hook installed
	}

	args, err := json.Marshal(call.Args)
	if err != nil {
		args = []byte("{}")
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Env = append(os.Environ(),
		"ELEVEN_TOOL_NAME="+call.Name,
		"ELEVEN_TOOL_CALL_ID="+call.ID,
		"ELEVEN_TOOL_ARGS="+string(args),
	)
	if result != nil {
		cmd.Env = append(cmd.Env,
			"ELEVEN_TOOL_OUTPUT="+result.Output,
			"ELEVEN_TOOL_EXIT_CODE="+strconv.Itoa(result.ExitCode),
		)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail != "" {
			return errors.Wrapf(err, "hook %s: %s", name, detail)
		}
		return errors.Wrapf(err, "hook %s", name)
	}
	return nil
}
