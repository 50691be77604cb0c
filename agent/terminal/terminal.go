package terminal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nexteleven/eleven/agent"
	"github.com/nexteleven/eleven/session"
	"github.com/nexteleven/eleven/tools"
)

// Terminal handles the interactive CLI mode for the agent.
type Terminal struct {
	agent *agent.Agent

	in  *bufio.Scanner
	out io.Writer
}

// New creates a new Terminal reading stdin and writing stdout.
func New(a *agent.Agent) *Terminal {
	return &Terminal{
		agent: a,
		in:    bufio.NewScanner(os.Stdin),
		out:   os.Stdout,
	}
}

// Run starts the interactive session. An initial prompt from the command
// line is processed before the first read.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		if err := t.processTurn(ctx, initialPrompt); err != nil {
			return err
		}
	}

	for {
		fmt.Fprint(t.out, "You: ")
		if !t.in.Scan() {
			// EOF ends the session
			break
		}

		userInput := strings.TrimSpace(t.in.Text())
		if userInput == "" {
			continue
		}
		if userInput == "/quit" || userInput == "/exit" {
			break
		}

		if err := t.processTurn(ctx, userInput); err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(t.out, "Error: %v\n", err)
		}
	}

	return t.in.Err()
}

// RunOnce processes a single prompt and returns. Used for one-shot
// invocations.
func (t *Terminal) RunOnce(ctx context.Context, prompt string) error {
	return t.processTurn(ctx, prompt)
}

func (t *Terminal) processTurn(ctx context.Context, userInput string) error {
	callbacks := agent.ProcessCallbacks{
		OnAssistantMessage: func(message string) {
			fmt.Fprintf(t.out, "Eleven: %s\n", message)
		},
		OnToolCall: func(toolCall session.ToolCall) {
			switch t.agent.Verbosity {
			case agent.ToolVerbosityAll:
				fmt.Fprintf(t.out, "Eleven wants to call `%s` with args: %s\n", toolCall.Name, formatArgs(toolCall.Args))
			case agent.ToolVerbosityInfo:
				fmt.Fprintf(t.out, "Eleven wants to call `%s`\n", toolCall.Name)
			}
		},
		OnToolResult: func(toolCall session.ToolCall, result tools.Result) {
			if t.agent.Verbosity == agent.ToolVerbosityAll {
				fmt.Fprintf(t.out, "Tool `%s` output: %s\n", toolCall.Name, result.Output)
			}
		},
		RequestApproval: func(toolCall session.ToolCall) bool {
			fmt.Fprintf(t.out, "Allow `%s` with args %s? (y/n): ", toolCall.Name, formatArgs(toolCall.Args))
			if !t.in.Scan() {
				return false // EOF denies
			}
			answer := strings.ToLower(strings.TrimSpace(t.in.Text()))
			return answer == "y" || answer == "yes"
		},
		OnWarning: func(warning string) {
			fmt.Fprintf(t.out, "Warning: %s\n", warning)
		},
	}

	return t.agent.ProcessUserInput(ctx, userInput, callbacks)
}

func formatArgs(args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}
