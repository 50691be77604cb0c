// Package terminal implements the interactive command-line mode for the
// Eleven agent.
//
// It reads user input line by line, renders assistant output, and owns the
// approval prompt: when the permission gate asks, the question is put to the
// operator on the terminal and the answer decides whether the tool call runs.
//
// # Usage
//
//	a := agent.New(cfg, profile, sess, client, registry, mode)
//	term := terminal.New(a)
//	err := term.Run(ctx, initialPrompt)
//
// # Features
//
//   - Prompt-based conversation with an optional initial prompt from the
//     command line
//   - Tool approval prompts whenever the permission mode requires them
//   - Configurable verbosity for tool execution output
//   - Exit commands (/quit, /exit) and EOF for graceful termination
package terminal
