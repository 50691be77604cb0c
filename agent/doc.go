// Package agent provides the core session loop for the Eleven system.
//
// This package contains the shared processing logic used by every front-end.
// It owns the conversation state machine: user input goes out to the model,
// the response stream is drained into text and tool calls, tool calls pass
// through the permission gate, and results feed the next model request until
// the model answers with plain text.
//
// # Architecture
//
// The agent package is organized into two components:
//
//   - Core agent (this package): the Agent type, the permission gate wiring,
//     lifecycle hooks, and the interaction log
//   - Terminal subpackage (agent/terminal): the interactive CLI front-end
//
// # Core Functionality
//
// The Agent type provides:
//
//   - A processing loop over the model event stream and tool executions
//   - Risk gating of every tool call through the policy package
//   - History compaction once the conversation grows past the threshold
//   - Callback-based output so front-ends decide how events are rendered
//
// # Usage
//
//	a := agent.New(cfg, profile, sess, client, registry, mode)
//
//	callbacks := agent.ProcessCallbacks{
//	    OnAssistantMessage: func(message string) {
//	        // render assistant output
//	    },
//	    RequestApproval: func(toolCall session.ToolCall) bool {
//	        // ask the operator; false records a denial
//	        return true
//	    },
//	}
//
//	err := a.ProcessUserInput(ctx, "user message", callbacks)
//
// # Permission Gate
//
// Every tool call is classified by the tool itself and judged by
// policy.Decide under the session's permission mode. A denial is not silent:
// the model receives an error result naming the denial so it can change
// course. See the policy package for the full decision table.
//
// # Callbacks
//
// ProcessCallbacks lets front-ends customize how events are handled without
// duplicating the loop. All fields are optional; a nil callback is skipped,
// except RequestApproval, whose absence denies (the gate fails closed).
package agent
