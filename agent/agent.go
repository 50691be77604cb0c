package agent

import (
	"context"
	"fmt"

	"github.com/nexteleven/eleven/config"
	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/llm"
	"github.com/nexteleven/eleven/policy"
	"github.com/nexteleven/eleven/session"
	"github.com/nexteleven/eleven/tools"
)

// ToolVerbosity controls how much tool execution detail front-ends show.
type ToolVerbosity int

const (
	ToolVerbosityNone ToolVerbosity = iota
	ToolVerbosityInfo
	ToolVerbosityAll
)

// maxToolTurns bounds how many model round-trips one user input may trigger.
const maxToolTurns = 16

// ProcessCallbacks lets each front-end render loop events its own way.
type ProcessCallbacks struct {
	// OnAssistantMessage receives the assistant's visible text, once per
	// model turn.
	OnAssistantMessage func(message string)
	// OnToolCall fires before a tool call is judged.
	OnToolCall func(toolCall session.ToolCall)
	// OnToolResult fires after a tool call finished, denied or not.
	OnToolResult func(toolCall session.ToolCall, result tools.Result)
	// RequestApproval asks the operator to approve one call. When nil,
	// the gate denies.
	RequestApproval func(toolCall session.ToolCall) bool
	// OnWarning receives non-fatal diagnostics.
	OnWarning func(warning string)
}

func (c ProcessCallbacks) warn(format string, a ...any) {
	if c.OnWarning != nil {
		c.OnWarning(fmt.Sprintf(format, a...))
	}
}

// Agent is the core session loop shared by all front-ends.
type Agent struct {
	Config    *config.Config
	Profile   config.Profile
	Session   *session.Session
	Client    llm.Client
	Registry  *tools.Registry
	Mode      policy.Mode
	Verbosity ToolVerbosity

	log *interactionLog
}

// New assembles an agent. A fresh session gets the profile's persona as its
// leading system message; a resumed session keeps the one it was started
// with.
func New(cfg *config.Config, profile config.Profile, sess *session.Session, client llm.Client, registry *tools.Registry, mode policy.Mode) *Agent {
	if len(sess.Messages) == 0 {
		sess.Append(session.Message{Role: session.RoleSystem, Content: profile.Persona})
		sess.AgentID = profile.ID
		sess.AuthMode = mode.String()
	}

	a := &Agent{
		Config:   cfg,
		Profile:  profile,
		Session:  sess,
		Client:   client,
		Registry: registry,
		Mode:     mode,
	}
	if cfg.AutoLog {
		a.log = newInteractionLog(cfg.LogFile)
	}
	return a
}

// model returns the profile's model override, falling back to the global one.
func (a *Agent) model() string {
	if a.Profile.Model != "" {
		return a.Profile.Model
	}
	return a.Config.Model
}

// ProcessUserInput runs one full user turn: it appends the input, then loops
// model request, stream drain, tool execution until the model answers without
// tool calls. Cancellation unwinds cleanly; nothing from a canceled or failed
// turn is persisted.
func (a *Agent) ProcessUserInput(ctx context.Context, userInput string, callbacks ProcessCallbacks) error {
	if a.Session.Compact(a.Config.CompactThreshold) {
		callbacks.warn("conversation history compacted to the most recent %d messages", a.Config.CompactThreshold)
	}

	a.Session.Append(session.Message{Role: session.RoleUser, Content: userInput})
	a.log.record(logEntry{Event: "user", Content: userInput})

	for turn := 0; ; turn++ {
		if turn >= maxToolTurns {
			return errors.New("model kept calling tools after %d turns; aborting this input", maxToolTurns)
		}

		text, calls, err := a.modelTurn(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return errors.WrapKind(errors.KindCanceled, ctx.Err(), "turn canceled")
			}
			return err
		}

		a.Session.Append(session.Message{Role: session.RoleAssistant, Content: text, ToolCalls: calls})
		if text != "" {
			a.log.record(logEntry{Event: "assistant", Content: text})
			if callbacks.OnAssistantMessage != nil {
				callbacks.OnAssistantMessage(text)
			}
		}

		if len(calls) == 0 {
			if err := a.Session.Save(); err != nil {
				callbacks.warn("failed to save session: %v", err)
			}
			return nil
		}

		// Execute in completion order, gate each call, then feed every
		// result back in a single follow-up request.
		for _, call := range calls {
			result := a.executeCall(ctx, call, callbacks)
			if ctx.Err() != nil {
				return errors.WrapKind(errors.KindCanceled, ctx.Err(), "turn canceled")
			}
			a.Session.Append(session.Message{
				Role:       session.RoleTool,
				Content:    result.Output,
				ToolCallID: call.ID,
				IsError:    result.IsError,
			})
		}

		if err := a.Session.Save(); err != nil {
			callbacks.warn("failed to save session: %v", err)
		}
	}
}

// modelTurn sends the history and drains one response stream. Tool calls are
// collected but never acted on until the turn boundary: a call is a proposal
// until the model stops talking.
func (a *Agent) modelTurn(ctx context.Context) (string, []session.ToolCall, error) {
	stream, err := a.Client.Stream(ctx, llm.Request{
		Messages:    a.Session.Messages,
		Tools:       a.Registry.All(),
		Model:       a.model(),
		Temperature: a.Config.Temperature,
		MaxTokens:   a.Config.MaxTokens,
	})
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var text string
	var calls []session.ToolCall
	for stream.Next() {
		ev := stream.Event()
		switch ev.Kind {
		case llm.EventTextDelta:
			text += ev.Text
		case llm.EventToolCallComplete:
			calls = append(calls, *ev.Call)
		case llm.EventError:
			return "", nil, errors.Wrapf(ev.Err, "model stream failed")
		case llm.EventTurnComplete:
			return text, calls, nil
		}
	}
	return "", nil, errors.NewKind(errors.KindTransport, "model stream ended without a turn boundary")
}

// executeCall gates and runs one tool call. The returned result always has
// content: denials and faults come back as error results the model can read.
func (a *Agent) executeCall(ctx context.Context, call session.ToolCall, callbacks ProcessCallbacks) tools.Result {
	if callbacks.OnToolCall != nil {
		callbacks.OnToolCall(call)
	}
	a.log.record(logEntry{Event: "tool_call", Tool: call.Name, CallID: call.ID})

	result := a.gateAndRun(ctx, call, callbacks)

	if callbacks.OnToolResult != nil {
		callbacks.OnToolResult(call, result)
	}
	a.log.record(logEntry{
		Event:    "tool_result",
		Tool:     call.Name,
		CallID:   call.ID,
		Content:  result.Output,
		ExitCode: result.ExitCode,
		IsError:  result.IsError,
	})
	return result
}

func (a *Agent) gateAndRun(ctx context.Context, call session.ToolCall, callbacks ProcessCallbacks) tools.Result {
	tool, ok := a.Registry.Get(call.Name)
	if !ok {
		return tools.ErrorResult("unknown tool %q", call.Name)
	}

	verdict := policy.Decide(tool.Classify(call.Args), a.Mode)
	if verdict.AuditNote != "" {
		callbacks.warn("%s: %s", call.Name, verdict.AuditNote)
		a.log.record(logEntry{Event: "audit", Tool: call.Name, CallID: call.ID, Content: verdict.AuditNote})
	}

	switch verdict.Decision {
	case policy.Ask:
		if callbacks.RequestApproval == nil || !callbacks.RequestApproval(call) {
			err := policy.DenialError(call.Name, "")
			a.log.record(logEntry{Event: "denial", Tool: call.Name, CallID: call.ID, Content: err.Error()})
			return tools.ErrorResult("%v", err)
		}
	case policy.Deny:
		err := policy.DenialError(call.Name, "blocked by permission policy")
		a.log.record(logEntry{Event: "denial", Tool: call.Name, CallID: call.ID, Content: err.Error()})
		return tools.ErrorResult("%v", err)
	}

	if err := runHook(ctx, a.Config.HooksDir, preToolUseHook, call, nil); err != nil {
		return tools.ErrorResult("pre-tool-use hook rejected the call: %v", err)
	}

	result := a.Registry.Execute(ctx, call.Name, call.Args)

	if err := runHook(ctx, a.Config.HooksDir, postToolUseHook, call, &result); err != nil {
		callbacks.warn("post-tool-use hook failed: %v", err)
	}
	return result
}
