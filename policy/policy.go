// Package policy implements the permission gate that decides whether a
// requested tool invocation may run. The gate is a pure function of the tool's
// static risk class and the session's authorization mode; it holds no state,
// so every decision is reproducible and directly testable.
package policy

import (
	"github.com/nexteleven/eleven/errors"
)

// RiskClass is the static classification of a tool. It is a property of the
// tool's registration, checkable without invoking the handler.
type RiskClass int

const (
	// RiskSafe tools run without approval in every mode.
	RiskSafe RiskClass = iota
	// RiskApproval tools need operator approval in interactive mode.
	RiskApproval
	// RiskBlocked tools are withheld unless the operator approves them
	// interactively or the session runs in a forced mode.
	RiskBlocked
)

func (r RiskClass) String() string {
	switch r {
	case RiskSafe:
		return "safe"
	case RiskApproval:
		return "requires-approval"
	case RiskBlocked:
		return "blocked"
	default:
		return "invalid"
	}
}

// Mode is the session-wide authorization mode. It is resolved once from the
// launch flags and passed explicitly wherever a decision is made; it is never
// read from ambient state and never changes mid-session.
type Mode int

const (
	// ModeInteractive asks the operator before each risky action.
	ModeInteractive Mode = iota
	// ModeForced auto-approves risky actions, including blocked ones,
	// which are allowed with an audit note.
	ModeForced
	// ModeUnrestricted bypasses all gating.
	ModeUnrestricted
)

func (m Mode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModeForced:
		return "forced"
	case ModeUnrestricted:
		return "unrestricted"
	default:
		return "invalid"
	}
}

// ParseMode derives the authorization mode from the two launch flags. The
// skip-permissions flag wins over force.
func ParseMode(force, skipPermissions bool) Mode {
	switch {
	case skipPermissions:
		return ModeUnrestricted
	case force:
		return ModeForced
	default:
		return ModeInteractive
	}
}

// Decision is the outcome of gating one tool invocation.
type Decision int

const (
	// Allow runs the tool without asking.
	Allow Decision = iota
	// Deny refuses the tool. The runtime must still produce an error tool
	// result with a denial reason; a denied call is never silently dropped.
	Deny
	// Ask suspends execution until the operator confirms or declines.
	Ask
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case Ask:
		return "ask"
	default:
		return "invalid"
	}
}

// Verdict carries the decision plus an audit note when a normally blocked
// action is let through by a forced mode.
type Verdict struct {
	Decision  Decision
	AuditNote string
}

// Decide gates one tool invocation. It is a pure function of the risk class
// and the authorization mode.
func Decide(risk RiskClass, mode Mode) Verdict {
	if mode == ModeUnrestricted {
		return Verdict{Decision: Allow}
	}
	switch risk {
	case RiskSafe:
		return Verdict{Decision: Allow}
	case RiskApproval:
		if mode == ModeForced {
			return Verdict{Decision: Allow}
		}
		return Verdict{Decision: Ask}
	case RiskBlocked:
		if mode == ModeForced {
			return Verdict{
				Decision:  Allow,
				AuditNote: "blocked action allowed by --force",
			}
		}
		return Verdict{Decision: Ask}
	default:
		return Verdict{Decision: Deny}
	}
}

// DenialError builds the error fed back into the conversation when a call is
// denied. The reason is always non-empty so the model sees why it was refused.
func DenialError(toolName, reason string) error {
	if reason == "" {
		reason = "denied by operator"
	}
	return errors.NewKind(errors.KindTool, "tool %q not executed: %s", toolName, reason)
}
