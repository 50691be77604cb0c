// Package errors provides error construction helpers that record the file and
// line of the call site, plus the failure-kind taxonomy the agent runtime uses
// to route errors: configuration problems halt the session, transport problems
// fail a single turn, tool problems are fed back into the conversation, and
// cancellations unwind cleanly.
package errors

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind classifies how the runtime should react to a failure.
type Kind int

const (
	// KindUnknown is the zero value for errors created without a kind.
	KindUnknown Kind = iota
	// KindConfig covers bad or missing profiles, credentials, and config
	// files. Fatal: reported to the operator, never retried.
	KindConfig
	// KindTransport covers connection failures and malformed streams. The
	// turn fails but the session may continue; the user can retry.
	KindTransport
	// KindTool covers handler faults, timeouts, and permission denials.
	// Converted into a tool result so the model can adapt.
	KindTool
	// KindCanceled covers user interrupts. The current turn unwinds and
	// partial state is discarded.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindTool:
		return "tool"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// New creates a new error with file and line number information.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err)
}

// NewKind creates a new error classified under the given kind.
func NewKind(kind Kind, format string, a ...interface{}) error {
	return &kindError{
		kind: kind,
		err:  fmt.Errorf("[%s] %s", caller(), fmt.Sprintf(format, a...)),
	}
}

// WrapKind classifies an existing error under the given kind, adding context.
// If the provided error is nil, WrapKind returns nil.
func WrapKind(kind Kind, err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{
		kind: kind,
		err:  fmt.Errorf("[%s] %s: %w", caller(), fmt.Sprintf(format, a...), err),
	}
}

// KindOf reports the kind of err, walking the wrap chain. The outermost
// classification wins.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		err = stderrors.Unwrap(err)
	}
	return KindUnknown
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

func caller() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
