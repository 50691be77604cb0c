package llm

import (
	"github.com/nexteleven/eleven/session"
)

// EventKind tags the variants of StreamEvent.
type EventKind int

const (
	// EventTextDelta carries a fragment of visible assistant text.
	EventTextDelta EventKind = iota
	// EventToolCallDelta carries a partial tool-call argument fragment,
	// tagged by call identifier. Purely informational; the loop acts on
	// completes, not deltas.
	EventToolCallDelta
	// EventToolCallComplete carries one fully assembled tool call.
	EventToolCallComplete
	// EventTurnComplete marks the end of the model's turn.
	EventTurnComplete
	// EventError reports a stream failure. It is always the final event.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventTextDelta:
		return "text-delta"
	case EventToolCallDelta:
		return "tool-call-delta"
	case EventToolCallComplete:
		return "tool-call-complete"
	case EventTurnComplete:
		return "turn-complete"
	case EventError:
		return "error"
	default:
		return "invalid"
	}
}

// StreamEvent is one semantic event produced while draining a model response.
// Events are transient: the loop folds them into history and drops them.
type StreamEvent struct {
	Kind EventKind

	// Text is set for EventTextDelta.
	Text string

	// CallID and ArgsFragment are set for EventToolCallDelta.
	CallID       string
	ArgsFragment string

	// Call is set for EventToolCallComplete.
	Call *session.ToolCall

	// Err is set for EventError.
	Err error
}

// Stream is a pull-based, lazy, finite sequence of StreamEvents. The session
// loop iterates it synchronously per turn, which keeps ordering and
// cancellation reasoning simple. After EventTurnComplete or EventError, Next
// reports false.
type Stream interface {
	// Next advances to the next event, reporting false when the sequence
	// is exhausted.
	Next() bool
	// Event returns the current event. Only valid after a true Next.
	Event() StreamEvent
	// Close releases the underlying transport. Safe to call at any point;
	// closing mid-stream abandons any partially accumulated state.
	Close() error
}

// scriptedStream replays a fixed event sequence. Non-streaming providers and
// tests use it.
type scriptedStream struct {
	events []StreamEvent
	pos    int
}

// NewScriptedStream builds a Stream that replays events in order.
func NewScriptedStream(events []StreamEvent) Stream {
	return &scriptedStream{events: events, pos: -1}
}

func (s *scriptedStream) Next() bool {
	if s.pos >= 0 && s.pos < len(s.events) {
		// A terminal event ends the sequence even if more were scripted.
		switch s.events[s.pos].Kind {
		case EventTurnComplete, EventError:
			return false
		}
	}
	s.pos++
	return s.pos < len(s.events)
}

func (s *scriptedStream) Event() StreamEvent {
	if s.pos < 0 || s.pos >= len(s.events) {
		return StreamEvent{}
	}
	return s.events[s.pos]
}

func (s *scriptedStream) Close() error { return nil }

// replayTurn wraps one complete, non-streaming model response in the event
// vocabulary: the text, then each tool call, then the turn end. Providers
// whose SDKs return whole responses use this so the session loop never
// notices the difference.
func replayTurn(text string, calls []session.ToolCall) Stream {
	events := make([]StreamEvent, 0, len(calls)+2)
	if text != "" {
		events = append(events, StreamEvent{Kind: EventTextDelta, Text: text})
	}
	for i := range calls {
		events = append(events, StreamEvent{Kind: EventToolCallComplete, Call: &calls[i]})
	}
	events = append(events, StreamEvent{Kind: EventTurnComplete})
	return NewScriptedStream(events)
}
