package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/session"
)

// Sentinel errors surfaced through EventError.
var (
	// ErrMalformedPayload reports undecodable JSON on a data line. The
	// stream stops rather than attempting partial recovery, since
	// recovery could reorder events.
	ErrMalformedPayload = errors.NewKind(errors.KindTransport, "malformed stream payload")
	// ErrTruncatedStream reports a stream that ended without the
	// completion sentinel.
	ErrTruncatedStream = errors.NewKind(errors.KindTransport, "stream ended before completion sentinel")
)

const doneSentinel = "[DONE]"

// chatChunk is one decoded chat-completions streaming payload.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls []toolCallDelta `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type toolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// pendingCall accumulates the argument fragments of one tool call until the
// upstream signals the call is finished.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// sseStream normalizes a raw event-per-line response body into StreamEvents.
// Framing: lines prefixed "data: " carry JSON payloads; empty and comment
// lines are keep-alives; "data: [DONE]" terminates the stream. The underlying
// reader may split lines arbitrarily across chunks — buffering makes the
// emitted sequence invariant to chunk boundaries.
type sseStream struct {
	scanner *bufio.Scanner
	closer  io.Closer

	queue []StreamEvent
	cur   StreamEvent
	done  bool

	calls   map[int]*pendingCall
	order   []int
	flushed bool
}

// NewSSEStream wraps a response body in the stream normalizer.
func NewSSEStream(body io.ReadCloser) Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &sseStream{
		scanner: scanner,
		closer:  body,
		calls:   make(map[int]*pendingCall),
	}
}

func (s *sseStream) Next() bool {
	if s.done {
		return false
	}
	for len(s.queue) == 0 {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.queue = append(s.queue, StreamEvent{
					Kind: EventError,
					Err:  errors.WrapKind(errors.KindTransport, err, "reading response stream"),
				})
			} else {
				s.queue = append(s.queue, StreamEvent{Kind: EventError, Err: ErrTruncatedStream})
			}
			break
		}
		s.ingestLine(strings.TrimRight(s.scanner.Text(), "\r"))
	}

	s.cur = s.queue[0]
	s.queue = s.queue[1:]
	switch s.cur.Kind {
	case EventTurnComplete, EventError:
		s.done = true
	}
	return true
}

func (s *sseStream) Event() StreamEvent { return s.cur }

// Close abandons the stream. Partially accumulated tool-call fragments are
// discarded, never executed.
func (s *sseStream) Close() error {
	s.done = true
	s.calls = nil
	s.queue = nil
	return s.closer.Close()
}

// ingestLine consumes one frame, appending any events it produces.
func (s *sseStream) ingestLine(line string) {
	if line == "" || strings.HasPrefix(line, ":") {
		return // keep-alive
	}
	if !strings.HasPrefix(line, "data:") {
		return // unknown field, ignore
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == doneSentinel {
		// A well-behaved upstream flushes with a finish reason first,
		// but pending calls are still completed rather than dropped.
		s.flushPending()
		s.queue = append(s.queue, StreamEvent{Kind: EventTurnComplete})
		return
	}

	var chunk chatChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		s.queue = append(s.queue, StreamEvent{
			Kind: EventError,
			Err:  errors.Wrapf(ErrMalformedPayload, "%v", err),
		})
		return
	}
	if chunk.Error != nil {
		s.queue = append(s.queue, StreamEvent{
			Kind: EventError,
			Err:  errors.NewKind(errors.KindTransport, "upstream error: %s", chunk.Error.Message),
		})
		return
	}
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]

	if choice.Delta.Content != "" {
		s.queue = append(s.queue, StreamEvent{Kind: EventTextDelta, Text: choice.Delta.Content})
	}
	for _, tc := range choice.Delta.ToolCalls {
		pc, ok := s.calls[tc.Index]
		if !ok {
			pc = &pendingCall{}
			s.calls[tc.Index] = pc
			s.order = append(s.order, tc.Index)
		}
		if tc.ID != "" {
			pc.id = tc.ID
		}
		if tc.Function.Name != "" {
			pc.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			pc.args.WriteString(tc.Function.Arguments)
		}
		s.queue = append(s.queue, StreamEvent{
			Kind:         EventToolCallDelta,
			CallID:       s.callID(tc.Index),
			ArgsFragment: tc.Function.Arguments,
		})
	}
	if choice.FinishReason != "" {
		s.flushPending()
	}
}

// flushPending emits ToolCallComplete for every accumulated call, in the
// order their first fragments arrived. Two interleaved identifiers never
// cross-contaminate: fragments were routed by identifier as they arrived.
func (s *sseStream) flushPending() {
	if s.flushed {
		return
	}
	s.flushed = true
	for _, idx := range s.order {
		pc := s.calls[idx]
		args := map[string]any{}
		if raw := pc.args.String(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				s.queue = append(s.queue, StreamEvent{
					Kind: EventError,
					Err:  errors.Wrapf(ErrMalformedPayload, "tool call %s arguments: %v", s.callIDFor(idx, pc), err),
				})
				return
			}
		}
		s.queue = append(s.queue, StreamEvent{
			Kind: EventToolCallComplete,
			Call: &session.ToolCall{
				ID:   s.callIDFor(idx, pc),
				Name: pc.name,
				Args: args,
			},
		})
	}
	s.calls = make(map[int]*pendingCall)
	s.order = nil
}

func (s *sseStream) callID(idx int) string {
	return s.callIDFor(idx, s.calls[idx])
}

func (s *sseStream) callIDFor(idx int, pc *pendingCall) string {
	if pc != nil && pc.id != "" {
		return pc.id
	}
	return fmt.Sprintf("call_%d", idx)
}
