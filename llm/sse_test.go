package llm

import (
	"io"
	"strings"
	"testing"

	"github.com/nexteleven/eleven/errors"
)

// chunkedReader returns at most n bytes per Read so tests can force
// arbitrary chunk boundaries mid-line.
type chunkedReader struct {
	r io.Reader
	n int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

func streamOf(raw string, chunkSize int) Stream {
	var r io.Reader = strings.NewReader(raw)
	if chunkSize > 0 {
		r = &chunkedReader{r: r, n: chunkSize}
	}
	return NewSSEStream(io.NopCloser(r))
}

func drain(t *testing.T, s Stream) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for s.Next() {
		events = append(events, s.Event())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return events
}

func TestSSETextDeltas(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n" +
		"data: [DONE]\n"

	events := drain(t, streamOf(raw, 0))
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if events[0].Kind != EventTextDelta || events[0].Text != "Hel" {
		t.Errorf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != EventTextDelta || events[1].Text != "lo" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
	if events[2].Kind != EventTurnComplete {
		t.Errorf("expected turn complete, got %+v", events[2])
	}
}

func TestSSEChunkBoundaryInvariance(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"alpha \"}}]}\n" +
		"\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_a\",\"function\":{\"name\":\"run_command\",\"arguments\":\"{\\\"com\"}}]}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"mand\\\":\\\"ls\\\"}\"}}]}}]}\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n" +
		"data: [DONE]\n"

	reference := drain(t, streamOf(raw, 0))
	for _, size := range []int{1, 2, 3, 7, 16, 1024} {
		got := drain(t, streamOf(raw, size))
		if len(got) != len(reference) {
			t.Fatalf("chunk size %d: expected %d events, got %d", size, len(reference), len(got))
		}
		for i := range reference {
			if got[i].Kind != reference[i].Kind || got[i].Text != reference[i].Text {
				t.Errorf("chunk size %d: event %d diverges: %+v vs %+v", size, i, got[i], reference[i])
			}
		}
	}

	// The assembled call must survive any split.
	got := drain(t, streamOf(raw, 1))
	var found bool
	for _, ev := range got {
		if ev.Kind == EventToolCallComplete {
			found = true
			if ev.Call.ID != "call_a" || ev.Call.Name != "run_command" {
				t.Errorf("unexpected call identity: %+v", ev.Call)
			}
			if ev.Call.Args["command"] != "ls" {
				t.Errorf("unexpected call args: %v", ev.Call.Args)
			}
		}
	}
	if !found {
		t.Fatal("no tool call completion emitted")
	}
}

func TestSSEKeepAlivesIgnored(t *testing.T) {
	raw := ": ping\n" +
		"\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n" +
		": another ping\n" +
		"data: [DONE]\n"

	events := drain(t, streamOf(raw, 0))
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(events), events)
	}
	if events[0].Kind != EventTextDelta || events[0].Text != "ok" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestSSEInterleavedToolCalls(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_a\",\"function\":{\"name\":\"view_file\",\"arguments\":\"{\\\"pa\"}}]}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":1,\"id\":\"call_b\",\"function\":{\"name\":\"list_dir\",\"arguments\":\"{\\\"path\\\":\"}}]}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"th\\\":\\\"a.txt\\\"}\"}}]}}]}\n" +
		"data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":1,\"function\":{\"arguments\":\"\\\"src\\\"}\"}}]}}]}\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n" +
		"data: [DONE]\n"

	var completes []StreamEvent
	for _, ev := range drain(t, streamOf(raw, 0)) {
		if ev.Kind == EventToolCallComplete {
			completes = append(completes, ev)
		}
	}
	if len(completes) != 2 {
		t.Fatalf("expected 2 completed calls, got %d", len(completes))
	}
	// Completion follows first-fragment arrival order.
	if completes[0].Call.ID != "call_a" || completes[1].Call.ID != "call_b" {
		t.Errorf("unexpected completion order: %s, %s", completes[0].Call.ID, completes[1].Call.ID)
	}
	if completes[0].Call.Args["path"] != "a.txt" {
		t.Errorf("call_a args cross-contaminated: %v", completes[0].Call.Args)
	}
	if completes[1].Call.Args["path"] != "src" {
		t.Errorf("call_b args cross-contaminated: %v", completes[1].Call.Args)
	}
}

func TestSSEMalformedPayloadStopsStream(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n" +
		"data: {not json\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"never seen\"}}]}\n"

	s := streamOf(raw, 0)
	var events []StreamEvent
	for s.Next() {
		events = append(events, s.Event())
	}
	s.Close()

	last := events[len(events)-1]
	if last.Kind != EventError {
		t.Fatalf("expected trailing error event, got %+v", last)
	}
	if !errors.Is(last.Err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", last.Err)
	}
	for _, ev := range events[:len(events)-1] {
		if ev.Text == "never seen" {
			t.Error("stream continued past malformed payload")
		}
	}
	if s.Next() {
		t.Error("Next reported true after terminal error")
	}
}

func TestSSETruncatedStream(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"content\":\"cut off\"}}]}\n"

	events := drain(t, streamOf(raw, 0))
	last := events[len(events)-1]
	if last.Kind != EventError {
		t.Fatalf("expected error event, got %+v", last)
	}
	if !errors.Is(last.Err, ErrTruncatedStream) {
		t.Errorf("expected ErrTruncatedStream, got %v", last.Err)
	}
	if errors.KindOf(last.Err) != errors.KindTransport {
		t.Errorf("expected transport kind, got %v", errors.KindOf(last.Err))
	}
}

func TestSSEDoneFlushesPendingCalls(t *testing.T) {
	// No finish_reason frame; the sentinel still completes the call.
	raw := "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_x\",\"function\":{\"name\":\"run_command\",\"arguments\":\"{}\"}}]}}]}\n" +
		"data: [DONE]\n"

	events := drain(t, streamOf(raw, 0))
	if events[len(events)-1].Kind != EventTurnComplete {
		t.Fatalf("expected turn complete last, got %+v", events[len(events)-1])
	}
	var sawComplete bool
	for _, ev := range events[:len(events)-1] {
		if ev.Kind == EventToolCallComplete && ev.Call.ID == "call_x" {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatal("pending call was dropped at [DONE]")
	}
}

func TestSSEUpstreamError(t *testing.T) {
	raw := "data: {\"error\":{\"message\":\"rate limited\"}}\n"

	events := drain(t, streamOf(raw, 0))
	if len(events) != 1 || events[0].Kind != EventError {
		t.Fatalf("expected single error event, got %v", events)
	}
	if !strings.Contains(events[0].Err.Error(), "rate limited") {
		t.Errorf("upstream message lost: %v", events[0].Err)
	}
}

func TestSSEMalformedToolArguments(t *testing.T) {
	raw := "data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_y\",\"function\":{\"name\":\"run_command\",\"arguments\":\"{broken\"}}]}}]}\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n" +
		"data: [DONE]\n"

	events := drain(t, streamOf(raw, 0))
	last := events[len(events)-1]
	if last.Kind != EventError || !errors.Is(last.Err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload error, got %+v", last)
	}
	for _, ev := range events {
		if ev.Kind == EventToolCallComplete {
			t.Error("call with undecodable arguments must not complete")
		}
	}
}
