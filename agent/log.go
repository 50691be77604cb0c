package agent

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// logEntry is one line of the JSONL interaction log.
type logEntry struct {
	Time     string `json:"time"`
	Event    string `json:"event"`
	Tool     string `json:"tool,omitempty"`
	CallID   string `json:"call_id,omitempty"`
	Content  string `json:"content,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	IsError  bool   `json:"is_error,omitempty"`
}

// interactionLog appends entries to a JSONL file. Logging is best effort: a
// broken log never interrupts the session, it just goes quiet.
type interactionLog struct {
	mu   sync.Mutex
	path string
	// broken latches after the first write failure.
	broken bool
}

func newInteractionLog(path string) *interactionLog {
	if path == "" {
		path = ".eleven/interactions.jsonl"
	}
	return &interactionLog{path: path}
}

// record appends one entry. Safe on a nil receiver so callers never need to
// check whether logging is enabled.
func (l *interactionLog) record(entry logEntry) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.broken {
		return
	}

	entry.Time = time.Now().UTC().Format(time.RFC3339)
	line, err := json.Marshal(entry)
	if err != nil {
		l.broken = true
		return
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.broken = true
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		l.broken = true
	}
}
