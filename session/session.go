// Package session owns the conversation history: an append-only ordered
// sequence of messages persisted as JSON under .eleven/sessions/. The history
// is owned exclusively by the session loop for the lifetime of one
// interactive session or one one-shot invocation.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexteleven/eleven/errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one structured tool invocation requested by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Message is one turn of conversation history. A tool-role message links back
// to the call that produced it through ToolCallID. Messages are immutable
// once appended.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// Session is one continuous conversation history plus the settings it was
// started with.
type Session struct {
	Name     string    `json:"name"`
	AgentID  string    `json:"agent,omitempty"`
	AuthMode string    `json:"auth_mode,omitempty"`
	Messages []Message `json:"messages"`

	path string
}

const sessionDirName = ".eleven/sessions"

// New creates a new named session.
func New(name string) (*Session, error) {
	path, err := sessionPath(name)
	if err != nil {
		return nil, err
	}
	return &Session{
		Name:     name,
		Messages: []Message{},
		path:     path,
	}, nil
}

// Load resumes an existing session from disk.
func Load(name string) (*Session, error) {
	path, err := sessionPath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "could not read session %q", name)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "could not parse session %q", name)
	}
	s.path = path
	return &s, nil
}

// Save writes the current session state to disk.
func (s *Session) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize session")
	}
	return os.WriteFile(s.path, data, 0644)
}

// Append adds messages to the history. History only ever grows; callers must
// not mutate a message after appending it.
func (s *Session) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// Compact trims the history to the most recent window once it grows past
// threshold, keeping a leading system message if one exists. Returns true if
// anything was dropped.
func (s *Session) Compact(threshold int) bool {
	if threshold <= 0 || len(s.Messages) <= threshold {
		return false
	}
	var head []Message
	body := s.Messages
	if len(body) > 0 && body[0].Role == RoleSystem {
		head = body[:1]
		body = body[1:]
	}
	keep := threshold - len(head)
	if keep < 1 {
		keep = 1
	}
	if len(body) <= keep {
		return false
	}
	tail := body[len(body)-keep:]

	// Never start the retained window on a tool result whose call was
	// dropped; providers reject orphaned tool messages.
	for len(tail) > 0 && tail[0].Role == RoleTool {
		tail = tail[1:]
	}

	compacted := make([]Message, 0, len(head)+len(tail))
	compacted = append(compacted, head...)
	compacted = append(compacted, tail...)
	s.Messages = compacted
	return true
}

func sessionPath(name string) (string, error) {
	if name == "" {
		return "", errors.NewKind(errors.KindConfig, "session name cannot be empty")
	}
	if err := os.MkdirAll(sessionDirName, 0755); err != nil {
		return "", errors.Wrapf(err, "could not create session directory")
	}
	return filepath.Join(sessionDirName, fmt.Sprintf("%s.json", name)), nil
}
