package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/session"
	"github.com/nexteleven/eleven/tools"
)

// GrokClient talks to the xAI chat-completions endpoint (or any endpoint
// speaking the same wire format). It is the only provider that streams
// incrementally; the response body goes straight through the SSE normalizer.
type GrokClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewGrokClient builds the default provider.
func NewGrokClient(endpoint, apiKey string) *GrokClient {
	return &GrokClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		// No overall client timeout: the stream is long-lived and
		// cancellation comes through the request context.
		http: &http.Client{},
	}
}

// Wire types for the outbound request.
type grokMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []grokToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type grokToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function grokFunction `json:"function"`
}

type grokFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type grokToolDecl struct {
	Type     string           `json:"type"`
	Function grokFunctionDecl `json:"function"`
}

type grokFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type grokRequest struct {
	Model       string         `json:"model"`
	Messages    []grokMessage  `json:"messages"`
	Tools       []grokToolDecl `json:"tools,omitempty"`
	Stream      bool           `json:"stream"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

func (c *GrokClient) Stream(ctx context.Context, req Request) (Stream, error) {
	payload := grokRequest{
		Model:       req.Model,
		Messages:    buildGrokMessages(req.Messages),
		Tools:       buildGrokTools(req.Tools),
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.WrapKind(errors.KindTransport, err, "building request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapKind(errors.KindCanceled, ctx.Err(), "request canceled")
		}
		return nil, errors.WrapKind(errors.KindTransport, err, "sending request")
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.NewKind(errors.KindConfig,
				"API rejected the key (HTTP 401); update it with 'eleven -set-key'")
		}
		return nil, errors.NewKind(errors.KindTransport,
			"API request failed (HTTP %d): %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return NewSSEStream(resp.Body), nil
}

func buildGrokMessages(messages []session.Message) []grokMessage {
	out := make([]grokMessage, 0, len(messages))
	for _, msg := range messages {
		m := grokMessage{Role: msg.Role, Content: msg.Content}
		switch msg.Role {
		case session.RoleAssistant:
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					args = []byte("{}")
				}
				m.ToolCalls = append(m.ToolCalls, grokToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: grokFunction{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
		case session.RoleTool:
			m.ToolCallID = msg.ToolCallID
		}
		out = append(out, m)
	}
	return out
}

func buildGrokTools(ts []tools.Tool) []grokToolDecl {
	if len(ts) == 0 {
		return nil
	}
	out := make([]grokToolDecl, 0, len(ts))
	for _, t := range ts {
		out = append(out, grokToolDecl{
			Type: "function",
			Function: grokFunctionDecl{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters: map[string]any{
					"type":       "object",
					"properties": t.Parameters(),
				},
			},
		})
	}
	return out
}
