// Package llm abstracts the remote language-model endpoints behind one
// uniform interface: a request carries the full message history and the
// resolved profile's request-shaping fields, and the response comes back as a
// pull-based stream of semantic events. All wire-format differences between
// providers stay inside this package; the session loop only ever sees
// StreamEvents and session.Messages.
package llm

import (
	"context"

	"github.com/nexteleven/eleven/config"
	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/session"
	"github.com/nexteleven/eleven/tools"
)

// Request is one outbound model request.
type Request struct {
	// Messages is the full conversation history, system message included.
	Messages []session.Message
	// Tools are the tool declarations advertised for this turn.
	Tools []tools.Tool
	// Model, Temperature, and MaxTokens come from the resolved profile and
	// configuration.
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client is the interface for one model provider.
type Client interface {
	// Stream sends the request and returns the response event stream. The
	// context covers the whole exchange; canceling it unwinds the stream.
	Stream(ctx context.Context, req Request) (Stream, error)
}

// New builds the provider named by the configuration. The apiKey is the
// secret fetched from the credential store at startup; providers that manage
// their own credentials (bedrock) ignore it.
func New(ctx context.Context, cfg *config.Config, apiKey string) (Client, error) {
	switch cfg.Provider {
	case "grok":
		return NewGrokClient(cfg.Endpoint, apiKey), nil
	case "openai":
		return NewOpenAIClient(apiKey)
	case "anthropic":
		return NewAnthropicClient(apiKey)
	case "gemini":
		return NewGeminiClient(ctx, apiKey)
	case "bedrock":
		return NewBedrockClient(ctx)
	default:
		return nil, errors.NewKind(errors.KindConfig, "unknown provider %q", cfg.Provider)
	}
}

// ScriptedClient replays pre-recorded turns. Each call to Stream consumes the
// next scripted turn; requests past the script fail.
type ScriptedClient struct {
	Turns    [][]StreamEvent
	Requests []Request
	next     int
}

func (c *ScriptedClient) Stream(ctx context.Context, req Request) (Stream, error) {
	c.Requests = append(c.Requests, req)
	if c.next >= len(c.Turns) {
		return nil, errors.NewKind(errors.KindTransport, "scripted client exhausted after %d turns", len(c.Turns))
	}
	turn := c.Turns[c.next]
	c.next++
	return NewScriptedStream(turn), nil
}
