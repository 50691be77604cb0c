package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/session"
	"github.com/nexteleven/eleven/tools"
	"google.golang.org/api/option"
)

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new GeminiClient. When key is empty it falls back
// to the GEMINI_API_KEY environment variable.
func NewGeminiClient(ctx context.Context, key string) (*GeminiClient, error) {
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return nil, errors.NewKind(errors.KindConfig, "no Gemini API key: set GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "creating genai client")
	}

	return &GeminiClient{client: client}, nil
}

func (g *GeminiClient) Stream(ctx context.Context, req Request) (Stream, error) {
	model := g.client.GenerativeModel(req.Model)
	model.Tools = convertToolsToGemini(req.Tools)
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	history, system := convertMessagesToGemini(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if len(history) == 0 {
		return nil, errors.New("no messages to send")
	}

	last := history[len(history)-1]
	chat := model.StartChat()
	chat.History = history[:len(history)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapKind(errors.KindCanceled, ctx.Err(), "request canceled")
		}
		return nil, errors.WrapKind(errors.KindTransport, err, "Gemini request failed")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.NewKind(errors.KindTransport, "empty response from Gemini")
	}

	var text string
	var calls []session.ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			text += string(v)
		case genai.FunctionCall:
			// Gemini assigns no call identifiers; synthesize stable ones
			// so results can be matched back.
			calls = append(calls, session.ToolCall{
				ID:   fmt.Sprintf("call_%d_%s", len(calls), v.Name),
				Name: v.Name,
				Args: v.Args,
			})
		default:
			return nil, errors.NewKind(errors.KindTransport, "unsupported part type in Gemini response: %T", v)
		}
	}

	return replayTurn(text, calls), nil
}

// convertMessagesToGemini maps history onto Gemini content. Tool results
// become FunctionResponse parts; the function name is recovered from the
// assistant message that issued the call.
func convertMessagesToGemini(messages []session.Message) ([]*genai.Content, string) {
	var contents []*genai.Content
	var system string
	callNames := make(map[string]string)

	for _, msg := range messages {
		switch msg.Role {
		case session.RoleSystem:
			system = msg.Content
		case session.RoleAssistant:
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				callNames[tc.ID] = tc.Name
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: tc.Args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case session.RoleTool:
			name := callNames[msg.ToolCallID]
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     name,
					Response: map[string]any{"output": msg.Content},
				}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}
	return contents, system
}

func convertToolsToGemini(ts []tools.Tool) []*genai.Tool {
	if len(ts) == 0 {
		return nil
	}
	var funcDecls []*genai.FunctionDeclaration
	for _, t := range ts {
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: convertSchemaToGemini(t.Parameters()),
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

// convertSchemaToGemini lowers the flat parameter schema into genai's typed
// schema. Unknown types degrade to string.
func convertSchemaToGemini(props map[string]any) map[string]*genai.Schema {
	out := make(map[string]*genai.Schema, len(props))
	for name, raw := range props {
		schema := &genai.Schema{Type: genai.TypeString}
		if prop, ok := raw.(map[string]any); ok {
			if desc, ok := prop["description"].(string); ok {
				schema.Description = desc
			}
			switch prop["type"] {
			case "integer":
				schema.Type = genai.TypeInteger
			case "number":
				schema.Type = genai.TypeNumber
			case "boolean":
				schema.Type = genai.TypeBoolean
			case "object":
				schema.Type = genai.TypeObject
			case "array":
				schema.Type = genai.TypeArray
				schema.Items = &genai.Schema{Type: genai.TypeString}
			}
		}
		out[name] = schema
	}
	return out
}
