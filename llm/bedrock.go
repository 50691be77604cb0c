package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/nexteleven/eleven/errors"
	"github.com/nexteleven/eleven/session"
)

// BedrockClient is a client for Anthropic models on AWS Bedrock. Credentials
// come from the ambient AWS configuration, not the credential store.
type BedrockClient struct {
	client *bedrockruntime.Client
}

// NewBedrockClient creates a new BedrockClient.
func NewBedrockClient(ctx context.Context) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "loading AWS config")
	}
	return &BedrockClient{client: bedrockruntime.NewFromConfig(cfg)}, nil
}

func (b *BedrockClient) Stream(ctx context.Context, req Request) (Stream, error) {
	body, err := buildBedrockRequest(req)
	if err != nil {
		return nil, errors.Wrapf(err, "building Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.WrapKind(errors.KindCanceled, ctx.Err(), "request canceled")
		}
		return nil, errors.WrapKind(errors.KindTransport, err, "invoking Bedrock model")
	}

	return parseBedrockResponse(resp.Body)
}

// buildBedrockRequest assembles the Anthropic-on-Bedrock request body.
func buildBedrockRequest(req Request) ([]byte, error) {
	messages, systemPrompt := convertMessagesToBedrock(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	request := map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens,
		"messages":          messages,
	}
	if req.Temperature > 0 {
		request["temperature"] = req.Temperature
	}
	if systemPrompt != "" {
		request["system"] = systemPrompt
	}
	if len(req.Tools) > 0 {
		var decls []map[string]any
		for _, t := range req.Tools {
			decls = append(decls, map[string]any{
				"name":        t.Name(),
				"description": t.Description(),
				"input_schema": map[string]any{
					"type":       "object",
					"properties": t.Parameters(),
				},
			})
		}
		request["tools"] = decls
	}

	return json.Marshal(request)
}

// convertMessagesToBedrock maps history onto the raw Anthropic wire shapes
// Bedrock expects.
func convertMessagesToBedrock(messages []session.Message) ([]map[string]any, string) {
	var out []map[string]any
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case session.RoleSystem:
			systemPrompt = msg.Content
		case session.RoleUser:
			out = append(out, map[string]any{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": msg.Content},
				},
			})
		case session.RoleAssistant:
			var blocks []map[string]any
			if msg.Content != "" {
				blocks = append(blocks, map[string]any{
					"type": "text", "text": msg.Content,
				})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": tc.Args,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, map[string]any{
				"role":    "assistant",
				"content": blocks,
			})
		case session.RoleTool:
			out = append(out, map[string]any{
				"role": "user",
				"content": []map[string]any{
					{
						"type":        "tool_result",
						"tool_use_id": msg.ToolCallID,
						"content":     msg.Content,
						"is_error":    msg.IsError,
					},
				},
			})
		}
	}

	return out, systemPrompt
}

// parseBedrockResponse lowers the raw response body into an event stream.
func parseBedrockResponse(body []byte) (Stream, error) {
	var response map[string]any
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.WrapKind(errors.KindTransport, err, "decoding Bedrock response")
	}

	if errMsg, ok := response["error"]; ok {
		return nil, errors.NewKind(errors.KindTransport, "Bedrock API error: %v", errMsg)
	}

	content, ok := response["content"].([]any)
	if !ok {
		return replayTurn("", nil), nil
	}

	var text string
	var calls []session.ToolCall
	for _, item := range content {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch block["type"] {
		case "text":
			if t, ok := block["text"].(string); ok {
				text += t
			}
		case "tool_use":
			name, _ := block["name"].(string)
			input, _ := block["input"].(map[string]any)
			if name == "" {
				continue
			}
			id, _ := block["id"].(string)
			if id == "" {
				id = fmt.Sprintf("call_%d_%s", len(calls), name)
			}
			calls = append(calls, session.ToolCall{
				ID:   id,
				Name: name,
				Args: input,
			})
		}
	}

	return replayTurn(text, calls), nil
}
