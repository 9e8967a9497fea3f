package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// AnthropicProvider produces structured output by forcing a single tool call
// whose input schema is the requested object schema.
type AnthropicProvider struct {
	apiKey string
	model  string
	client anthropic.Client
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(60 * time.Second),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: anthropic.NewClient(opts...),
	}
}

func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	if err := p.ready(p.model); err != nil {
		return "", err
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(anthropicModelID(p.model)),
		MaxTokens: anthropicMaxTokens,
	}
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (p *AnthropicProvider) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	model := defaultIfEmpty(req.Model, p.model)
	if err := p.ready(model); err != nil {
		return nil, err
	}
	schema, err := SchemaMap(req.Schema)
	if err != nil {
		return nil, err
	}
	name := defaultIfEmpty(req.Name, "result")

	inputSchema := anthropic.ToolInputSchemaParam{Properties: schema["properties"]}
	if required, ok := schema["required"].([]any); ok {
		for _, field := range required {
			if s, ok := field.(string); ok {
				inputSchema.Required = append(inputSchema.Required, s)
			}
		}
	}
	tool := anthropic.ToolUnionParamOfTool(inputSchema, name)
	if req.Description != "" {
		tool.OfTool.Description = anthropic.String(req.Description)
	}

	params := anthropic.MessageNewParams{
		Model:      anthropic.Model(anthropicModelID(model)),
		MaxTokens:  anthropicMaxTokens,
		Messages:   []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Tools:      []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: name}},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("LLM request failed: %w", err)
	}
	for _, block := range resp.Content {
		if use, ok := block.AsAny().(anthropic.ToolUseBlock); ok && use.Name == name {
			return json.RawMessage(use.Input), nil
		}
	}
	return nil, ErrInvalidObject{Name: name, Err: errors.New("model did not call the output tool")}
}

func (p *AnthropicProvider) ready(model string) error {
	if p.apiKey == "" {
		return ErrMissingAPIKey
	}
	if model == "" {
		return ErrMissingModel
	}
	return nil
}

// anthropicModelID strips the gateway-style provider prefix used by the model
// catalogue ("anthropic/claude-sonnet-4-6").
func anthropicModelID(model string) string {
	return strings.TrimPrefix(model, "anthropic/")
}
