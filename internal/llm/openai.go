package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  openai.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(defaultIfEmpty(cfg.BaseURL, "https://api.openai.com/v1"), "/")
	return &OpenAIProvider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: baseURL,
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(cfg.APIKey),
			option.WithRequestTimeout(35*time.Second),
			option.WithMaxRetries(1),
		),
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	if err := p.ready(p.model); err != nil {
		return "", err
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: toOpenAIMessages(messages),
	}
	return p.complete(ctx, params)
}

func (p *OpenAIProvider) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	model := defaultIfEmpty(req.Model, p.model)
	if err := p.ready(model); err != nil {
		return nil, err
	}
	schema, err := SchemaMap(req.Schema)
	if err != nil {
		return nil, err
	}

	var messages []Message
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	params.ResponseFormat.OfJSONSchema = &openai.ResponseFormatJSONSchemaParam{
		JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:        defaultIfEmpty(req.Name, "result"),
			Description: openai.String(req.Description),
			Schema:      schema,
			Strict:      openai.Bool(false),
		},
	}

	content, err := p.complete(ctx, params)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(content)) {
		return nil, ErrInvalidObject{Name: req.Name, Err: errors.New("response is not valid JSON")}
	}
	return json.RawMessage(content), nil
}

func (p *OpenAIProvider) ready(model string) error {
	if p.apiKey == "" {
		return ErrMissingAPIKey
	}
	if model == "" {
		return ErrMissingModel
	}
	return nil
}

func (p *OpenAIProvider) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("LLM request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM response had no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
