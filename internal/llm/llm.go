package llm

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// ObjectRequest asks the model for a single JSON value conforming to Schema.
// An empty Model selects the provider's configured model.
type ObjectRequest struct {
	Model       string
	Name        string
	Description string
	Schema      *jsonschema.Schema
	System      string
	Prompt      string
}

type StructuredGenerator interface {
	GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error)
}

// Client is what every provider in this package implements.
type Client interface {
	Provider
	StructuredGenerator
}

type Config struct {
	Mode             string
	Provider         string
	Model            string
	BaseURL          string
	OpenAIAPIKey     string
	AnthropicAPIKey  string
	OpenRouterAPIKey string
	GroqAPIKey       string
}

func NewProvider(cfg Config) (Client, error) {
	if cfg.Mode == "static" {
		return NewStaticProvider(), nil
	}

	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	case "openrouter":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://openrouter.ai/api/v1"),
		}), nil
	case "groq":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.GroqAPIKey,
			Model:   cfg.Model,
			BaseURL: defaultIfEmpty(cfg.BaseURL, "https://api.groq.com/openai/v1"),
		}), nil
	default:
		return nil, ErrUnsupportedProvider{Provider: cfg.Provider}
	}
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
