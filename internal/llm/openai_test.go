package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func TestNewOpenAIProvider_DefaultBaseURL(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o"})
	if provider.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default baseURL, got %s", provider.baseURL)
	}
}

func TestNewOpenAIProvider_TrimTrailingSlash(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o", BaseURL: "https://api.openai.com/v1/"})
	if provider.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected trailing slash trimmed, got %s", provider.baseURL)
	}
}

func TestOpenAIProvider_MissingKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when API key is missing")
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hello"}})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenAIProvider_MissingModel(t *testing.T) {
	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "k"})
	_, err := provider.GenerateObject(context.Background(), ObjectRequest{Name: "x", Prompt: "p"})
	if !errors.Is(err, ErrMissingModel) {
		t.Fatalf("expected ErrMissingModel, got %v", err)
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["model"] != "gpt-4o" {
			t.Errorf("unexpected model %v", body["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("  Hello there  "))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: server.URL})
	got, err := provider.Generate(context.Background(), []Message{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "Hello there" {
		t.Errorf("expected trimmed content, got %q", got)
	}
}

func TestOpenAIProvider_GenerateObject(t *testing.T) {
	type answer struct {
		Name string `json:"name"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type       string `json:"type"`
				JSONSchema struct {
					Name   string         `json:"name"`
					Schema map[string]any `json:"schema"`
				} `json:"json_schema"`
			} `json:"response_format"`
			Messages []map[string]any `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "override-model" {
			t.Errorf("expected request model override, got %s", body.Model)
		}
		if body.ResponseFormat.Type != "json_schema" {
			t.Errorf("expected json_schema response format, got %s", body.ResponseFormat.Type)
		}
		if body.ResponseFormat.JSONSchema.Name != "answer" {
			t.Errorf("unexpected schema name %s", body.ResponseFormat.JSONSchema.Name)
		}
		if body.ResponseFormat.JSONSchema.Schema["type"] != "object" {
			t.Errorf("expected object schema, got %v", body.ResponseFormat.JSONSchema.Schema)
		}
		if len(body.Messages) != 2 {
			t.Errorf("expected system and user messages, got %d", len(body.Messages))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"name":"Widget"}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "test-key", Model: "gpt-4o", BaseURL: server.URL})
	raw, err := provider.GenerateObject(context.Background(), ObjectRequest{
		Model:  "override-model",
		Name:   "answer",
		Schema: MustSchemaFor[answer](),
		System: "Extract.",
		Prompt: "Name the widget.",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(raw) != `{"name":"Widget"}` {
		t.Errorf("unexpected object %s", raw)
	}
}

func TestOpenAIProvider_GenerateObjectRejectsProse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("Sorry, I cannot do that."))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.GenerateObject(context.Background(), ObjectRequest{Name: "answer", Prompt: "p"})
	var invalid ErrInvalidObject
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ErrInvalidObject, got %v", err)
	}
}

func TestOpenAIProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hi"}})
	if err == nil || !strings.Contains(err.Error(), "LLM request failed") {
		t.Fatalf("expected request failure, got %v", err)
	}
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatCompletion("")
		resp["choices"] = []any{}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o", BaseURL: server.URL})
	_, err := provider.Generate(context.Background(), []Message{{Role: "user", Content: "Hi"}})
	if err == nil || err.Error() != "LLM response had no choices" {
		t.Fatalf("expected no choices error, got %v", err)
	}
}
