package llm

import (
	"context"
	"encoding/json"
	"sync"
)

const staticReply = "Static LLM mode is enabled; no model was called."

// StaticProvider returns canned responses. It backs LLM_MODE=static and tests
// that need a deterministic model.
type StaticProvider struct {
	Reply   string
	Objects map[string]json.RawMessage

	mu       sync.Mutex
	requests []ObjectRequest
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{Reply: staticReply, Objects: map[string]json.RawMessage{}}
}

func (p *StaticProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.Reply, nil
}

// GenerateObject returns the object registered under req.Name, or an empty
// JSON object.
func (p *StaticProvider) GenerateObject(ctx context.Context, req ObjectRequest) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if obj, ok := p.Objects[req.Name]; ok {
		return append(json.RawMessage(nil), obj...), nil
	}
	return json.RawMessage(`{}`), nil
}

func (p *StaticProvider) Requests() []ObjectRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ObjectRequest(nil), p.requests...)
}
