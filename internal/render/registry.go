package render

import (
	"encoding/json"
	"strings"

	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/message"
)

// Func renders one tool part. It returns nil when the part has nothing to
// show.
type Func func(part message.Part) *View

type entry struct {
	render        Func
	alwaysVisible bool
}

type Config struct {
	FaviconService string
}

// Registry maps tool names to renderers and records which tools always
// produce visible content. It is the Visibility used by the normalizer.
type Registry struct {
	favicon string
	entries map[string]entry
}

func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		favicon: cfg.FaviconService,
		entries: map[string]entry{},
	}
	r.Register("createDocument", r.createDocument, true)
	r.Register("updateDocument", r.updateDocument, true)
	r.Register("requestSuggestions", r.requestSuggestions, true)
	r.Register("web_search", r.webSearch, false)
	r.Register("web_fetch", r.webFetch, false)
	r.Register(commerce.ToolBrowseSite, r.browseSite, true)
	r.Register(commerce.ToolExtractProduct, r.extractProduct, true)
	r.Register(commerce.ToolAnalyseCommerce, r.analyseCommerce, true)
	return r
}

func (r *Registry) Register(toolName string, fn Func, alwaysVisible bool) {
	r.entries[toolName] = entry{render: fn, alwaysVisible: alwaysVisible}
}

func (r *Registry) AlwaysVisible(toolName string) bool {
	return r.entries[toolName].alwaysVisible
}

func (r *Registry) Has(toolName string) bool {
	_, ok := r.entries[toolName]
	return ok
}

// Render dispatches a part to its renderer. Unknown tools and source-url parts
// render nothing.
func (r *Registry) Render(part message.Part) *View {
	switch part.Type {
	case message.PartText:
		if strings.TrimSpace(part.Text) == "" {
			return nil
		}
		return &View{Kind: KindText, Text: part.Text}
	case message.PartReasoning:
		streaming := part.State == message.ReasoningStreaming
		if strings.TrimSpace(part.Text) == "" && !streaming {
			return nil
		}
		return &View{Kind: KindReasoning, Text: part.Text, Loading: streaming}
	case message.PartFile:
		name := part.Filename
		if name == "" {
			name = "file"
		}
		return &View{Kind: KindFile, Title: name, Detail: part.MediaType, LinkURL: part.URL}
	}
	name, ok := part.ToolName()
	if !ok {
		return nil
	}
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	return e.render(part)
}

// toolFailure reports why a tool part should render as a failure: an
// output-error or output-denied state, or an output carrying the error key.
func toolFailure(part message.Part) (string, bool) {
	switch part.ToolState {
	case message.StateOutputError:
		if part.ErrorText == "" {
			return "Tool execution failed", true
		}
		return part.ErrorText, true
	case message.StateOutputDenied:
		return "Tool execution was denied", true
	}
	if len(part.Output) == 0 {
		return "", false
	}
	result, err := commerce.DecodeResult[json.RawMessage](part.Output)
	if err != nil || !result.Failed() {
		return "", false
	}
	return result.Err, true
}

func failureView(kind string, part message.Part, prefix, reason string) *View {
	return &View{
		Kind:       kind,
		ToolCallID: part.ToolCallID,
		Failed:     true,
		Error:      prefix + reason,
	}
}

// decodeInput reads the tool input once the model has finished streaming it.
func decodeInput[T any](part message.Part) (T, bool) {
	var in T
	if part.ToolState == message.StateInputStreaming || len(part.Input) == 0 {
		return in, false
	}
	if err := json.Unmarshal(part.Input, &in); err != nil {
		return in, false
	}
	return in, true
}

// decodeOutput reads a successful output, only once the state is
// output-available.
func decodeOutput[T any](part message.Part) (T, bool) {
	var out T
	if part.ToolState != message.StateOutputAvailable || len(part.Output) == 0 {
		return out, false
	}
	if err := json.Unmarshal(part.Output, &out); err != nil {
		return out, false
	}
	return out, true
}
