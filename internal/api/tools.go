package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/knowsee/knowsee/internal/auth"
	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/instructions"
	"github.com/knowsee/knowsee/internal/message"
)

// Request geolocation headers set by the edge in front of the web app.
const (
	headerLatitude  = "X-Vercel-IP-Latitude"
	headerLongitude = "X-Vercel-IP-Longitude"
	headerCity      = "X-Vercel-IP-City"
	headerCountry   = "X-Vercel-IP-Country"
)

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"session": auth.FromContext(r.Context())})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.catalogue)
}

type toolEntry struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	InputSchema   any    `json:"inputSchema,omitempty"`
	AlwaysVisible bool   `json:"alwaysVisible"`
}

type toolsResponse struct {
	Mode  instructions.Mode `json:"mode"`
	Model string            `json:"model"`
	Tools []toolEntry       `json:"tools"`
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	mode := instructions.ParseMode(r.URL.Query().Get("mode"))
	model := s.catalogue.Resolve(r.URL.Query().Get("model"))

	specs := map[string]commerce.ToolSpec{}
	for _, spec := range commerce.Specs() {
		specs[spec.Name] = spec
	}
	resp := toolsResponse{Mode: mode, Model: model, Tools: []toolEntry{}}
	for _, name := range instructions.ToolNames(mode, model) {
		entry := toolEntry{Name: name, AlwaysVisible: s.registry.AlwaysVisible(name)}
		if spec, ok := specs[name]; ok {
			entry.Description = spec.Description
			entry.InputSchema = spec.InputSchema
		}
		resp.Tools = append(resp.Tools, entry)
	}
	writeJSON(w, resp)
}

func (s *Server) systemPrompt(w http.ResponseWriter, r *http.Request) {
	mode := instructions.ParseMode(r.URL.Query().Get("mode"))
	model := s.catalogue.Resolve(r.URL.Query().Get("model"))
	prompt := instructions.SystemPrompt(instructions.Options{
		Mode:     mode,
		Model:    model,
		Hints:    hintsFrom(r.Header),
		Now:      s.now(),
		Identity: s.identity,
	})
	writeJSON(w, map[string]any{
		"mode":   mode,
		"model":  model,
		"prompt": prompt,
		"tools":  instructions.ToolNames(mode, model),
	})
}

func hintsFrom(headers http.Header) instructions.RequestHints {
	return instructions.RequestHints{
		Latitude:  headers.Get(headerLatitude),
		Longitude: headers.Get(headerLongitude),
		City:      headers.Get(headerCity),
		Country:   headers.Get(headerCountry),
	}
}

type executeToolRequest struct {
	MessageID  string          `json:"messageId"`
	ToolCallID string          `json:"toolCallId"`
	Input      json.RawMessage `json:"input"`
}

type toolCallResponse struct {
	ToolCallID string          `json:"toolCallId"`
	Name       string          `json:"name"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// executeTool runs one commerce tool and re-enters the call into the
// message stream: input-available first, then output-available or
// output-error.
func (s *Server) executeTool(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")
	if !commerce.IsTool(name) {
		writeError(w, http.StatusNotFound, commerce.ErrUnknownTool{Name: name}.Error())
		return
	}
	if s.tools == nil {
		writeError(w, http.StatusServiceUnavailable, "commerce tools are not configured")
		return
	}
	var req executeToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	messageID := strings.TrimSpace(req.MessageID)
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "messageId is required")
		return
	}
	call := commerce.Call{ID: toolCallID(req.ToolCallID), Name: name, Input: req.Input}
	if _, err := s.apply(r.Context(), chatID, messageID, inputEvent(call)); err != nil {
		writeError(w, applyStatus(err), err.Error())
		return
	}

	output, err := s.tools.Execute(r.Context(), name, req.Input)
	result := commerce.CallResult{ID: call.ID, Name: name, Output: output, Err: err}
	if _, err := s.apply(r.Context(), chatID, messageID, resultEvent(result)); err != nil {
		writeError(w, applyStatus(err), err.Error())
		return
	}
	status := http.StatusOK
	if result.Err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSONStatus(w, callResponse(result), status)
}

type executeToolsRequest struct {
	MessageID string          `json:"messageId"`
	Calls     []commerce.Call `json:"calls"`
}

// executeTools runs several commerce calls concurrently. Every call enters
// the stream as input-available before any of them starts.
func (s *Server) executeTools(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if s.tools == nil {
		writeError(w, http.StatusServiceUnavailable, "commerce tools are not configured")
		return
	}
	var req executeToolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	messageID := strings.TrimSpace(req.MessageID)
	if messageID == "" {
		writeError(w, http.StatusBadRequest, "messageId is required")
		return
	}
	if len(req.Calls) == 0 {
		writeError(w, http.StatusBadRequest, "calls are required")
		return
	}
	for i := range req.Calls {
		if !commerce.IsTool(req.Calls[i].Name) {
			writeError(w, http.StatusNotFound, commerce.ErrUnknownTool{Name: req.Calls[i].Name}.Error())
			return
		}
		req.Calls[i].ID = toolCallID(req.Calls[i].ID)
	}
	for _, call := range req.Calls {
		if _, err := s.apply(r.Context(), chatID, messageID, inputEvent(call)); err != nil {
			writeError(w, applyStatus(err), err.Error())
			return
		}
	}

	results := s.tools.ExecuteParallel(r.Context(), req.Calls)
	resp := make([]toolCallResponse, 0, len(results))
	for _, result := range results {
		if _, err := s.apply(r.Context(), chatID, messageID, resultEvent(result)); err != nil {
			s.logger.Warn("tool result rejected", "chat_id", chatID, "tool_call_id", result.ID, "error", err)
		}
		resp = append(resp, callResponse(result))
	}
	writeJSON(w, map[string]any{"results": resp})
}

func toolCallID(raw string) string {
	if id := strings.TrimSpace(raw); id != "" {
		return id
	}
	return "call_" + uuid.NewString()
}

func inputEvent(call commerce.Call) message.Event {
	return message.Event{
		Type:       message.ToolPartType(call.Name),
		ToolCallID: call.ID,
		State:      message.StateInputAvailable,
		Input:      call.Input,
	}
}

func resultEvent(result commerce.CallResult) message.Event {
	event := message.Event{Type: message.ToolPartType(result.Name), ToolCallID: result.ID}
	if result.Err != nil {
		event.State = message.StateOutputError
		event.ErrorText = result.Err.Error()
		return event
	}
	event.State = message.StateOutputAvailable
	event.Output = result.Output
	return event
}

func callResponse(result commerce.CallResult) toolCallResponse {
	resp := toolCallResponse{ToolCallID: result.ID, Name: result.Name, Output: result.Output}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return resp
}
