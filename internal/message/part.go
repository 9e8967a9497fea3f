package message

import (
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	PartText      = "text"
	PartReasoning = "reasoning"
	PartFile      = "file"
	PartSourceURL = "source-url"

	toolPartPrefix = "tool-"
)

const (
	ReasoningStreaming = "streaming"
	ReasoningDone      = "done"
)

type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is one fragment of a message. Type selects the variant; only the fields
// belonging to that variant are populated.
type Part struct {
	Type string `json:"type"`

	// text, reasoning
	Text  string `json:"text,omitempty"`
	State string `json:"state,omitempty"`

	// file
	URL       string `json:"url,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// source-url
	SourceID string `json:"sourceId,omitempty"`
	Title    string `json:"title,omitempty"`

	// tool-<name>
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolState  ToolState       `json:"toolState,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

func ReasoningPart(text string, streaming bool) Part {
	state := ReasoningDone
	if streaming {
		state = ReasoningStreaming
	}
	return Part{Type: PartReasoning, Text: text, State: state}
}

func SourceURLPart(sourceID, url, title string) Part {
	return Part{Type: PartSourceURL, SourceID: sourceID, URL: url, Title: title}
}

func FilePart(url, mediaType, filename string) Part {
	return Part{Type: PartFile, URL: url, MediaType: mediaType, Filename: filename}
}

func ToolPart(toolName, toolCallID string, state ToolState) Part {
	return Part{Type: ToolPartType(toolName), ToolCallID: toolCallID, ToolState: state}
}

// ToolPartType returns the part type tag for a tool name.
func ToolPartType(toolName string) string {
	return toolPartPrefix + toolName
}

// ToolName reports the tool name for tool-call parts.
func (p Part) ToolName() (string, bool) {
	if !strings.HasPrefix(p.Type, toolPartPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(p.Type, toolPartPrefix)
	return name, name != ""
}

func (p Part) IsTool() bool {
	_, ok := p.ToolName()
	return ok
}

func (p Part) IsStreamingReasoning() bool {
	return p.Type == PartReasoning && p.State == ReasoningStreaming
}

func clonePart(p Part) Part {
	cloned := p
	if p.Input != nil {
		cloned.Input = append(json.RawMessage(nil), p.Input...)
	}
	if p.Output != nil {
		cloned.Output = append(json.RawMessage(nil), p.Output...)
	}
	return cloned
}
