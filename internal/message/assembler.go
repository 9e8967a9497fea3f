package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

const (
	EventText         = "text"
	EventReasoning    = "reasoning"
	EventReasoningEnd = "reasoning-end"
	EventFile         = "file"
	EventSourceURL    = "source-url"
	EventFinish       = "finish"
)

// Event is one fragment of an assistant turn as it arrives from the model
// stream. Tool events use the type "tool-<name>".
type Event struct {
	Type string `json:"type"`

	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Filename  string `json:"filename,omitempty"`
	SourceID  string `json:"sourceId,omitempty"`
	Title     string `json:"title,omitempty"`

	ToolCallID string          `json:"toolCallId,omitempty"`
	State      ToolState       `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

type ErrUnknownEvent struct {
	Type string
}

func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown stream event: %q", e.Type)
}

// Assembler reconciles a stream of events into a single assistant message.
type Assembler struct {
	mu       sync.Mutex
	msg      Message
	tracker  *Tracker
	finished bool
}

func NewAssembler(messageID string) *Assembler {
	return &Assembler{
		msg:     Message{ID: messageID, Role: RoleAssistant},
		tracker: NewTracker(),
	}
}

func (a *Assembler) Apply(event Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch event.Type {
	case EventText:
		if last := len(a.msg.Parts) - 1; last >= 0 && a.msg.Parts[last].Type == PartText {
			a.msg.Parts[last].Text += event.Text
			return nil
		}
		a.msg.Parts = append(a.msg.Parts, TextPart(event.Text))
	case EventReasoning:
		if last := len(a.msg.Parts) - 1; last >= 0 && a.msg.Parts[last].IsStreamingReasoning() {
			a.msg.Parts[last].Text += event.Text
			return nil
		}
		a.msg.Parts = append(a.msg.Parts, ReasoningPart(event.Text, true))
	case EventReasoningEnd:
		a.closeReasoning()
	case EventFile:
		a.msg.Parts = append(a.msg.Parts, FilePart(event.URL, event.MediaType, event.Filename))
	case EventSourceURL:
		a.msg.Parts = append(a.msg.Parts, SourceURLPart(event.SourceID, event.URL, event.Title))
	case EventFinish:
		a.closeReasoning()
		a.finished = true
	default:
		if !strings.HasPrefix(event.Type, toolPartPrefix) || event.ToolCallID == "" {
			return ErrUnknownEvent{Type: event.Type}
		}
		return a.applyTool(event)
	}
	return nil
}

func (a *Assembler) applyTool(event Event) error {
	if err := a.tracker.Advance(event.ToolCallID, event.State); err != nil {
		return err
	}
	idx := -1
	for i, part := range a.msg.Parts {
		if part.IsTool() && part.ToolCallID == event.ToolCallID {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.msg.Parts = append(a.msg.Parts, Part{Type: event.Type, ToolCallID: event.ToolCallID})
		idx = len(a.msg.Parts) - 1
	}
	part := &a.msg.Parts[idx]
	part.ToolState = event.State
	if len(event.Input) > 0 {
		part.Input = append(json.RawMessage(nil), event.Input...)
	}
	if len(event.Output) > 0 {
		part.Output = append(json.RawMessage(nil), event.Output...)
	}
	if event.ErrorText != "" {
		part.ErrorText = event.ErrorText
	}
	return nil
}

func (a *Assembler) closeReasoning() {
	for i := range a.msg.Parts {
		if a.msg.Parts[i].IsStreamingReasoning() {
			a.msg.Parts[i].State = ReasoningDone
		}
	}
}

// Streaming reports whether the turn is still receiving events.
func (a *Assembler) Streaming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.finished
}

func (a *Assembler) Snapshot() Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := Message{ID: a.msg.ID, Role: a.msg.Role, Parts: make([]Part, 0, len(a.msg.Parts))}
	for _, part := range a.msg.Parts {
		snapshot.Parts = append(snapshot.Parts, clonePart(part))
	}
	return snapshot
}
