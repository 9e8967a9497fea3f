package message

import "strings"

// Visibility reports whether a tool always produces visible output once it
// appears in a message.
type Visibility interface {
	AlwaysVisible(toolName string) bool
}

// VisibilityFunc adapts a plain function to Visibility.
type VisibilityFunc func(toolName string) bool

func (f VisibilityFunc) AlwaysVisible(toolName string) bool {
	return f(toolName)
}

// Normalize drops source-url parts and merges runs of text parts. Adjacency is
// judged after source-url removal, so citations interleaved with text do not
// split it. The input slice is not modified.
func Normalize(parts []Part, visibility Visibility) ([]Part, bool) {
	normalized := make([]Part, 0, len(parts))
	for _, part := range parts {
		if part.Type == PartSourceURL {
			continue
		}
		if last := len(normalized) - 1; part.Type == PartText && last >= 0 && normalized[last].Type == PartText {
			normalized[last].Text += part.Text
			continue
		}
		normalized = append(normalized, clonePart(part))
	}

	visible := false
	for _, part := range normalized {
		if isVisible(part, visibility) {
			visible = true
			break
		}
	}
	return normalized, visible
}

func isVisible(part Part, visibility Visibility) bool {
	switch part.Type {
	case PartText:
		return strings.TrimSpace(part.Text) != ""
	case PartReasoning:
		return strings.TrimSpace(part.Text) != "" || part.State == ReasoningStreaming
	}
	name, ok := part.ToolName()
	if !ok || visibility == nil {
		return false
	}
	return visibility.AlwaysVisible(name)
}
