package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentsVisible = VisibilityFunc(func(name string) bool {
	return name == "createDocument"
})

func TestNormalize_MergesAdjacentText(t *testing.T) {
	parts := []Part{TextPart("A"), TextPart("B"), TextPart("C")}

	normalized, visible := Normalize(parts, documentsVisible)

	require.Len(t, normalized, 1)
	assert.Equal(t, "ABC", normalized[0].Text)
	assert.True(t, visible)
}

func TestNormalize_DropsSourceURLAndMergesAcrossIt(t *testing.T) {
	parts := []Part{
		TextPart("Hello "),
		SourceURLPart("s1", "https://example.com", "Example"),
		TextPart("world"),
	}

	normalized, visible := Normalize(parts, documentsVisible)

	require.Len(t, normalized, 1)
	assert.Equal(t, PartText, normalized[0].Type)
	assert.Equal(t, "Hello world", normalized[0].Text)
	assert.True(t, visible)
}

func TestNormalize_KeepsNonTextBoundaries(t *testing.T) {
	parts := []Part{
		TextPart("before"),
		ToolPart("web_search", "call-1", StateOutputAvailable),
		TextPart("after"),
		FilePart("https://cdn.example.com/a.png", "image/png", "a.png"),
	}

	normalized, _ := Normalize(parts, documentsVisible)

	require.Len(t, normalized, 4)
	assert.Equal(t, "before", normalized[0].Text)
	assert.Equal(t, "tool-web_search", normalized[1].Type)
	assert.Equal(t, "after", normalized[2].Text)
	assert.Equal(t, PartFile, normalized[3].Type)
}

func TestNormalize_Idempotent(t *testing.T) {
	parts := []Part{
		ReasoningPart("thinking", false),
		TextPart("a"),
		SourceURLPart("s1", "https://example.com", ""),
		TextPart("b"),
		ToolPart("createDocument", "call-1", StateInputAvailable),
		TextPart("c"),
		TextPart("d"),
	}

	once, visibleOnce := Normalize(parts, documentsVisible)
	twice, visibleTwice := Normalize(once, documentsVisible)

	assert.Equal(t, once, twice)
	assert.Equal(t, visibleOnce, visibleTwice)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	parts := []Part{TextPart("A"), TextPart("B")}

	Normalize(parts, nil)

	assert.Equal(t, "A", parts[0].Text)
	assert.Equal(t, "B", parts[1].Text)
}

func TestNormalize_Visibility(t *testing.T) {
	tests := []struct {
		name  string
		parts []Part
		want  bool
	}{
		{name: "empty", parts: nil, want: false},
		{name: "blank text", parts: []Part{TextPart("  \n")}, want: false},
		{name: "text", parts: []Part{TextPart("hi")}, want: true},
		{name: "blank finished reasoning", parts: []Part{ReasoningPart(" ", false)}, want: false},
		{name: "blank streaming reasoning", parts: []Part{ReasoningPart("", true)}, want: true},
		{name: "reasoning with text", parts: []Part{ReasoningPart("hmm", false)}, want: true},
		{name: "capable tool", parts: []Part{ToolPart("createDocument", "c1", StateInputStreaming)}, want: true},
		{name: "other tool", parts: []Part{ToolPart("web_search", "c1", StateOutputAvailable)}, want: false},
		{name: "only sources", parts: []Part{SourceURLPart("s", "https://a.b", "")}, want: false},
		{name: "file only", parts: []Part{FilePart("https://a.b/x.pdf", "application/pdf", "x.pdf")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, visible := Normalize(tt.parts, documentsVisible)
			assert.Equal(t, tt.want, visible)
		})
	}
}

func TestNormalize_NilVisibilityTreatsToolsAsHidden(t *testing.T) {
	_, visible := Normalize([]Part{ToolPart("createDocument", "c1", StateOutputAvailable)}, nil)
	assert.False(t, visible)
}
