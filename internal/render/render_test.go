package render

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/message"
)

func newRegistry() *Registry {
	return NewRegistry(Config{FaviconService: commerce.DefaultFaviconService})
}

func toolPart(name string, state message.ToolState, input, output string) message.Part {
	part := message.ToolPart(name, "call-1", state)
	if input != "" {
		part.Input = json.RawMessage(input)
	}
	if output != "" {
		part.Output = json.RawMessage(output)
	}
	return part
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "£10.00", FormatPrice(10, "GBP"))
	assert.Equal(t, "£1,299.50", FormatPrice(1299.5, "gbp"))
	assert.Equal(t, "£0.00", FormatPrice(0, ""))
	assert.Equal(t, "ZZZ 10.00", FormatPrice(10, "ZZZ"))
	assert.Equal(t, "1,204", FormatCount(1204))
}

func TestBands(t *testing.T) {
	assert.Equal(t, BandGood, ScoreBand(70))
	assert.Equal(t, BandFair, ScoreBand(69))
	assert.Equal(t, BandFair, ScoreBand(40))
	assert.Equal(t, BandPoor, ScoreBand(39))
	assert.Equal(t, "High", ConfidenceLabel(80))
	assert.Equal(t, "Medium", ConfidenceLabel(75))
	assert.Equal(t, "Low", ConfidenceLabel(49))
}

func TestAlwaysVisible(t *testing.T) {
	r := newRegistry()

	for _, name := range []string{"createDocument", "updateDocument", "requestSuggestions", "browse_site", "extract_product", "analyse_commerce"} {
		assert.True(t, r.AlwaysVisible(name), name)
	}
	assert.False(t, r.AlwaysVisible("web_search"))
	assert.False(t, r.AlwaysVisible("web_fetch"))
	assert.False(t, r.AlwaysVisible("checkout"))
	assert.True(t, r.Has("web_fetch"))
}

func TestRender_TextAndReasoning(t *testing.T) {
	r := newRegistry()

	assert.Nil(t, r.Render(message.TextPart("  ")))
	assert.Nil(t, r.Render(message.ReasoningPart("", false)))

	view := r.Render(message.ReasoningPart("", true))
	require.NotNil(t, view)
	assert.True(t, view.Loading)

	view = r.Render(message.TextPart("hello"))
	require.NotNil(t, view)
	assert.Equal(t, KindText, view.Kind)
	assert.Equal(t, "hello", view.Text)
}

func TestRender_UnknownToolRendersNothing(t *testing.T) {
	r := newRegistry()

	assert.Nil(t, r.Render(toolPart("checkout", message.StateOutputAvailable, "", `{}`)))
}

func TestProductCard_Skeleton(t *testing.T) {
	r := newRegistry()

	view := r.Render(toolPart(commerce.ToolExtractProduct, message.StateInputAvailable, `{"url":"https://shop.example.com/p"}`, ""))

	require.NotNil(t, view)
	assert.Equal(t, KindProduct, view.Kind)
	assert.True(t, view.Skeleton)
	assert.True(t, view.Loading)
	assert.Empty(t, view.Title)
}

func TestProductCard_Loaded(t *testing.T) {
	r := newRegistry()
	output := `{
		"name": "Trail Runner",
		"price": 89.99,
		"currency": "GBP",
		"rating": 4.56,
		"reviewCount": 1204,
		"availability": "low-stock",
		"sourceUrl": "https://www.shop.example.com/p/1",
		"retailer": "shop.example.com",
		"features": ["a", "b", "c", "d", "e", "f"]
	}`

	view := r.Render(toolPart(commerce.ToolExtractProduct, message.StateOutputAvailable, "", output))

	require.NotNil(t, view)
	assert.False(t, view.Skeleton)
	assert.Equal(t, "Trail Runner", view.Title)
	assert.Equal(t, "£89.99", view.Detail)
	assert.Equal(t, "Low stock", view.Badge)
	assert.Equal(t, "View on shop.example.com", view.LinkLabel)
	assert.Equal(t, "https://www.google.com/s2/favicons?domain=www.shop.example.com&sz=32", view.IconURL)
	assert.Equal(t, []Stat{
		{Label: "Rating", Value: "4.6"},
		{Label: "Reviews", Value: "(1,204 reviews)"},
		{Label: "Availability", Value: "Low stock"},
	}, view.Stats)
	require.Len(t, view.Items, 5)
	assert.Equal(t, "+2 more", view.Items[4].Title)
}

func TestProductCard_FailureAtOutputAvailable(t *testing.T) {
	r := newRegistry()

	view := r.Render(toolPart(commerce.ToolExtractProduct, message.StateOutputAvailable, "", `{"error":"navigation timed out"}`))

	require.NotNil(t, view)
	assert.True(t, view.Failed)
	assert.Equal(t, "Failed to extract product data: navigation timed out", view.Error)
}

func TestBrowseSite_Placeholder(t *testing.T) {
	r := newRegistry()

	view := r.Render(toolPart(commerce.ToolBrowseSite, message.StateInputAvailable, `{"url":"https://www.argos.co.uk/search","objective":"find kettles"}`, ""))

	require.NotNil(t, view)
	assert.True(t, view.Skeleton)
	assert.Equal(t, "Browsing www.argos.co.uk...", view.Title)
	assert.Equal(t, "Navigating and analysing page...", view.Detail)

	view = r.Render(toolPart(commerce.ToolBrowseSite, message.StateInputStreaming, `{"url":"https://www.ar`, ""))
	require.NotNil(t, view)
	assert.True(t, view.Skeleton)
	assert.Empty(t, view.LinkURL)
}

func TestBrowseSite_Done(t *testing.T) {
	r := newRegistry()
	output := `{"url":"https://argos.co.uk","siteName":"argos.co.uk","favicon":"https://icons/argos","screenshot":"data:image/jpeg;base64,AAA","description":"Kettles listed","productsFound":1}`

	view := r.Render(toolPart(commerce.ToolBrowseSite, message.StateOutputAvailable, `{"url":"https://argos.co.uk"}`, output))

	require.NotNil(t, view)
	assert.False(t, view.Loading)
	assert.Equal(t, "argos.co.uk", view.Title)
	assert.Equal(t, "Kettles listed", view.Detail)
	assert.Equal(t, "1 product", view.Badge)
	assert.Equal(t, "data:image/jpeg;base64,AAA", view.ImageURL)
	assert.Equal(t, "https://icons/argos", view.IconURL)
}

func TestBrowseSite_Failure(t *testing.T) {
	r := newRegistry()
	part := toolPart(commerce.ToolBrowseSite, message.StateOutputError, `{"url":"https://argos.co.uk"}`, "")
	part.ErrorText = "boom"

	view := r.Render(part)

	require.NotNil(t, view)
	assert.Equal(t, "Failed to browse https://argos.co.uk: boom", view.Error)
}

func TestAnalyseCommerce_Comparison(t *testing.T) {
	r := newRegistry()
	output := `{
		"type": "comparison",
		"products": [
			{"name": "A", "price": 10, "currency": "GBP", "availability": "in-stock", "sourceUrl": "https://a.example", "retailer": "a.example", "features": []},
			{"name": "B", "price": 12, "currency": "GBP", "availability": "in-stock", "sourceUrl": "https://b.example", "retailer": "b.example", "features": []}
		],
		"dimensions": [{"name": "Price", "values": ["£10", "£12"], "winnerId": 0}],
		"winner": {"index": 0, "name": "A", "reasoning": "Cheaper"},
		"savingsEstimate": "£2"
	}`

	view := r.Render(toolPart(commerce.ToolAnalyseCommerce, message.StateOutputAvailable, "", output))

	require.NotNil(t, view)
	require.NotNil(t, view.Table)
	assert.True(t, view.Table.Columns[0].Winner)
	assert.False(t, view.Table.Columns[1].Winner)
	assert.True(t, view.Table.Rows[0].Cells[0].Best)
	require.NotNil(t, view.Decision)
	assert.Equal(t, "Go with A", view.Decision.Recommendation)
	assert.Equal(t, "Medium", view.Decision.ConfidenceLabel)
	assert.Equal(t, []string{"Cheaper"}, view.Decision.Reasoning)
	assert.Equal(t, "£2", view.Decision.SavingsEstimate)
}

func TestAnalyseCommerce_Audit(t *testing.T) {
	r := newRegistry()
	output := `{"type":"audit","overallScore":65,"categories":[{"name":"Checkout","score":30,"findings":["no guest checkout"]}],"recommendations":["add guest checkout"]}`

	view := r.Render(toolPart(commerce.ToolAnalyseCommerce, message.StateOutputAvailable, "", output))

	require.NotNil(t, view)
	require.NotNil(t, view.Scorecard)
	assert.Equal(t, "Commerce Readiness", view.Scorecard.Title)
	assert.Equal(t, "Overall score based on 1 assessment category", view.Scorecard.Summary)
	assert.Equal(t, BandFair, view.Scorecard.Band)
	assert.Equal(t, BandPoor, view.Scorecard.Categories[0].Band)
}

func TestAnalyseCommerce_LoadingAndUnknownType(t *testing.T) {
	r := newRegistry()

	view := r.Render(toolPart(commerce.ToolAnalyseCommerce, message.StateInputAvailable, `{"type":"audit"}`, ""))
	require.NotNil(t, view)
	assert.True(t, view.Skeleton)
	assert.Equal(t, "Analysing commerce data...", view.Title)

	assert.Nil(t, r.Render(toolPart(commerce.ToolAnalyseCommerce, message.StateOutputAvailable, "", `{"type":"forecast"}`)))
}

func TestWebSearch_BadgeOnlyWhenAvailable(t *testing.T) {
	r := newRegistry()
	output := `[{"url":"https://www.bbc.co.uk/news","title":null},{"url":"not a url","title":"Raw"}]`

	view := r.Render(toolPart("web_search", message.StateOutputStreaming, `{"query":"uk news"}`, output))
	require.NotNil(t, view)
	assert.Equal(t, "uk news", view.Title)
	assert.Empty(t, view.Badge)
	assert.Empty(t, view.Items)

	view = r.Render(toolPart("web_search", message.StateOutputAvailable, `{"query":"uk news"}`, output))
	require.NotNil(t, view)
	assert.Equal(t, "2 results", view.Badge)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "www.bbc.co.uk", view.Items[0].Title)
	assert.Equal(t, "Raw", view.Items[1].Title)
}

func TestWebFetch(t *testing.T) {
	r := newRegistry()

	view := r.Render(toolPart("web_fetch", message.StateInputAvailable, `{"url":"https://www.gov.uk/x"}`, ""))
	require.NotNil(t, view)
	assert.Equal(t, "Fetching www.gov.uk...", view.Title)

	view = r.Render(toolPart("web_fetch", message.StateOutputAvailable, `{"url":"https://www.gov.uk/x"}`, `{"content":"..."}`))
	assert.Equal(t, "Fetched www.gov.uk", view.Title)
}

func TestDocument(t *testing.T) {
	r := newRegistry()

	view := r.Render(toolPart("createDocument", message.StateInputAvailable, `{"title":"Plan","kind":"text"}`, ""))
	require.NotNil(t, view)
	assert.True(t, view.Skeleton)
	assert.Equal(t, "Plan", view.Title)

	view = r.Render(toolPart("updateDocument", message.StateOutputAvailable, "", `{"error":"not found"}`))
	require.NotNil(t, view)
	assert.Equal(t, "Error updating document: not found", view.Error)
}

func TestRequestSuggestions(t *testing.T) {
	r := newRegistry()

	view := r.Render(toolPart("requestSuggestions", message.StateOutputAvailable, "", `{"id":"d1","title":"Essay","kind":"text"}`))
	require.NotNil(t, view)
	assert.Equal(t, `Added suggestions to "Essay"`, view.Detail)

	view = r.Render(toolPart("requestSuggestions", message.StateOutputAvailable, "", `{"error":"denied"}`))
	assert.Equal(t, "Error: denied", view.Error)
}

func TestRenderMessage_Thinking(t *testing.T) {
	r := newRegistry()
	msg := message.Message{
		ID:   "m1",
		Role: message.RoleAssistant,
		Parts: []message.Part{
			message.SourceURLPart("s1", "https://example.com", ""),
			toolPart("web_search", message.StateInputAvailable, `{"query":"q"}`, ""),
		},
	}

	view := r.RenderMessage(msg, true)
	assert.True(t, view.Thinking)
	assert.False(t, view.HasVisibleContent)

	msg.Parts = append(msg.Parts, message.TextPart("Answer"), message.FilePart("https://cdn/a.png", "image/png", "a.png"))
	view = r.RenderMessage(msg, true)
	assert.False(t, view.Thinking)
	assert.True(t, view.HasVisibleContent)
	require.Len(t, view.Attachments, 1)
	assert.Equal(t, "a.png", view.Attachments[0].Title)
	require.Len(t, view.Parts, 2)
	assert.Equal(t, KindText, view.Parts[1].Kind)
}
