// Package render turns message parts into bounded view models for the web
// client. Renderers are pure: the same part always yields the same view.
package render

import "encoding/json"

const (
	KindText        = "text"
	KindReasoning   = "reasoning"
	KindFile        = "file"
	KindDocument    = "document"
	KindSuggestions = "suggestions"
	KindWebSearch   = "web-search"
	KindWebFetch    = "web-fetch"
	KindBrowsing    = "browsing-step"
	KindProduct     = "product-card"
	KindAnalysis    = "analysis"
)

type View struct {
	Kind       string `json:"kind"`
	ToolCallID string `json:"toolCallId,omitempty"`
	Loading    bool   `json:"loading"`
	Skeleton   bool   `json:"skeleton,omitempty"`
	Failed     bool   `json:"failed,omitempty"`
	Error      string `json:"error,omitempty"`

	Title     string `json:"title,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Badge     string `json:"badge,omitempty"`
	Text      string `json:"text,omitempty"`
	IconURL   string `json:"iconUrl,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	LinkURL   string `json:"linkUrl,omitempty"`
	LinkLabel string `json:"linkLabel,omitempty"`

	Input     json.RawMessage `json:"input,omitempty"`
	Stats     []Stat          `json:"stats,omitempty"`
	Items     []Item          `json:"items,omitempty"`
	Table     *Table          `json:"table,omitempty"`
	Scorecard *Scorecard      `json:"scorecard,omitempty"`
	Decision  *Decision       `json:"decision,omitempty"`
}

type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Item struct {
	Title   string `json:"title"`
	Detail  string `json:"detail,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"iconUrl,omitempty"`
}

type Table struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

type Column struct {
	Name     string `json:"name"`
	Subtitle string `json:"subtitle,omitempty"`
	Winner   bool   `json:"winner,omitempty"`
}

type Row struct {
	Dimension string `json:"dimension"`
	Cells     []Cell `json:"cells"`
}

type Cell struct {
	Value string `json:"value"`
	Best  bool   `json:"best,omitempty"`
}

type Scorecard struct {
	Title           string          `json:"title"`
	Summary         string          `json:"summary"`
	OverallScore    int             `json:"overallScore"`
	Band            string          `json:"band"`
	Categories      []ScoreCategory `json:"categories"`
	Recommendations []string        `json:"recommendations,omitempty"`
}

type ScoreCategory struct {
	Name     string   `json:"name"`
	Score    int      `json:"score"`
	Band     string   `json:"band"`
	Findings []string `json:"findings,omitempty"`
}

type Decision struct {
	Recommendation  string   `json:"recommendation"`
	Confidence      int      `json:"confidence"`
	ConfidenceLabel string   `json:"confidenceLabel"`
	Reasoning       []string `json:"reasoning,omitempty"`
	SavingsEstimate string   `json:"savingsEstimate,omitempty"`
}

const (
	BandGood = "good"
	BandFair = "fair"
	BandPoor = "poor"
)

// ScoreBand maps a 0-100 score onto the scorecard colour bands.
func ScoreBand(score int) string {
	switch {
	case score >= 70:
		return BandGood
	case score >= 40:
		return BandFair
	default:
		return BandPoor
	}
}

func ConfidenceLabel(confidence int) string {
	switch {
	case confidence >= 80:
		return "High"
	case confidence >= 50:
		return "Medium"
	default:
		return "Low"
	}
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

func capItems[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
