package render

import (
	"strconv"

	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/message"
)

const (
	maxProductFeatures  = 4
	maxCategoryFindings = 5
	maxRecommendations  = 5

	purchaseConfidence = 75
)

var availabilityLabels = map[commerce.Availability]string{
	commerce.InStock:             "In stock",
	commerce.LowStock:            "Low stock",
	commerce.OutOfStock:          "Out of stock",
	commerce.AvailabilityUnknown: "Unknown",
}

func (r *Registry) browseSite(part message.Part) *View {
	in, hasInput := decodeInput[commerce.BrowseSiteInput](part)
	if reason, failed := toolFailure(part); failed {
		target := "site"
		if hasInput && in.URL != "" {
			target = in.URL
		}
		return failureView(KindBrowsing, part, "Failed to browse "+target+": ", reason)
	}

	data, ok := decodeOutput[commerce.BrowsingStepData](part)
	if !ok {
		data = commerce.BrowsingStepData{SiteName: "Loading...", Description: "Browsing..."}
		if hasInput && in.URL != "" {
			data.URL = in.URL
			data.SiteName = commerce.HostnameOr(in.URL)
		}
		if hasInput && in.Objective != "" {
			data.Description = in.Objective
		}
	}
	return r.browsingStep(part, data)
}

func (r *Registry) browsingStep(part message.Part, data commerce.BrowsingStepData) *View {
	loading := message.IsLoading(part.ToolState)
	view := &View{
		Kind:       KindBrowsing,
		ToolCallID: part.ToolCallID,
		Loading:    loading,
		IconURL:    data.Favicon,
		LinkURL:    data.URL,
	}
	if loading {
		site := data.SiteName
		if site == "" {
			site = commerce.HostnameOr(data.URL)
		}
		view.Skeleton = true
		view.Title = "Browsing " + site + "..."
		view.Detail = "Navigating and analysing page..."
		return view
	}
	view.Title = data.SiteName
	view.Detail = data.Description
	view.ImageURL = data.Screenshot
	if data.ProductsFound > 0 {
		view.Badge = strconv.Itoa(data.ProductsFound) + plural(data.ProductsFound, " product", " products")
	}
	return view
}

func (r *Registry) extractProduct(part message.Part) *View {
	if reason, failed := toolFailure(part); failed {
		return failureView(KindProduct, part, "Failed to extract product data: ", reason)
	}
	data, ok := decodeOutput[commerce.ExtractedProduct](part)
	if !ok {
		data = commerce.ExtractedProduct{ProductData: commerce.ProductData{
			Name:         "Loading...",
			Price:        0,
			Currency:     commerce.DefaultCurrency,
			Availability: commerce.AvailabilityUnknown,
			Features:     []string{},
		}}
	}
	return r.productCard(part, data.ProductData)
}

// productCard renders one product. While the tool is loading only the
// skeleton is shown.
func (r *Registry) productCard(part message.Part, data commerce.ProductData) *View {
	if message.IsLoading(part.ToolState) {
		return &View{Kind: KindProduct, ToolCallID: part.ToolCallID, Loading: true, Skeleton: true}
	}
	view := &View{
		Kind:       KindProduct,
		ToolCallID: part.ToolCallID,
		Title:      data.Name,
		Detail:     FormatPrice(data.Price, data.Currency),
		ImageURL:   data.ImageURL,
		LinkURL:    data.SourceURL,
		LinkLabel:  "View on " + data.Retailer,
	}
	label, ok := availabilityLabels[data.Availability]
	if !ok {
		label = availabilityLabels[commerce.AvailabilityUnknown]
	}
	view.Badge = label
	if host, ok := commerce.Hostname(data.SourceURL); ok {
		view.IconURL = commerce.FaviconURL(r.favicon, host)
	}
	if data.Rating != nil {
		view.Stats = append(view.Stats, Stat{Label: "Rating", Value: strconv.FormatFloat(*data.Rating, 'f', 1, 64)})
	}
	if data.ReviewCount != nil {
		view.Stats = append(view.Stats, Stat{Label: "Reviews", Value: "(" + FormatCount(*data.ReviewCount) + " reviews)"})
	}
	view.Stats = append(view.Stats, Stat{Label: "Availability", Value: label})
	for _, feature := range capItems(data.Features, maxProductFeatures) {
		view.Items = append(view.Items, Item{Title: feature})
	}
	if extra := len(data.Features) - maxProductFeatures; extra > 0 {
		view.Items = append(view.Items, Item{Title: "+" + strconv.Itoa(extra) + " more"})
	}
	return view
}

func (r *Registry) analyseCommerce(part message.Part) *View {
	if reason, failed := toolFailure(part); failed {
		return failureView(KindAnalysis, part, "Failed to analyse commerce data: ", reason)
	}
	analysis, ok := decodeOutput[commerce.Analysis](part)
	if !ok {
		return &View{
			Kind:       KindAnalysis,
			ToolCallID: part.ToolCallID,
			Loading:    message.IsLoading(part.ToolState),
			Skeleton:   true,
			Title:      "Analysing commerce data...",
		}
	}
	switch {
	case analysis.Comparison != nil:
		return comparisonView(part, analysis.Comparison)
	case analysis.Audit != nil:
		return auditView(part, analysis.Audit)
	default:
		return nil
	}
}

func comparisonView(part message.Part, c *commerce.ComparisonResult) *View {
	table := &Table{}
	for i, p := range c.Products {
		table.Columns = append(table.Columns, Column{Name: p.Name, Subtitle: p.Retailer, Winner: i == c.Winner.Index})
	}
	for _, dim := range c.Dimensions {
		row := Row{Dimension: dim.Name}
		for i, value := range dim.Values {
			row.Cells = append(row.Cells, Cell{Value: value, Best: dim.WinnerID != nil && *dim.WinnerID == i})
		}
		table.Rows = append(table.Rows, row)
	}

	view := &View{Kind: KindAnalysis, ToolCallID: part.ToolCallID, Title: "Product comparison", Table: table}
	if c.Winner.Name != "" {
		decision := &Decision{
			Recommendation:  "Go with " + c.Winner.Name,
			Confidence:      purchaseConfidence,
			ConfidenceLabel: ConfidenceLabel(purchaseConfidence),
			SavingsEstimate: c.SavingsEstimate,
		}
		if c.Winner.Reasoning != "" {
			decision.Reasoning = []string{c.Winner.Reasoning}
		}
		view.Decision = decision
	}
	return view
}

func auditView(part message.Part, a *commerce.AuditResult) *View {
	n := len(a.Categories)
	card := &Scorecard{
		Title:           "Commerce Readiness",
		Summary:         "Overall score based on " + strconv.Itoa(n) + " assessment" + plural(n, " category", " categories"),
		OverallScore:    a.OverallScore,
		Band:            ScoreBand(a.OverallScore),
		Recommendations: capItems(a.Recommendations, maxRecommendations),
	}
	for _, c := range a.Categories {
		card.Categories = append(card.Categories, ScoreCategory{
			Name:     c.Name,
			Score:    c.Score,
			Band:     ScoreBand(c.Score),
			Findings: capItems(c.Findings, maxCategoryFindings),
		})
	}
	return &View{Kind: KindAnalysis, ToolCallID: part.ToolCallID, Title: card.Title, Scorecard: card}
}
