package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/knowsee/knowsee/internal/llm"
)

const (
	errTooFewProducts = "At least 2 products are required for a comparison."
	noAuditFindings   = "No specific findings provided — assess based on general commerce best practices."
)

type AuditFinding struct {
	Category     string `json:"category" jsonschema:"Audit category name"`
	Observations string `json:"observations" jsonschema:"Key observations for this category"`
}

type AnalyseCommerceInput struct {
	Type          string         `json:"type" jsonschema:"\"comparison\" for side-by-side product analysis, \"audit\" for brand readiness scorecard"`
	Products      []ProductData  `json:"products,omitempty" jsonschema:"Products to compare (required for comparison type)"`
	AuditURL      string         `json:"auditUrl,omitempty" jsonschema:"Brand URL that was audited (required for audit type)"`
	AuditFindings []AuditFinding `json:"auditFindings,omitempty" jsonschema:"Structured findings from browsing the brand site"`
}

// AnalyseCommerce turns already gathered data into a comparison table or an
// audit scorecard. It never opens a browser.
func (t *Tools) AnalyseCommerce(ctx context.Context, in AnalyseCommerceInput) Result[Analysis] {
	if in.Type == AnalysisComparison && len(in.Products) < 2 {
		return Failure[Analysis](errTooFewProducts)
	}
	return boundary(t, ToolAnalyseCommerce, in.AuditURL, "Unknown analysis error", func() (Analysis, error) {
		switch in.Type {
		case AnalysisComparison:
			comparison, err := t.compare(ctx, in.Products)
			if err != nil {
				return Analysis{}, err
			}
			return Analysis{Comparison: &comparison}, nil
		case AnalysisAudit:
			audit, err := t.audit(ctx, in.AuditURL, in.AuditFindings)
			if err != nil {
				return Analysis{}, err
			}
			return Analysis{Audit: &audit}, nil
		default:
			return Analysis{}, fmt.Errorf("unknown analysis type %q: expected comparison or audit", in.Type)
		}
	})
}

func (t *Tools) compare(ctx context.Context, products []ProductData) (ComparisonResult, error) {
	listing, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return ComparisonResult{}, err
	}
	prompt := `Compare these products and produce a structured comparison result.

Products:
` + string(listing) + `

Instructions:
- Create meaningful comparison dimensions (Price, Rating, Availability, Features, Value for Money)
- Identify a winner for each dimension
- Choose an overall winner with clear reasoning
- If applicable, estimate savings vs the next-best option
- Be objective and data-driven`

	raw, err := t.generator.GenerateObject(ctx, llm.ObjectRequest{
		Model:       t.cfg.Model,
		Name:        "comparison_result",
		Description: "Side-by-side product comparison with an overall recommendation",
		Schema:      comparisonSchema,
		Prompt:      prompt,
	})
	if err != nil {
		return ComparisonResult{}, err
	}
	result, err := llm.DecodeObject[ComparisonResult]("comparison", raw, comparisonSchema)
	if err != nil {
		return ComparisonResult{}, err
	}
	if result.Winner.Index < 0 || result.Winner.Index >= len(result.Products) {
		return ComparisonResult{}, errors.New("comparison winner index is out of range")
	}
	result.Type = AnalysisComparison
	return result, nil
}

func (t *Tools) audit(ctx context.Context, auditURL string, findings []AuditFinding) (AuditResult, error) {
	target := auditURL
	if target == "" {
		target = "the brand"
	}
	prompt := `Produce a commerce readiness audit scorecard for ` + target + `.

Findings from site review:
` + formatFindings(findings) + `

Instructions:
- Score overall readiness 0–100
- Assess categories: Product Discovery, Mobile UX, Checkout Flow, Search Quality, Agentic Readiness
- Provide specific findings for each category
- Give actionable recommendations for improvement
- Be fair but critical — this is for a digital agency client`

	raw, err := t.generator.GenerateObject(ctx, llm.ObjectRequest{
		Model:       t.cfg.Model,
		Name:        "audit_result",
		Description: "Commerce readiness audit scorecard",
		Schema:      auditSchema,
		Prompt:      prompt,
	})
	if err != nil {
		return AuditResult{}, err
	}
	result, err := llm.DecodeObject[AuditResult]("audit", raw, auditSchema)
	if err != nil {
		return AuditResult{}, err
	}
	result.Type = AnalysisAudit
	return result, nil
}

func formatFindings(findings []AuditFinding) string {
	if len(findings) == 0 {
		return noAuditFindings
	}
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, f.Category+": "+f.Observations)
	}
	return strings.Join(lines, "\n")
}
