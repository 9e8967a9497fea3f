package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/knowsee/knowsee/internal/llm"
)

const (
	ToolBrowseSite      = "browse_site"
	ToolExtractProduct  = "extract_product"
	ToolAnalyseCommerce = "analyse_commerce"

	maxParallelCalls = 4
)

type ErrUnknownTool struct {
	Name string
}

func (e ErrUnknownTool) Error() string {
	return fmt.Sprintf("unknown commerce tool: %s", e.Name)
}

// ToolSpec describes a tool to the model and to the front end.
type ToolSpec struct {
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	InputSchema   *jsonschema.Schema `json:"inputSchema"`
	AlwaysVisible bool               `json:"alwaysVisible"`
}

var toolSpecs = []ToolSpec{
	{
		Name:          ToolBrowseSite,
		Description:   "Browse a website to observe its content, take a screenshot, and identify products or key elements. Use this to visit retailer pages, brand homepages, or product listings during commerce research.",
		InputSchema:   llm.MustSchemaFor[BrowseSiteInput](),
		AlwaysVisible: true,
	},
	{
		Name:          ToolExtractProduct,
		Description:   "Extract structured product data from a product page URL. Returns name, price, rating, availability, and other details in a consistent format for comparison.",
		InputSchema:   llm.MustSchemaFor[ExtractProductInput](),
		AlwaysVisible: true,
	},
	{
		Name:          ToolAnalyseCommerce,
		Description:   `Analyse commerce data to produce either a product comparison table or a brand commerce readiness audit scorecard. Use type "comparison" after extracting multiple products, or type "audit" after browsing a brand site.`,
		InputSchema:   analyseInputSchema(),
		AlwaysVisible: true,
	},
}

func analyseInputSchema() *jsonschema.Schema {
	schema := llm.MustSchemaFor[AnalyseCommerceInput]()
	schema.Properties["type"].Enum = []any{AnalysisComparison, AnalysisAudit}
	products := schema.Properties["products"]
	products.Items = productDataSchema
	return schema
}

// Specs lists the commerce tools in a stable order.
func Specs() []ToolSpec {
	return append([]ToolSpec(nil), toolSpecs...)
}

func IsTool(name string) bool {
	for _, spec := range toolSpecs {
		if spec.Name == name {
			return true
		}
	}
	return false
}

// Call is one tool invocation requested by the model.
type Call struct {
	ID    string          `json:"toolCallId"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type CallResult struct {
	ID     string          `json:"toolCallId"`
	Name   string          `json:"name"`
	Output json.RawMessage `json:"output,omitempty"`
	Err    error           `json:"-"`
}

// Execute decodes input for the named tool and runs it. The returned error is
// reserved for unknown tools and undecodable input; tool failures are part of
// the output.
func (t *Tools) Execute(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	switch name {
	case ToolBrowseSite:
		in, err := decodeInput[BrowseSiteInput](name, input)
		if err != nil {
			return nil, err
		}
		return json.Marshal(t.BrowseSite(ctx, in))
	case ToolExtractProduct:
		in, err := decodeInput[ExtractProductInput](name, input)
		if err != nil {
			return nil, err
		}
		return json.Marshal(t.ExtractProduct(ctx, in))
	case ToolAnalyseCommerce:
		in, err := decodeInput[AnalyseCommerceInput](name, input)
		if err != nil {
			return nil, err
		}
		return json.Marshal(t.AnalyseCommerce(ctx, in))
	default:
		return nil, ErrUnknownTool{Name: name}
	}
}

// ExecuteParallel runs calls concurrently. Each call gets its own browser
// session; results are returned in call order.
func (t *Tools) ExecuteParallel(ctx context.Context, calls []Call) []CallResult {
	results := make([]CallResult, len(calls))
	var g errgroup.Group
	g.SetLimit(maxParallelCalls)
	for i, call := range calls {
		g.Go(func() error {
			output, err := t.Execute(ctx, call.Name, call.Input)
			results[i] = CallResult{ID: call.ID, Name: call.Name, Output: output, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func decodeInput[T any](tool string, input json.RawMessage) (T, error) {
	var in T
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return in, fmt.Errorf("decode %s input: %w", tool, err)
	}
	return in, nil
}
