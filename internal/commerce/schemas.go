package commerce

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/knowsee/knowsee/internal/llm"
)

type Availability string

const (
	InStock             Availability = "in-stock"
	LowStock            Availability = "low-stock"
	OutOfStock          Availability = "out-of-stock"
	AvailabilityUnknown Availability = "unknown"
)

var availabilityValues = []any{string(InStock), string(LowStock), string(OutOfStock), string(AvailabilityUnknown)}

const (
	DefaultCurrency = "GBP"
	maxFeatures     = 10
)

type ProductData struct {
	Name         string       `json:"name" jsonschema:"Product name"`
	Price        float64      `json:"price" jsonschema:"Product price as a number"`
	Currency     string       `json:"currency" jsonschema:"ISO 4217 currency code"`
	Rating       *float64     `json:"rating,omitempty" jsonschema:"Average star rating 0-5"`
	ReviewCount  *int         `json:"reviewCount,omitempty" jsonschema:"Number of customer reviews"`
	Availability Availability `json:"availability" jsonschema:"Stock availability status"`
	ImageURL     string       `json:"imageUrl,omitempty" jsonschema:"Product image URL"`
	SourceURL    string       `json:"sourceUrl" jsonschema:"URL the data was extracted from"`
	Retailer     string       `json:"retailer" jsonschema:"Retailer or marketplace name"`
	Features     []string     `json:"features" jsonschema:"Key product features or bullet points"`
}

// ExtractedProduct is the extract_product output: the product plus the page
// screenshot it was read from.
type ExtractedProduct struct {
	ProductData
	Screenshot string `json:"screenshot,omitempty"`
}

// productFields is what the page extractor is asked for; sourceUrl and
// retailer are filled in from the request.
type productFields struct {
	Name         string       `json:"name" jsonschema:"Product name"`
	Price        float64      `json:"price" jsonschema:"Product price as a number"`
	Currency     string       `json:"currency,omitempty" jsonschema:"ISO 4217 currency code"`
	Rating       *float64     `json:"rating,omitempty" jsonschema:"Average star rating 0-5"`
	ReviewCount  *int         `json:"reviewCount,omitempty" jsonschema:"Number of customer reviews"`
	Availability Availability `json:"availability" jsonschema:"Stock availability status"`
	ImageURL     string       `json:"imageUrl,omitempty" jsonschema:"Product image URL"`
	Features     []string     `json:"features,omitempty" jsonschema:"Key product features or bullet points"`
}

type BrowsingStepData struct {
	URL           string `json:"url"`
	SiteName      string `json:"siteName"`
	Favicon       string `json:"favicon,omitempty"`
	Screenshot    string `json:"screenshot,omitempty"`
	Description   string `json:"description"`
	ProductsFound int    `json:"productsFound"`
}

type ComparisonDimension struct {
	Name     string   `json:"name" jsonschema:"Comparison dimension (e.g. Price, Rating)"`
	Values   []string `json:"values" jsonschema:"One value per product, in the same order as the products array"`
	WinnerID *int     `json:"winnerId,omitempty" jsonschema:"Index of the winning product for this dimension"`
}

type ComparisonWinner struct {
	Index     int    `json:"index" jsonschema:"Index of the recommended product"`
	Name      string `json:"name" jsonschema:"Name of the recommended product"`
	Reasoning string `json:"reasoning" jsonschema:"Why this product is recommended"`
}

type ComparisonResult struct {
	Type            string                `json:"type"`
	Products        []ProductData         `json:"products" jsonschema:"Products being compared"`
	Dimensions      []ComparisonDimension `json:"dimensions" jsonschema:"Comparison dimensions with per-product values"`
	Winner          ComparisonWinner      `json:"winner" jsonschema:"Overall recommendation"`
	SavingsEstimate string                `json:"savingsEstimate,omitempty" jsonschema:"Estimated savings vs next-best option"`
}

type AuditCategory struct {
	Name     string   `json:"name" jsonschema:"Audit category name"`
	Score    int      `json:"score" jsonschema:"Score out of 100"`
	Findings []string `json:"findings" jsonschema:"Key findings and observations for this category"`
}

type AuditResult struct {
	Type            string          `json:"type"`
	OverallScore    int             `json:"overallScore" jsonschema:"Overall readiness score"`
	Categories      []AuditCategory `json:"categories" jsonschema:"Scored categories with findings"`
	Recommendations []string        `json:"recommendations" jsonschema:"Actionable recommendations for improvement"`
}

const (
	AnalysisComparison = "comparison"
	AnalysisAudit      = "audit"
)

// Analysis is the analyse_commerce output. Exactly one field is set.
type Analysis struct {
	Comparison *ComparisonResult
	Audit      *AuditResult
}

func (a Analysis) Type() string {
	switch {
	case a.Comparison != nil:
		return AnalysisComparison
	case a.Audit != nil:
		return AnalysisAudit
	default:
		return ""
	}
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	switch {
	case a.Comparison != nil:
		return json.Marshal(a.Comparison)
	case a.Audit != nil:
		return json.Marshal(a.Audit)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON dispatches on the "type" tag. Unknown tags decode to an empty
// Analysis rather than an error.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*a = Analysis{}
	switch probe.Type {
	case AnalysisComparison:
		a.Comparison = &ComparisonResult{}
		return json.Unmarshal(data, a.Comparison)
	case AnalysisAudit:
		a.Audit = &AuditResult{}
		return json.Unmarshal(data, a.Audit)
	}
	return nil
}

var (
	productDataSchema   = buildProductSchema[ProductData]()
	productFieldsSchema = buildProductSchema[productFields]()
	comparisonSchema    = buildComparisonSchema()
	auditSchema         = buildAuditSchema()
)

func buildProductSchema[T any]() *jsonschema.Schema {
	schema := llm.MustSchemaFor[T]()
	constrainProduct(schema)
	return schema
}

func constrainProduct(schema *jsonschema.Schema) {
	schema.Properties["availability"].Enum = availabilityValues
	rating := schema.Properties["rating"]
	rating.Minimum = ptr(0.0)
	rating.Maximum = ptr(5.0)
}

func buildComparisonSchema() *jsonschema.Schema {
	schema := llm.MustSchemaFor[ComparisonResult]()
	schema.Properties["type"].Enum = []any{AnalysisComparison}
	constrainProduct(schema.Properties["products"].Items)
	return schema
}

func buildAuditSchema() *jsonschema.Schema {
	schema := llm.MustSchemaFor[AuditResult]()
	schema.Properties["type"].Enum = []any{AnalysisAudit}
	score := func(s *jsonschema.Schema) {
		s.Minimum = ptr(0.0)
		s.Maximum = ptr(100.0)
	}
	score(schema.Properties["overallScore"])
	score(schema.Properties["categories"].Items.Properties["score"])
	return schema
}

func ptr[T any](v T) *T {
	return &v
}

// normalizeProduct applies the defaults and caps a validated extraction gets
// before it is returned.
func normalizeProduct(fields productFields, sourceURL, retailer string) (ProductData, error) {
	product := ProductData{
		Name:         fields.Name,
		Price:        fields.Price,
		Currency:     normalizeCurrency(fields.Currency),
		Rating:       fields.Rating,
		ReviewCount:  fields.ReviewCount,
		Availability: fields.Availability,
		ImageURL:     fields.ImageURL,
		SourceURL:    sourceURL,
		Retailer:     retailer,
		Features:     fields.Features,
	}
	if product.Features == nil {
		product.Features = []string{}
	}
	if len(product.Features) > maxFeatures {
		product.Features = product.Features[:maxFeatures]
	}
	if product.Rating != nil && (*product.Rating < 0 || *product.Rating > 5) {
		return ProductData{}, fmt.Errorf("rating %v is outside 0-5", *product.Rating)
	}
	switch product.Availability {
	case InStock, LowStock, OutOfStock, AvailabilityUnknown:
	default:
		return ProductData{}, fmt.Errorf("availability %q is not recognised", product.Availability)
	}
	return product, nil
}
