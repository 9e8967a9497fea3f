package commerce

import (
	"context"
	"strings"

	"github.com/knowsee/knowsee/internal/llm"
)

const productDetails = "including name, price, rating, review count, availability, image URL, and key features."

type ExtractProductInput struct {
	URL         string `json:"url" jsonschema:"The product page URL to extract data from"`
	ProductHint string `json:"productHint,omitempty" jsonschema:"Optional hint about the product name to help extraction accuracy"`
}

// ExtractProduct reads a product page into a ProductData record.
func (t *Tools) ExtractProduct(ctx context.Context, in ExtractProductInput) Result[ExtractedProduct] {
	return boundary(t, ToolExtractProduct, in.URL, "Unknown extraction error", func() (ExtractedProduct, error) {
		var product ExtractedProduct
		err := t.withSession(ctx, ToolExtractProduct, func(s Session) error {
			if err := s.Navigate(ctx, in.URL, NavigateOptions{WaitUntil: WaitDOMContentLoaded, Timeout: t.cfg.NavigateTimeout}); err != nil {
				return err
			}
			retailer := Retailer(in.URL)

			raw, err := s.Extract(ctx, extractInstruction(in.ProductHint), productFieldsSchema)
			if err != nil {
				return err
			}
			fields, err := llm.DecodeObject[productFields]("product", raw, productFieldsSchema)
			if err != nil {
				return err
			}

			screenshot, err := t.screenshot(ctx, s)
			if err != nil {
				return err
			}

			data, err := normalizeProduct(fields, in.URL, retailer)
			if err != nil {
				return err
			}
			product = ExtractedProduct{ProductData: data, Screenshot: screenshot}
			return nil
		})
		return product, err
	})
}

func extractInstruction(hint string) string {
	if hint = strings.TrimSpace(hint); hint != "" {
		return `Extract the product details for "` + hint + `" from this page, ` + productDetails
	}
	return "Extract the main product details from this page, " + productDetails
}

func normalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}
