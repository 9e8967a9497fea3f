package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/llm"
)

const maxObservations = 10

const pageSystemPrompt = "You read web pages for a shopping assistant. The page is given as markdown. " +
	"Only report what is actually on the page. Never invent products, prices, or links."

type observationList struct {
	Observations []commerce.Observation `json:"observations" jsonschema:"Notable elements on the page, most relevant first"`
}

var observationSchema = llm.MustSchemaFor[observationList]()

func captureScreenshot(opts commerce.ScreenshotOptions, buf *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		capture := page.CaptureScreenshot()
		if opts.Type == commerce.ScreenshotPNG {
			capture = capture.WithFormat(page.CaptureScreenshotFormatPng)
		} else {
			capture = capture.WithFormat(page.CaptureScreenshotFormatJpeg)
			if opts.Quality > 0 {
				capture = capture.WithQuality(int64(opts.Quality))
			}
		}
		data, err := capture.Do(ctx)
		if err != nil {
			return err
		}
		*buf = data
		return nil
	})
}

// pageReader turns page HTML into markdown and asks the generator about it.
type pageReader struct {
	generator llm.StructuredGenerator
	model     string
	maxChars  int
}

func (r *pageReader) markdown(html string) (string, error) {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert page to markdown: %w", err)
	}
	md = strings.TrimSpace(md)
	if r.maxChars > 0 && len(md) > r.maxChars {
		cut := r.maxChars
		for cut > 0 && !utf8.RuneStart(md[cut]) {
			cut--
		}
		md = md[:cut] + "\n\n[page truncated]"
	}
	return md, nil
}

func pagePrompt(location, markdown, task string) string {
	var b strings.Builder
	b.WriteString("Page URL: ")
	b.WriteString(location)
	b.WriteString("\n\nTask: ")
	b.WriteString(task)
	b.WriteString("\n\nPage content:\n")
	b.WriteString(markdown)
	return b.String()
}

func (r *pageReader) observe(ctx context.Context, location, html, objective string) ([]commerce.Observation, error) {
	md, err := r.markdown(html)
	if err != nil {
		return nil, err
	}
	if objective == "" {
		objective = "Describe the main content of the page."
	}
	raw, err := r.generator.GenerateObject(ctx, llm.ObjectRequest{
		Model:       r.model,
		Name:        "page_observations",
		Description: "Elements on the page relevant to the objective",
		Schema:      observationSchema,
		System:      pageSystemPrompt,
		Prompt:      pagePrompt(location, md, "List the elements relevant to this objective: "+objective),
	})
	if err != nil {
		return nil, err
	}
	list, err := llm.DecodeObject[observationList]("page_observations", raw, observationSchema)
	if err != nil {
		return nil, err
	}
	if len(list.Observations) > maxObservations {
		list.Observations = list.Observations[:maxObservations]
	}
	return list.Observations, nil
}

func (r *pageReader) extract(ctx context.Context, location, html, instruction string, schema *jsonschema.Schema) (json.RawMessage, error) {
	md, err := r.markdown(html)
	if err != nil {
		return nil, err
	}
	return r.generator.GenerateObject(ctx, llm.ObjectRequest{
		Model:       r.model,
		Name:        "page_extraction",
		Description: "Data extracted from the page",
		Schema:      schema,
		System:      pageSystemPrompt,
		Prompt:      pagePrompt(location, md, instruction),
	})
}
