package commerce

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	WaitDOMContentLoaded = "domcontentloaded"
	WaitLoad             = "load"

	ScreenshotJPEG = "jpeg"
	ScreenshotPNG  = "png"
)

type NavigateOptions struct {
	WaitUntil string
	Timeout   time.Duration
}

type ScreenshotOptions struct {
	Type    string
	Quality int
}

// Observation is one notable element the browser agent found on a page.
type Observation struct {
	Description string `json:"description" jsonschema:"What the element is and why it matters for the objective"`
	Selector    string `json:"selector,omitempty" jsonschema:"CSS selector for the element, if known"`
}

// Browser opens isolated browser sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is a single page driven by the browser agent. Close must be safe to
// call with a context that is already past its caller's deadline.
type Session interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
	Title(ctx context.Context) (string, error)
	Observe(ctx context.Context, objective string) ([]Observation, error)
	Extract(ctx context.Context, instruction string, schema *jsonschema.Schema) (json.RawMessage, error)
	Close(ctx context.Context) error
}
