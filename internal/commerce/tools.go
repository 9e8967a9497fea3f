package commerce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/knowsee/knowsee/internal/llm"
)

const (
	DefaultNavigateTimeout = 15 * time.Second
	screenshotQuality      = 70
	closeTimeout           = 10 * time.Second
)

type Config struct {
	// Model is the structured-generation model used by analyse_commerce. Empty
	// uses the generator's default.
	Model           string
	NavigateTimeout time.Duration
	FaviconService  string
	Logger          *slog.Logger
}

// Tools implements browse_site, extract_product and analyse_commerce. Every
// method reports failure through its Result and never returns an error or
// panics.
type Tools struct {
	browser   Browser
	generator llm.StructuredGenerator
	cfg       Config
	logger    *slog.Logger
}

func NewTools(browser Browser, generator llm.StructuredGenerator, cfg Config) *Tools {
	if cfg.NavigateTimeout <= 0 {
		cfg.NavigateTimeout = DefaultNavigateTimeout
	}
	if cfg.FaviconService == "" {
		cfg.FaviconService = DefaultFaviconService
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{browser: browser, generator: generator, cfg: cfg, logger: logger}
}

// withSession opens a session, runs fn, and closes the session exactly once on
// every path out, including panics and cancellation. Close runs on a context
// detached from ctx so a cancelled request still releases the browser.
func (t *Tools) withSession(ctx context.Context, tool string, fn func(Session) error) (err error) {
	session, err := t.browser.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if closeErr := session.Close(closeCtx); closeErr != nil {
			t.logger.Debug("browser session close failed", "tool", tool, "error", closeErr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", tool, r)
		}
	}()
	return fn(session)
}

// boundary converts any error or panic from run into a failure Result.
func boundary[T any](t *Tools, tool, url, fallback string, run func() (T, error)) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tool panicked", "tool", tool, "url", url, "panic", r)
			result = Failure[T](fmt.Sprintf("%s panicked: %v", tool, r))
		}
	}()
	value, err := run()
	if err != nil {
		message := err.Error()
		if message == "" {
			message = fallback
		}
		t.logger.Error("tool failed", "tool", tool, "url", url, "error", message)
		return Failure[T](message)
	}
	return Success(value)
}
