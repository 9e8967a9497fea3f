// Package browser drives Chrome through chromedp and implements the commerce
// browser contract. Page understanding (observe and extract) is delegated to
// the structured generator over a markdown rendering of the page.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/llm"
)

const (
	defaultMaxPageChars  = 40_000
	defaultActionTimeout = 20 * time.Second
)

type Config struct {
	// WSURL connects to an already running browser instead of launching one.
	WSURL    string
	ExecPath string
	Headless bool
	// Model is passed to the generator for observe and extract calls.
	Model         string
	MaxPageChars  int
	ActionTimeout time.Duration
	Logger        *slog.Logger
}

// Launcher owns the browser allocator. Each session is a new tab.
type Launcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	reader      *pageReader
	cfg         Config
	logger      *slog.Logger
	start       func(context.Context) error
}

var _ commerce.Browser = (*Launcher)(nil)

func NewLauncher(cfg Config, generator llm.StructuredGenerator) (*Launcher, error) {
	if generator == nil {
		return nil, errors.New("browser needs a structured generator")
	}
	if cfg.MaxPageChars <= 0 {
		cfg.MaxPageChars = defaultMaxPageChars
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.WSURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.WSURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", cfg.Headless))
		if path := cfg.ExecPath; path != "" {
			opts = append(opts, chromedp.ExecPath(path))
		} else if path := findExecPath(); path != "" {
			opts = append(opts, chromedp.ExecPath(path))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	return &Launcher{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		reader:      &pageReader{generator: generator, model: cfg.Model, maxChars: cfg.MaxPageChars},
		cfg:         cfg,
		logger:      logger,
		start:       runTab,
	}, nil
}

// NewSession opens a tab. The first action on a chromedp context starts the
// browser, so it is run here to surface launch failures early.
func (l *Launcher) NewSession(ctx context.Context) (commerce.Session, error) {
	if err := l.allocCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is closed: %w", err)
	}
	tabCtx, tabCancel := chromedp.NewContext(l.allocCtx)
	if err := startTab(ctx, tabCtx, tabCancel, l.cfg.ActionTimeout, l.start); err != nil {
		tabCancel()
		return nil, fmt.Errorf("start browser tab: %w", err)
	}
	return &session{tabCtx: tabCtx, tabCancel: tabCancel, reader: l.reader, actionTimeout: l.cfg.ActionTimeout}, nil
}

func runTab(tabCtx context.Context) error {
	return chromedp.Run(tabCtx)
}

// startTab runs the first action on a tab. chromedp binds the browser
// process (or remote connection) to the context of that first Run, so start
// gets tabCtx itself and the wait is bounded here instead. Giving up cancels
// the tab.
func startTab(ctx, tabCtx context.Context, tabCancel context.CancelFunc, timeout time.Duration, start func(context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- start(tabCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		tabCancel()
		return fmt.Errorf("browser start timed out after %s", timeout)
	case <-ctx.Done():
		tabCancel()
		return ctx.Err()
	}
}

func (l *Launcher) Close() error {
	if l.allocCancel != nil {
		l.allocCancel()
	}
	return nil
}

type session struct {
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	reader        *pageReader
	actionTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on a started tab, bounded by timeout and by the
// caller's ctx. Once the browser is allocated, cancelling a derived context
// stops the actions without closing the tab.
func (s *session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("browser action timed out after %s", timeout)
	}
	return err
}

func (s *session) Navigate(ctx context.Context, url string, opts commerce.NavigateOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = commerce.DefaultNavigateTimeout
	}
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if opts.WaitUntil == commerce.WaitLoad {
		actions = append(actions, chromedp.WaitVisible("body", chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	if err := s.run(ctx, timeout, actions...); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *session) Screenshot(ctx context.Context, opts commerce.ScreenshotOptions) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.actionTimeout, captureScreenshot(opts, &buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.actionTimeout, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read page title: %w", err)
	}
	return strings.TrimSpace(title), nil
}

func (s *session) pageHTML(ctx context.Context) (string, string, error) {
	var html, location string
	if err := s.run(ctx, s.actionTimeout, chromedp.Location(&location), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", "", fmt.Errorf("read page content: %w", err)
	}
	return html, location, nil
}

func (s *session) Observe(ctx context.Context, objective string) ([]commerce.Observation, error) {
	html, location, err := s.pageHTML(ctx)
	if err != nil {
		return nil, err
	}
	return s.reader.observe(ctx, location, html, objective)
}

func (s *session) Extract(ctx context.Context, instruction string, schema *jsonschema.Schema) (json.RawMessage, error) {
	html, location, err := s.pageHTML(ctx)
	if err != nil {
		return nil, err
	}
	return s.reader.extract(ctx, location, html, instruction, schema)
}

// Close closes the tab once. It waits for the browser to confirm, up to the
// deadline on ctx.
func (s *session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.tabCtx) }()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.closeErr = err
			}
		case <-ctx.Done():
			s.tabCancel()
			s.closeErr = ctx.Err()
		}
	})
	return s.closeErr
}

func findExecPath() string {
	var locations []string
	switch runtime.GOOS {
	case "darwin":
		locations = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		locations = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		locations = []string{
			"headless-shell",
			"chromium",
			"chromium-browser",
			"google-chrome",
			"google-chrome-stable",
		}
	}
	for _, path := range locations {
		if found, err := exec.LookPath(path); err == nil {
			return found
		}
	}
	return ""
}
