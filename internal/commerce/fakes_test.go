package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/mock"

	"github.com/knowsee/knowsee/internal/llm"
)

type fakeSession struct {
	navigateErr   error
	screenshot    []byte
	title         string
	observations  []Observation
	observePanic  any
	extracted     json.RawMessage
	extractErr    error
	closeErr      error
	blockNavigate bool

	mu           sync.Mutex
	navigated    []string
	navigateOpts NavigateOptions
	shotOpts     ScreenshotOptions
	instruction  string
	closeCalls   atomic.Int32
	closeCtxErr  error
}

func (s *fakeSession) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	s.mu.Lock()
	s.navigated = append(s.navigated, url)
	s.navigateOpts = opts
	s.mu.Unlock()
	if s.blockNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.navigateErr
}

func (s *fakeSession) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	s.mu.Lock()
	s.shotOpts = opts
	s.mu.Unlock()
	return s.screenshot, nil
}

func (s *fakeSession) Title(ctx context.Context) (string, error) {
	return s.title, nil
}

func (s *fakeSession) Observe(ctx context.Context, objective string) ([]Observation, error) {
	if s.observePanic != nil {
		panic(s.observePanic)
	}
	return s.observations, nil
}

func (s *fakeSession) Extract(ctx context.Context, instruction string, schema *jsonschema.Schema) (json.RawMessage, error) {
	s.mu.Lock()
	s.instruction = instruction
	s.mu.Unlock()
	return s.extracted, s.extractErr
}

func (s *fakeSession) Close(ctx context.Context) error {
	s.closeCalls.Add(1)
	s.mu.Lock()
	s.closeCtxErr = ctx.Err()
	s.mu.Unlock()
	return s.closeErr
}

type fakeBrowser struct {
	newSession func() *fakeSession
	err        error

	mu       sync.Mutex
	sessions []*fakeSession
}

func (b *fakeBrowser) NewSession(ctx context.Context) (Session, error) {
	if b.err != nil {
		return nil, b.err
	}
	s := b.newSession()
	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.mu.Unlock()
	return s, nil
}

func browserWith(s *fakeSession) *fakeBrowser {
	return &fakeBrowser{newSession: func() *fakeSession { return s }}
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateObject(ctx context.Context, req llm.ObjectRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func newTestTools(browser Browser, generator llm.StructuredGenerator) *Tools {
	return NewTools(browser, generator, Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

var errNavigation = errors.New("net::ERR_NAME_NOT_RESOLVED")
