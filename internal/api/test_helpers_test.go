package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/knowsee/knowsee/internal/auth"
	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/config"
	"github.com/knowsee/knowsee/internal/events"
	"github.com/knowsee/knowsee/internal/store/memory"
)

type MockTools struct {
	mock.Mock
}

func (m *MockTools) Execute(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, name, input)
	var result json.RawMessage
	if value := args.Get(0); value != nil {
		result = value.(json.RawMessage)
	}
	return result, args.Error(1)
}

func (m *MockTools) ExecuteParallel(ctx context.Context, calls []commerce.Call) []commerce.CallResult {
	args := m.Called(ctx, calls)
	return args.Get(0).([]commerce.CallResult)
}

type stubSessions struct {
	session *auth.Session
	err     error
}

func (s stubSessions) GetSession(ctx context.Context, headers http.Header) (*auth.Session, error) {
	return s.session, s.err
}

var verified = stubSessions{session: &auth.Session{User: auth.User{
	ID:            "user-1",
	Email:         "ada@example.com",
	Name:          "Ada",
	EmailVerified: true,
}}}

type testServer struct {
	*Server
	messages *memory.MemoryStore
	broker   *events.Broker
}

func newTestServer(t *testing.T, tools ToolRunner, cfg config.Config) *testServer {
	t.Helper()
	messages := memory.New()
	broker := events.NewBroker()
	server := NewServer(Deps{
		Sessions: verified,
		Broker:   broker,
		Messages: messages,
		Tools:    tools,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, cfg)
	return &testServer{Server: server, messages: messages, broker: broker}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch value := body.(type) {
		case string:
			reader = bytes.NewBufferString(value)
		default:
			payload, err := json.Marshal(value)
			require.NoError(t, err)
			reader = bytes.NewReader(payload)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
