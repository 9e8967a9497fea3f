package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/knowsee/knowsee/internal/auth"
	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/config"
	"github.com/knowsee/knowsee/internal/events"
	"github.com/knowsee/knowsee/internal/gate"
	"github.com/knowsee/knowsee/internal/models"
	"github.com/knowsee/knowsee/internal/render"
	"github.com/knowsee/knowsee/internal/store"
)

const defaultKeepAlive = 15 * time.Second

type Broker interface {
	Publish(event events.ChatEvent) events.ChatEvent
	Subscribe(ctx context.Context, chatID string) <-chan events.ChatEvent
	// Forget releases per-chat state once the chat holds nothing live.
	Forget(chatID string)
}

// ToolRunner executes commerce tools. *commerce.Tools satisfies it.
type ToolRunner interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)
	ExecuteParallel(ctx context.Context, calls []commerce.Call) []commerce.CallResult
}

type Deps struct {
	Sessions  auth.SessionSource
	Broker    Broker
	Messages  store.MessageStore
	Tools     ToolRunner
	Registry  *render.Registry
	Catalogue *models.Catalogue
	// Identity replaces the built-in identity prompt when set.
	Identity string
	Logger   *slog.Logger
}

type Server struct {
	sessions  auth.SessionSource
	broker    Broker
	messages  store.MessageStore
	tools     ToolRunner
	registry  *render.Registry
	catalogue *models.Catalogue
	identity  string
	cfg       config.Config
	logger    *slog.Logger
	authProxy http.Handler
	keepAlive time.Duration
	now       func() time.Time

	chatsMu sync.Mutex
	chats   map[string]*chat
}

func NewServer(deps Deps, cfg config.Config) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := deps.Registry
	if registry == nil {
		registry = render.NewRegistry(render.Config{FaviconService: cfg.FaviconServiceURL})
	}
	catalogue := deps.Catalogue
	if catalogue == nil {
		catalogue = models.Default()
	}
	s := &Server{
		sessions:  deps.Sessions,
		broker:    deps.Broker,
		messages:  deps.Messages,
		tools:     deps.Tools,
		registry:  registry,
		catalogue: catalogue,
		identity:  deps.Identity,
		cfg:       cfg,
		logger:    logger,
		keepAlive: defaultKeepAlive,
		now:       time.Now,
		chats:     map[string]*chat{},
	}
	if s.broker == nil {
		s.broker = events.NewBroker()
	}
	if cfg.AuthURL != "" {
		proxy, err := newAuthProxy(cfg.AuthURL)
		if err != nil {
			logger.Warn("auth proxy disabled", "auth_url", cfg.AuthURL, "error", err)
		} else {
			s.authProxy = proxy
		}
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Last-Event-ID"},
		AllowCredentials: true,
	}).Handler)
	if s.sessions != nil {
		r.Use(gate.Middleware(s.sessions, s.logger))
	}

	r.Get(gate.HealthPath, s.ping)
	if s.authProxy != nil {
		r.Handle(gate.AuthAPIPrefix+"/*", s.authProxy)
	}

	r.Get("/api/session", s.getSession)
	r.Get("/api/models", s.listModels)
	r.Get("/api/tools", s.listTools)
	r.Get("/api/prompt", s.systemPrompt)
	r.Post("/api/chat/{id}/events", s.ingestEvent)
	r.Get("/api/chat/{id}/stream", s.streamEvents)
	r.Get("/api/chat/{id}/messages", s.listMessages)
	r.Get("/api/chat/{id}/messages/{messageID}", s.getMessage)
	r.Post("/api/chat/{id}/tools", s.executeTools)
	r.Post("/api/chat/{id}/tools/{name}", s.executeTool)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	switch {
	case method == http.MethodGet && cleanPath == gate.HealthPath:
		return true
	case method == http.MethodPost && strings.HasSuffix(cleanPath, "/events"):
		return true
	case method == http.MethodGet && strings.HasSuffix(cleanPath, "/stream"):
		return true
	case method == http.MethodOptions:
		return true
	}
	return false
}

// newAuthProxy forwards /api/auth/* to the auth service unchanged so its
// cookies land on this origin.
func newAuthProxy(raw string) (http.Handler, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("auth url %q: missing scheme or host", raw)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
	}
	return proxy, nil
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONStatus(w, map[string]string{"error": message}, statusCode)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
