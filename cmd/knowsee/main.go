package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/knowsee/knowsee/internal/api"
	"github.com/knowsee/knowsee/internal/auth"
	"github.com/knowsee/knowsee/internal/browser"
	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/config"
	"github.com/knowsee/knowsee/internal/events"
	"github.com/knowsee/knowsee/internal/instructions"
	"github.com/knowsee/knowsee/internal/llm"
	"github.com/knowsee/knowsee/internal/models"
	"github.com/knowsee/knowsee/internal/render"
	"github.com/knowsee/knowsee/internal/secrets"
	"github.com/knowsee/knowsee/internal/store"
	"github.com/knowsee/knowsee/internal/store/memory"
	"github.com/knowsee/knowsee/internal/store/postgres"
)

const (
	authClientTimeout = 10 * time.Second
	devSessionTTL     = 24 * time.Hour
	devUserEmail      = "dev@knowsee.local"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

type launcher interface {
	commerce.Browser
	Close() error
}

type sqlStore interface {
	store.Store
	Close() error
}

var (
	loadConfig  = config.Load
	newProvider = llm.NewProvider
	newLauncher = func(cfg browser.Config, generator llm.StructuredGenerator) (launcher, error) {
		l, err := browser.NewLauncher(cfg, generator)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
	openPostgres = func(conn string) (sqlStore, error) {
		st, err := postgres.New(conn)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	newServer = func(deps api.Deps, cfg config.Config) server {
		return api.NewServer(deps, cfg)
	}
	readOverride  = instructions.ReadOverride
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

type rootFlags struct {
	debug bool
}

func (f *rootFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:          "knowsee",
		Short:        "Knowsee chat backend",
		Long:         "knowsee serves the chat stream, renders tool output and runs the commerce research tools.",
		SilenceUsage: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(&flags), newToolCmd(&flags), newModelsCmd())
	return cmd
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := flags.logger(cmd.ErrOrStderr())
			slog.SetDefault(logger)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := notifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, logger)
		},
	}
}

func newToolCmd(flags *rootFlags) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "tool <name>",
		Short: "Run one commerce tool and print its result",
		Example: `  knowsee tool browse_site --input '{"url":"https://www.argos.co.uk","objective":"find kettles"}'
  knowsee tool extract_product --input '{"url":"https://www.argos.co.uk/product/123"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !commerce.IsTool(name) {
				return commerce.ErrUnknownTool{Name: name}
			}
			if !json.Valid([]byte(input)) {
				return errors.New("--input must be a JSON object")
			}
			logger := flags.logger(cmd.ErrOrStderr())
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tools, closeTools, err := buildTools(cfg, logger)
			if err != nil {
				return err
			}
			defer closeTools()

			output, err := tools.Execute(cmd.Context(), name, json.RawMessage(input))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(output)
		},
	}
	cmd.Flags().StringVar(&input, "input", "{}", "tool input as JSON")
	return cmd
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the chat models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalogue := models.Default()
			for _, m := range catalogue.Models {
				marker := " "
				if m.ID == catalogue.Default {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-40s %s\n", marker, m.ID, m.Name)
			}
			return nil
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	tools, closeTools, err := buildTools(cfg, logger)
	if err != nil {
		return err
	}
	defer closeTools()

	sessions, messages, closeStore, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	identity, err := readOverride()
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		logger.Warn("identity override unreadable", "file", instructions.OverrideFileName, "error", err)
	case identity != "":
		logger.Info("using identity override", "file", instructions.OverrideFileName)
	}

	srv := newServer(api.Deps{
		Sessions:  sessions,
		Broker:    events.NewBroker(),
		Messages:  messages,
		Tools:     tools,
		Registry:  render.NewRegistry(render.Config{FaviconService: cfg.FaviconServiceURL}),
		Catalogue: models.Default(),
		Identity:  identity,
		Logger:    logger,
	}, cfg)

	addr := fmt.Sprintf(":%s", cfg.Port)
	logger.Info("knowsee listening", "addr", addr, "auth_mode", cfg.AuthMode)
	return srv.Start(ctx, addr)
}

// buildTools wires the commerce tools to the configured model and browser.
// The returned func releases the browser.
func buildTools(cfg config.Config, logger *slog.Logger) (*commerce.Tools, func(), error) {
	client, err := newProvider(llm.Config{
		Mode:             cfg.LLMMode,
		Provider:         cfg.LLMProvider,
		Model:            cfg.LLMModel,
		BaseURL:          cfg.LLMBaseURL,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
		AnthropicAPIKey:  cfg.AnthropicAPIKey,
		OpenRouterAPIKey: cfg.OpenRouterAPIKey,
		GroqAPIKey:       cfg.GroqAPIKey,
	})
	if err != nil {
		return nil, nil, err
	}
	l, err := newLauncher(browser.Config{
		WSURL:         cfg.BrowserWSURL,
		ExecPath:      cfg.BrowserExecPath,
		Headless:      cfg.BrowserHeadless,
		Model:         cfg.CommerceModel,
		ActionTimeout: cfg.BrowserNavigateTimeout,
		Logger:        logger,
	}, client)
	if err != nil {
		return nil, nil, err
	}
	tools := commerce.NewTools(l, client, commerce.Config{
		Model:           cfg.CommerceModel,
		NavigateTimeout: cfg.BrowserNavigateTimeout,
		FaviconService:  cfg.FaviconServiceURL,
		Logger:          logger,
	})
	return tools, func() {
		if err := l.Close(); err != nil {
			logger.Warn("close browser", "error", err)
		}
	}, nil
}

// openSessions picks the session source for cfg.AuthMode. Messages go to
// Postgres whenever POSTGRES_URL is set and to memory otherwise.
func openSessions(ctx context.Context, cfg config.Config, logger *slog.Logger) (auth.SessionSource, store.MessageStore, func(), error) {
	noop := func() {}
	var pg sqlStore
	if cfg.PostgresURL != "" {
		st, err := openPostgres(cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, err
		}
		pg = st
	}
	closeStore := func() {
		if pg == nil {
			return
		}
		if err := pg.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}

	switch cfg.AuthMode {
	case config.AuthModeHTTP:
		source := auth.NewHTTPSource(cfg.AuthURL, &http.Client{Timeout: authClientTimeout})
		if pg != nil {
			return source, pg, closeStore, nil
		}
		return source, memory.New(), noop, nil
	case config.AuthModePostgres:
		key, err := secrets.ParseKey(cfg.AuthSecret)
		if err != nil {
			closeStore()
			return nil, nil, nil, err
		}
		return auth.NewStoreSource(key, pg), pg, closeStore, nil
	default:
		closeStore()
		mem := memory.New()
		key, err := devKey(cfg.AuthSecret)
		if err != nil {
			return nil, nil, nil, err
		}
		cookie, err := seedDevSession(ctx, mem, key, time.Now())
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("in-memory auth: dev session created",
			"email", devUserEmail,
			"cookie", auth.SessionCookie+"="+cookie)
		return auth.NewStoreSource(key, mem), mem, noop, nil
	}
}

// devKey uses AUTH_SECRET when it is valid and a random key otherwise.
func devKey(raw string) ([]byte, error) {
	if key, err := secrets.ParseKey(raw); err == nil {
		return key, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// seedDevSession stores a verified user with a live session and returns the
// cookie value, signed and URL-encoded, that authenticates as that user.
func seedDevSession(ctx context.Context, mem *memory.MemoryStore, key []byte, now time.Time) (string, error) {
	user := store.User{ID: uuid.NewString(), Name: "Developer", Email: devUserEmail, EmailVerified: true}
	if err := mem.PutUser(ctx, user); err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := mem.PutSession(ctx, store.Session{Token: token, UserID: user.ID, ExpiresAt: now.Add(devSessionTTL)}); err != nil {
		return "", err
	}
	return url.QueryEscape(secrets.SignValue(key, token)), nil
}
