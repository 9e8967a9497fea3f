package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AuthModeHTTP     = "http"
	AuthModePostgres = "postgres"
	AuthModeMemory   = "memory"
)

type Config struct {
	Port                   string
	AuthMode               string
	AuthURL                string
	AuthSecret             string
	PostgresURL            string
	LLMMode                string
	LLMProvider            string
	LLMModel               string
	LLMBaseURL             string
	OpenAIAPIKey           string
	AnthropicAPIKey        string
	OpenRouterAPIKey       string
	GroqAPIKey             string
	CommerceModel          string
	BrowserWSURL           string
	BrowserExecPath        string
	BrowserHeadless        bool
	BrowserNavigateTimeout time.Duration
	FaviconServiceURL      string
	CORSOrigins            []string
}

// Load reads the environment. Values from a .env file in the working
// directory fill in keys that are not already set.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return Config{
		Port:                   getEnv("PORT", "8080"),
		AuthMode:               strings.ToLower(getEnv("AUTH_MODE", AuthModeHTTP)),
		AuthURL:                getEnv("AUTH_URL", "http://localhost:3000"),
		AuthSecret:             getEnv("AUTH_SECRET", ""),
		PostgresURL:            getEnv("POSTGRES_URL", ""),
		LLMMode:                getEnv("LLM_MODE", "remote"),
		LLMProvider:            getEnv("LLM_PROVIDER", "anthropic"),
		LLMModel:               getEnv("LLM_MODEL", "anthropic/claude-sonnet-4-6"),
		LLMBaseURL:             getEnv("LLM_BASE_URL", ""),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:        getEnv("ANTHROPIC_API_KEY", ""),
		OpenRouterAPIKey:       getEnv("OPENROUTER_API_KEY", ""),
		GroqAPIKey:             getEnv("GROQ_API_KEY", ""),
		CommerceModel:          getEnv("COMMERCE_MODEL", ""),
		BrowserWSURL:           getEnv("BROWSER_WS_URL", ""),
		BrowserExecPath:        getEnv("BROWSER_EXEC_PATH", ""),
		BrowserHeadless:        getEnvBool("BROWSER_HEADLESS", true),
		BrowserNavigateTimeout: getEnvDuration("BROWSER_NAVIGATE_TIMEOUT", 15*time.Second),
		FaviconServiceURL:      getEnv("FAVICON_SERVICE_URL", "https://www.google.com/s2/favicons"),
		CORSOrigins:            getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}, nil
}

func (c Config) Validate() error {
	switch c.AuthMode {
	case AuthModeHTTP:
		if c.AuthURL == "" {
			return errors.New("AUTH_URL is required when AUTH_MODE=http")
		}
	case AuthModePostgres:
		if c.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required when AUTH_MODE=postgres")
		}
		if c.AuthSecret == "" {
			return errors.New("AUTH_SECRET is required when AUTH_MODE=postgres")
		}
	case AuthModeMemory:
	default:
		return errors.New("AUTH_MODE must be http, postgres or memory")
	}
	return nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("15s") or a bare number of
// milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if ms := getEnvInt(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
