package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the conversation service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string
	LogLevel                 string

	AllowAnyOrigin bool

	ProviderMode           string
	ProviderFallbackMode   string
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	GeminiAPIKey           string
	GeminiBaseURL          string
	Model                  string
	SummaryModel           string
	MaxOutputTokens        int
	SummaryMaxOutputTokens int
	Temperature            float64
	ProviderTimeout        time.Duration
	ContextWindow          int

	SummaryBackend            string
	SummaryDir                string
	SummaryDefaultDestination string
	SummaryRedactPII          bool
	DatabaseURL               string
	SQLitePath                string
	FirestoreProject          string

	DefaultPersona string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:                  envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:          envOrDefault("APP_METRICS_NAMESPACE", "parley"),
		LogLevel:                  envOrDefault("APP_LOG_LEVEL", "info"),
		AllowAnyOrigin:            false,
		ProviderMode:              envOrDefault("PROVIDER_MODE", "auto"),
		ProviderFallbackMode:      stringsTrimSpace("PROVIDER_FALLBACK_MODE"),
		OpenAIAPIKey:              stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:             envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:              stringsTrimSpace("GEMINI_API_KEY"),
		GeminiBaseURL:             stringsTrimSpace("GEMINI_BASE_URL"),
		Model:                     envOrDefault("PROVIDER_MODEL", "gpt-4"),
		SummaryModel:              envOrDefault("PROVIDER_SUMMARY_MODEL", "gpt-3.5-turbo-0125"),
		MaxOutputTokens:           1500,
		SummaryMaxOutputTokens:    3000,
		Temperature:               0,
		ProviderTimeout:           60 * time.Second,
		ContextWindow:             0,
		SummaryBackend:            envOrDefault("SUMMARY_BACKEND", "file"),
		SummaryDir:                envOrDefault("SUMMARY_DIR", "."),
		SummaryDefaultDestination: envOrDefault("SUMMARY_DEFAULT_DESTINATION", "summary.txt"),
		DatabaseURL:               stringsTrimSpace("DATABASE_URL"),
		SQLitePath:                envOrDefault("SQLITE_PATH", "data/parley.db"),
		FirestoreProject:          stringsTrimSpace("FIRESTORE_PROJECT"),
		DefaultPersona:            envOrDefault("DEFAULT_PERSONA", "plain"),
		ShutdownTimeout:           15 * time.Second,
		SessionInactivityTimeout:  30 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ProviderTimeout, err = durationFromEnv("PROVIDER_TIMEOUT", cfg.ProviderTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryRedactPII, err = boolFromEnv("SUMMARY_REDACT_PII", cfg.SummaryRedactPII)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxOutputTokens, err = intFromEnv("PROVIDER_MAX_OUTPUT_TOKENS", cfg.MaxOutputTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.SummaryMaxOutputTokens, err = intFromEnv("PROVIDER_SUMMARY_MAX_OUTPUT_TOKENS", cfg.SummaryMaxOutputTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.ContextWindow, err = intFromEnv("PROVIDER_CONTEXT_WINDOW", cfg.ContextWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("PROVIDER_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ProviderTimeout <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if cfg.MaxOutputTokens <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_MAX_OUTPUT_TOKENS must be positive")
	}
	if cfg.SummaryMaxOutputTokens <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_SUMMARY_MAX_OUTPUT_TOKENS must be positive")
	}
	if cfg.ContextWindow < 0 {
		return Config{}, fmt.Errorf("PROVIDER_CONTEXT_WINDOW must be >= 0")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return Config{}, fmt.Errorf("PROVIDER_TEMPERATURE must be within [0, 1]")
	}
	if strings.TrimSpace(cfg.SummaryDefaultDestination) == "" {
		return Config{}, fmt.Errorf("SUMMARY_DEFAULT_DESTINATION must not be blank")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
