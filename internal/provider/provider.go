// Package provider holds the completion backends a conversation can be
// driven by. A backend is chosen once, at configuration time.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/parley/internal/conversation"
	"github.com/ent0n29/parley/internal/observability"
)

// Options are passed through to the backend without interpretation.
type Options struct {
	Model           string
	MaxOutputTokens int
	Temperature     float64
}

// Backend is a CompletionProvider that can describe itself and be re-bound
// to another model of the same family.
type Backend interface {
	conversation.CompletionProvider
	Name() string
	Family() string
	WithModel(model string) Backend
}

// Config controls backend construction.
type Config struct {
	Mode          string
	FallbackMode  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiBaseURL string
	Timeout       time.Duration
	Options       Options
}

// New builds the backend named by cfg.Mode. "auto" prefers OpenAI, then
// Gemini, then the local mock, based on which credentials are present.
func New(ctx context.Context, cfg Config) (Backend, error) {
	primary, err := newBackend(ctx, cfg.Mode, cfg)
	if err != nil {
		return nil, err
	}

	fallbackMode := strings.ToLower(strings.TrimSpace(cfg.FallbackMode))
	if fallbackMode == "" || fallbackMode == "none" {
		return primary, nil
	}
	secondary, err := newBackend(ctx, fallbackMode, cfg)
	if err != nil {
		return nil, fmt.Errorf("fallback provider: %w", err)
	}
	return NewFallback(primary, secondary), nil
}

func newBackend(ctx context.Context, mode string, cfg Config) (Backend, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "auto"
	}
	log := observability.Logger()

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
			log.Info("provider selected", "mode", "openai", "model", cfg.Options.Model)
			return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Options, cfg.Timeout), nil
		}
		if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
			opts := geminiOptions(cfg.Options)
			log.Info("provider selected", "mode", "gemini", "model", opts.Model)
			return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, opts)
		}
		log.Warn("provider selected", "mode", "mock", "reason", "no OPENAI_API_KEY or GEMINI_API_KEY")
		return NewMock(cfg.Options), nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Options, cfg.Timeout), nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, errors.New("gemini provider requires GEMINI_API_KEY")
		}
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiBaseURL, geminiOptions(cfg.Options))
	case "mock":
		return NewMock(cfg.Options), nil
	default:
		return nil, fmt.Errorf("unsupported provider mode %q", mode)
	}
}

// geminiOptions swaps a model id from another family for the Gemini default.
func geminiOptions(opts Options) Options {
	if Family(opts.Model) != FamilyGemini {
		opts.Model = DefaultGeminiModel
	}
	return opts
}

func providerError(name, kind string, err error) *conversation.ProviderError {
	return &conversation.ProviderError{Provider: name, Kind: kind, Err: err}
}
