package app

import (
	"context"
	"fmt"

	"github.com/ent0n29/parley/internal/config"
	"github.com/ent0n29/parley/internal/observability"
	"github.com/ent0n29/parley/internal/provider"
)

type providerSetup struct {
	chat       provider.Backend
	summarizer provider.Backend
}

// resolveProviders picks the chat and summary backends once at startup. Both
// follow the same mode; they differ only in model and output budget.
func resolveProviders(ctx context.Context, cfg config.Config, metrics *observability.Metrics) (providerSetup, error) {
	base := provider.Config{
		Mode:          cfg.ProviderMode,
		FallbackMode:  cfg.ProviderFallbackMode,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
		Timeout:       cfg.ProviderTimeout,
	}

	chatCfg := base
	chatCfg.Options = provider.Options{
		Model:           cfg.Model,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     cfg.Temperature,
	}
	chat, err := provider.New(ctx, chatCfg)
	if err != nil {
		return providerSetup{}, fmt.Errorf("chat provider init failed: %w", err)
	}

	summaryCfg := base
	summaryCfg.Options = provider.Options{
		Model:           cfg.SummaryModel,
		MaxOutputTokens: cfg.SummaryMaxOutputTokens,
		Temperature:     cfg.Temperature,
	}
	summarizer, err := provider.New(ctx, summaryCfg)
	if err != nil {
		return providerSetup{}, fmt.Errorf("summary provider init failed: %w", err)
	}

	return providerSetup{
		chat:       provider.Instrument(chat, metrics),
		summarizer: provider.Instrument(summarizer, metrics),
	}, nil
}
