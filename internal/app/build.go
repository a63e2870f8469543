package app

import (
	"context"
	"fmt"

	"github.com/ent0n29/parley/internal/config"
	"github.com/ent0n29/parley/internal/conversation"
	"github.com/ent0n29/parley/internal/httpapi"
	"github.com/ent0n29/parley/internal/observability"
	"github.com/ent0n29/parley/internal/persona"
	"github.com/ent0n29/parley/internal/provider"
	"github.com/ent0n29/parley/internal/session"
	"github.com/ent0n29/parley/internal/summary"
)

type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Sessions   *session.Manager
	Chat       provider.Backend
	Summarizer provider.Backend
	Summaries  summary.Store
	Metrics    *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB connections).
	Cleanup func() error
}

// Build wires the service from cfg. Metrics register with the default
// Prometheus registry, so Build runs once per process.
func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	return build(ctx, cfg, observability.NewMetrics(cfg.MetricsNamespace))
}

func build(ctx context.Context, cfg config.Config, metrics *observability.Metrics) (*BuildResult, error) {
	if _, ok := persona.Lookup(cfg.DefaultPersona); !ok {
		return nil, fmt.Errorf("DEFAULT_PERSONA %q is not a known persona", cfg.DefaultPersona)
	}

	providers, err := resolveProviders(ctx, cfg, metrics)
	if err != nil {
		return nil, err
	}

	store, err := summary.NewStore(ctx, summary.Config{
		Backend:          cfg.SummaryBackend,
		Dir:              cfg.SummaryDir,
		DatabaseURL:      cfg.DatabaseURL,
		SQLitePath:       cfg.SQLitePath,
		FirestoreProject: cfg.FirestoreProject,
	})
	if err != nil {
		return nil, fmt.Errorf("summary store init failed: %w", err)
	}

	convOpts := []conversation.Option{conversation.WithSummaryWriter(store)}
	if cfg.ContextWindow > 0 {
		convOpts = append(convOpts, conversation.WithWindow(cfg.ContextWindow))
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout, convOpts...)
	sessions.SetExpireHook(func(e *session.Entry) {
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
		observability.WithFields("session_id", e.ID, "user_id", e.UserID).Info("session expired")
	})

	api := httpapi.New(cfg, sessions, providers.chat, providers.summarizer, store, metrics)

	observability.WithFields(
		"provider", providers.chat.Name(),
		"summarizer", providers.summarizer.Name(),
		"summary_backend", cfg.SummaryBackend,
		"default_persona", cfg.DefaultPersona,
	).Info("service wired")

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Sessions:   sessions,
		Chat:       providers.chat,
		Summarizer: providers.summarizer,
		Summaries:  store,
		Metrics:    metrics,
		Cleanup:    store.Close,
	}, nil
}
