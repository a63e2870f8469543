package provider

import (
	"context"
	"time"

	"github.com/ent0n29/parley/internal/conversation"
	"github.com/ent0n29/parley/internal/observability"
)

// Instrumented records request counts, error kinds, and latency for a backend.
type Instrumented struct {
	next    Backend
	metrics *observability.Metrics
}

func Instrument(next Backend, metrics *observability.Metrics) Backend {
	if metrics == nil {
		return next
	}
	return &Instrumented{next: next, metrics: metrics}
}

func (i *Instrumented) Name() string   { return i.next.Name() }
func (i *Instrumented) Family() string { return i.next.Family() }

func (i *Instrumented) WithModel(model string) Backend {
	return &Instrumented{next: i.next.WithModel(model), metrics: i.metrics}
}

func (i *Instrumented) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	name := i.next.Name()
	start := time.Now()
	text, err := i.next.Complete(ctx, turns)
	i.metrics.ObserveProviderLatency(name, time.Since(start))

	if err != nil {
		pe := conversation.AsProviderError(err)
		i.metrics.ProviderRequests.WithLabelValues(name, "error").Inc()
		i.metrics.ProviderErrors.WithLabelValues(name, pe.Kind).Inc()
		observability.LoggerFromContext(ctx).Warn("provider call failed",
			"provider", name,
			"kind", pe.Kind,
			"turns", len(turns),
			"error", err,
		)
		return "", err
	}
	i.metrics.ProviderRequests.WithLabelValues(name, "ok").Inc()
	return text, nil
}
