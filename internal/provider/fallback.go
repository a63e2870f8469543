package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ent0n29/parley/internal/conversation"
)

// Fallback tries a primary backend first and falls back on error.
type Fallback struct {
	primary  Backend
	fallback Backend
}

func NewFallback(primary, fallback Backend) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

// Primary returns the preferred backend used before fallback.
func (f *Fallback) Primary() Backend { return f.primary }

// Secondary returns the fallback backend.
func (f *Fallback) Secondary() Backend { return f.fallback }

func (f *Fallback) Name() string {
	return f.primary.Name() + "+" + f.fallback.Name()
}

func (f *Fallback) Family() string { return f.primary.Family() }

func (f *Fallback) WithModel(model string) Backend {
	return &Fallback{primary: f.primary.WithModel(model), fallback: f.fallback.WithModel(model)}
}

func (f *Fallback) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	if f.primary == nil {
		if f.fallback != nil {
			return f.fallback.Complete(ctx, turns)
		}
		return "", fmt.Errorf("fallback provider misconfigured")
	}

	text, err := f.primary.Complete(ctx, turns)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	if f.fallback == nil {
		return "", err
	}

	fallbackText, fallbackErr := f.fallback.Complete(ctx, turns)
	if fallbackErr != nil {
		pe := conversation.AsProviderError(err)
		return "", &conversation.ProviderError{
			Provider: f.Name(),
			Kind:     pe.Kind,
			Err:      fmt.Errorf("primary: %w; fallback: %v", err, fallbackErr),
		}
	}
	return fallbackText, nil
}
