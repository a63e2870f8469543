package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/parley/internal/conversation"
)

// Mock provides deterministic local replies when no hosted backend is set up.
type Mock struct {
	opts Options
}

func NewMock(opts Options) *Mock { return &Mock{opts: opts} }

func (m *Mock) Name() string   { return "mock" }
func (m *Mock) Family() string { return FamilyAny }

func (m *Mock) WithModel(model string) Backend {
	cp := *m
	if strings.TrimSpace(model) != "" {
		cp.opts.Model = model
	}
	return &cp
}

func (m *Mock) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	select {
	case <-ctx.Done():
		return "", providerError(m.Name(), conversation.KindNetwork, ctx.Err())
	default:
	}

	if len(turns) == 0 {
		return "", providerError(m.Name(), conversation.KindMalformed, fmt.Errorf("no turns to complete"))
	}

	last := turns[len(turns)-1]
	if len(turns) == 1 && last.Role == conversation.RoleSystem {
		return buildMockSummary(last.Content), nil
	}

	base := strings.TrimSpace(last.Content)
	if base == "" {
		base = "I am listening."
	}
	return fmt.Sprintf("I heard you: %s", base), nil
}

func buildMockSummary(request string) string {
	lines := 0
	for _, line := range strings.Split(request, "\n") {
		for _, prefix := range []string{"System: ", "User: ", "Assistant: "} {
			if strings.HasPrefix(line, prefix) {
				lines++
				break
			}
		}
	}
	return fmt.Sprintf("Summary of a conversation with %d turns.", lines)
}
