package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ent0n29/parley/internal/conversation"
)

func TestNewAutoFallsBackToMockWithoutKeys(t *testing.T) {
	b, err := New(context.Background(), Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if b.Name() != "mock" {
		t.Fatalf("Name() = %q, want mock", b.Name())
	}

	text, err := b.Complete(context.Background(), []conversation.Turn{{Role: conversation.RoleUser, Content: "hello"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(text, "I heard you: hello") {
		t.Fatalf("unexpected response text: %q", text)
	}
}

func TestNewAutoPrefersOpenAI(t *testing.T) {
	b, err := New(context.Background(), Config{Mode: "auto", OpenAIAPIKey: "k", GeminiAPIKey: "g"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if b.Name() != "openai" {
		t.Fatalf("Name() = %q, want openai", b.Name())
	}
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	for _, mode := range []string{"openai", "gemini"} {
		if _, err := New(context.Background(), Config{Mode: mode}); err == nil {
			t.Fatalf("New(%s) expected error without key", mode)
		}
	}
	if _, err := New(context.Background(), Config{Mode: "claude"}); err == nil {
		t.Fatalf("New(unknown) expected error")
	}
}

func TestNewWithFallback(t *testing.T) {
	b, err := New(context.Background(), Config{Mode: "openai", OpenAIAPIKey: "k", FallbackMode: "mock"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fb, ok := b.(*Fallback)
	if !ok {
		t.Fatalf("backend = %T, want *Fallback", b)
	}
	if fb.Primary().Name() != "openai" || fb.Secondary().Name() != "mock" {
		t.Fatalf("chain = %s", fb.Name())
	}
}

func TestMockSummaryRequest(t *testing.T) {
	m := NewMock(Options{})
	req := conversation.RenderSummaryRequest("Summarize:\n\n", conversation.Transcript{
		{Role: conversation.RoleUser, Content: "A"},
		{Role: conversation.RoleAssistant, Content: "B"},
	})
	text, err := m.Complete(context.Background(), []conversation.Turn{{Role: conversation.RoleSystem, Content: req}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "Summary of a conversation with 2 turns." {
		t.Fatalf("text = %q", text)
	}
}

func TestMockHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMock(Options{}).Complete(ctx, []conversation.Turn{{Role: conversation.RoleUser, Content: "x"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestFallbackUsesSecondary(t *testing.T) {
	f := NewFallback(&stubBackend{err: errors.New("boom")}, &stubBackend{text: "fallback"})
	text, err := f.Complete(context.Background(), nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "fallback" {
		t.Fatalf("text = %q, want fallback", text)
	}
}

func TestFallbackSkipsSecondaryOnCanceledContext(t *testing.T) {
	secondary := &stubBackend{text: "fallback"}
	f := NewFallback(&stubBackend{err: context.Canceled}, secondary)
	_, err := f.Complete(context.Background(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if secondary.calls != 0 {
		t.Fatalf("fallback should not be called, calls = %d", secondary.calls)
	}
}

func TestFallbackBothFail(t *testing.T) {
	primary := &stubBackend{err: &conversation.ProviderError{Provider: "stub", Kind: conversation.KindAuth, Err: errors.New("401")}}
	f := NewFallback(primary, &stubBackend{err: errors.New("down")})
	_, err := f.Complete(context.Background(), nil)
	var pe *conversation.ProviderError
	if !errors.As(err, &pe) || pe.Kind != conversation.KindAuth {
		t.Fatalf("error = %v, want auth provider error", err)
	}
}

func TestResolveModel(t *testing.T) {
	m, ok := ResolveModel("OpenAI GPT-4")
	if !ok || m.ID != "gpt-4" {
		t.Fatalf("ResolveModel(display) = %+v, %v", m, ok)
	}
	m, ok = ResolveModel("gpt-3.5-turbo")
	if !ok || m.Name != "OpenAI GPT-3.5" {
		t.Fatalf("ResolveModel(id) = %+v, %v", m, ok)
	}
	m, ok = ResolveModel("gemini-3-pro")
	if !ok || m.Family != FamilyGemini {
		t.Fatalf("ResolveModel(passthrough) = %+v, %v", m, ok)
	}
	if _, ok := ResolveModel("llama"); ok {
		t.Fatalf("ResolveModel(llama) should fail")
	}
	if !Supports(NewMock(Options{}), m) {
		t.Fatalf("mock should support every model")
	}
	if Supports(NewOpenAI("k", "", Options{}, 0), m) {
		t.Fatalf("openai should not support gemini models")
	}
	if n := len(Models(FamilyOpenAI)); n != 3 {
		t.Fatalf("Models(openai) = %d entries, want 3", n)
	}
}

type stubBackend struct {
	text  string
	err   error
	calls int
}

func (s *stubBackend) Complete(context.Context, []conversation.Turn) (string, error) {
	s.calls++
	return s.text, s.err
}

func (s *stubBackend) Name() string             { return "stub" }
func (s *stubBackend) Family() string           { return FamilyAny }
func (s *stubBackend) WithModel(string) Backend { return s }
