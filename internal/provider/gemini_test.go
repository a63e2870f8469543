package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ent0n29/parley/internal/conversation"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction"`
}

// newGeminiServer records each generateContent request and answers with
// status and body.
func newGeminiServer(t *testing.T, status int, body string, got *geminiRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("path = %q, want generateContent call", r.URL.Path)
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

const geminiReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":" Hi there "}]}}]}`

func TestGeminiCompleteMapsRoles(t *testing.T) {
	var got geminiRequest
	server := newGeminiServer(t, http.StatusOK, geminiReply, &got)

	g, err := NewGemini(context.Background(), "test-key", server.URL, Options{Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	text, err := g.Complete(context.Background(), []conversation.Turn{
		{Role: conversation.RoleSystem, Content: "seed"},
		{Role: conversation.RoleUser, Content: "Hello"},
		{Role: conversation.RoleAssistant, Content: "Hi"},
		{Role: conversation.RoleUser, Content: "Plan the sprint"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "Hi there" {
		t.Fatalf("text = %q, want %q", text, "Hi there")
	}

	if got.SystemInstruction == nil || len(got.SystemInstruction.Parts) != 1 || got.SystemInstruction.Parts[0].Text != "seed" {
		t.Fatalf("systemInstruction = %+v, want seed", got.SystemInstruction)
	}
	wantRoles := []string{"user", "model", "user"}
	if len(got.Contents) != len(wantRoles) {
		t.Fatalf("contents = %+v, want %d entries", got.Contents, len(wantRoles))
	}
	for i, c := range got.Contents {
		if c.Role != wantRoles[i] {
			t.Fatalf("contents[%d].role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
	if got.Contents[2].Parts[0].Text != "Plan the sprint" {
		t.Fatalf("last content = %+v", got.Contents[2])
	}
}

func TestGeminiCompleteSystemOnlyRequest(t *testing.T) {
	var got geminiRequest
	server := newGeminiServer(t, http.StatusOK, geminiReply, &got)

	g, err := NewGemini(context.Background(), "test-key", server.URL, Options{})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	if _, err := g.Complete(context.Background(), []conversation.Turn{
		{Role: conversation.RoleSystem, Content: "Summarize:\n\nUser: A\n"},
	}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if got.SystemInstruction != nil {
		t.Fatalf("systemInstruction = %+v, want none", got.SystemInstruction)
	}
	if len(got.Contents) != 1 || got.Contents[0].Role != "user" || got.Contents[0].Parts[0].Text != "Summarize:\n\nUser: A\n" {
		t.Fatalf("contents = %+v, want one user entry", got.Contents)
	}
}

func TestGeminiCompleteClassifiesRateLimit(t *testing.T) {
	server := newGeminiServer(t, http.StatusTooManyRequests,
		`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, nil)

	g, err := NewGemini(context.Background(), "test-key", server.URL, Options{})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	_, err = g.Complete(context.Background(), []conversation.Turn{{Role: conversation.RoleUser, Content: "Hello"}})
	var pe *conversation.ProviderError
	if !errors.As(err, &pe) || pe.Kind != conversation.KindRateLimit || pe.Provider != "gemini" {
		t.Fatalf("error = %v, want gemini rate_limit provider error", err)
	}
}

func TestGeminiCompleteEmptyTextIsMalformed(t *testing.T) {
	server := newGeminiServer(t, http.StatusOK, `{"candidates":[]}`, nil)

	g, err := NewGemini(context.Background(), "test-key", server.URL, Options{})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	_, err = g.Complete(context.Background(), []conversation.Turn{{Role: conversation.RoleUser, Content: "Hello"}})
	var pe *conversation.ProviderError
	if !errors.As(err, &pe) || pe.Kind != conversation.KindMalformed {
		t.Fatalf("error = %v, want malformed provider error", err)
	}
}
