package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ent0n29/parley/internal/conversation"
	"github.com/ent0n29/parley/internal/reliability"
)

// Gemini calls Google's Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	opts   Options
}

// NewGemini builds a Gemini backend. An empty baseURL uses the SDK default
// endpoint.
func NewGemini(ctx context.Context, apiKey, baseURL string, opts Options) (*Gemini, error) {
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultGeminiModel
	}
	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	}
	if u := strings.TrimSpace(baseURL); u != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(u, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return &Gemini{client: client, opts: opts}, nil
}

func (g *Gemini) Name() string   { return "gemini" }
func (g *Gemini) Family() string { return FamilyGemini }

func (g *Gemini) WithModel(model string) Backend {
	cp := *g
	if strings.TrimSpace(model) != "" {
		cp.opts.Model = model
	}
	return &cp
}

func (g *Gemini) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			system = append(system, t.Content)
		case conversation.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}

	temp := float32(g.opts.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if g.opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(g.opts.MaxOutputTokens)
	}

	// A summarization request is a single system turn; Gemini needs at least
	// one content entry, so it is sent as the user message instead.
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser))
	} else if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	res, err := g.client.Models.GenerateContent(ctx, g.opts.Model, contents, cfg)
	if err != nil {
		return "", providerError(g.Name(), classifyGeminiError(err), fmt.Errorf("gemini generate content: %w", err))
	}

	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", providerError(g.Name(), conversation.KindMalformed, errors.New("gemini returned empty text"))
	}
	return text, nil
}

func classifyGeminiError(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return reliability.ClassifyHTTPStatus(apiErr.Code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return conversation.KindNetwork
	}
	return conversation.KindUnknown
}
