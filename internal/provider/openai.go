package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/parley/internal/conversation"
	"github.com/ent0n29/parley/internal/reliability"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	apiKey  string
	baseURL string
	opts    Options
	client  *http.Client
}

func NewOpenAI(apiKey, baseURL string, opts Options, timeout time.Duration) *OpenAI {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		opts:    opts,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *OpenAI) Name() string   { return "openai" }
func (p *OpenAI) Family() string { return FamilyOpenAI }

func (p *OpenAI) WithModel(model string) Backend {
	cp := *p
	if strings.TrimSpace(model) != "" {
		cp.opts.Model = model
	}
	return &cp
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAI) Complete(ctx context.Context, turns []conversation.Turn) (string, error) {
	msgs := make([]chatMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, chatMessage{Role: string(t.Role), Content: t.Content})
	}
	payload, err := json.Marshal(chatRequest{
		Model:       p.opts.Model,
		Messages:    msgs,
		MaxTokens:   p.opts.MaxOutputTokens,
		Temperature: p.opts.Temperature,
	})
	if err != nil {
		return "", providerError(p.Name(), conversation.KindMalformed, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", providerError(p.Name(), conversation.KindUnknown, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	res, err := p.client.Do(req)
	if err != nil {
		return "", providerError(p.Name(), conversation.KindNetwork, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return "", providerError(p.Name(), conversation.KindNetwork, fmt.Errorf("read response: %w", err))
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", providerError(p.Name(), reliability.ClassifyHTTPStatus(res.StatusCode),
			fmt.Errorf("openai status %d: %s", res.StatusCode, truncate(string(body), 400)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", providerError(p.Name(), conversation.KindMalformed,
			fmt.Errorf("decode response: %s", truncate(string(body), 400)))
	}
	if len(parsed.Choices) == 0 {
		return "", providerError(p.Name(), conversation.KindMalformed, fmt.Errorf("response has no choices"))
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", providerError(p.Name(), conversation.KindMalformed, fmt.Errorf("response has empty content"))
	}
	return text, nil
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
