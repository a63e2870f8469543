package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ent0n29/parley/internal/config"
	"github.com/ent0n29/parley/internal/observability"
	"github.com/ent0n29/parley/internal/persona"
	"github.com/ent0n29/parley/internal/provider"
	"github.com/ent0n29/parley/internal/session"
	"github.com/ent0n29/parley/internal/summary"
)

type Server struct {
	cfg        config.Config
	sessions   *session.Manager
	chat       provider.Backend
	summarizer provider.Backend
	summaries  summary.Store
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
}

// New builds the HTTP surface. chat answers user turns; summarizer condenses
// transcripts and may be the same backend bound to a different model.
func New(cfg config.Config, sessions *session.Manager, chat, summarizer provider.Backend, summaries summary.Store, metrics *observability.Metrics) *Server {
	if summarizer == nil {
		summarizer = chat
	}
	return &Server{
		cfg:        cfg,
		sessions:   sessions,
		chat:       chat,
		summarizer: summarizer,
		summaries:  summaries,
		metrics:    metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only connect from the same origin unless configured otherwise.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/personas", s.handleListPersonas)
	r.Get("/v1/models", s.handleListModels)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/ws", s.handleSessionWS)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/messages", s.handleSubmit)
			r.Post("/summary", s.handleSummarize)
			r.Get("/summary", s.handleReadSummary)
			r.Post("/reset", s.handleResetSession)
			r.Post("/end", s.handleEndSession)
		})
	})

	return r
}

// requestLogger tags each request with an id and logs it on completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := observability.WithRequestID(r.Context(), reqID)

		next.ServeHTTP(w, r.WithContext(ctx))

		observability.LoggerFromContext(ctx).Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": s.chat.Name(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"provider":        s.chat.Name(),
		"summarizer":      s.summarizer.Name(),
		"summary_backend": s.summaryBackend(),
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"personas":             persona.List(),
		"default":              s.cfg.DefaultPersona,
		"reference_extensions": persona.ReferenceExtensions(),
	})
}

func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"provider": s.chat.Name(),
		"models":   provider.Models(s.chat.Family()),
	})
}

func (s *Server) summaryBackend() string {
	backend := strings.TrimSpace(s.cfg.SummaryBackend)
	if backend == "" {
		return "file"
	}
	return backend
}

type errorResponse struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	Kind         string `json:"kind,omitempty"`
	Retryable    bool   `json:"retryable,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
