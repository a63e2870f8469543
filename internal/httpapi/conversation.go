package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/parley/internal/conversation"
	"github.com/ent0n29/parley/internal/observability"
	"github.com/ent0n29/parley/internal/persona"
	"github.com/ent0n29/parley/internal/policy"
	"github.com/ent0n29/parley/internal/reliability"
	"github.com/ent0n29/parley/internal/session"
	"github.com/ent0n29/parley/internal/summary"
)

// maxReferenceBytes caps uploaded reference files.
const maxReferenceBytes = 1 << 20

// Suggested client delay after a rate-limited provider call. It doubles with
// each consecutive rate limit on the same session.
const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// backoffError carries the retry delay computed for a rate-limited call.
type backoffError struct {
	err   error
	delay time.Duration
}

func (e *backoffError) Error() string { return e.err.Error() }
func (e *backoffError) Unwrap() error { return e.err }

type submitRequest struct {
	Text          string `json:"text"`
	Reference     string `json:"reference"`
	ReferenceName string `json:"reference_name"`
}

type submitResponse struct {
	Reply      string                  `json:"reply"`
	Transcript conversation.Transcript `json:"transcript"`
}

type summarizeRequest struct {
	Destination string `json:"destination"`
}

type summarizeResponse struct {
	Summary     string `json:"summary"`
	Destination string `json:"destination"`
	Redacted    bool   `json:"redacted,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := readSubmitRequest(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var ref *conversation.Reference
	if req.Reference != "" {
		ref = &conversation.Reference{Name: req.ReferenceName, Body: req.Reference}
	}
	reply, transcript, err := s.submit(r.Context(), chi.URLParam(r, "id"), req.Text, ref)
	if err != nil {
		respondConversationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, submitResponse{Reply: reply, Transcript: transcript})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res, err := s.summarize(r.Context(), chi.URLParam(r, "id"), req.Destination)
	if err != nil {
		respondConversationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleReadSummary(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Get(chi.URLParam(r, "id")); err != nil {
		respondSessionError(w, err)
		return
	}
	dest := s.destination(r.URL.Query().Get("destination"))
	text, err := s.summaries.ReadSummary(r.Context(), dest)
	switch {
	case errors.Is(err, summary.ErrNotFound):
		respondError(w, http.StatusNotFound, "summary_not_found", err.Error())
		return
	case errors.Is(err, summary.ErrInvalidDestination):
		respondError(w, http.StatusBadRequest, "invalid_destination", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "persistence_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summarizeResponse{Summary: text, Destination: dest})
}

// submit runs one turn against the session's conversation.
func (s *Server) submit(ctx context.Context, sessionID, text string, ref *conversation.Reference) (string, conversation.Transcript, error) {
	e, err := s.sessions.Active(sessionID)
	if err != nil {
		return "", nil, err
	}
	if p, ok := persona.Lookup(e.PersonaID); ok && p.RequiresReference && (ref == nil || ref.Body == "") {
		return "", nil, fmt.Errorf("%w: persona %s requires reference content", conversation.ErrInvalidInput, p.ID)
	}

	log := observability.LoggerFromContext(ctx).With("session_id", e.ID)
	reply, transcript, err := e.Conversation.Submit(ctx, text, ref, s.backendFor(e))
	err = s.withBackoff(e.ID, err)
	if err != nil {
		log.Warn("submit failed", "error", err)
		return "", nil, err
	}
	s.metrics.SessionEvents.WithLabelValues("submitted").Inc()
	log.Info("turn completed", "turns", len(transcript))
	return reply, transcript, nil
}

// summarize condenses the session transcript with its persona template and
// persists the result.
func (s *Server) summarize(ctx context.Context, sessionID, destination string) (summarizeResponse, error) {
	e, err := s.sessions.Active(sessionID)
	if err != nil {
		return summarizeResponse{}, err
	}
	template := persona.DefaultSummaryTemplate
	if p, ok := persona.Lookup(e.PersonaID); ok {
		template = p.SummaryTemplate
	}
	dest := s.destination(destination)
	log := observability.LoggerFromContext(ctx).With("session_id", e.ID, "destination", dest)

	text, err := e.Conversation.Summarize(ctx, s.summarizer, template)
	err = s.withBackoff(e.ID, err)
	if err != nil {
		log.Warn("summarize failed", "error", err)
		return summarizeResponse{}, err
	}

	redacted := false
	if s.cfg.SummaryRedactPII {
		r := policy.Redact(text)
		text, redacted = r.Text, r.Changed()
		if redacted {
			log.Info("summary redacted", "counts", r.Counts)
		}
	}

	if err := e.Conversation.PersistSummary(ctx, text, dest); err != nil {
		s.metrics.SummariesPersisted.WithLabelValues("error").Inc()
		log.Error("persist summary failed", "error", err)
		return summarizeResponse{}, err
	}
	s.metrics.SummariesPersisted.WithLabelValues("ok").Inc()
	log.Info("summary persisted", "chars", len(text), "redacted", redacted)
	return summarizeResponse{Summary: text, Destination: dest, Redacted: redacted}, nil
}

// withBackoff tracks consecutive rate limits for the session and attaches
// the resulting retry delay to err.
func (s *Server) withBackoff(sessionID string, err error) error {
	switch {
	case err == nil:
		s.sessions.ClearRateLimit(sessionID)
		return nil
	case !conversation.IsProviderError(err):
		return err
	case conversation.AsProviderError(err).Kind != conversation.KindRateLimit:
		s.sessions.ClearRateLimit(sessionID)
		return err
	}
	streak := s.sessions.NoteRateLimit(sessionID)
	return &backoffError{
		err:   err,
		delay: reliability.ExponentialBackoff(streak-1, retryBaseDelay, retryMaxDelay),
	}
}

func (s *Server) backendFor(e *session.Entry) conversation.CompletionProvider {
	if e.Model == "" {
		return s.chat
	}
	return s.chat.WithModel(e.Model)
}

func (s *Server) destination(requested string) string {
	if d := strings.TrimSpace(requested); d != "" {
		return d
	}
	if d := strings.TrimSpace(s.cfg.SummaryDefaultDestination); d != "" {
		return d
	}
	return summary.DefaultDestination
}

// readSubmitRequest accepts either a JSON body or a multipart form with a
// "text" field and an optional "reference" file.
func readSubmitRequest(w http.ResponseWriter, r *http.Request) (submitRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req submitRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
			return submitRequest{}, err
		}
		return req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReferenceBytes+64<<10)
	if err := r.ParseMultipartForm(maxReferenceBytes); err != nil {
		return submitRequest{}, fmt.Errorf("parse multipart form: %w", err)
	}
	req := submitRequest{Text: r.FormValue("text")}

	file, header, err := r.FormFile("reference")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return submitRequest{}, fmt.Errorf("read reference: %w", err)
	}
	defer file.Close()

	if !persona.AllowedReference(header.Filename) {
		return submitRequest{}, fmt.Errorf("reference %q must have one of the extensions %s",
			header.Filename, strings.Join(persona.ReferenceExtensions(), ", "))
	}
	body, err := io.ReadAll(io.LimitReader(file, maxReferenceBytes+1))
	if err != nil {
		return submitRequest{}, fmt.Errorf("read reference: %w", err)
	}
	if len(body) > maxReferenceBytes {
		return submitRequest{}, fmt.Errorf("reference exceeds %d bytes", maxReferenceBytes)
	}
	req.Reference = string(body)
	req.ReferenceName = header.Filename
	return req, nil
}

// errorFor maps workflow errors onto HTTP status and response body.
func errorFor(err error) (int, errorResponse) {
	var pe *conversation.ProviderError
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, errorResponse{Code: "session_not_found", Error: err.Error()}
	case errors.Is(err, session.ErrEnded):
		return http.StatusGone, errorResponse{Code: "session_ended", Error: err.Error()}
	case errors.Is(err, conversation.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Code: "invalid_input", Error: err.Error()}
	case errors.Is(err, conversation.ErrEmptyTranscript):
		return http.StatusConflict, errorResponse{Code: "empty_transcript", Error: err.Error()}
	case errors.Is(err, conversation.ErrReset):
		return http.StatusConflict, errorResponse{Code: "conversation_reset", Error: err.Error()}
	case conversation.IsPersistenceError(err):
		if errors.Is(err, summary.ErrInvalidDestination) {
			return http.StatusBadRequest, errorResponse{Code: "invalid_destination", Error: err.Error()}
		}
		return http.StatusInternalServerError, errorResponse{Code: "persistence_error", Error: err.Error()}
	case errors.As(err, &pe):
		res := errorResponse{
			Code:      "provider_error",
			Error:     err.Error(),
			Kind:      pe.Kind,
			Retryable: reliability.IsRetryableKind(pe.Kind),
		}
		if pe.Kind == conversation.KindRateLimit {
			delay := retryBaseDelay
			var be *backoffError
			if errors.As(err, &be) {
				delay = be.delay
			}
			res.RetryAfterMS = delay.Milliseconds()
		}
		return http.StatusBadGateway, res
	default:
		return http.StatusInternalServerError, errorResponse{Code: "internal_error", Error: err.Error()}
	}
}

func respondConversationError(w http.ResponseWriter, err error) {
	status, body := errorFor(err)
	respondJSON(w, status, body)
}
