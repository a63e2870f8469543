package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/parley/internal/observability"
	"github.com/ent0n29/parley/internal/persona"
	"github.com/ent0n29/parley/internal/provider"
	"github.com/ent0n29/parley/internal/session"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}
	if strings.TrimSpace(req.PersonaID) == "" {
		req.PersonaID = s.cfg.DefaultPersona
	}
	p, ok := persona.Lookup(req.PersonaID)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_persona", "unknown persona "+req.PersonaID)
		return
	}

	model := ""
	if strings.TrimSpace(req.Model) != "" {
		m, ok := provider.ResolveModel(req.Model)
		if !ok || !provider.Supports(s.chat, m) {
			respondError(w, http.StatusBadRequest, "invalid_model", "model "+req.Model+" is not served by provider "+s.chat.Name())
			return
		}
		model = m.ID
	}

	e := s.sessions.Create(req.UserID, p, model)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()
	observability.LoggerFromContext(r.Context()).Info("session created",
		"session_id", e.ID,
		"persona_id", e.PersonaID,
		"model", e.Model,
	)

	respondJSON(w, http.StatusCreated, session.NewView(e, s.sessions.InactivityTimeout()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session.NewView(e, s.sessions.InactivityTimeout()))
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	e, err := s.sessions.Reset(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	s.metrics.SessionEvents.WithLabelValues("reset").Inc()
	respondJSON(w, http.StatusOK, session.NewView(e, s.sessions.InactivityTimeout()))
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	e, err := s.sessions.End(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, session.NewView(e, s.sessions.InactivityTimeout()))
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEnded):
		respondError(w, http.StatusGone, "session_ended", err.Error())
	default:
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	}
}
