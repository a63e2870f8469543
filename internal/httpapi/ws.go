package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/parley/internal/observability"
	"github.com/ent0n29/parley/internal/protocol"
)

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if _, err := s.sessions.Active(sessionID); err != nil {
		respondSessionError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 64)
	outbound := make(chan any, 64)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		defer close(outbound)
		s.runConnection(ctx, sessionID, inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				// Drain so the runner never blocks on a dead connection.
				for range outbound {
				}
				return
			}
			if t, ok := messageTypeOf(msg); ok {
				s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			parsed = protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Detail:    err.Error(),
			}
		} else if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

// runConnection handles client messages in arrival order, so turns on one
// connection never interleave. Parse failures arrive already rendered as
// error events and are forwarded unchanged.
func (s *Server) runConnection(ctx context.Context, sessionID string, inbound <-chan any, outbound chan<- any) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)
	for msg := range inbound {
		var out any
		switch m := msg.(type) {
		case protocol.ErrorEvent:
			out = m
		case protocol.Submit:
			if m.SessionID != sessionID {
				out = mismatchEvent(sessionID)
				break
			}
			reply, transcript, err := s.submit(ctx, sessionID, m.Text, m.ReferenceValue())
			if err != nil {
				out = errorEvent(sessionID, err)
				break
			}
			out = protocol.AssistantReply{
				Type:      protocol.TypeAssistantReply,
				SessionID: sessionID,
				Text:      reply,
				Turns:     len(transcript),
			}
		case protocol.Summarize:
			if m.SessionID != sessionID {
				out = mismatchEvent(sessionID)
				break
			}
			res, err := s.summarize(ctx, sessionID, m.Destination)
			if err != nil {
				out = errorEvent(sessionID, err)
				break
			}
			out = protocol.SummarySaved{
				Type:        protocol.TypeSummarySaved,
				SessionID:   sessionID,
				Destination: res.Destination,
				Text:        res.Summary,
			}
		case protocol.Reset:
			if m.SessionID != sessionID {
				out = mismatchEvent(sessionID)
				break
			}
			if _, err := s.sessions.Reset(sessionID); err != nil {
				out = errorEvent(sessionID, err)
				break
			}
			s.metrics.SessionEvents.WithLabelValues("reset").Inc()
			out = protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "session_reset"}
		default:
			log.Warn("unhandled websocket message", "type", messageTypeName(msg))
			continue
		}

		select {
		case <-ctx.Done():
		case outbound <- out:
		}
	}
}

func errorEvent(sessionID string, err error) protocol.ErrorEvent {
	_, body := errorFor(err)
	return protocol.ErrorEvent{
		Type:         protocol.TypeErrorEvent,
		SessionID:    sessionID,
		Code:         body.Code,
		Kind:         body.Kind,
		Retryable:    body.Retryable,
		RetryAfterMS: body.RetryAfterMS,
		Detail:       body.Error,
	}
}

func mismatchEvent(sessionID string) protocol.ErrorEvent {
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      "session_mismatch",
		Detail:    "message session_id does not match this connection",
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.Submit:
		return m.Type, true
	case protocol.Summarize:
		return m.Type, true
	case protocol.Reset:
		return m.Type, true
	case protocol.AssistantReply:
		return m.Type, true
	case protocol.SummarySaved:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}

func messageTypeName(v any) string {
	if t, ok := messageTypeOf(v); ok {
		return string(t)
	}
	return "unknown"
}
