package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/parley/internal/conversation"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeSubmit         MessageType = "submit"
	TypeSummarize      MessageType = "summarize"
	TypeReset          MessageType = "reset"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeSummarySaved   MessageType = "summary_saved"
	TypeSystemEvent    MessageType = "system_event"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type Submit struct {
	Type          MessageType `json:"type"`
	SessionID     string      `json:"session_id"`
	Text          string      `json:"text"`
	Reference     string      `json:"reference,omitempty"`
	ReferenceName string      `json:"reference_name,omitempty"`
}

// ReferenceValue returns the attached reference, or nil when none was sent.
func (s Submit) ReferenceValue() *conversation.Reference {
	if s.Reference == "" {
		return nil
	}
	return &conversation.Reference{Name: s.ReferenceName, Body: s.Reference}
}

type Summarize struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Destination string      `json:"destination,omitempty"`
}

type Reset struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type AssistantReply struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	Turns     int         `json:"turns"`
}

type SummarySaved struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Destination string      `json:"destination"`
	Text        string      `json:"text"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	Code         string      `json:"code"`
	Kind         string      `json:"kind,omitempty"`
	Retryable    bool        `json:"retryable"`
	RetryAfterMS int64       `json:"retry_after_ms,omitempty"`
	Detail       string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeSubmit:
		var msg Submit
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid submit: missing session_id")
		}
		if strings.TrimSpace(msg.Text) == "" && msg.Reference == "" {
			return nil, errors.New("invalid submit: text or reference required")
		}
		return msg, nil
	case TypeSummarize:
		var msg Summarize
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid summarize: missing session_id")
		}
		return msg, nil
	case TypeReset:
		var msg Reset
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid reset: missing session_id")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
