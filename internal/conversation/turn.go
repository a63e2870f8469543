package conversation

import (
	"context"
	"strings"
)

// Role tags a turn with its speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Title returns the capitalized role name used when rendering transcripts.
func (r Role) Title() string {
	s := string(r)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Turn is one role-tagged message. Turns are never edited once appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered conversation context sent to a provider.
type Transcript []Turn

// Clone returns an independent copy of t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Equal reports structural equality.
func (t Transcript) Equal(other Transcript) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// Reference is auxiliary content, usually an uploaded file body, prefixed
// into a single user turn.
type Reference struct {
	Name string `json:"name,omitempty"`
	Body string `json:"body"`
}

// CompletionProvider maps an ordered sequence of turns to generated text.
type CompletionProvider interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// SummaryWriter persists a rendered summary to a named destination,
// replacing whatever was there.
type SummaryWriter interface {
	WriteSummary(ctx context.Context, destination, text string) error
}
