// Package conversation holds a single interactive conversation: an
// append-only transcript, the submit/summarize workflow against a completion
// provider, and summary persistence.
package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/ent0n29/parley/internal/summary"
)

// DefaultReferencePrefix introduces reference content inside a user turn.
const DefaultReferencePrefix = "The following is reference content:\n"

const referenceSeparator = "\n\n"

// Option customizes a Session.
type Option func(*Session)

// WithSummaryWriter sets where PersistSummary writes. The default writes
// plain files relative to the working directory.
func WithSummaryWriter(w SummaryWriter) Option {
	return func(s *Session) {
		if w != nil {
			s.writer = w
		}
	}
}

// WithReferencePrefix overrides the text placed before reference content.
func WithReferencePrefix(prefix string) Option {
	return func(s *Session) {
		s.referencePrefix = prefix
	}
}

// WithWindow bounds the turns sent to the provider on Submit to the seed turn
// plus the most recent maxTurns turns. The stored transcript is unaffected.
// Zero or negative means unbounded.
func WithWindow(maxTurns int) Option {
	return func(s *Session) {
		if maxTurns < 0 {
			maxTurns = 0
		}
		s.window = maxTurns
	}
}

// Session owns one transcript for the lifetime of an interactive session.
type Session struct {
	// submitMu serializes Submit calls across the provider round trip.
	submitMu sync.Mutex

	mu              sync.Mutex
	transcript      Transcript
	generation      uint64
	writer          SummaryWriter
	referencePrefix string
	window          int
}

// New creates a session. A non-blank seed becomes the initial system turn.
func New(seed string, opts ...Option) *Session {
	s := &Session{
		writer:          summary.NewFileStore(""),
		referencePrefix: DefaultReferencePrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transcript = seedTranscript(seed)
	return s
}

// Reset re-initializes the transcript in place.
func (s *Session) Reset(seed string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = seedTranscript(seed)
	s.generation++
}

// Transcript returns a copy of the stored transcript.
func (s *Session) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// Submit sends userText (optionally prefixed with ref) together with the
// transcript to provider. On success the user and assistant turns are
// appended; on failure the stored transcript is left unchanged. Concurrent
// calls run one at a time. If Reset runs while the provider call is pending
// the reply is discarded and ErrReset is returned.
func (s *Session) Submit(ctx context.Context, userText string, ref *Reference, provider CompletionProvider) (string, Transcript, error) {
	if ref != nil && ref.Body == "" {
		ref = nil
	}
	if ref == nil && strings.TrimSpace(userText) == "" {
		return "", nil, ErrInvalidInput
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	working := s.transcript.Clone()
	generation := s.generation
	prefix := s.referencePrefix
	window := s.window
	s.mu.Unlock()

	working = append(working, Turn{Role: RoleUser, Content: buildUserContent(prefix, userText, ref)})

	reply, err := provider.Complete(ctx, windowTurns(working, window))
	if err != nil {
		return "", nil, AsProviderError(err)
	}

	working = append(working, Turn{Role: RoleAssistant, Content: reply})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return "", nil, ErrReset
	}
	s.transcript = working
	return reply, working.Clone(), nil
}

// Summarize asks provider to condense the whole transcript using
// instructionTemplate. The transcript is not modified.
func (s *Session) Summarize(ctx context.Context, provider CompletionProvider, instructionTemplate string) (string, error) {
	snapshot := s.Transcript()
	if len(snapshot) == 0 {
		return "", ErrEmptyTranscript
	}

	request := RenderSummaryRequest(instructionTemplate, snapshot)
	text, err := provider.Complete(ctx, []Turn{{Role: RoleSystem, Content: request}})
	if err != nil {
		return "", AsProviderError(err)
	}
	return text, nil
}

// PersistSummary overwrites destination with summaryText.
func (s *Session) PersistSummary(ctx context.Context, summaryText, destination string) error {
	if err := s.writer.WriteSummary(ctx, destination, summaryText); err != nil {
		return &PersistenceError{Destination: destination, Err: err}
	}
	return nil
}

// RenderSummaryRequest renders every turn as "<Role>: <content>" in order,
// prefixed by template.
func RenderSummaryRequest(template string, t Transcript) string {
	var b strings.Builder
	b.WriteString(template)
	for _, turn := range t {
		b.WriteString(turn.Role.Title())
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func buildUserContent(prefix, userText string, ref *Reference) string {
	if ref == nil {
		return userText
	}
	return prefix + ref.Body + referenceSeparator + userText
}

func seedTranscript(seed string) Transcript {
	if strings.TrimSpace(seed) == "" {
		return Transcript{}
	}
	return Transcript{{Role: RoleSystem, Content: seed}}
}

func windowTurns(t Transcript, maxTurns int) []Turn {
	if maxTurns <= 0 {
		return t
	}
	var head []Turn
	rest := []Turn(t)
	if len(rest) > 0 && rest[0].Role == RoleSystem {
		head = rest[:1]
		rest = rest[1:]
	}
	if len(rest) <= maxTurns {
		return t
	}
	out := make([]Turn, 0, len(head)+maxTurns)
	out = append(out, head...)
	out = append(out, rest[len(rest)-maxTurns:]...)
	return out
}
