package conversation

import (
	"errors"
	"fmt"

	"github.com/ent0n29/parley/internal/reliability"
)

var (
	// ErrInvalidInput is returned by Submit when there is nothing to send.
	ErrInvalidInput = errors.New("nothing to submit: text is empty and no reference was provided")
	// ErrEmptyTranscript is returned by Summarize when the transcript has no turns.
	ErrEmptyTranscript = errors.New("transcript is empty")
	// ErrReset is returned by Submit when the session was re-initialized
	// while the reply was pending. The reply is dropped.
	ErrReset = errors.New("conversation was reset before the reply arrived")
)

// Provider error kinds. The session never branches on these; they exist for
// callers that want finer-grained handling.
const (
	KindNetwork   = reliability.KindNetwork
	KindAuth      = reliability.KindAuth
	KindRateLimit = reliability.KindRateLimit
	KindMalformed = reliability.KindMalformed
	KindUnknown   = reliability.KindUnknown
)

// ProviderError wraps any failure from a completion backend.
type ProviderError struct {
	Provider string
	Kind     string
	Err      error
}

func (e *ProviderError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = KindUnknown
	}
	if e.Provider == "" {
		return fmt.Sprintf("provider error (%s): %v", kind, e.Err)
	}
	return fmt.Sprintf("provider %s error (%s): %v", e.Provider, kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure to write a summary.
type PersistenceError struct {
	Destination string
	Err         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist summary to %q: %v", e.Destination, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AsProviderError returns err as a *ProviderError, wrapping it if needed.
func AsProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProviderError{Kind: KindUnknown, Err: err}
}

// IsProviderError reports whether err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsPersistenceError reports whether err is or wraps a *PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
