// Package summary persists conversation summaries under named destinations.
// Every write replaces the previous content; there is no versioning.
package summary

import (
	"context"
	"errors"
)

// DefaultDestination is used when a caller does not name one.
const DefaultDestination = "summary.txt"

var (
	ErrNotFound           = errors.New("summary not found")
	ErrInvalidDestination = errors.New("invalid summary destination")
)

// Store writes and reads summaries by destination.
type Store interface {
	WriteSummary(ctx context.Context, destination, text string) error
	ReadSummary(ctx context.Context, destination string) (string, error)
	Close() error
}
