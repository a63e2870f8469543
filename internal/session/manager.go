// Package session keeps the registry of live conversations. Each entry owns
// one conversation.Session; callers reach it by id.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/parley/internal/conversation"
	"github.com/ent0n29/parley/internal/persona"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// DefaultEndedRetention is how long ended entries stay readable before the
// janitor drops them.
const DefaultEndedRetention = time.Hour

var (
	ErrNotFound = errors.New("session not found")
	ErrEnded    = errors.New("session has ended")
)

// Entry is a registry record. Conversation is shared between copies and is
// safe for concurrent use.
type Entry struct {
	ID              string
	UserID          string
	PersonaID       string
	Model           string
	Status          Status
	StartedAt       time.Time
	LastActivityAt  time.Time
	// RateLimitStreak counts consecutive rate-limited provider calls.
	RateLimitStreak int
	Conversation    *conversation.Session
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Entry
	inactivityTimeout time.Duration
	endedRetention    time.Duration
	convOpts          []conversation.Option
	onExpire          func(*Entry)
}

// NewManager creates a registry. convOpts are applied to every conversation
// it creates, before persona-specific options.
func NewManager(inactivityTimeout time.Duration, convOpts ...conversation.Option) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Entry),
		inactivityTimeout: inactivityTimeout,
		endedRetention:    DefaultEndedRetention,
		convOpts:          convOpts,
	}
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

func (m *Manager) SetExpireHook(hook func(*Entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create starts a conversation seeded with p and registers it.
func (m *Manager) Create(userID string, p persona.Persona, model string) *Entry {
	now := time.Now().UTC()
	opts := append([]conversation.Option{}, m.convOpts...)
	if p.ReferencePrefix != "" {
		opts = append(opts, conversation.WithReferencePrefix(p.ReferencePrefix))
	}
	e := &Entry{
		ID:             uuid.NewString(),
		UserID:         userID,
		PersonaID:      p.ID,
		Model:          model,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		Conversation:   conversation.New(p.Seed, opts...),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[e.ID] = e
	return clone(e)
}

func (m *Manager) Get(sessionID string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

// Active returns the entry only if it has not ended, refreshing its activity
// time.
func (m *Manager) Active(sessionID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status != StatusActive {
		return nil, ErrEnded
	}
	e.LastActivityAt = time.Now().UTC()
	return clone(e), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	e.LastActivityAt = time.Now().UTC()
	return nil
}

// NoteRateLimit records a rate-limited provider call and returns the number
// of consecutive rate limits for the session, or 0 if it is unknown.
func (m *Manager) NoteRateLimit(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return 0
	}
	e.RateLimitStreak++
	return e.RateLimitStreak
}

// ClearRateLimit resets the streak after any call that was not rate limited.
func (m *Manager) ClearRateLimit(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sessionID]; ok {
		e.RateLimitStreak = 0
	}
}

// Reset re-seeds the conversation from its persona.
func (m *Manager) Reset(sessionID string) (*Entry, error) {
	e, err := m.Active(sessionID)
	if err != nil {
		return nil, err
	}
	seed := ""
	if p, ok := persona.Lookup(e.PersonaID); ok {
		seed = p.Seed
	}
	e.Conversation.Reset(seed)
	return e, nil
}

func (m *Manager) End(sessionID string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	e.Status = StatusEnded
	e.LastActivityAt = time.Now().UTC()
	return clone(e), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.sessions {
		if e.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Entry

	m.mu.Lock()
	for id, e := range m.sessions {
		if e.Status != StatusActive {
			if now.Sub(e.LastActivityAt) >= m.endedRetention {
				delete(m.sessions, id)
			}
			continue
		}
		if now.Sub(e.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		e.Status = StatusEnded
		e.LastActivityAt = now
		expired = append(expired, clone(e))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, e := range expired {
			hook(e)
		}
	}
}

func clone(e *Entry) *Entry {
	c := *e
	return &c
}
