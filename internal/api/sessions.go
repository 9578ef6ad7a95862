package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"notedeck/internal/quiz"
)

// ErrSessionNotFound indicates an unknown or expired quiz session ID.
var ErrSessionNotFound = errors.New("quiz session not found")

type sessionEntry struct {
	session   *quiz.Session
	updatedAt time.Time
}

// SessionManager holds in-flight quiz sessions keyed by ID. Sessions are
// transient: they live until retired or until the idle sweep drops them.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	maxIdle  time.Duration
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*sessionEntry),
		maxIdle:  2 * time.Hour,
	}
}

// Create registers a session and returns its ID.
func (m *SessionManager) Create(session *quiz.Session) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &sessionEntry{session: session, updatedAt: time.Now().UTC()}
	m.sweepLocked()
	m.mu.Unlock()
	return id
}

// With runs fn against the session under the manager's lock, so concurrent
// requests against the same session see consistent state.
func (m *SessionManager) With(id string, fn func(session *quiz.Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	entry.updatedAt = time.Now().UTC()
	return fn(entry.session)
}

// Delete retires a session.
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

func (m *SessionManager) sweepLocked() {
	cutoff := time.Now().UTC().Add(-m.maxIdle)
	for id, entry := range m.sessions {
		if entry.updatedAt.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
