package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/domain"
)

// Manager is the registry of live sessions. Sessions idle past the TTL or
// pushed out by the capacity limit are torn down along with their ledger.
type Manager struct {
	sessions *expirable.LRU[string, *Session]
	logger   *logrus.Logger
}

// NewManager creates a session registry
func NewManager(config domain.SessionConfig, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	size := config.MaxSessions
	if size <= 0 {
		size = 1000
	}

	m := &Manager{logger: logger}
	m.sessions = expirable.NewLRU[string, *Session](size, func(id string, s *Session) {
		logger.WithField("session_id", id).Debug("Session evicted")
	}, config.TTL)
	return m
}

// Create starts a new session with an empty ledger
func (m *Manager) Create() *Session {
	s := New(uuid.New().String())
	m.sessions.Add(s.ID, s)
	m.logger.WithField("session_id", s.ID).Info("Session created")
	return s
}

// Get looks up a live session and restarts its idle timer
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	m.sessions.Add(id, s)
	return s, nil
}

// End tears down a session
func (m *Manager) End(id string) error {
	if !m.sessions.Remove(id) {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	m.logger.WithField("session_id", id).Info("Session ended")
	return nil
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	return m.sessions.Len()
}
