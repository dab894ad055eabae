// Package session scopes one measurement ledger to one logical user session.
package session

import (
	"sync"
	"time"

	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/ledger"
)

// Session owns exactly one patient's ledger plus the last prediction shown.
// All access goes through the methods below, which serialize mutation.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu             sync.RWMutex
	ledger         *ledger.Ledger
	patient        domain.PatientInfo
	lastPrediction *domain.PredictionResult
}

// Snapshot is a consistent copy of session state for presentation
type Snapshot struct {
	ID             string                   `json:"session_id"`
	CreatedAt      time.Time                `json:"created_at"`
	Patient        domain.PatientInfo       `json:"patient"`
	Measurements   []domain.Measurement     `json:"measurements"`
	LastPrediction *domain.PredictionResult `json:"last_prediction,omitempty"`
}

// New creates a session with an empty ledger
func New(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		ledger:    ledger.New(),
	}
}

// Update runs fn with exclusive access to the ledger
func (s *Session) Update(fn func(l *ledger.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ledger)
}

// View runs fn with shared read access to the ledger. fn must not append.
func (s *Session) View(fn func(l *ledger.Ledger) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.ledger)
}

// Patient returns the static patient attributes
func (s *Session) Patient() domain.PatientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.patient
}

// SetPatient replaces the static patient attributes
func (s *Session) SetPatient(p domain.PatientInfo) {
	s.mu.Lock()
	s.patient = p
	s.mu.Unlock()
}

// LastPrediction returns the most recent prediction, if any
func (s *Session) LastPrediction() (domain.PredictionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastPrediction == nil {
		return domain.PredictionResult{}, false
	}
	return *s.lastPrediction, true
}

// SetLastPrediction records the prediction surfaced to the user
func (s *Session) SetLastPrediction(r domain.PredictionResult) {
	s.mu.Lock()
	s.lastPrediction = &r
	s.mu.Unlock()
}

// Snapshot copies the full session state
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		Patient:      s.patient,
		Measurements: s.ledger.All(),
	}
	if s.lastPrediction != nil {
		p := *s.lastPrediction
		snap.LastPrediction = &p
	}
	return snap
}
