// Package service composes measurement entry, feature derivation and
// prediction interpretation against an explicit patient session.
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/features"
	"github.com/as-progression-tracker/internal/ledger"
	"github.com/as-progression-tracker/internal/session"
)

// ClassifierSource yields the loaded classifier or the reason it is unavailable
type ClassifierSource interface {
	Get() (domain.Classifier, error)
}

// Trends holds the charted measurement series of a session
type Trends struct {
	PSALevel    []domain.SeriesPoint `json:"psa_level"`
	GlandVolume []domain.SeriesPoint `json:"gland_volume"`
}

// Tracker is the entry point for every session operation
type Tracker struct {
	entry       *MeasurementEntry
	interpreter *Interpreter
	classifiers ClassifierSource
	logger      *logrus.Logger
}

// NewTracker creates a tracker
func NewTracker(entry *MeasurementEntry, interpreter *Interpreter, classifiers ClassifierSource, logger *logrus.Logger) *Tracker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Tracker{
		entry:       entry,
		interpreter: interpreter,
		classifiers: classifiers,
		logger:      logger,
	}
}

// AddMeasurement validates and appends one observation
func (t *Tracker) AddMeasurement(s *session.Session, m domain.Measurement) (EntryReceipt, error) {
	return t.entry.Submit(s, m)
}

// SetPatient validates and stores the static patient attributes
func (t *Tracker) SetPatient(s *session.Session, p domain.PatientInfo) error {
	if err := t.entry.ValidatePatient(p); err != nil {
		return err
	}
	s.SetPatient(p)
	return nil
}

// Measurements returns the session ledger in insertion order
func (t *Tracker) Measurements(s *session.Session) []domain.Measurement {
	var out []domain.Measurement
	_ = s.View(func(l *ledger.Ledger) error {
		out = l.All()
		return nil
	})
	return out
}

// Derived returns the temporal features of the current ledger
func (t *Tracker) Derived(s *session.Session) (domain.DerivedFeatures, error) {
	var derived domain.DerivedFeatures
	err := s.View(func(l *ledger.Ledger) error {
		var err error
		derived, err = features.Derive(l)
		return err
	})
	return derived, err
}

// Trends returns the PSA and gland volume series
func (t *Tracker) Trends(s *session.Session) (Trends, error) {
	var trends Trends
	err := s.View(func(l *ledger.Ledger) error {
		var err error
		if trends.PSALevel, err = l.Series(domain.MetricPSALevel); err != nil {
			return err
		}
		trends.GlandVolume, err = l.Series(domain.MetricGlandVolume)
		return err
	})
	return trends, err
}

// Predict assembles the feature vector from the latest state and classifies it
func (t *Tracker) Predict(ctx context.Context, s *session.Session) (domain.PredictionResult, error) {
	start := time.Now()

	var vector domain.FeatureVector
	err := s.View(func(l *ledger.Ledger) error {
		var err error
		vector, err = features.Assemble(l)
		return err
	})
	if err != nil {
		t.logger.WithError(err).WithField("session_id", s.ID).Info("Prediction requested without history")
		return domain.PredictionResult{}, err
	}

	clf, err := t.classifiers.Get()
	if err != nil {
		t.logger.WithError(err).WithField("session_id", s.ID).Error("Classifier unavailable")
		return domain.PredictionResult{}, err
	}

	result, err := t.interpreter.Predict(ctx, vector, clf)
	if err != nil {
		t.logger.WithError(err).WithField("session_id", s.ID).Error("Prediction failed")
		return domain.PredictionResult{}, err
	}

	s.SetLastPrediction(result)
	t.logger.WithFields(logrus.Fields{
		"session_id":       s.ID,
		"probability":      result.Probability,
		"verdict":          result.Verdict.String(),
		"days_since_first": vector.DaysSinceFirst,
		"processing_time":  time.Since(start),
	}).Info("Prediction completed")
	return result, nil
}

// LastPrediction returns the most recent prediction for the session
func (t *Tracker) LastPrediction(s *session.Session) (domain.PredictionResult, bool) {
	return s.LastPrediction()
}
