package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/features"
	"github.com/as-progression-tracker/internal/ledger"
	"github.com/as-progression-tracker/internal/session"
)

// EntryReceipt is returned for an accepted measurement so the caller can
// show the interval since the previous visit right away
type EntryReceipt struct {
	Measurement       domain.Measurement `json:"measurement"`
	Count             int                `json:"count"`
	FirstMeasurement  bool               `json:"first_measurement"`
	DaysSincePrevious int                `json:"days_since_previous"`
}

// MeasurementEntry validates observations and appends them to a session ledger
type MeasurementEntry struct {
	chronologyPolicy string
	logger           *logrus.Logger
}

// NewMeasurementEntry creates the entry component with the given chronology policy
func NewMeasurementEntry(chronologyPolicy string, logger *logrus.Logger) *MeasurementEntry {
	if chronologyPolicy == "" {
		chronologyPolicy = domain.ChronologyAccept
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &MeasurementEntry{
		chronologyPolicy: chronologyPolicy,
		logger:           logger,
	}
}

// Validate checks a measurement against the declared ranges
func (e *MeasurementEntry) Validate(m domain.Measurement) error {
	if m.Date.IsZero() {
		return domain.NewValidationError("date", "date is required", nil)
	}
	if math.IsNaN(m.PSALevel) || m.PSALevel < domain.MinPSALevel || m.PSALevel > domain.MaxPSALevel {
		return domain.NewValidationError("psa_level",
			fmt.Sprintf("must be between %g and %g ng/mL", domain.MinPSALevel, domain.MaxPSALevel), m.PSALevel)
	}
	if math.IsNaN(m.GlandVolume) || m.GlandVolume < domain.MinGlandVolume || m.GlandVolume > domain.MaxGlandVolume {
		return domain.NewValidationError("gland_volume",
			fmt.Sprintf("must be between %g and %g cm³", domain.MinGlandVolume, domain.MaxGlandVolume), m.GlandVolume)
	}
	if m.GleasonGrade < domain.MinGleasonGrade || m.GleasonGrade > domain.MaxGleasonGrade {
		return domain.NewValidationError("gleason_grade",
			fmt.Sprintf("must be an integer between %d and %d", domain.MinGleasonGrade, domain.MaxGleasonGrade), m.GleasonGrade)
	}
	return nil
}

// Submit validates m and appends it to the session ledger. On rejection the
// ledger is left unchanged.
func (e *MeasurementEntry) Submit(s *session.Session, m domain.Measurement) (EntryReceipt, error) {
	var receipt EntryReceipt

	err := s.Update(func(l *ledger.Ledger) error {
		if err := e.Validate(m); err != nil {
			return err
		}
		if err := e.checkChronology(l, m); err != nil {
			return err
		}

		l.Append(m)

		derived, err := features.Derive(l)
		if err != nil {
			return err
		}
		receipt = EntryReceipt{
			Measurement:       m,
			Count:             l.Count(),
			FirstMeasurement:  !derived.HasPrevious,
			DaysSincePrevious: derived.DaysSincePrevious,
		}
		return nil
	})
	if err != nil {
		e.logger.WithError(err).WithField("session_id", s.ID).Warn("Measurement rejected")
		return EntryReceipt{}, err
	}

	e.logger.WithFields(logrus.Fields{
		"session_id":          s.ID,
		"date":                m.Date.String(),
		"count":               receipt.Count,
		"first_measurement":   receipt.FirstMeasurement,
		"days_since_previous": receipt.DaysSincePrevious,
	}).Info("Measurement accepted")
	return receipt, nil
}

// ValidatePatient checks the static patient attributes
func (e *MeasurementEntry) ValidatePatient(p domain.PatientInfo) error {
	if p.Age < domain.MinPatientAge || p.Age > domain.MaxPatientAge {
		return domain.NewValidationError("age",
			fmt.Sprintf("must be between %d and %d", domain.MinPatientAge, domain.MaxPatientAge), p.Age)
	}
	return nil
}

func (e *MeasurementEntry) checkChronology(l *ledger.Ledger, m domain.Measurement) error {
	if e.chronologyPolicy != domain.ChronologyRejectOutOfOrder {
		return nil
	}
	latest, ok := l.Latest()
	if ok && m.Date.Before(latest.Date) {
		return domain.NewValidationError("date",
			fmt.Sprintf("must not be earlier than the latest measurement (%s)", latest.Date), m.Date.String())
	}
	return nil
}
