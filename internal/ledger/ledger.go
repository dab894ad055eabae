// Package ledger holds the ordered, append-only measurement history of one patient session.
package ledger

import (
	"github.com/as-progression-tracker/internal/domain"
)

// Ledger is an append-only sequence of measurements in insertion order.
// Insertion order is treated as chronological order; entries are never reordered.
// A Ledger is not safe for concurrent mutation; the owning session serializes access.
type Ledger struct {
	entries []domain.Measurement
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{}
}

// FromMeasurements builds a ledger by appending each measurement in order
func FromMeasurements(measurements ...domain.Measurement) *Ledger {
	l := New()
	for _, m := range measurements {
		l.Append(m)
	}
	return l
}

// Append adds a validated measurement to the end of the ledger
func (l *Ledger) Append(m domain.Measurement) {
	l.entries = append(l.entries, m)
}

// All returns a copy of every measurement in insertion order
func (l *Ledger) All() []domain.Measurement {
	out := make([]domain.Measurement, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns the number of measurements
func (l *Ledger) Count() int {
	return len(l.entries)
}

// First returns the index observation. ok is false on an empty ledger.
func (l *Ledger) First() (m domain.Measurement, ok bool) {
	if len(l.entries) == 0 {
		return domain.Measurement{}, false
	}
	return l.entries[0], true
}

// Latest returns the most recently appended measurement. ok is false on an empty ledger.
func (l *Ledger) Latest() (m domain.Measurement, ok bool) {
	if len(l.entries) == 0 {
		return domain.Measurement{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Previous returns the second-to-last measurement. ok is false with fewer than two entries.
func (l *Ledger) Previous() (m domain.Measurement, ok bool) {
	if len(l.entries) < 2 {
		return domain.Measurement{}, false
	}
	return l.entries[len(l.entries)-2], true
}

// Series returns the dated values of one metric in insertion order
func (l *Ledger) Series(metric domain.SeriesMetric) ([]domain.SeriesPoint, error) {
	var value func(domain.Measurement) float64
	switch metric {
	case domain.MetricPSALevel:
		value = func(m domain.Measurement) float64 { return m.PSALevel }
	case domain.MetricGlandVolume:
		value = func(m domain.Measurement) float64 { return m.GlandVolume }
	default:
		return nil, domain.NewValidationError("metric", "unknown series metric", string(metric))
	}

	points := make([]domain.SeriesPoint, 0, len(l.entries))
	for _, m := range l.entries {
		points = append(points, domain.SeriesPoint{Date: m.Date, Value: value(m)})
	}
	return points, nil
}
