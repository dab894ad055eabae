// Package features derives temporal features from a measurement history and
// assembles the fixed-order vector consumed by the progression classifier.
// Everything here is a pure function of the history; nothing is cached.
package features

import (
	"fmt"

	"github.com/as-progression-tracker/internal/domain"
)

// History is the read side of a measurement ledger
type History interface {
	Count() int
	First() (domain.Measurement, bool)
	Latest() (domain.Measurement, bool)
	Previous() (domain.Measurement, bool)
}

// Derive computes days since the index observation and days since the
// previous observation. Negative or zero deltas are passed through unchanged.
func Derive(h History) (domain.DerivedFeatures, error) {
	first, ok := h.First()
	if !ok {
		return domain.DerivedFeatures{}, domain.ErrInsufficientHistory
	}
	latest, _ := h.Latest()

	derived := domain.DerivedFeatures{
		DaysSinceFirst: latest.Date.DaysSince(first.Date),
	}
	if previous, ok := h.Previous(); ok {
		derived.DaysSincePrevious = latest.Date.DaysSince(previous.Date)
		derived.HasPrevious = true
	}
	return derived, nil
}

// Assemble builds the classifier input from the latest measurement and the
// derived days since first observation. It never returns a partial vector.
func Assemble(h History) (domain.FeatureVector, error) {
	if h.Count() == 0 {
		return domain.FeatureVector{}, fmt.Errorf("assemble feature vector: %w", domain.ErrInsufficientHistory)
	}

	derived, err := Derive(h)
	if err != nil {
		return domain.FeatureVector{}, fmt.Errorf("assemble feature vector: %w", err)
	}
	latest, _ := h.Latest()

	return domain.FeatureVector{
		PSALevel:       latest.PSALevel,
		GlandVolume:    latest.GlandVolume,
		GleasonGrade:   latest.GleasonGrade,
		DaysSinceFirst: derived.DaysSinceFirst,
	}, nil
}
