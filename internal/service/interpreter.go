package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/as-progression-tracker/internal/domain"
)

// Interpreter invokes the classifier and maps its probability to a verdict
type Interpreter struct {
	threshold float64
}

// NewInterpreter creates an interpreter. The threshold must lie strictly between 0 and 1.
func NewInterpreter(threshold float64) (*Interpreter, error) {
	if math.IsNaN(threshold) || threshold <= 0 || threshold >= 1 {
		return nil, domain.NewValidationError("threshold", "threshold must be strictly between 0 and 1", threshold)
	}
	return &Interpreter{threshold: threshold}, nil
}

// Threshold returns the decision threshold in use
func (i *Interpreter) Threshold() float64 {
	return i.threshold
}

// Classify applies the decision rule. The threshold itself counts as likely progression.
func (i *Interpreter) Classify(probability float64) domain.Verdict {
	if probability >= i.threshold {
		return domain.VerdictLikelyProgression
	}
	return domain.VerdictUnlikelyProgression
}

// Predict runs one inference. Failures are terminal for this attempt; nothing is retried or defaulted.
func (i *Interpreter) Predict(ctx context.Context, vector domain.FeatureVector, clf domain.Classifier) (domain.PredictionResult, error) {
	if clf == nil {
		return domain.PredictionResult{}, fmt.Errorf("%w: no classifier loaded", domain.ErrClassifierUnavailable)
	}

	p, err := clf.PredictProba(ctx, vector)
	if err != nil {
		if errors.Is(err, domain.ErrClassifierUnavailable) || errors.Is(err, domain.ErrInferenceFailed) {
			return domain.PredictionResult{}, err
		}
		return domain.PredictionResult{}, fmt.Errorf("%w: %v", domain.ErrInferenceFailed, err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return domain.PredictionResult{}, fmt.Errorf("%w: probability %v outside [0,1]", domain.ErrInferenceFailed, p)
	}

	verdict := i.Classify(p)
	return domain.PredictionResult{
		Probability: p,
		Verdict:     verdict,
		Message:     verdict.Message(),
		Features:    vector,
	}, nil
}
