// Package classifier provides the progression classifier backends: a local
// logistic-regression artifact, a remote scoring service, a memoizing
// decorator, and the Provider that owns one-time loading.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/as-progression-tracker/internal/domain"
)

// ModelTypeLogisticRegression is the only artifact model type understood
const ModelTypeLogisticRegression = "logistic_regression"

// Artifact is the serialized form of a trained logistic regression model
type Artifact struct {
	ModelType    string    `json:"model_type"`
	Version      string    `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// Validate checks the artifact against the fixed feature layout
func (a *Artifact) Validate() error {
	if a.ModelType != ModelTypeLogisticRegression {
		return fmt.Errorf("unsupported model type %q", a.ModelType)
	}
	if len(a.FeatureNames) != domain.FeatureCount {
		return fmt.Errorf("artifact declares %d features, expected %d", len(a.FeatureNames), domain.FeatureCount)
	}
	for i, name := range a.FeatureNames {
		if name != domain.FeatureNames[i] {
			return fmt.Errorf("feature %d is %q, expected %q", i, name, domain.FeatureNames[i])
		}
	}
	if len(a.Coefficients) != domain.FeatureCount {
		return fmt.Errorf("artifact has %d coefficients, expected %d", len(a.Coefficients), domain.FeatureCount)
	}
	for i, c := range a.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return fmt.Errorf("intercept is not finite")
	}
	return nil
}

// LogisticModel scores feature vectors with a fitted logistic regression
type LogisticModel struct {
	artifact Artifact
}

// NewLogisticModel validates the artifact and wraps it as a Classifier
func NewLogisticModel(artifact Artifact) (*LogisticModel, error) {
	if err := artifact.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	coefficients := make([]float64, len(artifact.Coefficients))
	copy(coefficients, artifact.Coefficients)
	artifact.Coefficients = coefficients
	return &LogisticModel{artifact: artifact}, nil
}

// LoadArtifact reads a model artifact from disk. Every failure is reported as
// ErrClassifierUnavailable so callers can keep the ledger usable.
func LoadArtifact(path string) (*LogisticModel, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no model artifact path configured", domain.ErrClassifierUnavailable)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: model file %q not found", domain.ErrClassifierUnavailable, path)
		}
		return nil, fmt.Errorf("%w: failed to read model file %q: %v", domain.ErrClassifierUnavailable, path, err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("%w: failed to decode model file %q: %v", domain.ErrClassifierUnavailable, path, err)
	}

	model, err := NewLogisticModel(artifact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
	}
	return model, nil
}

// Version returns the artifact version string
func (m *LogisticModel) Version() string {
	return m.artifact.Version
}

// PredictProba implements domain.Classifier
func (m *LogisticModel) PredictProba(ctx context.Context, vector domain.FeatureVector) (float64, error) {
	values := vector.Values()
	if len(values) != len(m.artifact.Coefficients) {
		return 0, fmt.Errorf("%w: vector has %d features, model expects %d",
			domain.ErrInferenceFailed, len(values), len(m.artifact.Coefficients))
	}

	z := m.artifact.Intercept
	for i, x := range values {
		z += m.artifact.Coefficients[i] * x
	}
	p := sigmoid(z)
	if math.IsNaN(p) {
		return 0, fmt.Errorf("%w: model produced NaN", domain.ErrInferenceFailed)
	}
	return p, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
