package classifier

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/as-progression-tracker/internal/domain"
)

func validArtifact() Artifact {
	return Artifact{
		ModelType:    ModelTypeLogisticRegression,
		Version:      "2024.1",
		FeatureNames: domain.FeatureNames[:],
		Coefficients: []float64{0.12, -0.01, 0.8, -0.002},
		Intercept:    -1.5,
	}
}

func writeArtifact(t *testing.T, v interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadArtifact(t *testing.T) {
	model, err := LoadArtifact(writeArtifact(t, validArtifact()))

	require.NoError(t, err)
	assert.Equal(t, "2024.1", model.Version())
}

func TestLoadArtifact_Failures(t *testing.T) {
	reordered := validArtifact()
	reordered.FeatureNames = []string{"gland_volume", "psa_level", "gleason_grade", "days_since_first"}

	short := validArtifact()
	short.Coefficients = []float64{1, 2, 3}

	wrongType := validArtifact()
	wrongType.ModelType = "random_forest"

	infinite := validArtifact()
	infinite.Intercept = math.Inf(1)

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"empty path", func(t *testing.T) string { return "" }},
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.json") }},
		{"malformed json", func(t *testing.T) string {
			path := filepath.Join(t.TempDir(), "model.json")
			require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
			return path
		}},
		{"reordered features", func(t *testing.T) string { return writeArtifact(t, reordered) }},
		{"coefficient count", func(t *testing.T) string { return writeArtifact(t, short) }},
		{"model type", func(t *testing.T) string { return writeArtifact(t, wrongType) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := LoadArtifact(tt.path(t))
			assert.Nil(t, model)
			assert.ErrorIs(t, err, domain.ErrClassifierUnavailable)
		})
	}

	t.Run("non-finite intercept", func(t *testing.T) {
		_, err := NewLogisticModel(infinite)
		assert.Error(t, err)
	})
}

func TestLogisticModel_PredictProba(t *testing.T) {
	artifact := validArtifact()
	model, err := NewLogisticModel(artifact)
	require.NoError(t, err)

	vector := domain.FeatureVector{PSALevel: 9.4, GlandVolume: 70, GleasonGrade: 1, DaysSinceFirst: 366}
	z := artifact.Intercept + 0.12*9.4 - 0.01*70 + 0.8*1 - 0.002*366
	want := 1 / (1 + math.Exp(-z))

	p, err := model.PredictProba(context.Background(), vector)
	require.NoError(t, err)
	assert.InDelta(t, want, p, 1e-12)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)

	again, err := model.PredictProba(context.Background(), vector)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}

func TestLogisticModel_CopiesCoefficients(t *testing.T) {
	artifact := validArtifact()
	model, err := NewLogisticModel(artifact)
	require.NoError(t, err)

	vector := domain.FeatureVector{PSALevel: 5, GlandVolume: 50, GleasonGrade: 2, DaysSinceFirst: 10}
	before, _ := model.PredictProba(context.Background(), vector)

	artifact.Coefficients[0] = 100
	after, _ := model.PredictProba(context.Background(), vector)
	assert.Equal(t, before, after)
}

func TestSigmoid_Extremes(t *testing.T) {
	assert.Equal(t, 0.5, sigmoid(0))
	assert.InDelta(t, 1.0, sigmoid(800), 1e-12)
	assert.InDelta(t, 0.0, sigmoid(-800), 1e-12)
	assert.False(t, math.IsNaN(sigmoid(-800)))
}
