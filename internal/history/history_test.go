package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/service"
)

const patient103 = `
patient:
  age: 64
visits:
  - date: 2023-12-01
    psa_level: 6.89
    gland_volume: 70
    gleason_grade: 1
  - date: "2024-12-01"
    psa_level: 9.4
    gland_volume: 70
    gleason_grade: 1
`

func newTracker(t *testing.T, p float64) (*service.Tracker, *domain.FeatureVector) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	interpreter, err := service.NewInterpreter(domain.DefaultDecisionThreshold)
	require.NoError(t, err)
	seen := &domain.FeatureVector{}
	clf := domain.ClassifierFunc(func(_ context.Context, v domain.FeatureVector) (float64, error) {
		*seen = v
		return p, nil
	})
	source := sourceFunc(func() (domain.Classifier, error) { return clf, nil })
	return service.NewTracker(
		service.NewMeasurementEntry(domain.ChronologyAccept, logger),
		interpreter,
		source,
		logger,
	), seen
}

type sourceFunc func() (domain.Classifier, error)

func (f sourceFunc) Get() (domain.Classifier, error) { return f() }

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(patient103))
	require.NoError(t, err)

	require.NotNil(t, f.Patient)
	assert.Equal(t, 64, f.Patient.Age)
	ms, err := f.Measurements()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "2023-12-01", ms[0].Date.String())
	assert.Equal(t, "2024-12-01", ms[1].Date.String())
	assert.Equal(t, 9.4, ms[1].PSALevel)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "visits:\n  - date: 2024-01-01\n    psa: 1\n"},
		{"bad date", "visits:\n  - date: 01/02/2024\n    psa_level: 1\n"},
		{"not a list", "visits: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	f, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Visits)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, os.WriteFile(path, []byte(patient103), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Visits, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestReplay(t *testing.T) {
	tracker, seen := newTracker(t, 0.3)
	f, err := Decode(strings.NewReader(patient103))
	require.NoError(t, err)

	sess, result, err := Replay(context.Background(), tracker, f)
	require.NoError(t, err)

	assert.Equal(t, domain.FeatureVector{PSALevel: 9.4, GlandVolume: 70, GleasonGrade: 1, DaysSinceFirst: 366}, *seen)
	assert.Equal(t, domain.VerdictUnlikelyProgression, result.Verdict)
	assert.Equal(t, 64, sess.Patient().Age)
	assert.Len(t, sess.Snapshot().Measurements, 2)
}

func TestReplay_StopsAtInvalidVisit(t *testing.T) {
	tracker, _ := newTracker(t, 0.3)
	f, err := Decode(strings.NewReader(`
visits:
  - date: 2024-01-01
    psa_level: 3
    gland_volume: 30
    gleason_grade: 1
  - date: 2024-06-01
    psa_level: 3
    gland_volume: 30
    gleason_grade: 7
`))
	require.NoError(t, err)

	_, _, err = Replay(context.Background(), tracker, f)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "gleason_grade", validationErr.Field)
	assert.Contains(t, err.Error(), "visit 2")
}

func TestReplay_EmptyHistory(t *testing.T) {
	tracker, _ := newTracker(t, 0.3)

	_, _, err := Replay(context.Background(), tracker, &File{})

	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestReplay_RejectsIncompleteVisit(t *testing.T) {
	tests := []struct {
		name  string
		visit string
		field string
	}{
		{"missing psa", "  - date: 2024-01-01\n    gland_volume: 70\n    gleason_grade: 1\n", "psa_level"},
		{"missing volume", "  - date: 2024-01-01\n    psa_level: 4.2\n    gleason_grade: 1\n", "gland_volume"},
		{"missing gleason", "  - date: 2024-01-01\n    psa_level: 4.2\n    gland_volume: 70\n", "gleason_grade"},
		{"missing date", "  - psa_level: 4.2\n    gland_volume: 70\n    gleason_grade: 1\n", "date"},
		{"fractional gleason", "  - date: 2024-01-01\n    psa_level: 4.2\n    gland_volume: 70\n    gleason_grade: 1.5\n", "gleason_grade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(strings.NewReader("visits:\n" + tt.visit))
			require.NoError(t, err)

			tracker, _ := newTracker(t, 0.3)
			sess, _, err := Replay(context.Background(), tracker, f)

			var validationErr *domain.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Contains(t, err.Error(), "visit 1")
			assert.Empty(t, sess.Snapshot().Measurements)
		})
	}
}
