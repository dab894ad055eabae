// Package history reads recorded visit histories from YAML and replays them
// through the tracker.
package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/as-progression-tracker/internal/domain"
	"github.com/as-progression-tracker/internal/service"
	"github.com/as-progression-tracker/internal/session"
)

// File is a recorded patient history
type File struct {
	Patient *Patient `yaml:"patient"`
	Visits  []Visit  `yaml:"visits"`
}

// Patient holds the optional static attributes
type Patient struct {
	Age int `yaml:"age"`
}

// Visit is one recorded measurement set. Absent keys stay nil and are
// rejected when the visit is converted.
type Visit struct {
	Date         *VisitDate `yaml:"date"`
	PSALevel     *float64   `yaml:"psa_level"`
	GlandVolume  *float64   `yaml:"gland_volume"`
	GleasonGrade *float64   `yaml:"gleason_grade"`
}

// Measurement converts the visit, reporting the first missing or malformed field
func (v Visit) Measurement() (domain.Measurement, error) {
	in := domain.MeasurementInput{
		PSALevel:     v.PSALevel,
		GlandVolume:  v.GlandVolume,
		GleasonGrade: v.GleasonGrade,
	}
	if v.Date != nil {
		in.Date = v.Date.String()
	}
	return in.Measurement()
}

// VisitDate accepts both quoted and bare YYYY-MM-DD scalars
type VisitDate struct {
	domain.Date
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *VisitDate) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := domain.ParseDate(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Date = parsed
	return nil
}

// Load reads a history file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}
	return Decode(bytes.NewReader(data))
}

// Decode parses a history document, rejecting unknown keys
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &f, nil
}

// Measurements converts the visits in file order. The first incomplete visit
// is reported by its position.
func (f *File) Measurements() ([]domain.Measurement, error) {
	out := make([]domain.Measurement, 0, len(f.Visits))
	for i, v := range f.Visits {
		m, err := v.Measurement()
		if err != nil {
			return nil, fmt.Errorf("visit %d: %w", i+1, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Replay enters every visit into a fresh session and predicts from the final
// state. The first rejected visit stops the replay and is reported by index.
func Replay(ctx context.Context, tracker *service.Tracker, f *File) (*session.Session, domain.PredictionResult, error) {
	sess := session.New(uuid.New().String())

	if f.Patient != nil {
		if err := tracker.SetPatient(sess, domain.PatientInfo{Age: f.Patient.Age}); err != nil {
			return sess, domain.PredictionResult{}, fmt.Errorf("patient: %w", err)
		}
	}
	measurements, err := f.Measurements()
	if err != nil {
		return sess, domain.PredictionResult{}, err
	}
	for i, m := range measurements {
		if _, err := tracker.AddMeasurement(sess, m); err != nil {
			return sess, domain.PredictionResult{}, fmt.Errorf("visit %d (%s): %w", i+1, m.Date, err)
		}
	}

	result, err := tracker.Predict(ctx, sess)
	return sess, result, err
}
