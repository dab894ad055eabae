package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on every external surface
const DateLayout = "2006-01-02"

// Date is a calendar date without a time-of-day component. It is always
// normalized to midnight UTC so that day arithmetic is exact.
type Date struct {
	t time.Time
}

// NewDate creates a Date from its calendar components
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time-of-day and location of t, keeping the calendar day as seen in t's location
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// IsZero reports whether the date was never set
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// Time returns the date as midnight UTC
func (d Date) Time() time.Time {
	return d.t
}

// Before reports whether d is strictly earlier than other
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// DaysSince returns the signed number of calendar days from earlier to d.
// Both dates are UTC midnights, so the division is exact for any span.
func (d Date) DaysSince(earlier Date) int {
	return int((d.t.Unix() - earlier.t.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Measurement is one clinical observation recorded at a surveillance visit.
// It is immutable once accepted into a ledger.
type Measurement struct {
	Date         Date    `json:"date"`
	PSALevel     float64 `json:"psa_level"`     // ng/mL
	GlandVolume  float64 `json:"gland_volume"`  // cm³
	GleasonGrade int     `json:"gleason_grade"` // grade group 1-5
}

// MeasurementInput carries caller-supplied values before conversion. A nil
// field was absent from the input.
type MeasurementInput struct {
	Date         string
	PSALevel     *float64
	GlandVolume  *float64
	GleasonGrade *float64
}

// Measurement converts the input, reporting the first missing or malformed field
func (in MeasurementInput) Measurement() (Measurement, error) {
	if in.Date == "" {
		return Measurement{}, NewValidationError("date", "date is required", nil)
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return Measurement{}, NewValidationError("date", "date must be formatted YYYY-MM-DD", in.Date)
	}
	if in.PSALevel == nil {
		return Measurement{}, NewValidationError("psa_level", "psa_level is required", nil)
	}
	if in.GlandVolume == nil {
		return Measurement{}, NewValidationError("gland_volume", "gland_volume is required", nil)
	}
	if in.GleasonGrade == nil {
		return Measurement{}, NewValidationError("gleason_grade", "gleason_grade is required", nil)
	}
	if *in.GleasonGrade != math.Trunc(*in.GleasonGrade) {
		return Measurement{}, NewValidationError("gleason_grade", "gleason_grade must be an integer", *in.GleasonGrade)
	}

	return Measurement{
		Date:         date,
		PSALevel:     *in.PSALevel,
		GlandVolume:  *in.GlandVolume,
		GleasonGrade: int(*in.GleasonGrade),
	}, nil
}

// Measurement bounds accepted at entry
const (
	MinPSALevel     = 0.0
	MaxPSALevel     = 50.0
	MinGlandVolume  = 0.0
	MaxGlandVolume  = 200.0
	MinGleasonGrade = 1
	MaxGleasonGrade = 5
	MinPatientAge   = 18
	MaxPatientAge   = 120
)

// PatientInfo holds static attributes captured once per session.
// They are informational and never part of the feature vector.
type PatientInfo struct {
	Age int `json:"age,omitempty"`
}

// SeriesMetric names a measurement field that can be charted over time
type SeriesMetric string

const (
	MetricPSALevel    SeriesMetric = "psa_level"
	MetricGlandVolume SeriesMetric = "gland_volume"
)

// SeriesPoint is a single dated value in a trend series
type SeriesPoint struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
}
