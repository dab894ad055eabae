package domain

// Feature names in the exact order the classifier was trained on
const (
	FeaturePSALevel       = "psa_level"
	FeatureGlandVolume    = "gland_volume"
	FeatureGleasonGrade   = "gleason_grade"
	FeatureDaysSinceFirst = "days_since_first"
)

// FeatureNames lists the classifier input layout. Changing it breaks every trained artifact.
var FeatureNames = [FeatureCount]string{
	FeaturePSALevel,
	FeatureGlandVolume,
	FeatureGleasonGrade,
	FeatureDaysSinceFirst,
}

// FeatureCount is the fixed width of a FeatureVector
const FeatureCount = 4

// DerivedFeatures are temporal features recomputed from a ledger on demand
type DerivedFeatures struct {
	DaysSinceFirst int `json:"days_since_first"`
	// DaysSincePrevious is only meaningful when HasPrevious is true
	DaysSincePrevious int  `json:"days_since_previous"`
	HasPrevious       bool `json:"has_previous"`
}

// FeatureVector is the fixed-order classifier input
type FeatureVector struct {
	PSALevel       float64 `json:"psa_level"`
	GlandVolume    float64 `json:"gland_volume"`
	GleasonGrade   int     `json:"gleason_grade"`
	DaysSinceFirst int     `json:"days_since_first"`
}

// Values returns the vector in classifier input order
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.PSALevel,
		v.GlandVolume,
		float64(v.GleasonGrade),
		float64(v.DaysSinceFirst),
	}
}

// Verdict is the categorical interpretation of a progression probability
type Verdict string

const (
	VerdictLikelyProgression   Verdict = "LIKELY_PROGRESSION"
	VerdictUnlikelyProgression Verdict = "UNLIKELY_PROGRESSION"
)

// String returns the verdict identifier
func (v Verdict) String() string {
	return string(v)
}

// Message returns the clinician-facing sentence for the verdict
func (v Verdict) Message() string {
	switch v {
	case VerdictLikelyProgression:
		return "Cancer is likely to progress in the next five years."
	case VerdictUnlikelyProgression:
		return "Cancer is unlikely to progress in the next five years."
	default:
		return "Unknown prediction outcome."
	}
}

// DefaultDecisionThreshold separates the two verdicts
const DefaultDecisionThreshold = 0.5

// PredictionResult is the outcome of one classifier invocation.
// It contains no timestamps so that repeated predictions on the same ledger compare equal.
type PredictionResult struct {
	Probability float64       `json:"probability"`
	Verdict     Verdict       `json:"verdict"`
	Message     string        `json:"message"`
	Features    FeatureVector `json:"features"`
}
