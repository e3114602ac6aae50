package feature

import "time"

// Label classifies the dominant environmental sound category of a session.
type Label string

const (
	LabelWater  Label = "water"
	LabelVessel Label = "vessel"
	LabelBird   Label = "bird"
	LabelWind   Label = "wind"
)

// IsValid reports whether l is a recognised label.
func (l Label) IsValid() bool {
	switch l {
	case LabelWater, LabelVessel, LabelBird, LabelWind:
		return true
	}
	return false
}

// Summary is the immutable session-level feature summary produced exactly once
// per session by [Extractor.Finalize].
//
// Invariants: every indicator and Confidence lie in [0, 1]; Confidence is the
// margin between the top two indicator scores.
type Summary struct {
	// Environmental indicators, each a smoothed presence score in [0, 1].
	Water  float64 `json:"water"`
	Vessel float64 `json:"vessel"`
	Bird   float64 `json:"bird"`
	Wind   float64 `json:"wind"`

	// Label is the dominant classification; Confidence its normalised margin.
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`

	// Supporting acoustic measures.
	RMSEnergy        float64 `json:"rms_energy"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
	SpectralCentroid float64 `json:"spectral_centroid"`

	// Normalised band energy shares; they sum to 1 when any energy was seen.
	LowBandShare  float64 `json:"low_band_share"`
	MidBandShare  float64 `json:"mid_band_share"`
	HighBandShare float64 `json:"high_band_share"`

	// AmbienceScore blends the four indicators into one environment score.
	AmbienceScore float64 `json:"ambience_score"`

	// Duration of audio ingested and the rate it was sampled at.
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate"`
}

// Indicator returns the indicator value for the given label.
func (s Summary) Indicator(l Label) float64 {
	switch l {
	case LabelWater:
		return s.Water
	case LabelVessel:
		return s.Vessel
	case LabelBird:
		return s.Bird
	case LabelWind:
		return s.Wind
	}
	return 0
}

// Indicators returns the four indicators in canonical label order
// (water, vessel, bird, wind).
func (s Summary) Indicators() [4]float64 {
	return [4]float64{s.Water, s.Vessel, s.Bird, s.Wind}
}

// Labels returns the canonical label order matching [Summary.Indicators].
func Labels() [4]Label {
	return [4]Label{LabelWater, LabelVessel, LabelBird, LabelWind}
}

// DefaultSummary is the fixed fallback used when extraction fails or the
// generation deadline expires: all-zero indicators, wind label, zero
// confidence.
func DefaultSummary(sampleRate int) Summary {
	return Summary{
		Label:      LabelWind,
		Confidence: 0,
		SampleRate: sampleRate,
	}
}
