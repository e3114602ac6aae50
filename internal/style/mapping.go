package style

import (
	"fmt"
	"math"

	"github.com/waterbook/waterbook/internal/feature"
)

// source selects the acoustic measure that drives a coefficient.
type source int

const (
	srcWater source = iota
	srcVessel
	srcBird
	srcWind
	srcEnergy     // RMS energy scaled to [0,1]
	srcBrightness // zero-crossing rate scaled to [0,1]
	srcAmbience
)

// energyGain and brightnessGain normalise quiet field recordings into [0,1]
// driver space.
const (
	energyGain     = 5.0
	brightnessGain = 10.0
)

// value extracts the driver value from a summary, clamped to [0,1].
func (s source) value(sum feature.Summary) float64 {
	switch s {
	case srcWater:
		return sum.Water
	case srcVessel:
		return sum.Vessel
	case srcBird:
		return sum.Bird
	case srcWind:
		return sum.Wind
	case srcEnergy:
		return clamp01(sum.RMSEnergy * energyGain)
	case srcBrightness:
		return clamp01(sum.ZeroCrossingRate * brightnessGain)
	case srcAmbience:
		return sum.AmbienceScore
	}
	return 0
}

// term is one weighted driver in a coefficient's transform.
type term struct {
	src    source
	weight float64
}

// coeff defines one parameter's piecewise-linear transform: the weighted
// driver sum plus bias is clamped to [0,1] and interpolated into [min, max].
type coeff struct {
	min, max float64
	bias     float64
	terms    []term
}

// eval computes the parameter value for a summary.
func (c coeff) eval(sum feature.Summary) float64 {
	x := c.bias
	for _, t := range c.terms {
		x += t.weight * t.src.value(sum)
	}
	return c.min + (c.max-c.min)*clamp01(x)
}

// validate checks the coefficient's range and weights at table load.
func (c coeff) validate() error {
	if c.min < 0 || c.max > 1 || c.min > c.max {
		return fmt.Errorf("%w: range [%.2f,%.2f] invalid", ErrMappingFailure, c.min, c.max)
	}
	for _, t := range c.terms {
		if math.IsNaN(t.weight) || math.IsInf(t.weight, 0) {
			return fmt.Errorf("%w: non-finite weight", ErrMappingFailure)
		}
	}
	return nil
}

// table holds one style's coefficient per parameter.
type table struct {
	brushSpeed      coeff
	strokeThickness coeff
	flyingWhite     coeff
	inkBleed        coeff
	pauseIntensity  coeff
	inkDensity      coeff
	rhythmVariation coeff
}

func (t table) validate() error {
	for _, c := range []coeff{
		t.brushSpeed, t.strokeThickness, t.flyingWhite, t.inkBleed,
		t.pauseIntensity, t.inkDensity, t.rhythmVariation,
	} {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

// tables is the statically declared coefficient table per style. Ranges come
// from the calligraphic character of each script; drivers pick the acoustic
// measures that should bend each parameter.
var tables = map[ID]table{
	Xingshu: {
		brushSpeed:      coeff{min: 0.6, max: 0.9, terms: []term{{srcBrightness, 0.7}, {srcBird, 0.3}}},
		strokeThickness: coeff{min: 0.3, max: 0.8, terms: []term{{srcEnergy, 0.8}, {srcVessel, 0.2}}},
		flyingWhite:     coeff{min: 0.2, max: 0.6, terms: []term{{srcEnergy, 0.6}, {srcWind, 0.4}}},
		inkBleed:        coeff{min: 0.1, max: 0.4, terms: []term{{srcWater, 0.8}}},
		pauseIntensity:  coeff{min: 0.2, max: 0.5, bias: 1, terms: []term{{srcEnergy, -0.8}}},
		inkDensity:      coeff{min: 0.6, max: 0.9, terms: []term{{srcEnergy, 0.7}, {srcAmbience, 0.3}}},
		rhythmVariation: coeff{min: 0.4, max: 0.8, terms: []term{{srcBrightness, 0.6}, {srcBird, 0.4}}},
	},
	Zhuanshu: {
		brushSpeed:      coeff{min: 0.3, max: 0.6, terms: []term{{srcVessel, 0.5}, {srcEnergy, 0.5}}},
		strokeThickness: coeff{min: 0.4, max: 0.7, terms: []term{{srcVessel, 0.6}, {srcEnergy, 0.4}}},
		flyingWhite:     coeff{min: 0.1, max: 0.3, terms: []term{{srcWind, 0.7}}},
		inkBleed:        coeff{min: 0.05, max: 0.3, terms: []term{{srcWater, 0.6}}},
		pauseIntensity:  coeff{min: 0.3, max: 0.6, bias: 1, terms: []term{{srcBrightness, -0.7}}},
		inkDensity:      coeff{min: 0.7, max: 0.95, terms: []term{{srcVessel, 0.4}, {srcEnergy, 0.6}}},
		rhythmVariation: coeff{min: 0.2, max: 0.4, terms: []term{{srcVessel, 0.8}}},
	},
	Shuimo: {
		brushSpeed:      coeff{min: 0.2, max: 0.5, terms: []term{{srcWater, 0.6}, {srcEnergy, 0.4}}},
		strokeThickness: coeff{min: 0.5, max: 1.0, terms: []term{{srcWater, 0.7}, {srcEnergy, 0.3}}},
		flyingWhite:     coeff{min: 0.0, max: 0.2, terms: []term{{srcWind, 0.8}}},
		inkBleed:        coeff{min: 0.4, max: 0.9, terms: []term{{srcWater, 0.8}, {srcAmbience, 0.2}}},
		pauseIntensity:  coeff{min: 0.2, max: 0.6, bias: 1, terms: []term{{srcEnergy, -0.6}, {srcBird, -0.4}}},
		inkDensity:      coeff{min: 0.3, max: 0.7, terms: []term{{srcWater, 0.5}, {srcEnergy, 0.5}}},
		rhythmVariation: coeff{min: 0.6, max: 1.0, terms: []term{{srcWater, 0.5}, {srcWind, 0.5}}},
	},
}

// ValidateTables checks every style's coefficient table. Called once at
// startup; an error here is a configuration defect and is fatal.
func ValidateTables() error {
	for _, id := range All() {
		t, ok := tables[id]
		if !ok {
			return fmt.Errorf("%w: no table for style %q", ErrMappingFailure, id)
		}
		if err := t.validate(); err != nil {
			return fmt.Errorf("style %q: %w", id, err)
		}
	}
	return nil
}

// Map computes the rendering parameters for one style. It is pure and
// deterministic. Unknown style ids return [ErrMappingFailure] together with
// the default style's parameters so callers can proceed degraded.
func Map(sum feature.Summary, id ID) (Parameters, error) {
	t, ok := tables[id]
	if !ok {
		fallback, _ := Map(sum, DefaultID)
		return fallback, fmt.Errorf("%w: unknown style %q", ErrMappingFailure, id)
	}

	p := Parameters{
		Style:           id,
		BrushSpeed:      t.brushSpeed.eval(sum),
		StrokeThickness: t.strokeThickness.eval(sum),
		FlyingWhite:     t.flyingWhite.eval(sum),
		InkBleed:        t.inkBleed.eval(sum),
		PauseIntensity:  t.pauseIntensity.eval(sum),
		InkDensity:      t.inkDensity.eval(sum),
		RhythmVariation: t.rhythmVariation.eval(sum),
	}
	if err := p.validate(); err != nil {
		fallback, _ := Map(sum, DefaultID)
		if id == DefaultID {
			fallback = Parameters{Style: DefaultID}
		}
		return fallback, err
	}
	return p, nil
}

// SuggestDefault scores each style's suitability for the summary and returns
// the best match: water-dominant ambience suits the ink-wash style, vessel
// activity the even seal script, bright bird-heavy sound the running script.
// An all-zero summary falls back to [DefaultID].
func SuggestDefault(sum feature.Summary) ID {
	scores := map[ID]float64{
		Shuimo:   sum.Water*0.8 + sum.AmbienceScore*0.2,
		Zhuanshu: sum.Vessel*0.8 + clamp01(sum.RMSEnergy*energyGain)*0.2,
		Xingshu:  sum.Bird*0.6 + clamp01(sum.ZeroCrossingRate*brightnessGain)*0.4,
	}

	best := DefaultID
	bestScore := 0.0
	for _, id := range All() {
		if scores[id] > bestScore {
			best = id
			bestScore = scores[id]
		}
	}
	return best
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
