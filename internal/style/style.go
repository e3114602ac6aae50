// Package style maps a session feature summary to ink-wash rendering
// parameters. Mapping is a pure function: identical (summary, style) inputs
// always produce bit-identical parameters.
package style

import (
	"errors"
	"fmt"
)

// ErrMappingFailure reports a malformed style id or coefficient table. The
// caller recovers with the default style's parameters.
var ErrMappingFailure = errors.New("style: mapping failure")

// ID identifies one of the closed set of ink-wash styles.
type ID string

const (
	// Xingshu is running script: quick, lively strokes.
	Xingshu ID = "xingshu"

	// Zhuanshu is seal script: slow, even, dense strokes.
	Zhuanshu ID = "zhuanshu"

	// Shuimo is free ink-wash: broad wet strokes with heavy bleed.
	Shuimo ID = "shuimo"
)

// DefaultID is the style used when no suggestion wins and on degraded
// sessions.
const DefaultID = Xingshu

// All returns the closed style set in cycling order.
func All() []ID {
	return []ID{Xingshu, Zhuanshu, Shuimo}
}

// IsValid reports whether id is a recognised style.
func (id ID) IsValid() bool {
	switch id {
	case Xingshu, Zhuanshu, Shuimo:
		return true
	}
	return false
}

// Next returns the style after id in cycling order.
func (id ID) Next() ID {
	all := All()
	for i, s := range all {
		if s == id {
			return all[(i+1)%len(all)]
		}
	}
	return DefaultID
}

// Parameters are the numeric rendering parameters handed to the external
// artist renderer. All values lie in [0, 1].
type Parameters struct {
	Style ID `json:"style"`

	BrushSpeed      float64 `json:"brush_speed"`
	StrokeThickness float64 `json:"stroke_thickness"`
	FlyingWhite     float64 `json:"flying_white"`
	InkBleed        float64 `json:"ink_bleed"`
	PauseIntensity  float64 `json:"pause_intensity"`
	InkDensity      float64 `json:"ink_density"`
	RhythmVariation float64 `json:"rhythm_variation"`
}

// validate checks that every parameter is in range.
func (p Parameters) validate() error {
	check := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: parameter %s = %.3f out of range [0,1]", ErrMappingFailure, name, v)
		}
		return nil
	}
	return errors.Join(
		check("brush_speed", p.BrushSpeed),
		check("stroke_thickness", p.StrokeThickness),
		check("flying_white", p.FlyingWhite),
		check("ink_bleed", p.InkBleed),
		check("pause_intensity", p.PauseIntensity),
		check("ink_density", p.InkDensity),
		check("rhythm_variation", p.RhythmVariation),
	)
}
