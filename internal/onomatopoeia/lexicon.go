// Package onomatopoeia scores a fixed lexicon of sound-mimicking words against
// a session's feature summary and returns a ranked candidate list.
//
// The lexicon ships as a statically declared table and can optionally be
// replaced from a YAML file; see [LoadLexicon] and [Engine.Watch].
package onomatopoeia

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/waterbook/waterbook/internal/feature"
)

// Tags is an entry's affinity vector over the indicator space. Each weight
// lies in [0, 1].
type Tags struct {
	Water  float64 `yaml:"water"`
	Vessel float64 `yaml:"vessel"`
	Bird   float64 `yaml:"bird"`
	Wind   float64 `yaml:"wind"`
}

// weight returns the tag weight for a label.
func (t Tags) weight(l feature.Label) float64 {
	switch l {
	case feature.LabelWater:
		return t.Water
	case feature.LabelVessel:
		return t.Vessel
	case feature.LabelBird:
		return t.Bird
	case feature.LabelWind:
		return t.Wind
	}
	return 0
}

// active returns the labels with non-zero weight, in canonical order.
func (t Tags) active() []feature.Label {
	var out []feature.Label
	for _, l := range feature.Labels() {
		if t.weight(l) > 0 {
			out = append(out, l)
		}
	}
	return out
}

// Entry is one lexicon word with its tag vector, ranking priority (lower wins
// ties) and the loudness band the word describes.
type Entry struct {
	Word     string  `yaml:"word"`
	Tags     Tags    `yaml:"tags"`
	Priority int     `yaml:"priority"`
	MinLevel float64 `yaml:"min_level"`
	MaxLevel float64 `yaml:"max_level"`
}

// Lexicon is an ordered list of entries. Declaration order is the final
// tie-break when score and priority are equal.
type Lexicon []Entry

// Validate checks every entry and returns all problems joined.
func (lx Lexicon) Validate() error {
	if len(lx) == 0 {
		return errors.New("onomatopoeia: lexicon is empty")
	}
	var errs []error
	for i, e := range lx {
		prefix := fmt.Sprintf("lexicon[%d]", i)
		if e.Word == "" {
			errs = append(errs, fmt.Errorf("%s.word is required", prefix))
		}
		for _, w := range []float64{e.Tags.Water, e.Tags.Vessel, e.Tags.Bird, e.Tags.Wind} {
			if w < 0 || w > 1 {
				errs = append(errs, fmt.Errorf("%s (%q): tag weight %.2f out of range [0,1]", prefix, e.Word, w))
				break
			}
		}
		if e.MinLevel < 0 || e.MaxLevel > 1 || e.MinLevel > e.MaxLevel {
			errs = append(errs, fmt.Errorf("%s (%q): level band [%.2f,%.2f] invalid", prefix, e.Word, e.MinLevel, e.MaxLevel))
		}
	}
	return errors.Join(errs...)
}

// LoadLexicon reads and validates a YAML lexicon file. The file is a plain
// list of entries.
func LoadLexicon(path string) (Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("onomatopoeia: open %q: %w", path, err)
	}
	defer f.Close()

	var lx Lexicon
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&lx); err != nil {
		return nil, fmt.Errorf("onomatopoeia: decode %q: %w", path, err)
	}
	if err := lx.Validate(); err != nil {
		return nil, err
	}
	return lx, nil
}

// NeutralEntry is appended to the result whenever no lexicon entry clears the
// minimum score, so the candidate list is never empty. 簌簌 is the faint
// rustle of leaves — the quietest plausible canal sound.
var NeutralEntry = Entry{
	Word:     "簌簌",
	Tags:     Tags{Wind: 1},
	Priority: 99,
	MinLevel: 0,
	MaxLevel: 1,
}

// DefaultLexicon is the built-in canal lexicon: flowing water, vessel engines
// and horns, bird calls, and wind, each family split across loudness bands.
var DefaultLexicon = Lexicon{
	// Water flow.
	{Word: "涓涓", Tags: Tags{Water: 1}, Priority: 1, MinLevel: 0, MaxLevel: 0.2},
	{Word: "潺潺", Tags: Tags{Water: 1}, Priority: 1, MinLevel: 0.2, MaxLevel: 0.5},
	{Word: "汩汩", Tags: Tags{Water: 1}, Priority: 1, MinLevel: 0.5, MaxLevel: 0.8},
	{Word: "哗哗", Tags: Tags{Water: 1}, Priority: 1, MinLevel: 0.8, MaxLevel: 1},
	// Splashes read as water with a bright edge.
	{Word: "哗啦", Tags: Tags{Water: 0.8, Bird: 0.3}, Priority: 2, MinLevel: 0.5, MaxLevel: 1},
	{Word: "咕嘟", Tags: Tags{Water: 0.7, Wind: 0.2}, Priority: 3, MinLevel: 0, MaxLevel: 0.5},

	// Vessel engines and horns.
	{Word: "突突", Tags: Tags{Vessel: 1}, Priority: 1, MinLevel: 0.2, MaxLevel: 0.6},
	{Word: "轰轰", Tags: Tags{Vessel: 1}, Priority: 1, MinLevel: 0.6, MaxLevel: 1},
	{Word: "嗡嗡", Tags: Tags{Vessel: 0.9, Wind: 0.2}, Priority: 2, MinLevel: 0, MaxLevel: 0.4},
	{Word: "嘟嘟", Tags: Tags{Vessel: 0.8}, Priority: 3, MinLevel: 0.2, MaxLevel: 0.7},

	// Bird calls.
	{Word: "唧唧", Tags: Tags{Bird: 1}, Priority: 1, MinLevel: 0, MaxLevel: 0.3},
	{Word: "啾啾", Tags: Tags{Bird: 1}, Priority: 1, MinLevel: 0.3, MaxLevel: 0.7},
	{Word: "喳喳", Tags: Tags{Bird: 1}, Priority: 1, MinLevel: 0.7, MaxLevel: 1},

	// Wind and foliage.
	{Word: "沙沙", Tags: Tags{Wind: 0.9, Bird: 0.1}, Priority: 2, MinLevel: 0, MaxLevel: 0.4},
	{Word: "飕飕", Tags: Tags{Wind: 1}, Priority: 1, MinLevel: 0.3, MaxLevel: 0.7},
	{Word: "呼呼", Tags: Tags{Wind: 1}, Priority: 1, MinLevel: 0.7, MaxLevel: 1},
}
