package onomatopoeia

import (
	"sort"
	"sync"

	"github.com/waterbook/waterbook/internal/feature"
)

// Tunable scoring constants, exposed through [EngineConfig].
const (
	// DefaultActivationCutoff binarises indicators: values above the cutoff
	// count as present when matching entry tag vectors.
	DefaultActivationCutoff = 0.2

	// DefaultMinScore is the floor below which an entry is not considered a
	// match. When nothing clears it the neutral entry is returned.
	DefaultMinScore = 0.15

	// levelGain maps RMS energy to a [0,1] loudness level, matching the
	// extractor's normalisation of quiet field recordings.
	levelGain = 5.0
)

// Candidate is one ranked lexicon match.
type Candidate struct {
	Word  string          `json:"word"`
	Score float64         `json:"score"`
	Tags  []feature.Label `json:"tags"`
}

// EngineConfig tunes candidate scoring. Zero values select the defaults.
type EngineConfig struct {
	ActivationCutoff float64
	MinScore         float64
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.ActivationCutoff <= 0 {
		c.ActivationCutoff = DefaultActivationCutoff
	}
	if c.MinScore <= 0 {
		c.MinScore = DefaultMinScore
	}
	return c
}

// Engine scores the lexicon against feature summaries. The lexicon can be
// swapped at runtime (see [Engine.Watch]); Generate always reads a consistent
// snapshot. Safe for concurrent use.
type Engine struct {
	cfg EngineConfig

	mu      sync.RWMutex
	lexicon Lexicon
}

// NewEngine creates an engine over the given lexicon. A nil lexicon selects
// [DefaultLexicon].
func NewEngine(lx Lexicon, cfg EngineConfig) (*Engine, error) {
	if lx == nil {
		lx = DefaultLexicon
	}
	if err := lx.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg.withDefaults(), lexicon: lx}, nil
}

// SetLexicon validates and atomically swaps the lexicon.
func (e *Engine) SetLexicon(lx Lexicon) error {
	if err := lx.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.lexicon = lx
	e.mu.Unlock()
	return nil
}

// Generate scores every lexicon entry against the summary and returns the
// candidates ranked by descending score, ties broken by ascending priority
// and then lexicon declaration order. The result is never empty: when no
// entry clears the minimum score, the neutral entry is returned.
func (e *Engine) Generate(s feature.Summary) []Candidate {
	e.mu.RLock()
	lexicon := e.lexicon
	e.mu.RUnlock()

	level := clamp01(s.RMSEnergy * levelGain)

	type scored struct {
		entry Entry
		score float64
		order int
	}
	var matches []scored
	for i, entry := range lexicon {
		score := e.score(entry, s, level)
		if score < e.cfg.MinScore {
			continue
		}
		matches = append(matches, scored{entry: entry, score: score, order: i})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].score != matches[b].score {
			return matches[a].score > matches[b].score
		}
		if matches[a].entry.Priority != matches[b].entry.Priority {
			return matches[a].entry.Priority < matches[b].entry.Priority
		}
		return matches[a].order < matches[b].order
	})

	out := make([]Candidate, 0, len(matches)+1)
	for _, m := range matches {
		out = append(out, Candidate{
			Word:  m.entry.Word,
			Score: m.score,
			Tags:  m.entry.Tags.active(),
		})
	}
	if len(out) == 0 {
		out = append(out, Candidate{
			Word:  NeutralEntry.Word,
			Score: 0,
			Tags:  NeutralEntry.Tags.active(),
		})
	}
	return out
}

// NeutralCandidate returns the fallback emitted when generation cannot run
// to completion.
func NeutralCandidate() Candidate {
	return Candidate{Word: NeutralEntry.Word, Tags: NeutralEntry.Tags.active()}
}

// score is the weighted similarity between an entry's tag vector and the
// threshold-binarised indicator vector, attenuated by how well the summary's
// loudness sits inside the entry's level band.
func (e *Engine) score(entry Entry, s feature.Summary, level float64) float64 {
	var dot float64
	for _, l := range feature.Labels() {
		if s.Indicator(l) > e.cfg.ActivationCutoff {
			dot += entry.Tags.weight(l)
		}
	}
	if dot == 0 {
		return 0
	}
	return dot * (0.6 + 0.4*levelFit(entry, level))
}

// levelFit is 1 inside the entry's band and falls off linearly outside it.
func levelFit(entry Entry, level float64) float64 {
	if level >= entry.MinLevel && level <= entry.MaxLevel {
		return 1
	}
	var dist float64
	if level < entry.MinLevel {
		dist = entry.MinLevel - level
	} else {
		dist = level - entry.MaxLevel
	}
	return clamp01(1 - dist*2)
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
