package feature

import (
	"math"
	"testing"
	"time"

	"github.com/waterbook/waterbook/pkg/audio"
)

// sineFrame builds one frame of a pure tone at freq Hz.
func sineFrame(freq float64, sampleRate, n int, ts time.Duration) audio.Frame {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return audio.Frame{Samples: samples, SampleRate: sampleRate, Timestamp: ts}
}

func TestFinalize_EmptyStream(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{SampleRate: 32000})
	s := e.Finalize()

	if s.Label != LabelWind {
		t.Errorf("Label = %q, want %q", s.Label, LabelWind)
	}
	if s.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", s.Confidence)
	}
	for _, v := range s.Indicators() {
		if v != 0 {
			t.Errorf("indicator = %v, want 0", v)
		}
	}
}

func TestIngest_DominantBandClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		freq float64
		want Label
	}{
		{"water band tone", 300, LabelWater},
		{"vessel band tone", 700, LabelVessel},
		{"bird band tone", 4000, LabelBird},
		{"wind band tone", 60, LabelWind},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewExtractor(Config{SampleRate: 32000})
			for i := 0; i < 20; i++ {
				e.Ingest(sineFrame(tt.freq, 32000, 640, time.Duration(i)*20*time.Millisecond))
			}
			s := e.Finalize()

			if s.Label != tt.want {
				t.Errorf("Label = %q, want %q (indicators %v)", s.Label, tt.want, s.Indicators())
			}
			if s.Indicator(tt.want) <= 0 {
				t.Errorf("Indicator(%q) = %v, want > 0", tt.want, s.Indicator(tt.want))
			}
		})
	}
}

func TestFinalize_IndicatorRanges(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{SampleRate: 32000})
	for i := 0; i < 30; i++ {
		// Alternate loud tones across bands to push the raw ratios hard.
		freq := []float64{100, 700, 5000}[i%3]
		e.Ingest(sineFrame(freq, 32000, 640, time.Duration(i)*20*time.Millisecond))
	}
	s := e.Finalize()

	for i, v := range s.Indicators() {
		if v < 0 || v > 1 {
			t.Errorf("indicator[%d] = %v, want in [0,1]", i, v)
		}
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		t.Errorf("Confidence = %v, want in [0,1]", s.Confidence)
	}
	if s.AmbienceScore < 0 || s.AmbienceScore > 1 {
		t.Errorf("AmbienceScore = %v, want in [0,1]", s.AmbienceScore)
	}

	shareSum := s.LowBandShare + s.MidBandShare + s.HighBandShare
	if math.Abs(shareSum-1) > 1e-9 {
		t.Errorf("band shares sum = %v, want 1", shareSum)
	}
}

func TestClassify_MarginConfidence(t *testing.T) {
	t.Parallel()

	s := Summary{Water: 0.9, Vessel: 0.05, Bird: 0.02, Wind: 0.1}
	label, conf := classify(s)

	if label != LabelWater {
		t.Errorf("label = %q, want %q", label, LabelWater)
	}
	if math.Abs(conf-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8", conf)
	}
}

func TestClassify_AllZeroIsWind(t *testing.T) {
	t.Parallel()

	label, conf := classify(Summary{})
	if label != LabelWind {
		t.Errorf("label = %q, want %q", label, LabelWind)
	}
	if conf != 0 {
		t.Errorf("confidence = %v, want 0", conf)
	}
}

func TestIngest_EmptyFrameIgnored(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{SampleRate: 32000})
	e.Ingest(audio.Frame{})
	s := e.Finalize()

	if s.Label != LabelWind || s.Confidence != 0 {
		t.Errorf("empty stream summary = %q/%v, want wind/0", s.Label, s.Confidence)
	}
}

func TestReset_ClearsAggregates(t *testing.T) {
	t.Parallel()

	e := NewExtractor(Config{SampleRate: 32000})
	e.Ingest(sineFrame(300, 32000, 640, 0))
	e.Reset()
	s := e.Finalize()

	if s.Label != LabelWind || s.RMSEnergy != 0 {
		t.Errorf("after Reset: label %q rms %v, want wind/0", s.Label, s.RMSEnergy)
	}
}
