package audio

import "time"

// Frame is a single fixed-length window of captured audio flowing through the
// pipeline. Frames are the atomic unit of audio transport — produced by a
// Capture backend, consumed by the feature extractor, and then discarded.
type Frame struct {
	// Samples holds mono PCM samples normalised to [-1, 1].
	Samples []float64

	// SampleRate in Hz (e.g. 32000 for the installation microphone).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to capture start.
	Timestamp time.Duration
}

// Duration returns the wall time covered by the frame's sample window.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(f.Samples)) / float64(f.SampleRate) * float64(time.Second))
}

// Waveform is the complete raw recording of one session, returned by
// [Capture.Stop] for archival. It is handed to the external artifact pipeline
// as 16-bit PCM WAV via [EncodeWAV].
type Waveform struct {
	// Samples holds the full mono recording, normalised to [-1, 1].
	Samples []float64

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the total recorded time.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}
