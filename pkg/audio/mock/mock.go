// Package mock provides an in-memory mock implementation of [audio.Capture]
// for use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so tests
// can assert on call counts, and exposes exported fields the test sets to
// control return values:
//
//	cap := &mock.Capture{
//	    PullFrames: []audio.Frame{{Samples: samples, SampleRate: 32000}},
//	    StopResult: audio.Waveform{Samples: samples, SampleRate: 32000},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/waterbook/waterbook/pkg/audio"
)

// Capture is a mock implementation of [audio.Capture].
// Set the exported result fields before use; inspect the Call* fields after.
type Capture struct {
	mu sync.Mutex

	// StartError is returned by Start. Use audio.ErrDeviceUnavailable to
	// exercise the degraded-capture path.
	StartError error

	// PullFrames are returned by successive Pull calls. When exhausted, Pull
	// returns [audio.ErrNoFrame] unless PullLoop is set, in which case the
	// sequence repeats.
	PullFrames []audio.Frame
	PullLoop   bool

	// StopResult is returned by Stop.
	StopResult audio.Waveform

	// StopError is returned by Stop.
	StopError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountPull records how many times Pull was called.
	CallCountPull int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// RecordedConfigs holds the configs passed to Start, in order.
	RecordedConfigs []audio.Config

	pullIdx int
}

// Start implements [audio.Capture]. Returns StartError.
func (c *Capture) Start(_ context.Context, cfg audio.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStart++
	c.RecordedConfigs = append(c.RecordedConfigs, cfg)
	return c.StartError
}

// Pull implements [audio.Capture]. Returns the next frame from PullFrames.
func (c *Capture) Pull() (audio.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountPull++
	if len(c.PullFrames) == 0 {
		return audio.Frame{}, audio.ErrNoFrame
	}
	if c.pullIdx >= len(c.PullFrames) {
		if !c.PullLoop {
			return audio.Frame{}, audio.ErrNoFrame
		}
		c.pullIdx = 0
	}
	f := c.PullFrames[c.pullIdx]
	c.pullIdx++
	return f, nil
}

// Stop implements [audio.Capture]. Returns StopResult and StopError.
func (c *Capture) Stop() (audio.Waveform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountStop++
	return c.StopResult, c.StopError
}
