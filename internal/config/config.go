// Package config provides the configuration schema, loader, and backend
// registry for the installation core.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// CaptureBackend selects the microphone implementation.
type CaptureBackend string

const (
	// CaptureDevice uses the physical microphone through PortAudio.
	CaptureDevice CaptureBackend = "device"

	// CaptureSynthetic generates deterministic noise; used on machines
	// without audio hardware and in rehearsal mode.
	CaptureSynthetic CaptureBackend = "synthetic"
)

// IsValid reports whether b is a recognised capture backend.
func (b CaptureBackend) IsValid() bool {
	return b == CaptureDevice || b == CaptureSynthetic
}

// InputBackend selects the button implementation.
type InputBackend string

const (
	// InputGPIO reads the dome button on a header pin.
	InputGPIO InputBackend = "gpio"

	// InputKeyboard reads gestures from stdin; used during development.
	InputKeyboard InputBackend = "keyboard"
)

// IsValid reports whether b is a recognised input backend.
func (b InputBackend) IsValid() bool {
	return b == InputGPIO || b == InputKeyboard
}

// Duration is a time.Duration that decodes from YAML strings like "35s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"35s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`

	Audio   AudioConfig   `yaml:"audio"`
	Input   InputConfig   `yaml:"input"`
	Session SessionConfig `yaml:"session"`
	Output  OutputConfig  `yaml:"output"`
	Lexicon LexiconConfig `yaml:"lexicon"`
	Observe ObserveConfig `yaml:"observe"`
}

// AudioConfig holds microphone and framing settings.
type AudioConfig struct {
	// Backend selects the capture implementation.
	Backend CaptureBackend `yaml:"backend"`

	// SampleRate in Hz. The analysis bands assume rates of 16 kHz or above.
	SampleRate int `yaml:"sample_rate"`

	// Channels captured from the device; frames are folded to mono.
	Channels int `yaml:"channels"`

	// FrameLength is samples per frame, also the FFT window size.
	FrameLength int `yaml:"frame_length"`
}

// InputConfig holds button settings.
type InputConfig struct {
	// Backend selects the input implementation.
	Backend InputBackend `yaml:"backend"`

	// GPIOPin names the header pin for the gpio backend, e.g. "GPIO17".
	GPIOPin string `yaml:"gpio_pin"`

	// LongPress is the hold duration that turns a press into a long press.
	LongPress Duration `yaml:"long_press"`
}

// SessionConfig holds the per-phase timing of the session cycle. Zero values
// take the defaults tuned for the gallery floor.
type SessionConfig struct {
	// Tick is the controller loop interval.
	Tick Duration `yaml:"tick"`

	// ListenGuide is the guide duration before recording starts; a long
	// press skips it.
	ListenGuide Duration `yaml:"listen_guide"`

	// RecordMin is the shortest accepted recording; an early stop before
	// this is ignored.
	RecordMin Duration `yaml:"record_min"`

	// RecordMax caps the recording length.
	RecordMax Duration `yaml:"record_max"`

	// GenerateDeadline bounds the generation phase; past it the session
	// proceeds degraded with default output.
	GenerateDeadline Duration `yaml:"generate_deadline"`

	// SelectTimeout confirms the current style when the visitor walks away.
	SelectTimeout Duration `yaml:"select_timeout"`

	// SelectMinDwell is the shortest time the selection phase is shown,
	// so a stray press cannot skip it unseen.
	SelectMinDwell Duration `yaml:"select_min_dwell"`

	// DisplayTimeout ends the display phase without input.
	DisplayTimeout Duration `yaml:"display_timeout"`

	// ResetDuration is the cleanup pause before the next attract phase.
	ResetDuration Duration `yaml:"reset_duration"`
}

// OutputConfig holds artifact publication settings.
type OutputConfig struct {
	// Dir receives the published waveform and metadata files.
	Dir string `yaml:"dir"`
}

// LexiconConfig points at an optional onomatopoeia lexicon file. When empty
// the built-in lexicon is used.
type LexiconConfig struct {
	// Path to a YAML lexicon, hot-reloaded on change.
	Path string `yaml:"path"`
}

// ObserveConfig holds the metrics endpoint settings.
type ObserveConfig struct {
	// ListenAddr is the address the Prometheus scrape endpoint listens on,
	// e.g. ":9091". Empty disables the endpoint.
	ListenAddr string `yaml:"listen_addr"`
}
