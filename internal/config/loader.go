package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults tuned for the gallery installation: a 32 kHz mono microphone and
// the phase timings rehearsed on the floor.
const (
	DefaultSampleRate  = 32000
	DefaultChannels    = 1
	DefaultFrameLength = 1024

	DefaultTick             = 100 * time.Millisecond
	DefaultListenGuide      = 10 * time.Second
	DefaultRecordMin        = 5 * time.Second
	DefaultRecordMax        = 35 * time.Second
	DefaultGenerateDeadline = 90 * time.Second
	DefaultSelectTimeout    = 30 * time.Second
	DefaultSelectMinDwell   = 2 * time.Second
	DefaultDisplayTimeout   = 120 * time.Second
	DefaultResetDuration    = 5 * time.Second
)

// DefaultOutputDir receives artifacts when output.dir is not set.
const DefaultOutputDir = "artifacts"

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given: synthetic
// capture, keyboard input, and the rehearsed phase timings.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = CaptureSynthetic
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = DefaultChannels
	}
	if cfg.Audio.FrameLength == 0 {
		cfg.Audio.FrameLength = DefaultFrameLength
	}
	if cfg.Input.Backend == "" {
		cfg.Input.Backend = InputKeyboard
	}
	if cfg.Input.LongPress == 0 {
		cfg.Input.LongPress = Duration(1500 * time.Millisecond)
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}

	s := &cfg.Session
	for _, d := range []struct {
		field *Duration
		def   time.Duration
	}{
		{&s.Tick, DefaultTick},
		{&s.ListenGuide, DefaultListenGuide},
		{&s.RecordMin, DefaultRecordMin},
		{&s.RecordMax, DefaultRecordMax},
		{&s.GenerateDeadline, DefaultGenerateDeadline},
		{&s.SelectTimeout, DefaultSelectTimeout},
		{&s.SelectMinDwell, DefaultSelectMinDwell},
		{&s.DisplayTimeout, DefaultDisplayTimeout},
		{&s.ResetDuration, DefaultResetDuration},
	} {
		if *d.field == 0 {
			*d.field = Duration(d.def)
		}
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found. A non-nil error is
// fatal at startup; the installation never runs on a half-valid config.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if !cfg.Audio.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: device, synthetic", cfg.Audio.Backend))
	}
	if cfg.Audio.SampleRate < 8000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is below the 8000 Hz minimum", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [1, 2]", cfg.Audio.Channels))
	}
	if cfg.Audio.FrameLength < 64 {
		errs = append(errs, fmt.Errorf("audio.frame_length %d is below the 64-sample minimum", cfg.Audio.FrameLength))
	}

	if !cfg.Input.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("input.backend %q is invalid; valid values: gpio, keyboard", cfg.Input.Backend))
	}
	if cfg.Input.Backend == InputGPIO && cfg.Input.GPIOPin == "" {
		errs = append(errs, fmt.Errorf("input.gpio_pin is required when input.backend is gpio"))
	}
	if cfg.Input.LongPress.Std() < 200*time.Millisecond {
		errs = append(errs, fmt.Errorf("input.long_press %v is below the 200ms minimum", cfg.Input.LongPress.Std()))
	}

	s := cfg.Session
	for _, d := range []struct {
		name string
		val  Duration
	}{
		{"session.tick", s.Tick},
		{"session.listen_guide", s.ListenGuide},
		{"session.record_min", s.RecordMin},
		{"session.record_max", s.RecordMax},
		{"session.generate_deadline", s.GenerateDeadline},
		{"session.select_timeout", s.SelectTimeout},
		{"session.select_min_dwell", s.SelectMinDwell},
		{"session.display_timeout", s.DisplayTimeout},
		{"session.reset_duration", s.ResetDuration},
	} {
		if d.val.Std() <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %v", d.name, d.val.Std()))
		}
	}
	if s.RecordMin.Std() > 0 && s.RecordMax.Std() > 0 && s.RecordMin.Std() > s.RecordMax.Std() {
		errs = append(errs, fmt.Errorf("session.record_min %v exceeds session.record_max %v", s.RecordMin.Std(), s.RecordMax.Std()))
	}
	if s.SelectMinDwell.Std() > 0 && s.SelectTimeout.Std() > 0 && s.SelectMinDwell.Std() >= s.SelectTimeout.Std() {
		errs = append(errs, fmt.Errorf("session.select_min_dwell %v must be below session.select_timeout %v", s.SelectMinDwell.Std(), s.SelectTimeout.Std()))
	}

	return errors.Join(errs...)
}

// SlogLevel converts the configured level for slog handlers.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}
