package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/waterbook/waterbook/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.Backend != config.CaptureSynthetic {
		t.Errorf("audio.backend = %q, want synthetic", cfg.Audio.Backend)
	}
	if cfg.Audio.SampleRate != 32000 {
		t.Errorf("audio.sample_rate = %d, want 32000", cfg.Audio.SampleRate)
	}
	if cfg.Session.RecordMax.Std() != 35*time.Second {
		t.Errorf("session.record_max = %v, want 35s", cfg.Session.RecordMax.Std())
	}
	if cfg.Input.Backend != config.InputKeyboard {
		t.Errorf("input.backend = %q, want keyboard", cfg.Input.Backend)
	}
	if cfg.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()

	yaml := `
log_level: debug
audio:
  backend: device
  sample_rate: 48000
  channels: 2
  frame_length: 2048
input:
  backend: gpio
  gpio_pin: GPIO17
  long_press: 2s
session:
  record_min: 3s
  record_max: 20s
  generate_deadline: 60s
output:
  dir: /var/lib/waterbook/artifacts
lexicon:
  path: /etc/waterbook/lexicon.yaml
observe:
  listen_addr: ":9091"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audio.Backend != config.CaptureDevice {
		t.Errorf("audio.backend = %q, want device", cfg.Audio.Backend)
	}
	if cfg.Input.LongPress.Std() != 2*time.Second {
		t.Errorf("input.long_press = %v, want 2s", cfg.Input.LongPress.Std())
	}
	if cfg.Session.RecordMax.Std() != 20*time.Second {
		t.Errorf("session.record_max = %v, want 20s", cfg.Session.RecordMax.Std())
	}
	// Unset phase timings still get defaults.
	if cfg.Session.DisplayTimeout.Std() != 120*time.Second {
		t.Errorf("session.display_timeout = %v, want default 120s", cfg.Session.DisplayTimeout.Std())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("audio:\n  bitrate: 128\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"bad log level",
			"log_level: verbose",
			"log_level",
		},
		{
			"bad capture backend",
			"audio:\n  backend: alsa",
			"audio.backend",
		},
		{
			"sample rate too low",
			"audio:\n  sample_rate: 4000",
			"sample_rate",
		},
		{
			"gpio without pin",
			"input:\n  backend: gpio",
			"gpio_pin",
		},
		{
			"record min above max",
			"session:\n  record_min: 40s\n  record_max: 35s",
			"record_min",
		},
		{
			"dwell above select timeout",
			"session:\n  select_min_dwell: 31s\n  select_timeout: 30s",
			"select_min_dwell",
		},
		{
			"bad duration string",
			"session:\n  record_max: 35",
			"duration",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	yaml := `
log_level: loud
audio:
  backend: alsa
input:
  backend: touchscreen
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "audio.backend", "input.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}
