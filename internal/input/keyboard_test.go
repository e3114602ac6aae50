package input

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want Kind
		ok   bool
	}{
		{"", ShortPress, true},
		{"s", ShortPress, true},
		{"S", ShortPress, true},
		{"  s  ", ShortPress, true},
		{"l", LongPress, true},
		{"L", LongPress, true},
		{"x", "", false},
		{"short", "", false},
	}
	for _, tt := range tests {
		got, ok := parseCommand(tt.line)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseCommand(%q) = (%q, %v), want (%q, %v)", tt.line, got, ok, tt.want, tt.ok)
		}
	}
}

func TestKeyboard_EmitsEvents(t *testing.T) {
	t.Parallel()

	k := NewKeyboard(WithReader(strings.NewReader("s\nl\nbogus\n\n")))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := k.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer k.Close()

	want := []Kind{ShortPress, LongPress, ShortPress}
	for i, w := range want {
		select {
		case ev, ok := <-k.Events():
			if !ok {
				t.Fatalf("events channel closed after %d events", i)
			}
			if ev.Kind != w {
				t.Errorf("event %d kind = %q, want %q", i, ev.Kind, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	// Reader exhausted: the channel closes.
	select {
	case _, ok := <-k.Events():
		if ok {
			t.Error("unexpected extra event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after reader EOF")
	}
}

func TestKeyboard_StartTwice(t *testing.T) {
	t.Parallel()

	k := NewKeyboard(WithReader(strings.NewReader("")))
	ctx := context.Background()
	if err := k.Start(ctx); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	defer k.Close()
	if err := k.Start(ctx); err == nil {
		t.Error("second Start() succeeded, want error")
	}
}
