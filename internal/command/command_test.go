package command

import (
	"errors"
	"testing"
	"time"
)

func TestParseValid(t *testing.T) {
	tests := []struct {
		token    string
		strength int
		duration float64
		unit     Unit
	}{
		{"9-500ms", 9, 500, Milliseconds},
		{"3-1.5s", 3, 1.5, Seconds},
		{"0-100ms", 0, 100, Milliseconds},
		{"5-1000ms", 5, 1000, Milliseconds},
		{"7-200ms", 7, 200, Milliseconds},
		{"1-0.05s", 1, 0.05, Seconds},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			cmd, err := Parse(tt.token)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.token, err)
			}
			if cmd.Strength != tt.strength {
				t.Errorf("Strength = %d, want %d", cmd.Strength, tt.strength)
			}
			if cmd.Duration != tt.duration {
				t.Errorf("Duration = %v, want %v", cmd.Duration, tt.duration)
			}
			if cmd.Unit != tt.unit {
				t.Errorf("Unit = %q, want %q", cmd.Unit, tt.unit)
			}
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		token  string
		reason string
	}{
		{"10-1s", "strength out of range"},
		{"-1-1s", "non-numeric strength"},
		{"x-1s", "non-numeric strength"},
		{"5-0ms", "non-positive duration"},
		{"5--3ms", "non-positive duration"},
		{"5-NaNms", "non-finite duration"},
		{"5-Infs", "non-finite duration"},
		{"5--Infms", "non-finite duration"},
		{"5-1h", "unknown or missing unit"},
		{"5-1", "unknown or missing unit"},
		{"5-ms", "non-numeric duration"},
		{"500ms", "missing '-' separator"},
		{"", "missing '-' separator"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := Parse(tt.token)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want malformed command error", tt.token)
			}
			var malformed *MalformedCommandError
			if !errors.As(err, &malformed) {
				t.Fatalf("Parse(%q) error type = %T, want *MalformedCommandError", tt.token, err)
			}
			if malformed.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", malformed.Reason, tt.reason)
			}
			if malformed.Token != tt.token {
				t.Errorf("token = %q, want %q", malformed.Token, tt.token)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tokens := []string{"9-500ms", "3-1.5s", "0-100ms", "5-0.25s", "1-750ms"}

	for _, token := range tokens {
		cmd, err := Parse(token)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", token, err)
		}
		again, err := Parse(cmd.String())
		if err != nil {
			t.Fatalf("Parse(%q.String() = %q) failed: %v", token, cmd.String(), err)
		}
		if again != cmd {
			t.Errorf("round trip of %q: got %+v, want %+v", token, again, cmd)
		}
	}
}

func TestHoldTime(t *testing.T) {
	tests := []struct {
		token string
		want  time.Duration
	}{
		{"9-500ms", 500 * time.Millisecond},
		{"3-1.5s", 1500 * time.Millisecond},
		{"5-2s", 2 * time.Second},
	}

	for _, tt := range tests {
		cmd, err := Parse(tt.token)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tt.token, err)
		}
		if got := cmd.HoldTime(); got != tt.want {
			t.Errorf("HoldTime(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestStopSentinel(t *testing.T) {
	stop := Stop()
	if !stop.IsStop() {
		t.Error("Stop() is not recognized as the stop sentinel")
	}
	if stop.Strength != 0 || stop.Duration != 0 {
		t.Errorf("Stop() = %+v, want strength 0 and zero duration", stop)
	}

	// A zero-strength command with a real duration is not the sentinel.
	cmd, err := Parse("0-250ms")
	if err != nil {
		t.Fatalf("Parse(0-250ms) failed: %v", err)
	}
	if cmd.IsStop() {
		t.Error("0-250ms must not be treated as the stop sentinel")
	}
}

func TestDurationLabel(t *testing.T) {
	cmd, err := Parse("5-1000ms")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cmd.DurationLabel(); got != "1000ms" {
		t.Errorf("DurationLabel = %q, want %q", got, "1000ms")
	}

	cmd, err = Parse("3-1.5s")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := cmd.DurationLabel(); got != "1.5s" {
		t.Errorf("DurationLabel = %q, want %q", got, "1.5s")
	}
}
