// Package command implements the command grammar shared by every entry
// point: a token of the form <strength>-<duration><unit> where strength is
// an integer 0-9, duration a positive decimal and unit "ms" or "s".
//
// The HTTP surface and the pattern file loader both parse through this
// package, so the two accept exactly the same grammar.
package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxStrength is the highest intensity level the actuator understands.
const MaxStrength = 9

// Unit is the duration unit of a command token.
type Unit string

// Duration units accepted by the grammar.
const (
	Milliseconds Unit = "ms"
	Seconds      Unit = "s"
)

// Command is a single validated device instruction. Immutable once
// constructed: every entry point builds a fresh value through Parse or
// Stop and never mutates it afterwards.
type Command struct {
	Strength int     `json:"strength"`
	Duration float64 `json:"duration"`
	Unit     Unit    `json:"unit"`
}

// Stop returns the sentinel stop command: strength 0 with zero duration.
// It is the only command with a non-positive duration and the only one
// Parse never produces.
func Stop() Command {
	return Command{Strength: 0, Duration: 0, Unit: Milliseconds}
}

// IsStop reports whether c is the sentinel stop command.
func (c Command) IsStop() bool {
	return c.Strength == 0 && c.Duration == 0
}

// HoldTime converts the duration and unit into the wall-clock time the
// broadcaster should hold the strength level.
func (c Command) HoldTime() time.Duration {
	if c.Unit == Seconds {
		return time.Duration(c.Duration * float64(time.Second))
	}
	return time.Duration(c.Duration * float64(time.Millisecond))
}

// DurationLabel renders the duration with its unit, e.g. "500ms" or "1.5s".
func (c Command) DurationLabel() string {
	return strconv.FormatFloat(c.Duration, 'f', -1, 64) + string(c.Unit)
}

// String re-serializes the command in grammar form. For any command
// produced by Parse, Parse(c.String()) yields an equivalent command.
func (c Command) String() string {
	return strconv.Itoa(c.Strength) + "-" + c.DurationLabel()
}

// MalformedCommandError reports a grammar token that could not be parsed.
// It names the offending token and the reason; callers surface it as a
// usage message, never as a fault.
type MalformedCommandError struct {
	Token  string
	Reason string
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("malformed command %q: %s", e.Token, e.Reason)
}

// Parse parses a grammar token into a Command. Parsing is pure: no side
// effects, no clamping. Out-of-range strengths and non-positive durations
// are rejected, not adjusted.
func Parse(token string) (Command, error) {
	sep := strings.IndexByte(token, '-')
	if sep < 0 {
		return Command{}, &MalformedCommandError{Token: token, Reason: "missing '-' separator"}
	}

	strength, err := strconv.Atoi(token[:sep])
	if err != nil {
		return Command{}, &MalformedCommandError{Token: token, Reason: "non-numeric strength"}
	}
	if strength < 0 || strength > MaxStrength {
		return Command{}, &MalformedCommandError{Token: token, Reason: "strength out of range"}
	}

	rest := token[sep+1:]
	var unit Unit
	switch {
	case strings.HasSuffix(rest, string(Milliseconds)):
		unit = Milliseconds
		rest = strings.TrimSuffix(rest, string(Milliseconds))
	case strings.HasSuffix(rest, string(Seconds)):
		unit = Seconds
		rest = strings.TrimSuffix(rest, string(Seconds))
	default:
		return Command{}, &MalformedCommandError{Token: token, Reason: "unknown or missing unit"}
	}

	duration, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return Command{}, &MalformedCommandError{Token: token, Reason: "non-numeric duration"}
	}
	// ParseFloat accepts "NaN" and "Inf"; neither is a usable hold time
	// and NaN would slip past the non-positive guard below.
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Command{}, &MalformedCommandError{Token: token, Reason: "non-finite duration"}
	}
	if duration <= 0 {
		return Command{}, &MalformedCommandError{Token: token, Reason: "non-positive duration"}
	}

	return Command{Strength: strength, Duration: duration, Unit: unit}, nil
}
