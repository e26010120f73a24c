// Package dispatch implements the arbitration core: it owns the single
// authoritative device state, serializes command submissions from every
// surface and from pattern playback, and forwards each accepted command
// exactly once to the radio broadcaster.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/pattern"
)

// Source tags which surface originated a submission.
type Source string

// Submission sources.
const (
	SourceGUI     Source = "gui"
	SourceHTTP    Source = "http"
	SourcePattern Source = "pattern"
	SourceStop    Source = "stop"
)

// Status is the display state pushed to the surfaces.
type Status string

// Display states.
const (
	StatusReady          Status = "Ready"
	StatusRunning        Status = "Running"
	StatusStopped        Status = "Stopped"
	StatusPlayingPattern Status = "PlayingPattern"
)

// State is the authoritative "what the actuator is currently doing". It
// is owned exclusively by the Engine, initialized to the stop command at
// startup, and forced back to it at shutdown. Everything else holds only
// copies.
type State struct {
	Last      command.Command `json:"last"`
	Source    Source          `json:"source"`
	SessionID uint64          `json:"sessionId,omitempty"`
	Pattern   string          `json:"pattern,omitempty"`
	Status    Status          `json:"status"`
}

// EnginePort is the minimal interface the surfaces need from the engine.
type EnginePort interface {
	Submit(ctx context.Context, cmd command.Command, source Source) error
	Play(ctx context.Context, pat *pattern.Pattern) error
	Stop(ctx context.Context, source Source) error
	State() State
}

// StatusSink receives status and dispatch events for display on the
// surfaces. Implemented by the status hub.
type StatusSink interface {
	PublishStatus(st Status, state State)
	PublishCommand(cmd command.Command, source Source)
	PublishFault(err error, message string)
}

// AuditLogger writes one record per engine action.
type AuditLogger interface {
	LogAction(ctx context.Context, action, detail, result string, latency time.Duration)
}

// Engine errors.
var (
	// ErrAlreadyPlaying rejects a play request while a session is
	// active. The caller stops first; there is no implicit preemption
	// on this path.
	ErrAlreadyPlaying = errors.New("ALREADY_PLAYING")

	// ErrInvalidParameter rejects a structurally invalid request.
	ErrInvalidParameter = errors.New("BAD_REQUEST")
)
