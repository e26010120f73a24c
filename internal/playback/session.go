// Package playback drives a loaded pattern's command sequence forward
// in time: submit a step, wait out its hold time on an owned timer,
// advance, wrapping the cursor after the last element. Playback is
// inherently repeating; only an external stop ends it, so the state
// machine is Idle -> Running -> Idle with no terminal finished state.
package playback

import (
	"context"
	"sync"
	"time"

	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/pattern"
)

// Submitter receives each step of a running session. Implemented by the
// dispatch engine, which discards steps from sessions it no longer
// recognizes.
type Submitter interface {
	SubmitStep(ctx context.Context, cmd command.Command, sessionID uint64) error
}

// Session plays one pattern on its own timer until stopped. Sessions are
// created only by the dispatch engine, which owns the at-most-one-active
// exclusion; a Session itself knows nothing about its siblings.
type Session struct {
	id   uint64
	pat  *pattern.Pattern
	sink Submitter

	// ctx and cancel are created in New, so Stop is safe to call at any
	// point in the lifecycle, including before Start.
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	done      chan struct{}
}

// New creates an idle session for the given pattern.
func New(id uint64, pat *pattern.Pattern, sink Submitter) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:     id,
		pat:    pat,
		sink:   sink,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the engine-assigned session identifier.
func (s *Session) ID() uint64 { return s.id }

// Pattern returns the pattern this session plays.
func (s *Session) Pattern() *pattern.Pattern { return s.pat }

// Start transitions Idle -> Running. The session advances on its own
// goroutine, detached from any caller context. A session stopped before
// Start stays idle: the loop sees the already-cancelled context and
// exits without submitting anything. Further Start calls are no-ops.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run(s.ctx)
	})
}

// Stop cancels the pending wait with immediate effect and transitions
// back to Idle. Idempotent: stopping an already-stopped session is a
// no-op. Stop does not wait for the loop goroutine to unwind; the
// engine's staleness discard covers any step already in flight.
func (s *Session) Stop() {
	s.cancel()
}

// Done is closed when the playback loop has fully exited. Used by tests.
func (s *Session) Done() <-chan struct{} { return s.done }

// run is the playback loop: submit the current step, wait out its hold
// time, advance with wraparound. Cancellation is observed during the
// wait, not polled, so stop takes effect before the next step could
// fire.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	cursor := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cmd := s.pat.Sequence[cursor]

		// A step refused by the engine (stale session, busy radio) is
		// dropped, not retried: the loop keeps its own schedule and the
		// engine owns arbitration.
		_ = s.sink.SubmitStep(ctx, cmd, s.id)

		timer := time.NewTimer(cmd.HoldTime())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		cursor = (cursor + 1) % len(s.pat.Sequence)
	}
}
