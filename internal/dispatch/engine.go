package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/pattern"
	"github.com/vibe-control/vcc/internal/playback"
	"github.com/vibe-control/vcc/internal/radio"
)

// defaultStopHold is the advertisement hold for the stop frame when no
// configured value is supplied.
const defaultStopHold = 50 * time.Millisecond

// Engine is the single serialization point for device commands. Submit,
// SubmitStep, Play and Stop are the only mutators of State; each runs as
// one critical section under the engine mutex, so state transitions are
// atomic and totally ordered across all producer activities.
//
// Arbitration policy:
//  1. The stop command always wins: it cancels any active session,
//     clears State to the stop command and goes straight to the radio.
//  2. A manual (gui/http) non-stop command preempts an active session.
//     Pattern playback never overrides manual control.
//  3. A pattern step is applied only while its session is still the
//     current one; a stopped session's late step is silently discarded.
//  4. Accepted commands are last-writer-wins; nothing is queued or
//     merged.
type Engine struct {
	mu            sync.Mutex
	state         State
	session       *playback.Session
	nextSessionID uint64

	broadcaster radio.Broadcaster
	status      StatusSink
	audit       AuditLogger
	stopHold    time.Duration
}

// Compile-time assertions that Engine satisfies its ports.
var (
	_ EnginePort         = (*Engine)(nil)
	_ playback.Submitter = (*Engine)(nil)
)

// NewEngine creates an engine forwarding to the given broadcaster.
// stopHold is how long the stop frame is held on air; zero selects the
// default.
func NewEngine(broadcaster radio.Broadcaster, stopHold time.Duration) *Engine {
	if stopHold <= 0 {
		stopHold = defaultStopHold
	}
	return &Engine{
		state: State{
			Last:   command.Stop(),
			Source: SourceStop,
			Status: StatusReady,
		},
		broadcaster: broadcaster,
		stopHold:    stopHold,
	}
}

// SetStatusSink sets the sink receiving status updates for the surfaces.
func (e *Engine) SetStatusSink(sink StatusSink) {
	e.status = sink
}

// SetAuditLogger sets the audit logger.
func (e *Engine) SetAuditLogger(logger AuditLogger) {
	e.audit = logger
}

// State returns a copy of the current dispatch state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Submit accepts a command from a surface. Stop commands from any source
// win immediately; other commands preempt active playback (manual
// control always overrides a pattern). A radio.ErrBusy handoff failure
// rejects the command with state unchanged and the active session, if
// any, still playing; preemption happens only once the handoff is
// accepted. The caller retries with backoff.
func (e *Engine) Submit(ctx context.Context, cmd command.Command, source Source) error {
	start := time.Now()

	if cmd.IsStop() {
		return e.stop(ctx, source, start)
	}

	// Pattern steps come in through SubmitStep with a session ID; a
	// bare pattern-tagged Submit has no session to validate against.
	if source == SourcePattern {
		e.logAudit(ctx, "submit", cmd.String(), "BAD_REQUEST", time.Since(start))
		return ErrInvalidParameter
	}

	e.mu.Lock()
	if err := e.broadcaster.Broadcast(ctx, cmd.Strength, cmd.HoldTime()); err != nil {
		if errors.Is(err, radio.ErrBusy) {
			// Handoff refused: the command is not accepted, the state
			// is unchanged and an active session keeps playing.
			e.mu.Unlock()
			e.logAudit(ctx, "submit", cmd.String(), "BUSY", time.Since(start))
			return err
		}
		// Anything else is best-effort radio trouble: the command is
		// still the authoritative state, the failure is reported.
		e.stopSessionLocked()
		e.applyLocked(cmd, source, 0)
		st := e.state
		e.mu.Unlock()
		e.logAudit(ctx, "submit", cmd.String(), "DEGRADED", time.Since(start))
		e.publishFault(err, "broadcast failed")
		e.publishAccepted(cmd, source, st)
		return nil
	}

	preempted := e.stopSessionLocked()
	e.applyLocked(cmd, source, 0)
	st := e.state
	e.mu.Unlock()

	result := "SUCCESS"
	if preempted {
		result = "PREEMPTED_PATTERN"
	}
	e.logAudit(ctx, "submit", cmd.String(), result, time.Since(start))
	e.publishAccepted(cmd, source, st)
	return nil
}

// SubmitStep accepts one step from a playback session. Steps from a
// session that is no longer current are silently discarded: that closes
// the race where a stopped session's in-flight timer fires once more.
func (e *Engine) SubmitStep(ctx context.Context, cmd command.Command, sessionID uint64) error {
	start := time.Now()

	e.mu.Lock()
	if e.session == nil || e.state.SessionID != sessionID {
		e.mu.Unlock()
		e.logAudit(ctx, "step", cmd.String(), "STALE", time.Since(start))
		return nil
	}

	if err := e.broadcaster.Broadcast(ctx, cmd.Strength, cmd.HoldTime()); err != nil {
		e.mu.Unlock()
		if errors.Is(err, radio.ErrBusy) {
			// Dropped step; the session keeps its own schedule.
			e.logAudit(ctx, "step", cmd.String(), "BUSY", time.Since(start))
			return err
		}
		e.logAudit(ctx, "step", cmd.String(), "ERROR", time.Since(start))
		e.publishFault(err, "broadcast failed")
		return err
	}

	e.applyLocked(cmd, SourcePattern, sessionID)
	st := e.state
	e.mu.Unlock()

	e.logAudit(ctx, "step", cmd.String(), "SUCCESS", time.Since(start))
	e.publishAccepted(cmd, SourcePattern, st)
	return nil
}

// Play starts playback of a pattern. Fails with ErrAlreadyPlaying while
// a session is active: stop-then-start is the caller's decision, the
// engine only preempts for manual commands.
func (e *Engine) Play(ctx context.Context, pat *pattern.Pattern) error {
	start := time.Now()

	if pat == nil || len(pat.Sequence) == 0 {
		e.logAudit(ctx, "play", "", "BAD_REQUEST", time.Since(start))
		return ErrInvalidParameter
	}

	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		e.logAudit(ctx, "play", pat.DisplayName(), "ALREADY_PLAYING", time.Since(start))
		return ErrAlreadyPlaying
	}

	e.nextSessionID++
	sess := playback.New(e.nextSessionID, pat, e)
	e.session = sess
	e.state.SessionID = sess.ID()
	e.state.Pattern = pat.DisplayName()
	e.state.Status = StatusPlayingPattern
	st := e.state
	e.mu.Unlock()

	// The session runs on its own goroutine, detached from the request
	// context: playback outlives the HTTP call that started it.
	sess.Start()

	e.logAudit(ctx, "play", pat.DisplayName(), "SUCCESS", time.Since(start))
	e.publishStatus(StatusPlayingPattern, st)
	return nil
}

// Stop is the fail-safe entry point: equivalent to submitting the stop
// sentinel from the given source.
func (e *Engine) Stop(ctx context.Context, source Source) error {
	return e.Submit(ctx, command.Stop(), source)
}

// stop realizes arbitration rule 1. It never fails: the state is
// cleared to the stop command even when the radio path misbehaves, and
// the transmitter drains its queue for stop frames so the device is
// commanded to zero before any queued command could land.
func (e *Engine) stop(ctx context.Context, source Source, start time.Time) error {
	stopCmd := command.Stop()

	e.mu.Lock()
	e.stopSessionLocked()
	e.state = State{
		Last:   stopCmd,
		Source: source,
		Status: StatusStopped,
	}
	err := e.broadcaster.Broadcast(ctx, 0, e.stopHold)
	st := e.state
	e.mu.Unlock()

	result := "SUCCESS"
	if err != nil {
		result = "DEGRADED"
	}
	e.logAudit(ctx, "stop", string(source), result, time.Since(start))
	if err != nil {
		e.publishFault(err, "failed to broadcast stop")
	}
	e.publishStatus(StatusStopped, st)
	return nil
}

// stopSessionLocked cancels the active session, if any, and clears the
// session reference. Session.Stop only cancels; it never blocks, so
// calling it under the engine mutex cannot deadlock against a step that
// is waiting for the same mutex — that step will find itself stale.
func (e *Engine) stopSessionLocked() bool {
	if e.session == nil {
		return false
	}
	e.session.Stop()
	e.session = nil
	e.state.SessionID = 0
	e.state.Pattern = ""
	return true
}

// applyLocked performs the last-writer-wins state replacement.
func (e *Engine) applyLocked(cmd command.Command, source Source, sessionID uint64) {
	e.state.Last = cmd
	e.state.Source = source
	e.state.SessionID = sessionID
	if sessionID == 0 {
		e.state.Pattern = ""
		e.state.Status = StatusRunning
	} else {
		e.state.Status = StatusPlayingPattern
	}
}

// publishAccepted pushes the command echo and the matching display
// state. st is the snapshot captured in the same critical section that
// applied cmd, so the pair cannot mix in state from a later submission.
func (e *Engine) publishAccepted(cmd command.Command, source Source, st State) {
	if e.status == nil {
		return
	}
	e.status.PublishCommand(cmd, source)
	e.status.PublishStatus(st.Status, st)
}

func (e *Engine) publishStatus(st Status, state State) {
	if e.status == nil {
		return
	}
	e.status.PublishStatus(st, state)
}

func (e *Engine) publishFault(err error, message string) {
	if e.status == nil {
		return
	}
	e.status.PublishFault(err, message)
}

func (e *Engine) logAudit(ctx context.Context, action, detail, result string, latency time.Duration) {
	if e.audit != nil {
		e.audit.LogAction(ctx, action, detail, result, latency)
	}
}
