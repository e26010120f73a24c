package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vibe-control/vcc/internal/command"
	"github.com/vibe-control/vcc/internal/pattern"
)

// recordingSubmitter records every step it receives.
type recordingSubmitter struct {
	mu    sync.Mutex
	steps []command.Command
	ids   []uint64
}

func (r *recordingSubmitter) SubmitStep(ctx context.Context, cmd command.Command, sessionID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, cmd)
	r.ids = append(r.ids, sessionID)
	return nil
}

func (r *recordingSubmitter) snapshot() []command.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]command.Command, len(r.steps))
	copy(out, r.steps)
	return out
}

func testPattern(t *testing.T, tokens ...string) *pattern.Pattern {
	t.Helper()
	seq := make([]command.Command, 0, len(tokens))
	for _, token := range tokens {
		cmd, err := command.Parse(token)
		if err != nil {
			t.Fatalf("bad test token %q: %v", token, err)
		}
		seq = append(seq, cmd)
	}
	return &pattern.Pattern{Name: "Test", Author: "t", Sequence: seq}
}

func waitForSteps(t *testing.T, sink *recordingSubmitter, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(sink.snapshot()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d steps, got %d", n, len(sink.snapshot()))
}

func TestSessionCyclesSequence(t *testing.T) {
	sink := &recordingSubmitter{}
	pat := testPattern(t, "9-5ms", "3-5ms", "7-5ms")

	sess := New(1, pat, sink)
	sess.Start()
	defer sess.Stop()

	// Two full passes prove the cursor wraps instead of terminating.
	waitForSteps(t, sink, 7, 2*time.Second)
	sess.Stop()

	steps := sink.snapshot()
	want := []int{9, 3, 7, 9, 3, 7, 9}
	for i, strength := range want {
		if steps[i].Strength != strength {
			t.Errorf("step %d strength = %d, want %d", i, steps[i].Strength, strength)
		}
	}
}

func TestSessionStepsCarrySessionID(t *testing.T) {
	sink := &recordingSubmitter{}
	sess := New(42, testPattern(t, "5-5ms"), sink)
	sess.Start()
	defer sess.Stop()

	waitForSteps(t, sink, 2, time.Second)
	sess.Stop()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for i, id := range sink.ids {
		if id != 42 {
			t.Errorf("step %d session id = %d, want 42", i, id)
		}
	}
}

func TestStopCancelsPendingWaitImmediately(t *testing.T) {
	sink := &recordingSubmitter{}
	// A long hold: stop must not wait for it to elapse.
	sess := New(1, testPattern(t, "5-10s"), sink)
	sess.Start()

	waitForSteps(t, sink, 1, time.Second)

	start := time.Now()
	sess.Stop()
	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("playback loop did not exit after Stop")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Stop took %v, cancellation must be immediate, not polled", elapsed)
	}

	// No further step may fire after stop.
	if got := len(sink.snapshot()); got != 1 {
		t.Errorf("steps after immediate stop = %d, want 1", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	sink := &recordingSubmitter{}
	sess := New(1, testPattern(t, "5-5ms"), sink)
	sess.Start()

	sess.Stop()
	sess.Stop() // second stop is a no-op, not a panic or error
	<-sess.Done()
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	sess := New(1, testPattern(t, "5-5ms"), &recordingSubmitter{})
	sess.Stop()
}

func TestStartAfterStopStaysIdle(t *testing.T) {
	sink := &recordingSubmitter{}
	sess := New(1, testPattern(t, "5-5ms"), sink)

	// Stop can race ahead of Start when the engine preempts a session
	// right after publishing it; the late Start must not revive it.
	sess.Stop()
	sess.Start()

	select {
	case <-sess.Done():
	case <-time.After(time.Second):
		t.Fatal("playback loop did not exit for a session stopped before Start")
	}
	if got := len(sink.snapshot()); got != 0 {
		t.Errorf("steps after Stop-then-Start = %d, want 0", got)
	}
}
