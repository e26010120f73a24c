// Package fake provides a recording broadcaster implementation for
// testing: any component that talks to the radio must behave the same
// against the fake as against a real transmitter.
package fake

import (
	"context"
	"sync"
	"time"
)

// Broadcast is one recorded transmission.
type Broadcast struct {
	Strength int
	Hold     time.Duration
}

// Broadcaster implements radio.Broadcaster, recording every broadcast.
// Safe for concurrent use; the dispatch engine submits from multiple
// goroutines.
type Broadcaster struct {
	mu         sync.Mutex
	broadcasts []Broadcast

	// Error injection
	failWith error
}

// NewBroadcaster creates a recording fake broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Broadcast records the transmission, or returns the injected error.
func (b *Broadcaster) Broadcast(ctx context.Context, strength int, hold time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failWith != nil {
		return b.failWith
	}

	b.broadcasts = append(b.broadcasts, Broadcast{Strength: strength, Hold: hold})
	return nil
}

// FailWith makes every subsequent Broadcast return err. Pass nil to
// restore normal recording.
func (b *Broadcaster) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = err
}

// Broadcasts returns a copy of everything recorded so far.
func (b *Broadcaster) Broadcasts() []Broadcast {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Broadcast, len(b.broadcasts))
	copy(out, b.broadcasts)
	return out
}

// Last returns the most recent broadcast and whether one exists.
func (b *Broadcaster) Last() (Broadcast, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.broadcasts) == 0 {
		return Broadcast{}, false
	}
	return b.broadcasts[len(b.broadcasts)-1], true
}

// Count returns the number of recorded broadcasts.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.broadcasts)
}

// Reset clears the recording.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcasts = nil
}
