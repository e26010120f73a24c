// Package radio defines the southbound broadcaster contract for the BLE
// advertisement collaborator, the advertisement payload encoding, and a
// queued transmitter that keeps command handoff off the radio I/O path.
package radio

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"
)

// CompanyID is the manufacturer data company identifier carried in every
// advertisement frame.
const CompanyID = 0x00FF

// advHeader precedes the strength code in the manufacturer data payload.
const advHeader = "0000006db643ce97fe427c"

// strengthCodes holds the per-level advertisement codes the actuator
// understands; the index is the strength level.
var strengthCodes = [10]string{
	"F41D7C", // level 0, stop
	"F7864E",
	"F60F5F",
	"F1B02B",
	"F0393A",
	"F3A208",
	"F22B19",
	"FDDCE1",
	"FC55F0",
	"C5175C", // level 9, maximum
}

// Payload returns the manufacturer data payload for a strength level.
// Out-of-range levels clamp to the nearest valid code so the radio is
// never handed a frame the device would reject.
func Payload(strength int) []byte {
	if strength < 0 {
		strength = 0
	}
	if strength > len(strengthCodes)-1 {
		strength = len(strengthCodes) - 1
	}
	payload, _ := hex.DecodeString(advHeader + strengthCodes[strength])
	return payload
}

// Broadcaster is the stable southbound contract the dispatch engine
// forwards accepted commands to. Broadcast must be a quick handoff: it
// returns ErrBusy when the transmit path cannot take the frame right
// now, and its result is used for logging only.
type Broadcaster interface {
	Broadcast(ctx context.Context, strength int, hold time.Duration) error
}

// Driver is the raw advertisement primitive: publish the payload and
// hold it on air for the given time. Implemented outside this process
// boundary by the platform BLE stack; LoggingDriver stands in when no
// radio is attached.
type Driver interface {
	Advertise(ctx context.Context, payload []byte, hold time.Duration) error
}

// frame is one queued transmission.
type frame struct {
	strength int
	hold     time.Duration
}

// Transmitter serializes broadcasts onto a single worker goroutine so
// that Broadcast never blocks on radio I/O. A full queue surfaces as
// ErrBusy; a stop frame drains pending frames and cancels the frame
// currently on air so it reaches the device with no further ordering
// delay.
type Transmitter struct {
	driver  Driver
	queue   chan frame
	onError func(error)

	mu       sync.Mutex
	inflight context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewTransmitter creates a transmitter with the given queue depth and
// starts its worker.
func NewTransmitter(driver Driver, queueSize int, onError func(error)) *Transmitter {
	if queueSize < 1 {
		queueSize = 1
	}
	t := &Transmitter{
		driver:  driver,
		queue:   make(chan frame, queueSize),
		onError: onError,
		done:    make(chan struct{}),
	}

	t.wg.Add(1)
	go t.run()

	return t
}

// Broadcast enqueues one transmission. Stop frames (strength 0) discard
// everything still queued and cut short the advertisement currently on
// air before enqueueing, realizing stop priority on the air path as
// well as in the dispatch state.
func (t *Transmitter) Broadcast(ctx context.Context, strength int, hold time.Duration) error {
	select {
	case <-t.done:
		return ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if strength == 0 {
		t.drain()
		t.preempt()
	}

	select {
	case t.queue <- frame{strength: strength, hold: hold}:
		return nil
	default:
		return ErrBusy
	}
}

// drain discards queued frames. Only called on the stop path.
func (t *Transmitter) drain() {
	for {
		select {
		case <-t.queue:
		default:
			return
		}
	}
}

// preempt cancels the advertisement the worker is currently holding on
// air, if any. Only called on the stop path: the worker picks up the
// stop frame next, so the device is never left on a stale level.
func (t *Transmitter) preempt() {
	t.mu.Lock()
	if t.inflight != nil {
		t.inflight()
	}
	t.mu.Unlock()
}

// run is the transmit worker. Each frame is advertised for its hold
// time; driver failures are normalized and reported, never fatal. A
// cancellation is a stop preemption, not a failure.
func (t *Transmitter) run() {
	defer t.wg.Done()

	for {
		select {
		case <-t.done:
			return
		case f := <-t.queue:
			ctx, cancel := context.WithTimeout(context.Background(), f.hold+5*time.Second)
			t.mu.Lock()
			t.inflight = cancel
			t.mu.Unlock()

			err := t.driver.Advertise(ctx, Payload(f.strength), f.hold)

			t.mu.Lock()
			t.inflight = nil
			t.mu.Unlock()
			cancel()

			if err != nil && !errors.Is(err, context.Canceled) {
				normalized := NormalizeDriverError(err, nil)
				if t.onError != nil {
					t.onError(normalized)
				} else {
					log.Printf("radio: broadcast failed: %v", normalized)
				}
			}
		}
	}
}

// Close stops the worker. Queued frames are dropped; the caller is
// expected to have broadcast a stop frame already.
func (t *Transmitter) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
	t.wg.Wait()
}

// LoggingDriver logs each advertisement instead of transmitting. Used
// when the process runs without a radio attached.
type LoggingDriver struct{}

// Advertise implements Driver by logging the frame.
func (LoggingDriver) Advertise(ctx context.Context, payload []byte, hold time.Duration) error {
	log.Printf("radio: advertise company=0x%04X payload=%s hold=%s", CompanyID, hex.EncodeToString(payload), hold)

	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
