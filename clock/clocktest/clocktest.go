// Package clocktest helps tests to run on the virtual time.
package clocktest

import (
	"testing"
	"time"

	"ergo.services/actor/clock"
)

// Pause pauses the clock for the lifetime of the test. The clock is resumed
// in the test cleanup.
func Pause(t testing.TB, c *clock.Clock) {
	t.Helper()
	if c.Paused() {
		t.Fatal("clock is already paused")
	}
	c.Pause()
	t.Cleanup(c.Resume)
}

// Recorder is a clock.Listener keeping the notifications it got.
type Recorder struct {
	events chan string
}

func NewRecorder() *Recorder {
	return &Recorder{events: make(chan string, 1024)}
}

func (r *Recorder) ClockPaused(time.Time)   { r.push("paused") }
func (r *Recorder) ClockResumed(time.Time)  { r.push("resumed") }
func (r *Recorder) ClockAdvanced(time.Time) { r.push("advanced") }

func (r *Recorder) push(event string) {
	select {
	case r.events <- event:
	default:
	}
}

// Events returns the received notifications in arrival order.
func (r *Recorder) Events() []string {
	var events []string
	for {
		select {
		case e := <-r.events:
			events = append(events, e)
		default:
			return events
		}
	}
}
