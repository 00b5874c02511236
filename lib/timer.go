package lib

import (
	"sync"
	"time"
)

var (
	timers = &sync.Pool{
		New: func() any {
			t := time.NewTimer(time.Hour)
			t.Stop()
			return t
		},
	}
)

// TakeTimer returns a stopped timer from the pool armed to fire after d.
func TakeTimer(d time.Duration) *time.Timer {
	t := timers.Get().(*time.Timer)
	t.Reset(d)
	return t
}

// ReleaseTimer stops the timer, drains its channel and returns it to the pool.
func ReleaseTimer(t *time.Timer) {
	if t.Stop() == false {
		select {
		case <-t.C:
		default:
		}
	}
	timers.Put(t)
}
