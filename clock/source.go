package clock

import (
	"time"
)

// Source is the read-only view of a clock. It schedules timers but can not
// pause, resume or advance the time.
type Source interface {
	Now() time.Time
	Timer(d time.Duration, fn func()) *Timer
}

// ReadOnly returns the view of c hiding the time control.
func ReadOnly(c *Clock) Source {
	return readOnly{c: c}
}

type readOnly struct {
	c *Clock
}

func (r readOnly) Now() time.Time {
	return r.c.Now()
}

func (r readOnly) Timer(d time.Duration, fn func()) *Timer {
	return r.c.Timer(d, fn)
}
