// Package clock provides the time source of the node. In the real mode the time
// follows the wall clock and timers are fired by a background goroutine. In the
// paused mode the time moves only by Advance or Update, which fire every due
// timer synchronously before returning.
package clock

import (
	"container/heap"
	"sync"
	"time"

	"ergo.services/actor/lib"
)

// Listener gets notified about the mode switching and the time advancing.
// Methods are called outside of the clock lock.
type Listener interface {
	ClockPaused(now time.Time)
	ClockResumed(now time.Time)
	ClockAdvanced(now time.Time)
}

type Clock struct {
	sync.Mutex

	paused  bool
	current time.Time // used in the paused mode only

	timers timerHeap
	seq    uint64
	firing int // popped timers whose functions are still running

	listeners []Listener

	wake    chan struct{}
	stop    chan struct{}
	stopped bool
	done    chan struct{}
}

// Timer is a scheduled function call.
type Timer struct {
	clock    *Clock
	deadline time.Time
	seq      uint64
	index    int // position in the heap, -1 if it is not there
	fn       func()
}

// New creates a clock in the real mode and starts its timer loop.
// Stop must be called to release the loop goroutine.
func New() *Clock {
	c := &Clock{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Now returns the current time of the clock.
func (c *Clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now()
}

func (c *Clock) now() time.Time {
	if c.paused {
		return c.current
	}
	return time.Now()
}

// Paused reports whether the clock is in the paused mode.
func (c *Clock) Paused() bool {
	c.Lock()
	defer c.Unlock()
	return c.paused
}

// Pause freezes the time. Timers stop firing until the time gets advanced
// or the clock gets resumed.
func (c *Clock) Pause() {
	c.Lock()
	if c.paused {
		c.Unlock()
		return
	}
	c.current = time.Now()
	c.paused = true
	now := c.current
	listeners := c.listeners
	c.Unlock()

	for _, l := range listeners {
		l.ClockPaused(now)
	}
}

// Resume switches the clock back to the real mode. Timers scheduled on the
// virtual time fire once the wall clock reaches their deadline.
func (c *Clock) Resume() {
	c.Lock()
	if c.paused == false {
		c.Unlock()
		return
	}
	c.paused = false
	listeners := c.listeners
	c.Unlock()

	c.signal()
	now := time.Now()
	for _, l := range listeners {
		l.ClockResumed(now)
	}
}

// Advance moves the paused clock forward and fires every timer which is due,
// in deadline order. Timers with the same deadline fire in the order they were
// scheduled. Has no effect in the real mode.
func (c *Clock) Advance(d time.Duration) {
	c.Lock()
	if c.paused == false {
		c.Unlock()
		return
	}
	if d > 0 {
		c.current = c.current.Add(d)
	}
	c.Unlock()
	c.settle()
}

// Update moves the paused clock forward to the given time. Moving backwards
// is ignored.
func (c *Clock) Update(t time.Time) {
	c.Lock()
	if c.paused == false {
		c.Unlock()
		return
	}
	if t.After(c.current) {
		c.current = t
	}
	c.Unlock()
	c.settle()
}

// settle fires every due timer of the paused clock. Timers scheduled by the
// fired ones fire within the same pass only if they are already due.
func (c *Clock) settle() {
	for {
		c.Lock()
		due := c.popDue(c.current)
		now := c.current
		listeners := c.listeners
		c.Unlock()

		if len(due) == 0 {
			for _, l := range listeners {
				l.ClockAdvanced(now)
			}
			return
		}
		c.run(due)
	}
}

// AddListener registers a listener of the clock notifications.
func (c *Clock) AddListener(l Listener) {
	c.Lock()
	defer c.Unlock()
	c.listeners = append(c.listeners, l)
}

// RemoveListener removes a previously added listener.
func (c *Clock) RemoveListener(l Listener) {
	c.Lock()
	defer c.Unlock()
	for i, listener := range c.listeners {
		if listener != l {
			continue
		}
		listeners := make([]Listener, 0, len(c.listeners)-1)
		listeners = append(listeners, c.listeners[:i]...)
		c.listeners = append(listeners, c.listeners[i+1:]...)
		return
	}
}

// Timer schedules fn to be called once the clock reaches now+d.
// fn is called on the clock goroutine in the real mode or on the goroutine
// calling Advance/Update in the paused mode, so it must not block.
func (c *Clock) Timer(d time.Duration, fn func()) *Timer {
	c.Lock()
	c.seq++
	t := &Timer{
		clock:    c,
		deadline: c.now().Add(d),
		seq:      c.seq,
		fn:       fn,
	}
	heap.Push(&c.timers, t)
	first := c.timers[0] == t
	paused := c.paused
	c.Unlock()

	if first && paused == false {
		c.signal()
	}
	return t
}

// Pending returns the number of scheduled timers.
func (c *Clock) Pending() int {
	c.Lock()
	defer c.Unlock()
	return len(c.timers)
}

// Due reports whether any scheduled timer has reached its deadline
// but has not fired yet.
func (c *Clock) Due() bool {
	c.Lock()
	defer c.Unlock()
	if c.firing > 0 {
		return true
	}
	if len(c.timers) == 0 {
		return false
	}
	return c.timers[0].deadline.After(c.now()) == false
}

// Stop terminates the timer loop. Scheduled timers are dropped.
func (c *Clock) Stop() {
	c.Lock()
	if c.stopped {
		c.Unlock()
		return
	}
	c.stopped = true
	for _, t := range c.timers {
		t.index = -1
	}
	c.timers = nil
	c.Unlock()

	close(c.stop)
	<-c.done
}

// Deadline returns the time the timer fires at.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Cancel removes the timer. Returns false if the timer has already fired
// or was canceled before.
func (t *Timer) Cancel() bool {
	c := t.clock
	c.Lock()
	defer c.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&c.timers, t.index)
	return true
}

func (c *Clock) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// popDue must be called with the lock held
func (c *Clock) popDue(now time.Time) []*Timer {
	var due []*Timer
	for len(c.timers) > 0 {
		if c.timers[0].deadline.After(now) {
			break
		}
		due = append(due, heap.Pop(&c.timers).(*Timer))
	}
	c.firing += len(due)
	return due
}

func (c *Clock) run(due []*Timer) {
	for _, t := range due {
		t.fn()
	}
	c.Lock()
	c.firing -= len(due)
	c.Unlock()
}

func (c *Clock) loop() {
	defer close(c.done)

	for {
		var wait <-chan time.Time
		var timer *time.Timer

		c.Lock()
		if c.paused == false && len(c.timers) > 0 {
			now := time.Now()
			due := c.popDue(now)
			if len(due) > 0 {
				c.Unlock()
				c.run(due)
				continue
			}
			timer = lib.TakeTimer(c.timers[0].deadline.Sub(now))
			wait = timer.C
		}
		c.Unlock()

		select {
		case <-wait:
		case <-c.wake:
		case <-c.stop:
			if timer != nil {
				lib.ReleaseTimer(timer)
			}
			return
		}
		if timer != nil {
			lib.ReleaseTimer(timer)
		}
	}
}

//
// timer heap ordered by (deadline, seq)
//

type timerHeap []*Timer

func (h timerHeap) Len() int {
	return len(h)
}

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
