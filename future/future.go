// Package future implements asynchronous result containers.
//
// A Promise is the write side, a Future is the read side. A future is resolved
// exactly once into one of the terminal states (Ready, Failed, Discarded).
// Callbacks attached to a pending future are invoked in attachment order by the
// goroutine that resolves it. Callbacks attached to a resolved future are invoked
// right away by the attaching goroutine.
//
// Nothing in this package blocks. Waiting for a future from outside of the actor
// runtime is done with gen.Node.Await.
package future

import (
	"fmt"
	"sync"
)

type State int32

const (
	StatePending State = iota
	StateReady
	StateFailed
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDiscarded:
		return "discarded"
	}
	return fmt.Sprintf("state#%d", int32(s))
}

type state[T any] struct {
	sync.Mutex

	state      State
	value      T
	err        error
	discard    bool // discard has been requested
	associated bool // the outcome is taken from another future

	callbacks []func()
	onDiscard []func()
}

// Future is a read handle for the asynchronous result. It is a small value,
// copies refer to the same result.
type Future[T any] struct {
	s *state[T]
}

// Promise is the write handle resolving its Future.
type Promise[T any] struct {
	s *state[T]
}

// NewPromise creates a promise with a pending future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{s: &state[T]{}}
}

// Ready returns a future resolved with the given value.
func Ready[T any](value T) Future[T] {
	return Future[T]{s: &state[T]{state: StateReady, value: value}}
}

// Failed returns a future failed with the given reason.
func Failed[T any](reason error) Future[T] {
	return Future[T]{s: &state[T]{state: StateFailed, err: reason}}
}

// Discarded returns an already discarded future.
func Discarded[T any]() Future[T] {
	return Future[T]{s: &state[T]{state: StateDiscarded, discard: true}}
}

//
// Promise
//

// Future returns the read handle of this promise.
func (p *Promise[T]) Future() Future[T] {
	return Future[T]{s: p.s}
}

// Set resolves the future with the value. Returns ErrResolved if it was already resolved.
func (p *Promise[T]) Set(value T) error {
	return p.s.transit(StateReady, value, nil, false)
}

// Fail resolves the future with the failure reason.
func (p *Promise[T]) Fail(reason error) error {
	var empty T
	if reason == nil {
		reason = fmt.Errorf("failed with nil reason")
	}
	return p.s.transit(StateFailed, empty, reason, false)
}

// Discard moves the future into the discarded state. Usually called by the
// producer after it has seen a discard request (Future.HasDiscard).
func (p *Promise[T]) Discard() error {
	var empty T
	return p.s.transit(StateDiscarded, empty, nil, false)
}

// Associate binds the outcome of this promise to the given future. Discard requests
// made on this promise's future are forwarded to f. Once associated the promise
// can not be resolved directly anymore.
func (p *Promise[T]) Associate(f Future[T]) error {
	if f.s == nil {
		// zero Future, there is nothing to wait for
		if err := p.Fail(ErrIncorrect); err != nil {
			return err
		}
		return ErrIncorrect
	}

	s := p.s
	s.Lock()
	if s.state != StatePending {
		s.Unlock()
		return ErrResolved
	}
	if s.associated {
		s.Unlock()
		return ErrAssociated
	}
	s.associated = true
	s.Unlock()

	// forward discard requests (including the one made before association)
	p.Future().OnDiscard(func() {
		f.Discard()
	})

	f.OnAny(func(f Future[T]) {
		s.transit(f.s.state, f.s.value, f.s.err, true)
	})
	return nil
}

func (s *state[T]) transit(st State, value T, err error, association bool) error {
	s.Lock()
	if s.state != StatePending {
		s.Unlock()
		return ErrResolved
	}
	if s.associated && association == false {
		s.Unlock()
		return ErrAssociated
	}
	s.state = st
	s.value = value
	s.err = err
	if st == StateDiscarded {
		s.discard = true
	}
	callbacks := s.callbacks
	s.callbacks = nil
	s.onDiscard = nil
	s.Unlock()

	// run callbacks outside of the lock so they can attach to this future again
	for _, cb := range callbacks {
		cb()
	}
	return nil
}

// attach runs cb once the future is resolved
func (s *state[T]) attach(cb func()) {
	s.Lock()
	if s.state == StatePending {
		s.callbacks = append(s.callbacks, cb)
		s.Unlock()
		return
	}
	s.Unlock()
	cb()
}

//
// Future
//

func (f Future[T]) State() State {
	f.s.Lock()
	defer f.s.Unlock()
	return f.s.state
}

func (f Future[T]) IsPending() bool {
	return f.State() == StatePending
}

func (f Future[T]) IsReady() bool {
	return f.State() == StateReady
}

func (f Future[T]) IsFailed() bool {
	return f.State() == StateFailed
}

func (f Future[T]) IsDiscarded() bool {
	return f.State() == StateDiscarded
}

// HasDiscard reports whether a discard was requested for this future.
func (f Future[T]) HasDiscard() bool {
	f.s.Lock()
	defer f.s.Unlock()
	return f.s.discard
}

// Get returns the result without blocking. ErrPending is returned for a pending future,
// ErrDiscarded for a discarded one and the failure reason for a failed one.
func (f Future[T]) Get() (T, error) {
	var empty T
	f.s.Lock()
	defer f.s.Unlock()
	switch f.s.state {
	case StateReady:
		return f.s.value, nil
	case StateFailed:
		return empty, f.s.err
	case StateDiscarded:
		return empty, ErrDiscarded
	}
	return empty, ErrPending
}

// Failure returns the failure reason or nil if the future is not failed.
func (f Future[T]) Failure() error {
	f.s.Lock()
	defer f.s.Unlock()
	if f.s.state != StateFailed {
		return nil
	}
	return f.s.err
}

// Discard requests the producer to abandon the computation. The request is advisory:
// the future becomes discarded only if the producer calls Promise.Discard.
// Returns false if the future is already resolved or the discard was requested earlier.
func (f Future[T]) Discard() bool {
	s := f.s
	s.Lock()
	if s.state != StatePending || s.discard {
		s.Unlock()
		return false
	}
	s.discard = true
	callbacks := s.onDiscard
	s.onDiscard = nil
	s.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return true
}

// OnDiscard registers a producer side callback invoked on a discard request.
// It is invoked right away if the discard was already requested and the future is still pending.
func (f Future[T]) OnDiscard(fn func()) Future[T] {
	s := f.s
	s.Lock()
	if s.state != StatePending {
		s.Unlock()
		return f
	}
	if s.discard {
		s.Unlock()
		fn()
		return f
	}
	s.onDiscard = append(s.onDiscard, fn)
	s.Unlock()
	return f
}

func (f Future[T]) OnReady(fn func(value T)) Future[T] {
	f.s.attach(func() {
		if f.s.state == StateReady {
			fn(f.s.value)
		}
	})
	return f
}

func (f Future[T]) OnFailed(fn func(reason error)) Future[T] {
	f.s.attach(func() {
		if f.s.state == StateFailed {
			fn(f.s.err)
		}
	})
	return f
}

func (f Future[T]) OnDiscarded(fn func()) Future[T] {
	f.s.attach(func() {
		if f.s.state == StateDiscarded {
			fn()
		}
	})
	return f
}

// OnAny invokes fn with the resolved future whatever the terminal state is.
func (f Future[T]) OnAny(fn func(f Future[T])) Future[T] {
	f.s.attach(func() {
		fn(f)
	})
	return f
}

// Notify invokes fn once the future leaves the pending state. It makes any Future
// usable through the Awaitable interface.
func (f Future[T]) Notify(fn func()) {
	f.s.attach(fn)
}

func (f Future[T]) String() string {
	return fmt.Sprintf("Future[%T](%s)", *new(T), f.State())
}

// Awaitable is implemented by every Future regardless of its value type.
type Awaitable interface {
	State() State
	Notify(fn func())
	Discard() bool
}
