package future

import (
	"fmt"
	"sync/atomic"
)

// Then returns a future resolved with the result of fn applied to the value of f.
// If f fails or gets discarded, fn is not invoked and the returned future
// takes the same terminal state. An error returned by fn fails the returned future.
// Discard requests on the returned future are forwarded to f.
func Then[T, R any](f Future[T], fn func(value T) (R, error)) Future[R] {
	promise := NewPromise[R]()
	promise.Future().OnDiscard(func() {
		f.Discard()
	})

	f.OnAny(func(f Future[T]) {
		switch f.s.state {
		case StateReady:
			result, err := fn(f.s.value)
			if err != nil {
				promise.Fail(err)
				return
			}
			promise.Set(result)
		case StateFailed:
			promise.Fail(f.s.err)
		case StateDiscarded:
			promise.Discard()
		}
	})
	return promise.Future()
}

// ThenFuture is like Then, but fn returns a future the result is associated with.
func ThenFuture[T, R any](f Future[T], fn func(value T) Future[R]) Future[R] {
	promise := NewPromise[R]()
	promise.Future().OnDiscard(func() {
		f.Discard()
	})

	f.OnAny(func(f Future[T]) {
		switch f.s.state {
		case StateReady:
			promise.Associate(fn(f.s.value))
		case StateFailed:
			promise.Fail(f.s.err)
		case StateDiscarded:
			promise.Discard()
		}
	})
	return promise.Future()
}

// Recover invokes fn if f fails or gets discarded (with ErrDiscarded as a reason)
// and associates the returned future with its result. A ready f passes through.
func Recover[T any](f Future[T], fn func(reason error) Future[T]) Future[T] {
	promise := NewPromise[T]()
	promise.Future().OnDiscard(func() {
		f.Discard()
	})

	f.OnAny(func(f Future[T]) {
		switch f.s.state {
		case StateReady:
			promise.Set(f.s.value)
		case StateFailed:
			promise.Associate(fn(f.s.err))
		case StateDiscarded:
			promise.Associate(fn(ErrDiscarded))
		}
	})
	return promise.Future()
}

// Collect combines the futures into a future of their values, in the same order.
// It fails as soon as any member fails or gets discarded, requesting
// discard of all the members that are still pending.
func Collect[T any](futures ...Future[T]) Future[[]T] {
	promise := NewPromise[[]T]()
	if len(futures) == 0 {
		promise.Set([]T{})
		return promise.Future()
	}

	values := make([]T, len(futures))
	var remaining atomic.Int64
	remaining.Store(int64(len(futures)))

	discardAll := func() {
		for _, f := range futures {
			f.Discard()
		}
	}
	promise.Future().OnDiscard(discardAll)

	for i, f := range futures {
		i := i
		f.OnAny(func(f Future[T]) {
			switch f.s.state {
			case StateReady:
				values[i] = f.s.value
				if remaining.Add(-1) == 0 {
					promise.Set(values)
				}
			case StateFailed:
				if promise.Fail(f.s.err) == nil {
					discardAll()
				}
			case StateDiscarded:
				if promise.Fail(fmt.Errorf("collect member #%d: %w", i, ErrDiscarded)) == nil {
					discardAll()
				}
			}
		})
	}
	return promise.Future()
}
