package gen

import (
	"context"
	"fmt"
	"time"

	"ergo.services/actor/future"
)

// Dispatch invokes fn on the target process mailbox with the process behavior
// as the receiver and returns the future of its result. B is the type of the
// behavior (usually a pointer to the struct embedding act.Actor).
//
// The returned future fails right away with ErrProcessUnknown if the target
// does not resolve, with ErrIncorrect if the behavior of the target is not B,
// and with ErrProcessTerminated if the target terminates before handling it.
// If discard was requested before the event is handled, fn is not invoked.
func Dispatch[B any, R any](core Core, to PID, fn func(behavior B) (R, error)) future.Future[R] {
	promise := future.NewPromise[R]()
	task := MessageDispatch{
		Run: func(behavior ProcessBehavior) {
			if promise.Future().HasDiscard() {
				promise.Discard()
				return
			}
			b, ok := behavior.(B)
			if ok == false {
				promise.Fail(fmt.Errorf("%w: behavior %T is not %T", ErrIncorrect, behavior, *new(B)))
				return
			}
			result, err := fn(b)
			if err != nil {
				promise.Fail(err)
				return
			}
			promise.Set(result)
		},
		Abandon: func(reason error) {
			promise.Fail(reason)
		},
	}

	if err := core.RouteDispatch(to, task); err != nil {
		return future.Failed[R](err)
	}
	return promise.Future()
}

// DispatchFuture is like Dispatch, but fn returns a future. The returned
// future is associated with it, so the target can finish the work asynchronously.
func DispatchFuture[B any, R any](core Core, to PID, fn func(behavior B) future.Future[R]) future.Future[R] {
	promise := future.NewPromise[R]()
	task := MessageDispatch{
		Run: func(behavior ProcessBehavior) {
			if promise.Future().HasDiscard() {
				promise.Discard()
				return
			}
			b, ok := behavior.(B)
			if ok == false {
				promise.Fail(fmt.Errorf("%w: behavior %T is not %T", ErrIncorrect, behavior, *new(B)))
				return
			}
			promise.Associate(fn(b))
		},
		Abandon: func(reason error) {
			promise.Fail(reason)
		},
	}

	if err := core.RouteDispatch(to, task); err != nil {
		return future.Failed[R](err)
	}
	return promise.Future()
}

// Defer returns a reusable function dispatching fn to the target with the given
// argument. It is used to resume the work on the process mailbox once a future
// is resolved:
//
//	f := future.ThenFuture(request, gen.Defer(process, process.PID(), (*MyActor).handleReply))
func Defer[B any, T any, R any](core Core, to PID, fn func(behavior B, arg T) (R, error)) func(T) future.Future[R] {
	return func(arg T) future.Future[R] {
		return Dispatch(core, to, func(b B) (R, error) {
			return fn(b, arg)
		})
	}
}

// Delay dispatches fn to the target once the node clock reaches now+d.
// On the paused clock it happens within the Advance call moving the time past
// the deadline (the event is enqueued there, use Node.Settle to wait for it
// to be handled).
func Delay[B any](core Core, d time.Duration, to PID, fn func(behavior B)) CancelFunc {
	timer := core.Time().Timer(d, func() {
		Dispatch(core, to, func(b B) (struct{}, error) {
			fn(b)
			return struct{}{}, nil
		})
	})
	return timer.Cancel
}

// Await blocks the caller until the future is resolved and returns its result.
// It is available to the external goroutines only since it requires the node.
func Await[T any](ctx context.Context, node Node, f future.Future[T]) (T, error) {
	if err := node.Await(ctx, f); err != nil {
		var empty T
		return empty, err
	}
	return f.Get()
}
