package gen

import (
	"ergo.services/actor/clock"
)

// Core is the routing interface shared by Node and Process. The typed
// helpers (Dispatch, Defer, Delay) work on top of it, so the same code
// serves the actors and the external goroutines.
type Core interface {
	// RouteDispatch enqueues the dispatch event to the target process.
	// Returns ErrProcessUnknown if the target does not resolve.
	RouteDispatch(to PID, dispatch MessageDispatch) error
	// Time returns the read-only view of the node clock.
	Time() clock.Source
}
