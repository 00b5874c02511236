package gen

import (
	"errors"
)

var (
	ErrNodeTerminated = errors.New("node terminated")

	ErrProcessMailboxFull = errors.New("process mailbox is full")
	ErrProcessUnknown     = errors.New("unknown process")
	ErrProcessIncarnation = errors.New("process ID belongs to the previous incarnation")
	ErrProcessTerminated  = errors.New("process terminated")

	ErrHandlerUnknown = errors.New("unknown handler")
	ErrRouteUnknown   = errors.New("unknown route")

	ErrTaken = errors.New("resource is taken")

	ErrTimeout     = errors.New("timed out")
	ErrUnsupported = errors.New("not supported")
	ErrNotAllowed  = errors.New("not allowed")

	ErrIncorrect = errors.New("incorrect value or argument")
	ErrMalformed = errors.New("malformed value")

	ErrNetworkStopped   = errors.New("network stack is stopped")
	ErrPeerUnreachable  = errors.New("peer is unreachable")
	ErrPeerIncompatible = errors.New("peer version is incompatible")
)
