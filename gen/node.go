package gen

import (
	"context"
	"time"

	"ergo.services/actor/clock"
	"ergo.services/actor/future"
	"ergo.services/actor/web"
)

// Node is the runtime context. It owns the process registry, the scheduler
// with its worker pool, the clock and the HTTP server. Node methods are safe
// to be used from any goroutine.
//
// The blocking methods (Wait, Await, Settle) are for the external goroutines
// only. Calling them from the handler code would block the worker, so the
// Process interface does not expose the node.
type Node interface {
	Core

	// Clock returns the node clock. Pausing and advancing it is meant for
	// the tests only.
	Clock() *clock.Clock

	// Address returns the address of this node. It is a part of every PID
	// spawned on this node.
	Address() Address
	// Version returns the version of this node.
	Version() Version
	// Uptime returns the node uptime in seconds.
	Uptime() int64
	// IsAlive returns false once the node is stopped.
	IsAlive() bool

	// Spawn creates a process. It is registered right away, the init event
	// is the first event it handles.
	Spawn(factory ProcessFactory, options ProcessOptions, args ...any) (PID, error)

	// Lookup reports whether the PID resolves to a live process.
	Lookup(pid PID) bool

	// Send sends the named message with no sender (the From field has the
	// node address only). Sending to an unknown process is silently dropped.
	Send(to PID, name Atom, body []byte) error

	// Terminate enqueues a terminate event to the process. With inject
	// enabled the event is put ahead of the other queued events.
	// It does not wait for the process termination, use Wait for that.
	Terminate(pid PID, inject bool) error

	// Wait blocks until the process is terminated and its exited notifications
	// are delivered. Returns right away for the unknown process.
	// Returns ErrUnsupported for the process of another node.
	Wait(ctx context.Context, pid PID) error
	// Reaped is the non-blocking form of Wait.
	Reaped(pid PID) future.Future[struct{}]
	// Await blocks until the future leaves the pending state. If the context
	// is done first, the discard is requested and the context error is returned.
	Await(ctx context.Context, f future.Awaitable) error
	// Settle blocks until every queued event is handled. Intended to be used
	// in tests together with the paused clock.
	Settle(ctx context.Context) error

	// ProcessList returns the list of live processes.
	ProcessList() []PID
	// ProcessInfo returns the process details.
	ProcessInfo(pid PID) (ProcessInfo, error)
	// Info returns the node summary.
	Info() NodeInfo

	// Log returns the logger of this node.
	Log() Log
	// LoggerAdd adds the logger receiving messages of the given levels
	// (all levels if filter is empty).
	LoggerAdd(name string, logger LoggerBehavior, filter ...LogLevel) error
	// LoggerDelete removes the logger and terminates it.
	LoggerDelete(name string)

	// Stop terminates all the processes and stops the node.
	Stop()
}

// NodeOptions
type NodeOptions struct {
	// Workers size of the worker pool. Defaults to the number of CPUs.
	Workers int
	// Network options of the HTTP server
	Network NetworkOptions
	// Log options for the default logger
	Log LogOptions
	// Version sets the version details for your node
	Version Version
}

// NetworkOptions
type NetworkOptions struct {
	// Disable makes node run without the HTTP server. PIDs get the Host and Port
	// from these options anyway.
	Disable bool
	// Host to listen on and to advertise in PIDs. Defaults to lib.GetHostname().
	Host string
	// Port to listen on. Zero means any free port, the resolved one is advertised.
	Port uint16
	// RequestTimeout limits the time a route handler has to respond.
	RequestTimeout time.Duration
	// BodyLimit limits the size of the request body.
	BodyLimit int64
	// PeerTimeout limits the time of the message delivery to the remote node.
	PeerTimeout time.Duration
	// Firewall rules applied to every incoming request.
	Firewall []web.FirewallRule
}

// LogOptions
type LogOptions struct {
	// Level default logging level for node
	Level LogLevel
	// DefaultLogger options
	DefaultLogger DefaultLoggerOptions
	// Loggers add extra loggers on start
	Loggers []Logger
}

type Logger struct {
	Name   string
	Logger LoggerBehavior
	Filter []LogLevel
}

// NodeInfo
type NodeInfo struct {
	Address   Address
	Version   Version
	Uptime    int64
	Workers   int
	Processes int64
	// Queued number of the events in all mailboxes
	Queued  int64
	Timers  int
	Peers   []Address
	Loggers []string
	// UserTime/SystemTime in nanoseconds (zero if unsupported by the OS)
	UserTime   int64
	SystemTime int64
}
