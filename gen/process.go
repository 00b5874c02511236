package gen

import (
	"errors"
	"fmt"

	"ergo.services/actor/future"
	"ergo.services/actor/web"
)

// ProcessBehavior interface defines the callbacks the node invokes on the
// process events.
//
// All callbacks of a process are executed sequentially, at most one worker
// goroutine runs the process code at any instant. Callbacks must not block:
// an asynchronous step is expressed by returning a pending future and
// resuming the work with Defer.
//
// Usually it is implemented by embedding act.Actor.
type ProcessBehavior interface {
	// ProcessInit is the first event of the process. Returning error terminates the process.
	ProcessInit(process Process, args ...any) error

	// ProcessMessage handles a message with no installed handler for its name.
	// Returning error terminates the process with that error as reason.
	ProcessMessage(from PID, name Atom, body []byte) error

	// ProcessExited is invoked when a linked process has terminated or its node
	// became unreachable. The link is already removed at this point.
	ProcessExited(pid PID, reason error) error

	// ProcessTerminate is the teardown step. It is invoked once the process
	// handles the terminate event, before the exited notifications are sent to
	// the observers.
	ProcessTerminate(reason error)
}

// ProcessFactory creates a new ProcessBehavior instance on each call.
type ProcessFactory func() ProcessBehavior

// CancelFunc cancels the delayed operation. Returns false if it has already happened.
type CancelFunc func() bool

// MessageHandler handles a named message. Returning error terminates the process.
type MessageHandler func(from PID, body []byte) error

// RouteHandler handles an HTTP request routed to the process.
type RouteHandler func(request *web.Request) future.Future[*web.Response]

// ProcessState represents the current state of a process in its lifecycle.
type ProcessState int32

func (p ProcessState) String() string {
	switch p {
	case ProcessStateInit:
		return "init"
	case ProcessStateSleep:
		return "sleep"
	case ProcessStateRunning:
		return "running"
	case ProcessStateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state#%d", int32(p))
}

func (p ProcessState) MarshalJSON() ([]byte, error) {
	return []byte("\"" + p.String() + "\""), nil
}

const (
	// ProcessStateInit indicates process is created, but not registered yet.
	ProcessStateInit ProcessState = 1

	// ProcessStateSleep indicates process is idle, waiting for events.
	// No worker is assigned to the process.
	ProcessStateSleep ProcessState = 2

	// ProcessStateRunning indicates a worker is draining the process mailbox.
	// Enqueueing an event to the running process doesn't schedule it again,
	// the event is picked up by the same drain pass.
	ProcessStateRunning ProcessState = 4

	// ProcessStateTerminated is the final state of the process.
	ProcessStateTerminated ProcessState = 16
)

var (
	// TerminateReasonNormal indicates normal process termination.
	// Return it from a handler to stop the process gracefully.
	// Does not trigger error logging.
	TerminateReasonNormal error = errors.New("normal")

	// TerminateReasonPanic indicates the process terminated due to a panic
	// in its handler code.
	TerminateReasonPanic error = errors.New("panic")

	// TerminateReasonShutdown indicates the process terminated due to node shutdown.
	// Does not trigger error logging.
	TerminateReasonShutdown error = errors.New("shutdown")
)

// Process interface is given to the process behavior on init. It is the only
// way for the handler code to reach the node. It provides no blocking
// operations: waiting for a future inside a handler is expressed by a
// continuation (see Defer).
type Process interface {
	Core

	// PID returns the process identifier.
	PID() PID
	// Name returns the registered name of this process.
	Name() Atom
	// State returns the current process state.
	State() ProcessState
	// Uptime returns process uptime in seconds.
	Uptime() int64
	// Log returns the logger of this process.
	Log() Log
	// Behavior returns the behavior this process was spawned with.
	Behavior() ProcessBehavior

	// Spawn creates a new process.
	Spawn(factory ProcessFactory, options ProcessOptions, args ...any) (PID, error)

	// Send sends the named message. Sending to an unknown process is silently
	// dropped, error is returned only if the message couldn't be enqueued
	// (ErrProcessMailboxFull).
	Send(to PID, name Atom, body []byte) error

	// SendTerminate enqueues a terminate event to the given process. With inject
	// enabled the event is put ahead of the other queued events.
	SendTerminate(to PID, inject bool) error

	// Link makes this process observe the target. Once the target terminates
	// (or its node becomes unreachable) this process gets the exited event.
	// Linking to a dead target delivers the exited event right away, ahead
	// of the other queued events. Linking is idempotent.
	Link(target PID) error
	// Unlink removes the observation.
	Unlink(target PID) error
	// Links returns the list of observed processes.
	Links() []PID

	// Install registers the handler for the named messages.
	// ErrTaken is returned if the name is already in use.
	Install(name Atom, handler MessageHandler) error
	// Uninstall removes the handler.
	Uninstall(name Atom) error
	// Route registers the HTTP handler for the path /<process name><path>.
	// Requests are matched by the longest route prefix.
	Route(path string, description string, handler RouteHandler) error

	// Reaped returns a future resolved once the given process is terminated
	// and its exited notifications are delivered.
	Reaped(pid PID) future.Future[struct{}]
}

// ProcessOptions
type ProcessOptions struct {
	// Name of the process. Empty name makes node generate one.
	Name Atom
	// Strict makes Spawn fail with ErrTaken if the name is in use. Otherwise
	// the name gets a suffix counter: name(1), name(2)...
	Strict bool
	// MailboxSize defines the maximum length of the main mailbox queue.
	// Zero (default) means unlimited mailbox size. Injected events (terminate
	// requests, exited notifications of the dead links) are never limited.
	MailboxSize int64
	// LogLevel makes the process use a level other than the node has.
	LogLevel LogLevel
}

// MailboxQueues
type MailboxQueues struct {
	Main   int64
	Urgent int64
}

// RouteInfo
type RouteInfo struct {
	Path        string
	Description string
}

// ProcessInfo
type ProcessInfo struct {
	PID         PID
	Behavior    string
	State       ProcessState
	Uptime      int64
	MailboxSize int64
	// MailboxQueues number of the events in the queues
	MailboxQueues MailboxQueues
	MessagesIn    uint64
	MessagesOut   uint64
	// RunningTime in nanoseconds
	RunningTime uint64
	// Links observed processes
	Links []PID
	// Observers number of processes observing this one
	Observers int
	Handlers  []Atom
	Routes    []RouteInfo
	LogLevel  LogLevel
}
