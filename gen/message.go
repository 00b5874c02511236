package gen

import "time"

// MessageExitPID is the exited notification of the linked process.
type MessageExitPID struct {
	PID    PID
	Reason error
}

// MessageDispatch is a task to be executed on the target process mailbox.
// Use the typed helpers Dispatch, Defer and Delay to create it.
type MessageDispatch struct {
	// Run is invoked with the target process behavior.
	Run func(behavior ProcessBehavior)
	// Abandon is invoked if the task is dropped without running (the target
	// terminated before handling it).
	Abandon func(reason error)
}

// MessageLog
type MessageLog struct {
	Time   time.Time
	Level  LogLevel
	Source any // MessageLogProcess, MessageLogNode
	Format string
	Args   []any
}

// MessageLogProcess
type MessageLogProcess struct {
	Node     Address
	PID      PID
	Behavior string
}

// MessageLogNode
type MessageLogNode struct {
	Node     Address
	Creation int64
}
