package gen

import (
	"sync"

	"ergo.services/actor/lib"
)

type MailboxMessageType int

const (
	MailboxMessageTypeInit      MailboxMessageType = 0
	MailboxMessageTypeRegular   MailboxMessageType = 1
	MailboxMessageTypeDispatch  MailboxMessageType = 2
	MailboxMessageTypeRequest   MailboxMessageType = 3 // HTTP request
	MailboxMessageTypeExit      MailboxMessageType = 4
	MailboxMessageTypeTerminate MailboxMessageType = 5
)

func (t MailboxMessageType) String() string {
	switch t {
	case MailboxMessageTypeInit:
		return "init"
	case MailboxMessageTypeRegular:
		return "message"
	case MailboxMessageTypeDispatch:
		return "dispatch"
	case MailboxMessageTypeRequest:
		return "http-request"
	case MailboxMessageTypeExit:
		return "exited"
	case MailboxMessageTypeTerminate:
		return "terminate"
	}
	return "unknown"
}

// MailboxMessage is an event queued to the process mailbox.
// The Message field depends on the type:
//   - Regular: []byte body of the message named by Name
//   - Dispatch: MessageDispatch
//   - Exit: MessageExitPID
//   - Terminate: error (reason)
//   - Init: []any (arguments)
type MailboxMessage struct {
	From    PID
	Type    MailboxMessageType
	Name    Atom
	Message any
}

// ProcessMailbox has two queues. Urgent is drained first and takes the
// injected events.
type ProcessMailbox struct {
	Main   lib.QueueMPSC[*MailboxMessage]
	Urgent lib.QueueMPSC[*MailboxMessage]
}

var (
	mbm = &sync.Pool{
		New: func() any {
			return &MailboxMessage{}
		},
	}
)

func TakeMailboxMessage() *MailboxMessage {
	return mbm.Get().(*MailboxMessage)
}

func ReleaseMailboxMessage(m *MailboxMessage) {
	var emptyPID PID
	m.Message = nil
	m.Name = ""
	m.Type = 0
	m.From = emptyPID
	mbm.Put(m)
}
