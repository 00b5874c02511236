package node

import (
	"sync/atomic"
	"time"

	"ergo.services/actor/gen"
	"ergo.services/actor/lib"
)

//
// logger wrapper. Messages are queued and delivered to the logger behavior by
// a separate goroutine, so a slow output never holds the workers.
//

func createLogger(name string, behavior gen.LoggerBehavior, filter []gen.LogLevel) *logger {
	if len(filter) == 0 {
		filter = gen.DefaultLogFilter
	}
	l := &logger{
		name:     name,
		behavior: behavior,
		queue:    lib.NewQueueMPSC[gen.MessageLog](),
		levels:   make(map[gen.LogLevel]bool),
	}
	for _, level := range filter {
		l.levels[level] = true
	}
	return l
}

type logger struct {
	name     string
	behavior gen.LoggerBehavior
	levels   map[gen.LogLevel]bool
	queue    lib.QueueMPSC[gen.MessageLog]
	state    atomic.Int32 // 0 - sleep, 1 - running
}

func (l *logger) Log(message gen.MessageLog) {
	if l.levels[message.Level] == false {
		return
	}
	l.queue.Push(message)
	l.run()
}

func (l *logger) run() {
	if l.state.CompareAndSwap(0, 1) == false {
		return
	}
	go func() {
	next:
		for {
			message, ok := l.queue.Pop()
			if ok == false {
				break
			}
			l.behavior.Log(message)
		}
		l.state.Store(0)
		if l.queue.Item() == nil {
			return
		}
		if l.state.CompareAndSwap(0, 1) == false {
			return
		}
		goto next
	}()
}

// terminate waits for the queued messages to be written and terminates the behavior
func (l *logger) terminate() {
	deadline := time.Now().Add(time.Second)
	for l.queue.Len() > 0 || l.state.Load() == 1 {
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	l.behavior.Terminate()
}
