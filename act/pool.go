package act

import (
	"fmt"
	"reflect"
	"strings"

	"ergo.services/actor/gen"
)

const (
	defaultPoolSize = 3
)

type PoolBehavior interface {
	gen.ProcessBehavior

	// Init invoked on a spawn Pool for the initializing.
	Init(args ...any) (PoolOptions, error)

	// Terminate invoked on a termination process
	Terminate(reason error)
}

// Pool forwards the incoming messages to the worker processes in the
// round-robin manner. Messages with the installed handler are handled by
// the pool itself. The forwarded message has the pool as the sender.
// Terminated worker is replaced with a new one.
type Pool struct {
	gen.Process

	behavior PoolBehavior
	options  PoolOptions

	workers []gen.PID
	next    int
}

type PoolOptions struct {
	// WorkerMailboxSize defines the mailbox size of the worker processes
	WorkerMailboxSize int64
	// PoolSize defines the number of worker processes. Default is 3
	PoolSize int
	// WorkerFactory used for the worker spawning
	WorkerFactory gen.ProcessFactory
	// WorkerArgs passed to the worker Init callback
	WorkerArgs []any
}

// Workers returns the list of the worker processes
func (p *Pool) Workers() []gen.PID {
	workers := make([]gen.PID, len(p.workers))
	copy(workers, p.workers)
	return workers
}

// AddWorkers spawns n workers more. Returns the pool size.
func (p *Pool) AddWorkers(n int) (int, error) {
	for i := 0; i < n; i++ {
		if err := p.spawnWorker(); err != nil {
			return len(p.workers), err
		}
	}
	return len(p.workers), nil
}

// RemoveWorkers terminates n workers. Returns the pool size.
func (p *Pool) RemoveWorkers(n int) (int, error) {
	for i := 0; i < n; i++ {
		if len(p.workers) == 0 {
			return 0, ErrPoolEmpty
		}
		last := len(p.workers) - 1
		pid := p.workers[last]
		p.workers = p.workers[:last]
		p.Unlink(pid)
		p.SendTerminate(pid, false)
	}
	return len(p.workers), nil
}

func (p *Pool) spawnWorker() error {
	options := gen.ProcessOptions{
		MailboxSize: p.options.WorkerMailboxSize,
	}
	pid, err := p.Spawn(p.options.WorkerFactory, options, p.options.WorkerArgs...)
	if err != nil {
		return err
	}
	if err := p.Link(pid); err != nil {
		p.SendTerminate(pid, true)
		return err
	}
	p.workers = append(p.workers, pid)
	return nil
}

//
// ProcessBehavior implementation
//

func (p *Pool) ProcessInit(process gen.Process, args ...any) error {
	var ok bool

	if p.behavior, ok = process.Behavior().(PoolBehavior); ok == false {
		unknown := strings.TrimPrefix(reflect.TypeOf(process.Behavior()).String(), "*")
		return fmt.Errorf("ProcessInit: not a PoolBehavior %s", unknown)
	}
	p.Process = process

	options, err := p.behavior.Init(args...)
	if err != nil {
		return err
	}
	if options.WorkerFactory == nil {
		return fmt.Errorf("ProcessInit: %w: WorkerFactory is not defined", gen.ErrIncorrect)
	}
	if options.PoolSize < 1 {
		options.PoolSize = defaultPoolSize
	}
	p.options = options

	for i := 0; i < options.PoolSize; i++ {
		if err := p.spawnWorker(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) ProcessMessage(from gen.PID, name gen.Atom, body []byte) error {
	for i := 0; i < len(p.workers); i++ {
		pid := p.workers[p.next%len(p.workers)]
		p.next++
		err := p.Send(pid, name, body)
		if err == nil {
			return nil
		}
		if err != gen.ErrProcessMailboxFull {
			return err
		}
		// try the next one
	}
	p.Log().Error("no worker process in the pool, message %q from %s is dropped", name, from)
	return nil
}

func (p *Pool) ProcessExited(pid gen.PID, reason error) error {
	for i, worker := range p.workers {
		if worker != pid {
			continue
		}
		p.workers = append(p.workers[:i], p.workers[i+1:]...)
		p.Log().Warning("worker %s terminated (%s), restarting", pid, reason)
		return p.spawnWorker()
	}
	return nil
}

func (p *Pool) ProcessTerminate(reason error) {
	for _, pid := range p.workers {
		p.SendTerminate(pid, true)
	}
	p.behavior.Terminate(reason)
}

//
// default callbacks
//

func (p *Pool) Terminate(reason error) {}
