package act

import (
	"errors"

	"ergo.services/actor/gen"
)

// ActorBehavior interface
type ActorBehavior interface {
	gen.ProcessBehavior

	// Init invoked on a spawn Actor for the initializing.
	Init(args ...any) error

	// HandleMessage invoked if Actor received a message with no handler
	// installed for its name (see gen.Process.Install).
	// Non-nil value of the returning error will cause termination of this process.
	// To stop this process normally, return gen.TerminateReasonNormal
	// or any other for abnormal termination.
	HandleMessage(from gen.PID, name gen.Atom, body []byte) error

	// HandleExited invoked if the linked process has terminated or its node
	// became unreachable. Returning error terminates this process.
	HandleExited(pid gen.PID, reason error) error

	// Terminate invoked on a termination process
	Terminate(reason error)
}

// Actor implementats ProcessBehavior interface and provides callbacks for
// - initialization
// - handling messages and exited notifications
// - termination
// All callbacks of the ActorBehavior are optional for the implementation.
//
// Named messages and HTTP routes are handled by the functions installed with
// gen.Process.Install and gen.Process.Route (usually in Init).
type Actor struct {
	gen.Process

	behavior ActorBehavior
}

//
// ProcessBehavior implementation
//

// ProcessInit
func (a *Actor) ProcessInit(process gen.Process, args ...any) error {
	var ok bool

	if a.behavior, ok = process.Behavior().(ActorBehavior); ok == false {
		return errors.New("ProcessInit: not an ActorBehavior")
	}

	a.Process = process
	return a.behavior.Init(args...)
}

func (a *Actor) ProcessMessage(from gen.PID, name gen.Atom, body []byte) error {
	return a.behavior.HandleMessage(from, name, body)
}

func (a *Actor) ProcessExited(pid gen.PID, reason error) error {
	return a.behavior.HandleExited(pid, reason)
}

func (a *Actor) ProcessTerminate(reason error) {
	a.behavior.Terminate(reason)
}

//
// default callbacks for ActorBehavior interface
//

func (a *Actor) Init(args ...any) error {
	return nil
}

func (a *Actor) HandleMessage(from gen.PID, name gen.Atom, body []byte) error {
	a.Log().Warning("Actor.HandleMessage: unhandled message %q from %s", name, from)
	return nil
}

func (a *Actor) HandleExited(pid gen.PID, reason error) error {
	return nil
}

func (a *Actor) Terminate(reason error) {}
