package main

import (
	"time"

	"ergo.services/actor/act"
	"ergo.services/actor/future"
	"ergo.services/actor/gen"
	"ergo.services/actor/web"
)

// ponger replies to every ping
type ponger struct {
	act.Actor

	received int
}

func factoryPonger() gen.ProcessBehavior {
	return &ponger{}
}

func (p *ponger) Init(args ...any) error {
	return p.Route("/stats", "number of received pings", func(r *web.Request) future.Future[*web.Response] {
		response, err := web.JSON(map[string]int{"received": p.received})
		if err != nil {
			return future.Failed[*web.Response](err)
		}
		return future.Ready(response)
	})
}

func (p *ponger) HandleMessage(from gen.PID, name gen.Atom, body []byte) error {
	if name != "ping" {
		return p.Actor.HandleMessage(from, name, body)
	}
	p.received++
	return p.Send(from, "pong", body)
}

// pinger sends the given number of pings one by one and resolves the promise
// with the elapsed time once the last pong is received
type pinger struct {
	act.Actor

	target gen.PID
	left   int
	start  time.Time
	done   *future.Promise[time.Duration]
}

func factoryPinger() gen.ProcessBehavior {
	return &pinger{}
}

func (p *pinger) Init(args ...any) error {
	p.target = args[0].(gen.PID)
	p.left = args[1].(int)
	p.done = args[2].(*future.Promise[time.Duration])
	// fail the run if the ponger (or its node) is gone
	return p.Link(p.target)
}

func (p *pinger) HandleMessage(from gen.PID, name gen.Atom, body []byte) error {
	switch name {
	case "start":
		p.start = time.Now()
		return p.Send(p.target, "ping", nil)
	case "pong":
		p.left--
		if p.left > 0 {
			return p.Send(p.target, "ping", nil)
		}
		p.done.Set(time.Since(p.start))
		return gen.TerminateReasonNormal
	}
	return p.Actor.HandleMessage(from, name, body)
}

func (p *pinger) HandleExited(pid gen.PID, reason error) error {
	p.done.Fail(reason)
	return reason
}

// observer terminates once the linked process is terminated
type observer struct {
	act.Actor
}

func factoryObserver() gen.ProcessBehavior {
	return &observer{}
}

func (o *observer) HandleExited(pid gen.PID, reason error) error {
	return gen.TerminateReasonNormal
}

// counter is the target of the dispatch benchmark
type counter struct {
	act.Actor

	value int
}

func factoryCounter() gen.ProcessBehavior {
	return &counter{}
}

func (c *counter) increment() (int, error) {
	c.value++
	return c.value, nil
}
