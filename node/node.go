package node

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ergo.services/actor/clock"
	"ergo.services/actor/future"
	"ergo.services/actor/gen"
	"ergo.services/actor/lib"
	"ergo.services/actor/lib/osdep"
)

const (
	stopTimeout    = 5 * time.Second
	settleInterval = time.Millisecond
)

type node struct {
	address   gen.Address
	version   gen.Version
	framework gen.Version
	creation  int64
	running   atomic.Bool

	workers   int
	registry  *registry
	scheduler *scheduler
	clock     *clock.Clock
	// remote link table
	targets *target
	network *network

	serial atomic.Uint64
	// number of the events in all mailboxes (queued, or being handled)
	queued atomic.Int64

	log      *log
	lmutex   sync.RWMutex
	loggers  map[string]*logger
	loggersl []*logger // snapshot for the fan-out
}

// Start creates and starts a new node with the given options.
func Start(options gen.NodeOptions, framework gen.Version) (gen.Node, error) {
	if options.Workers < 1 {
		options.Workers = lib.Workers()
	}
	if options.Network.Host == "" {
		options.Network.Host = lib.GetHostname()
	}
	if options.Network.RequestTimeout == 0 {
		options.Network.RequestTimeout = gen.DefaultRequestTimeout
	}
	if options.Network.PeerTimeout == 0 {
		options.Network.PeerTimeout = gen.DefaultPeerTimeout
	}
	if options.Log.Level == gen.LogLevelDefault {
		options.Log.Level = gen.DefaultLogLevel
	}

	n := &node{
		address: gen.Address{
			Host: options.Network.Host,
			Port: options.Network.Port,
		},
		version:   options.Version,
		framework: framework,
		creation:  time.Now().Unix(),
		workers:   options.Workers,
		registry:  createRegistry(),
		scheduler: createScheduler(options.Workers),
		clock:     clock.New(),
		targets:   createTarget(),
		loggers:   make(map[string]*logger),
	}
	n.log = createLog(options.Log.Level, n.dolog)

	if options.Log.DefaultLogger.Disable == false {
		n.LoggerAdd("default", gen.CreateDefaultLogger(options.Log.DefaultLogger))
	}
	for _, l := range options.Log.Loggers {
		if err := n.LoggerAdd(l.Name, l.Logger, l.Filter...); err != nil {
			n.terminateLoggers()
			n.clock.Stop()
			return nil, err
		}
	}

	if options.Network.Disable == false {
		nw, err := createNetwork(n, options.Network)
		if err != nil {
			n.terminateLoggers()
			n.clock.Stop()
			return nil, err
		}
		n.network = nw
		n.address = nw.address
	}

	n.log.setSource(gen.MessageLogNode{Node: n.address, Creation: n.creation})

	n.running.Store(true)
	n.scheduler.start()
	if n.network != nil {
		n.network.start()
	}

	n.log.Info("node %s started (%s)", n.address, framework)
	return n, nil
}

//
// gen.Core interface implementation
//

func (n *node) RouteDispatch(to gen.PID, dispatch gen.MessageDispatch) error {
	if to.Node != n.address {
		return gen.ErrUnsupported
	}
	p, err := n.resolve(to)
	if err != nil {
		return err
	}
	m := gen.TakeMailboxMessage()
	m.Type = gen.MailboxMessageTypeDispatch
	m.Message = dispatch
	return p.enqueue(m, false)
}

func (n *node) Clock() *clock.Clock {
	return n.clock
}

func (n *node) Time() clock.Source {
	return n.clock
}

//
// gen.Node interface implementation
//

func (n *node) Address() gen.Address {
	return n.address
}

func (n *node) Version() gen.Version {
	return n.version
}

func (n *node) Uptime() int64 {
	if n.IsAlive() == false {
		return 0
	}
	return time.Now().Unix() - n.creation
}

func (n *node) IsAlive() bool {
	return n.running.Load()
}

func (n *node) Spawn(factory gen.ProcessFactory, options gen.ProcessOptions, args ...any) (gen.PID, error) {
	return n.spawn(factory, options, args...)
}

func (n *node) Lookup(pid gen.PID) bool {
	_, err := n.resolve(pid)
	return err == nil
}

func (n *node) Send(to gen.PID, name gen.Atom, body []byte) error {
	return n.route(gen.PID{Node: n.address}, to, name, body)
}

func (n *node) Terminate(pid gen.PID, inject bool) error {
	return n.terminate(pid, gen.TerminateReasonNormal, inject)
}

func (n *node) Wait(ctx context.Context, pid gen.PID) error {
	if pid.Node != n.address {
		return gen.ErrUnsupported
	}
	return n.Await(ctx, n.Reaped(pid))
}

func (n *node) Reaped(pid gen.PID) future.Future[struct{}] {
	if pid.Node != n.address {
		return future.Failed[struct{}](gen.ErrUnsupported)
	}
	p, err := n.resolve(pid)
	if err != nil {
		return future.Ready(struct{}{})
	}
	return p.reaped.Future()
}

func (n *node) Await(ctx context.Context, f future.Awaitable) error {
	if f.State() != future.StatePending {
		return nil
	}
	done := make(chan struct{})
	f.Notify(func() {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		f.Discard()
		return ctx.Err()
	}
}

func (n *node) Settle(ctx context.Context) error {
	ticker := time.NewTicker(settleInterval)
	defer ticker.Stop()
	for {
		if n.queued.Load() == 0 && n.clock.Due() == false {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *node) ProcessList() []gen.PID {
	list := n.registry.list()
	pids := make([]gen.PID, 0, len(list))
	for _, p := range list {
		pids = append(pids, p.pid)
	}
	return pids
}

func (n *node) ProcessInfo(pid gen.PID) (gen.ProcessInfo, error) {
	p, err := n.resolve(pid)
	if err != nil {
		return gen.ProcessInfo{}, err
	}
	return p.info(), nil
}

func (n *node) Info() gen.NodeInfo {
	info := gen.NodeInfo{
		Address:   n.address,
		Version:   n.version,
		Uptime:    n.Uptime(),
		Workers:   n.workers,
		Processes: int64(n.registry.count()),
		Queued:    n.queued.Load(),
		Timers:    n.clock.Pending(),
	}
	if n.network != nil {
		info.Peers = n.network.peers()
	}

	n.lmutex.RLock()
	for name := range n.loggers {
		info.Loggers = append(info.Loggers, name)
	}
	n.lmutex.RUnlock()
	sort.Strings(info.Loggers)

	info.UserTime, info.SystemTime = osdep.ResourceUsage()
	return info
}

func (n *node) Log() gen.Log {
	return n.log
}

func (n *node) LoggerAdd(name string, logger gen.LoggerBehavior, filter ...gen.LogLevel) error {
	if logger == nil {
		return gen.ErrIncorrect
	}
	n.lmutex.Lock()
	defer n.lmutex.Unlock()
	if _, exist := n.loggers[name]; exist {
		return gen.ErrTaken
	}
	n.loggers[name] = createLogger(name, logger, filter)
	n.snapshotLoggers()
	return nil
}

func (n *node) LoggerDelete(name string) {
	n.lmutex.Lock()
	l, exist := n.loggers[name]
	if exist {
		delete(n.loggers, name)
		n.snapshotLoggers()
	}
	n.lmutex.Unlock()

	if exist {
		l.terminate()
	}
}

func (n *node) Stop() {
	if n.running.CompareAndSwap(true, false) == false {
		return
	}

	list := n.registry.list()
	for _, p := range list {
		m := gen.TakeMailboxMessage()
		m.From = gen.PID{Node: n.address}
		m.Type = gen.MailboxMessageTypeTerminate
		m.Message = gen.TerminateReasonShutdown
		p.enqueue(m, true)
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for _, p := range list {
		if err := n.Await(ctx, p.reaped.Future()); err != nil {
			n.log.Warning("node is stopping, but %d process(es) still alive", n.registry.count())
			break
		}
	}

	if n.network != nil {
		n.network.stop()
	}
	n.scheduler.terminate()
	n.clock.Stop()

	n.log.Info("node %s stopped", n.address)
	n.terminateLoggers()
}

//
// internals
//

func (n *node) spawn(factory gen.ProcessFactory, options gen.ProcessOptions, args ...any) (gen.PID, error) {
	var empty gen.PID

	if n.IsAlive() == false {
		return empty, gen.ErrNodeTerminated
	}
	if factory == nil {
		return empty, gen.ErrIncorrect
	}
	behavior := factory()
	if behavior == nil {
		return empty, gen.ErrIncorrect
	}

	id := n.serial.Add(1)
	name := options.Name
	if name == "" {
		name = gen.Atom(fmt.Sprintf("__process__(%d)", id))
	}
	if options.LogLevel == gen.LogLevelDefault {
		options.LogLevel = n.log.Level()
	}

	p := &process{
		node: n,
		pid: gen.PID{
			ID:   id,
			Node: n.address,
		},
		creation:  time.Now().Unix(),
		behavior:  behavior,
		sbehavior: behaviorName(behavior),
		state:     int32(gen.ProcessStateInit),
		mailbox: gen.ProcessMailbox{
			Main:   lib.NewQueueLimitMPSC[*gen.MailboxMessage](options.MailboxSize),
			Urgent: lib.NewQueueMPSC[*gen.MailboxMessage](),
		},
		reaped: future.NewPromise[struct{}](),
		log:    createLog(options.LogLevel, n.dolog),
	}

	// the init event goes first, nobody can reach the process yet
	m := gen.TakeMailboxMessage()
	m.From = gen.PID{Node: n.address}
	m.Type = gen.MailboxMessageTypeInit
	m.Message = args
	p.enqueue(m, true)

	if err := n.registry.register(p, name, options.Strict); err != nil {
		p.drop()
		return empty, err
	}

	p.log.setSource(gen.MessageLogProcess{
		Node:     n.address,
		PID:      p.pid,
		Behavior: p.sbehavior,
	})

	atomic.StoreInt32(&p.state, int32(gen.ProcessStateSleep))
	p.run()
	return p.pid, nil
}

// resolve returns the live local process. A PID with zero ID matches any
// incarnation of the name.
func (n *node) resolve(pid gen.PID) (*process, error) {
	if pid.Node != n.address {
		return nil, gen.ErrProcessUnknown
	}
	p, found := n.registry.get(pid.Name)
	if found == false {
		return nil, gen.ErrProcessUnknown
	}
	if pid.ID != 0 && pid.ID != p.pid.ID {
		return nil, gen.ErrProcessIncarnation
	}
	return p, nil
}

func (n *node) route(from gen.PID, to gen.PID, name gen.Atom, body []byte) error {
	if to.Node != n.address {
		if n.network == nil {
			return gen.ErrNetworkStopped
		}
		return n.network.send(from, to, name, body)
	}
	return n.deliver(from, to, name, body)
}

// deliver puts the regular message into the mailbox of the local process
func (n *node) deliver(from gen.PID, to gen.PID, name gen.Atom, body []byte) error {
	p, err := n.resolve(to)
	if err != nil {
		// sending to an unknown process is not an error
		if lib.Trace() {
			n.log.Trace("message %q from %s to unknown process %s dropped", name, from, to)
		}
		return nil
	}

	m := gen.TakeMailboxMessage()
	m.From = from
	m.Type = gen.MailboxMessageTypeRegular
	m.Name = name
	m.Message = body
	if err := p.enqueue(m, false); err != gen.ErrProcessTerminated {
		return err
	}
	return nil
}

func (n *node) terminate(pid gen.PID, reason error, inject bool) error {
	p, err := n.resolve(pid)
	if err != nil {
		return err
	}
	m := gen.TakeMailboxMessage()
	m.From = gen.PID{Node: n.address}
	m.Type = gen.MailboxMessageTypeTerminate
	m.Message = reason
	if err := p.enqueue(m, inject); err != gen.ErrProcessTerminated {
		return err
	}
	return nil
}

// sendExit delivers the exited notification of the target to the observer
func (n *node) sendExit(to gen.PID, target gen.PID, reason error, urgent bool) error {
	p, err := n.resolve(to)
	if err != nil {
		return err
	}

	m := gen.TakeMailboxMessage()
	m.From = target
	m.Type = gen.MailboxMessageTypeExit
	m.Message = gen.MessageExitPID{PID: target, Reason: reason}
	err = p.enqueue(m, urgent)
	if err == gen.ErrProcessMailboxFull {
		// exited notification must not be lost
		m = gen.TakeMailboxMessage()
		m.From = target
		m.Type = gen.MailboxMessageTypeExit
		m.Message = gen.MessageExitPID{PID: target, Reason: reason}
		err = p.enqueue(m, true)
	}
	if err == gen.ErrProcessTerminated {
		return nil
	}
	return err
}

// unregisterProcess is called by the terminating process
func (n *node) unregisterProcess(p *process, reason error) {
	n.registry.unregister(p)

	// notify observers
	for _, pid := range p.observers.close() {
		n.sendExit(pid, p.pid, reason, false)
	}

	// remove own links
	p.targets.Range(func(k, _ any) bool {
		target := k.(gen.PID)
		p.targets.Delete(target)
		if target.Node != n.address {
			n.targets.unregisterConsumer(target, p.pid)
			return true
		}
		if t, err := n.resolve(target); err == nil {
			t.observers.remove(p.pid)
		}
		return true
	})

	p.drop()
	p.reaped.Set(struct{}{})
	if lib.Trace() {
		n.log.Trace("process %s terminated with reason %q", p.pid, reason)
	}
}

func (n *node) linkRemote(consumer gen.PID, target gen.PID) {
	if n.targets.registerConsumer(target, consumer) == false {
		return
	}
	if n.network == nil {
		n.peerDown(target.Node, gen.ErrNetworkStopped)
		return
	}
	n.network.probe(target.Node)
}

// peerDown fires the links to the processes of the unreachable node
func (n *node) peerDown(peer gen.Address, reason error) {
	for _, target := range n.targets.targetsNodeDown(peer) {
		for _, consumer := range n.targets.unregister(target) {
			n.sendExit(consumer, target, reason, false)
		}
	}
}

func (n *node) dolog(m gen.MessageLog) {
	n.lmutex.RLock()
	loggers := n.loggersl
	n.lmutex.RUnlock()
	for _, l := range loggers {
		l.Log(m)
	}
}

func (n *node) snapshotLoggers() {
	list := make([]*logger, 0, len(n.loggers))
	for _, l := range n.loggers {
		list = append(list, l)
	}
	n.loggersl = list
}

func (n *node) terminateLoggers() {
	n.lmutex.Lock()
	loggers := n.loggersl
	n.loggers = make(map[string]*logger)
	n.loggersl = nil
	n.lmutex.Unlock()

	for _, l := range loggers {
		l.terminate()
	}
}
