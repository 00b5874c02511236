package node

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ergo.services/actor/clock"
	"ergo.services/actor/future"
	"ergo.services/actor/gen"
	"ergo.services/actor/lib"
	"ergo.services/actor/web"
)

type process struct {
	node *node
	pid  gen.PID

	// used for the process Uptime method only
	creation int64

	behavior  gen.ProcessBehavior
	sbehavior string

	state int32
	// set while a worker drains the mailbox
	executing atomic.Bool
	// ProcessInit has succeeded. Accessed by the draining worker only.
	initialized bool

	mailbox gen.ProcessMailbox
	// serializes dropping the mailbox of the terminated process
	dropMutex sync.Mutex

	messagesIn  atomic.Uint64
	messagesOut atomic.Uint64
	runningTime atomic.Uint64

	// named message handlers and HTTP routes
	hmutex   sync.RWMutex
	handlers map[gen.Atom]gen.MessageHandler
	routes   []route

	// processes observing this one
	observers observers
	// processes this one observes
	targets sync.Map // gen.PID -> struct{}

	reaped *future.Promise[struct{}]

	// gen.Log interface
	log *log
}

type route struct {
	path        string
	description string
	handler     gen.RouteHandler
}

// routeRequest is the message of the http-request event
type routeRequest struct {
	request *web.Request
	// path within the process (without the process name)
	path    string
	promise *future.Promise[*web.Response]
}

type observers struct {
	sync.Mutex
	closed bool
	list   map[gen.PID]struct{}
}

// add returns false if the observed process has terminated
func (o *observers) add(pid gen.PID) bool {
	o.Lock()
	defer o.Unlock()
	if o.closed {
		return false
	}
	if o.list == nil {
		o.list = make(map[gen.PID]struct{})
	}
	o.list[pid] = struct{}{}
	return true
}

func (o *observers) remove(pid gen.PID) {
	o.Lock()
	defer o.Unlock()
	delete(o.list, pid)
}

func (o *observers) close() []gen.PID {
	o.Lock()
	defer o.Unlock()
	o.closed = true
	list := make([]gen.PID, 0, len(o.list))
	for pid := range o.list {
		list = append(list, pid)
	}
	o.list = nil
	return list
}

func (o *observers) len() int {
	o.Lock()
	defer o.Unlock()
	return len(o.list)
}

// gen.Process implementation

func (p *process) RouteDispatch(to gen.PID, dispatch gen.MessageDispatch) error {
	p.messagesOut.Add(1)
	return p.node.RouteDispatch(to, dispatch)
}

func (p *process) Time() clock.Source {
	return clock.ReadOnly(p.node.clock)
}

func (p *process) PID() gen.PID {
	return p.pid
}

func (p *process) Name() gen.Atom {
	return p.pid.Name
}

func (p *process) State() gen.ProcessState {
	return gen.ProcessState(atomic.LoadInt32(&p.state))
}

func (p *process) Uptime() int64 {
	if p.State() == gen.ProcessStateTerminated {
		return 0
	}
	return time.Now().Unix() - p.creation
}

func (p *process) Log() gen.Log {
	return p.log
}

func (p *process) Behavior() gen.ProcessBehavior {
	return p.behavior
}

func (p *process) Spawn(factory gen.ProcessFactory, options gen.ProcessOptions, args ...any) (gen.PID, error) {
	if options.LogLevel == gen.LogLevelDefault {
		options.LogLevel = p.log.Level()
	}
	return p.node.spawn(factory, options, args...)
}

func (p *process) Send(to gen.PID, name gen.Atom, body []byte) error {
	if lib.Trace() {
		p.log.Trace("Send %q to %s", name, to)
	}
	p.messagesOut.Add(1)
	return p.node.route(p.pid, to, name, body)
}

func (p *process) SendTerminate(to gen.PID, inject bool) error {
	return p.node.terminate(to, gen.TerminateReasonNormal, inject)
}

func (p *process) Link(target gen.PID) error {
	if target.Name == p.pid.Name && target.Node == p.pid.Node {
		return gen.ErrNotAllowed
	}
	if lib.Trace() {
		p.log.Trace("Link to %s", target)
	}

	if target.Node != p.node.address {
		if _, exist := p.targets.LoadOrStore(target, struct{}{}); exist {
			return nil
		}
		p.node.linkRemote(p.pid, target)
		return nil
	}

	t, err := p.node.resolve(target)
	if err != nil {
		if _, exist := p.targets.LoadOrStore(target, struct{}{}); exist {
			return nil
		}
		return p.node.sendExit(p.pid, target, gen.ErrProcessUnknown, true)
	}

	// use the full PID of the target, so the exited event matches the link
	if _, exist := p.targets.LoadOrStore(t.pid, struct{}{}); exist {
		return nil
	}
	if t.observers.add(p.pid) {
		return nil
	}
	// target is terminating, its observers are already notified
	return p.node.sendExit(p.pid, t.pid, gen.ErrProcessUnknown, true)
}

func (p *process) Unlink(target gen.PID) error {
	if target.Node != p.node.address {
		if _, exist := p.targets.LoadAndDelete(target); exist {
			p.node.targets.unregisterConsumer(target, p.pid)
		}
		return nil
	}

	p.targets.Delete(target)
	t, err := p.node.resolve(target)
	if err != nil {
		return nil
	}
	p.targets.Delete(t.pid)
	t.observers.remove(p.pid)
	return nil
}

func (p *process) Links() []gen.PID {
	var links []gen.PID
	p.targets.Range(func(k, _ any) bool {
		links = append(links, k.(gen.PID))
		return true
	})
	return links
}

func (p *process) Install(name gen.Atom, handler gen.MessageHandler) error {
	if handler == nil {
		return gen.ErrIncorrect
	}
	p.hmutex.Lock()
	defer p.hmutex.Unlock()
	if _, exist := p.handlers[name]; exist {
		return gen.ErrTaken
	}
	if p.handlers == nil {
		p.handlers = make(map[gen.Atom]gen.MessageHandler)
	}
	p.handlers[name] = handler
	return nil
}

func (p *process) Uninstall(name gen.Atom) error {
	p.hmutex.Lock()
	defer p.hmutex.Unlock()
	if _, exist := p.handlers[name]; exist == false {
		return gen.ErrHandlerUnknown
	}
	delete(p.handlers, name)
	return nil
}

func (p *process) Route(path string, description string, handler gen.RouteHandler) error {
	if handler == nil {
		return gen.ErrIncorrect
	}
	path = "/" + strings.Trim(path, "/")

	p.hmutex.Lock()
	defer p.hmutex.Unlock()
	for _, r := range p.routes {
		if r.path == path {
			return gen.ErrTaken
		}
	}
	p.routes = append(p.routes, route{
		path:        path,
		description: description,
		handler:     handler,
	})
	// longest first
	sort.SliceStable(p.routes, func(i, j int) bool {
		return len(p.routes[i].path) > len(p.routes[j].path)
	})
	return nil
}

func (p *process) Reaped(pid gen.PID) future.Future[struct{}] {
	return p.node.Reaped(pid)
}

// internals

func (p *process) info() gen.ProcessInfo {
	info := gen.ProcessInfo{
		PID:         p.pid,
		Behavior:    p.sbehavior,
		State:       p.State(),
		Uptime:      p.Uptime(),
		MailboxSize: p.mailbox.Main.Size(),
		MailboxQueues: gen.MailboxQueues{
			Main:   p.mailbox.Main.Len(),
			Urgent: p.mailbox.Urgent.Len(),
		},
		MessagesIn:  p.messagesIn.Load(),
		MessagesOut: p.messagesOut.Load(),
		RunningTime: p.runningTime.Load(),
		Links:       p.Links(),
		Observers:   p.observers.len(),
		LogLevel:    p.log.Level(),
	}

	p.hmutex.RLock()
	for name := range p.handlers {
		info.Handlers = append(info.Handlers, name)
	}
	for _, r := range p.routes {
		info.Routes = append(info.Routes, gen.RouteInfo{Path: r.path, Description: r.description})
	}
	p.hmutex.RUnlock()

	sort.Slice(info.Handlers, func(i, j int) bool { return info.Handlers[i] < info.Handlers[j] })
	return info
}

// enqueue puts the event into the mailbox and schedules the process if it is idle
func (p *process) enqueue(m *gen.MailboxMessage, urgent bool) error {
	if atomic.LoadInt32(&p.state) == int32(gen.ProcessStateTerminated) {
		gen.ReleaseMailboxMessage(m)
		return gen.ErrProcessTerminated
	}

	queue := p.mailbox.Main
	if urgent {
		queue = p.mailbox.Urgent
	}

	p.node.queued.Add(1)
	if queue.Push(m) == false {
		p.node.queued.Add(-1)
		gen.ReleaseMailboxMessage(m)
		return gen.ErrProcessMailboxFull
	}
	p.messagesIn.Add(1)

	if atomic.LoadInt32(&p.state) == int32(gen.ProcessStateTerminated) {
		// terminated while we were pushing. the mailbox might be dropped
		// already, so do it again to not leave our event unhandled
		p.drop()
		return nil
	}

	p.run()
	return nil
}

func (p *process) run() {
	if atomic.CompareAndSwapInt32(&p.state, int32(gen.ProcessStateSleep), int32(gen.ProcessStateRunning)) == false {
		// already running or terminated
		return
	}
	p.node.scheduler.schedule(p)
}

// drain is called by a worker. It handles events until the mailbox is empty.
func (p *process) drain() {
	for {
		if p.executing.Swap(true) {
			// two workers on the same process. the private state of the
			// process can not be trusted anymore
			panic(fmt.Sprintf("process %s is executed by two workers at once", p.pid))
		}

		startTime := time.Now().UnixNano()
		terminated := false
		for {
			m, ok := p.mailbox.Urgent.Pop()
			if ok == false {
				m, ok = p.mailbox.Main.Pop()
				if ok == false {
					break
				}
			}

			reason := p.handle(m)
			p.node.queued.Add(-1)
			if reason == nil {
				continue
			}

			p.terminate(reason)
			terminated = true
			break
		}

		// count the running time
		p.runningTime.Add(uint64(time.Now().UnixNano() - startTime))
		p.executing.Store(false)

		if terminated {
			return
		}

		// change running state to sleep
		if atomic.CompareAndSwapInt32(&p.state, int32(gen.ProcessStateRunning), int32(gen.ProcessStateSleep)) == false {
			return
		}
		// check if something left in the mailbox and try to handle it
		if p.mailbox.Urgent.Item() == nil && p.mailbox.Main.Item() == nil {
			return
		}
		// we got new events. try to use this worker again
		if atomic.CompareAndSwapInt32(&p.state, int32(gen.ProcessStateSleep), int32(gen.ProcessStateRunning)) == false {
			// another worker is already running it
			return
		}
	}
}

// handle returns a non-nil reason if the process must be terminated
func (p *process) handle(m *gen.MailboxMessage) (reason error) {
	defer gen.ReleaseMailboxMessage(m)

	if lib.Recover() {
		defer func() {
			if rcv := recover(); rcv != nil {
				pc, fn, line, _ := runtime.Caller(2)
				p.log.Panic("process terminated - %#v at %s[%s:%d]",
					rcv, runtime.FuncForPC(pc).Name(), fn, line)
				// the event is consumed, its waiter must not be left pending
				p.abandon(m, gen.TerminateReasonPanic)
				reason = gen.TerminateReasonPanic
			}
		}()
	}

	switch m.Type {
	case gen.MailboxMessageTypeInit:
		args, _ := m.Message.([]any)
		if err := p.behavior.ProcessInit(p, args...); err != nil {
			return err
		}
		p.initialized = true
		return nil

	case gen.MailboxMessageTypeRegular:
		body, _ := m.Message.([]byte)
		p.hmutex.RLock()
		handler, found := p.handlers[m.Name]
		p.hmutex.RUnlock()
		if found {
			return handler(m.From, body)
		}
		return p.behavior.ProcessMessage(m.From, m.Name, body)

	case gen.MailboxMessageTypeDispatch:
		dispatch := m.Message.(gen.MessageDispatch)
		dispatch.Run(p.behavior)
		return nil

	case gen.MailboxMessageTypeRequest:
		p.handleRequest(m.Message.(*routeRequest))
		return nil

	case gen.MailboxMessageTypeExit:
		exit := m.Message.(gen.MessageExitPID)
		if _, found := p.targets.LoadAndDelete(exit.PID); found == false {
			// unlinked before the notification has been handled
			return nil
		}
		return p.behavior.ProcessExited(exit.PID, exit.Reason)

	case gen.MailboxMessageTypeTerminate:
		if reason, ok := m.Message.(error); ok {
			return reason
		}
		return gen.TerminateReasonNormal
	}

	p.log.Error("unknown event type %d (ignored)", m.Type)
	return nil
}

func (p *process) handleRequest(rr *routeRequest) {
	if rr.promise.Future().HasDiscard() {
		rr.promise.Discard()
		return
	}

	var match *route
	p.hmutex.RLock()
	for i := range p.routes {
		r := &p.routes[i]
		if r.path == "/" || rr.path == r.path || strings.HasPrefix(rr.path, r.path+"/") {
			match = r
			break
		}
	}
	p.hmutex.RUnlock()

	if match == nil {
		rr.promise.Fail(gen.ErrRouteUnknown)
		return
	}
	rr.promise.Associate(match.handler(rr.request))
}

// abandon fails the waiter of the event which is not going to be handled
func (p *process) abandon(m *gen.MailboxMessage, reason error) {
	switch m.Type {
	case gen.MailboxMessageTypeDispatch:
		if dispatch, ok := m.Message.(gen.MessageDispatch); ok && dispatch.Abandon != nil {
			dispatch.Abandon(reason)
		}
	case gen.MailboxMessageTypeRequest:
		if rr, ok := m.Message.(*routeRequest); ok {
			rr.promise.Set(web.ServiceUnavailable(""))
		}
	}
}

// drop abandons all the events of the terminated process
func (p *process) drop() {
	p.dropMutex.Lock()
	defer p.dropMutex.Unlock()

	for _, queue := range []lib.QueueMPSC[*gen.MailboxMessage]{p.mailbox.Urgent, p.mailbox.Main} {
		for {
			m, ok := queue.Pop()
			if ok == false {
				break
			}
			p.abandon(m, gen.ErrProcessTerminated)
			gen.ReleaseMailboxMessage(m)
			p.node.queued.Add(-1)
		}
	}
}

// terminate is called by the draining worker only
func (p *process) terminate(reason error) {
	old := atomic.SwapInt32(&p.state, int32(gen.ProcessStateTerminated))
	if old == int32(gen.ProcessStateTerminated) {
		return
	}

	if reason != gen.TerminateReasonNormal && reason != gen.TerminateReasonShutdown {
		p.log.Error("process terminated abnormally - %s", reason)
	}

	if p.initialized {
		p.teardown(reason)
	}
	p.node.unregisterProcess(p, reason)
}

func (p *process) teardown(reason error) {
	if lib.Recover() {
		defer func() {
			if rcv := recover(); rcv != nil {
				pc, fn, line, _ := runtime.Caller(2)
				p.log.Panic("panic on terminate - %#v at %s[%s:%d]",
					rcv, runtime.FuncForPC(pc).Name(), fn, line)
			}
		}()
	}
	p.behavior.ProcessTerminate(reason)
}

func behaviorName(behavior gen.ProcessBehavior) string {
	return strings.TrimPrefix(reflect.TypeOf(behavior).String(), "*")
}
