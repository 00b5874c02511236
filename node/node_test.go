package node

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ergo.services/actor/clock"
	"ergo.services/actor/clock/clocktest"
	"ergo.services/actor/future"
	"ergo.services/actor/gen"
)

var testFramework = gen.Version{
	Name:    "actor",
	Release: "1.0.0",
	License: gen.LicenseMIT,
}

// testBehavior delegates the callbacks to its function fields
type testBehavior struct {
	process gen.Process

	onInit      func(b *testBehavior, args ...any) error
	onMessage   func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error
	onExited    func(b *testBehavior, pid gen.PID, reason error) error
	onTerminate func(b *testBehavior, reason error)

	// free for the test use. accessed by the process callbacks only
	counter int
	list    []string
}

func (b *testBehavior) ProcessInit(process gen.Process, args ...any) error {
	b.process = process
	if b.onInit != nil {
		return b.onInit(b, args...)
	}
	return nil
}

func (b *testBehavior) ProcessMessage(from gen.PID, name gen.Atom, body []byte) error {
	if b.onMessage != nil {
		return b.onMessage(b, from, name, body)
	}
	return nil
}

func (b *testBehavior) ProcessExited(pid gen.PID, reason error) error {
	if b.onExited != nil {
		return b.onExited(b, pid, reason)
	}
	return nil
}

func (b *testBehavior) ProcessTerminate(reason error) {
	if b.onTerminate != nil {
		b.onTerminate(b, reason)
	}
}

func factoryOf(b *testBehavior) gen.ProcessFactory {
	return func() gen.ProcessBehavior {
		return b
	}
}

func startTestNode(t testing.TB, workers int) *node {
	t.Helper()
	options := gen.NodeOptions{
		Workers: workers,
	}
	options.Network.Disable = true
	options.Network.Host = "localhost"
	options.Network.Port = 1
	options.Log.DefaultLogger.Disable = true

	n, err := Start(options, testFramework)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(n.Stop)
	return n.(*node)
}

func testContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func spawn(t testing.TB, n *node, b *testBehavior, options gen.ProcessOptions, args ...any) gen.PID {
	t.Helper()
	pid, err := n.Spawn(factoryOf(b), options, args...)
	if err != nil {
		t.Fatal(err)
	}
	return pid
}

func TestSpawnNaming(t *testing.T) {
	n := startTestNode(t, 2)

	a1 := spawn(t, n, &testBehavior{}, gen.ProcessOptions{Name: "a"})
	a2 := spawn(t, n, &testBehavior{}, gen.ProcessOptions{Name: "a"})
	a3 := spawn(t, n, &testBehavior{}, gen.ProcessOptions{Name: "a"})
	if a1.Name != "a" || a2.Name != "a(1)" || a3.Name != "a(2)" {
		t.Fatal("incorrect names", a1, a2, a3)
	}
	if a1.Node != n.Address() {
		t.Fatal("incorrect node address", a1)
	}
	if a1.ID == a2.ID {
		t.Fatal("same ID")
	}

	_, err := n.Spawn(factoryOf(&testBehavior{}), gen.ProcessOptions{Name: "a", Strict: true})
	if err != gen.ErrTaken {
		t.Fatal("expected ErrTaken, got", err)
	}

	anon := spawn(t, n, &testBehavior{}, gen.ProcessOptions{})
	if strings.HasPrefix(string(anon.Name), "__process__(") == false {
		t.Fatal("incorrect generated name", anon)
	}

	if len(n.ProcessList()) != 4 {
		t.Fatal("incorrect process list", n.ProcessList())
	}
	if n.Info().Processes != 4 {
		t.Fatal("incorrect node info", n.Info())
	}
}

func TestSpawnInit(t *testing.T) {
	n := startTestNode(t, 2)

	args := make(chan []any, 1)
	b := &testBehavior{
		onInit: func(b *testBehavior, a ...any) error {
			args <- a
			return nil
		},
	}
	spawn(t, n, b, gen.ProcessOptions{}, 1, "two")
	select {
	case a := <-args:
		if len(a) != 2 || a[0] != 1 || a[1] != "two" {
			t.Fatal("incorrect args", a)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	// failed init terminates the process
	failed := errors.New("init failed")
	terminated := make(chan struct{})
	b = &testBehavior{
		onInit: func(*testBehavior, ...any) error {
			return failed
		},
		onTerminate: func(*testBehavior, error) {
			close(terminated)
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{})
	if err := n.Wait(testContext(t), pid); err != nil {
		t.Fatal(err)
	}
	if n.Lookup(pid) {
		t.Fatal("process must be terminated")
	}
	select {
	case <-terminated:
		t.Fatal("ProcessTerminate must not be invoked for the process failed on init")
	default:
	}
}

func TestIncarnation(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	old := spawn(t, n, &testBehavior{}, gen.ProcessOptions{Name: "x"})
	if err := n.Terminate(old, false); err != nil {
		t.Fatal(err)
	}
	if err := n.Wait(ctx, old); err != nil {
		t.Fatal(err)
	}

	received := make(chan gen.Atom, 2)
	b := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			received <- name
			return nil
		},
	}
	current := spawn(t, n, b, gen.ProcessOptions{Name: "x"})
	if current.Name != "x" || current.ID == old.ID {
		t.Fatal("incorrect new incarnation", current)
	}

	if n.Lookup(old) {
		t.Fatal("old incarnation must not resolve")
	}
	if _, err := n.ProcessInfo(old); err != gen.ErrProcessIncarnation {
		t.Fatal("expected ErrProcessIncarnation, got", err)
	}
	// zero ID matches any incarnation
	if n.Lookup(gen.PID{Name: "x", Node: n.Address()}) == false {
		t.Fatal("name must resolve")
	}

	// message to the old incarnation is dropped
	if err := n.Send(old, "stale", nil); err != nil {
		t.Fatal(err)
	}
	if err := n.Send(current, "fresh", nil); err != nil {
		t.Fatal(err)
	}
	if name := <-received; name != "fresh" {
		t.Fatal("message to the old incarnation is delivered")
	}
}

func TestSendUnknown(t *testing.T) {
	n := startTestNode(t, 2)
	if err := n.Send(gen.PID{Name: "nobody", Node: n.Address()}, "m", nil); err != nil {
		t.Fatal("sending to unknown process must be silent, got", err)
	}
	if err := n.Terminate(gen.PID{Name: "nobody", Node: n.Address()}, false); err != gen.ErrProcessUnknown {
		t.Fatal("expected ErrProcessUnknown, got", err)
	}
	remote := gen.PID{Name: "nobody", Node: gen.Address{Host: "remote", Port: 1}}
	if err := n.Send(remote, "m", nil); err != gen.ErrNetworkStopped {
		t.Fatal("expected ErrNetworkStopped, got", err)
	}
	if err := n.Wait(testContext(t), remote); err != gen.ErrUnsupported {
		t.Fatal("expected ErrUnsupported, got", err)
	}
	if n.Reaped(remote).Failure() != gen.ErrUnsupported {
		t.Fatal("remote process can not be reaped")
	}
}

func TestMessageOrder(t *testing.T) {
	n := startTestNode(t, 4)

	senders := 4
	messages := 1000
	done := make(chan struct{})
	b := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			b.list = append(b.list, string(body))
			if len(b.list) == senders*messages {
				close(done)
			}
			return nil
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < messages; i++ {
				n.Send(pid, "seq", []byte(fmt.Sprintf("%d:%d", s, i)))
			}
		}(s)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}

	next := make([]int, senders)
	for _, item := range b.list {
		var s, i int
		fmt.Sscanf(item, "%d:%d", &s, &i)
		if next[s] != i {
			t.Fatalf("sender %d: expected %d, got %d", s, next[s], i)
		}
		next[s]++
	}
}

func TestSingleExecutor(t *testing.T) {
	n := startTestNode(t, 16)

	var inside atomic.Int32
	var overlapped atomic.Bool
	total := 10000
	done := make(chan struct{})

	b := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			if inside.Add(1) != 1 {
				overlapped.Store(true)
			}
			b.counter++
			if b.counter == total {
				close(done)
			}
			inside.Add(-1)
			return nil
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < total/16; i++ {
				n.Send(pid, "inc", nil)
			}
		}()
	}
	// the remainder
	for i := 0; i < total%16; i++ {
		n.Send(pid, "inc", nil)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
	if overlapped.Load() {
		t.Fatal("process callbacks overlapped")
	}

	info, err := n.ProcessInfo(pid)
	if err != nil {
		t.Fatal(err)
	}
	if info.MessagesIn < uint64(total) {
		t.Fatal("incorrect MessagesIn", info.MessagesIn)
	}
}

func TestDispatch(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	b := &testBehavior{counter: 41}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	f := gen.Dispatch(n, pid, func(b *testBehavior) (int, error) {
		b.counter++
		return b.counter, nil
	})
	value, err := gen.Await(ctx, gen.Node(n), f)
	if err != nil {
		t.Fatal(err)
	}
	if value != 42 {
		t.Fatal("incorrect value", value)
	}

	// chain: the continuation runs on the same process
	double := gen.Defer(n, pid, func(b *testBehavior, v int) (int, error) {
		return v * 2, nil
	})
	chained := future.ThenFuture(f, double)
	if value, err := gen.Await(ctx, gen.Node(n), chained); err != nil || value != 84 {
		t.Fatal("incorrect chained value", value, err)
	}

	// failure is propagated
	failure := errors.New("failure")
	ff := gen.Dispatch(n, pid, func(b *testBehavior) (int, error) {
		return 0, failure
	})
	if _, err := gen.Await(ctx, gen.Node(n), ff); err != failure {
		t.Fatal("expected failure, got", err)
	}

	// wrong behavior type
	type other struct{ testBehavior }
	fw := gen.Dispatch(n, pid, func(b *other) (int, error) {
		return 0, nil
	})
	if _, err := gen.Await(ctx, gen.Node(n), fw); errors.Is(err, gen.ErrIncorrect) == false {
		t.Fatal("expected ErrIncorrect, got", err)
	}

	// unknown target
	fu := gen.Dispatch(n, gen.PID{Name: "nobody", Node: n.Address()}, func(b *testBehavior) (int, error) {
		return 0, nil
	})
	if fu.Failure() != gen.ErrProcessUnknown {
		t.Fatal("expected ErrProcessUnknown, got", fu.Failure())
	}
}

func TestTerminatePendingDispatch(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	release := make(chan struct{})
	started := make(chan struct{})
	reason := make(chan error, 1)
	b := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			close(started)
			<-release
			return nil
		},
		onTerminate: func(b *testBehavior, r error) {
			reason <- r
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	n.Send(pid, "block", nil)
	<-started

	ran := false
	f := gen.Dispatch(n, pid, func(b *testBehavior) (int, error) {
		ran = true
		return 1, nil
	})
	// terminate event overtakes the queued dispatch
	if err := n.Terminate(pid, true); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := n.Wait(ctx, pid); err != nil {
		t.Fatal(err)
	}
	if err := n.Await(ctx, f); err != nil {
		t.Fatal(err)
	}
	if f.Failure() != gen.ErrProcessTerminated {
		t.Fatal("expected ErrProcessTerminated, got", f.Failure())
	}
	if ran {
		t.Fatal("dispatch must not be executed")
	}
	if r := <-reason; r != gen.TerminateReasonNormal {
		t.Fatal("incorrect reason", r)
	}

	// the process is gone
	fg := gen.Dispatch(n, pid, func(b *testBehavior) (int, error) { return 1, nil })
	if fg.Failure() != gen.ErrProcessUnknown {
		t.Fatal("expected ErrProcessUnknown, got", fg.Failure())
	}
	if err := n.Wait(ctx, pid); err != nil {
		t.Fatal("wait for unknown process must return right away", err)
	}
}

func link(t testing.TB, n *node, observer gen.PID, target gen.PID) {
	t.Helper()
	f := gen.Dispatch(n, observer, func(b *testBehavior) (struct{}, error) {
		return struct{}{}, b.process.Link(target)
	})
	if _, err := gen.Await(testContext(t), gen.Node(n), f); err != nil {
		t.Fatal(err)
	}
}

func TestLink(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	exits := make(chan gen.MessageExitPID, 1)
	observer := &testBehavior{
		onExited: func(b *testBehavior, pid gen.PID, reason error) error {
			exits <- gen.MessageExitPID{PID: pid, Reason: reason}
			return nil
		},
	}
	opid := spawn(t, n, observer, gen.ProcessOptions{})
	tpid := spawn(t, n, &testBehavior{}, gen.ProcessOptions{})

	link(t, n, opid, tpid)
	link(t, n, opid, tpid) // idempotent

	info, err := n.ProcessInfo(tpid)
	if err != nil {
		t.Fatal(err)
	}
	if info.Observers != 1 {
		t.Fatal("incorrect number of observers", info.Observers)
	}

	n.Terminate(tpid, false)
	select {
	case exit := <-exits:
		if exit.PID != tpid || exit.Reason != gen.TerminateReasonNormal {
			t.Fatal("incorrect exit", exit)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}

	if err := n.Settle(ctx); err != nil {
		t.Fatal(err)
	}
	info, err = n.ProcessInfo(opid)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Links) != 0 {
		t.Fatal("link must be removed", info.Links)
	}
	select {
	case exit := <-exits:
		t.Fatal("exited event is delivered twice", exit)
	default:
	}
}

func TestLinkDeadTarget(t *testing.T) {
	n := startTestNode(t, 2)

	exits := make(chan error, 1)
	observer := &testBehavior{
		onExited: func(b *testBehavior, pid gen.PID, reason error) error {
			exits <- reason
			return nil
		},
	}
	opid := spawn(t, n, observer, gen.ProcessOptions{})

	link(t, n, opid, gen.PID{Name: "nobody", Node: n.Address()})
	select {
	case reason := <-exits:
		if reason != gen.ErrProcessUnknown {
			t.Fatal("incorrect reason", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}

	// linking to self is not allowed
	f := gen.Dispatch(n, opid, func(b *testBehavior) (struct{}, error) {
		return struct{}{}, b.process.Link(opid)
	})
	if _, err := gen.Await(testContext(t), gen.Node(n), f); err != gen.ErrNotAllowed {
		t.Fatal("expected ErrNotAllowed, got", err)
	}
}

func TestUnlink(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	var exits atomic.Int32
	observer := &testBehavior{
		onExited: func(b *testBehavior, pid gen.PID, reason error) error {
			exits.Add(1)
			return nil
		},
	}
	opid := spawn(t, n, observer, gen.ProcessOptions{})
	tpid := spawn(t, n, &testBehavior{}, gen.ProcessOptions{})

	link(t, n, opid, tpid)
	f := gen.Dispatch(n, opid, func(b *testBehavior) (struct{}, error) {
		return struct{}{}, b.process.Unlink(tpid)
	})
	if _, err := gen.Await(ctx, gen.Node(n), f); err != nil {
		t.Fatal(err)
	}

	n.Terminate(tpid, false)
	n.Wait(ctx, tpid)
	if err := n.Settle(ctx); err != nil {
		t.Fatal(err)
	}
	if exits.Load() != 0 {
		t.Fatal("exited event after unlink")
	}
}

func TestLinkPairs(t *testing.T) {
	n := startTestNode(t, 0)
	clocktest.Pause(t, n.clock)
	ctx := testContext(t)

	pairs := 5000
	observers := make([]gen.PID, pairs)
	targets := make([]gen.PID, pairs)
	for i := 0; i < pairs; i++ {
		observers[i] = spawn(t, n, &testBehavior{
			onExited: func(b *testBehavior, pid gen.PID, reason error) error {
				b.counter++
				return nil
			},
		}, gen.ProcessOptions{})
		targets[i] = spawn(t, n, &testBehavior{}, gen.ProcessOptions{})
	}

	links := make([]future.Future[struct{}], pairs)
	for i := 0; i < pairs; i++ {
		target := targets[i]
		links[i] = gen.Dispatch(n, observers[i], func(b *testBehavior) (struct{}, error) {
			return struct{}{}, b.process.Link(target)
		})
	}
	if _, err := gen.Await(ctx, gen.Node(n), future.Collect(links...)); err != nil {
		t.Fatal(err)
	}

	for _, pid := range targets {
		n.Terminate(pid, false)
	}
	for _, pid := range targets {
		if err := n.Wait(ctx, pid); err != nil {
			t.Fatal(err)
		}
	}
	if err := n.Settle(ctx); err != nil {
		t.Fatal(err)
	}

	counters := make([]future.Future[int], pairs)
	for i, pid := range observers {
		counters[i] = gen.Dispatch(n, pid, func(b *testBehavior) (int, error) {
			return b.counter, nil
		})
	}
	values, err := gen.Await(ctx, gen.Node(n), future.Collect(counters...))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range values {
		if v != 1 {
			t.Fatalf("observer %s got %d exited events", observers[i], v)
		}
	}
	if len(n.ProcessList()) != pairs {
		t.Fatal("observers must stay alive", len(n.ProcessList()))
	}
}

func TestExitQueuedBeforeWait(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	blocked := make(chan struct{})
	release := make(chan struct{})
	exits := make(chan gen.PID, 1)
	observer := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			close(blocked)
			<-release
			return nil
		},
		onExited: func(b *testBehavior, pid gen.PID, reason error) error {
			exits <- pid
			return nil
		},
	}
	opid := spawn(t, n, observer, gen.ProcessOptions{})
	tpid := spawn(t, n, &testBehavior{}, gen.ProcessOptions{})
	link(t, n, opid, tpid)

	n.Send(opid, "block", nil)
	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}

	n.Terminate(tpid, false)
	if err := n.Wait(ctx, tpid); err != nil {
		t.Fatal(err)
	}
	info, err := n.ProcessInfo(opid)
	if err != nil {
		t.Fatal(err)
	}
	if info.MailboxQueues.Main+info.MailboxQueues.Urgent == 0 {
		t.Fatal("exited event must be queued once the target is reaped")
	}

	close(release)
	select {
	case pid := <-exits:
		if pid != tpid {
			t.Fatal("incorrect exit", pid)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}

func TestLinkDeadTargetOvertakes(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	observer := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			b.list = append(b.list, string(name))
			return nil
		},
		onExited: func(b *testBehavior, pid gen.PID, reason error) error {
			b.list = append(b.list, "exited")
			return nil
		},
	}
	opid := spawn(t, n, observer, gen.ProcessOptions{})

	dead := gen.PID{Name: "nobody", Node: n.Address()}
	f := gen.Dispatch(n, opid, func(b *testBehavior) (struct{}, error) {
		if err := b.process.Send(opid, "queued", nil); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, b.process.Link(dead)
	})
	if _, err := gen.Await(ctx, gen.Node(n), f); err != nil {
		t.Fatal(err)
	}
	if err := n.Settle(ctx); err != nil {
		t.Fatal(err)
	}

	order := gen.Dispatch(n, opid, func(b *testBehavior) ([]string, error) {
		return append([]string(nil), b.list...), nil
	})
	list, err := gen.Await(ctx, gen.Node(n), order)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(list) != "[exited queued]" {
		t.Fatal("exited event must overtake the queued message", list)
	}
}

func TestPingPong(t *testing.T) {
	n := startTestNode(t, 0)
	ctx := testContext(t)

	rounds := 1000
	done := make(chan struct{})
	pong := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			b.counter++
			return b.process.Send(from, "pong", body)
		},
	}
	ping := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			switch name {
			case "start":
				return b.process.Send(gen.PID{Name: "pong", Node: b.process.PID().Node}, "ping", nil)
			case "pong":
				b.counter++
				if b.counter == rounds {
					close(done)
					return nil
				}
				return b.process.Send(from, "ping", nil)
			}
			return nil
		},
	}
	spid := spawn(t, n, pong, gen.ProcessOptions{Name: "pong"})
	cpid := spawn(t, n, ping, gen.ProcessOptions{Name: "ping"})
	n.Send(cpid, "start", nil)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out")
	}
	if err := n.Settle(ctx); err != nil {
		t.Fatal(err)
	}

	n.Terminate(spid, false)
	n.Terminate(cpid, false)
	for _, pid := range []gen.PID{spid, cpid} {
		if err := n.Wait(ctx, pid); err != nil {
			t.Fatal(err)
		}
	}
	// both are reaped, their state is not touched anymore
	if pong.counter != rounds {
		t.Fatal("incorrect number of pings", pong.counter)
	}
	if ping.counter != rounds {
		t.Fatal("incorrect number of pongs", ping.counter)
	}
}

func TestDelayPausedClock(t *testing.T) {
	n := startTestNode(t, 4)
	ctx := testContext(t)
	clocktest.Pause(t, n.Clock())

	var mutex sync.Mutex
	var fired []string
	b := &testBehavior{}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	record := func(name string) func(b *testBehavior) {
		return func(b *testBehavior) {
			mutex.Lock()
			fired = append(fired, name)
			mutex.Unlock()
		}
	}
	gen.Delay(n, time.Second, pid, record("first"))
	gen.Delay(n, 2*time.Second, pid, record("second"))
	gen.Delay(n, 2*time.Second, pid, record("third"))
	cancel := gen.Delay(n, 2*time.Second, pid, record("canceled"))
	if cancel() == false {
		t.Fatal("timer must be canceled")
	}

	check := func(expected ...string) {
		t.Helper()
		if err := n.Settle(ctx); err != nil {
			t.Fatal(err)
		}
		mutex.Lock()
		defer mutex.Unlock()
		if strings.Join(fired, ",") != strings.Join(expected, ",") {
			t.Fatal("incorrect order", fired)
		}
	}

	check()
	n.Clock().Advance(time.Second)
	check("first")
	n.Clock().Advance(time.Second)
	check("first", "second", "third")
	if n.Info().Timers != 0 {
		t.Fatal("no timers expected", n.Info().Timers)
	}
}

func TestPanic(t *testing.T) {
	n := startTestNode(t, 2)

	exits := make(chan error, 1)
	observer := &testBehavior{
		onExited: func(b *testBehavior, pid gen.PID, reason error) error {
			exits <- reason
			return nil
		},
	}
	opid := spawn(t, n, observer, gen.ProcessOptions{})

	terminated := make(chan error, 1)
	b := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			panic("oops")
		},
		onTerminate: func(b *testBehavior, reason error) {
			terminated <- reason
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{})
	link(t, n, opid, pid)

	n.Send(pid, "boom", nil)
	select {
	case reason := <-exits:
		if reason != gen.TerminateReasonPanic {
			t.Fatal("incorrect reason", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	if reason := <-terminated; reason != gen.TerminateReasonPanic {
		t.Fatal("incorrect terminate reason", reason)
	}

	// panic in dispatch fails its future
	pid = spawn(t, n, &testBehavior{}, gen.ProcessOptions{})
	f := gen.Dispatch(n, pid, func(b *testBehavior) (int, error) {
		panic("oops")
	})
	if err := n.Await(testContext(t), f); err != nil {
		t.Fatal(err)
	}
	if f.Failure() != gen.TerminateReasonPanic {
		t.Fatal("expected TerminateReasonPanic, got", f.Failure())
	}
}

func TestMailboxFull(t *testing.T) {
	n := startTestNode(t, 2)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	b := &testBehavior{
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			if name == "block" {
				started <- struct{}{}
				<-release
			}
			return nil
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{MailboxSize: 1})

	n.Send(pid, "block", nil)
	<-started
	if err := n.Send(pid, "first", nil); err != nil {
		t.Fatal(err)
	}
	if err := n.Send(pid, "second", nil); err != gen.ErrProcessMailboxFull {
		t.Fatal("expected ErrProcessMailboxFull, got", err)
	}
	// urgent queue is not limited
	if err := n.Terminate(pid, true); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := n.Wait(testContext(t), pid); err != nil {
		t.Fatal(err)
	}
}

func TestInstallHandler(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)

	got := make(chan string, 4)
	b := &testBehavior{
		onInit: func(b *testBehavior, args ...any) error {
			return b.process.Install("greet", func(from gen.PID, body []byte) error {
				got <- "handler:" + string(body)
				return nil
			})
		},
		onMessage: func(b *testBehavior, from gen.PID, name gen.Atom, body []byte) error {
			got <- "default:" + string(body)
			return nil
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	n.Send(pid, "greet", []byte("a"))
	if v := <-got; v != "handler:a" {
		t.Fatal("incorrect handler", v)
	}

	f := gen.Dispatch(n, pid, func(b *testBehavior) (struct{}, error) {
		if err := b.process.Install("greet", func(gen.PID, []byte) error { return nil }); err != gen.ErrTaken {
			return struct{}{}, fmt.Errorf("expected ErrTaken, got %v", err)
		}
		if err := b.process.Uninstall("greet"); err != nil {
			return struct{}{}, err
		}
		if err := b.process.Uninstall("greet"); err != gen.ErrHandlerUnknown {
			return struct{}{}, fmt.Errorf("expected ErrHandlerUnknown, got %v", err)
		}
		return struct{}{}, nil
	})
	if _, err := gen.Await(ctx, gen.Node(n), f); err != nil {
		t.Fatal(err)
	}

	n.Send(pid, "greet", []byte("b"))
	if v := <-got; v != "default:b" {
		t.Fatal("incorrect handler", v)
	}
}

func TestStop(t *testing.T) {
	options := gen.NodeOptions{}
	options.Network.Disable = true
	options.Log.DefaultLogger.Disable = true
	nd, err := Start(options, testFramework)
	if err != nil {
		t.Fatal(err)
	}

	reasons := make(chan error, 10)
	for i := 0; i < 10; i++ {
		_, err := nd.Spawn(factoryOf(&testBehavior{
			onTerminate: func(b *testBehavior, reason error) {
				reasons <- reason
			},
		}), gen.ProcessOptions{})
		if err != nil {
			t.Fatal(err)
		}
	}

	nd.Stop()
	if nd.IsAlive() {
		t.Fatal("node must be stopped")
	}
	if len(reasons) != 10 {
		t.Fatal("all processes must be terminated", len(reasons))
	}
	for i := 0; i < 10; i++ {
		if r := <-reasons; r != gen.TerminateReasonShutdown {
			t.Fatal("incorrect reason", r)
		}
	}
	if _, err := nd.Spawn(factoryOf(&testBehavior{}), gen.ProcessOptions{}); err != gen.ErrNodeTerminated {
		t.Fatal("expected ErrNodeTerminated, got", err)
	}
	// second stop is a no-op
	nd.Stop()
}

type testLogger struct {
	messages chan gen.MessageLog
}

func (l *testLogger) Log(m gen.MessageLog) {
	l.messages <- m
}

func (l *testLogger) Terminate() {}

func TestLogger(t *testing.T) {
	n := startTestNode(t, 2)

	l := &testLogger{messages: make(chan gen.MessageLog, 16)}
	if err := n.LoggerAdd("test", l, gen.LogLevelWarning); err != nil {
		t.Fatal(err)
	}
	if err := n.LoggerAdd("test", l); err != gen.ErrTaken {
		t.Fatal("expected ErrTaken, got", err)
	}

	b := &testBehavior{
		onInit: func(b *testBehavior, args ...any) error {
			b.process.Log().Info("filtered out")
			b.process.Log().Warning("hello %s", "world")
			return nil
		},
	}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	select {
	case m := <-l.messages:
		if m.Level != gen.LogLevelWarning || fmt.Sprintf(m.Format, m.Args...) != "hello world" {
			t.Fatal("incorrect message", m)
		}
		source, ok := m.Source.(gen.MessageLogProcess)
		if ok == false || source.PID != pid || source.Behavior != "node.testBehavior" {
			t.Fatal("incorrect source", m.Source)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}

	if n.Info().Loggers[0] != "test" {
		t.Fatal("incorrect loggers", n.Info().Loggers)
	}
	n.LoggerDelete("test")
	if len(n.Info().Loggers) != 0 {
		t.Fatal("logger must be removed")
	}
}

func TestProcessTime(t *testing.T) {
	n := startTestNode(t, 2)
	ctx := testContext(t)
	clocktest.Pause(t, n.Clock())

	b := &testBehavior{}
	pid := spawn(t, n, b, gen.ProcessOptions{})

	f := gen.Dispatch(n, pid, func(b *testBehavior) (bool, error) {
		_, control := b.process.Time().(*clock.Clock)
		gen.Delay(b.process, time.Second, b.process.PID(), func(b *testBehavior) {
			b.counter++
		})
		return control, nil
	})
	control, err := gen.Await(ctx, gen.Node(n), f)
	if err != nil {
		t.Fatal(err)
	}
	if control {
		t.Fatal("process must not get the clock control")
	}
	if b.process.Time().Now().Equal(n.Clock().Now()) == false {
		t.Fatal("process must see the node time")
	}

	n.Clock().Advance(time.Second)
	if err := n.Settle(ctx); err != nil {
		t.Fatal(err)
	}
	counter := gen.Dispatch(n, pid, func(b *testBehavior) (int, error) {
		return b.counter, nil
	})
	if v, err := gen.Await(ctx, gen.Node(n), counter); err != nil || v != 1 {
		t.Fatal("delayed call must be fired once", v, err)
	}
}
