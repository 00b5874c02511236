package node

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ergo.services/actor/gen"
	"ergo.services/actor/lib"
	"ergo.services/actor/web"
)

const (
	headerFrom      = "Libprocess-From"
	headerVersion   = "Ergo-Version"
	headerRequestID = "X-Request-Id"

	// reserved path serving the node info. Also used to probe the peer.
	infoPath = "/__node__/info"
)

// network serves the HTTP endpoint of the node and delivers the messages
// to the remote nodes. Messages to the same peer are sent one by one in the
// order they were sent.
type network struct {
	node    *node
	address gen.Address
	options gen.NetworkOptions

	listener net.Listener
	server   http.Server
	client   *http.Client

	// canceled on stop, aborts the outgoing requests
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pmutex sync.Mutex
	peersm map[gen.Address]*peer
}

type peer struct {
	address gen.Address
	queue   lib.QueueMPSC[*outgoing]
	state   atomic.Int32 // 0 - idle, 1 - sending
}

type outgoing struct {
	from gen.PID
	to   gen.PID
	name gen.Atom
	body []byte
}

func createNetwork(n *node, options gen.NetworkOptions) (*network, error) {
	hostPort := net.JoinHostPort(options.Host, strconv.Itoa(int(options.Port)))
	listener, err := net.Listen("tcp", hostPort)
	if err != nil {
		return nil, err
	}

	nw := &network{
		node:     n,
		options:  options,
		listener: listener,
		client: &http.Client{
			Timeout: options.PeerTimeout,
		},
		peersm: make(map[gen.Address]*peer),
	}
	nw.address = gen.Address{
		Host: options.Host,
		Port: uint16(listener.Addr().(*net.TCPAddr).Port),
	}
	nw.ctx, nw.cancel = context.WithCancel(context.Background())
	nw.server = http.Server{
		Handler:  nw,
		ErrorLog: stdlog.New(nw, "", 0),
	}
	return nw, nil
}

func (nw *network) start() {
	nw.wg.Add(2)
	go func() {
		defer nw.wg.Done()
		nw.server.Serve(nw.listener)
	}()
	go func() {
		defer nw.wg.Done()
		nw.watch()
	}()
	nw.node.log.Debug("network started on %s", nw.listener.Addr())
}

func (nw *network) stop() {
	nw.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := nw.server.Shutdown(ctx); err != nil {
		nw.server.Close()
	}
	nw.wg.Wait()
}

// Write redirects the errors of the http server to the node log
func (nw *network) Write(log []byte) (int, error) {
	// http server adds '[\r]\n' at the end of the message. remove it before logging
	nw.node.log.Error(strings.TrimSpace(string(log)))
	return len(log), nil
}

func (nw *network) peers() []gen.Address {
	nw.pmutex.Lock()
	list := make([]gen.Address, 0, len(nw.peersm))
	for addr := range nw.peersm {
		list = append(list, addr)
	}
	nw.pmutex.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].String() < list[j].String()
	})
	return list
}

func (nw *network) peer(addr gen.Address) *peer {
	nw.pmutex.Lock()
	defer nw.pmutex.Unlock()
	p, exist := nw.peersm[addr]
	if exist == false {
		p = &peer{
			address: addr,
			queue:   lib.NewQueueMPSC[*outgoing](),
		}
		nw.peersm[addr] = p
	}
	return p
}

func (nw *network) send(from gen.PID, to gen.PID, name gen.Atom, body []byte) error {
	if nw.ctx.Err() != nil {
		return gen.ErrNetworkStopped
	}
	p := nw.peer(to.Node)
	p.queue.Push(&outgoing{
		from: from,
		to:   to,
		name: name,
		body: body,
	})
	nw.run(p)
	return nil
}

func (nw *network) run(p *peer) {
	if p.state.CompareAndSwap(0, 1) == false {
		return
	}

	nw.wg.Add(1)
	go func() {
		defer nw.wg.Done()
	next:
		for {
			o, ok := p.queue.Pop()
			if ok == false {
				break
			}
			if err := nw.post(o); err != nil {
				nw.node.log.Warning("unable to deliver %q to %s: %s", o.name, o.to, err)
				nw.down(p, gen.ErrPeerUnreachable, true)
			}
		}
		p.state.Store(0)
		if p.queue.Item() == nil {
			return
		}
		if p.state.CompareAndSwap(0, 1) == false {
			return
		}
		goto next
	}()
}

// post returns error if the peer is unreachable
func (nw *network) post(o *outgoing) error {
	url := web.URL{
		Host: o.to.Node.Host,
		Port: o.to.Node.Port,
		Path: fmt.Sprintf("/%s/%s", o.to.Name, o.name),
	}
	headers := http.Header{}
	headers.Set(headerFrom, o.from.String())
	headers.Set(headerVersion, nw.node.framework.Release)

	ctx, cancel := context.WithTimeout(nw.ctx, nw.options.PeerTimeout)
	defer cancel()

	f := web.Do(ctx, nw.client, http.MethodPost, url.String(), headers, o.body)
	response, err := gen.Await(ctx, gen.Node(nw.node), f)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: no response from %s within %s", gen.ErrTimeout, o.to.Node, nw.options.PeerTimeout)
	}
	if err != nil {
		return err
	}
	if response.Status != http.StatusAccepted {
		// peer is alive, but has refused the message
		nw.node.log.Warning("message %q to %s is refused: %s", o.name, o.to, response)
	}
	return nil
}

// probe checks if the peer is reachable. Runs in background.
func (nw *network) probe(addr gen.Address) {
	nw.wg.Add(1)
	go func() {
		defer nw.wg.Done()
		if err := nw.ping(addr); err != nil {
			nw.node.log.Warning("peer %s is unreachable: %s", addr, err)
			nw.down(nw.peer(addr), gen.ErrPeerUnreachable, false)
		}
	}()
}

func (nw *network) ping(addr gen.Address) error {
	ctx, cancel := context.WithTimeout(nw.ctx, nw.options.PeerTimeout)
	defer cancel()

	url := web.URL{
		Host: addr.Host,
		Port: addr.Port,
		Path: infoPath,
	}
	f := web.Do(ctx, nw.client, http.MethodGet, url.String(), nil, nil)
	if _, err := gen.Await(ctx, gen.Node(nw.node), f); err != nil {
		return err
	}
	nw.peer(addr)
	return nil
}

// watch probes the peers having linked processes
func (nw *network) watch() {
	ticker := time.NewTicker(nw.options.PeerTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-nw.ctx.Done():
			return
		case <-ticker.C:
		}

		watched := make(map[gen.Address]bool)
		for _, addr := range nw.peers() {
			if len(nw.node.targets.targetsNodeDown(addr)) > 0 {
				watched[addr] = true
			}
		}
		for addr := range watched {
			if err := nw.ping(addr); err != nil {
				if nw.ctx.Err() != nil {
					return
				}
				nw.node.log.Warning("peer %s is unreachable: %s", addr, err)
				nw.down(nw.peer(addr), gen.ErrPeerUnreachable, false)
			}
		}
	}
}

// down removes the peer and fires the links to its processes. The queued
// messages are dropped if called by the sending goroutine (the queue consumer).
func (nw *network) down(p *peer, reason error, drop bool) {
	if nw.ctx.Err() != nil {
		// node is stopping
		return
	}

	nw.pmutex.Lock()
	if nw.peersm[p.address] == p {
		delete(nw.peersm, p.address)
	}
	nw.pmutex.Unlock()

	dropped := 0
	for drop {
		if _, ok := p.queue.Pop(); ok == false {
			break
		}
		dropped++
	}
	if dropped > 0 {
		nw.node.log.Warning("dropped %d message(s) to the unreachable peer %s", dropped, p.address)
	}

	nw.node.peerDown(p.address, reason)
}
