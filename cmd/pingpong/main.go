package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ergo.services/actor"
	"ergo.services/actor/future"
	"ergo.services/actor/gen"
	"ergo.services/actor/web"
)

var (
	ConfigFile string
	Mode       string
	Pairs      int
	Messages   int
	Peer       string
	Host       string
	Port       int
	Workers    int
)

func init() {
	flag.StringVar(&ConfigFile, "config", "", "TOML config file")
	flag.StringVar(&Mode, "mode", "", "throughput, links, dispatch, server or client")
	flag.IntVar(&Pairs, "pairs", 0, "number of process pairs")
	flag.IntVar(&Messages, "messages", 0, "number of messages per pair")
	flag.StringVar(&Peer, "peer", "", "host:port of the node running in the server mode")
	flag.StringVar(&Host, "host", "", "host to listen on")
	flag.IntVar(&Port, "port", 0, "port to listen on")
	flag.IntVar(&Workers, "workers", 0, "size of the worker pool")
}

func main() {
	flag.Parse()

	config := defaultConfig()
	if ConfigFile != "" {
		if err := loadConfig(ConfigFile, &config); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	// explicitly given flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			config.Bench.Mode = Mode
		case "pairs":
			config.Bench.Pairs = Pairs
		case "messages":
			config.Bench.Messages = Messages
		case "peer":
			config.Bench.Peer = Peer
		case "host":
			config.Node.Host = Host
		case "port":
			config.Node.Port = uint16(Port)
		case "workers":
			config.Node.Workers = Workers
		}
	})

	if err := run(config); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(config Config) error {
	options, err := config.nodeOptions()
	if err != nil {
		return err
	}
	// benchmarks on the local node do not need the HTTP server
	switch config.Bench.Mode {
	case "throughput", "links", "dispatch":
		options.Network.Disable = true
	}

	node, err := actor.StartNode(options)
	if err != nil {
		return err
	}
	defer node.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch config.Bench.Mode {
	case "throughput":
		return throughput(ctx, node, config.Bench)
	case "links":
		return links(ctx, node, config.Bench)
	case "dispatch":
		return dispatch(ctx, node, config.Bench)
	case "server":
		return server(ctx, node)
	case "client":
		return client(ctx, node, config.Bench)
	}
	return fmt.Errorf("unknown mode %q", config.Bench.Mode)
}

// throughput runs ping-pong between the local process pairs
func throughput(ctx context.Context, node gen.Node, bench BenchConfig) error {
	pingers := make([]gen.PID, 0, bench.Pairs)
	results := make([]future.Future[time.Duration], 0, bench.Pairs)

	for i := 0; i < bench.Pairs; i++ {
		pong, err := node.Spawn(factoryPonger, gen.ProcessOptions{})
		if err != nil {
			return err
		}
		done := future.NewPromise[time.Duration]()
		ping, err := node.Spawn(factoryPinger, gen.ProcessOptions{}, pong, bench.Messages, done)
		if err != nil {
			return err
		}
		pingers = append(pingers, ping)
		results = append(results, done.Future())
	}

	start := time.Now()
	for _, pid := range pingers {
		node.Send(pid, "start", nil)
	}
	if _, err := gen.Await(ctx, node, future.Collect(results...)); err != nil {
		return err
	}
	elapsed := time.Since(start)

	total := 2 * bench.Pairs * bench.Messages
	fmt.Printf("%d messages in %s (%.0f msg/sec)\n", total, elapsed, float64(total)/elapsed.Seconds())
	return nil
}

// links measures the time of the exited notifications delivery
func links(ctx context.Context, node gen.Node, bench BenchConfig) error {
	observers := make([]gen.PID, 0, bench.Pairs)
	targets := make([]gen.PID, 0, bench.Pairs)
	linked := make([]future.Future[struct{}], 0, bench.Pairs)

	for i := 0; i < bench.Pairs; i++ {
		tpid, err := node.Spawn(factoryPonger, gen.ProcessOptions{})
		if err != nil {
			return err
		}
		opid, err := node.Spawn(factoryObserver, gen.ProcessOptions{})
		if err != nil {
			return err
		}
		targets = append(targets, tpid)
		observers = append(observers, opid)
		linked = append(linked, gen.Dispatch(node, opid, func(o *observer) (struct{}, error) {
			return struct{}{}, o.Link(tpid)
		}))
	}
	if _, err := gen.Await(ctx, node, future.Collect(linked...)); err != nil {
		return err
	}

	start := time.Now()
	for _, pid := range targets {
		node.Terminate(pid, false)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pid := range observers {
		pid := pid
		g.Go(func() error {
			return node.Wait(gctx, pid)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("%d links fired in %s\n", bench.Pairs, time.Since(start))
	return nil
}

// dispatch measures the round trip of the typed dispatch calls
func dispatch(ctx context.Context, node gen.Node, bench BenchConfig) error {
	pid, err := node.Spawn(factoryCounter, gen.ProcessOptions{})
	if err != nil {
		return err
	}

	start := time.Now()
	calls := make([]future.Future[int], 0, bench.Messages)
	for i := 0; i < bench.Messages; i++ {
		calls = append(calls, gen.Dispatch(node, pid, (*counter).increment))
	}
	values, err := gen.Await(ctx, node, future.Collect(calls...))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("%d dispatch calls in %s (last value %d)\n", len(values), elapsed, values[len(values)-1])
	return nil
}

// server runs the ponger processes serving the remote clients
func server(ctx context.Context, node gen.Node) error {
	pid, err := node.Spawn(factoryPonger, gen.ProcessOptions{Name: "pong", Strict: true})
	if err != nil {
		return err
	}
	fmt.Printf("serving %s, stats at http://%s/%s/stats\n", pid, node.Address(), pid.Name)
	fmt.Println("to stop press Ctrl-C")

	<-ctx.Done()
	return nil
}

// client runs ping-pong with the remote ponger
func client(ctx context.Context, node gen.Node, bench BenchConfig) error {
	peer, err := parseAddress(bench.Peer)
	if err != nil {
		return err
	}
	pong := gen.PID{Name: "pong", Node: peer}

	results := make([]future.Future[time.Duration], 0, bench.Pairs)
	for i := 0; i < bench.Pairs; i++ {
		done := future.NewPromise[time.Duration]()
		ping, err := node.Spawn(factoryPinger, gen.ProcessOptions{}, pong, bench.Messages, done)
		if err != nil {
			return err
		}
		if err := node.Send(ping, "start", nil); err != nil {
			return err
		}
		results = append(results, done.Future())
	}

	start := time.Now()
	if _, err := gen.Await(ctx, node, future.Collect(results...)); err != nil {
		return err
	}
	elapsed := time.Since(start)
	total := 2 * bench.Pairs * bench.Messages
	fmt.Printf("%d remote messages in %s (%.0f msg/sec)\n", total, elapsed, float64(total)/elapsed.Seconds())

	stats := web.URL{Host: peer.Host, Port: peer.Port, Path: "/pong/stats"}
	response, err := gen.Await(ctx, node, web.Get(ctx, stats, nil))
	if err != nil {
		return err
	}
	fmt.Printf("peer stats: %s\n", response.Body)
	return nil
}
