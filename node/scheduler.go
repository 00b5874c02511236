package node

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"ergo.services/actor/lib"
)

// scheduler multiplexes the processes onto a fixed pool of worker goroutines.
// A process gets into the run queue once per transition from Sleep to Running,
// so it is never queued (or drained) twice at a time.
type scheduler struct {
	queue lib.QueueMPSC[*process]
	// queue has a single consumer, workers take turns on this lock to pop
	mutex sync.Mutex

	wake chan struct{}
	stop chan struct{}

	workers int
	group   errgroup.Group
}

func createScheduler(workers int) *scheduler {
	if workers < 1 {
		workers = lib.Workers()
	}
	return &scheduler{
		queue:   lib.NewQueueMPSC[*process](),
		wake:    make(chan struct{}, workers),
		stop:    make(chan struct{}),
		workers: workers,
	}
}

func (s *scheduler) start() {
	for i := 0; i < s.workers; i++ {
		s.group.Go(s.worker)
	}
}

func (s *scheduler) schedule(p *process) {
	s.queue.Push(p)
	select {
	case s.wake <- struct{}{}:
	default:
		// every worker has a pending wake up already
	}
}

func (s *scheduler) next() *process {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	p, _ := s.queue.Pop()
	return p
}

func (s *scheduler) worker() error {
	for {
		if p := s.next(); p != nil {
			p.drain()
			continue
		}

		select {
		case <-s.wake:
		case <-s.stop:
			return nil
		}
	}
}

func (s *scheduler) terminate() {
	close(s.stop)
	s.group.Wait()
}
