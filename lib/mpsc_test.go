package lib

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMPSCsequential(t *testing.T) {
	type vv struct {
		v int64
	}
	l := int64(10)
	queue := NewQueueLimitMPSC[vv](l)
	for i := int64(0); i < l; i++ {
		if queue.Push(vv{v: i + 100}) == false {
			t.Fatal("can't push value into the queue")
		}
	}
	if queue.Len() != l {
		t.Fatal("queue length must be 10")
	}
	if queue.Size() != l {
		t.Fatal("queue size must be 10")
	}

	if queue.Push(vv{}) == true {
		t.Fatal("must be false: exceeded the limit", queue.Len())
	}

	// walking through the queue
	item := queue.Item()
	for i := int64(0); i < l; i++ {
		if v := item.Value(); v.v != i+100 {
			t.Fatal("incorrect value. expected", i+100, "got", v)
		}
		item = item.Next()
	}
	if item != nil {
		t.Fatal("there is something else in the queue", item.Value())
	}

	for i := int64(0); i < l; i++ {
		v, ok := queue.Pop()
		if ok == false {
			t.Fatal("there must be value")
		}
		if v.v != i+100 {
			t.Fatal("incorrect value. expected", i+100, "got", v)
		}
	}

	if _, ok := queue.Pop(); ok {
		t.Fatal("queue must be empty")
	}
	if queue.Item() != nil {
		t.Fatal("queue must be empty")
	}
	if queue.Len() != 0 {
		t.Fatal("queue length must be 0")
	}
}

func TestMPSCunlimited(t *testing.T) {
	queue := NewQueueMPSC[int]()
	if queue.Size() != -1 {
		t.Fatal("must be unlimited")
	}
	for i := 0; i < 100000; i++ {
		if queue.Push(i) == false {
			t.Fatal("unlimited queue rejected push")
		}
	}
	for i := 0; i < 100000; i++ {
		v, _ := queue.Pop()
		if v != i {
			t.Fatal("incorrect order", v, i)
		}
	}
}

func TestMPSCconcurrentProducers(t *testing.T) {
	const (
		producers = 8
		messages  = 10000
	)
	queue := NewQueueMPSC[int]()

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < messages; i++ {
				queue.Push(p*messages + i)
				if i%100 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	var consumed atomic.Int64
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for consumed.Load() < producers*messages {
			v, ok := queue.Pop()
			if ok == false {
				runtime.Gosched()
				continue
			}
			p, seq := v/messages, v%messages
			// items of the same producer must come out in the order they were pushed
			if seq <= last[p] {
				t.Errorf("producer %d: got %d after %d", p, seq, last[p])
				return
			}
			last[p] = seq
			consumed.Add(1)
		}
	}()

	wg.Wait()
	<-done

	if consumed.Load() != producers*messages {
		t.Fatal("lost items", consumed.Load())
	}
	if queue.Len() != 0 {
		t.Fatal("queue must be empty", queue.Len())
	}
}

func TestTimerPool(t *testing.T) {
	timer := TakeTimer(0)
	<-timer.C
	ReleaseTimer(timer)

	timer = TakeTimer(1 << 40)
	select {
	case <-timer.C:
		t.Fatal("timer from the pool must not fire")
	default:
	}
	ReleaseTimer(timer)
}
