package node

import (
	"sync"

	"ergo.services/actor/gen"
)

//
// remote link table: remote target -> local observers. Links to the local
// processes are kept by the target process itself (see observers).
//

func createTarget() *target {
	return &target{}
}

type consumers struct {
	sync.RWMutex
	list []gen.PID
}

type target struct {
	c sync.Map // gen.PID -> *consumers
}

// returns true if registered first consumer of the target
func (t *target) registerConsumer(target gen.PID, consumer gen.PID) bool {
	for {
		pc := &consumers{}
		first := true

		if value, exist := t.c.LoadOrStore(target, pc); exist {
			pc = value.(*consumers)
			first = false
		}

		pc.Lock()
		if current, _ := t.c.Load(target); current != pc {
			// removed by the last unregisterConsumer meanwhile
			pc.Unlock()
			continue
		}
		for _, pid := range pc.list {
			if pid == consumer {
				pc.Unlock()
				return first
			}
		}
		pc.list = append(pc.list, consumer)
		pc.Unlock()
		return first
	}
}

// returns true if unregistered consumer was the last one
func (t *target) unregisterConsumer(target gen.PID, consumer gen.PID) bool {
	value, exist := t.c.Load(target)
	if exist == false {
		return false
	}

	pc := value.(*consumers)
	pc.Lock()
	defer pc.Unlock()

	for i, pid := range pc.list {
		if pid != consumer {
			continue
		}
		pc.list[i] = pc.list[len(pc.list)-1]
		pc.list = pc.list[:len(pc.list)-1]
		break
	}
	if len(pc.list) > 0 {
		return false
	}
	t.c.CompareAndDelete(target, pc)
	return true
}

func (t *target) unregister(target gen.PID) []gen.PID {
	value, exist := t.c.LoadAndDelete(target)
	if exist == false {
		return nil
	}
	pc := value.(*consumers)
	pc.Lock()
	defer pc.Unlock()
	list := pc.list
	pc.list = nil
	return list
}

// targetsNodeDown returns the targets belonging to the node
func (t *target) targetsNodeDown(node gen.Address) []gen.PID {
	var targets []gen.PID
	t.c.Range(func(k, v any) bool {
		pid := k.(gen.PID)
		if pid.Node == node {
			targets = append(targets, pid)
		}
		return true
	})
	return targets
}
