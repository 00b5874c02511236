package node

import (
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/zeebo/xxh3"

	"ergo.services/actor/gen"
)

// registry owns the live processes. Nothing outside of the node keeps a
// reference to a process, callers hold PIDs only.
type registry struct {
	processes cmap.ConcurrentMap[gen.Atom, *process]
}

func createRegistry() *registry {
	return &registry{
		processes: cmap.NewWithCustomShardingFunction[gen.Atom, *process](shardAtom),
	}
}

func shardAtom(name gen.Atom) uint32 {
	return uint32(xxh3.HashString(string(name)))
}

// register inserts the process under the given name. The taken name gets a
// suffix counter unless strict is set. p.pid.Name is updated with the final name.
func (r *registry) register(p *process, name gen.Atom, strict bool) error {
	candidate := name
	for k := 1; ; k++ {
		p.pid.Name = candidate
		if r.processes.SetIfAbsent(candidate, p) {
			return nil
		}
		if strict {
			return gen.ErrTaken
		}
		candidate = gen.Atom(fmt.Sprintf("%s(%d)", name, k))
	}
}

// unregister removes the process if the name still belongs to it
func (r *registry) unregister(p *process) bool {
	return r.processes.RemoveCb(p.pid.Name, func(_ gen.Atom, v *process, exists bool) bool {
		return exists && v == p
	})
}

func (r *registry) get(name gen.Atom) (*process, bool) {
	return r.processes.Get(name)
}

func (r *registry) count() int {
	return r.processes.Count()
}

func (r *registry) list() []*process {
	list := make([]*process, 0, r.processes.Count())
	for item := range r.processes.IterBuffered() {
		list = append(list, item.Val)
	}
	return list
}
