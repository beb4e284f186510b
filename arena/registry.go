package arena

import (
	"sync"

	"github.com/intuitivelabs/bytespool"
)

// Registry hands out arenas to worker goroutines, one arena per worker at
// a time. It replaces ambient per-thread arena storage with an explicit
// object: workers Acquire an arena at start and Release it on exit, and
// anything holding the registry can inspect every outstanding arena for
// leaks while the workers run.
//
// Released arenas are reset and recycled, and all arenas created by one
// registry share a chunk recycling pool, so a churning worker fleet
// settles into a steady set of buffers.
type Registry struct {
	mu    sync.Mutex
	opts  Options
	free  []*Arena
	inUse map[*Arena]struct{}

	// Chunk recycler shared by every arena this registry creates.
	// One sync.Pool per block size, sizes rounded to the chunk size.
	bpool bytespool.Bpool
}

// ArenaLeaks pairs an arena with its live allocations.
type ArenaLeaks struct {
	Arena *Arena
	Leaks []LeakRecord
}

// RegistryStats aggregates the bookkeeping of every arena a registry
// currently tracks.
type RegistryStats struct {
	InUse int   `json:"in_use"`
	Idle  int   `json:"idle"`
	Arena Stats `json:"arena"`
}

// NewRegistry creates a Registry whose arenas use opts. When opts.Pool is
// nil and pooling is not disabled, the registry wires in its own shared
// recycling pool.
func NewRegistry(opts Options) *Registry {
	opts.normalize()
	r := &Registry{
		opts:  opts,
		inUse: make(map[*Arena]struct{}),
	}
	if r.opts.Pool == nil && !r.opts.NoPool {
		// Recycle the common chunk sizes; oversized chunks fall back to
		// plain allocation inside the arena.
		if r.bpool.Init(0, 4*r.opts.ChunkSize, r.opts.ChunkSize) {
			r.opts.Pool = &r.bpool
		}
	}
	return r
}

// Acquire returns an arena owned by the calling worker until Release.
// Recycled arenas are reused before new ones are created.
func (r *Registry) Acquire() *Arena {
	r.mu.Lock()
	var a *Arena
	if n := len(r.free); n > 0 {
		a = r.free[n-1]
		r.free[n-1] = nil
		r.free = r.free[:n-1]
	} else {
		a = New(r.opts)
	}
	r.inUse[a] = struct{}{}
	r.mu.Unlock()
	return a
}

// Release resets a and returns it to the registry for reuse. Releasing
// nil or an arena the registry did not hand out is a silent no-op,
// matching the arena's own stance on unknown frees.
func (r *Registry) Release(a *Arena) {
	if a == nil {
		return
	}
	r.mu.Lock()
	if _, ok := r.inUse[a]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.inUse, a)
	r.mu.Unlock()

	a.Reset()

	r.mu.Lock()
	r.free = append(r.free, a)
	r.mu.Unlock()
}

// ActiveArenas returns the number of arenas currently held by workers.
func (r *Registry) ActiveArenas() int {
	r.mu.Lock()
	n := len(r.inUse)
	r.mu.Unlock()
	return n
}

// IdleArenas returns the number of released arenas waiting for reuse.
func (r *Registry) IdleArenas() int {
	r.mu.Lock()
	n := len(r.free)
	r.mu.Unlock()
	return n
}

// LeakReport collects the live allocations of every outstanding arena.
// Arenas without leaks are omitted. Workers keep allocating while the
// report is taken, so it is a best-effort view, not a barrier.
func (r *Registry) LeakReport() []ArenaLeaks {
	arenas := r.outstanding()
	var out []ArenaLeaks
	for _, a := range arenas {
		if leaks := a.LeakReport(); len(leaks) > 0 {
			out = append(out, ArenaLeaks{Arena: a, Leaks: leaks})
		}
	}
	return out
}

// Stats aggregates the stats of every outstanding arena.
func (r *Registry) Stats() RegistryStats {
	arenas := r.outstanding()

	rs := RegistryStats{InUse: len(arenas), Idle: r.IdleArenas()}
	for _, a := range arenas {
		s := a.Stats()
		rs.Arena.ActiveAllocs += s.ActiveAllocs
		rs.Arena.ActiveBytes += s.ActiveBytes
		rs.Arena.LifetimeAllocs += s.LifetimeAllocs
		rs.Arena.LifetimeBytes += s.LifetimeBytes
		rs.Arena.Chunks += s.Chunks
		rs.Arena.Capacity += s.Capacity
		rs.Arena.Used += s.Used
	}
	if rs.Arena.Capacity > 0 {
		rs.Arena.Utilization = float64(rs.Arena.Used) / float64(rs.Arena.Capacity)
	}
	return rs
}

// Reset resets every arena the registry knows about, outstanding ones
// included. Meant for test harnesses between runs; workers must not hold
// allocations across it.
func (r *Registry) Reset() {
	arenas := r.outstanding()
	r.mu.Lock()
	arenas = append(arenas, r.free...)
	r.mu.Unlock()
	for _, a := range arenas {
		a.Reset()
	}
}

func (r *Registry) outstanding() []*Arena {
	r.mu.Lock()
	arenas := make([]*Arena, 0, len(r.inUse))
	for a := range r.inUse {
		arenas = append(arenas, a)
	}
	r.mu.Unlock()
	return arenas
}
