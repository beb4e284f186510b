package perf

import (
	"sort"
	"sync"
)

// Registry is a named set of counters shared across components. Construct
// one near main and pass it to whatever needs to measure; there is no
// package-level instance.
type Registry struct {
	opts     Options
	counters sync.Map // string -> *Counter
}

// NewRegistry creates a Registry. opts apply to every counter the
// registry creates.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts}
}

// Counter returns the counter registered under name, creating it on first
// use. Concurrent first calls for the same name converge on a single
// instance.
func (r *Registry) Counter(name string) *Counter {
	if v, ok := r.counters.Load(name); ok {
		return v.(*Counter)
	}
	v, _ := r.counters.LoadOrStore(name, NewCounter(r.opts))
	return v.(*Counter)
}

// Names returns the registered counter names, sorted.
func (r *Registry) Names() []string {
	var names []string
	r.counters.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Each calls fn for every registered counter, in name order.
func (r *Registry) Each(fn func(name string, c *Counter)) {
	for _, name := range r.Names() {
		if v, ok := r.counters.Load(name); ok {
			fn(name, v.(*Counter))
		}
	}
}

// Snapshots returns a snapshot of every registered counter, sorted by
// name with Name filled in.
func (r *Registry) Snapshots() []Snapshot {
	var out []Snapshot
	r.Each(func(name string, c *Counter) {
		s := c.Snapshot()
		s.Name = name
		out = append(out, s)
	})
	return out
}

// Reset resets every registered counter. Names stay registered.
func (r *Registry) Reset() {
	r.counters.Range(func(_, v any) bool {
		v.(*Counter).Reset()
		return true
	})
}
