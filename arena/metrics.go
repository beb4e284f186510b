package arena

import (
	"fmt"

	"github.com/intuitivelabs/counters"

	"github.com/probelab/vigil/tally"
)

// Stats is a point-in-time snapshot of one arena.
type Stats struct {
	ActiveAllocs   int     `json:"active_allocs"`
	ActiveBytes    int64   `json:"active_bytes"`
	LifetimeAllocs uint64  `json:"lifetime_allocs"`
	LifetimeBytes  uint64  `json:"lifetime_bytes"`
	Chunks         int     `json:"chunks"`
	Capacity       int     `json:"capacity_bytes"`
	Used           int     `json:"used_bytes"`
	Utilization    float64 `json:"utilization"`
}

// Stats returns a consistent snapshot of the arena's bookkeeping. Used
// counts bumped bytes including alignment padding, so it can exceed
// ActiveBytes once allocations have been freed but not reset.
func (a *Arena) Stats() Stats {
	a.mu.RLock()
	s := Stats{
		ActiveAllocs:   len(a.live),
		ActiveBytes:    a.activeBytes,
		LifetimeAllocs: a.lifetimeAllocs,
		LifetimeBytes:  a.lifetimeBytes,
		Chunks:         len(a.chunks),
	}
	for i := range a.chunks {
		s.Capacity += len(a.chunks[i].buf)
		s.Used += int(a.chunks[i].off)
	}
	a.mu.RUnlock()

	if s.Capacity > 0 {
		s.Utilization = float64(s.Used) / float64(s.Capacity)
	}
	return s
}

// Metrics publishes arena activity to an intuitivelabs counters group so
// external pollers can scrape it next to other process counters. One
// Metrics may be shared by many arenas (a Registry does exactly that);
// the gauges then reflect the aggregate across all of them.
type Metrics struct {
	grp *counters.Group

	hAllocs counters.Handle
	hFrees  counters.Handle
	hActive counters.Handle
	hBytes  counters.Handle
	hChunks counters.Handle

	// Aggregates across every arena attached to this Metrics. The group
	// gauges are set from these after each event.
	active tally.Counter[int64]
	bytes  tally.Counter[int64]
	chunks tally.Counter[int64]
}

// NewMetrics registers the arena counter set as a group under parent.
// parent may be nil to create a root group.
func NewMetrics(name string, parent *counters.Group) (*Metrics, error) {
	m := &Metrics{}
	defs := [...]counters.Def{
		{H: &m.hAllocs, Flags: 0, Cbk: nil, CbP: nil, Name: "allocs",
			Desc: "lifetime allocations"},
		{H: &m.hFrees, Flags: 0, Cbk: nil, CbP: nil, Name: "frees",
			Desc: "lifetime deallocations"},
		{H: &m.hActive, Flags: counters.CntMaxF, Cbk: nil, CbP: nil, Name: "active",
			Desc: "currently tracked allocations"},
		{H: &m.hBytes, Flags: counters.CntMaxF, Cbk: nil, CbP: nil, Name: "active_bytes",
			Desc: "bytes held by tracked allocations"},
		{H: &m.hChunks, Flags: counters.CntMaxF, Cbk: nil, CbP: nil, Name: "chunks",
			Desc: "backing chunks held"},
	}
	entries := len(defs)
	m.grp = counters.NewGroup(name, parent, entries)
	if m.grp == nil {
		m.grp = &counters.Group{}
		m.grp.Init(name, parent, entries)
	}
	if !m.grp.RegisterDefs(defs[:]) {
		return nil, fmt.Errorf("arena: registering counter group %q failed", name)
	}
	return m, nil
}

// Group returns the underlying counters group, for registration trees and
// scrapers.
func (m *Metrics) Group() *counters.Group {
	if m == nil {
		return nil
	}
	return m.grp
}

func (m *Metrics) noteAlloc(size, grownChunks int) {
	if m == nil {
		return
	}
	m.grp.Inc(m.hAllocs)
	m.grp.Set(m.hActive, counters.Val(m.active.Inc()))
	m.grp.Set(m.hBytes, counters.Val(m.bytes.Add(int64(size))))
	if grownChunks > 0 {
		m.grp.Set(m.hChunks, counters.Val(m.chunks.Add(int64(grownChunks))))
	}
}

func (m *Metrics) noteFree(size int) {
	if m == nil {
		return
	}
	m.grp.Inc(m.hFrees)
	m.grp.Set(m.hActive, counters.Val(m.active.Add(-1)))
	m.grp.Set(m.hBytes, counters.Val(m.bytes.Add(int64(-size))))
}

func (m *Metrics) noteReset(freedAllocs int, freedBytes int64, releasedChunks int) {
	if m == nil {
		return
	}
	m.grp.Set(m.hActive, counters.Val(m.active.Add(int64(-freedAllocs))))
	m.grp.Set(m.hBytes, counters.Val(m.bytes.Add(-freedBytes)))
	m.grp.Set(m.hChunks, counters.Val(m.chunks.Add(int64(-releasedChunks))))
}
