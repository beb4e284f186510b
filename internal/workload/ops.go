package workload

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/check"
)

// AllocOp allocates fixed-size blocks, touches them, and frees them before
// returning. A non-zero leak ratio keeps a deterministic fraction of the
// blocks live so the leak report has something to find.
type AllocOp struct {
	name      string
	size      int
	count     int
	leakEvery uint64
	allocs    atomic.Uint64
}

// NewAllocOp builds an alloc op. leak is the fraction of allocations left
// live, clamped to [0, 1]; 0.01 keeps roughly every hundredth block.
func NewAllocOp(name string, size, count int, leak float64) *AllocOp {
	op := &AllocOp{name: name, size: size, count: count}
	if leak > 0 {
		every := uint64(math.Round(1 / math.Min(leak, 1)))
		if every < 1 {
			every = 1
		}
		op.leakEvery = every
	}
	return op
}

func (o *AllocOp) Name() string { return o.name }

func (o *AllocOp) Do(ctx context.Context, a *arena.Arena) error {
	for i := 0; i < o.count; i++ {
		block := a.AllocBytes(o.size)
		if err := check.Thatf(block != nil, "arena returned nil block for size %d", o.size); err != nil {
			return err
		}
		touch(block)
		// The leak counter is shared across workers so the kept fraction
		// tracks the configured ratio regardless of scheduling.
		if o.leakEvery > 0 && o.allocs.Add(1)%o.leakEvery == 0 {
			continue
		}
		a.FreeBytes(block)
	}
	return nil
}

// ChurnOp allocates a whole burst, holds it, then frees every block. The
// hold phase drives peak arena usage and chunk growth.
type ChurnOp struct {
	name  string
	size  int
	count int
}

func NewChurnOp(name string, size, count int) *ChurnOp {
	return &ChurnOp{name: name, size: size, count: count}
}

func (o *ChurnOp) Name() string { return o.name }

func (o *ChurnOp) Do(ctx context.Context, a *arena.Arena) error {
	blocks := make([][]byte, 0, o.count)
	for i := 0; i < o.count; i++ {
		block := a.AllocBytes(o.size)
		if err := check.Thatf(block != nil, "arena returned nil block for size %d", o.size); err != nil {
			return err
		}
		touch(block)
		blocks = append(blocks, block)
	}
	for _, block := range blocks {
		a.FreeBytes(block)
	}
	return nil
}

// SnapshotOp reads the arena's bookkeeping and cross-checks counters
// against the leak report, standing in for the introspection a diagnostic
// consumer performs mid-run. Each worker owns its arena, so the two reads
// see a consistent state.
type SnapshotOp struct {
	name string
}

func NewSnapshotOp(name string) *SnapshotOp {
	return &SnapshotOp{name: name}
}

func (o *SnapshotOp) Name() string { return o.name }

func (o *SnapshotOp) Do(ctx context.Context, a *arena.Arena) error {
	stats := a.Stats()
	leaks := a.LeakReport()
	if err := check.Thatf(stats.ActiveAllocs == len(leaks),
		"arena bookkeeping drifted: %d active allocations vs %d live records", stats.ActiveAllocs, len(leaks)); err != nil {
		return err
	}
	var live int64
	for _, l := range leaks {
		live += int64(l.Size)
	}
	return check.Thatf(stats.ActiveBytes == live,
		"arena bookkeeping drifted: %d active bytes vs %d live bytes", stats.ActiveBytes, live)
}

// touch writes every byte so the block is honestly used, not just reserved.
func touch(b []byte) {
	for i := range b {
		b[i] = byte(i)
	}
}
