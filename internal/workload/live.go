package workload

import (
	"sync/atomic"
	"time"

	"github.com/intuitivelabs/timestamp"

	"github.com/probelab/vigil/arena"
)

// Live is a point-in-time view of a run in flight, cheap enough to sample
// from a progress ticker or stream to subscribers.
type Live struct {
	Elapsed   time.Duration       `json:"-"`
	ElapsedMs float64             `json:"elapsed_ms"`
	Total     int64               `json:"total"`
	Errors    int64               `json:"errors"`
	OpsPerSec float64             `json:"ops_per_sec"`
	Memory    arena.RegistryStats `json:"memory"`
}

// Live samples the run's counters and the registry's memory accounting.
// Safe to call from any goroutine, before, during or after Run.
func (r *Runner) Live() Live {
	lv := Live{
		Total:  atomic.LoadInt64(&r.total),
		Errors: atomic.LoadInt64(&r.errs),
		Memory: r.opt.Arenas.Stats(),
	}
	if atomic.LoadInt32(&r.started) == 1 {
		start := timestamp.AtomicLoad(&r.start)
		lv.Elapsed = timestamp.Now().Sub(start)
	}
	lv.ElapsedMs = float64(lv.Elapsed) / float64(time.Millisecond)
	if lv.Elapsed > 0 {
		lv.OpsPerSec = float64(lv.Total) / lv.Elapsed.Seconds()
	}
	return lv
}
