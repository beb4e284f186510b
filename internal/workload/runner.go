package workload

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intuitivelabs/timestamp"

	"github.com/probelab/vigil/arena"
)

// Result captures execution summary. Memory and Leaks are sampled after
// the workers stop but before their arenas are released, so they describe
// the run's final state rather than the recycled arenas.
type Result struct {
	Total        int64
	Errors       int64
	Duration     time.Duration
	ErrorsByOp   map[string]int64
	ErrorsByType map[string]int64
	Memory       arena.RegistryStats
	Leaks        []arena.LeakRecord // merged across arenas, oldest first
	LeakArenas   int                // arenas that ended the run with leaks
}

// Runner coordinates concurrent arena work with rate limiting. Every
// worker goroutine owns one arena for the whole run.
type Runner struct {
	opt     Options
	plan    *phasePlan
	arrival arrivalController

	total   int64
	errs    int64
	started int32
	start   timestamp.TS

	mu     sync.Mutex
	byOp   map[string]int64
	byType map[string]int64

	weightSum int
}

func New(opt Options) *Runner {
	opt.normalize()
	plan := compilePhasePlan(opt.Phases)
	arrival := newArrivalController(opt, plan)
	r := &Runner{
		opt:     opt,
		plan:    plan,
		arrival: arrival,
		byOp:    make(map[string]int64),
		byType:  make(map[string]int64),
	}
	for _, w := range opt.Ops {
		r.weightSum += w.Weight
	}
	return r
}

func (r *Runner) Run(ctx context.Context) Result {
	start := timestamp.Now()
	timestamp.AtomicStore(&r.start, start)
	atomic.StoreInt32(&r.started, 1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}

	var phaseCancel context.CancelFunc
	if r.plan != nil {
		phaseCtx, cancelPhase := context.WithCancel(ctx)
		ctx = phaseCtx
		phaseCancel = cancelPhase
		go r.runPhaseController(phaseCtx, phaseCancel)
	}

	arenas := make([]*arena.Arena, r.opt.Workers)
	for i := range arenas {
		arenas[i] = r.opt.Arenas.Acquire()
	}

	permits := make(chan struct{}, r.opt.Workers)

	// Scheduler: serializes rate limiting to avoid burst overshoot across workers.
	go func() {
		defer close(permits)
		for {
			if ctx.Err() != nil {
				return
			}
			current := atomic.LoadInt64(&r.total)
			if r.opt.Total > 0 && current >= int64(r.opt.Total) {
				return
			}
			if r.arrival != nil {
				if err := r.arrival.Wait(ctx); err != nil {
					return
				}
			}
			// Increment total before releasing permit so workers only execute allocated slots.
			atomic.AddInt64(&r.total, 1)
			select {
			case permits <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(r.opt.Workers)
	for i := 0; i < r.opt.Workers; i++ {
		go func(worker int) {
			defer wg.Done()
			a := arenas[worker]
			rng := rand.New(rand.NewSource(r.opt.RandomSeed + int64(worker)))
			for range permits {
				if op := r.pick(rng); op != nil {
					if err := op.Do(ctx, a); err != nil {
						atomic.AddInt64(&r.errs, 1)
						r.recordFailure(op.Name(), err)
					}
				}
				if ctx.Err() != nil {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	// Memory and leak accounting must run before Release resets the arenas.
	res := Result{
		Total:    atomic.LoadInt64(&r.total),
		Errors:   atomic.LoadInt64(&r.errs),
		Duration: timestamp.Now().Sub(start),
		Memory:   r.opt.Arenas.Stats(),
	}
	res.Leaks, res.LeakArenas = mergeLeaks(r.opt.Arenas.LeakReport())
	r.mu.Lock()
	res.ErrorsByOp = cloneCounts(r.byOp)
	res.ErrorsByType = cloneCounts(r.byType)
	r.mu.Unlock()

	for _, a := range arenas {
		r.opt.Arenas.Release(a)
	}
	return res
}

// pick selects an op by weight using the worker's own source, keeping runs
// reproducible for a fixed seed.
func (r *Runner) pick(rng *rand.Rand) Op {
	ops := r.opt.Ops
	switch len(ops) {
	case 0:
		return nil
	case 1:
		return ops[0].Op
	}
	n := rng.Intn(r.weightSum)
	for _, w := range ops {
		if n < w.Weight {
			return w.Op
		}
		n -= w.Weight
	}
	return ops[len(ops)-1].Op
}

func (r *Runner) recordFailure(op string, err error) {
	key := fmt.Sprintf("%T", err)
	if len(key) > 30 {
		key = key[len(key)-30:]
	}
	r.mu.Lock()
	r.byOp[op]++
	r.byType[key]++
	r.mu.Unlock()
}

func (r *Runner) runPhaseController(ctx context.Context, cancel context.CancelFunc) {
	if r.plan == nil || r.arrival == nil {
		if cancel != nil {
			cancel()
		}
		return
	}
	defer func() {
		if cancel != nil {
			cancel()
		}
	}()

	start := time.Now()
	if initial, ok := r.plan.rateAt(0); ok {
		r.arrival.SetRate(initial)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			opsPerSec, ok := r.plan.rateAt(elapsed)
			if !ok {
				return
			}
			r.arrival.SetRate(opsPerSec)
		}
	}
}

func mergeLeaks(reports []arena.ArenaLeaks) ([]arena.LeakRecord, int) {
	var out []arena.LeakRecord
	for _, rep := range reports {
		out = append(out, rep.Leaks...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Age > out[j].Age })
	return out, len(reports)
}

func cloneCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
