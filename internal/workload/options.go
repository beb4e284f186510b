package workload

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/probelab/vigil/arena"
)

// Op abstracts one unit of probe work against an arena. Implementations
// should return an error when the work or its consistency checks fail.
type Op interface {
	Name() string
	Do(ctx context.Context, a *arena.Arena) error
}

// WeightedOp pairs an Op with its selection weight. Weights are relative;
// an op with weight 3 runs three times as often as one with weight 1.
type WeightedOp struct {
	Op     Op
	Weight int
}

// ArrivalModel selects how operation start times are spaced.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// PhaseType identifies a load phase shape.
type PhaseType string

const (
	PhaseTypeRamp  PhaseType = "ramp"
	PhaseTypeStep  PhaseType = "step"
	PhaseTypeSpike PhaseType = "spike"
)

// Phase describes one segment of a time-varying operation rate.
type Phase struct {
	Type     PhaseType
	FromRate int
	ToRate   int
	Rate     int
	Duration time.Duration
	Steps    []PhaseStep
}

// PhaseStep is one plateau inside a step phase.
type PhaseStep struct {
	Rate     int
	Duration time.Duration
}

// Options configure the Runner.
type Options struct {
	Workers        int             // number of worker goroutines, each owning one arena
	Total          int             // total operations to execute (0 means unlimited until duration/end)
	Duration       time.Duration   // overall time limit (0 means no duration cap)
	Rate           int             // operations per second pacing (0 means unpaced)
	ArrivalModel   ArrivalModel    // uniform or poisson spacing
	RandomSeed     int64           // seeds op selection and Poisson sampling (0 means time-based)
	Phases         []Phase         // optional time-varying rate plan; overrides Rate while active
	Ops            []WeightedOp    // weighted workload mix
	Arenas         *arena.Registry // arena source; one arena is acquired per worker
	PoissonSampler func() float64  // optional injection for tests
	LimiterFactory func(opsPerSec int) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Total < 0 {
		o.Total = 0
	}
	if o.Rate < 0 {
		o.Rate = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.Arenas == nil {
		o.Arenas = arena.NewRegistry(arena.Options{})
	}
	for i := range o.Ops {
		if o.Ops[i].Weight <= 0 {
			o.Ops[i].Weight = 1
		}
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(opsPerSec int) *rate.Limiter {
			if opsPerSec <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to the rate to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(opsPerSec), opsPerSec)
		}
	}
}
