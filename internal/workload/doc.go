// Package workload drives concurrent allocation traffic through arenas
// and accounts for the outcome.
//
// The package orchestrates concurrent op execution with support for:
//   - Configurable worker counts, one arena per worker
//   - Rate limiting (operations per second)
//   - Duration-based and count-based termination
//   - Multiple arrival models (uniform, Poisson)
//   - Dynamic load phases (ramp, step, spike)
//
// # Basic Usage
//
// Create a runner with options and a weighted op mix:
//
//	opts := workload.Options{
//		Workers:  10,
//		Total:    100000,
//		Rate:     5000,
//		Ops:      []workload.WeightedOp{{Op: workload.NewAllocOp("alloc", 64, 16, 0), Weight: 1}},
//		Arenas:   arena.NewRegistry(arena.Options{}),
//	}
//	r := workload.New(opts)
//	result := r.Run(ctx)
//
// # Op Interface
//
// The [Op] interface defines one unit of work against the arena the
// calling worker owns:
//
//	type Op interface {
//		Name() string
//		Do(ctx context.Context, a *arena.Arena) error
//	}
//
// [AllocOp], [ChurnOp] and [SnapshotOp] cover the built-in mixes; anything
// implementing Op can join the rotation.
//
// # Arrival Models and Phases
//
// Pacing follows either [ArrivalModelUniform] (fixed intervals) or
// [ArrivalModelPoisson] (exponential gaps). A [Phase] list overlays a
// time-varying rate on top of either model; when phases are set they
// define the run's length.
//
// # Middleware
//
// Wrap ops before handing them to the runner:
//   - [WithTiming]: commit per-call durations to a counter and histogram
//   - [WithRetry]: automatic retry with backoff
//   - [WithFailureLog]: log op failures
//
// # Results
//
// [Runner.Run] returns a [Result] with totals, per-op failure counts and
// the final arena memory and leak accounting. [Runner.Live] samples the
// same counters mid-run, and [Summarize] folds a Result plus timing
// snapshots into the reportable [Summary].
package workload
