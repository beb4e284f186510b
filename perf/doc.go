// Package perf measures operation latencies from many goroutines.
//
// # Counter
//
// The central [Counter] type accumulates durations: lock-free aggregates
// (count, total, min, max) plus a retained sample log for percentile
// queries. The usual way to feed one is a scoped stopwatch:
//
//	func handle(c *perf.Counter) error {
//		defer c.Time().Stop() // commits exactly once on any exit path
//		return doWork()
//	}
//
// [Stopwatch.Stop] is idempotent, so a deferred Stop next to an explicit
// one commits a single measurement. Pre-measured durations go in through
// [Counter.Observe].
//
// # Queries
//
//	c.Count()          // measurements committed
//	c.Mean()           // Total / Count, 0 when empty
//	c.Percentile(99)   // linear interpolation over the retained samples
//	c.Snapshot()       // everything at once, shaped for reports
//
// Empty counters answer zero to every query. Percentiles copy the sample
// log under a read lock and sort outside it, so a query never stalls
// concurrent measurement for long.
//
// # Memory
//
// By default every sample is retained until [Counter.Reset]. For soak
// runs either bound the log with Options.SampleCap (keeps the most recent
// samples, aggregates stay lifetime-accurate) or use [Histogram], which
// records into a fixed-size HDR histogram instead of retaining samples.
//
// # Registry
//
// A [Registry] is a named set of counters handed around as an explicit
// dependency. Components ask it for their counter by name; concurrent
// first uses converge on one instance:
//
//	reg := perf.NewRegistry(perf.Options{})
//	reg.Counter("op.compress").Observe(d)
//
// Reset on a counter or registry is not atomic with respect to running
// stopwatches: measurements committed while a reset is in flight may land
// before or after the wipe. That window is accepted; state never
// corrupts.
package perf
