package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/internal/baseline"
	"github.com/probelab/vigil/internal/config"
	"github.com/probelab/vigil/internal/dashboard"
	"github.com/probelab/vigil/internal/output"
	"github.com/probelab/vigil/internal/stream"
	"github.com/probelab/vigil/internal/threshold"
	"github.com/probelab/vigil/internal/tracing"
	"github.com/probelab/vigil/internal/workload"
	"github.com/probelab/vigil/perf"
)

const (
	progressInterval = time.Second
	shutdownGrace    = 5 * time.Second
	baseRetryDelay   = 100 * time.Millisecond
	maxRetryDelay    = 5 * time.Second
)

type stderrFailureLogger struct {
	mu sync.Mutex
}

type jitterSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.DumpConfig {
		return cfg.DumpYAML(os.Stdout)
	}

	// Parse thresholds up front so a bad expression fails before the run.
	checks, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracer, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer flushCancel()
		_ = tracer.Shutdown(flushCtx)
	}()

	arenas, err := newArenaRegistry(cfg.Arena)
	if err != nil {
		return err
	}
	latency := perf.NewCounter(perf.Options{SampleCap: cfg.Timing.SampleCap})
	hist := perf.NewHistogram(cfg.Timing.HistMin, cfg.Timing.HistMax, cfg.Timing.SigFigs)
	timers := perf.NewRegistry(perf.Options{SampleCap: cfg.Timing.SampleCap})

	ops, err := buildOps(cfg, timers, latency, hist, tracer)
	if err != nil {
		return err
	}

	r := workload.New(workload.Options{
		Workers:      cfg.Workers,
		Total:        cfg.Total,
		Duration:     cfg.Duration,
		Rate:         cfg.Rate,
		ArrivalModel: toArrivalModel(cfg.Arrival.Model),
		RandomSeed:   cfg.Seed,
		Phases:       toPhases(cfg.Phases),
		Ops:          ops,
		Arenas:       arenas,
	})

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(dashboard.Options{
			Source:   r,
			Latency:  latency,
			Ops:      opCounters(timers),
			Config:   dashboardConfig(cfg),
			Shutdown: cancel,
		})
		if err != nil {
			return err
		}
		dash.Start()
		defer dash.Stop()
	}

	var progress *output.ProgressReporter
	switch {
	case !cfg.JSONOutput && !cfg.Dashboard:
		progress = output.NewProgressReporter(r, latency, progressInterval, os.Stdout)
	case cfg.HTMLOutput != "":
		// The HTML charts need the sampled history even when the console
		// stays quiet.
		progress = output.NewProgressReporter(r, latency, progressInterval, nil)
	}
	if progress != nil {
		progress.Start()
		defer progress.Stop()
	}

	var caster *stream.Broadcaster
	if cfg.Stream.Listen != "" {
		caster = stream.New(stream.Options{
			Listen:   cfg.Stream.Listen,
			Interval: cfg.Stream.Interval,
			Source:   r,
		})
		if err := caster.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer stopCancel()
			_ = caster.Stop(stopCtx)
		}()
	}

	result := r.Run(ctx)

	// Reporters must stop before the report prints, or a late tick lands
	// in the middle of it. The dashboard owns the terminal until Stop.
	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
		if !cfg.JSONOutput && !cfg.Dashboard {
			fmt.Fprintln(os.Stdout)
		}
	}

	overall := latency.Snapshot()
	if cfg.Timing.SampleCap > 0 {
		overall = overall.WithQuantiles(hist)
	}
	sum := workload.Summarize(result, overall, timers.Snapshots())

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, sum); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, sum)
	}

	var failures []string

	var results []threshold.Result
	if len(checks) > 0 {
		results = threshold.NewEvaluator(checks).Evaluate(sum)
		if !cfg.JSONOutput {
			output.PrintThresholds(os.Stdout, results)
		}
		for _, res := range results {
			if !res.Pass {
				failures = append(failures, res.Threshold.Raw)
			}
		}
	}

	if cfg.Baseline.Path != "" {
		baselineFailures, err := applyBaseline(ctx, cfg, sum)
		if err != nil {
			return err
		}
		failures = append(failures, baselineFailures...)
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg, sum, progress, results); err != nil {
			return err
		}
		if !cfg.JSONOutput {
			fmt.Fprintf(os.Stdout, "\nHTML report written to %s\n", cfg.HTMLOutput)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d check(s) failed: %s", len(failures), strings.Join(failures, ", "))
	}
	if result.Errors > 0 {
		return fmt.Errorf("%d operations failed", result.Errors)
	}
	return nil
}

// newArenaRegistry maps the arena config onto a registry every worker
// draws from.
func newArenaRegistry(cfg config.ArenaConfig) (*arena.Registry, error) {
	opts := arena.Options{
		ChunkSize: cfg.ChunkSize,
		NoPool:    !cfg.Pooling,
	}
	if cfg.Counters {
		m, err := arena.NewMetrics("vigil", nil)
		if err != nil {
			return nil, err
		}
		opts.Metrics = m
	}
	return arena.NewRegistry(opts), nil
}

// buildOps turns the configured op mix into decorated workload ops.
// Failure logging sits inside retry so every attempt is logged; timing
// and tracing sit outside so each call commits one duration and one span
// covering all attempts.
func buildOps(cfg *config.Config, timers *perf.Registry, latency *perf.Counter, hist *perf.Histogram, tracer *tracing.Provider) ([]workload.WeightedOp, error) {
	var logger workload.FailureLogger
	if cfg.LogErrors {
		logger = &stderrFailureLogger{}
	}

	ops := make([]workload.WeightedOp, 0, len(cfg.Ops))
	for _, oc := range cfg.Ops {
		op, err := newOp(oc)
		if err != nil {
			return nil, err
		}

		if logger != nil {
			op = workload.WithFailureLog(op, logger)
		}
		if cfg.Retries > 0 {
			op = workload.WithRetry(op, newRetryPolicy(cfg.Retries))
		}
		if tracer.Enabled() {
			op = tracing.WrapOp(op, tracer.Tracer())
		}
		op = workload.WithTiming(op, timers.Counter(oc.Name), nil)
		op = workload.WithTiming(op, latency, hist)

		ops = append(ops, workload.WeightedOp{Op: op, Weight: oc.Weight})
	}
	return ops, nil
}

func newOp(oc config.OpConfig) (workload.Op, error) {
	switch oc.Kind {
	case config.OpKindAlloc:
		return workload.NewAllocOp(oc.Name, oc.Size, oc.Count, oc.Leak), nil
	case config.OpKindChurn:
		return workload.NewChurnOp(oc.Name, oc.Size, oc.Count), nil
	case config.OpKindSnapshot:
		return workload.NewSnapshotOp(oc.Name), nil
	default:
		return nil, fmt.Errorf("unknown op kind %q for op %q", oc.Kind, oc.Name)
	}
}

// applyBaseline compares the run against the recorded baseline and saves
// it when asked. Returns the names of regressed fields.
func applyBaseline(ctx context.Context, cfg *config.Config, sum workload.Summary) ([]string, error) {
	store := baseline.NewStore(cfg.Baseline.Path)
	var failures []string

	if cfg.Baseline.MaxRegression > 0 {
		base, err := store.Latest(ctx)
		switch {
		case errors.Is(err, baseline.ErrNoBaseline):
			fmt.Fprintf(os.Stderr, "[vigil] no baseline recorded yet at %s\n", cfg.Baseline.Path)
		case err != nil:
			return nil, err
		default:
			cmp, err := baseline.Compare(base, sum, cfg.Baseline.MaxRegression)
			if err != nil {
				return nil, err
			}
			if !cfg.JSONOutput {
				output.PrintComparison(os.Stdout, cmp)
			}
			for _, d := range cmp.Failures() {
				failures = append(failures, "baseline "+d.Field)
			}
		}
	}

	if cfg.Baseline.Save {
		if err := store.Save(ctx, baseline.NewRecord(sum)); err != nil {
			return nil, err
		}
	}
	return failures, nil
}

func writeHTMLReport(cfg *config.Config, sum workload.Summary, progress *output.ProgressReporter, results []threshold.Result) error {
	var history []output.DataPoint
	if progress != nil {
		history = progress.History()
	}

	f, err := os.Create(cfg.HTMLOutput)
	if err != nil {
		return err
	}
	err = output.GenerateHTMLReport(f, sum, history, results, reportMetadata(cfg))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func reportMetadata(cfg *config.Config) output.ReportMetadata {
	meta := output.ReportMetadata{ConfigFile: cfg.ConfigFile}
	for _, oc := range cfg.Ops {
		meta.Ops = append(meta.Ops, output.ConfiguredOp{
			Name:   oc.Name,
			Kind:   string(oc.Kind),
			Size:   oc.Size,
			Count:  oc.Count,
			Weight: oc.Weight,
			Leak:   oc.Leak,
		})
	}
	return meta
}

func dashboardConfig(cfg *config.Config) dashboard.RunConfig {
	return dashboard.RunConfig{
		Workers:    cfg.Workers,
		Duration:   cfg.Duration,
		Total:      cfg.Total,
		Rate:       cfg.Rate,
		Arrival:    string(cfg.Arrival.Model),
		Phases:     len(cfg.Phases),
		ConfigFile: cfg.ConfigFile,
	}
}

func opCounters(timers *perf.Registry) map[string]*perf.Counter {
	out := make(map[string]*perf.Counter)
	timers.Each(func(name string, c *perf.Counter) {
		out[name] = c
	})
	return out
}

func toArrivalModel(model config.ArrivalModel) workload.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return workload.ArrivalModelPoisson
	default:
		return workload.ArrivalModelUniform
	}
}

func toPhases(phases []config.Phase) []workload.Phase {
	if len(phases) == 0 {
		return nil
	}
	result := make([]workload.Phase, len(phases))
	for i, p := range phases {
		result[i] = workload.Phase{
			Type:     workload.PhaseType(p.Type),
			FromRate: p.FromRate,
			ToRate:   p.ToRate,
			Rate:     p.Rate,
			Duration: p.Duration,
			Steps:    toPhaseSteps(p.Steps),
		}
	}
	return result
}

func toPhaseSteps(steps []config.PhaseStep) []workload.PhaseStep {
	if len(steps) == 0 {
		return nil
	}
	result := make([]workload.PhaseStep, len(steps))
	for i, s := range steps {
		result[i] = workload.PhaseStep{
			Rate:     s.Rate,
			Duration: s.Duration,
		}
	}
	return result
}

func (l *stderrFailureLogger) LogFailure(op string, err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(os.Stderr, "[vigil] %s failed: %v\n", op, err)
}

func newRetryPolicy(retries int) workload.RetryPolicy {
	source := &jitterSource{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}

	return workload.RetryPolicy{
		MaxAttempts: retries + 1,
		ShouldRetry: func(err error) bool {
			if err == nil {
				return false
			}
			// Cancellation means the run is over, not that the op is flaky.
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		},
		DelayFunc: func(attempt int, err error) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			backoff := time.Duration(1<<uint(attempt-1)) * baseRetryDelay
			if backoff > maxRetryDelay {
				backoff = maxRetryDelay
			}
			return backoff + source.jitter(backoff/2)
		},
	}
}

func (j *jitterSource) jitter(max time.Duration) time.Duration {
	if j == nil || max <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return time.Duration(j.rnd.Int63n(int64(max)))
}
