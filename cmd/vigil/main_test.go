package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/probelab/vigil/internal/config"
	"github.com/probelab/vigil/internal/tracing"
	"github.com/probelab/vigil/internal/workload"
	"github.com/probelab/vigil/perf"
)

func TestToArrivalModel(t *testing.T) {
	tests := []struct {
		input config.ArrivalModel
		want  workload.ArrivalModel
	}{
		{config.ArrivalModelUniform, workload.ArrivalModelUniform},
		{config.ArrivalModelPoisson, workload.ArrivalModelPoisson},
		{"unknown", workload.ArrivalModelUniform}, // Default fallback
	}

	for _, tt := range tests {
		got := toArrivalModel(tt.input)
		if got != tt.want {
			t.Errorf("toArrivalModel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToPhases(t *testing.T) {
	input := []config.Phase{
		{
			Name:     "warmup",
			Type:     config.PhaseTypeRamp,
			FromRate: 10,
			ToRate:   100,
			Duration: time.Minute,
		},
	}
	got := toPhases(input)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if got[0].Type != workload.PhaseTypeRamp {
		t.Errorf("Type = %q, want ramp", got[0].Type)
	}
	if got[0].FromRate != 10 || got[0].ToRate != 100 {
		t.Errorf("FromRate/ToRate = %d/%d, want 10/100", got[0].FromRate, got[0].ToRate)
	}
	if toPhases(nil) != nil {
		t.Error("toPhases(nil) should be nil")
	}
}

func TestToPhaseSteps(t *testing.T) {
	input := []config.PhaseStep{
		{Rate: 10, Duration: time.Second},
	}
	got := toPhaseSteps(input)
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1", len(got))
	}
	if got[0].Rate != 10 {
		t.Errorf("Rate = %d, want 10", got[0].Rate)
	}
}

func TestNewOp(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.OpConfig
		wantErr bool
	}{
		{"alloc", config.OpConfig{Name: "a", Kind: config.OpKindAlloc, Size: 64, Count: 4}, false},
		{"churn", config.OpConfig{Name: "c", Kind: config.OpKindChurn, Size: 64, Count: 4}, false},
		{"snapshot", config.OpConfig{Name: "s", Kind: config.OpKindSnapshot}, false},
		{"unknown", config.OpConfig{Name: "x", Kind: "mystery"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := newOp(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unknown kind")
				}
				return
			}
			if err != nil {
				t.Fatalf("newOp() error = %v", err)
			}
			if op.Name() != tt.cfg.Name {
				t.Errorf("Name() = %q, want %q", op.Name(), tt.cfg.Name)
			}
		})
	}
}

func TestBuildOps(t *testing.T) {
	cfg := &config.Config{
		Ops: []config.OpConfig{
			{Name: "small", Kind: config.OpKindAlloc, Size: 64, Count: 2, Weight: 3},
			{Name: "burst", Kind: config.OpKindChurn, Size: 128, Count: 4, Weight: 1},
		},
	}
	timers := perf.NewRegistry(perf.Options{})
	latency := perf.NewCounter(perf.Options{})
	hist := perf.NewHistogram(10*time.Microsecond, 10*time.Second, 3)

	ops, err := buildOps(cfg, timers, latency, hist, &tracing.Provider{})
	if err != nil {
		t.Fatalf("buildOps() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops) = %d, want 2", len(ops))
	}
	if ops[0].Weight != 3 || ops[1].Weight != 1 {
		t.Errorf("weights = %d/%d, want 3/1", ops[0].Weight, ops[1].Weight)
	}
	if ops[0].Op.Name() != "small" || ops[1].Op.Name() != "burst" {
		t.Errorf("names = %q/%q, want small/burst", ops[0].Op.Name(), ops[1].Op.Name())
	}
}

func TestBuildOpsTimesEveryCall(t *testing.T) {
	cfg := &config.Config{
		Ops: []config.OpConfig{
			{Name: "small", Kind: config.OpKindAlloc, Size: 32, Count: 1, Weight: 1},
		},
	}
	timers := perf.NewRegistry(perf.Options{})
	latency := perf.NewCounter(perf.Options{})
	hist := perf.NewHistogram(10*time.Microsecond, 10*time.Second, 3)

	ops, err := buildOps(cfg, timers, latency, hist, &tracing.Provider{})
	if err != nil {
		t.Fatalf("buildOps() error = %v", err)
	}

	arenas, err := newArenaRegistry(config.ArenaConfig{ChunkSize: 4096, Pooling: true})
	if err != nil {
		t.Fatalf("newArenaRegistry() error = %v", err)
	}
	a := arenas.Acquire()
	defer arenas.Release(a)

	if err := ops[0].Op.Do(context.Background(), a); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if got := latency.Count(); got != 1 {
		t.Errorf("overall latency count = %d, want 1", got)
	}
	if got := timers.Counter("small").Count(); got != 1 {
		t.Errorf("per-op counter count = %d, want 1", got)
	}
	if got := hist.Count(); got != 1 {
		t.Errorf("histogram count = %d, want 1", got)
	}
}

func TestBuildOpsUnknownKind(t *testing.T) {
	cfg := &config.Config{
		Ops: []config.OpConfig{
			{Name: "x", Kind: "mystery", Weight: 1},
		},
	}
	timers := perf.NewRegistry(perf.Options{})
	latency := perf.NewCounter(perf.Options{})
	hist := perf.NewHistogram(10*time.Microsecond, 10*time.Second, 3)

	if _, err := buildOps(cfg, timers, latency, hist, &tracing.Provider{}); err == nil {
		t.Fatal("expected error for unknown op kind")
	}
}

func TestNewArenaRegistry(t *testing.T) {
	arenas, err := newArenaRegistry(config.ArenaConfig{ChunkSize: 2048})
	if err != nil {
		t.Fatalf("newArenaRegistry() error = %v", err)
	}
	a := arenas.Acquire()
	if b := a.AllocBytes(64); b == nil {
		t.Error("arena from registry failed to allocate")
	}
	arenas.Release(a)
}

func TestNewRetryPolicy(t *testing.T) {
	policy := newRetryPolicy(3)
	if policy.MaxAttempts != 4 {
		t.Errorf("MaxAttempts = %d, want 4", policy.MaxAttempts)
	}

	if policy.ShouldRetry(context.Canceled) {
		t.Error("should not retry on context.Canceled")
	}
	if policy.ShouldRetry(context.DeadlineExceeded) {
		t.Error("should not retry on context.DeadlineExceeded")
	}
	if !policy.ShouldRetry(errors.New("transient")) {
		t.Error("should retry on a generic error")
	}
	if policy.ShouldRetry(nil) {
		t.Error("should not retry on nil error")
	}
}

func TestRetryPolicyBackoffGrows(t *testing.T) {
	policy := newRetryPolicy(10)

	first := policy.DelayFunc(1, errors.New("x"))
	if first < baseRetryDelay || first > baseRetryDelay+baseRetryDelay/2 {
		t.Errorf("attempt 1 delay = %s, want within [%s, %s]", first, baseRetryDelay, baseRetryDelay+baseRetryDelay/2)
	}

	// Deep attempts cap at maxRetryDelay plus half jitter.
	deep := policy.DelayFunc(20, errors.New("x"))
	if deep > maxRetryDelay+maxRetryDelay/2 {
		t.Errorf("attempt 20 delay = %s, want at most %s", deep, maxRetryDelay+maxRetryDelay/2)
	}
}

func TestJitterSource(t *testing.T) {
	var nilSource *jitterSource
	if got := nilSource.jitter(time.Second); got != 0 {
		t.Errorf("nil source jitter = %s, want 0", got)
	}

	src := &jitterSource{}
	if got := src.jitter(0); got != 0 {
		t.Errorf("jitter(0) = %s, want 0", got)
	}
}

func TestOpCounters(t *testing.T) {
	timers := perf.NewRegistry(perf.Options{})
	timers.Counter("alloc").Observe(time.Millisecond)
	timers.Counter("churn").Observe(2 * time.Millisecond)

	got := opCounters(timers)
	if len(got) != 2 {
		t.Fatalf("len(opCounters) = %d, want 2", len(got))
	}
	if got["alloc"] == nil || got["churn"] == nil {
		t.Error("expected counters for alloc and churn")
	}
	if got["alloc"].Count() != 1 {
		t.Errorf("alloc count = %d, want 1", got["alloc"].Count())
	}
}

func TestDashboardConfig(t *testing.T) {
	cfg := &config.Config{
		Workers:    8,
		Rate:       500,
		Duration:   30 * time.Second,
		Total:      1000,
		Arrival:    config.ArrivalConfig{Model: config.ArrivalModelPoisson},
		Phases:     []config.Phase{{Type: config.PhaseTypeStep}},
		ConfigFile: "probe.yml",
	}
	got := dashboardConfig(cfg)
	if got.Workers != 8 || got.Rate != 500 || got.Total != 1000 {
		t.Errorf("got %+v, want workers/rate/total carried", got)
	}
	if got.Arrival != "poisson" {
		t.Errorf("Arrival = %q, want poisson", got.Arrival)
	}
	if got.Phases != 1 {
		t.Errorf("Phases = %d, want 1", got.Phases)
	}
	if got.ConfigFile != "probe.yml" {
		t.Errorf("ConfigFile = %q, want probe.yml", got.ConfigFile)
	}
}

func TestReportMetadata(t *testing.T) {
	cfg := &config.Config{
		ConfigFile: "probe.yml",
		Ops: []config.OpConfig{
			{Name: "small", Kind: config.OpKindAlloc, Size: 64, Count: 8, Weight: 2, Leak: 0.01},
		},
	}
	meta := reportMetadata(cfg)
	if meta.ConfigFile != "probe.yml" {
		t.Errorf("ConfigFile = %q, want probe.yml", meta.ConfigFile)
	}
	if len(meta.Ops) != 1 {
		t.Fatalf("len(Ops) = %d, want 1", len(meta.Ops))
	}
	if meta.Ops[0].Kind != "alloc" || meta.Ops[0].Leak != 0.01 {
		t.Errorf("op = %+v, want alloc with leak 0.01", meta.Ops[0])
	}
}
