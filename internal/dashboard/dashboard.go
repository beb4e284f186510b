package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/probelab/vigil/internal/workload"
	"github.com/probelab/vigil/perf"
)

// Source yields the live statistics to render. *workload.Runner
// satisfies it.
type Source interface {
	Live() workload.Live
}

// RunConfig holds probe configuration parameters for display.
type RunConfig struct {
	Workers    int           // concurrent workers
	Duration   time.Duration // run duration (0 = unlimited)
	Total      int           // total ops to execute (0 = unlimited)
	Rate       int           // ops per second (0 = unlimited)
	Arrival    string        // arrival model (uniform, poisson)
	Phases     int           // configured load phases
	ConfigFile string        // path to config file if used
}

// Options wires a Dashboard to its data sources.
type Options struct {
	Source  Source
	Latency *perf.Counter            // overall op latency, may be nil
	Ops     map[string]*perf.Counter // per-op latency, may be nil
	Config  RunConfig
	// Shutdown is invoked when the user quits the dashboard.
	Shutdown func()
}

// Dashboard renders a live terminal UI for a probe run.
type Dashboard struct {
	opt     Options
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped atomic.Bool

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	memorySparkle  *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	memoryPara     *widgets.Paragraph
	opsGauge       *widgets.Gauge
	opList         *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	latencyHistory []float64
	memoryHistory  []float64
	startTime      time.Time
}

// New creates a Dashboard and initializes the terminal.
func New(opt Options) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		opt:            opt,
		ctx:            ctx,
		cancel:         cancel,
		latencyHistory: make([]float64, 0, 100),
		memoryHistory:  make([]float64, 0, 100),
		startTime:      time.Now(),
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	// Latency Sparkline
	latency := widgets.NewSparkline()
	latency.Title = "Mean Latency (ms)"
	latency.LineColor = ui.ColorGreen
	latency.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(latency)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	// Arena Memory Sparkline
	memory := widgets.NewSparkline()
	memory.Title = "Active (MiB)"
	memory.LineColor = ui.ColorMagenta
	memory.Data = []float64{0}

	d.memorySparkle = widgets.NewSparklineGroup(memory)
	d.memorySparkle.Title = "Arena Memory"
	d.memorySparkle.BorderStyle.Fg = ui.ColorCyan

	// Latency Metrics Paragraph
	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	// Arena Memory Paragraph
	d.memoryPara = widgets.NewParagraph()
	d.memoryPara.Title = "Arena Stats"
	d.memoryPara.Text = "Awaiting data"
	d.memoryPara.BorderStyle.Fg = ui.ColorCyan

	// Throughput Gauge
	d.opsGauge = widgets.NewGauge()
	d.opsGauge.Title = "Ops Per Second"
	d.opsGauge.Percent = 0
	d.opsGauge.BarColor = ui.ColorBlue
	d.opsGauge.BorderStyle.Fg = ui.ColorCyan
	d.opsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	// Op List
	d.opList = widgets.NewList()
	d.opList.Title = "Ops"
	d.opList.Rows = []string{"Awaiting data"}
	d.opList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.opList.BorderStyle.Fg = ui.ColorCyan

	// Summary Paragraph
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Probe Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	// Metrics Paragraph (plain text summary)
	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Counters"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.opsGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.memorySparkle),
			ui.NewCol(0.35, d.memoryPara),
		),
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.opList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal. Safe to call more
// than once, so callers can stop eagerly before printing the report and
// still keep a deferred Stop for error paths.
func (d *Dashboard) Stop() {
	if !d.stopped.CompareAndSwap(false, true) {
		return
	}
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			// Check if context is done to avoid blocking
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.opt.Shutdown != nil {
					d.opt.Shutdown()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the sources.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	live := d.opt.Source.Live()
	var snap perf.Snapshot
	if d.opt.Latency != nil {
		snap = d.opt.Latency.Snapshot()
	}

	// Latency history for the sparkline
	if snap.Mean > 0 {
		d.latencyHistory = appendCapped(d.latencyHistory, snap.MeanMs, 100)
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Latency | Current: %.2fms | Min: %.2fms | Max: %.2fms",
			snap.MeanMs,
			snap.MinMs,
			snap.MaxMs,
		)
	}

	// Arena memory history for the sparkline
	activeMiB := float64(live.Memory.Arena.ActiveBytes) / (1 << 20)
	d.memoryHistory = appendCapped(d.memoryHistory, activeMiB, 100)
	d.memorySparkle.Sparklines[0].Data = d.memoryHistory
	d.memorySparkle.Title = fmt.Sprintf(
		"Arena Memory | Active: %s | Chunks: %d",
		formatBytes(live.Memory.Arena.ActiveBytes),
		live.Memory.Arena.Chunks,
	)

	currentOps := live.OpsPerSec
	maxOps := 100.0
	if currentOps > maxOps {
		maxOps = currentOps
	}
	opsPercent := int((currentOps / maxOps) * 100)
	if opsPercent > 100 {
		opsPercent = 100
	}
	d.opsGauge.Percent = opsPercent
	d.opsGauge.Label = fmt.Sprintf("%.1f ops/s", currentOps)

	successRate := 0.0
	if live.Total > 0 {
		successRate = (float64(live.Total-live.Errors) / float64(live.Total)) * 100
	}

	params := d.formatRunParams()

	d.summaryPara.Text = fmt.Sprintf(
		"%s\nElapsed: %s | Total Ops: %d | Success Rate: %.1f%%",
		params,
		live.Elapsed.Round(time.Second),
		live.Total,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Total Ops:         %d\nSuccessful:        %d\nFailed:            %d\nCurrent Ops/sec:   %.2f\nSuccess Rate:      %.1f%%\nMin Latency:       %.2fms\nMean Latency:      %.2fms\nP50/P90/P99:       %.2f / %.2f / %.2f ms",
		live.Total,
		live.Total-live.Errors,
		live.Errors,
		currentOps,
		successRate,
		snap.MinMs,
		snap.MeanMs,
		snap.P50Ms,
		snap.P90Ms,
		snap.P99Ms,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP50:  %.2fms\nP90:  %.2fms\nP99:  %.2fms",
		snap.MinMs,
		snap.MeanMs,
		snap.P50Ms,
		snap.P90Ms,
		snap.P99Ms,
	)

	d.updateMemoryPane(live)
	d.updateOpList(d.opSnapshots())
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) updateMemoryPane(live workload.Live) {
	a := live.Memory.Arena
	utilization := 0.0
	if a.Capacity > 0 {
		utilization = a.Utilization * 100
	}
	d.memoryPara.Text = fmt.Sprintf(
		"Arenas:    %d in use, %d idle\nAllocs:    %d live\nActive:    %s\nChunks:    %d\nCapacity:  %s\nBumped:    %.1f%%",
		live.Memory.InUse,
		live.Memory.Idle,
		a.ActiveAllocs,
		formatBytes(a.ActiveBytes),
		a.Chunks,
		formatBytes(int64(a.Capacity)),
		utilization,
	)
}

func (d *Dashboard) opSnapshots() []perf.Snapshot {
	if len(d.opt.Ops) == 0 {
		return nil
	}
	snaps := make([]perf.Snapshot, 0, len(d.opt.Ops))
	for name, c := range d.opt.Ops {
		snap := c.Snapshot()
		snap.Name = name
		snaps = append(snaps, snap)
	}
	return snaps
}

func (d *Dashboard) updateOpList(snaps []perf.Snapshot) {
	if len(snaps) == 0 {
		d.opList.Rows = []string{"[No op data](fg:green)"}
		return
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].Count == snaps[j].Count {
			return snaps[i].Name < snaps[j].Name
		}
		return snaps[i].Count > snaps[j].Count
	})
	var total int64
	for _, snap := range snaps {
		total += snap.Count
	}
	formatted := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		share := 0.0
		if total > 0 {
			share = (float64(snap.Count) / float64(total)) * 100
		}
		formatted = append(formatted, fmt.Sprintf("[%s](fg:cyan) | %6d ops | %5.1f%% | Mean %6.2fms | P99 %6.2fms",
			snap.Name,
			snap.Count,
			share,
			snap.MeanMs,
			snap.P99Ms,
		))
	}
	d.opList.Rows = formatted
}

func appendCapped(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[1:]
	}
	return history
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatRunParams formats the probe configuration for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	cfg := d.opt.Config

	// Arrival model (only show if non-default)
	if cfg.Arrival != "" && cfg.Arrival != "uniform" {
		parts = append(parts, fmt.Sprintf("Arrival: %s", cfg.Arrival))
	}

	// Workers
	if cfg.Workers > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", cfg.Workers))
	}

	// Rate
	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	// Duration
	if cfg.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", cfg.Duration))
	}

	// Total
	if cfg.Total > 0 {
		parts = append(parts, fmt.Sprintf("Total: %d", cfg.Total))
	}

	// Phases (only show if configured)
	if cfg.Phases > 0 {
		parts = append(parts, fmt.Sprintf("Phases: %d", cfg.Phases))
	}

	// Config file (only show if used)
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " | ")
}
