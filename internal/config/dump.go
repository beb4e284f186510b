package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// DumpYAML writes the effective configuration as YAML. Useful for turning a
// pile of flags into a starting config file. Durations are rendered as
// strings ("30s", "1m") so the output loads back through Load unchanged.
func (c Config) DumpYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.dumpView()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

type configView struct {
	Workers    int            `yaml:"workers"`
	Rate       int            `yaml:"rate,omitempty"`
	Duration   string         `yaml:"duration,omitempty"`
	Total      int            `yaml:"total,omitempty"`
	Seed       int64          `yaml:"seed,omitempty"`
	Arrival    ArrivalConfig  `yaml:"arrival"`
	Phases     []phaseView    `yaml:"phases,omitempty"`
	Arena      ArenaConfig    `yaml:"arena"`
	Timing     timingView     `yaml:"timing"`
	Ops        []OpConfig     `yaml:"ops"`
	Thresholds []string       `yaml:"thresholds,omitempty"`
	JSONOutput bool           `yaml:"json_output,omitempty"`
	HTMLOutput string         `yaml:"html_output,omitempty"`
	Dashboard  bool           `yaml:"dashboard,omitempty"`
	LogErrors  bool           `yaml:"log_errors,omitempty"`
	Retries    int            `yaml:"retries,omitempty"`
	Stream     streamView     `yaml:"stream,omitempty"`
	Baseline   BaselineConfig `yaml:"baseline,omitempty"`
	Tracing    TracingConfig  `yaml:"tracing,omitempty"`
}

type phaseView struct {
	Name     string     `yaml:"name,omitempty"`
	Type     PhaseType  `yaml:"type"`
	FromRate int        `yaml:"from_rate,omitempty"`
	ToRate   int        `yaml:"to_rate,omitempty"`
	Duration string     `yaml:"duration,omitempty"`
	Steps    []stepView `yaml:"steps,omitempty"`
	Rate     int        `yaml:"rate,omitempty"`
}

type stepView struct {
	Rate     int    `yaml:"rate"`
	Duration string `yaml:"duration"`
}

type timingView struct {
	SampleCap int    `yaml:"sample_cap,omitempty"`
	HistMin   string `yaml:"hist_min,omitempty"`
	HistMax   string `yaml:"hist_max,omitempty"`
	SigFigs   int    `yaml:"sig_figs"`
}

type streamView struct {
	Listen   string `yaml:"listen,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

func (c Config) dumpView() configView {
	view := configView{
		Workers:    c.Workers,
		Rate:       c.Rate,
		Duration:   durationString(c.Duration),
		Total:      c.Total,
		Seed:       c.Seed,
		Arrival:    c.Arrival,
		Arena:      c.Arena,
		Ops:        c.Ops,
		Thresholds: c.Thresholds,
		JSONOutput: c.JSONOutput,
		HTMLOutput: c.HTMLOutput,
		Dashboard:  c.Dashboard,
		LogErrors:  c.LogErrors,
		Retries:    c.Retries,
		Baseline:   c.Baseline,
		Tracing:    c.Tracing,
	}
	view.Timing = timingView{
		SampleCap: c.Timing.SampleCap,
		HistMin:   durationString(c.Timing.HistMin),
		HistMax:   durationString(c.Timing.HistMax),
		SigFigs:   c.Timing.SigFigs,
	}
	if c.Stream.Listen != "" {
		view.Stream = streamView{
			Listen:   c.Stream.Listen,
			Interval: durationString(c.Stream.Interval),
		}
	}
	for _, phase := range c.Phases {
		pv := phaseView{
			Name:     phase.Name,
			Type:     phase.Type,
			FromRate: phase.FromRate,
			ToRate:   phase.ToRate,
			Duration: durationString(phase.Duration),
			Rate:     phase.Rate,
		}
		for _, step := range phase.Steps {
			pv.Steps = append(pv.Steps, stepView{
				Rate:     step.Rate,
				Duration: durationString(step.Duration),
			})
		}
		view.Phases = append(view.Phases, pv)
	}
	return view
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
