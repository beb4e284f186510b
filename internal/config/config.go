package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// OpKind selects what a workload operation does with its arena.
type OpKind string

const (
	OpKindAlloc    OpKind = "alloc"    // allocate, optionally keep a fraction live
	OpKindChurn    OpKind = "churn"    // allocate a burst, then free everything
	OpKindSnapshot OpKind = "snapshot" // read stats and the leak report
)

type Config struct {
	Workers    int            `mapstructure:"workers" yaml:"workers"`
	Rate       int            `mapstructure:"rate" yaml:"rate"`
	Duration   time.Duration  `mapstructure:"duration" yaml:"duration"`
	Total      int            `mapstructure:"total" yaml:"total"`
	Seed       int64          `mapstructure:"seed" yaml:"seed"`
	Arrival    ArrivalConfig  `mapstructure:"arrival" yaml:"arrival"`
	Phases     []Phase        `mapstructure:"phases" yaml:"phases,omitempty"`
	Arena      ArenaConfig    `mapstructure:"arena" yaml:"arena"`
	Timing     TimingConfig   `mapstructure:"timing" yaml:"timing"`
	Ops        []OpConfig     `mapstructure:"ops" yaml:"ops"`
	Thresholds []string       `mapstructure:"thresholds" yaml:"thresholds,omitempty"`
	JSONOutput bool           `mapstructure:"json_output" yaml:"json_output"`
	HTMLOutput string         `mapstructure:"html_output" yaml:"html_output,omitempty"`
	Dashboard  bool           `mapstructure:"dashboard" yaml:"dashboard"`
	LogErrors  bool           `mapstructure:"log_errors" yaml:"log_errors"`
	Retries    int            `mapstructure:"retries" yaml:"retries"`
	Stream     StreamConfig   `mapstructure:"stream" yaml:"stream"`
	Baseline   BaselineConfig `mapstructure:"baseline" yaml:"baseline"`
	Tracing    TracingConfig  `mapstructure:"tracing" yaml:"tracing"`
	ConfigFile string         `mapstructure:"-" yaml:"-"`
	DumpConfig bool           `mapstructure:"-" yaml:"-"`
}

// ArenaConfig shapes the arenas workers draw from.
type ArenaConfig struct {
	ChunkSize int  `mapstructure:"chunk_size" yaml:"chunk_size"` // bytes per chunk
	Pooling   bool `mapstructure:"pooling" yaml:"pooling"`       // recycle chunk buffers between resets
	Counters  bool `mapstructure:"counters" yaml:"counters"`     // publish arena counters
}

// TimingConfig shapes the timing counters and the latency histogram.
type TimingConfig struct {
	SampleCap int           `mapstructure:"sample_cap" yaml:"sample_cap"` // retained samples per counter, 0 keeps all
	HistMin   time.Duration `mapstructure:"hist_min" yaml:"hist_min"`
	HistMax   time.Duration `mapstructure:"hist_max" yaml:"hist_max"`
	SigFigs   int           `mapstructure:"sig_figs" yaml:"sig_figs"`
}

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type ArrivalConfig struct {
	Model ArrivalModel `mapstructure:"model" yaml:"model"`
}

type PhaseType string

const (
	PhaseTypeRamp  PhaseType = "ramp"
	PhaseTypeStep  PhaseType = "step"
	PhaseTypeSpike PhaseType = "spike"
)

// Phase describes one segment of a time-varying operation rate.
type Phase struct {
	Name     string        `mapstructure:"name" yaml:"name,omitempty"`
	Type     PhaseType     `mapstructure:"type" yaml:"type"`
	FromRate int           `mapstructure:"from_rate" yaml:"from_rate,omitempty"`
	ToRate   int           `mapstructure:"to_rate" yaml:"to_rate,omitempty"`
	Duration time.Duration `mapstructure:"duration" yaml:"duration,omitempty"`
	Steps    []PhaseStep   `mapstructure:"steps" yaml:"steps,omitempty"`
	Rate     int           `mapstructure:"rate" yaml:"rate,omitempty"`
}

type PhaseStep struct {
	Rate     int           `mapstructure:"rate" yaml:"rate"`
	Duration time.Duration `mapstructure:"duration" yaml:"duration"`
}

// OpConfig describes one weighted workload operation.
type OpConfig struct {
	Name   string  `mapstructure:"name" yaml:"name"`
	Kind   OpKind  `mapstructure:"kind" yaml:"kind"`
	Weight int     `mapstructure:"weight" yaml:"weight"`
	Size   int     `mapstructure:"size" yaml:"size,omitempty"`   // bytes per allocation
	Count  int     `mapstructure:"count" yaml:"count,omitempty"` // allocations per operation
	Leak   float64 `mapstructure:"leak" yaml:"leak,omitempty"`   // fraction left live, [0,1]
}

// StreamConfig controls the live snapshot websocket endpoint.
type StreamConfig struct {
	Listen   string        `mapstructure:"listen" yaml:"listen,omitempty"` // host:port, empty disables
	Interval time.Duration `mapstructure:"interval" yaml:"interval,omitempty"`
}

// BaselineConfig controls recording runs and comparing against them.
type BaselineConfig struct {
	Path          string  `mapstructure:"path" yaml:"path,omitempty"`
	Save          bool    `mapstructure:"save" yaml:"save,omitempty"`
	MaxRegression float64 `mapstructure:"max_regression" yaml:"max_regression,omitempty"` // allowed fractional slowdown
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol,omitempty"` // grpc or http
	ServiceName string  `mapstructure:"service_name" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate,omitempty"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure,omitempty"`
}

// Enabled reports whether an exporter endpoint is configured, either in
// the config or through the standard OTLP environment variable.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Total < 0 {
		issues = append(issues, "total must be >= 0")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	if c.Arena.ChunkSize < 1024 {
		issues = append(issues, "arena chunk_size must be >= 1024 bytes")
	} else if c.Arena.ChunkSize < 64*1024 {
		warnings = append(warnings, fmt.Sprintf("WARNING: Small arena chunk size configured (%d bytes). Expect frequent chunk growth during the run.", c.Arena.ChunkSize))
	}

	issues = append(issues, validateTiming(c.Timing)...)
	issues = append(issues, validateArrivalConfig(c.Arrival)...)
	issues = append(issues, validatePhases(c.Phases)...)

	opIssues, opWarnings := validateOps(c.Ops)
	issues = append(issues, opIssues...)
	warnings = append(warnings, opWarnings...)

	issues = append(issues, validateStream(c.Stream)...)
	issues = append(issues, validateBaseline(c.Baseline)...)
	issues = append(issues, validateTracing(c.Tracing)...)

	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTiming(t TimingConfig) []string {
	var issues []string
	if t.SampleCap < 0 {
		issues = append(issues, "timing sample_cap must be >= 0")
	}
	if t.HistMin < 0 || t.HistMax < 0 {
		issues = append(issues, "timing histogram bounds must be >= 0")
	}
	if t.HistMin > 0 && t.HistMax > 0 && t.HistMax <= t.HistMin {
		issues = append(issues, "timing hist_max must be greater than hist_min")
	}
	if t.SigFigs < 1 || t.SigFigs > 5 {
		issues = append(issues, "timing sig_figs must be between 1 and 5")
	}
	return issues
}

func validateArrivalConfig(arr ArrivalConfig) []string {
	model := arr.Model
	if model == "" {
		model = ArrivalModelUniform
	}
	switch model {
	case ArrivalModelUniform, ArrivalModelPoisson:
		return nil
	default:
		return []string{fmt.Sprintf("arrival model %q is not supported", model)}
	}
}

func validatePhases(phases []Phase) []string {
	var issues []string
	for idx, phase := range phases {
		typeLabel := strings.TrimSpace(string(phase.Type))
		if typeLabel == "" {
			issues = append(issues, fmt.Sprintf("phases[%d]: type is required", idx))
			continue
		}
		switch PhaseType(strings.ToLower(typeLabel)) {
		case PhaseTypeRamp:
			if phase.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("phases[%d]: duration must be > 0 for ramp", idx))
			}
			if phase.FromRate < 0 || phase.ToRate < 0 {
				issues = append(issues, fmt.Sprintf("phases[%d]: from_rate and to_rate must be >= 0", idx))
			}
		case PhaseTypeStep:
			if len(phase.Steps) == 0 {
				issues = append(issues, fmt.Sprintf("phases[%d]: steps are required for step phase", idx))
			}
			for stepIdx, step := range phase.Steps {
				if step.Rate < 0 {
					issues = append(issues, fmt.Sprintf("phases[%d].steps[%d]: rate must be >= 0", idx, stepIdx))
				}
				if step.Duration <= 0 {
					issues = append(issues, fmt.Sprintf("phases[%d].steps[%d]: duration must be > 0", idx, stepIdx))
				}
			}
		case PhaseTypeSpike:
			if phase.Rate <= 0 {
				issues = append(issues, fmt.Sprintf("phases[%d]: rate must be > 0 for spike", idx))
			}
			if phase.Duration <= 0 {
				issues = append(issues, fmt.Sprintf("phases[%d]: duration must be > 0 for spike", idx))
			}
		default:
			issues = append(issues, fmt.Sprintf("phases[%d]: unsupported type %q", idx, phase.Type))
		}
	}
	return issues
}

func validateOps(ops []OpConfig) (issues, warnings []string) {
	seenNames := map[string]int{}
	for idx, op := range ops {
		kind := OpKind(strings.ToLower(strings.TrimSpace(string(op.Kind))))
		switch kind {
		case OpKindAlloc, OpKindChurn:
			if op.Size < 1 {
				issues = append(issues, fmt.Sprintf("ops[%d]: size must be >= 1", idx))
			}
			if op.Count < 1 {
				issues = append(issues, fmt.Sprintf("ops[%d]: count must be >= 1", idx))
			}
		case OpKindSnapshot:
			// No shape parameters.
		case "":
			issues = append(issues, fmt.Sprintf("ops[%d]: kind is required", idx))
			continue
		default:
			issues = append(issues, fmt.Sprintf("ops[%d]: unsupported kind %q", idx, op.Kind))
			continue
		}
		if op.Weight <= 0 {
			issues = append(issues, fmt.Sprintf("ops[%d]: weight must be >= 1", idx))
		}
		if op.Leak < 0 || op.Leak > 1 {
			issues = append(issues, fmt.Sprintf("ops[%d]: leak must be between 0 and 1", idx))
		} else if op.Leak > 0.5 {
			warnings = append(warnings, fmt.Sprintf("WARNING: ops[%d] leaks %.0f%% of its allocations. The leak report will be dominated by intentional leaks.", idx, op.Leak*100))
		}
		name := strings.TrimSpace(op.Name)
		if name != "" {
			key := strings.ToLower(name)
			if prev, ok := seenNames[key]; ok {
				issues = append(issues, fmt.Sprintf("ops[%d]: duplicate name also defined at index %d", idx, prev))
			} else {
				seenNames[key] = idx
			}
		}
	}
	return issues, warnings
}

func validateStream(s StreamConfig) []string {
	var issues []string
	if strings.TrimSpace(s.Listen) != "" && !strings.Contains(s.Listen, ":") {
		issues = append(issues, "stream listen address must be host:port")
	}
	if s.Interval < 0 {
		issues = append(issues, "stream interval must be >= 0")
	}
	return issues
}

func validateBaseline(b BaselineConfig) []string {
	var issues []string
	if b.MaxRegression < 0 {
		issues = append(issues, "baseline max_regression must be >= 0")
	}
	if b.Save && strings.TrimSpace(b.Path) == "" {
		issues = append(issues, "baseline path is required when save is enabled")
	}
	if b.MaxRegression > 0 && strings.TrimSpace(b.Path) == "" {
		issues = append(issues, "baseline path is required when max_regression is set")
	}
	return issues
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing sample_rate must be between 0.0 and 1.0")
	}
	return issues
}
