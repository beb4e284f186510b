package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/probelab/vigil/arena"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Workers:    1,
		ConfigFile: configPath,
		Arrival:    ArrivalConfig{Model: ArrivalModelUniform},
		Arena: ArenaConfig{
			ChunkSize: arena.DefaultChunkSize,
			Pooling:   true,
		},
		Timing: TimingConfig{
			HistMin: 10 * time.Microsecond,
			HistMax: 10 * time.Second,
			SigFigs: 3,
		},
		Stream: StreamConfig{Interval: time.Second},
		Tracing: TracingConfig{
			Protocol:    "grpc",
			ServiceName: "vigil",
			SampleRate:  1.0,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))
	cfg.HTMLOutput = strings.TrimSpace(cfg.HTMLOutput)

	if len(cfg.Ops) == 0 {
		cfg.Ops = []OpConfig{defaultOp()}
	}

	return cfg, nil
}

// defaultOp is the workload used when neither the config file nor the flags
// define any ops: a plain allocator touching 16 blocks of 64 bytes per call.
func defaultOp() OpConfig {
	return OpConfig{
		Name:   "alloc",
		Kind:   OpKindAlloc,
		Weight: 1,
		Size:   64,
		Count:  16,
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "total"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		cfg.Total = val
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = int64(val)
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	} else if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		arrival, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrivalModel: %w", err)
		}
		if arrival.Model != "" {
			cfg.Arrival = arrival
		}
	}

	if raw, ok := lookupSetting(settings, "phases"); ok {
		phases, err := parsePhases(raw)
		if err != nil {
			return fmt.Errorf("phases: %w", err)
		}
		cfg.Phases = phases
	}

	if raw, ok := lookupSetting(settings, "arena"); ok {
		arenaCfg, err := parseArenaConfig(raw, cfg.Arena)
		if err != nil {
			return fmt.Errorf("arena: %w", err)
		}
		cfg.Arena = arenaCfg
	}

	if raw, ok := lookupSetting(settings, "timing"); ok {
		timing, err := parseTimingConfig(raw, cfg.Timing)
		if err != nil {
			return fmt.Errorf("timing: %w", err)
		}
		cfg.Timing = timing
	}

	if raw, ok := lookupSetting(settings, "ops", "operations"); ok {
		ops, err := parseOps(raw)
		if err != nil {
			return fmt.Errorf("ops: %w", err)
		}
		cfg.Ops = ops
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "stream"); ok {
		stream, err := parseStreamConfig(raw, cfg.Stream)
		if err != nil {
			return fmt.Errorf("stream: %w", err)
		}
		cfg.Stream = stream
	}

	if raw, ok := lookupSetting(settings, "baseline"); ok {
		baseline, err := parseBaselineConfig(raw)
		if err != nil {
			return fmt.Errorf("baseline: %w", err)
		}
		cfg.Baseline = baseline
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func parsePhases(value interface{}) ([]Phase, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	phases := make([]Phase, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		phase, err := buildPhase(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		phases = append(phases, phase)
	}
	return phases, nil
}

func buildPhase(settings map[string]interface{}) (Phase, error) {
	var phase Phase
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return Phase{}, fmt.Errorf("name: %w", err)
		}
		phase.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return Phase{}, fmt.Errorf("type: %w", err)
		}
		phase.Type = PhaseType(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "fromrate", "from_rate", "from-rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return Phase{}, fmt.Errorf("from_rate: %w", err)
		}
		phase.FromRate = val
	}
	if raw, ok := lookupSetting(settings, "torate", "to_rate", "to-rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return Phase{}, fmt.Errorf("to_rate: %w", err)
		}
		phase.ToRate = val
	}
	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return Phase{}, fmt.Errorf("duration: %w", err)
		}
		phase.Duration = dur
	}
	if raw, ok := lookupSetting(settings, "steps"); ok {
		steps, err := parsePhaseSteps(raw)
		if err != nil {
			return Phase{}, fmt.Errorf("steps: %w", err)
		}
		phase.Steps = steps
	}
	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return Phase{}, fmt.Errorf("rate: %w", err)
		}
		phase.Rate = val
	}
	return phase, nil
}

func parsePhaseSteps(value interface{}) ([]PhaseStep, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	steps := make([]PhaseStep, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		var step PhaseStep
		if raw, ok := lookupSetting(entry, "rate"); ok {
			val, err := asInt(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d rate: %w", idx, err)
			}
			step.Rate = val
		}
		if raw, ok := lookupSetting(entry, "duration"); ok {
			dur, err := asDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("index %d duration: %w", idx, err)
			}
			step.Duration = dur
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	if value == nil {
		return ArrivalConfig{}, nil
	}
	switch v := value.(type) {
	case string:
		model := strings.ToLower(strings.TrimSpace(v))
		if model == "" {
			return ArrivalConfig{}, nil
		}
		return ArrivalConfig{Model: ArrivalModel(model)}, nil
	default:
		entry, err := toStringKeyMap(value)
		if err != nil {
			return ArrivalConfig{}, err
		}
		if raw, ok := lookupSetting(entry, "model"); ok {
			val, err := asString(raw)
			if err != nil {
				return ArrivalConfig{}, fmt.Errorf("model: %w", err)
			}
			return ArrivalConfig{Model: ArrivalModel(strings.ToLower(strings.TrimSpace(val)))}, nil
		}
		return ArrivalConfig{}, fmt.Errorf("model field is required")
	}
}

func parseArenaConfig(value interface{}, defaults ArenaConfig) (ArenaConfig, error) {
	if value == nil {
		return defaults, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return ArenaConfig{}, err
	}
	cfg := defaults
	if raw, ok := lookupSetting(entry, "chunksize", "chunk_size", "chunk-size"); ok {
		size, err := asByteSize(raw)
		if err != nil {
			return ArenaConfig{}, fmt.Errorf("chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	if raw, ok := lookupSetting(entry, "pooling", "pool_chunks", "pool-chunks"); ok {
		val, err := asBool(raw)
		if err != nil {
			return ArenaConfig{}, fmt.Errorf("pooling: %w", err)
		}
		cfg.Pooling = val
	}
	if raw, ok := lookupSetting(entry, "counters"); ok {
		val, err := asBool(raw)
		if err != nil {
			return ArenaConfig{}, fmt.Errorf("counters: %w", err)
		}
		cfg.Counters = val
	}
	return cfg, nil
}

func parseTimingConfig(value interface{}, defaults TimingConfig) (TimingConfig, error) {
	if value == nil {
		return defaults, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TimingConfig{}, err
	}
	cfg := defaults
	if raw, ok := lookupSetting(entry, "samplecap", "sample_cap", "sample-cap"); ok {
		val, err := asInt(raw)
		if err != nil {
			return TimingConfig{}, fmt.Errorf("sample_cap: %w", err)
		}
		cfg.SampleCap = val
	}
	if raw, ok := lookupSetting(entry, "histmin", "hist_min", "hist-min"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return TimingConfig{}, fmt.Errorf("hist_min: %w", err)
		}
		cfg.HistMin = dur
	}
	if raw, ok := lookupSetting(entry, "histmax", "hist_max", "hist-max"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return TimingConfig{}, fmt.Errorf("hist_max: %w", err)
		}
		cfg.HistMax = dur
	}
	if raw, ok := lookupSetting(entry, "sigfigs", "sig_figs", "sig-figs"); ok {
		val, err := asInt(raw)
		if err != nil {
			return TimingConfig{}, fmt.Errorf("sig_figs: %w", err)
		}
		cfg.SigFigs = val
	}
	return cfg, nil
}

func parseOps(value interface{}) ([]OpConfig, error) {
	if value == nil {
		return nil, nil
	}
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	ops := make([]OpConfig, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		op, err := buildOp(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func buildOp(settings map[string]interface{}) (OpConfig, error) {
	op := OpConfig{Kind: OpKindAlloc, Weight: 1, Count: 1}
	if raw, ok := lookupSetting(settings, "name"); ok {
		val, err := asString(raw)
		if err != nil {
			return OpConfig{}, fmt.Errorf("name: %w", err)
		}
		op.Name = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "kind", "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return OpConfig{}, fmt.Errorf("kind: %w", err)
		}
		op.Kind = OpKind(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "weight"); ok {
		val, err := asInt(raw)
		if err != nil {
			return OpConfig{}, fmt.Errorf("weight: %w", err)
		}
		op.Weight = val
	}
	if raw, ok := lookupSetting(settings, "size"); ok {
		size, err := asByteSize(raw)
		if err != nil {
			return OpConfig{}, fmt.Errorf("size: %w", err)
		}
		op.Size = size
	}
	if raw, ok := lookupSetting(settings, "count"); ok {
		val, err := asInt(raw)
		if err != nil {
			return OpConfig{}, fmt.Errorf("count: %w", err)
		}
		op.Count = val
	}
	if raw, ok := lookupSetting(settings, "leak"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return OpConfig{}, fmt.Errorf("leak: %w", err)
		}
		op.Leak = val
	}
	return op, nil
}

func parseStreamConfig(value interface{}, defaults StreamConfig) (StreamConfig, error) {
	if value == nil {
		return defaults, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return StreamConfig{}, err
	}
	cfg := defaults
	if raw, ok := lookupSetting(entry, "listen"); ok {
		val, err := asString(raw)
		if err != nil {
			return StreamConfig{}, fmt.Errorf("listen: %w", err)
		}
		cfg.Listen = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return StreamConfig{}, fmt.Errorf("interval: %w", err)
		}
		cfg.Interval = dur
	}
	return cfg, nil
}

func parseBaselineConfig(value interface{}) (BaselineConfig, error) {
	if value == nil {
		return BaselineConfig{}, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return BaselineConfig{}, err
	}
	var cfg BaselineConfig
	if raw, ok := lookupSetting(entry, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return BaselineConfig{}, fmt.Errorf("path: %w", err)
		}
		cfg.Path = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "save"); ok {
		val, err := asBool(raw)
		if err != nil {
			return BaselineConfig{}, fmt.Errorf("save: %w", err)
		}
		cfg.Save = val
	}
	if raw, ok := lookupSetting(entry, "maxregression", "max_regression", "max-regression"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return BaselineConfig{}, fmt.Errorf("max_regression: %w", err)
		}
		cfg.MaxRegression = val
	}
	return cfg, nil
}

func parseTracingConfig(value interface{}, defaults TracingConfig) (TracingConfig, error) {
	if value == nil {
		return defaults, nil
	}
	entry, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	cfg := defaults
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		cfg.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		cfg.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		cfg.SampleRate = val
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		cfg.Insecure = val
	}
	return cfg, nil
}
