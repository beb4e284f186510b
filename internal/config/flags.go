package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vigil",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Workload shape
	flags.IntP("workers", "w", 1, "Number of worker goroutines, each with its own arena")
	flags.IntP("rate", "r", 0, "Operations per second across all workers (0 means unpaced)")
	flags.DurationP("duration", "d", 0, "How long to run the probe (e.g. 30s, 1m)")
	flags.IntP("total", "t", 0, "Total number of operations to execute (0 means unlimited)")
	flags.Int64("seed", 0, "Random seed for op selection and Poisson arrivals (0 means time-based)")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model for pacing operations (uniform or poisson)")
	flags.Int("retries", 0, "Number of retries per failed operation")

	// Arena shape
	flags.String("chunk-size", "1MiB", "Arena chunk size (e.g. 65536, 256KiB, 1MiB)")
	flags.Bool("pool-chunks", true, "Recycle chunk buffers through a byte pool between resets")
	flags.Bool("arena-counters", false, "Publish arena counters to the process counter registry")

	// Timing shape
	flags.Int("sample-cap", 0, "Retained duration samples per op counter (0 keeps everything)")
	flags.Duration("hist-min", 10*time.Microsecond, "Latency histogram lower bound")
	flags.Duration("hist-max", 10*time.Second, "Latency histogram upper bound")
	flags.Int("sig-figs", 3, "Latency histogram significant figures (1-5)")

	// Output
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log each failed operation to stderr")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.Bool("dump-config", false, "Print the effective configuration as YAML and exit")

	// Thresholds
	flags.StringSlice("threshold", nil, "Pass/fail thresholds (repeatable, e.g. 'op_duration:p99 < 5')")

	// Live stream
	flags.String("stream-listen", "", "Serve live snapshots over websocket at host:port")
	flags.Duration("stream-interval", time.Second, "Broadcast period for live snapshots")

	// Baseline
	flags.String("baseline", "", "Path to the baseline store file")
	flags.Bool("baseline-save", false, "Record this run into the baseline store")
	flags.Float64("baseline-max-regression", 0, "Fail if p99 regresses more than this fraction vs baseline (0 disables)")

	// Tracing
	flags.String("trace-endpoint", "", "OTLP endpoint for span export")
	flags.String("trace-protocol", "", "OTLP transport: 'grpc' or 'http'")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("trace-insecure", false, "Disable TLS for OTLP export")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config,
// overriding values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("total") {
		val, err := fs.GetInt("total")
		if err != nil {
			return err
		}
		cfg.Total = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("arrival-model") {
		val, err := fs.GetString("arrival-model")
		if err != nil {
			return err
		}
		cfg.Arrival.Model = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}

	if fs.Changed("chunk-size") {
		val, err := fs.GetString("chunk-size")
		if err != nil {
			return err
		}
		size, err := parseByteSize(val)
		if err != nil {
			return fmt.Errorf("chunk-size: %w", err)
		}
		cfg.Arena.ChunkSize = size
	}
	if fs.Changed("pool-chunks") {
		val, err := fs.GetBool("pool-chunks")
		if err != nil {
			return err
		}
		cfg.Arena.Pooling = val
	}
	if fs.Changed("arena-counters") {
		val, err := fs.GetBool("arena-counters")
		if err != nil {
			return err
		}
		cfg.Arena.Counters = val
	}

	if fs.Changed("sample-cap") {
		val, err := fs.GetInt("sample-cap")
		if err != nil {
			return err
		}
		cfg.Timing.SampleCap = val
	}
	if fs.Changed("hist-min") {
		val, err := fs.GetDuration("hist-min")
		if err != nil {
			return err
		}
		cfg.Timing.HistMin = val
	}
	if fs.Changed("hist-max") {
		val, err := fs.GetDuration("hist-max")
		if err != nil {
			return err
		}
		cfg.Timing.HistMax = val
	}
	if fs.Changed("sig-figs") {
		val, err := fs.GetInt("sig-figs")
		if err != nil {
			return err
		}
		cfg.Timing.SigFigs = val
	}

	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("dump-config") {
		val, err := fs.GetBool("dump-config")
		if err != nil {
			return err
		}
		cfg.DumpConfig = val
	}

	if fs.Changed("stream-listen") {
		val, err := fs.GetString("stream-listen")
		if err != nil {
			return err
		}
		cfg.Stream.Listen = strings.TrimSpace(val)
	}
	if fs.Changed("stream-interval") {
		val, err := fs.GetDuration("stream-interval")
		if err != nil {
			return err
		}
		cfg.Stream.Interval = val
	}

	if fs.Changed("baseline") {
		val, err := fs.GetString("baseline")
		if err != nil {
			return err
		}
		cfg.Baseline.Path = strings.TrimSpace(val)
	}
	if fs.Changed("baseline-save") {
		val, err := fs.GetBool("baseline-save")
		if err != nil {
			return err
		}
		cfg.Baseline.Save = val
	}
	if fs.Changed("baseline-max-regression") {
		val, err := fs.GetFloat64("baseline-max-regression")
		if err != nil {
			return err
		}
		cfg.Baseline.MaxRegression = val
	}

	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}

	return nil
}
