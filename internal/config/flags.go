package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// RegisterGlobalFlags adds the flags every command accepts.
func RegisterGlobalFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")
	flags.String("history-dir", "", "Directory holding run history (fs backend)")
}

func registerIdentityFlags(flags *pflag.FlagSet) {
	flags.String("client", "", "Client under test (history namespace)")
	flags.String("env", "", "Environment label, e.g. staging")
}

// RegisterRunFlags adds the orchestrator flags.
func RegisterRunFlags(flags *pflag.FlagSet) {
	registerIdentityFlags(flags)
	flags.StringSlice("pattern", nil, "Glob pattern for test files (repeatable)")
	flags.IntP("concurrency", "c", 0, "Maximum engine processes at once (0 means NumCPU)")
	flags.String("binary", "", "Load engine executable (default k6)")
	flags.StringArray("arg", nil, "Engine argument template, replaces the defaults (repeatable; supports {{file}}, {{name}}, {{client}}, {{env}}, {{results_dir}})")
	flags.String("results-dir", "", "Directory the engine writes NDJSON results to")
	flags.Duration("task-timeout", 0, "Kill an engine process after this long (0 means no limit)")
	flags.Float64("start-rate", 0, "Maximum task starts per second (0 means unlimited)")
	flags.Int("spawn-retries", 0, "Extra attempts when an engine process fails to start")
	flags.StringToString("engine-env", nil, "Extra KEY=VALUE environment for engine processes")
	flags.Bool("dashboard", false, "Show live terminal dashboard of running tasks")
	flags.String("push-url", "", "Prometheus Pushgateway URL for task metrics")
}

// RegisterSummarizeFlags adds the flags for summarizing one results file.
func RegisterSummarizeFlags(flags *pflag.FlagSet) {
	registerIdentityFlags(flags)
	flags.String("test", "", "Test name (defaults to the results file name)")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'http_req_duration:p95 < 500')")
	flags.Bool("no-save", false, "Do not persist the run record to history")
	flags.Bool("progress", false, "Show ingestion progress on stderr")
	flags.Bool("json", false, "Print the run record as JSON")
	flags.String("influx-host", "", "InfluxDB 3 host to export snapshots to")
	flags.String("influx-database", "", "InfluxDB 3 database for exported snapshots")
}

// RegisterCompareFlags adds the flags for comparing against history.
func RegisterCompareFlags(flags *pflag.FlagSet) {
	flags.String("client", "", "Client under test")
	flags.String("test", "", "Test name")
	flags.Int("depth", 0, "Number of most recent baselines to consider (default 5)")
	flags.StringSlice("baselines", nil, "Explicit baseline record names, oldest first")
	flags.String("format", "", "Output format: text, json or yaml")
	flags.Float64("critical", 0, "Critical degradation percent that fails the comparison")
}

// RegisterHistoryFlags adds the flags for browsing history.
func RegisterHistoryFlags(flags *pflag.FlagSet) {
	flags.String("client", "", "Client under test")
	flags.String("test", "", "Test name")
}

func changed(fs *pflag.FlagSet, name string) bool {
	return fs.Lookup(name) != nil && fs.Changed(name)
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file. Flags a command does not define are skipped.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	strFlags := []struct {
		name string
		dst  *string
	}{
		{"log-level", &cfg.Log.Level},
		{"log-format", &cfg.Log.Format},
		{"history-dir", &cfg.History.Dir},
		{"client", &cfg.Client},
		{"test", &cfg.TestName},
		{"env", &cfg.Environment},
		{"binary", &cfg.Run.Binary},
		{"results-dir", &cfg.Run.ResultsDir},
		{"format", &cfg.Compare.Format},
		{"influx-host", &cfg.Influx.Host},
		{"influx-database", &cfg.Influx.Database},
		{"push-url", &cfg.Metrics.PushURL},
	}
	for _, f := range strFlags {
		if !changed(fs, f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	if changed(fs, "history-dir") {
		cfg.History.Backend = HistoryBackendFS
	}
	if changed(fs, "pattern") {
		val, err := fs.GetStringSlice("pattern")
		if err != nil {
			return err
		}
		cfg.Run.Patterns = val
	}
	if changed(fs, "concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Run.Concurrency = val
	}
	if changed(fs, "arg") {
		val, err := fs.GetStringArray("arg")
		if err != nil {
			return err
		}
		cfg.Run.Args = val
	}
	if changed(fs, "task-timeout") {
		val, err := fs.GetDuration("task-timeout")
		if err != nil {
			return err
		}
		cfg.Run.TaskTimeout = val
	}
	if changed(fs, "start-rate") {
		val, err := fs.GetFloat64("start-rate")
		if err != nil {
			return err
		}
		cfg.Run.StartRate = val
	}
	if changed(fs, "spawn-retries") {
		val, err := fs.GetInt("spawn-retries")
		if err != nil {
			return err
		}
		cfg.Run.SpawnRetries = val
	}
	if changed(fs, "engine-env") {
		val, err := fs.GetStringToString("engine-env")
		if err != nil {
			return err
		}
		if cfg.Run.Env == nil {
			cfg.Run.Env = map[string]string{}
		}
		for k, v := range val {
			cfg.Run.Env[k] = v
		}
	}
	if changed(fs, "dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Run.Dashboard = val
	}
	if changed(fs, "threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, val...)
	}
	if changed(fs, "depth") {
		val, err := fs.GetInt("depth")
		if err != nil {
			return err
		}
		cfg.History.Depth = val
	}
	if changed(fs, "critical") {
		val, err := fs.GetFloat64("critical")
		if err != nil {
			return err
		}
		cfg.Compare.Critical = val
	}
	return nil
}

// EnvList renders an env map as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}
