package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line flags.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the config file named by the --config flag (if any), then
// applies every flag in fs that was explicitly set. fs may be nil.
func (Loader) Load(fs *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configPath = strings.TrimSpace(f.Value.String())
		}
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	settings := cfgViper.AllSettings()

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, settings); err != nil {
		return nil, err
	}

	if fs != nil {
		if err := applyFlagOverrides(&cfg, fs); err != nil {
			return nil, err
		}
	}

	cfg.Client = strings.TrimSpace(cfg.Client)
	cfg.TestName = strings.TrimSpace(cfg.TestName)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Compare.Format = strings.ToLower(cfg.Compare.Format)
	cfg.History.Backend = HistoryBackend(strings.ToLower(string(cfg.History.Backend)))

	return &cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if err := setString(settings, &cfg.Client, "client"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.TestName, "test", "test_name", "testname"); err != nil {
		return err
	}
	if err := setString(settings, &cfg.Environment, "environment", "env"); err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		list, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = list
	}

	sections := []struct {
		name  string
		apply func(map[string]interface{}) error
	}{
		{"log", func(s map[string]interface{}) error { return applyLogSettings(&cfg.Log, s) }},
		{"run", func(s map[string]interface{}) error { return applyRunSettings(&cfg.Run, s) }},
		{"history", func(s map[string]interface{}) error { return applyHistorySettings(&cfg.History, s) }},
		{"compare", func(s map[string]interface{}) error { return applyCompareSettings(&cfg.Compare, s) }},
		{"influx", func(s map[string]interface{}) error { return applyInfluxSettings(&cfg.Influx, s) }},
		{"tracing", func(s map[string]interface{}) error { return applyTracingSettings(&cfg.Tracing, s) }},
		{"metrics", func(s map[string]interface{}) error { return applyMetricsSettings(&cfg.Metrics, s) }},
	}
	for _, sec := range sections {
		raw, ok := lookupSetting(settings, sec.name)
		if !ok || raw == nil {
			continue
		}
		sub, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
		if err := sec.apply(sub); err != nil {
			return fmt.Errorf("%s.%w", sec.name, err)
		}
	}
	return nil
}

func applyLogSettings(log *LogConfig, s map[string]interface{}) error {
	if err := setString(s, &log.Level, "level"); err != nil {
		return err
	}
	return setString(s, &log.Format, "format")
}

func applyRunSettings(run *RunConfig, s map[string]interface{}) error {
	if raw, ok := lookupSetting(s, "patterns", "pattern"); ok {
		list, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("patterns: %w", err)
		}
		run.Patterns = list
	}
	if raw, ok := lookupSetting(s, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		run.Concurrency = val
	}
	if err := setString(s, &run.Binary, "binary"); err != nil {
		return err
	}
	if raw, ok := lookupSetting(s, "args"); ok {
		list, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("args: %w", err)
		}
		run.Args = list
	}
	if raw, ok := lookupSetting(s, "env"); ok {
		env, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("env: %w", err)
		}
		// viper lowercases keys; environment names are conventionally upper case.
		run.Env = make(map[string]string, len(env))
		for k, v := range env {
			run.Env[strings.ToUpper(k)] = v
		}
	}
	if err := setString(s, &run.ResultsDir, "results_dir", "resultsdir"); err != nil {
		return err
	}
	if raw, ok := lookupSetting(s, "task_timeout", "tasktimeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("task_timeout: %w", err)
		}
		run.TaskTimeout = dur
	}
	if raw, ok := lookupSetting(s, "start_rate", "startrate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("start_rate: %w", err)
		}
		run.StartRate = val
	}
	if raw, ok := lookupSetting(s, "output_tail", "outputtail"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("output_tail: %w", err)
		}
		run.OutputTail = val
	}
	if raw, ok := lookupSetting(s, "spawn_retries", "spawnretries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("spawn_retries: %w", err)
		}
		run.SpawnRetries = val
	}
	if raw, ok := lookupSetting(s, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		run.Dashboard = val
	}
	return nil
}

func applyHistorySettings(h *HistoryConfig, s map[string]interface{}) error {
	var backend string
	if err := setString(s, &backend, "backend"); err != nil {
		return err
	}
	if backend != "" {
		h.Backend = HistoryBackend(backend)
	}
	if err := setString(s, &h.Dir, "dir"); err != nil {
		return err
	}
	if raw, ok := lookupSetting(s, "depth"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("depth: %w", err)
		}
		h.Depth = val
	}
	if raw, ok := lookupSetting(s, "s3"); ok && raw != nil {
		sub, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("s3: %w", err)
		}
		for _, f := range []struct {
			dst  *string
			keys []string
		}{
			{&h.S3.Bucket, []string{"bucket"}},
			{&h.S3.Prefix, []string{"prefix"}},
			{&h.S3.Region, []string{"region"}},
			{&h.S3.Endpoint, []string{"endpoint"}},
		} {
			if err := setString(sub, f.dst, f.keys...); err != nil {
				return fmt.Errorf("s3.%w", err)
			}
		}
	}
	return nil
}

func applyCompareSettings(c *CompareConfig, s map[string]interface{}) error {
	for _, f := range []struct {
		dst  *float64
		keys []string
	}{
		{&c.MinChange, []string{"min_change", "minchange"}},
		{&c.Significant, []string{"significant"}},
		{&c.Critical, []string{"critical"}},
		{&c.TrendBand, []string{"trend_band", "trendband"}},
	} {
		if raw, ok := lookupSetting(s, f.keys...); ok {
			val, err := asFloat64(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}
	return setString(s, &c.Format, "format")
}

func applyInfluxSettings(in *InfluxConfig, s map[string]interface{}) error {
	if err := setString(s, &in.Host, "host"); err != nil {
		return err
	}
	if err := setString(s, &in.Token, "token"); err != nil {
		return err
	}
	if err := setString(s, &in.Database, "database", "bucket"); err != nil {
		return err
	}
	return setString(s, &in.Measurement, "measurement")
}

func applyTracingSettings(tr *TracingConfig, s map[string]interface{}) error {
	if err := setString(s, &tr.Endpoint, "endpoint"); err != nil {
		return err
	}
	if err := setString(s, &tr.Protocol, "protocol"); err != nil {
		return err
	}
	if err := setString(s, &tr.ServiceName, "service_name", "servicename"); err != nil {
		return err
	}
	if err := setString(s, &tr.ServiceVersion, "service_version", "serviceversion"); err != nil {
		return err
	}
	if raw, ok := lookupSetting(s, "sample_rate", "samplerate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tr.SampleRate = val
	}
	if raw, ok := lookupSetting(s, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tr.Insecure = val
	}
	if raw, ok := lookupSetting(s, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tr.Propagate = &val
	}
	return nil
}

func applyMetricsSettings(m *MetricsConfig, s map[string]interface{}) error {
	if err := setString(s, &m.PushURL, "push_url", "pushurl"); err != nil {
		return err
	}
	return setString(s, &m.Job, "job")
}

// setString assigns the first matching key to dst when the value is non-empty.
func setString(settings map[string]interface{}, dst *string, keys ...string) error {
	raw, ok := lookupSetting(settings, keys...)
	if !ok {
		return nil
	}
	val, err := asString(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	if val = strings.TrimSpace(val); val != "" {
		*dst = val
	}
	return nil
}
