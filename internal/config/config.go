package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the resolved configuration for every perfsuite command.
type Config struct {
	ConfigFile  string
	Client      string
	TestName    string
	Environment string
	Log         LogConfig
	Run         RunConfig
	History     HistoryConfig
	Compare     CompareConfig
	Thresholds  []string
	Influx      InfluxConfig
	Tracing     TracingConfig
	Metrics     MetricsConfig
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

// RunConfig configures the process orchestrator.
type RunConfig struct {
	Patterns     []string
	Concurrency  int // 0 means runtime.NumCPU()
	Binary       string
	Args         []string
	Env          map[string]string
	ResultsDir   string
	TaskTimeout  time.Duration
	StartRate    float64
	OutputTail   int
	SpawnRetries int
	Dashboard    bool
}

type HistoryBackend string

const (
	HistoryBackendFS HistoryBackend = "fs"
	HistoryBackendS3 HistoryBackend = "s3"
)

type HistoryConfig struct {
	Backend HistoryBackend
	Dir     string
	Depth   int
	S3      S3Config
}

type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// CompareConfig holds percent thresholds. Zero values fall back to the
// comparator defaults.
type CompareConfig struct {
	MinChange   float64
	Significant float64
	Critical    float64
	TrendBand   float64
	Format      string // text, json or yaml
}

// InfluxConfig enables snapshot export when Host is set.
type InfluxConfig struct {
	Host        string
	Token       string
	Database    string
	Measurement string
}

func (c InfluxConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint       string
	Protocol       string // grpc or http
	ServiceName    string
	ServiceVersion string
	SampleRate     float64
	Insecure       bool
	Propagate      *bool // nil means propagate whenever tracing is enabled
}

// Enabled reports whether any tracing setting was provided.
func (c TracingConfig) Enabled() bool {
	return c.Endpoint != "" || c.Protocol != "" || c.ServiceName != "" || c.Propagate != nil
}

// ShouldPropagate reports whether child processes receive trace context.
func (c TracingConfig) ShouldPropagate() bool {
	if c.Propagate != nil {
		return *c.Propagate
	}
	return c.Enabled()
}

// MetricsConfig configures orchestrator metrics push.
type MetricsConfig struct {
	PushURL string
	Job     string
}

// Defaults returns the configuration used before any file or flag is applied.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Run: RunConfig{
			Patterns:   []string{"tests/*.js"},
			Binary:     "k6",
			ResultsDir: "results",
			OutputTail: 500,
		},
		History: HistoryConfig{
			Backend: HistoryBackendFS,
			Dir:     ".perfsuite/history",
			Depth:   5,
		},
		Compare: CompareConfig{Format: "text"},
		Influx:  InfluxConfig{Measurement: "perf_metric"},
		Tracing: TracingConfig{SampleRate: 1.0},
		Metrics: MetricsConfig{Job: "perfsuite"},
	}
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

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log level %q is not supported", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log format must be 'console' or 'json', got %q", c.Log.Format))
	}

	issues = append(issues, validateRunConfig(c.Run)...)
	issues = append(issues, validateHistoryConfig(c.History)...)
	issues = append(issues, validateCompareConfig(c.Compare)...)

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
	}

	if c.Influx.Enabled() && strings.TrimSpace(c.Influx.Database) == "" {
		issues = append(issues, "influx: database is required when host is set")
	}
	if c.Metrics.PushURL != "" {
		if u, err := url.Parse(c.Metrics.PushURL); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, fmt.Sprintf("metrics: push_url %q is not an absolute URL", c.Metrics.PushURL))
		}
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateRunConfig(run RunConfig) []string {
	var issues []string
	if run.Concurrency < 0 {
		issues = append(issues, "run: concurrency must be >= 0")
	}
	if run.TaskTimeout < 0 {
		issues = append(issues, "run: task_timeout must be >= 0")
	}
	if run.StartRate < 0 {
		issues = append(issues, "run: start_rate must be >= 0")
	}
	if run.OutputTail < 0 {
		issues = append(issues, "run: output_tail must be >= 0")
	}
	if run.SpawnRetries < 0 {
		issues = append(issues, "run: spawn_retries must be >= 0")
	}
	if strings.TrimSpace(run.Binary) == "" {
		issues = append(issues, "run: binary is required")
	}
	for key := range run.Env {
		if key == "" || strings.ContainsAny(key, "= ") {
			issues = append(issues, fmt.Sprintf("run: env key %q is invalid", key))
		}
	}
	return issues
}

func validateHistoryConfig(h HistoryConfig) []string {
	var issues []string
	switch h.Backend {
	case HistoryBackendFS:
		if strings.TrimSpace(h.Dir) == "" {
			issues = append(issues, "history: dir is required for the fs backend")
		}
	case HistoryBackendS3:
		if strings.TrimSpace(h.S3.Bucket) == "" {
			issues = append(issues, "history: s3.bucket is required for the s3 backend")
		}
	default:
		issues = append(issues, fmt.Sprintf("history: backend must be 'fs' or 's3', got %q", h.Backend))
	}
	if h.Depth < 1 {
		issues = append(issues, "history: depth must be >= 1")
	}
	return issues
}

func validateCompareConfig(c CompareConfig) []string {
	var issues []string
	fields := []struct {
		name  string
		value float64
	}{
		{"min_change", c.MinChange},
		{"significant", c.Significant},
		{"critical", c.Critical},
		{"trend_band", c.TrendBand},
	}
	for _, f := range fields {
		if f.value < 0 {
			issues = append(issues, fmt.Sprintf("compare: %s must be >= 0", f.name))
		}
	}
	if c.Significant > 0 && c.Critical > 0 && c.Critical < c.Significant {
		issues = append(issues, "compare: critical must be >= significant")
	}
	switch c.Format {
	case "text", "json", "yaml":
	default:
		issues = append(issues, fmt.Sprintf("compare: format must be text, json or yaml, got %q", c.Format))
	}
	return issues
}
