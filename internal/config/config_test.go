package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/torosent/perfsuite/internal/config"
)

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterGlobalFlags(fs)
	config.RegisterSummarizeFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load(flagSet(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.History.Backend != config.HistoryBackendFS || cfg.History.Depth != 5 {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Tracing.Enabled() {
		t.Error("Tracing.Enabled() = true, want false by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadNilFlagSet(t *testing.T) {
	cfg, err := config.NewLoader().Load(nil)
	if err != nil {
		t.Fatalf("Load(nil) error = %v", err)
	}
	if cfg.Run.Binary != "k6" {
		t.Errorf("Binary = %q, want k6", cfg.Run.Binary)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfsuite.yaml")
	content := `
client: web
test: checkout
thresholds:
  - "http_req_duration:p95 < 500"
run:
  concurrency: 4
  binary: /usr/local/bin/k6
  task_timeout: 10m
history:
  dir: ./history
  depth: 3
compare:
  critical: 30
influx:
  host: http://localhost:8181
  database: perf
tracing:
  endpoint: localhost:4317
  insecure: true
  service_version: 2.3.1
metrics:
  push_url: http://localhost:9091
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.NewLoader().Load(flagSet(t, "--config", path, "--client", "mobile", "--threshold", "checks:rate > 0.99"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Client != "mobile" {
		t.Errorf("Client = %q, want flag override mobile", cfg.Client)
	}
	if cfg.TestName != "checkout" {
		t.Errorf("TestName = %q, want checkout", cfg.TestName)
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v, want file and flag entries", cfg.Thresholds)
	}
	if cfg.Run.Concurrency != 4 || cfg.Run.TaskTimeout != 10*time.Minute {
		t.Errorf("Run = %+v", cfg.Run)
	}
	if cfg.History.Dir != "./history" || cfg.History.Depth != 3 {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Compare.Critical != 30 {
		t.Errorf("Compare.Critical = %v, want 30", cfg.Compare.Critical)
	}
	if !cfg.Influx.Enabled() || cfg.Influx.Database != "perf" || cfg.Influx.Measurement != "perf_metric" {
		t.Errorf("Influx = %+v", cfg.Influx)
	}
	if !cfg.Tracing.Enabled() || !cfg.Tracing.ShouldPropagate() || cfg.Tracing.ServiceVersion != "2.3.1" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Metrics.PushURL != "http://localhost:9091" {
		t.Errorf("Metrics.PushURL = %q", cfg.Metrics.PushURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfsuite.json")
	if err := os.WriteFile(path, []byte(`{"client": "api", "history": {"backend": "S3", "s3": {"bucket": "b"}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.NewLoader().Load(flagSet(t, "--config", path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Client != "api" || cfg.History.Backend != config.HistoryBackendS3 || cfg.History.S3.Bucket != "b" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load(flagSet(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults are valid", func(*config.Config) {}, ""},
		{"bad log level", func(c *config.Config) { c.Log.Level = "loud" }, "log level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log format"},
		{"negative concurrency", func(c *config.Config) { c.Run.Concurrency = -1 }, "concurrency"},
		{"negative timeout", func(c *config.Config) { c.Run.TaskTimeout = -time.Second }, "task_timeout"},
		{"empty binary", func(c *config.Config) { c.Run.Binary = " " }, "binary"},
		{"bad env key", func(c *config.Config) { c.Run.Env = map[string]string{"A B": "1"} }, "env key"},
		{"unknown backend", func(c *config.Config) { c.History.Backend = "ftp" }, "backend"},
		{"s3 without bucket", func(c *config.Config) { c.History.Backend = config.HistoryBackendS3 }, "s3.bucket"},
		{"zero depth", func(c *config.Config) { c.History.Depth = 0 }, "depth"},
		{"critical below significant", func(c *config.Config) {
			c.Compare.Significant = 10
			c.Compare.Critical = 5
		}, "critical must be"},
		{"bad format", func(c *config.Config) { c.Compare.Format = "html" }, "format"},
		{"sample rate", func(c *config.Config) { c.Tracing.SampleRate = 2 }, "sample_rate"},
		{"tracing protocol", func(c *config.Config) { c.Tracing.Protocol = "thrift" }, "protocol"},
		{"influx without database", func(c *config.Config) { c.Influx.Host = "http://x" }, "database"},
		{"relative push url", func(c *config.Config) { c.Metrics.PushURL = "localhost" }, "push_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var vErr config.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
			if len(vErr.Issues()) == 0 {
				t.Error("Issues() is empty")
			}
		})
	}
}

func TestTracingConfig(t *testing.T) {
	off := false
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		wantEnabled   bool
		wantPropagate bool
	}{
		{"empty", config.TracingConfig{}, false, false},
		{"sample rate alone", config.TracingConfig{SampleRate: 1}, false, false},
		{"endpoint", config.TracingConfig{Endpoint: "x:4317"}, true, true},
		{"propagation disabled", config.TracingConfig{Endpoint: "x:4317", Propagate: &off}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", got, tt.wantEnabled)
			}
			if got := tt.cfg.ShouldPropagate(); got != tt.wantPropagate {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.wantPropagate)
			}
		})
	}
}
