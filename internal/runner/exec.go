package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/torosent/perfsuite/internal/tracing"
)

// DefaultArgs invoke a k6-compatible engine that streams NDJSON results.
var DefaultArgs = []string{
	"run",
	"--out", "json={{results_dir|results}}/{{client|default}}_{{name}}.ndjson",
	"-e", "CLIENT={{client}}",
	"-e", "ENVIRONMENT={{env|local}}",
	"{{file}}",
}

// ExecExecutor runs the load engine as a child process.
type ExecExecutor struct {
	Binary     string   // engine executable, default "k6"
	Args       []string // argument templates, default DefaultArgs
	ResultsDir string   // created before the first run when set
	Env        []string // extra KEY=VALUE pairs
	Dir        string   // working directory
	Propagate  bool     // pass the task span to the child via TRACEPARENT
}

// Execute starts the engine and waits for it. Stdout and stderr are both
// written to w.
func (e *ExecExecutor) Execute(ctx context.Context, job Job, w io.Writer) (int, error) {
	binary := e.Binary
	if binary == "" {
		binary = "k6"
	}
	templates := e.Args
	if len(templates) == 0 {
		templates = DefaultArgs
	}

	if e.ResultsDir != "" {
		if err := os.MkdirAll(e.ResultsDir, 0o755); err != nil {
			return -1, &SpawnError{File: job.File, Err: fmt.Errorf("create results dir: %w", err)}
		}
	}

	vars := job.Vars(e.ResultsDir)
	args := make([]string, len(templates))
	for i, t := range templates {
		args[i] = ApplyPlaceholders(t, vars)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = e.Dir
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.Env = append(os.Environ(), e.Env...)
	if e.Propagate {
		cmd.Env = append(cmd.Env, tracing.EnvCarrier(ctx)...)
	}

	if err := cmd.Start(); err != nil {
		return -1, &SpawnError{File: job.File, Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait for %s: %w", job.File, err)
}
