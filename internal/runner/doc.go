// Package runner orchestrates load-engine processes for perfsuite.
//
// A single scheduler goroutine owns all task state. It starts up to
// Concurrency tasks in discovery order, receives every exit on one channel,
// and refills free slots until nothing is pending or running:
//
//	files, _ := runner.Discover("tests/*.js")
//	r := runner.New(runner.Options{
//		Files:       files,
//		Concurrency: 4,
//		Executor:    &runner.ExecExecutor{Binary: "k6", ResultsDir: "results"},
//		Logger:      logger,
//	})
//	res := r.Run(ctx)
//	os.Exit(res.ExitCode)
//
// # Executors
//
// [ExecExecutor] runs the engine with arguments built from templates such as
// "json={{results_dir}}/{{name}}.ndjson". See [ApplyPlaceholders].
// [WithRetry] retries executors whose process failed to spawn.
//
// # Failure Semantics
//
// A task passes only when its exit code is 0 and no error occurred. A task
// that cannot be spawned fails with a [*SpawnError] and the remaining tasks
// keep running. The result lists tasks in completion order.
//
// # Observers
//
// [Observer] implementations receive TaskStarted and TaskFinished calls on the
// scheduler goroutine. The dashboard and telemetry packages provide them.
package runner
