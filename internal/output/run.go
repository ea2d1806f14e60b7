package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/torosent/perfsuite/internal/runner"
)

// PrintRunResult outputs the orchestration summary. Tasks are listed in
// completion order.
func PrintRunResult(w io.Writer, result runner.Result) {
	fmt.Fprintln(w, "\n--- Test Run Results ---")
	for _, t := range result.Tasks {
		if t.State == runner.StatePassed {
			fmt.Fprintf(w, "  ✓ %s (%s)\n", t.File, t.Duration().Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "  ✗ %s (exit %d, %s)", t.File, t.ExitCode, t.Duration().Round(time.Millisecond))
		if t.Err != nil {
			fmt.Fprintf(w, ": %v", t.Err)
		}
		fmt.Fprintln(w)
		printTail(w, t.Output)
	}
	fmt.Fprintf(w, "\nTotal:             %d\n", result.Total)
	fmt.Fprintf(w, "Passed:            %d\n", result.Passed)
	fmt.Fprintf(w, "Failed:            %d\n", result.Failed)
	fmt.Fprintf(w, "Duration:          %s\n", result.Duration.Round(time.Millisecond))
}

// printTail writes the captured output of a failed task, indented under its
// status line.
func printTail(w io.Writer, tail string) {
	tail = strings.TrimRight(tail, "\r\n")
	if strings.TrimSpace(tail) == "" {
		return
	}
	for _, line := range strings.Split(tail, "\n") {
		fmt.Fprintf(w, "      %s\n", strings.TrimRight(line, "\r"))
	}
}
