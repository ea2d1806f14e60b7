// Package metrics aggregates the sample stream of one load-test run.
//
// The central [Aggregator] type keeps one series per metric name and a second,
// endpoint-scoped copy of every "http_req*" metric:
//
//	agg := metrics.NewAggregator()
//	for scanner.Next() {
//		agg.Ingest(scanner.Event())
//	}
//
//	all := agg.SnapshotAll()          // metric -> stats.Snapshot
//	grouped := agg.SnapshotGrouped()  // group -> endpoint -> metric -> stats.Snapshot
//	checks := agg.Checks()            // check name -> pass/fail counts
//
// # Grouping
//
// The bucket for an HTTP sample is taken from its tags only: tags.group
// (default "") and tags.name, then tags.url, then the literal "unknown".
// Requests without a name or url all land in the same "unknown" bucket, so
// that bucket can mix unrelated endpoints.
//
// # Ordering
//
// A Point may arrive before the Metric line that declares it. The series is
// created on first sight with type "trend" and retyped when the declaration
// shows up.
//
// # Live Estimates
//
// [Aggregator.Live] reports an approximate request-duration p95 backed by an
// HDR histogram so progress can be shown while a large file is still being
// read. Snapshots always use the exact raw values.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Ingestion is expected to happen
// from a single goroutine; the lock exists so a progress reporter can read.
package metrics
