// Package output presents profile snapshots.
//
// Display is the live view: it redraws the newest snapshot in place on a
// terminal and stays silent otherwise. WriteSummary prints the final
// report once tracing is over. OTELExporter converts the final snapshot
// into one OpenTelemetry span per process.
//
// It does NOT:
//   - Touch tracer state; everything it reads is an immutable snapshot
//   - Evaluate custom attributes; those arrive already computed
//   - Decide when snapshots are taken
package output
