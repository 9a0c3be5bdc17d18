// Package profile aggregates completed syscall events into per-process
// statistics.
//
// The Aggregator is owned by the tracer goroutine. Record is O(1) per event;
// subtree rollups are not maintained here and are computed when a snapshot
// is built.
package profile
