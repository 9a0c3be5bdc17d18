// Package timesync provides the time source used to timestamp trace stops.
//
// Every stop observed by the tracer is stamped with Clock.Now(). The system
// clock carries Go's monotonic reading, so durations computed from two stamps
// (syscall entry to exit, spawn to exit) are immune to wall-clock steps while
// the stamps themselves still serialize as absolute wall-clock time.
//
// Manual is a settable clock used to drive the event processor
// deterministically in tests.
package timesync
