// Package tracer owns a tracing session: it launches the target under
// ptrace, runs the wait loop on a dedicated OS thread and feeds every stop
// to the eventprocessor.
//
// ptrace requests are only accepted from the thread that became the tracer,
// so Start locks one goroutine to its OS thread and runs both the launch and
// the loop there. Everything else (snapshot building, cancellation) talks to
// the session through its mutex or through plain signals, which any thread
// may send.
package tracer
