package output

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KarelPeeters/wtf/internal/proctree"
	"github.com/KarelPeeters/wtf/internal/snapshot"
)

// OTELExporter turns a finished profile into OpenTelemetry spans: one span
// per process, parented to the span of the process that spawned it.
type OTELExporter struct {
	tracer trace.Tracer
}

// NewOTELExporter creates an exporter that starts spans on tracer.
func NewOTELExporter(tracer trace.Tracer) *OTELExporter {
	return &OTELExporter{tracer: tracer}
}

// Export emits the spans of s and returns how many were created. Nodes come
// in creation order, so every parent span exists before its children.
func (e *OTELExporter) Export(ctx context.Context, s *snapshot.Snapshot) int {
	spans := make(map[proctree.Key]trace.SpanContext, len(s.Nodes))
	for i := range s.Nodes {
		n := &s.Nodes[i]

		parentCtx := ctx
		if n.Parent != nil {
			if sc, ok := spans[*n.Parent]; ok && sc.IsValid() {
				parentCtx = trace.ContextWithSpanContext(ctx, sc)
			}
		}

		_, span := e.tracer.Start(parentCtx, n.DisplayName(),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithTimestamp(n.Spawned),
		)
		spans[n.Key] = span.SpanContext()

		span.SetAttributes(processAttributes(n)...)
		span.SetAttributes(syscallAttributes(n)...)
		if len(n.Attributes) > 0 {
			span.SetAttributes(customAttributes(n.Attributes)...)
		}
		for j, issue := range n.Issues {
			span.SetAttributes(attribute.String(fmt.Sprintf("_tracing_warning_%d", j), issue))
		}

		switch {
		case n.Degraded:
			span.SetStatus(codes.Error, "trace data incomplete")
		case n.Status != nil && (n.Status.Signaled() || n.Status.Code != 0):
			span.SetStatus(codes.Error, n.Status.String())
		}

		end := s.Taken
		if n.Exited != nil {
			end = *n.Exited
		}
		span.End(trace.WithTimestamp(end))
	}
	return len(s.Nodes)
}

func processAttributes(n *snapshot.Node) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("process.pid", n.Key.PID),
		attribute.Int("wtf.epoch", int(n.Key.Epoch)),
		attribute.String("wtf.kind", n.Kind),
		attribute.String("process.command", n.Command),
		attribute.Int64("process.duration_ns", int64(n.SelfWall)),
		attribute.Int64("wtf.busy_ns", int64(n.SelfBusy)),
		attribute.Int64("wtf.syscalls", int64(n.SelfEvents)),
		attribute.Int64("wtf.subtree.busy_ns", int64(n.SubtreeBusy)),
		attribute.Int64("wtf.subtree.syscalls", int64(n.SubtreeEvents)),
	}
	if n.Parent != nil {
		attrs = append(attrs, attribute.Int("process.parent_pid", n.Parent.PID))
	}
	if n.Path != "" {
		attrs = append(attrs, attribute.String("process.executable.path", n.Path))
	}
	if len(n.Args) > 0 {
		attrs = append(attrs, attribute.StringSlice("process.command_args", n.Args))
	}
	if n.Status != nil {
		if n.Status.Signaled() {
			attrs = append(attrs, attribute.Int("process.exit.signal", int(n.Status.Signal)))
		} else {
			attrs = append(attrs, attribute.Int("process.exit.code", n.Status.Code))
		}
	}
	if len(n.Execs) > 1 {
		attrs = append(attrs, attribute.Int("wtf.execs", len(n.Execs)))
	}
	return attrs
}

func syscallAttributes(n *snapshot.Node) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2*len(n.Syscalls))
	for _, row := range n.Syscalls {
		prefix := "syscall." + row.Name
		attrs = append(attrs,
			attribute.Int64(prefix+".count", int64(row.Count)),
			attribute.Int64(prefix+".total_ns", int64(row.Total)),
		)
		if row.Errors > 0 {
			attrs = append(attrs, attribute.Int64(prefix+".errors", int64(row.Errors)))
		}
		if row.Unterminated > 0 {
			attrs = append(attrs, attribute.Int64(prefix+".unterminated", int64(row.Unterminated)))
		}
	}
	return attrs
}

func customAttributes(values map[string]string) []attribute.KeyValue {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	attrs := make([]attribute.KeyValue, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, attribute.String(name, values[name]))
	}
	return attrs
}
