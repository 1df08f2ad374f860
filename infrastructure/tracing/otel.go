// Package tracing provides OpenTelemetry span instrumentation for graph
// execution, one span per (node, batch) task.
//
// Grounded on the real otel usage already present in
// infrastructure/nodebodies/exactmatch.go and fuzzymatch.go
// (otel.Tracer + tracer.Start + trace.WithAttributes), not on the
// teacher's own infrastructure/llm/middleware_tracing.go, which never
// got past a commented-out stub.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NodeTracer starts spans around individual node-task executions.
type NodeTracer struct{ tracer trace.Tracer }

// NewNodeTracer creates a NodeTracer registered under instrumentationName,
// the name reported against every span it starts.
func NewNodeTracer(instrumentationName string) *NodeTracer {
	return &NodeTracer{tracer: otel.Tracer(instrumentationName)}
}

// StartNodeTask starts a span for one execution of nodeID/batchID and
// returns the derived context plus the span, so the caller can defer
// span.End() and call End on error.
func (t *NodeTracer) StartNodeTask(
	ctx context.Context,
	nodeID int,
	nodeType string,
	placement string,
	batchID int,
) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "graph.execute_task",
		trace.WithAttributes(
			attribute.Int("node.id", nodeID),
			attribute.String("node.type", nodeType),
			attribute.String("node.placement", placement),
			attribute.Int("batch.id", batchID),
		),
	)
}

// EndNodeTask records err on span, if any, and ends it. Pass a nil err
// for a successful task.
func EndNodeTask(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
