// Package telemetry exports graph computer events to OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowgraph/gremlin/internal/core/pregel"
)

// TracingHandler turns a computation into a root span with one child span
// per superstep. Vertex failures, retries and checkpoints become span events.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.Mutex
	runSpans  map[string]trace.Span      // computation -> span
	runCtxs   map[string]context.Context // computation -> context for child spans
	stepSpans map[string]trace.Span      // computation:superstep -> span
}

var _ pregel.StreamHandler = (*TracingHandler)(nil)

func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		stepSpans: make(map[string]trace.Span),
	}
}

func (h *TracingHandler) HandleEvent(_ context.Context, e pregel.StreamEvent) error {
	switch e.Type {
	case pregel.EventComputationStart:
		h.computationStarted(e)
	case pregel.EventSuperstepStart:
		h.superstepStarted(e)
	case pregel.EventSuperstepEnd:
		h.superstepFinished(e)
	case pregel.EventVertexError, pregel.EventVertexRetry, pregel.EventCheckpoint:
		h.annotate(e)
	case pregel.EventComputationEnd:
		h.computationFinished(e)
	}
	return nil
}

func (h *TracingHandler) computationStarted(e pregel.StreamEvent) {
	ctx, span := h.tracer.Start(context.Background(), "computation:"+e.Program,
		trace.WithAttributes(
			attribute.String("gremlin.computation_id", e.ComputationID),
			attribute.String("gremlin.program", e.Program),
		),
		trace.WithTimestamp(e.Timestamp),
	)
	if n, ok := e.Data["vertices"].(int); ok {
		span.SetAttributes(attribute.Int("gremlin.vertices", n))
	}

	h.mu.Lock()
	h.runSpans[e.ComputationID] = span
	h.runCtxs[e.ComputationID] = ctx
	h.mu.Unlock()
}

func (h *TracingHandler) superstepStarted(e pregel.StreamEvent) {
	h.mu.Lock()
	parent, ok := h.runCtxs[e.ComputationID]
	h.mu.Unlock()
	if !ok {
		parent = context.Background()
	}

	_, span := h.tracer.Start(parent, fmt.Sprintf("superstep:%d", e.Step),
		trace.WithAttributes(
			attribute.String("gremlin.computation_id", e.ComputationID),
			attribute.Int("gremlin.superstep", e.Step),
		),
		trace.WithTimestamp(e.Timestamp),
	)

	h.mu.Lock()
	h.stepSpans[stepKey(e)] = span
	h.mu.Unlock()
}

func (h *TracingHandler) superstepFinished(e pregel.StreamEvent) {
	span, ok := h.takeStep(stepKey(e))
	if !ok {
		return
	}
	if n, ok := e.Data["messages"].(int64); ok {
		span.SetAttributes(attribute.Int64("gremlin.messages", n))
	}
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(e.Timestamp))
}

// annotate records e on the open superstep span, or on the computation span
// once the superstep is over.
func (h *TracingHandler) annotate(e pregel.StreamEvent) {
	h.mu.Lock()
	span, ok := h.stepSpans[stepKey(e)]
	if !ok {
		span, ok = h.runSpans[e.ComputationID]
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{attribute.Int("gremlin.superstep", e.Step)}
	if e.VertexID != nil {
		attrs = append(attrs, attribute.String("gremlin.vertex_id", fmt.Sprint(e.VertexID)))
	}
	for _, k := range []string{"error", "checkpoint_id"} {
		if s, ok := e.Data[k].(string); ok {
			attrs = append(attrs, attribute.String("gremlin."+k, s))
		}
	}
	if n, ok := e.Data["attempt"].(int); ok {
		attrs = append(attrs, attribute.Int("gremlin.attempt", n))
	}
	span.AddEvent(e.Type, trace.WithAttributes(attrs...), trace.WithTimestamp(e.Timestamp))
	if e.Type == pregel.EventVertexError {
		span.SetStatus(codes.Error, "vertex execution failed")
	}
}

func (h *TracingHandler) computationFinished(e pregel.StreamEvent) {
	prefix := e.ComputationID + ":"

	h.mu.Lock()
	span, ok := h.runSpans[e.ComputationID]
	delete(h.runSpans, e.ComputationID)
	delete(h.runCtxs, e.ComputationID)
	// A failed superstep never reports its end.
	var open []trace.Span
	for k, s := range h.stepSpans {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			open = append(open, s)
			delete(h.stepSpans, k)
		}
	}
	h.mu.Unlock()

	for _, s := range open {
		s.SetStatus(codes.Error, "superstep aborted")
		s.End(trace.WithTimestamp(e.Timestamp))
	}
	if !ok {
		return
	}

	outcome, _ := e.Data["outcome"].(string)
	span.SetAttributes(
		attribute.String("gremlin.outcome", outcome),
		attribute.Int("gremlin.supersteps", e.Step),
	)
	if outcome == "completed" {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, outcome)
	}
	span.End(trace.WithTimestamp(e.Timestamp))
}

func (h *TracingHandler) takeStep(key string) (trace.Span, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	span, ok := h.stepSpans[key]
	if ok {
		delete(h.stepSpans, key)
	}
	return span, ok
}

func stepKey(e pregel.StreamEvent) string {
	return fmt.Sprintf("%s:%d", e.ComputationID, e.Step)
}
