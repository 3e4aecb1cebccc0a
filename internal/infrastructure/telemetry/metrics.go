package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/flowgraph/gremlin/internal/core/pregel"
)

// MetricsHandler records counters and histograms for supersteps, messages,
// vertex failures and whole computations.
type MetricsHandler struct {
	supersteps        metric.Int64Counter
	messages          metric.Int64Counter
	vertexErrors      metric.Int64Counter
	vertexRetries     metric.Int64Counter
	checkpoints       metric.Int64Counter
	superstepDuration metric.Float64Histogram
	runDuration       metric.Float64Histogram

	mu     sync.Mutex
	starts map[string]time.Time // computation:superstep -> start
}

var _ pregel.StreamHandler = (*MetricsHandler)(nil)

// NewMetricsHandler creates the instruments on meter.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	h := &MetricsHandler{starts: make(map[string]time.Time)}
	var err error

	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&h.supersteps, "gremlin.supersteps", "Number of completed supersteps"},
		{&h.messages, "gremlin.messages", "Number of messages delivered at barriers"},
		{&h.vertexErrors, "gremlin.vertex.errors", "Number of failed vertex executions"},
		{&h.vertexRetries, "gremlin.vertex.retries", "Number of retried vertex executions"},
		{&h.checkpoints, "gremlin.checkpoints", "Number of saved checkpoints"},
	}
	for _, c := range counters {
		if *c.target, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	h.superstepDuration, err = meter.Float64Histogram("gremlin.superstep.duration",
		metric.WithDescription("Duration of a superstep in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	h.runDuration, err = meter.Float64Histogram("gremlin.computation.duration",
		metric.WithDescription("Duration of a computation in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *MetricsHandler) HandleEvent(ctx context.Context, e pregel.StreamEvent) error {
	program := metric.WithAttributes(attribute.String("program", e.Program))

	switch e.Type {
	case pregel.EventSuperstepStart:
		h.mu.Lock()
		h.starts[stepKey(e)] = e.Timestamp
		h.mu.Unlock()
	case pregel.EventSuperstepEnd:
		h.supersteps.Add(ctx, 1, program)
		if n, ok := e.Data["messages"].(int64); ok {
			h.messages.Add(ctx, n, program)
		}
		h.mu.Lock()
		start, ok := h.starts[stepKey(e)]
		delete(h.starts, stepKey(e))
		h.mu.Unlock()
		if ok {
			h.superstepDuration.Record(ctx, e.Timestamp.Sub(start).Seconds(), program)
		}
	case pregel.EventVertexError:
		h.vertexErrors.Add(ctx, 1, program)
	case pregel.EventVertexRetry:
		h.vertexRetries.Add(ctx, 1, program)
	case pregel.EventCheckpoint:
		h.checkpoints.Add(ctx, 1, program)
	case pregel.EventComputationEnd:
		outcome, _ := e.Data["outcome"].(string)
		if runtime, ok := e.Data["runtime"].(time.Duration); ok {
			h.runDuration.Record(ctx, runtime.Seconds(), metric.WithAttributes(
				attribute.String("program", e.Program),
				attribute.String("outcome", outcome),
			))
		}
	}
	return nil
}
