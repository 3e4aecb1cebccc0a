package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	metricapi "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
	"github.com/flowgraph/gremlin/internal/core/pregel"
)

func events(start time.Time) []pregel.StreamEvent {
	ev := func(typ string, step int, data map[string]any, offset time.Duration) pregel.StreamEvent {
		return pregel.StreamEvent{
			Type:          typ,
			ComputationID: "comp-1",
			Program:       "pageRank",
			Step:          step,
			Data:          data,
			Timestamp:     start.Add(offset),
		}
	}
	retry := ev(pregel.EventVertexRetry, 0, map[string]any{"attempt": 1, "error": "boom"}, 5*time.Millisecond)
	retry.VertexID = "a"
	return []pregel.StreamEvent{
		ev(pregel.EventComputationStart, 0, map[string]any{"vertices": 3}, 0),
		ev(pregel.EventSuperstepStart, 0, nil, time.Millisecond),
		retry,
		ev(pregel.EventSuperstepEnd, 0, map[string]any{"messages": int64(4)}, 10*time.Millisecond),
		ev(pregel.EventCheckpoint, 1, map[string]any{"checkpoint_id": "cp-1"}, 11*time.Millisecond),
		ev(pregel.EventSuperstepStart, 1, nil, 12*time.Millisecond),
		ev(pregel.EventSuperstepEnd, 1, map[string]any{"messages": int64(2)}, 20*time.Millisecond),
		ev(pregel.EventComputationEnd, 2, map[string]any{"outcome": "completed", "runtime": 21 * time.Millisecond}, 21*time.Millisecond),
	}
}

func TestTracingHandler(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	h := NewTracingHandler(provider.Tracer("test"))

	for _, e := range events(time.Now()) {
		require.NoError(t, h.HandleEvent(context.Background(), e))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	byName := make(map[string]sdktrace.ReadOnlySpan)
	for _, s := range spans {
		byName[s.Name()] = s
	}

	root := byName["computation:pageRank"]
	require.NotNil(t, root)
	assert.Equal(t, codes.Ok, root.Status().Code)
	require.Len(t, root.Events(), 1)
	assert.Equal(t, pregel.EventCheckpoint, root.Events()[0].Name)

	step0 := byName["superstep:0"]
	require.NotNil(t, step0)
	assert.Equal(t, root.SpanContext().SpanID(), step0.Parent().SpanID())
	require.Len(t, step0.Events(), 1)
	assert.Equal(t, pregel.EventVertexRetry, step0.Events()[0].Name)
	assert.Equal(t, 9*time.Millisecond, step0.EndTime().Sub(step0.StartTime()))

	assert.NotNil(t, byName["superstep:1"])
	assert.Empty(t, h.runSpans)
	assert.Empty(t, h.stepSpans)
}

func TestTracingHandler_AbortedSuperstep(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	h := NewTracingHandler(provider.Tracer("test"))
	ctx := context.Background()
	now := time.Now()

	base := pregel.StreamEvent{ComputationID: "comp-2", Program: "traversal", Timestamp: now}
	start, step, failed, end := base, base, base, base
	start.Type = pregel.EventComputationStart
	step.Type = pregel.EventSuperstepStart
	failed.Type = pregel.EventVertexError
	failed.VertexID = 7
	failed.Data = map[string]any{"error": "boom"}
	end.Type = pregel.EventComputationEnd
	end.Data = map[string]any{"outcome": "failed"}

	for _, e := range []pregel.StreamEvent{start, step, failed, end} {
		require.NoError(t, h.HandleEvent(ctx, e))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, codes.Error, s.Status().Code, s.Name())
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counter(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is %T", m.Name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func histogramCount(t *testing.T, m metricdata.Metrics) uint64 {
	t.Helper()
	h, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "%s is %T", m.Name, m.Data)
	var n uint64
	for _, dp := range h.DataPoints {
		n += dp.Count
	}
	return n
}

func TestMetricsHandler(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	h, err := NewMetricsHandler(provider.Meter("test"))
	require.NoError(t, err)

	for _, e := range events(time.Now()) {
		require.NoError(t, h.HandleEvent(context.Background(), e))
	}

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), counter(t, metrics["gremlin.supersteps"]))
	assert.Equal(t, int64(6), counter(t, metrics["gremlin.messages"]))
	assert.Equal(t, int64(1), counter(t, metrics["gremlin.vertex.retries"]))
	assert.Equal(t, int64(1), counter(t, metrics["gremlin.checkpoints"]))
	assert.Equal(t, uint64(2), histogramCount(t, metrics["gremlin.superstep.duration"]))
	assert.Equal(t, uint64(1), histogramCount(t, metrics["gremlin.computation.duration"]))
	assert.Empty(t, h.starts)
}

// Handlers attached to a real computer see every superstep of a PageRank run.
func TestHandlers_OnComputer(t *testing.T) {
	g := graphrepo.NewMemoryGraph()
	for _, id := range []string{"a", "b", "c"} {
		_, err := g.AddVertex(id, "node", nil)
		require.NoError(t, err)
	}
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}} {
		_, err := g.AddEdge(nil, "link", e[0], e[1], nil)
		require.NoError(t, err)
	}

	recorder := tracetest.NewSpanRecorder()
	tracing := NewTracingHandler(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test"))
	reader := sdkmetric.NewManualReader()
	metrics, err := NewMetricsHandler(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)

	cfg := pregel.DefaultConfig()
	cfg.Parallelism = 2
	computer, err := pregel.NewGraphComputer(g, cfg)
	require.NoError(t, err)
	computer.AddStreamHandler(tracing).AddStreamHandler(metrics)

	result, err := computer.Run(context.Background(), pregel.PageRankConfig(3, 0.85, 5))
	require.NoError(t, err)

	// One span per superstep plus the computation.
	assert.Len(t, recorder.Ended(), result.Supersteps()+1)
	assert.Equal(t, int64(result.Supersteps()), counter(t, collect(t, reader)["gremlin.supersteps"]))
}

func TestNewMetricsHandler_InstrumentError(t *testing.T) {
	_, err := NewMetricsHandler(brokenMeter{sdkmetric.NewMeterProvider().Meter("test")})
	assert.Error(t, err)
}

type brokenMeter struct {
	metricapi.Meter
}

func (brokenMeter) Int64Counter(string, ...metricapi.Int64CounterOption) (metricapi.Int64Counter, error) {
	return nil, errors.New("no counters")
}
