package metrics

import (
	"expvar"
)

// Message metrics keyed by message type kind ("global" or "local").
var (
	messagesSent     = expvar.NewMap("gremlin_messages_sent_total")
	messagesCombined = expvar.NewMap("gremlin_messages_combined_total")
	computations     = expvar.NewMap("gremlin_computations_total")
)

// Computer / Scheduler metrics.
var (
	superstepsTotal      = new(expvar.Int)
	vertexExecsTotal     = new(expvar.Int)
	vertexRetriesTotal   = new(expvar.Int)
	schedulerWorkers     = new(expvar.Int)
	schedulerQueuedTotal = new(expvar.Int)
	traversersTotal      = new(expvar.Int)
)

func init() {
	expvar.Publish("gremlin_supersteps_total", superstepsTotal)
	expvar.Publish("gremlin_vertex_executions_total", vertexExecsTotal)
	expvar.Publish("gremlin_vertex_retries_total", vertexRetriesTotal)
	expvar.Publish("gremlin_scheduler_workers", schedulerWorkers)
	expvar.Publish("gremlin_scheduler_queued_total", schedulerQueuedTotal)
	expvar.Publish("gremlin_traversers_total", traversersTotal)
}

// Message helpers
func MessagesSent(kind string, n int64)     { messagesSent.Add(kind, n) }
func MessagesCombined(kind string, n int64) { messagesCombined.Add(kind, n) }

// ComputationFinished counts a finished computation by outcome
// ("completed", "failed" or "cancelled").
func ComputationFinished(outcome string) { computations.Add(outcome, 1) }

// Computer/Scheduler helpers
func IncSupersteps()            { superstepsTotal.Add(1) }
func IncVertexExecs(n int64)    { vertexExecsTotal.Add(n) }
func IncVertexRetries()         { vertexRetriesTotal.Add(1) }
func SetSchedulerWorkers(n int) { schedulerWorkers.Set(int64(n)) }
func AddSchedulerQueued(n int)  { schedulerQueuedTotal.Add(int64(n)) }
func AddTraversers(n int64)     { traversersTotal.Add(n) }

// Value returns the current value of a scalar metric, or of one key of a
// labeled metric when key is non-empty. Unknown names report 0.
func Value(name, key string) int64 {
	v := expvar.Get(name)
	switch x := v.(type) {
	case *expvar.Int:
		return x.Value()
	case *expvar.Map:
		if key == "" {
			return 0
		}
		if iv, ok := x.Get(key).(*expvar.Int); ok {
			return iv.Value()
		}
	}
	return 0
}
