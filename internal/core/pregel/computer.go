package pregel

// GraphComputer runs a VertexProgram over a graph in bulk synchronous
// supersteps:
// - every vertex executes once per superstep on a work-stealing pool
// - messages sent in superstep n are received in superstep n+1
// - global writes and compute keys become visible after the barrier
// - the master terminate check runs after every barrier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/flowgraph/gremlin/internal/core/checkpoint"
	"github.com/flowgraph/gremlin/internal/core/graph"
	imetrics "github.com/flowgraph/gremlin/internal/infrastructure/metrics"
)

const checkpointVersion = "1"

type GraphComputer struct {
	graph    graph.Graph
	config   Config
	registry *Registry
	saver    checkpoint.Saver
	handlers []StreamHandler
	logger   *slog.Logger

	mu        sync.Mutex
	submitted bool
}

// NewGraphComputer validates cfg and binds a computer to g. A computer
// accepts a single submission.
func NewGraphComputer(g graph.Graph, cfg Config) (*GraphComputer, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("graph computer config: %w", err)
	}
	cfg = cfg.withDefaults()
	return &GraphComputer{graph: g, config: cfg, registry: DefaultRegistry, logger: cfg.Logger}, nil
}

// WithRegistry resolves programs from r instead of DefaultRegistry.
func (c *GraphComputer) WithRegistry(r *Registry) *GraphComputer {
	c.registry = r
	return c
}

// WithCheckpointSaver persists a snapshot every Config.CheckpointEvery supersteps.
func (c *GraphComputer) WithCheckpointSaver(s checkpoint.Saver) *GraphComputer {
	c.saver = s
	return c
}

func (c *GraphComputer) AddStreamHandler(h StreamHandler) *GraphComputer {
	c.handlers = append(c.handlers, h)
	return c
}

// Config returns the effective configuration.
func (c *GraphComputer) Config() Config { return c.config }

// Submit resolves and initializes the program named in cfg and starts it.
func (c *GraphComputer) Submit(ctx context.Context, cfg Configuration) (*Future, error) {
	program, err := c.registry.New(cfg)
	if err != nil {
		return nil, err
	}
	return c.SubmitProgram(ctx, program)
}

// SubmitProgram starts an already initialized program.
func (c *GraphComputer) SubmitProgram(ctx context.Context, program VertexProgram) (*Future, error) {
	if program == nil {
		return nil, ErrNoProgram
	}
	if err := checkKeys(program); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	c.submitted = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	f := &Future{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer cancel()
		f.result, f.err = c.compute(ctx, program)
		close(f.done)
	}()
	return f, nil
}

// Run submits cfg and waits for the result.
func (c *GraphComputer) Run(ctx context.Context, cfg Configuration) (*Result, error) {
	f, err := c.Submit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

// Future is a handle on a submitted computation.
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc
	result *Result
	err    error
}

// Done is closed when the computation finishes.
func (f *Future) Done() <-chan struct{} { return f.done }

// Cancel stops scheduling vertex executions. In-flight executions finish,
// the partial superstep is discarded and Wait reports context.Canceled.
func (f *Future) Cancel() { f.cancel() }

// Wait blocks until the computation finishes or ctx is done. An expired ctx
// does not cancel the computation.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result is the outcome of a finished computation.
type Result struct {
	ComputationID string
	Program       string
	Globals       Snapshot
	graph         *resultGraph
}

// Graph returns the input graph with the final compute keys overlaid.
func (r *Result) Graph() graph.Graph { return r.graph }

// ComputeValue reads a final compute key of a vertex.
func (r *Result) ComputeValue(vertexID any, key string) (any, bool) {
	return r.graph.view.get(vertexID, key)
}

func (r *Result) Supersteps() int        { return r.Globals.Supersteps }
func (r *Result) Runtime() time.Duration { return r.Globals.Runtime }

// run is the state of one computation.
type run struct {
	id        string
	name      string
	program   VertexProgram
	graph     graph.Graph
	mem       *memory
	master    *masterGlobals
	view      *computeView
	board     *board
	combiner  MessageCombiner
	recovery  *ErrorRecoveryHandler
	scheduler *WorkStealingScheduler
	streamer  *Streamer
	logger    *slog.Logger
}

// execution is one successful vertex execution, held until the barrier.
type execution struct {
	vertex  *computeVertex
	out     *outbox
	globals *vertexGlobals
}

func programName(p VertexProgram) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

func (c *GraphComputer) compute(ctx context.Context, program VertexProgram) (*Result, error) {
	r := &run{
		id:       uuid.NewString(),
		name:     programName(program),
		program:  program,
		graph:    c.graph,
		mem:      newMemory(program.GlobalKeys()),
		view:     newComputeView(program.ComputeKeys()),
		recovery: NewErrorRecoveryHandler(c.config.RetryPolicy),
	}
	r.master = &masterGlobals{memory: r.mem}
	if cp, ok := program.(Combining); ok {
		r.combiner = cp.Combiner()
	}
	r.board = newBoard(r.combiner)
	r.logger = c.logger.With("computation", r.id, "program", r.name)

	if len(c.handlers) > 0 || c.config.StreamOutput {
		r.streamer = NewStreamer(c.logger)
		for _, h := range c.handlers {
			r.streamer.AddHandler(h)
		}
		r.streamer.Start()
		defer r.streamer.Stop()
	}

	result, err := c.supersteps(ctx, r)
	r.mem.freeze()
	outcome := "completed"
	switch {
	case err == nil:
		r.logger.Info("computation finished", "supersteps", r.mem.Superstep(), "runtime", r.mem.Runtime())
	case errors.Is(err, context.Canceled):
		outcome = "cancelled"
		r.logger.Warn("computation cancelled", "superstep", r.mem.Superstep())
	default:
		outcome = "failed"
		r.logger.Error("computation failed", "superstep", r.mem.Superstep(), "error", err)
	}
	imetrics.ComputationFinished(outcome)
	r.emit(StreamEvent{Type: EventComputationEnd, Step: r.mem.Superstep(), Data: map[string]any{"outcome": outcome, "runtime": r.mem.Runtime()}})
	return result, err
}

func (c *GraphComputer) supersteps(ctx context.Context, r *run) (*Result, error) {
	if err := r.program.Setup(r.master); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}
	if err := r.master.takeErr(); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	vertices := c.graph.Vertices()
	r.scheduler = NewWorkStealingScheduler(c.config.Parallelism, c.config.QueueCapacity)
	r.scheduler.StartWorkers()
	defer r.scheduler.Stop()

	r.logger.Info("computation started", "vertices", len(vertices), "workers", c.config.Parallelism)
	r.emit(StreamEvent{Type: EventComputationStart, Data: map[string]any{"vertices": len(vertices)}})

	for {
		step := r.mem.Superstep()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.config.MaxSupersteps > 0 && step >= c.config.MaxSupersteps {
			return nil, fmt.Errorf("%w: %d", ErrMaxSuperstepsExceeded, c.config.MaxSupersteps)
		}

		r.emit(StreamEvent{Type: EventSuperstepStart, Step: step})
		execs, err := c.superstep(ctx, r, vertices, step)
		if err != nil {
			return nil, err
		}
		sent := r.barrier(execs)
		imetrics.IncSupersteps()
		r.emit(StreamEvent{Type: EventSuperstepEnd, Step: step, Data: map[string]any{"messages": sent}})
		r.logger.Debug("superstep finished", "superstep", step, "messages", sent)

		r.mem.advance()
		c.checkpoint(ctx, r)

		halt := r.program.Terminate(r.master)
		if err := r.master.takeErr(); err != nil {
			return nil, fmt.Errorf("terminate after superstep %d: %w", step, err)
		}
		if halt {
			break
		}
	}

	r.mem.freeze()
	return &Result{
		ComputationID: r.id,
		Program:       r.name,
		Globals:       Snapshot{Values: r.mem.snapshot(), Supersteps: r.mem.Superstep(), Runtime: r.mem.Runtime()},
		graph:         &resultGraph{Graph: c.graph, view: r.view},
	}, nil
}

// superstep executes every vertex once. Any failure, cancellation or
// timeout discards the whole superstep.
func (c *GraphComputer) superstep(ctx context.Context, r *run, vertices []graph.Vertex, step int) ([]*execution, error) {
	stepCtx := ctx
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	results := make(chan VertexResult, len(vertices))
	scheduled := 0
	for i, v := range vertices {
		if stepCtx.Err() != nil {
			break
		}
		task := VertexTask{
			VertexID: v.ID(),
			Index:    i,
			Run:      func() VertexResult { return r.execute(stepCtx, v, step) },
			Result:   results,
		}
		if !r.scheduler.Schedule(task) {
			break
		}
		scheduled++
	}

	execs := make([]*execution, len(vertices))
	var errs *multierror.Error
	for n := 0; n < scheduled; n++ {
		res := <-results
		imetrics.IncVertexExecs(1)
		if res.Error != nil {
			errs = multierror.Append(errs, res.Error)
			r.emit(StreamEvent{Type: EventVertexError, VertexID: res.VertexID, Step: step, Data: map[string]any{"error": res.Error.Error(), "attempts": res.Attempts}})
			continue
		}
		execs[res.Index] = res.exec
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("superstep %d failed: %w", step, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := stepCtx.Err(); err != nil {
		return nil, fmt.Errorf("superstep %d timed out: %w", step, err)
	}
	return execs, nil
}

// execute runs one vertex, retrying per the retry policy. Each attempt
// starts from fresh buffers.
func (r *run) execute(ctx context.Context, v graph.Vertex, step int) VertexResult {
	for attempt := 0; ; attempt++ {
		exec, err := r.attempt(v, step)
		if err == nil {
			return VertexResult{Attempts: attempt + 1, exec: exec}
		}
		retry, final := r.recovery.HandleError(ctx, v.ID(), step, err, attempt)
		if !retry {
			return VertexResult{Attempts: attempt + 1, Error: final}
		}
		imetrics.IncVertexRetries()
		r.emit(StreamEvent{Type: EventVertexRetry, VertexID: v.ID(), Step: step, Data: map[string]any{"attempt": attempt + 1, "error": err.Error()}})
	}
}

func (r *run) attempt(v graph.Vertex, step int) (exec *execution, err error) {
	cv := &computeVertex{Vertex: v, view: r.view, local: r.view.copyOf(v.ID()), superstep: step}
	exec = &execution{vertex: cv, out: newOutbox(r.combiner), globals: &vertexGlobals{memory: r.mem}}
	m := &messenger{vertex: cv, graph: r.graph, board: r.board, out: exec.out}

	defer func() {
		if p := recover(); p != nil {
			exec, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	if err := r.program.Execute(cv, m, exec.globals); err != nil {
		return nil, err
	}
	if exec.globals.err != nil {
		return nil, exec.globals.err
	}
	return exec, nil
}

// barrier commits a superstep in vertex order: globals are folded, the
// message board is swapped and compute keys are published. It returns the
// number of messages sent.
func (r *run) barrier(execs []*execution) int64 {
	batches := make([][]globalWrite, 0, len(execs))
	outs := make([]*outbox, 0, len(execs))
	states := make(map[any]map[string]any)
	sent := make(map[string]int64, 2)
	for _, e := range execs {
		if e == nil {
			continue
		}
		batches = append(batches, e.globals.writes)
		outs = append(outs, e.out)
		if e.vertex.dirty {
			states[e.vertex.ID()] = e.vertex.local
		}
		for kind, n := range e.out.sent {
			sent[kind] += n
		}
	}

	r.mem.merge(batches)
	combined := r.board.swap(outs)
	r.view.commit(states)

	var total int64
	for kind, n := range sent {
		imetrics.MessagesSent(kind, n)
		total += n
	}
	if combined > 0 {
		imetrics.MessagesCombined(LocalLabel, combined)
	}
	return total
}

func (c *GraphComputer) checkpoint(ctx context.Context, r *run) {
	step := r.mem.Superstep()
	if c.saver == nil || c.config.CheckpointEvery <= 0 || step%c.config.CheckpointEvery != 0 {
		return
	}
	cp := &checkpoint.Checkpoint{
		ID:            uuid.NewString(),
		ComputationID: r.id,
		Program:       r.name,
		State: map[string]any{
			"globals": r.mem.snapshot(),
			"compute": r.view.export(),
		},
		Metadata:  checkpoint.Metadata{Superstep: step, Source: "barrier"},
		Timestamp: time.Now(),
		Version:   checkpointVersion,
	}
	if err := c.saver.Save(ctx, cp); err != nil {
		r.logger.Warn("checkpoint failed", "superstep", step, "error", err)
		return
	}
	r.emit(StreamEvent{Type: EventCheckpoint, Step: step, Data: map[string]any{"checkpoint_id": cp.ID}})
}

func (r *run) emit(event StreamEvent) {
	if r.streamer == nil {
		return
	}
	event.ComputationID = r.id
	event.Program = r.name
	r.streamer.EmitEvent(event)
}
