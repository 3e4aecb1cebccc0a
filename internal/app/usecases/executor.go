package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgraph/gremlin/internal/app/dto"
	"github.com/flowgraph/gremlin/internal/core/checkpoint"
	"github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/internal/core/pregel"
)

// TraversalExecutor submits traversals to a fresh graph computer per request
// and collects the final traversers from the vertex trackers.
type TraversalExecutor struct {
	graphs   GraphRepository
	registry *pregel.Registry
	saver    checkpoint.Saver
	handlers []pregel.StreamHandler
	logger   *slog.Logger
}

var _ Executor = (*TraversalExecutor)(nil)

// ExecutorOption configures a TraversalExecutor.
type ExecutorOption func(*TraversalExecutor)

// WithCheckpoints persists computer checkpoints through s.
func WithCheckpoints(s checkpoint.Saver) ExecutorOption {
	return func(e *TraversalExecutor) { e.saver = s }
}

// WithStreamHandlers attaches handlers to every computation.
func WithStreamHandlers(hs ...pregel.StreamHandler) ExecutorOption {
	return func(e *TraversalExecutor) { e.handlers = append(e.handlers, hs...) }
}

func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *TraversalExecutor) { e.logger = l }
}

// WithRegistry resolves programs from r.
func WithRegistry(r *pregel.Registry) ExecutorOption {
	return func(e *TraversalExecutor) { e.registry = r }
}

func NewTraversalExecutor(graphs GraphRepository, opts ...ExecutorOption) *TraversalExecutor {
	e := &TraversalExecutor{graphs: graphs, registry: pregel.DefaultRegistry, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute compiles req.Steps into a TraversalVertexProgram and runs it over
// the requested graph. On failure the response is returned along with the error.
func (e *TraversalExecutor) Execute(ctx context.Context, req *dto.TraversalRequest) (*dto.ComputationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	g, err := e.graphs.Get(ctx, req.GraphID)
	if err != nil {
		return nil, err
	}
	program, err := e.registry.New(TraversalStepsConfig(req.Steps...))
	if err != nil {
		return nil, err
	}

	response := &dto.ComputationResponse{
		GraphID:   req.GraphID,
		Program:   TraversalProgram,
		StartTime: time.Now(),
	}
	result, err := e.Run(ctx, g, program, e.ComputerConfig(req.Config))

	response.EndTime = time.Now()
	response.Duration = response.EndTime.Sub(response.StartTime)
	if err != nil {
		response.Status = dto.ComputationStatusFailed
		if errors.Is(err, context.Canceled) {
			response.Status = dto.ComputationStatusCancelled
		}
		response.Error = err.Error()
		return response, fmt.Errorf("%w: %w", dto.ErrComputationFailed, err)
	}

	response.Status = dto.ComputationStatusCompleted
	response.ComputationID = result.ComputationID
	response.Supersteps = result.Supersteps()
	response.Globals = result.Globals.Values
	response.Results = Results(result)
	return response, nil
}

// Run executes an initialized program on g and waits for it.
func (e *TraversalExecutor) Run(ctx context.Context, g graph.Graph, program pregel.VertexProgram, cfg pregel.Config) (*pregel.Result, error) {
	if cfg.Logger == nil {
		cfg.Logger = e.logger
	}
	computer, err := pregel.NewGraphComputer(g, cfg)
	if err != nil {
		return nil, err
	}
	computer.WithRegistry(e.registry)
	if e.saver != nil {
		computer.WithCheckpointSaver(e.saver)
	}
	for _, h := range e.handlers {
		computer.AddStreamHandler(h)
	}

	future, err := computer.SubmitProgram(ctx, program)
	if err != nil {
		return nil, err
	}
	return future.Wait(ctx)
}

// ComputerConfig maps request settings onto the computer defaults.
func (e *TraversalExecutor) ComputerConfig(c dto.ComputationConfig) pregel.Config {
	cfg := pregel.DefaultConfig()
	cfg.MaxSupersteps = c.MaxSupersteps
	if c.Parallelism > 0 {
		cfg.Parallelism = c.Parallelism
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	cfg.CheckpointEvery = c.CheckpointEvery
	cfg.RetryPolicy.MaxRetries = c.MaxRetries
	cfg.Logger = e.logger
	return cfg
}

// Results flattens the traverser trackers of a finished traversal
// computation, in vertex order.
func Results(r *pregel.Result) []dto.TraverserResult {
	var out []dto.TraverserResult
	for _, v := range r.Graph().Vertices() {
		raw, ok := r.ComputeValue(v.ID(), TrackerKey)
		if !ok {
			continue
		}
		tracker, ok := raw.(*Tracker)
		if !ok {
			continue
		}
		for _, res := range tracker.Results {
			entry := dto.TraverserResult{VertexID: v.ID(), Value: res.Value, Count: res.Count}
			if res.Path != nil {
				entry.Path = append([]any(nil), res.Path.Objects...)
			}
			out = append(out, entry)
		}
	}
	return out
}
