package gremlin

import (
	"context"
	"io"
	"log/slog"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
	"github.com/flowgraph/gremlin/internal/adapters/repository/memory"
	"github.com/flowgraph/gremlin/internal/app/dto"
	"github.com/flowgraph/gremlin/internal/app/services"
	"github.com/flowgraph/gremlin/internal/app/usecases"
	"github.com/flowgraph/gremlin/internal/core/checkpoint"
	coregraph "github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/internal/core/pregel"
	"github.com/flowgraph/gremlin/internal/core/traversal"
)

// Re-export core types for convenience
type (
	Graph         = coregraph.Graph
	Vertex        = coregraph.Vertex
	Edge          = coregraph.Edge
	Element       = coregraph.Element
	Reference     = coregraph.Reference
	MemoryGraph   = graphrepo.MemoryGraph
	Traversal     = traversal.Traversal
	Traverser     = traversal.Traverser
	Path          = traversal.Path
	Strategy      = traversal.Strategy
	VertexProgram = pregel.VertexProgram
	Configuration = pregel.Configuration
	Globals       = pregel.Globals
	Config        = pregel.Config
	Result        = pregel.Result
	StreamHandler = pregel.StreamHandler
	Supplier      = usecases.Supplier
	Tracker       = usecases.Tracker
)

const (
	Out  = coregraph.Out
	In   = coregraph.In
	Both = coregraph.Both
)

// NewGraph returns an empty in-memory property graph.
func NewGraph() *MemoryGraph { return graphrepo.NewMemoryGraph() }

// LoadGraph reads a YAML graph document.
func LoadGraph(r io.Reader) (*MemoryGraph, error) { return graphrepo.LoadYAML(r) }

// ErrReadOnly is returned by property writes through a ReadOnly view.
var ErrReadOnly = graphrepo.ErrReadOnly

// ReadOnly returns a view of g whose traversals emit elements that reject
// property writes. g itself stays writable.
func ReadOnly(g Graph) Graph { return graphrepo.ReadOnly(g) }

// Traverse starts a traversal over g.
func Traverse(g Graph) *Traversal { return traversal.New(g) }

// Anon starts an anonymous traversal, for branches and suppliers.
func Anon() *Traversal { return traversal.Anon() }

// Compile builds a traversal over g from a step list such as
// []string{"V", "out:knows", "has:name=josh"}.
func Compile(g Graph, steps []string) (*Traversal, error) { return traversal.Compile(g, steps) }

// RegisterProgram makes a vertex program available to Configuration based
// submissions under name.
func RegisterProgram(name string, factory func() VertexProgram) {
	pregel.Register(name, factory)
}

// DefaultConfig returns the computer defaults.
func DefaultConfig() Config { return pregel.DefaultConfig() }

// Runtime wires a graph repository, a traversal executor and a checkpoint
// store. The default runtime keeps everything in memory.
type Runtime struct {
	graphs      *graphrepo.Repository
	saver       checkpoint.Saver
	executor    *usecases.TraversalExecutor
	checkpoints *services.CheckpointService
	handlers    []StreamHandler
	logger      *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithCheckpointSaver replaces the in-memory checkpoint store.
func WithCheckpointSaver(s checkpoint.Saver) Option {
	return func(rt *Runtime) { rt.saver = s }
}

// WithStreamHandlers attaches handlers to every computation the runtime runs.
func WithStreamHandlers(hs ...StreamHandler) Option {
	return func(rt *Runtime) { rt.handlers = append(rt.handlers, hs...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// NewRuntime constructs a runtime, in memory unless options say otherwise.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{graphs: graphrepo.NewRepository(), logger: slog.Default()}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.saver == nil {
		rt.saver = memory.DefaultSaver()
	}
	rt.executor = usecases.NewTraversalExecutor(rt.graphs,
		usecases.WithCheckpoints(rt.saver),
		usecases.WithStreamHandlers(rt.handlers...),
		usecases.WithLogger(rt.logger),
	)
	rt.checkpoints = services.NewCheckpointService(rt.saver)
	return rt
}

// SaveGraph stores g under id.
func (rt *Runtime) SaveGraph(ctx context.Context, id string, g Graph) error {
	return rt.graphs.Save(ctx, id, g)
}

// LoadGraphFile reads a YAML graph document and stores it under id.
func (rt *Runtime) LoadGraphFile(ctx context.Context, id, path string) (*MemoryGraph, error) {
	return rt.graphs.LoadFile(ctx, id, path)
}

// Graph returns the graph stored under id.
func (rt *Runtime) Graph(ctx context.Context, id string) (Graph, error) {
	return rt.graphs.Get(ctx, id)
}

// Execute runs a traversal request as a vertex program.
func (rt *Runtime) Execute(ctx context.Context, req *dto.TraversalRequest) (*dto.ComputationResponse, error) {
	return rt.executor.Execute(ctx, req)
}

// RunTraversal runs steps over the graph stored under graphID as a vertex
// program with default settings.
func (rt *Runtime) RunTraversal(ctx context.Context, graphID string, steps ...string) (*dto.ComputationResponse, error) {
	return rt.executor.Execute(ctx, &dto.TraversalRequest{GraphID: graphID, Steps: steps})
}

// Query runs steps over the stored graph in the calling goroutine and
// returns the emitted values.
func (rt *Runtime) Query(ctx context.Context, graphID string, steps ...string) ([]any, error) {
	g, err := rt.graphs.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}
	t, err := traversal.Compile(g, steps)
	if err != nil {
		return nil, err
	}
	return t.ToList()
}

// Submit runs the program named by cfg over the stored graph.
func (rt *Runtime) Submit(ctx context.Context, graphID string, cfg Configuration, computer Config) (*Result, error) {
	g, err := rt.graphs.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}
	program, err := pregel.DefaultRegistry.New(cfg)
	if err != nil {
		return nil, err
	}
	return rt.executor.Run(ctx, g, program, computer)
}

// SubmitProgram runs an initialized program over the stored graph.
func (rt *Runtime) SubmitProgram(ctx context.Context, graphID string, program VertexProgram, computer Config) (*Result, error) {
	g, err := rt.graphs.Get(ctx, graphID)
	if err != nil {
		return nil, err
	}
	return rt.executor.Run(ctx, g, program, computer)
}

// Checkpoints lists the newest checkpoints of a computation.
func (rt *Runtime) Checkpoints(ctx context.Context, computationID string) ([]dto.CheckpointSummary, error) {
	return rt.checkpoints.ListCheckpoints(ctx, computationID)
}

// Close releases the checkpoint store when it holds resources.
func (rt *Runtime) Close() error {
	if c, ok := rt.saver.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewTraversalProgram wraps a traversal supplier as a vertex program.
func NewTraversalProgram(s Supplier) (VertexProgram, error) {
	return usecases.NewTraversalVertexProgram(s)
}
