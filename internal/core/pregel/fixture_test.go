package pregel

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
	"github.com/flowgraph/gremlin/internal/core/checkpoint"
	"github.com/flowgraph/gremlin/internal/core/graph"
)

// buildGraph adds the vertices, then one "link" edge per pair.
func buildGraph(t *testing.T, vertices []string, edges ...[2]string) *graphrepo.MemoryGraph {
	t.Helper()
	g := graphrepo.NewMemoryGraph()
	for _, id := range vertices {
		_, err := g.AddVertex(id, "node", map[string]any{"name": id})
		require.NoError(t, err)
	}
	for _, e := range edges {
		_, err := g.AddEdge(nil, "link", e[0], e[1], nil)
		require.NoError(t, err)
	}
	return g
}

func newComputer(t *testing.T, g graph.Graph, cfg Config) *GraphComputer {
	t.Helper()
	c, err := NewGraphComputer(g, cfg)
	require.NoError(t, err)
	return c
}

func runProgram(t *testing.T, c *GraphComputer, p VertexProgram) (*Result, error) {
	t.Helper()
	f, err := c.SubmitProgram(context.Background(), p)
	require.NoError(t, err)
	return f.Wait(context.Background())
}

// testProgram is assembled from funcs per test.
type testProgram struct {
	computeKeys map[string]KeyType
	globalKeys  []string
	combiner    MessageCombiner
	setup       func(Globals) error
	execute     func(graph.Vertex, Messenger, Globals) error
	terminate   func(Globals) bool
}

func (p *testProgram) Initialize(Configuration) error  { return nil }
func (p *testProgram) ComputeKeys() map[string]KeyType { return p.computeKeys }
func (p *testProgram) GlobalKeys() []string            { return p.globalKeys }
func (p *testProgram) Combiner() MessageCombiner       { return p.combiner }

func (p *testProgram) Setup(g Globals) error {
	if p.setup == nil {
		return nil
	}
	return p.setup(g)
}

func (p *testProgram) Execute(v graph.Vertex, m Messenger, g Globals) error {
	if p.execute == nil {
		return nil
	}
	return p.execute(v, m, g)
}

func (p *testProgram) Terminate(g Globals) bool {
	if p.terminate == nil {
		return true
	}
	return p.terminate(g)
}

// afterSupersteps halts once n supersteps have completed.
func afterSupersteps(n int) func(Globals) bool {
	return func(g Globals) bool { return g.Superstep() >= n }
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []*checkpoint.Checkpoint
}

func (s *recordingSaver) Save(_ context.Context, cp *checkpoint.Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, cp)
	return nil
}

func (s *recordingSaver) Load(_ context.Context, id string) (*checkpoint.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range s.saved {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, checkpoint.ErrCheckpointNotFound
}

func (s *recordingSaver) List(context.Context, checkpoint.Filter) ([]*checkpoint.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*checkpoint.Checkpoint(nil), s.saved...), nil
}

func (s *recordingSaver) Delete(context.Context, string) error { return nil }
