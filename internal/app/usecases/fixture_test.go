package usecases

import (
	"testing"

	"github.com/stretchr/testify/require"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
	"github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/internal/core/pregel"
)

// buildGraph creates vertices labeled "node" with a name property equal to
// their id, and "link" edges between them.
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

func chain(t *testing.T) *graphrepo.MemoryGraph {
	return buildGraph(t, []string{"a", "b", "c"}, [2]string{"a", "b"}, [2]string{"b", "c"})
}

func testConfig() pregel.Config {
	cfg := pregel.DefaultConfig()
	cfg.Parallelism = 4
	cfg.MaxSupersteps = 50
	return cfg
}

func trackerAt(t *testing.T, r *pregel.Result, id any) *Tracker {
	t.Helper()
	raw, ok := r.ComputeValue(id, TrackerKey)
	if !ok {
		return &Tracker{}
	}
	tr, ok := raw.(*Tracker)
	require.True(t, ok, "tracker at %v is %T", id, raw)
	return tr
}

func refID(t *testing.T, v any) any {
	t.Helper()
	ref, ok := v.(graph.Reference)
	require.True(t, ok, "%v is %T, not a reference", v, v)
	return ref.ID
}
