package traversal

import (
	"testing"

	"github.com/stretchr/testify/require"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
)

// modern builds the small people/software graph used across the tests.
func modern(t *testing.T) *graphrepo.MemoryGraph {
	t.Helper()
	g := graphrepo.NewMemoryGraph()
	vertices := []struct {
		id, label string
		props     map[string]any
	}{
		{"marko", "person", map[string]any{"name": "marko", "age": 29}},
		{"vadas", "person", map[string]any{"name": "vadas", "age": 27}},
		{"josh", "person", map[string]any{"name": "josh", "age": 32}},
		{"peter", "person", map[string]any{"name": "peter", "age": 35}},
		{"lop", "software", map[string]any{"name": "lop", "lang": "java"}},
		{"ripple", "software", map[string]any{"name": "ripple", "lang": "scala"}},
	}
	for _, v := range vertices {
		_, err := g.AddVertex(v.id, v.label, v.props)
		require.NoError(t, err)
	}
	edges := []struct{ id, label, out, in string }{
		{"7", "knows", "marko", "vadas"},
		{"8", "knows", "marko", "josh"},
		{"9", "created", "marko", "lop"},
		{"10", "created", "josh", "ripple"},
		{"11", "created", "josh", "lop"},
		{"12", "created", "peter", "lop"},
	}
	for _, e := range edges {
		_, err := g.AddEdge(e.id, e.label, e.out, e.in, map[string]any{"weight": 0.5})
		require.NoError(t, err)
	}
	return g
}

func names(t *testing.T, tr *Traversal) []any {
	t.Helper()
	out, err := tr.Values("name").ToList()
	require.NoError(t, err)
	return out
}
