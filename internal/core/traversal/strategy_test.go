package traversal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
	"github.com/flowgraph/gremlin/internal/core/graph"
)

func stepNames(tr *Traversal) []string {
	var out []string
	for _, s := range tr.Steps() {
		out = append(out, s.Name())
	}
	return out
}

func TestHasFoldingStrategy(t *testing.T) {
	g := modern(t)

	t.Run("folds leading has steps into the source", func(t *testing.T) {
		tr := New(g).V().Has("name", "marko").Identity().HasP("age", Lt, 30).Out()
		require.NoError(t, tr.ApplyStrategies())
		assert.Equal(t, []string{"V", "identity", "out"}, stepNames(tr))
		assert.Len(t, tr.Start().HasContainers(), 2)
		assert.Equal(t, []any{"vadas", "josh", "lop"}, names(t, tr))
	})

	t.Run("stops at a labeled step", func(t *testing.T) {
		tr := New(g).V().Has("name", "marko").As("m").Has("age", 29)
		require.NoError(t, tr.ApplyStrategies())
		assert.Equal(t, []string{"V", "has", "has"}, stepNames(tr))
	})

	t.Run("injected sources are left alone", func(t *testing.T) {
		tr := New(g).Inject(1).Identity()
		require.NoError(t, tr.ApplyStrategies())
		assert.Equal(t, []string{"inject", "identity"}, stepNames(tr))
	})
}

func TestElementWrappingStrategy(t *testing.T) {
	ro := graphrepo.ReadOnly(modern(t))
	tr := New(ro).V("marko").Out("knows").Values("name")

	require.NoError(t, tr.ApplyStrategies())
	require.NoError(t, tr.ApplyStrategies())
	assert.Equal(t, []string{"V", "wrap", "out", "wrap", "values"}, stepNames(tr))

	vs, err := New(ro).V("marko").Out("knows").ToList()
	require.NoError(t, err)
	require.Len(t, vs, 2)
	for _, v := range vs {
		err := v.(graph.Vertex).SetProperty("name", "x")
		assert.ErrorIs(t, err, graphrepo.ErrReadOnly)
	}

	t.Run("branches are wrapped too", func(t *testing.T) {
		branch := Anon().Out()
		tr := New(ro).V("marko").Union(branch)
		require.NoError(t, tr.ApplyStrategies())
		assert.Equal(t, []string{"out", "wrap"}, stepNames(branch))
	})

	t.Run("plain graphs get no adapters", func(t *testing.T) {
		tr := New(modern(t)).V().Out()
		require.NoError(t, tr.ApplyStrategies())
		assert.Equal(t, []string{"V", "out"}, stepNames(tr))
	})
}

func TestPathConsumerStrategy(t *testing.T) {
	g := modern(t)

	t.Run("a consumer in a branch enables tracking at the root", func(t *testing.T) {
		tr := New(g).V("marko").As("a").Union(Anon().Out("knows").Back("a"))
		ids, err := tr.ID().ToList()
		require.NoError(t, err)
		assert.Equal(t, []any{"marko", "marko"}, ids)
	})

	t.Run("seed follows the source's tracking mode", func(t *testing.T) {
		tr := New(g).V().Path()
		require.NoError(t, tr.ApplyStrategies())
		assert.True(t, tr.Start().Seed(1).Tracking())

		plain := New(g).V()
		require.NoError(t, plain.ApplyStrategies())
		assert.False(t, plain.Start().Seed(1).Tracking())
	})
}

type failingStrategy struct{}

func (failingStrategy) Name() string           { return "failing" }
func (failingStrategy) Apply(*Traversal) error { return errors.New("nope") }

func TestStrategies_Register(t *testing.T) {
	tr := New(modern(t)).V()
	tr.Strategies().Register(failingStrategy{})
	assert.Equal(t, []string{"hasFolding", "elementWrapping", "failing", "pathConsumer"}, tr.Strategies().Names())

	_, err := tr.ToList()
	assert.ErrorContains(t, err, "strategy failing: nope")

	tr = New(modern(t)).V()
	tr.Strategies().Register(failingStrategy{})
	tr.Strategies().Unregister("failing")
	_, err = tr.ToList()
	assert.NoError(t, err)
}
