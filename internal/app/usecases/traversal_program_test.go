package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/internal/core/pregel"
	"github.com/flowgraph/gremlin/internal/core/traversal"
)

func runTraversal(t *testing.T, g graph.Graph, steps ...string) *pregel.Result {
	t.Helper()
	program, err := pregel.DefaultRegistry.New(TraversalStepsConfig(steps...))
	require.NoError(t, err)
	result, err := NewTraversalExecutor(nil).Run(context.Background(), g, program, testConfig())
	require.NoError(t, err)
	return result
}

func TestTraversalVertexProgram_Chain(t *testing.T) {
	result := runTraversal(t, chain(t), "V:a", "out", "out")

	c := trackerAt(t, result, "c")
	require.Len(t, c.Results, 1)
	assert.Equal(t, int64(1), c.Total())
	assert.Equal(t, "c", refID(t, c.Results[0].Value))
	assert.Nil(t, c.Results[0].Path)

	assert.Empty(t, trackerAt(t, result, "a").Results)
	assert.Empty(t, trackerAt(t, result, "b").Results)

	// seed, a->b, b->c, rest at c
	assert.Equal(t, 4, result.Supersteps())
	halt, ok := result.Globals.Get(VoteToHaltKey)
	require.True(t, ok)
	assert.Equal(t, true, halt)
}

func TestTraversalVertexProgram_CountsConverging(t *testing.T) {
	g := buildGraph(t, []string{"a", "b", "c", "d"},
		[2]string{"a", "b"}, [2]string{"a", "c"}, [2]string{"b", "d"}, [2]string{"c", "d"})

	result := runTraversal(t, g, "V:a", "out", "out")

	d := trackerAt(t, result, "d")
	require.Len(t, d.Results, 1)
	assert.Equal(t, int64(2), d.Results[0].Count)
	assert.Equal(t, 4, result.Supersteps())
}

func TestTraversalVertexProgram_TrackPathsKey(t *testing.T) {
	t.Run("forces paths without a path step", func(t *testing.T) {
		cfg := TraversalStepsConfig("V:a", "out", "out")
		cfg[TrackPathsKey] = true
		program, err := pregel.DefaultRegistry.New(cfg)
		require.NoError(t, err)
		assert.True(t, program.(*TraversalVertexProgram).TrackPaths())

		result, err := NewTraversalExecutor(nil).Run(context.Background(), chain(t), program, testConfig())
		require.NoError(t, err)

		c := trackerAt(t, result, "c")
		require.Len(t, c.Results, 1)
		r := c.Results[0]
		assert.Equal(t, "c", refID(t, r.Value))
		require.NotNil(t, r.Path)
		require.Equal(t, 3, r.Path.Size())
		assert.Equal(t, "a", refID(t, r.Path.Objects[0]))
		assert.Equal(t, "b", refID(t, r.Path.Objects[1]))
		assert.Equal(t, "c", refID(t, r.Path.Objects[2]))
	})

	t.Run("defaults to the traversal", func(t *testing.T) {
		program, err := pregel.DefaultRegistry.New(TraversalStepsConfig("V:a", "out"))
		require.NoError(t, err)
		assert.False(t, program.(*TraversalVertexProgram).TrackPaths())
	})

	t.Run("rejects a non boolean", func(t *testing.T) {
		cfg := TraversalStepsConfig("V:a", "out")
		cfg[TrackPathsKey] = "sometimes"
		_, err := pregel.DefaultRegistry.New(cfg)
		assert.ErrorIs(t, err, pregel.ErrInvalidConfiguration)
	})
}

func TestTraversalVertexProgram_PathTracking(t *testing.T) {
	program, err := NewTraversalVertexProgram(func() (*traversal.Traversal, error) {
		return traversal.Anon().V("a").Out().Out().Path(), nil
	})
	require.NoError(t, err)
	assert.True(t, program.TrackPaths())

	result, err := NewTraversalExecutor(nil).Run(context.Background(), chain(t), program, testConfig())
	require.NoError(t, err)

	c := trackerAt(t, result, "c")
	require.Len(t, c.Results, 1)
	r := c.Results[0]
	assert.Equal(t, int64(1), r.Count)

	// The emitted path covers the three vertices.
	value, ok := r.Value.(*traversal.Path)
	require.True(t, ok)
	require.Equal(t, 3, value.Size())
	assert.Equal(t, "a", refID(t, value.Objects[0]))
	assert.Equal(t, "b", refID(t, value.Objects[1]))
	assert.Equal(t, "c", refID(t, value.Objects[2]))

	// The traverser's own path also records the path step.
	require.NotNil(t, r.Path)
	require.Equal(t, 4, r.Path.Size())
	nested, ok := r.Path.Objects[3].(*traversal.Path)
	require.True(t, ok)
	assert.True(t, nested.Equal(value))
}

func TestTraversalVertexProgram_EdgeStart(t *testing.T) {
	result := runTraversal(t, chain(t), "E", "inV")

	b := trackerAt(t, result, "b")
	c := trackerAt(t, result, "c")
	require.Len(t, b.Results, 1)
	require.Len(t, c.Results, 1)
	assert.Equal(t, "b", refID(t, b.Results[0].Value))
	assert.Equal(t, "c", refID(t, c.Results[0].Value))
	assert.Equal(t, 3, result.Supersteps())
}

func TestTraversalVertexProgram_LocalValues(t *testing.T) {
	result := runTraversal(t, chain(t), "V", "has:name=b", "out", "values:name")

	c := trackerAt(t, result, "c")
	require.Len(t, c.Results, 1)
	assert.Equal(t, "c", c.Results[0].Value)

	// seed, b->c, values at c
	assert.Equal(t, 3, result.Supersteps())
	assert.Empty(t, trackerAt(t, result, "a").Results)
}

func TestTraversalVertexProgram_NoStarts(t *testing.T) {
	result := runTraversal(t, chain(t), "V:zzz", "out")
	assert.Equal(t, 1, result.Supersteps())
	assert.Empty(t, Results(result))
}

func TestTraversalVertexProgram_Initialize(t *testing.T) {
	tests := []struct {
		name string
		cfg  pregel.Configuration
	}{
		{"nothing to run", pregel.Configuration{pregel.VertexProgramKey: TraversalProgram}},
		{"unknown step", TraversalStepsConfig("V", "sideways")},
		{"injected start", TraversalStepsConfig("inject:1,2", "identity")},
		{"failing supplier", TraversalConfig(func() (*traversal.Traversal, error) {
			return nil, assert.AnError
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pregel.DefaultRegistry.New(tt.cfg)
			assert.ErrorIs(t, err, pregel.ErrInvalidConfiguration)
		})
	}

	t.Run("steps as a string", func(t *testing.T) {
		p, err := pregel.DefaultRegistry.New(pregel.Configuration{
			pregel.VertexProgramKey: TraversalProgram,
			StepsKey:                "V out:link",
		})
		require.NoError(t, err)
		assert.Contains(t, p.(*TraversalVertexProgram).String(), "out@")
	})

	t.Run("steps from yaml", func(t *testing.T) {
		_, err := pregel.DefaultRegistry.New(pregel.Configuration{
			pregel.VertexProgramKey: TraversalProgram,
			StepsKey:                []any{"V", "out"},
		})
		assert.NoError(t, err)
	})
}

func TestTraversalVertexProgram_Keys(t *testing.T) {
	p, err := NewTraversalVertexProgram(func() (*traversal.Traversal, error) {
		return traversal.Anon().V().Out(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]pregel.KeyType{TrackerKey: pregel.Variable}, p.ComputeKeys())
	assert.Equal(t, []string{VoteToHaltKey}, p.GlobalKeys())
	assert.False(t, p.TrackPaths())
	assert.Equal(t, TraversalProgram, p.Name())
}

func TestTracker_Add(t *testing.T) {
	tracker := &Tracker{}
	tracker.add(traversal.NewTraverser("x"), false)
	tracker.add(traversal.NewTraverser("x"), false)
	tracker.add(traversal.NewTraverser(2), false)

	require.Len(t, tracker.Results, 2)
	assert.Equal(t, int64(2), tracker.Results[0].Count)
	assert.Equal(t, int64(3), tracker.Total())

	clone := tracker.clone()
	clone.add(traversal.NewTraverser("x"), false)
	assert.Equal(t, int64(2), tracker.Results[0].Count)
	assert.Equal(t, int64(3), clone.Results[0].Count)

	paths := &Tracker{}
	paths.add(traversal.NewPathTraverser("s", "x"), true)
	paths.add(traversal.NewPathTraverser("t", "x"), true)
	paths.add(traversal.NewPathTraverser("s", "x"), true)
	require.Len(t, paths.Results, 2)
	assert.Equal(t, int64(2), paths.Results[0].Count)
}
