package gremlin

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/gremlin/internal/app/dto"
)

const modern = `
vertices:
  - {id: marko, label: person, properties: {name: marko, age: 29}}
  - {id: vadas, label: person, properties: {name: vadas, age: 27}}
  - {id: josh, label: person, properties: {name: josh, age: 32}}
  - {id: lop, label: software, properties: {name: lop, lang: java}}
edges:
  - {label: knows, out: marko, in: vadas}
  - {label: knows, out: marko, in: josh}
  - {label: created, out: josh, in: lop}
  - {label: created, out: marko, in: lop}
`

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	g, err := LoadGraph(strings.NewReader(modern))
	require.NoError(t, err)
	rt := NewRuntime()
	t.Cleanup(func() { _ = rt.Close() })
	require.NoError(t, rt.SaveGraph(context.Background(), "modern", g))
	return rt
}

func TestRuntime_Query(t *testing.T) {
	rt := newRuntime(t)
	values, err := rt.Query(context.Background(), "modern", "V:marko", "out:knows", "values:name")
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"vadas", "josh"}, values)
}

func TestRuntime_RunTraversal(t *testing.T) {
	rt := newRuntime(t)
	ctx := context.Background()

	resp, err := rt.RunTraversal(ctx, "modern", "V:marko", "out:knows", "out:created")
	require.NoError(t, err)
	assert.Equal(t, dto.ComputationStatusCompleted, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "lop", resp.Results[0].VertexID)
	assert.Equal(t, int64(1), resp.Results[0].Count)

	list, err := rt.Checkpoints(ctx, resp.ComputationID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRuntime_LocalAndComputerAgree(t *testing.T) {
	rt := newRuntime(t)
	ctx := context.Background()
	steps := []string{"V", "out", "values:name"}

	local, err := rt.Query(ctx, "modern", steps...)
	require.NoError(t, err)

	resp, err := rt.RunTraversal(ctx, "modern", steps...)
	require.NoError(t, err)
	var remote []any
	for _, r := range resp.Results {
		for i := int64(0); i < r.Count; i++ {
			remote = append(remote, r.Value)
		}
	}
	assert.ElementsMatch(t, local, remote)
}

func TestRuntime_Submit(t *testing.T) {
	rt := newRuntime(t)
	ctx := context.Background()

	program, err := NewTraversalProgram(func() (*Traversal, error) {
		return Anon().V("marko").Out("created"), nil
	})
	require.NoError(t, err)
	result, err := rt.SubmitProgram(ctx, "modern", program, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Supersteps())

	_, err = rt.Submit(ctx, "missing", Configuration{}, DefaultConfig())
	assert.Error(t, err)
}

func TestReadOnly(t *testing.T) {
	g, err := LoadGraph(strings.NewReader(modern))
	require.NoError(t, err)

	values, err := Traverse(ReadOnly(g)).V("marko").ToList()
	require.NoError(t, err)
	require.Len(t, values, 1)
	marko, ok := values[0].(Vertex)
	require.True(t, ok)
	assert.ErrorIs(t, marko.SetProperty("age", 30), ErrReadOnly)

	stored, err := g.Vertex("marko")
	require.NoError(t, err)
	require.NoError(t, stored.SetProperty("age", 30))
	age, _ := stored.Property("age")
	assert.Equal(t, 30, age)
}
