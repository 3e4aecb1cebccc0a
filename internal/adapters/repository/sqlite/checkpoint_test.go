package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/flowgraph/gremlin/internal/core/checkpoint"
	"github.com/flowgraph/gremlin/pkg/serialization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSaver(t *testing.T) *CheckpointSaver {
	t.Helper()
	saver, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = saver.Close() })
	return saver
}

func sample(id, computation string, step int, ts time.Time, tags ...string) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		ID:            id,
		ComputationID: computation,
		Program:       "pageRank",
		State: map[string]any{
			"globals": map[string]any{"changed": true},
			"compute": map[string]any{"a": map[string]any{"rank": 0.25}},
		},
		Metadata:  checkpoint.Metadata{Superstep: step, Source: "barrier", Tags: tags},
		Timestamp: ts,
		Version:   "1",
	}
}

func TestSQLiteCheckpointSaver(t *testing.T) {
	ctx := context.Background()
	saver := openSaver(t)

	cp := sample("cp-1", "comp-1", 2, time.Now(), "final")
	require.NoError(t, saver.Save(ctx, cp))

	loaded, err := saver.Load(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.ID, loaded.ID)
	assert.Equal(t, cp.ComputationID, loaded.ComputationID)
	assert.Equal(t, cp.Program, loaded.Program)
	assert.Equal(t, 2, loaded.Metadata.Superstep)
	assert.Equal(t, []string{"final"}, loaded.Metadata.Tags)
	assert.True(t, cp.Timestamp.Equal(loaded.Timestamp))

	globals, ok := loaded.State["globals"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, globals["changed"])
	compute := loaded.State["compute"].(map[string]any)
	assert.Equal(t, 0.25, compute["a"].(map[string]any)["rank"])

	list, err := saver.List(ctx, checkpoint.Filter{ComputationID: "comp-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "cp-1", list[0].ID)

	require.NoError(t, saver.Delete(ctx, "cp-1"))
	_, err = saver.Load(ctx, "cp-1")
	assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
	assert.ErrorIs(t, saver.Delete(ctx, "cp-1"), checkpoint.ErrCheckpointNotFound)
}

func TestSQLiteCheckpointSaver_List(t *testing.T) {
	ctx := context.Background()
	saver := openSaver(t)

	base := time.Now()
	require.NoError(t, saver.Save(ctx, sample("a", "comp-1", 1, base.Add(-2*time.Hour))))
	require.NoError(t, saver.Save(ctx, sample("b", "comp-1", 2, base.Add(-time.Hour), "final")))
	c := sample("c", "comp-2", 1, base)
	c.Program = "shortestPath"
	require.NoError(t, saver.Save(ctx, c))

	ids := func(list []*checkpoint.Checkpoint) []string {
		out := make([]string, len(list))
		for i, cp := range list {
			out[i] = cp.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter checkpoint.Filter
		want   []string
	}{
		{"all newest first", checkpoint.Filter{}, []string{"c", "b", "a"}},
		{"computation", checkpoint.Filter{ComputationID: "comp-1"}, []string{"b", "a"}},
		{"program", checkpoint.Filter{Program: "shortestPath"}, []string{"c"}},
		{"since is inclusive", checkpoint.Filter{Since: ptr(base.Add(-time.Hour))}, []string{"c", "b"}},
		{"before is exclusive", checkpoint.Filter{Before: ptr(base.Add(-time.Hour))}, []string{"a"}},
		{"limit", checkpoint.Filter{Limit: 2}, []string{"c", "b"}},
		{"offset only", checkpoint.Filter{Offset: 2}, []string{"a"}},
		{"limit and offset", checkpoint.Filter{Limit: 1, Offset: 1}, []string{"b"}},
		{"tags", checkpoint.Filter{Tags: []string{"final"}}, []string{"b"}},
		{"tags with offset past end", checkpoint.Filter{Tags: []string{"final"}, Offset: 1}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := saver.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(list))
		})
	}

	t.Run("invalid filter", func(t *testing.T) {
		_, err := saver.List(ctx, checkpoint.Filter{Offset: -1})
		assert.ErrorIs(t, err, checkpoint.ErrInvalidOffset)
	})
}

func TestSQLiteCheckpointSaver_TableName(t *testing.T) {
	saver := NewCheckpointSaver(nil, serialization.Default())
	assert.Equal(t, "checkpoints", saver.tableName)
	saver.WithTableName("bad name; DROP")
	assert.Equal(t, "checkpoints", saver.tableName)
	saver.WithTableName("runs_2")
	assert.Equal(t, "runs_2", saver.tableName)
}

func TestSQLiteCheckpointSaver_Errors(t *testing.T) {
	ctx := context.Background()
	saver := &CheckpointSaver{
		db:         nil,
		serializer: serialization.Default(),
		tableName:  "checkpoints",
	}

	assert.ErrorIs(t, saver.Save(ctx, nil), checkpoint.ErrInvalidCheckpointID)
	assert.ErrorIs(t, saver.Save(ctx, &checkpoint.Checkpoint{ID: "x"}), checkpoint.ErrInvalidComputationID)

	_, err := saver.Load(ctx, "")
	assert.ErrorIs(t, err, checkpoint.ErrInvalidCheckpointID)
	assert.ErrorIs(t, saver.Delete(ctx, ""), checkpoint.ErrInvalidCheckpointID)
	assert.NoError(t, saver.Close())
}

func ptr[T any](v T) *T { return &v }
