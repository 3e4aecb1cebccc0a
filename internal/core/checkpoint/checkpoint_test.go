package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckpoint_Validate(t *testing.T) {
	valid := func() *Checkpoint {
		return &Checkpoint{ID: "1", ComputationID: "c", Program: "pageRank", State: map[string]any{}}
	}
	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Checkpoint)
		want   error
	}{
		{"id", func(c *Checkpoint) { c.ID = "" }, ErrInvalidCheckpointID},
		{"computation", func(c *Checkpoint) { c.ComputationID = "" }, ErrInvalidComputationID},
		{"program", func(c *Checkpoint) { c.Program = "" }, ErrInvalidProgram},
		{"state", func(c *Checkpoint) { c.State = nil }, ErrNilState},
		{"superstep", func(c *Checkpoint) { c.Metadata.Superstep = -1 }, ErrInvalidSuperstep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := valid()
			tt.mutate(cp)
			assert.ErrorIs(t, cp.Validate(), tt.want)
		})
	}
}

func TestFilter(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	assert.ErrorIs(t, (&Filter{Limit: -1}).Validate(), ErrInvalidLimit)
	assert.ErrorIs(t, (&Filter{Offset: -1}).Validate(), ErrInvalidOffset)
	assert.ErrorIs(t, (&Filter{Since: &now, Before: &earlier}).Validate(), ErrInvalidTimeRange)

	cp := &Checkpoint{ComputationID: "c1", Program: "pageRank", Timestamp: now, Metadata: Metadata{Tags: []string{"a", "b"}}}
	assert.True(t, (&Filter{}).Matches(cp))
	assert.True(t, (&Filter{ComputationID: "c1", Tags: []string{"b"}}).Matches(cp))
	assert.False(t, (&Filter{ComputationID: "c2"}).Matches(cp))
	assert.False(t, (&Filter{Program: "shortestPath"}).Matches(cp))
	assert.False(t, (&Filter{Tags: []string{"c"}}).Matches(cp))
	assert.True(t, (&Filter{Since: &earlier}).Matches(cp))
	assert.False(t, (&Filter{Before: &earlier}).Matches(cp))
}
