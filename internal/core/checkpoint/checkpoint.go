// Package checkpoint defines the snapshot a graph computation persists at a
// superstep barrier, and the storage contract savers implement.
package checkpoint

import (
	"time"
)

// Checkpoint is the committed state of a computation after a barrier:
// its globals and every vertex's compute keys.
type Checkpoint struct {
	ID            string         `json:"id" msgpack:"id"`
	ComputationID string         `json:"computation_id" msgpack:"computation_id"`
	Program       string         `json:"program" msgpack:"program"`
	State         map[string]any `json:"state" msgpack:"state"`
	Metadata      Metadata       `json:"metadata" msgpack:"metadata"`
	Timestamp     time.Time      `json:"timestamp" msgpack:"timestamp"`
	Version       string         `json:"version" msgpack:"version"`
}

// Metadata contains additional information about a checkpoint
type Metadata struct {
	// Superstep is the number of completed supersteps.
	Superstep int      `json:"superstep" msgpack:"superstep"`
	Source    string   `json:"source" msgpack:"source"`
	CreatedBy string   `json:"created_by,omitempty" msgpack:"created_by,omitempty"`
	Tags      []string `json:"tags,omitempty" msgpack:"tags,omitempty"`
}

// Validate ensures checkpoint integrity
func (c *Checkpoint) Validate() error {
	if c.ID == "" {
		return ErrInvalidCheckpointID
	}
	if c.ComputationID == "" {
		return ErrInvalidComputationID
	}
	if c.Program == "" {
		return ErrInvalidProgram
	}
	if c.State == nil {
		return ErrNilState
	}
	if c.Metadata.Superstep < 0 {
		return ErrInvalidSuperstep
	}
	return nil
}
