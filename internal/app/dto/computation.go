package dto

import (
	"time"
)

// TraversalRequest asks for a traversal to be run over a stored graph as a
// vertex program.
type TraversalRequest struct {
	GraphID string            `json:"graph_id" yaml:"graph"`
	Steps   []string          `json:"steps" yaml:"steps"`
	Config  ComputationConfig `json:"config" yaml:"config"`
}

// ComputationConfig contains configuration for a graph computation
type ComputationConfig struct {
	MaxSupersteps   int           `json:"max_supersteps" yaml:"max_supersteps"`     // Upper bound on supersteps
	Parallelism     int           `json:"parallelism" yaml:"parallelism"`           // Worker count, 0 for one per CPU
	Timeout         time.Duration `json:"timeout" yaml:"timeout"`                   // Per superstep
	CheckpointEvery int           `json:"checkpoint_every" yaml:"checkpoint_every"` // 0 disables checkpoints
	MaxRetries      int           `json:"max_retries" yaml:"max_retries"`           // Retries per vertex execution
}

// ComputationResponse represents the outcome of a graph computation
type ComputationResponse struct {
	ComputationID string            `json:"computation_id"`
	GraphID       string            `json:"graph_id"`
	Program       string            `json:"program"`
	Status        ComputationStatus `json:"status"`
	Results       []TraverserResult `json:"results,omitempty"`
	Globals       map[string]any    `json:"globals,omitempty"`
	Supersteps    int               `json:"supersteps"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	Duration      time.Duration     `json:"duration"`
	Error         string            `json:"error,omitempty"`
}

// ComputationStatus represents the status of a computation
type ComputationStatus string

const (
	ComputationStatusCompleted ComputationStatus = "completed"
	ComputationStatusFailed    ComputationStatus = "failed"
	ComputationStatusCancelled ComputationStatus = "cancelled"
)

// TraverserResult is a final traverser as recorded on the vertex it came to
// rest at. Elements are reported by reference.
type TraverserResult struct {
	VertexID any   `json:"vertex_id"`
	Value    any   `json:"value"`
	Count    int64 `json:"count"`
	Path     []any `json:"path,omitempty"`
}

// CheckpointSummary describes a stored checkpoint without its state.
type CheckpointSummary struct {
	ID            string    `json:"id"`
	ComputationID string    `json:"computation_id"`
	Program       string    `json:"program"`
	Superstep     int       `json:"superstep"`
	Timestamp     time.Time `json:"timestamp"`
	Tags          []string  `json:"tags,omitempty"`
}

// Validate checks the request and fills defaults.
func (req *TraversalRequest) Validate() error {
	if req.GraphID == "" {
		return ErrMissingGraphID
	}
	if len(req.Steps) == 0 {
		return ErrMissingSteps
	}
	return req.Config.Validate()
}

// Validate rejects negative settings and fills defaults.
func (c *ComputationConfig) Validate() error {
	if c.MaxSupersteps < 0 || c.Parallelism < 0 ||
		c.CheckpointEvery < 0 || c.MaxRetries < 0 || c.Timeout < 0 {
		return ErrInvalidConfig
	}
	if c.MaxSupersteps == 0 {
		c.MaxSupersteps = 100 // Default value
	}
	return nil
}
