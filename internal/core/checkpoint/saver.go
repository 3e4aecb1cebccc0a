package checkpoint

import (
	"context"
	"time"
)

// Saver persists checkpoints.
type Saver interface {
	// Save persists a checkpoint
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves a checkpoint by ID
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// List returns checkpoints matching the filter, newest first
	List(ctx context.Context, filter Filter) ([]*Checkpoint, error)

	// Delete removes a checkpoint by ID
	Delete(ctx context.Context, id string) error
}

// Filter for checkpoint queries
type Filter struct {
	ComputationID string     `json:"computation_id,omitempty"`
	Program       string     `json:"program,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
	Before        *time.Time `json:"before,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	if f.Since != nil && f.Before != nil && f.Since.After(*f.Before) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Matches reports whether cp passes the filter's field and time constraints.
// Limit and Offset are applied by the caller.
func (f *Filter) Matches(cp *Checkpoint) bool {
	if f.ComputationID != "" && cp.ComputationID != f.ComputationID {
		return false
	}
	if f.Program != "" && cp.Program != f.Program {
		return false
	}
	if f.Since != nil && cp.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Before != nil && !cp.Timestamp.Before(*f.Before) {
		return false
	}
	for _, tag := range f.Tags {
		found := false
		for _, t := range cp.Metadata.Tags {
			if t == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
