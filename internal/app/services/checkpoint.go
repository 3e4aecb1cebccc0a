package services

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/flowgraph/gremlin/internal/app/dto"
	"github.com/flowgraph/gremlin/internal/core/checkpoint"
)

// listLimit bounds a single listing.
const listLimit = 100

// CheckpointService inspects and prunes the checkpoints that graph
// computations leave behind.
type CheckpointService struct {
	saver checkpoint.Saver
}

// NewCheckpointService creates a new checkpoint service
func NewCheckpointService(saver checkpoint.Saver) *CheckpointService {
	return &CheckpointService{
		saver: saver,
	}
}

// ListCheckpoints summarizes the newest checkpoints of a computation. An
// empty computationID lists across computations.
func (s *CheckpointService) ListCheckpoints(ctx context.Context, computationID string) ([]dto.CheckpointSummary, error) {
	checkpoints, err := s.saver.List(ctx, checkpoint.Filter{ComputationID: computationID, Limit: listLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	summaries := make([]dto.CheckpointSummary, 0, len(checkpoints))
	for _, cp := range checkpoints {
		summaries = append(summaries, Summarize(cp))
	}
	return summaries, nil
}

// Latest returns the most recent checkpoint of a computation.
func (s *CheckpointService) Latest(ctx context.Context, computationID string) (*checkpoint.Checkpoint, error) {
	if computationID == "" {
		return nil, checkpoint.ErrInvalidComputationID
	}
	checkpoints, err := s.saver.List(ctx, checkpoint.Filter{ComputationID: computationID, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	if len(checkpoints) == 0 {
		return nil, fmt.Errorf("%w: no checkpoint for computation %s", checkpoint.ErrCheckpointNotFound, computationID)
	}
	return checkpoints[0], nil
}

// LoadCheckpoint loads a checkpoint including its state.
func (s *CheckpointService) LoadCheckpoint(ctx context.Context, checkpointID string) (*checkpoint.Checkpoint, error) {
	cp, err := s.saver.Load(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// Tag adds tags to a stored checkpoint. Tags already present are kept once.
func (s *CheckpointService) Tag(ctx context.Context, checkpointID string, tags ...string) error {
	cp, err := s.LoadCheckpoint(ctx, checkpointID)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(cp.Metadata.Tags))
	for _, t := range cp.Metadata.Tags {
		seen[t] = true
	}
	for _, t := range tags {
		if t != "" && !seen[t] {
			cp.Metadata.Tags = append(cp.Metadata.Tags, t)
			seen[t] = true
		}
	}
	if err := s.saver.Save(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Prune deletes all but the newest keep checkpoints of a computation and
// reports how many were removed. Delete failures do not stop the sweep.
func (s *CheckpointService) Prune(ctx context.Context, computationID string, keep int) (int, error) {
	if computationID == "" {
		return 0, checkpoint.ErrInvalidComputationID
	}
	if keep < 0 {
		return 0, fmt.Errorf("keep must not be negative, got %d", keep)
	}
	stale, err := s.saver.List(ctx, checkpoint.Filter{ComputationID: computationID, Offset: keep})
	if err != nil {
		return 0, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var result *multierror.Error
	removed := 0
	for _, cp := range stale {
		if err := s.saver.Delete(ctx, cp.ID); err != nil {
			result = multierror.Append(result, fmt.Errorf("delete %s: %w", cp.ID, err))
			continue
		}
		removed++
	}
	return removed, result.ErrorOrNil()
}

// Summarize drops the state of a checkpoint.
func Summarize(cp *checkpoint.Checkpoint) dto.CheckpointSummary {
	return dto.CheckpointSummary{
		ID:            cp.ID,
		ComputationID: cp.ComputationID,
		Program:       cp.Program,
		Superstep:     cp.Metadata.Superstep,
		Timestamp:     cp.Timestamp,
		Tags:          cp.Metadata.Tags,
	}
}
