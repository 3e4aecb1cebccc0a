package dto

import "errors"

// Request errors
var (
	ErrMissingGraphID    = errors.New("graph ID is required")
	ErrMissingSteps      = errors.New("at least one traversal step is required")
	ErrInvalidConfig     = errors.New("invalid computation configuration")
	ErrComputationFailed = errors.New("graph computation failed")
)
