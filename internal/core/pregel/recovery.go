package pregel

import (
	"context"
	"time"
)

// ErrorRecoveryHandler decides whether a failed vertex execution is retried.
type ErrorRecoveryHandler struct {
	policy RetryPolicy
}

func NewErrorRecoveryHandler(policy RetryPolicy) *ErrorRecoveryHandler {
	return &ErrorRecoveryHandler{policy: policy}
}

// HandleError returns true when attempt (0-based) may be retried, after
// waiting out the exponential backoff. Otherwise it returns the final
// *VertexError. A cancelled context ends the wait without a retry.
func (erh *ErrorRecoveryHandler) HandleError(ctx context.Context, vertexID any, superstep int, err error, attempt int) (bool, error) {
	final := &VertexError{VertexID: vertexID, Superstep: superstep, Attempt: attempt, Err: err}
	if attempt >= erh.policy.MaxRetries {
		return false, final
	}

	if erh.policy.BackoffMs > 0 {
		backoff := time.Duration(erh.policy.BackoffMs*(1<<attempt)) * time.Millisecond
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, final
		}
	}

	return true, nil
}
