package pregel

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadySubmitted      = errors.New("graph computer already submitted")
	ErrNoProgram             = errors.New("no vertex program configured")
	ErrUnknownVertexProgram  = errors.New("unknown vertex program")
	ErrInvalidConfiguration  = errors.New("invalid vertex program configuration")
	ErrInvalidComputeKeys    = errors.New("invalid compute keys")
	ErrUndeclaredComputeKey  = errors.New("property is not a declared compute key")
	ErrConstantComputeKey    = errors.New("constant compute key written after the initial superstep")
	ErrUndeclaredGlobalKey   = errors.New("global key not declared by the vertex program")
	ErrInvalidGlobalValue    = errors.New("value does not fit the global rule")
	ErrMaxSuperstepsExceeded = errors.New("maximum supersteps exceeded")
	ErrNilGraph              = errors.New("graph computer requires a graph")
)

// VertexError reports a vertex execution that failed after all retries.
type VertexError struct {
	VertexID  any
	Superstep int
	Attempt   int
	Err       error
}

func (e *VertexError) Error() string {
	return fmt.Sprintf("vertex %v failed in superstep %d on attempt %d: %v", e.VertexID, e.Superstep, e.Attempt, e.Err)
}

func (e *VertexError) Unwrap() error { return e.Err }
