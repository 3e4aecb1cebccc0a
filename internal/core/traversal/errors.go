package traversal

import "errors"

var (
	// Traverser errors
	ErrPathTrackingUnsupported = errors.New("path tracking is not enabled for this traversal")
	ErrDetachedValueAccess     = errors.New("traverser value is detached; inflate it against its vertex first")
	ErrLabelNotInPath          = errors.New("label not found in path")

	// Iteration errors
	ErrNoSuchElement = errors.New("traversal is exhausted")

	// Build errors
	ErrNoGraph            = errors.New("traversal has no graph to start from")
	ErrSourceNotFirst     = errors.New("source steps must start the traversal")
	ErrUnknownStepLabel   = errors.New("no step with that label")
	ErrDuplicateStepLabel = errors.New("step label already in use")
	ErrInvalidMatch       = errors.New("invalid match traversals")
	ErrInvalidStepSpec    = errors.New("invalid step specification")

	// Step errors
	ErrNotAVertex    = errors.New("value is not a vertex")
	ErrNotAnEdge     = errors.New("value is not an edge")
	ErrNotAnElement  = errors.New("value is not an element")
	ErrNotAProperty  = errors.New("value is not a property")
	ErrUnhashableKey = errors.New("group key is not hashable")
	ErrIncomparable  = errors.New("values are not comparable")
)
