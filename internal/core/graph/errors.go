package graph

import "errors"

var (
	// Element errors
	ErrNilElement       = errors.New("element cannot be nil")
	ErrInvalidID        = errors.New("invalid element ID")
	ErrInvalidLabel     = errors.New("invalid element label")
	ErrInvalidKey       = errors.New("property key cannot be empty")
	ErrDuplicateElement = errors.New("duplicate element ID")
	ErrVertexNotFound   = errors.New("vertex not found")
	ErrEdgeNotFound     = errors.New("edge not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrGraphNotFound    = errors.New("graph not found")

	// Reference errors
	ErrNotAnElement  = errors.New("value is not a graph element")
	ErrElementRemote = errors.New("element is not local to the vertex")
)
