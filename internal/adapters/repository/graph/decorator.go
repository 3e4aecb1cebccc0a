package graphrepo

import (
	"errors"
	"fmt"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// ErrReadOnly is returned by writes through a read-only decorated element.
var ErrReadOnly = errors.New("element is read-only")

// ReadOnlyGraph decorates every element a traversal produces so that property
// writes are rejected. The underlying graph is untouched.
type ReadOnlyGraph struct {
	graph.Graph
}

// ReadOnly layers the read-only decorator over g.
func ReadOnly(g graph.Graph) *ReadOnlyGraph {
	return &ReadOnlyGraph{Graph: g}
}

// Decorate implements graph.Decorator.
func (g *ReadOnlyGraph) Decorate(e graph.Element) graph.Element {
	switch el := e.(type) {
	case *readOnlyVertex, *readOnlyEdge:
		return e
	case graph.Vertex:
		return &readOnlyVertex{Vertex: el}
	case graph.Edge:
		return &readOnlyEdge{Edge: el}
	}
	return e
}

type readOnlyVertex struct {
	graph.Vertex
}

func (v *readOnlyVertex) Unwrap() graph.Element { return v.Vertex }
func (v *readOnlyVertex) String() string        { return fmt.Sprintf("v[%v]", v.ID()) }

func (v *readOnlyVertex) SetProperty(key string, _ any) error {
	return fmt.Errorf("%w: v[%v].%s", ErrReadOnly, v.ID(), key)
}

func (v *readOnlyVertex) RemoveProperty(key string) error {
	return fmt.Errorf("%w: v[%v].%s", ErrReadOnly, v.ID(), key)
}

type readOnlyEdge struct {
	graph.Edge
}

func (e *readOnlyEdge) Unwrap() graph.Element { return e.Edge }
func (e *readOnlyEdge) String() string        { return fmt.Sprintf("e[%v]", e.ID()) }

func (e *readOnlyEdge) SetProperty(key string, _ any) error {
	return fmt.Errorf("%w: e[%v].%s", ErrReadOnly, e.ID(), key)
}

func (e *readOnlyEdge) RemoveProperty(key string) error {
	return fmt.Errorf("%w: e[%v].%s", ErrReadOnly, e.ID(), key)
}
