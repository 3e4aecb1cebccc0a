// Package graph defines the property graph capability contract consumed by the
// traversal pipeline and the graph computer. Storage backends implement it;
// nothing in this package depends on a concrete store.
package graph

import "fmt"

// Direction selects incident edges relative to a vertex.
type Direction int

const (
	Out Direction = iota
	In
	Both
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the reverse direction. Both is its own opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case Out:
		return In
	case In:
		return Out
	default:
		return Both
	}
}

// ElementKind tags the three element shapes a traverser can carry.
type ElementKind uint8

const (
	KindVertex ElementKind = iota + 1
	KindEdge
	KindProperty
)

func (k ElementKind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindEdge:
		return "edge"
	case KindProperty:
		return "property"
	default:
		return "unknown"
	}
}

// Element is anything with an identity, a label and a property bag.
type Element interface {
	ID() any
	Label() string
	Property(key string) (any, bool)
	Keys() []string
	SetProperty(key string, value any) error
	RemoveProperty(key string) error
}

// Vertex is an element with incident edges.
type Vertex interface {
	Element
	// Edges returns incident edges in the given direction, restricted to the
	// labels when any are given.
	Edges(dir Direction, labels ...string) []Edge
	// Vertices returns the vertices at the other end of Edges(dir, labels...).
	Vertices(dir Direction, labels ...string) []Vertex
}

// Edge connects an out vertex to an in vertex. An edge is homed on its out vertex.
type Edge interface {
	Element
	OutVertex() Vertex
	InVertex() Vertex
}

// Graph enumerates its elements. Every call returns a fresh, finite sequence.
// With ids given, only the matching elements are returned.
type Graph interface {
	Vertices(ids ...any) []Vertex
	Edges(ids ...any) []Edge
}

// Property is a single key/value read off an element.
type Property struct {
	Key     string
	Value   any
	Element Element
}

func (p Property) String() string {
	return fmt.Sprintf("p[%s->%v]", p.Key, p.Value)
}

// Wrapper is implemented by decorators layered over storage elements.
type Wrapper interface {
	Unwrap() Element
}

// Decorator rewraps raw storage elements. Graphs that implement it get their
// elements decorated after every element-producing traversal step.
type Decorator interface {
	Decorate(e Element) Element
}

// Unwrap peels every decorator layer off e.
func Unwrap(e Element) Element {
	for {
		w, ok := e.(Wrapper)
		if !ok {
			return e
		}
		e = w.Unwrap()
	}
}

// Other returns the vertex at the far end of e as seen from v.
func Other(e Edge, v Vertex) Vertex {
	out := e.OutVertex()
	if Equal(out.ID(), v.ID()) {
		return e.InVertex()
	}
	return out
}

// HasLabel reports whether label is in labels. An empty set matches everything.
func HasLabel(labels []string, label string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
