package graph

import (
	"fmt"
	"reflect"
)

// Reference is the detached form of an element: identity and label only.
// It is what crosses a vertex boundary in place of the element itself.
type Reference struct {
	Kind  ElementKind `msgpack:"kind" json:"kind"`
	ID    any         `msgpack:"id" json:"id"`
	Label string      `msgpack:"label" json:"label"`
	// HostID is the id of the vertex that owns the element: a vertex owns
	// itself, an edge is owned by its out vertex, a property by its element's host.
	HostID any `msgpack:"host_id" json:"host_id"`
	// OwnerKind and OwnerID locate the element holding a property.
	OwnerKind ElementKind `msgpack:"owner_kind,omitempty" json:"owner_kind,omitempty"`
	OwnerID   any         `msgpack:"owner_id,omitempty" json:"owner_id,omitempty"`
}

func (r Reference) String() string {
	switch r.Kind {
	case KindVertex:
		return fmt.Sprintf("v[%v]", r.ID)
	case KindEdge:
		return fmt.Sprintf("e[%v][%v-%s->]", r.ID, r.HostID, r.Label)
	case KindProperty:
		return fmt.Sprintf("p[%s@%v]", r.Label, r.OwnerID)
	default:
		return "ref[?]"
	}
}

// Detach builds the reference for an element value. The second result is
// false for anything that is not a vertex, edge, property or reference.
func Detach(v any) (Reference, bool) {
	switch e := v.(type) {
	case Reference:
		return e, true
	case *Reference:
		if e == nil {
			return Reference{}, false
		}
		return *e, true
	case Vertex:
		return Reference{Kind: KindVertex, ID: e.ID(), Label: e.Label(), HostID: e.ID()}, true
	case Edge:
		return Reference{Kind: KindEdge, ID: e.ID(), Label: e.Label(), HostID: e.OutVertex().ID()}, true
	case Property:
		return detachProperty(e)
	case *Property:
		if e == nil {
			return Reference{}, false
		}
		return detachProperty(*e)
	}
	return Reference{}, false
}

func detachProperty(p Property) (Reference, bool) {
	owner, ok := Detach(p.Element)
	if !ok {
		return Reference{}, false
	}
	return Reference{
		Kind:      KindProperty,
		ID:        owner.ID,
		Label:     p.Key,
		HostID:    owner.HostID,
		OwnerKind: owner.Kind,
		OwnerID:   owner.ID,
	}, true
}

// IsElement reports whether v is a graph element or a reference to one.
func IsElement(v any) bool {
	_, ok := Detach(v)
	return ok
}

// Resolve turns a reference back into a live element using only what is
// reachable from the local vertex: the vertex itself, its out edges, and
// properties of either.
func Resolve(r Reference, local Vertex) (any, error) {
	if local == nil {
		return nil, ErrNilElement
	}
	switch r.Kind {
	case KindVertex:
		if !Equal(r.ID, local.ID()) {
			return nil, fmt.Errorf("%w: %s at v[%v]", ErrElementRemote, r, local.ID())
		}
		return local, nil
	case KindEdge:
		return localEdge(r.ID, local)
	case KindProperty:
		var owner Element
		switch r.OwnerKind {
		case KindVertex:
			if !Equal(r.OwnerID, local.ID()) {
				return nil, fmt.Errorf("%w: %s at v[%v]", ErrElementRemote, r, local.ID())
			}
			owner = local
		case KindEdge:
			e, err := localEdge(r.OwnerID, local)
			if err != nil {
				return nil, err
			}
			owner = e
		default:
			return nil, ErrNotAnElement
		}
		value, ok := owner.Property(r.Label)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, r)
		}
		return Property{Key: r.Label, Value: value, Element: owner}, nil
	}
	return nil, ErrNotAnElement
}

func localEdge(id any, local Vertex) (Edge, error) {
	for _, e := range local.Edges(Out) {
		if Equal(e.ID(), id) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: e[%v] at v[%v]", ErrElementRemote, id, local.ID())
}

// Equal compares two values the way traversers are compared: elements and
// references by kind and identity, everything else by value.
func Equal(a, b any) bool {
	ra, aok := Detach(a)
	rb, bok := Detach(b)
	if aok || bok {
		if !aok || !bok || ra.Kind != rb.Kind {
			return false
		}
		if ra.Kind == KindProperty {
			return ra.Label == rb.Label && ra.OwnerKind == rb.OwnerKind && scalarEqual(ra.OwnerID, rb.OwnerID)
		}
		return scalarEqual(ra.ID, rb.ID)
	}
	return scalarEqual(a, b)
}

func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == tb && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
