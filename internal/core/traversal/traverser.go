package traversal

import (
	"fmt"
	"strings"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// NoFuture marks a traverser with no further routing: either it has not been
// routed yet or it has reached the end of its pipeline.
const NoFuture = ""

// Traverser is the unit that flows through a pipeline. It carries a value,
// a loop counter, a routing label and, when tracking is enabled, its path.
//
// While deflated, the value is held as a graph.Reference and only identity
// and label may be read.
type Traverser struct {
	value  any
	ref    *graph.Reference
	loops  int
	future string
	path   *Path
}

// NewTraverser builds a value-only traverser.
func NewTraverser(value any) *Traverser {
	return &Traverser{value: value}
}

// NewPathTraverser builds a traverser whose path starts at (label, value).
func NewPathTraverser(label string, value any) *Traverser {
	return &Traverser{value: value, path: (&Path{}).Extend(label, value)}
}

// Get returns the current value.
func (t *Traverser) Get() (any, error) {
	if t.ref != nil {
		return nil, fmt.Errorf("%w: %s", ErrDetachedValueAccess, t.ref)
	}
	return t.value, nil
}

// Set replaces the current value in place, leaving the path untouched.
func (t *Traverser) Set(value any) {
	t.value = value
	t.ref = nil
}

func (t *Traverser) Loops() int { return t.loops }

func (t *Traverser) IncrLoops() { t.loops++ }

func (t *Traverser) ResetLoops() { t.loops = 0 }

func (t *Traverser) Future() string { return t.future }

func (t *Traverser) SetFuture(label string) { t.future = label }

// Tracking reports whether the traverser carries a path.
func (t *Traverser) Tracking() bool { return t.path != nil }

// Path returns the traverser's history.
func (t *Traverser) Path() (*Path, error) {
	if t.path == nil {
		return nil, ErrPathTrackingUnsupported
	}
	return t.path, nil
}

// MakeChild derives a traverser for a new value produced by the step labeled
// label. Loops and future carry over; the path, if any, is extended.
func (t *Traverser) MakeChild(label string, value any) *Traverser {
	child := &Traverser{value: value, loops: t.loops, future: t.future}
	if t.path != nil {
		child.path = t.path.Extend(label, value)
	}
	return child
}

// MakeSibling copies the traverser so that it can be fed into several branches.
func (t *Traverser) MakeSibling() *Traverser {
	sib := *t
	if t.path != nil {
		sib.path = t.path.Clone()
	}
	if t.ref != nil {
		ref := *t.ref
		sib.ref = &ref
	}
	return &sib
}

// IsDeflated reports whether the value is currently a detached reference.
func (t *Traverser) IsDeflated() bool { return t.ref != nil }

// Reference returns identity and label of an element value. It works in both
// the deflated and the inflated state.
func (t *Traverser) Reference() (graph.Reference, bool) {
	if t.ref != nil {
		return *t.ref, true
	}
	return graph.Detach(t.value)
}

// Deflate replaces an element value, and every element in the path, by its
// detached reference. Primitive values are left alone.
func (t *Traverser) Deflate() *Traverser {
	if t.ref == nil {
		if ref, ok := graph.Detach(t.value); ok {
			t.ref = &ref
			t.value = nil
		}
	}
	if t.path != nil {
		t.path = t.path.Detached()
	}
	return t
}

// Inflate resolves a deflated value against the vertex that received it.
// Path elements that are local to that vertex are resolved too.
func (t *Traverser) Inflate(local graph.Vertex) error {
	if t.ref != nil {
		value, err := graph.Resolve(*t.ref, local)
		if err != nil {
			return err
		}
		t.value = value
		t.ref = nil
	}
	if t.path != nil {
		t.path = t.path.resolved(local)
	}
	return nil
}

// Equal compares traversers by value.
func (t *Traverser) Equal(o *Traverser) bool {
	if o == nil {
		return false
	}
	return graph.Equal(t.comparable(), o.comparable())
}

func (t *Traverser) comparable() any {
	if t.ref != nil {
		return *t.ref
	}
	return t.value
}

func (t *Traverser) String() string {
	if t.ref != nil {
		return t.ref.String()
	}
	return fmt.Sprint(t.value)
}

// Path is the ordered (label, value) history of a traverser.
type Path struct {
	Labels  []string `msgpack:"labels" json:"labels"`
	Objects []any    `msgpack:"objects" json:"objects"`
}

// Extend returns a copy of p with (label, value) appended.
func (p *Path) Extend(label string, value any) *Path {
	out := p.Clone()
	out.Labels = append(out.Labels, label)
	out.Objects = append(out.Objects, value)
	return out
}

func (p *Path) Clone() *Path {
	return &Path{
		Labels:  append([]string(nil), p.Labels...),
		Objects: append([]any(nil), p.Objects...),
	}
}

func (p *Path) Size() int { return len(p.Objects) }

// Has reports whether label appears in the path.
func (p *Path) Has(label string) bool {
	for _, l := range p.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Get returns the most recent value recorded under label.
func (p *Path) Get(label string) (any, error) {
	for i := len(p.Labels) - 1; i >= 0; i-- {
		if p.Labels[i] == label {
			return p.Objects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrLabelNotInPath, label)
}

// RenameLast relabels the most recent entry.
func (p *Path) RenameLast(label string) {
	if n := len(p.Labels); n > 0 {
		p.Labels[n-1] = label
	}
}

// Equal compares labels and values position by position.
func (p *Path) Equal(o *Path) bool {
	if o == nil || len(p.Objects) != len(o.Objects) {
		return false
	}
	for i := range p.Objects {
		if p.Labels[i] != o.Labels[i] || !objectEqual(p.Objects[i], o.Objects[i]) {
			return false
		}
	}
	return true
}

func objectEqual(a, b any) bool {
	if pa, ok := a.(*Path); ok {
		pb, ok := b.(*Path)
		return ok && pa.Equal(pb)
	}
	return graph.Equal(a, b)
}

// Detached returns a copy in which every element, including those of nested
// paths, is replaced by its reference.
func (p *Path) Detached() *Path {
	out := p.Clone()
	for i, obj := range out.Objects {
		if nested, ok := obj.(*Path); ok {
			out.Objects[i] = nested.Detached()
		} else if ref, ok := graph.Detach(obj); ok {
			out.Objects[i] = ref
		}
	}
	return out
}

func (p *Path) resolved(local graph.Vertex) *Path {
	out := p.Clone()
	for i, obj := range out.Objects {
		ref, ok := obj.(graph.Reference)
		if !ok {
			continue
		}
		if value, err := graph.Resolve(ref, local); err == nil {
			out.Objects[i] = value
		}
	}
	return out
}

func (p *Path) String() string {
	parts := make([]string, len(p.Objects))
	for i, obj := range p.Objects {
		parts[i] = fmt.Sprint(obj)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
