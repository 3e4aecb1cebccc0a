package graphrepo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// MemoryGraph is a map-backed property graph. Enumeration follows insertion
// order so computations over it are reproducible.
type MemoryGraph struct {
	mu       sync.RWMutex
	vertices map[any]*memVertex
	edges    map[any]*memEdge
	vorder   []*memVertex
	eorder   []*memEdge
	nextID   int64
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		vertices: make(map[any]*memVertex),
		edges:    make(map[any]*memEdge),
	}
}

// AddVertex stores a vertex. A nil id is replaced by the next numeric id.
func (g *MemoryGraph) AddVertex(id any, label string, props map[string]any) (graph.Vertex, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == nil {
		id = g.allocID()
	}
	if _, exists := g.vertices[id]; exists {
		return nil, fmt.Errorf("%w: v[%v]", graph.ErrDuplicateElement, id)
	}
	if label == "" {
		label = "vertex"
	}
	v := &memVertex{memElement: newElement(g, id, label, props)}
	g.vertices[id] = v
	g.vorder = append(g.vorder, v)
	return v, nil
}

// AddEdge connects two existing vertices.
func (g *MemoryGraph) AddEdge(id any, label string, outID, inID any, props map[string]any) (graph.Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if label == "" {
		return nil, graph.ErrInvalidLabel
	}
	out, ok := g.vertices[outID]
	if !ok {
		return nil, fmt.Errorf("%w: out v[%v]", graph.ErrVertexNotFound, outID)
	}
	in, ok := g.vertices[inID]
	if !ok {
		return nil, fmt.Errorf("%w: in v[%v]", graph.ErrVertexNotFound, inID)
	}
	if id == nil {
		id = g.allocID()
	}
	if _, exists := g.edges[id]; exists {
		return nil, fmt.Errorf("%w: e[%v]", graph.ErrDuplicateElement, id)
	}
	e := &memEdge{memElement: newElement(g, id, label, props), out: out, in: in}
	g.edges[id] = e
	g.eorder = append(g.eorder, e)
	out.outE = append(out.outE, e)
	in.inE = append(in.inE, e)
	return e, nil
}

// Vertex returns a single vertex by id.
func (g *MemoryGraph) Vertex(id any) (graph.Vertex, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.vertices[id]
	if !ok {
		return nil, fmt.Errorf("%w: v[%v]", graph.ErrVertexNotFound, id)
	}
	return v, nil
}

func (g *MemoryGraph) Vertices(ids ...any) []graph.Vertex {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(ids) > 0 {
		out := make([]graph.Vertex, 0, len(ids))
		for _, id := range ids {
			if v, ok := g.vertices[id]; ok {
				out = append(out, v)
			}
		}
		return out
	}
	out := make([]graph.Vertex, len(g.vorder))
	for i, v := range g.vorder {
		out[i] = v
	}
	return out
}

func (g *MemoryGraph) Edges(ids ...any) []graph.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(ids) > 0 {
		out := make([]graph.Edge, 0, len(ids))
		for _, id := range ids {
			if e, ok := g.edges[id]; ok {
				out = append(out, e)
			}
		}
		return out
	}
	out := make([]graph.Edge, len(g.eorder))
	for i, e := range g.eorder {
		out[i] = e
	}
	return out
}

// Stats reports element counts.
func (g *MemoryGraph) Stats() (vertices, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vorder), len(g.eorder)
}

func (g *MemoryGraph) allocID() int64 {
	for {
		g.nextID++
		if _, taken := g.vertices[g.nextID]; taken {
			continue
		}
		if _, taken := g.edges[g.nextID]; taken {
			continue
		}
		return g.nextID
	}
}

type memElement struct {
	g     *MemoryGraph
	id    any
	label string
	props map[string]any
}

func newElement(g *MemoryGraph, id any, label string, props map[string]any) memElement {
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return memElement{g: g, id: id, label: label, props: cp}
}

func (e *memElement) ID() any       { return e.id }
func (e *memElement) Label() string { return e.label }

func (e *memElement) Property(key string) (any, bool) {
	e.g.mu.RLock()
	defer e.g.mu.RUnlock()
	v, ok := e.props[key]
	return v, ok
}

func (e *memElement) Keys() []string {
	e.g.mu.RLock()
	defer e.g.mu.RUnlock()
	keys := make([]string, 0, len(e.props))
	for k := range e.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *memElement) SetProperty(key string, value any) error {
	if key == "" {
		return graph.ErrInvalidKey
	}
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	e.props[key] = value
	return nil
}

func (e *memElement) RemoveProperty(key string) error {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	if _, ok := e.props[key]; !ok {
		return fmt.Errorf("%w: %s", graph.ErrPropertyNotFound, key)
	}
	delete(e.props, key)
	return nil
}

type memVertex struct {
	memElement
	outE []*memEdge
	inE  []*memEdge
}

func (v *memVertex) String() string { return fmt.Sprintf("v[%v]", v.id) }

func (v *memVertex) Edges(dir graph.Direction, labels ...string) []graph.Edge {
	v.g.mu.RLock()
	defer v.g.mu.RUnlock()
	var out []graph.Edge
	if dir == graph.Out || dir == graph.Both {
		for _, e := range v.outE {
			if graph.HasLabel(labels, e.label) {
				out = append(out, e)
			}
		}
	}
	if dir == graph.In || dir == graph.Both {
		for _, e := range v.inE {
			if graph.HasLabel(labels, e.label) {
				out = append(out, e)
			}
		}
	}
	return out
}

func (v *memVertex) Vertices(dir graph.Direction, labels ...string) []graph.Vertex {
	edges := v.Edges(dir, labels...)
	out := make([]graph.Vertex, 0, len(edges))
	for _, e := range edges {
		out = append(out, graph.Other(e, v))
	}
	return out
}

type memEdge struct {
	memElement
	out *memVertex
	in  *memVertex
}

func (e *memEdge) String() string {
	return fmt.Sprintf("e[%v][%v-%s->%v]", e.id, e.out.id, e.label, e.in.id)
}

func (e *memEdge) OutVertex() graph.Vertex { return e.out }
func (e *memEdge) InVertex() graph.Vertex  { return e.in }
