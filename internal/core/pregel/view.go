package pregel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// computeView holds the committed compute-key values of every vertex. The
// underlying graph is never written.
type computeView struct {
	keys  map[string]KeyType
	mu    sync.RWMutex
	state map[any]map[string]any
}

func newComputeView(keys map[string]KeyType) *computeView {
	return &computeView{keys: keys, state: make(map[any]map[string]any)}
}

func (cv *computeView) isComputeKey(key string) bool {
	_, ok := cv.keys[key]
	return ok
}

// get reads a committed value.
func (cv *computeView) get(id any, key string) (any, bool) {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	v, ok := cv.state[id][key]
	return v, ok
}

// copyOf returns a private copy of a vertex's committed values.
func (cv *computeView) copyOf(id any) map[string]any {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	src := cv.state[id]
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// commit replaces the values of the given vertices. Called at the barrier.
func (cv *computeView) commit(states map[any]map[string]any) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	for id, s := range states {
		cv.state[id] = s
	}
}

// export copies every committed value, keyed by the vertex id's string form.
func (cv *computeView) export() map[string]map[string]any {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	out := make(map[string]map[string]any, len(cv.state))
	for id, s := range cv.state {
		m := make(map[string]any, len(s))
		for k, v := range s {
			m[k] = v
		}
		out[fmt.Sprint(id)] = m
	}
	return out
}

// computeVertex overlays compute keys on a storage vertex. During a
// superstep it writes to a private copy; in a result view it is read-only.
type computeVertex struct {
	graph.Vertex
	view      *computeView
	local     map[string]any
	superstep int
	readOnly  bool
	dirty     bool
}

func (v *computeVertex) Unwrap() graph.Element { return v.Vertex }
func (v *computeVertex) String() string        { return fmt.Sprintf("v[%v]", v.ID()) }

func (v *computeVertex) values() map[string]any {
	if v.local != nil {
		return v.local
	}
	return v.view.copyOf(v.ID())
}

func (v *computeVertex) Property(key string) (any, bool) {
	if v.view.isComputeKey(key) {
		if v.local != nil {
			val, ok := v.local[key]
			return val, ok
		}
		return v.view.get(v.ID(), key)
	}
	return v.Vertex.Property(key)
}

func (v *computeVertex) Keys() []string {
	keys := v.Vertex.Keys()
	for k := range v.values() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v *computeVertex) SetProperty(key string, value any) error {
	if v.readOnly || !v.view.isComputeKey(key) {
		return fmt.Errorf("%w: %s on vertex %v", ErrUndeclaredComputeKey, key, v.ID())
	}
	if v.view.keys[key] == Constant && v.superstep > 0 {
		return fmt.Errorf("%w: %s on vertex %v", ErrConstantComputeKey, key, v.ID())
	}
	v.local[key] = value
	v.dirty = true
	return nil
}

func (v *computeVertex) RemoveProperty(key string) error {
	if v.readOnly || !v.view.isComputeKey(key) {
		return fmt.Errorf("%w: %s on vertex %v", ErrUndeclaredComputeKey, key, v.ID())
	}
	if v.view.keys[key] == Constant && v.superstep > 0 {
		return fmt.Errorf("%w: %s on vertex %v", ErrConstantComputeKey, key, v.ID())
	}
	delete(v.local, key)
	v.dirty = true
	return nil
}

// resultGraph exposes the storage graph with committed compute keys overlaid.
type resultGraph struct {
	graph.Graph
	view *computeView
}

func (g *resultGraph) Vertices(ids ...any) []graph.Vertex {
	vs := g.Graph.Vertices(ids...)
	out := make([]graph.Vertex, len(vs))
	for i, v := range vs {
		out[i] = &computeVertex{Vertex: v, view: g.view, readOnly: true}
	}
	return out
}
