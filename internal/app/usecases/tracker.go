package usecases

import (
	"github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/internal/core/traversal"
)

// Tracker is the compute-key state of a vertex: the traversers that came to
// rest there. Without path tracking equal values share one entry and only
// the count grows; with it, each distinct path gets its own entry.
type Tracker struct {
	Results []TrackedResult `msgpack:"results" json:"results"`
}

// TrackedResult is one final value. Elements are held as graph.Reference.
type TrackedResult struct {
	Value any             `msgpack:"value" json:"value"`
	Path  *traversal.Path `msgpack:"path,omitempty" json:"path,omitempty"`
	Count int64           `msgpack:"count" json:"count"`
}

func trackerOf(v graph.Vertex) *Tracker {
	if raw, ok := v.Property(TrackerKey); ok {
		if t, ok := raw.(*Tracker); ok && t != nil {
			return t
		}
	}
	return &Tracker{}
}

// clone copies the result slice; entries are replaced, never mutated, once
// committed.
func (t *Tracker) clone() *Tracker {
	return &Tracker{Results: append([]TrackedResult(nil), t.Results...)}
}

func (t *Tracker) add(tr *traversal.Traverser, trackPaths bool) {
	d := tr.MakeSibling().Deflate()
	var value any
	if ref, ok := d.Reference(); ok {
		value = ref
	} else {
		value, _ = d.Get()
	}
	if p, ok := value.(*traversal.Path); ok {
		value = p.Detached()
	}
	var path *traversal.Path
	if trackPaths {
		path, _ = d.Path()
	}

	for i := range t.Results {
		r := &t.Results[i]
		if !sameValue(r.Value, value) {
			continue
		}
		if (r.Path == nil) != (path == nil) || (path != nil && !path.Equal(r.Path)) {
			continue
		}
		r.Count++
		return
	}
	t.Results = append(t.Results, TrackedResult{Value: value, Path: path, Count: 1})
}

func sameValue(a, b any) bool {
	if pa, ok := a.(*traversal.Path); ok {
		pb, ok := b.(*traversal.Path)
		return ok && pa.Equal(pb)
	}
	return graph.Equal(a, b)
}

// Total is the number of traversers recorded.
func (t *Tracker) Total() int64 {
	var n int64
	for _, r := range t.Results {
		n += r.Count
	}
	return n
}
