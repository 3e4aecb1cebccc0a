package traversal

import (
	"fmt"
	"math/rand/v2"
	"reflect"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Func maps a value to another value.
type Func func(v any) (any, error)

// ReduceFunc folds the members of one group.
type ReduceFunc func(values []any) (any, error)

// V starts from the graph's vertices, optionally restricted to ids.
func (t *Traversal) V(ids ...any) *Traversal {
	return t.addStep(&Step{kind: KindSource, name: "V", caps: CapElementProducer,
		source: &source{kind: graph.KindVertex, ids: ids}})
}

// E starts from the graph's edges, optionally restricted to ids.
func (t *Traversal) E(ids ...any) *Traversal {
	return t.addStep(&Step{kind: KindSource, name: "E", caps: CapElementProducer,
		source: &source{kind: graph.KindEdge, ids: ids}})
}

// Inject starts from the given values.
func (t *Traversal) Inject(values ...any) *Traversal {
	return t.addStep(&Step{kind: KindSource, name: "inject", source: &source{values: values}})
}

func (t *Traversal) Out(labels ...string) *Traversal { return t.vertexStep("out", graph.Out, labels) }
func (t *Traversal) In(labels ...string) *Traversal  { return t.vertexStep("in", graph.In, labels) }
func (t *Traversal) Both(labels ...string) *Traversal {
	return t.vertexStep("both", graph.Both, labels)
}

func (t *Traversal) OutE(labels ...string) *Traversal { return t.edgeStep("outE", graph.Out, labels) }
func (t *Traversal) InE(labels ...string) *Traversal  { return t.edgeStep("inE", graph.In, labels) }
func (t *Traversal) BothE(labels ...string) *Traversal {
	return t.edgeStep("bothE", graph.Both, labels)
}

func (t *Traversal) OutV() *Traversal  { return t.edgeVertexStep("outV", graph.Out) }
func (t *Traversal) InV() *Traversal   { return t.edgeVertexStep("inV", graph.In) }
func (t *Traversal) BothV() *Traversal { return t.edgeVertexStep("bothV", graph.Both) }

func (t *Traversal) vertexStep(name string, dir graph.Direction, labels []string) *Traversal {
	return t.addStep(&Step{kind: KindFlatMap, name: name,
		caps: CapElementProducer | CapGraphBoundary | CapReversible | CapBulkable,
		flat: func(tr *Traverser) ([]any, error) {
			v, err := vertexOf(tr)
			if err != nil {
				return nil, err
			}
			vs := v.Vertices(dir, labels...)
			out := make([]any, len(vs))
			for i, x := range vs {
				out[i] = x
			}
			return out, nil
		}})
}

func (t *Traversal) edgeStep(name string, dir graph.Direction, labels []string) *Traversal {
	return t.addStep(&Step{kind: KindFlatMap, name: name,
		caps: CapElementProducer | CapGraphBoundary | CapReversible | CapBulkable,
		flat: func(tr *Traverser) ([]any, error) {
			v, err := vertexOf(tr)
			if err != nil {
				return nil, err
			}
			es := v.Edges(dir, labels...)
			out := make([]any, len(es))
			for i, x := range es {
				out[i] = x
			}
			return out, nil
		}})
}

func (t *Traversal) edgeVertexStep(name string, dir graph.Direction) *Traversal {
	return t.addStep(&Step{kind: KindFlatMap, name: name,
		caps: CapElementProducer | CapGraphBoundary | CapReversible | CapBulkable,
		flat: func(tr *Traverser) ([]any, error) {
			v, err := tr.Get()
			if err != nil {
				return nil, err
			}
			e, ok := v.(graph.Edge)
			if !ok {
				return nil, fmt.Errorf("%w: %T", ErrNotAnEdge, v)
			}
			switch dir {
			case graph.Out:
				return []any{e.OutVertex()}, nil
			case graph.In:
				return []any{e.InVertex()}, nil
			}
			return []any{e.OutVertex(), e.InVertex()}, nil
		}})
}

func vertexOf(tr *Traverser) (graph.Vertex, error) {
	v, err := tr.Get()
	if err != nil {
		return nil, err
	}
	vertex, ok := v.(graph.Vertex)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotAVertex, v)
	}
	return vertex, nil
}

// Has keeps elements whose property key equals value.
func (t *Traversal) Has(key string, value any) *Traversal {
	return t.HasP(key, Eq, value)
}

// HasP keeps elements whose property key satisfies compare against value.
func (t *Traversal) HasP(key string, compare Compare, value any) *Traversal {
	return t.addHas(HasContainer{Key: key, Compare: compare, Value: value})
}

// HasLabel keeps elements carrying one of the labels.
func (t *Traversal) HasLabel(labels ...string) *Traversal {
	if len(labels) == 1 {
		return t.addHas(HasContainer{Key: LabelKey, Compare: Eq, Value: labels[0]})
	}
	set := append([]string(nil), labels...)
	return t.Filter(func(tr *Traverser) (bool, error) {
		v, err := tr.Get()
		if err != nil {
			return false, err
		}
		el, ok := v.(graph.Element)
		if !ok {
			return false, fmt.Errorf("%w: %T", ErrNotAnElement, v)
		}
		return graph.HasLabel(set, el.Label()), nil
	})
}

func (t *Traversal) addHas(hc HasContainer) *Traversal {
	return t.addStep(&Step{kind: KindFilter, name: "has", caps: CapPredicate | CapReversible,
		has: []HasContainer{hc},
		filter: func(tr *Traverser) (bool, error) {
			v, err := tr.Get()
			if err != nil {
				return false, err
			}
			return hc.Test(v)
		}})
}

// Filter keeps traversers for which fn returns true.
func (t *Traversal) Filter(fn func(*Traverser) (bool, error)) *Traversal {
	return t.addStep(&Step{kind: KindFilter, name: "filter", caps: CapReversible, filter: fn})
}

// Map replaces each traverser's value with fn's result.
func (t *Traversal) Map(fn func(*Traverser) (any, error)) *Traversal {
	return t.addStep(&Step{kind: KindMap, name: "map", mapper: fn})
}

// FlatMap emits one traverser per value fn returns.
func (t *Traversal) FlatMap(fn func(*Traverser) ([]any, error)) *Traversal {
	return t.addStep(&Step{kind: KindFlatMap, name: "flatMap", flat: fn})
}

// SideEffect runs fn on every traverser and forwards it unchanged.
func (t *Traversal) SideEffect(fn func(*Traverser) error) *Traversal {
	return t.addStep(&Step{kind: KindSideEffect, name: "sideEffect", effect: fn})
}

// Identity forwards traversers unchanged.
func (t *Traversal) Identity() *Traversal {
	return t.addStep(&Step{kind: KindFilter, name: "identity", caps: CapReversible,
		filter: func(*Traverser) (bool, error) { return true, nil }})
}

// Values emits the values of the given property keys, all keys when none given.
// Missing properties are skipped.
func (t *Traversal) Values(keys ...string) *Traversal {
	return t.addStep(&Step{kind: KindFlatMap, name: "values", flat: func(tr *Traverser) ([]any, error) {
		el, err := elementOf(tr)
		if err != nil {
			return nil, err
		}
		var out []any
		for _, k := range keysOf(el, keys) {
			if v, ok := el.Property(k); ok {
				out = append(out, v)
			}
		}
		return out, nil
	}})
}

// Value maps an element to a single property value; a missing key is an error.
func (t *Traversal) Value(key string) *Traversal {
	return t.addStep(&Step{kind: KindMap, name: "value", mapper: func(tr *Traverser) (any, error) {
		el, err := elementOf(tr)
		if err != nil {
			return nil, err
		}
		v, ok := el.Property(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s on %v", graph.ErrPropertyNotFound, key, el.ID())
		}
		return v, nil
	}})
}

// Properties emits graph.Property values for the keys, all keys when none given.
func (t *Traversal) Properties(keys ...string) *Traversal {
	return t.addStep(&Step{kind: KindFlatMap, name: "properties", caps: CapElementProducer,
		flat: func(tr *Traverser) ([]any, error) {
			el, err := elementOf(tr)
			if err != nil {
				return nil, err
			}
			var out []any
			for _, k := range keysOf(el, keys) {
				if v, ok := el.Property(k); ok {
					out = append(out, graph.Property{Key: k, Value: v, Element: el})
				}
			}
			return out, nil
		}})
}

// Element maps a property to the element that holds it.
func (t *Traversal) Element() *Traversal {
	return t.addStep(&Step{kind: KindMap, name: "element", caps: CapElementProducer,
		mapper: func(tr *Traverser) (any, error) {
			v, err := tr.Get()
			if err != nil {
				return nil, err
			}
			p, ok := v.(graph.Property)
			if !ok {
				return nil, fmt.Errorf("%w: %T", ErrNotAProperty, v)
			}
			return p.Element, nil
		}})
}

// ID maps an element to its id.
func (t *Traversal) ID() *Traversal {
	return t.addStep(&Step{kind: KindMap, name: "id", mapper: func(tr *Traverser) (any, error) {
		el, err := elementOf(tr)
		if err != nil {
			return nil, err
		}
		return el.ID(), nil
	}})
}

// Label maps an element to its label.
func (t *Traversal) Label() *Traversal {
	return t.addStep(&Step{kind: KindMap, name: "label", mapper: func(tr *Traverser) (any, error) {
		el, err := elementOf(tr)
		if err != nil {
			return nil, err
		}
		return el.Label(), nil
	}})
}

func elementOf(tr *Traverser) (graph.Element, error) {
	v, err := tr.Get()
	if err != nil {
		return nil, err
	}
	el, ok := v.(graph.Element)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotAnElement, v)
	}
	return el, nil
}

func keysOf(el graph.Element, keys []string) []string {
	if len(keys) > 0 {
		return keys
	}
	return el.Keys()
}

// Back maps a traverser to the value its path recorded under label.
func (t *Traversal) Back(label string) *Traversal {
	return t.addStep(&Step{kind: KindMap, name: "back", caps: CapPathConsumer,
		mapper: func(tr *Traverser) (any, error) {
			p, err := tr.Path()
			if err != nil {
				return nil, err
			}
			return p.Get(label)
		}})
}

// Path maps a traverser to a copy of its path.
func (t *Traversal) Path() *Traversal {
	return t.addStep(&Step{kind: KindMap, name: "path", caps: CapPathConsumer,
		mapper: func(tr *Traverser) (any, error) {
			p, err := tr.Path()
			if err != nil {
				return nil, err
			}
			return p.Clone(), nil
		}})
}

// Random keeps each traverser with probability p.
func (t *Traversal) Random(p float64) *Traversal {
	return t.addStep(&Step{kind: KindFilter, name: "random", filter: func(*Traverser) (bool, error) {
		return rand.Float64() <= p, nil
	}})
}

// Dedup drops traversers whose value was already emitted.
func (t *Traversal) Dedup() *Traversal {
	var seen []*Traverser
	return t.addStep(&Step{kind: KindFilter, name: "dedup", filter: func(tr *Traverser) (bool, error) {
		for _, s := range seen {
			if s.Equal(tr) {
				return false, nil
			}
		}
		seen = append(seen, tr)
		return true, nil
	}})
}

// Shuffle collects every input and emits them in random order.
func (t *Traversal) Shuffle() *Traversal {
	return t.addStep(&Step{kind: KindBarrier, name: "shuffle", collect: func(all []*Traverser) ([]*Traverser, error) {
		rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
		return all, nil
	}})
}

// Loop sends traversers back to the step labeled label while while returns
// true, counting each pass in the traverser's loops.
func (t *Traversal) Loop(label string, while func(*Traverser) (bool, error)) *Traversal {
	target, err := t.StepByLabel(label)
	if err != nil {
		t.fail(err)
		return t
	}
	return t.addStep(&Step{kind: KindFilter, name: "loop", filter: func(tr *Traverser) (bool, error) {
		again, err := while(tr)
		if err != nil || !again {
			return !again, err
		}
		back := tr.MakeSibling()
		back.IncrLoops()
		target.AddStarts(back)
		for i := target.index + 1; i < len(t.steps); i++ {
			t.steps[i].done = false
		}
		return false, nil
	}})
}

// GroupBy folds every value into memory[key] as map[any][]any, grouped by
// keyFn and mapped by valueFn. With a reduceFn the groups are replaced by
// map[any]any of reduced values once the upstream is exhausted.
func (t *Traversal) GroupBy(memoryKey string, keyFn, valueFn Func, reduceFn ReduceFunc) *Traversal {
	if valueFn == nil {
		valueFn = func(v any) (any, error) { return v, nil }
	}
	groups, ok := t.memory.GetOrCreate(memoryKey, func() any { return map[any][]any{} }).(map[any][]any)
	if !ok {
		t.fail(fmt.Errorf("groupBy: memory key %q holds another type", memoryKey))
		return t
	}
	s := &Step{kind: KindSideEffect, name: "groupBy", caps: CapSideEffect | CapReversible,
		effect: func(tr *Traverser) error {
			v, err := tr.Get()
			if err != nil {
				return err
			}
			k, err := keyFn(v)
			if err != nil {
				return err
			}
			if k, err = groupKey(k); err != nil {
				return err
			}
			val, err := valueFn(v)
			if err != nil {
				return err
			}
			groups[k] = append(groups[k], val)
			return nil
		}}
	if reduceFn != nil {
		s.finalize = func() error {
			reduced := make(map[any]any, len(groups))
			for k, vs := range groups {
				r, err := reduceFn(vs)
				if err != nil {
					return err
				}
				reduced[k] = r
			}
			t.memory.Set(memoryKey, reduced)
			return nil
		}
	}
	return t.addStep(s)
}

// GroupCount counts values into memory[key] as map[any]int64, keyed by keyFn
// or by the value itself.
func (t *Traversal) GroupCount(memoryKey string, keyFn Func) *Traversal {
	counts, ok := t.memory.GetOrCreate(memoryKey, func() any { return map[any]int64{} }).(map[any]int64)
	if !ok {
		t.fail(fmt.Errorf("groupCount: memory key %q holds another type", memoryKey))
		return t
	}
	return t.addStep(&Step{kind: KindSideEffect, name: "groupCount", caps: CapSideEffect | CapBulkable,
		effect: func(tr *Traverser) error {
			v, err := tr.Get()
			if err != nil {
				return err
			}
			k := v
			if keyFn != nil {
				if k, err = keyFn(v); err != nil {
					return err
				}
			}
			if k, err = groupKey(k); err != nil {
				return err
			}
			counts[k]++
			return nil
		}})
}

// groupKey strips element decorators so a wrapped vertex groups with its
// storage vertex, and rejects keys whose dynamic value cannot be hashed.
func groupKey(k any) (any, error) {
	if el, ok := k.(graph.Element); ok {
		k = graph.Unwrap(el)
	}
	if k != nil && !reflect.ValueOf(k).Comparable() {
		return nil, fmt.Errorf("%w: %T", ErrUnhashableKey, k)
	}
	return k, nil
}
