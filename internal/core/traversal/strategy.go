package traversal

import (
	"fmt"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Strategy rewrites a traversal in place before its first pull.
type Strategy interface {
	Name() string
	Apply(t *Traversal) error
}

// Strategies is an ordered strategy set. Path-consumer detection always runs
// last so that it sees every step the other strategies inserted.
type Strategies struct {
	list []Strategy
}

// DefaultStrategies returns has-folding and element wrapping.
func DefaultStrategies() *Strategies {
	return &Strategies{list: []Strategy{HasFoldingStrategy{}, ElementWrappingStrategy{}}}
}

// Register appends s to the set.
func (ss *Strategies) Register(s Strategy) {
	ss.list = append(ss.list, s)
}

// Unregister removes every strategy with the given name.
func (ss *Strategies) Unregister(name string) {
	kept := ss.list[:0]
	for _, s := range ss.list {
		if s.Name() != name {
			kept = append(kept, s)
		}
	}
	ss.list = kept
}

// Names lists strategies in application order.
func (ss *Strategies) Names() []string {
	names := make([]string, 0, len(ss.list)+1)
	for _, s := range ss.list {
		names = append(names, s.Name())
	}
	return append(names, PathConsumerStrategy{}.Name())
}

func (ss *Strategies) apply(t *Traversal) error {
	for _, s := range ss.list {
		if err := s.Apply(t); err != nil {
			return fmt.Errorf("strategy %s: %w", s.Name(), err)
		}
	}
	return PathConsumerStrategy{}.Apply(t)
}

// walk visits t and every branch traversal below it.
func walk(t *Traversal, fn func(*Traversal) error) error {
	if err := fn(t); err != nil {
		return err
	}
	for _, s := range t.steps {
		if s.branch == nil {
			continue
		}
		for _, b := range s.branch.traversals() {
			if err := walk(b, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// PathConsumerStrategy turns on path tracking at every source when any step
// reads paths.
type PathConsumerStrategy struct{}

func (PathConsumerStrategy) Name() string { return "pathConsumer" }

func (PathConsumerStrategy) Apply(t *Traversal) error {
	consumes := false
	_ = walk(t, func(x *Traversal) error {
		for _, s := range x.steps {
			if s.Has(CapPathConsumer) {
				consumes = true
			}
		}
		return nil
	})
	if consumes {
		t.TrackPaths()
	}
	return nil
}

// HasFoldingStrategy moves unlabeled has filters that directly follow a V()
// or E() source into the source itself. It stops at the first labeled step.
type HasFoldingStrategy struct{}

func (HasFoldingStrategy) Name() string { return "hasFolding" }

func (HasFoldingStrategy) Apply(t *Traversal) error {
	start := t.Start()
	if start.source == nil || start.source.kind == 0 {
		return nil
	}
	i := 1
	for i < len(t.steps) {
		s := t.steps[i]
		if s.userLabel {
			break
		}
		switch {
		case s.Has(CapPredicate):
			start.source.has = append(start.source.has, s.has...)
			t.removeStep(i)
		case s.name == "identity":
			i++
		default:
			return nil
		}
	}
	return nil
}

// ElementWrappingStrategy inserts an adapter after every element-producing
// step when the graph supplies a graph.Decorator. Adapters never stack.
type ElementWrappingStrategy struct{}

func (ElementWrappingStrategy) Name() string { return "elementWrapping" }

func (ElementWrappingStrategy) Apply(t *Traversal) error {
	dec, ok := t.graph.(graph.Decorator)
	if !ok {
		return nil
	}
	return walk(t, func(x *Traversal) error {
		for i := len(x.steps) - 1; i >= 0; i-- {
			s := x.steps[i]
			if !s.Has(CapElementProducer) || s.Next().Has(CapAdapter) {
				continue
			}
			x.insertStep(i+1, adapterStep(dec))
		}
		return nil
	})
}

func adapterStep(dec graph.Decorator) *Step {
	return &Step{kind: KindMap, name: "wrap", caps: CapAdapter, inPlace: true,
		mapper: func(tr *Traverser) (any, error) {
			v, err := tr.Get()
			if err != nil {
				return nil, err
			}
			if el, ok := v.(graph.Element); ok {
				return dec.Decorate(el), nil
			}
			return v, nil
		}}
}
