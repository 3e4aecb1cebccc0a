package traversal

import (
	"fmt"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Kind is the closed set of step variants.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindSource
	KindFilter
	KindMap
	KindFlatMap
	KindSideEffect
	KindBarrier
	KindBranch
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindSource:
		return "source"
	case KindFilter:
		return "filter"
	case KindMap:
		return "map"
	case KindFlatMap:
		return "flatMap"
	case KindSideEffect:
		return "sideEffect"
	case KindBarrier:
		return "barrier"
	case KindBranch:
		return "branch"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Capability is a bitset of properties strategies look for.
type Capability uint16

const (
	// CapPathConsumer steps read traverser paths.
	CapPathConsumer Capability = 1 << iota
	CapReversible
	CapBulkable
	// CapSideEffect steps own a slot in the traversal memory.
	CapSideEffect
	// CapElementProducer steps emit graph elements read from storage.
	CapElementProducer
	// CapGraphBoundary steps may emit elements hosted on another vertex.
	CapGraphBoundary
	// CapPredicate steps are has-container filters that can be folded into a source.
	CapPredicate
	// CapAdapter marks steps inserted by the wrapping strategy.
	CapAdapter
)

// Step is one stage of a traversal. Steps live in their traversal's arena
// and find their neighbors by index.
type Step struct {
	kind      Kind
	name      string
	caps      Capability
	label     string
	userLabel bool

	t     *Traversal
	index int

	source   *source
	has      []HasContainer
	filter   func(*Traverser) (bool, error)
	mapper   func(*Traverser) (any, error)
	flat     func(*Traverser) ([]any, error)
	effect   func(*Traverser) error
	finalize func() error
	collect  func([]*Traverser) ([]*Traverser, error)
	branch   brancher
	inPlace  bool

	starts    []*Traverser
	pending   []*Traverser
	peeked    *Traverser
	done      bool
	finalized bool
	collected bool
}

// brancher runs the sub-traversals of union and match steps.
type brancher interface {
	process(s *Step) (*Traverser, error)
	traversals() []*Traversal
}

var emptyStep = &Step{kind: KindEmpty, name: "empty", index: -1, done: true}

// IsEmpty reports whether s is the sentinel that bounds every chain.
func (s *Step) IsEmpty() bool { return s.kind == KindEmpty }

func (s *Step) Kind() Kind { return s.kind }

func (s *Step) Name() string { return s.name }

func (s *Step) Label() string { return s.label }

// Labeled reports whether the label was given by the caller rather than generated.
func (s *Step) Labeled() bool { return s.userLabel }

func (s *Step) Capabilities() Capability { return s.caps }

func (s *Step) Has(c Capability) bool { return s.caps&c == c }

func (s *Step) Index() int { return s.index }

func (s *Step) Traversal() *Traversal { return s.t }

// Previous returns the step before s, or the empty sentinel.
func (s *Step) Previous() *Step {
	if s.t == nil || s.index <= 0 {
		return emptyStep
	}
	return s.t.steps[s.index-1]
}

// Next returns the step after s, or the empty sentinel.
func (s *Step) Next() *Step {
	if s.t == nil || s.index < 0 || s.index+1 >= len(s.t.steps) {
		return emptyStep
	}
	return s.t.steps[s.index+1]
}

// HasContainers returns the predicates a source step filters with.
func (s *Step) HasContainers() []HasContainer {
	if s.source != nil {
		return s.source.has
	}
	return s.has
}

func (s *Step) String() string {
	return fmt.Sprintf("%s@%s", s.name, s.label)
}

// AddStarts queues traversers for s to consume before it pulls from its predecessor.
func (s *Step) AddStarts(ts ...*Traverser) {
	if len(ts) == 0 {
		return
	}
	s.starts = append(s.starts, ts...)
	s.done = false
}

// HasStarts reports whether traversers are queued on s.
func (s *Step) HasStarts() bool { return len(s.starts) > 0 }

// Drain pulls every traverser s can currently produce.
func (s *Step) Drain() ([]*Traverser, error) {
	var out []*Traverser
	for {
		t, err := s.next()
		if err != nil {
			return out, err
		}
		if t == nil {
			return out, nil
		}
		out = append(out, t)
	}
}

func (s *Step) hasNext() (bool, error) {
	if s.peeked != nil {
		return true, nil
	}
	if s.done {
		return false, nil
	}
	t, err := s.process()
	if err != nil {
		return false, s.wrapErr(err)
	}
	if t == nil {
		s.done = true
		return false, nil
	}
	s.peeked = t
	return true, nil
}

// next returns the next output, or nil once the step is exhausted.
func (s *Step) next() (*Traverser, error) {
	ok, err := s.hasNext()
	if err != nil || !ok {
		return nil, err
	}
	t := s.peeked
	s.peeked = nil
	return t, nil
}

func (s *Step) wrapErr(err error) error {
	if _, ok := err.(*StepError); ok {
		return err
	}
	return &StepError{Step: s.name, Label: s.label, Err: err}
}

// pull takes the next input: queued starts first, then the predecessor.
func (s *Step) pull() (*Traverser, error) {
	if len(s.starts) > 0 {
		t := s.starts[0]
		s.starts[0] = nil
		s.starts = s.starts[1:]
		return t, nil
	}
	if s.t == nil || s.t.isolated {
		return nil, nil
	}
	return s.Previous().next()
}

// upstreamHasNext reports whether another input is available without consuming it.
func (s *Step) upstreamHasNext() (bool, error) {
	if len(s.starts) > 0 {
		return true, nil
	}
	if s.t == nil || s.t.isolated {
		return false, nil
	}
	return s.Previous().hasNext()
}

func (s *Step) process() (*Traverser, error) {
	for {
		if len(s.pending) > 0 {
			t := s.pending[0]
			s.pending[0] = nil
			s.pending = s.pending[1:]
			return t, nil
		}
		switch s.kind {
		case KindEmpty:
			return nil, nil
		case KindSource:
			ok, err := s.source.generate(s)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
			return s.pull()
		case KindBranch:
			return s.branch.process(s)
		case KindBarrier:
			if s.collected {
				if len(s.starts) == 0 {
					return nil, nil
				}
				s.collected = false
			}
			var all []*Traverser
			for {
				in, err := s.pull()
				if err != nil {
					return nil, err
				}
				if in == nil {
					break
				}
				all = append(all, in)
			}
			out, err := s.collect(all)
			if err != nil {
				return nil, err
			}
			s.collected = true
			s.pending = out
			if len(out) == 0 {
				return nil, nil
			}
			continue
		}

		in, err := s.pull()
		if err != nil {
			return nil, err
		}
		if in == nil {
			if s.finalize != nil && !s.finalized {
				s.finalized = true
				if err := s.finalize(); err != nil {
					return nil, err
				}
			}
			return nil, nil
		}

		switch s.kind {
		case KindFilter:
			ok, err := s.filter(in)
			if err != nil {
				return nil, err
			}
			if ok {
				return in, nil
			}
		case KindMap:
			v, err := s.mapper(in)
			if err != nil {
				return nil, err
			}
			if s.inPlace {
				in.Set(v)
				return in, nil
			}
			return in.MakeChild(s.label, v), nil
		case KindFlatMap:
			vs, err := s.flat(in)
			if err != nil {
				return nil, err
			}
			for _, v := range vs {
				s.pending = append(s.pending, in.MakeChild(s.label, v))
			}
		case KindSideEffect:
			if err := s.effect(in); err != nil {
				return nil, err
			}
			if s.finalize != nil && !s.finalized {
				more, err := s.upstreamHasNext()
				if err != nil {
					return nil, err
				}
				if !more {
					s.finalized = true
					if err := s.finalize(); err != nil {
						return nil, err
					}
				}
			}
			return in, nil
		}
	}
}

// StepError reports the step that failed while processing a traverser.
type StepError struct {
	Step  string
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s@%s: %v", e.Step, e.Label, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// source generates the traversers a traversal starts from.
type source struct {
	kind      graph.ElementKind
	ids       []any
	values    []any
	has       []HasContainer
	generated bool
	cleared   bool
	tracking  bool
}

// generate fills s.pending on the first call and reports whether it did.
func (src *source) generate(s *Step) (bool, error) {
	if src.generated {
		return false, nil
	}
	src.generated = true
	if src.cleared {
		return false, nil
	}
	values, err := src.elements(s.t.graph)
	if err != nil {
		return false, err
	}
	for _, v := range values {
		ok, err := src.accepts(v)
		if err != nil {
			return false, err
		}
		if ok {
			s.pending = append(s.pending, s.Seed(v))
		}
	}
	return len(s.pending) > 0, nil
}

func (src *source) elements(g graph.Graph) ([]any, error) {
	if src.kind == 0 {
		return src.values, nil
	}
	if g == nil {
		return nil, ErrNoGraph
	}
	var out []any
	switch src.kind {
	case graph.KindVertex:
		for _, v := range g.Vertices(src.ids...) {
			out = append(out, v)
		}
	case graph.KindEdge:
		for _, e := range g.Edges(src.ids...) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (src *source) accepts(v any) (bool, error) {
	for _, hc := range src.has {
		ok, err := hc.Test(v)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// SourceKind reports what a source step enumerates: vertices, edges, or 0 for injected values.
func (s *Step) SourceKind() graph.ElementKind {
	if s.source == nil {
		return 0
	}
	return s.source.kind
}

// Accepts applies a source step's id and has filters to a candidate element.
func (s *Step) Accepts(e graph.Element) (bool, error) {
	if s.source == nil {
		return false, nil
	}
	if len(s.source.ids) > 0 {
		found := false
		for _, id := range s.source.ids {
			if graph.Equal(id, e.ID()) {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return s.source.accepts(e)
}

// Seed builds the traverser a source step would emit for value.
func (s *Step) Seed(value any) *Traverser {
	if s.source != nil && s.source.tracking {
		return NewPathTraverser(s.label, value)
	}
	return NewTraverser(value)
}
