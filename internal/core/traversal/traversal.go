// Package traversal implements the lazy step pipeline: traversers, steps,
// traversals and the strategies that rewrite them before execution.
package traversal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Traversal is an ordered chain of steps plus a shared side-effect memory.
// It is a one-shot pull iterator and is not safe for concurrent use.
type Traversal struct {
	graph      graph.Graph
	steps      []*Step
	memory     *Memory
	strategies *Strategies
	applied    bool
	isolated   bool
	labelSeq   int
	err        error
}

// New starts an empty traversal over g.
func New(g graph.Graph) *Traversal {
	return &Traversal{graph: g, memory: NewMemory(), strategies: DefaultStrategies()}
}

// Anon starts an anonymous traversal used as a branch of union or match.
func Anon() *Traversal {
	return New(nil)
}

// Graph returns the graph the traversal reads from.
func (t *Traversal) Graph() graph.Graph { return t.graph }

// Memory returns the side-effect memory shared by all steps.
func (t *Traversal) Memory() *Memory { return t.memory }

// Strategies returns the strategy set applied before the first pull.
func (t *Traversal) Strategies() *Strategies { return t.strategies }

// Err returns the first build or execution error.
func (t *Traversal) Err() error { return t.err }

// Steps returns the step chain in execution order.
func (t *Traversal) Steps() []*Step {
	return append([]*Step(nil), t.steps...)
}

// Start returns the first step or the empty sentinel.
func (t *Traversal) Start() *Step {
	if len(t.steps) == 0 {
		return emptyStep
	}
	return t.steps[0]
}

// End returns the last step or the empty sentinel.
func (t *Traversal) End() *Step {
	if len(t.steps) == 0 {
		return emptyStep
	}
	return t.steps[len(t.steps)-1]
}

// StepByLabel finds a step by label.
func (t *Traversal) StepByLabel(label string) (*Step, error) {
	for _, s := range t.steps {
		if s.label == label {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStepLabel, label)
}

// Isolate stops steps from pulling their predecessors: each step then only
// consumes traversers explicitly added to it. The source stops enumerating
// the graph. Used when steps are driven one at a time.
func (t *Traversal) Isolate() {
	t.isolated = true
	for _, s := range t.steps {
		if s.source != nil {
			s.source.cleared = true
		}
	}
}

// AddStarts feeds traversers into the first step.
func (t *Traversal) AddStarts(ts ...*Traverser) {
	if len(t.steps) == 0 || len(ts) == 0 {
		return
	}
	for _, s := range t.steps {
		s.done = false
	}
	t.steps[0].AddStarts(ts...)
}

// ApplyStrategies runs the registered strategies. Only the first call has an effect.
func (t *Traversal) ApplyStrategies() error {
	if t.applied {
		return t.err
	}
	t.applied = true
	if t.err != nil {
		return t.err
	}
	if err := t.strategies.apply(t); err != nil {
		t.fail(err)
	}
	return t.err
}

// TrackPaths makes every source in t and its branches seed path-tracking
// traversers, whether or not a step reads paths.
func (t *Traversal) TrackPaths() *Traversal {
	_ = walk(t, func(x *Traversal) error {
		for _, s := range x.steps {
			if s.source != nil {
				s.source.tracking = true
			}
		}
		return nil
	})
	return t
}

// HasNext reports whether another traverser is available.
func (t *Traversal) HasNext() (bool, error) {
	if err := t.ApplyStrategies(); err != nil {
		return false, err
	}
	if t.err != nil {
		return false, t.err
	}
	ok, err := t.End().hasNext()
	if err != nil {
		t.fail(err)
	}
	return ok, err
}

// Next returns the next traverser, or ErrNoSuchElement once exhausted.
func (t *Traversal) Next() (*Traverser, error) {
	ok, err := t.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSuchElement
	}
	return t.End().next()
}

// NextValue returns the value of the next traverser.
func (t *Traversal) NextValue() (any, error) {
	tr, err := t.Next()
	if err != nil {
		return nil, err
	}
	return tr.Get()
}

// Traversers drains the traversal.
func (t *Traversal) Traversers() ([]*Traverser, error) {
	var out []*Traverser
	for {
		ok, err := t.HasNext()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		tr, err := t.End().next()
		if err != nil {
			return out, err
		}
		out = append(out, tr)
	}
}

// ToList drains the traversal and returns the values.
func (t *Traversal) ToList() ([]any, error) {
	ts, err := t.Traversers()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(ts))
	for _, tr := range ts {
		v, err := tr.Get()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Iterate drains the traversal for its side effects.
func (t *Traversal) Iterate() error {
	_, err := t.Traversers()
	return err
}

func (t *Traversal) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// addStep appends s and gives it a generated label.
func (t *Traversal) addStep(s *Step) *Traversal {
	if s.source != nil && len(t.steps) > 0 {
		t.fail(fmt.Errorf("%w: %s", ErrSourceNotFirst, s.name))
		return t
	}
	t.insertStep(len(t.steps), s)
	return t
}

// insertStep splices s in at index i and re-indexes the tail.
func (t *Traversal) insertStep(i int, s *Step) {
	s.t = t
	if s.label == "" {
		s.label = t.nextLabel()
	}
	t.steps = append(t.steps, nil)
	copy(t.steps[i+1:], t.steps[i:])
	t.steps[i] = s
	t.reindex(i)
}

// removeStep splices the step at index i out of the chain.
func (t *Traversal) removeStep(i int) *Step {
	s := t.steps[i]
	copy(t.steps[i:], t.steps[i+1:])
	t.steps[len(t.steps)-1] = nil
	t.steps = t.steps[:len(t.steps)-1]
	t.reindex(i)
	s.t = nil
	s.index = -1
	return s
}

func (t *Traversal) reindex(from int) {
	for i := from; i < len(t.steps); i++ {
		t.steps[i].index = i
	}
}

func (t *Traversal) nextLabel() string {
	for {
		t.labelSeq++
		label := fmt.Sprintf("_%d", t.labelSeq)
		if _, err := t.StepByLabel(label); err != nil {
			return label
		}
	}
}

// As labels the last step. On an empty traversal it adds a labeled identity step.
func (t *Traversal) As(label string) *Traversal {
	if len(t.steps) == 0 {
		t.Identity()
	}
	if existing, err := t.StepByLabel(label); err == nil && existing != t.End() {
		t.fail(fmt.Errorf("%w: %q", ErrDuplicateStepLabel, label))
		return t
	}
	end := t.End()
	end.label = label
	end.userLabel = true
	return t
}

// Memory is the key/value side-effect store of a traversal.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]any)}
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// GetOrCreate returns the value under key, storing create() first if absent.
func (m *Memory) GetOrCreate(key string, create func() any) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.values[key]; ok {
		return v
	}
	v := create()
	m.values[key] = v
	return v
}

func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
