package pregel

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Rule selects how a global write folds into the current value.
type Rule uint8

const (
	RuleSet Rule = iota + 1
	RuleSetIfAbsent
	RuleAnd
	RuleOr
	RuleIncr
)

func (r Rule) String() string {
	switch r {
	case RuleSet:
		return "SET"
	case RuleSetIfAbsent:
		return "SET_IF_ABSENT"
	case RuleAnd:
		return "AND"
	case RuleOr:
		return "OR"
	case RuleIncr:
		return "INCR"
	default:
		return "unknown"
	}
}

// Globals is the computation-wide key/value memory.
//
// On the master (Setup and Terminate) writes apply immediately. During
// Execute writes are buffered and folded in at the barrier, so every vertex
// of a superstep reads the values as of the end of the previous one.
// Writing an undeclared key fails the computation.
type Globals interface {
	Superstep() int
	IsInitialSuperstep() bool
	Runtime() time.Duration
	Keys() []string
	Get(key string) (any, bool)
	Set(key string, value any)
	SetIfAbsent(key string, value any)
	And(key string, value bool)
	Or(key string, value bool)
	Incr(key string, delta int64)
}

// GetBool reads a boolean global; missing or mistyped keys report false.
func GetBool(g Globals, key string) bool {
	v, _ := g.Get(key)
	b, _ := v.(bool)
	return b
}

// GetInt reads an INCR-maintained global; missing or mistyped keys report 0.
func GetInt(g Globals, key string) int64 {
	v, _ := g.Get(key)
	n, _ := v.(int64)
	return n
}

type globalWrite struct {
	rule  Rule
	key   string
	value any
}

// memory is the committed state behind both global views.
type memory struct {
	mu        sync.RWMutex
	declared  map[string]struct{}
	values    map[string]any
	superstep int
	start     time.Time
	runtime   time.Duration
	frozen    bool
}

func newMemory(keys []string) *memory {
	declared := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		declared[k] = struct{}{}
	}
	return &memory{declared: declared, values: make(map[string]any), start: time.Now()}
}

func (m *memory) Superstep() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.superstep
}

func (m *memory) IsInitialSuperstep() bool { return m.Superstep() == 0 }

func (m *memory) Runtime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.frozen {
		return m.runtime
	}
	return time.Since(m.start)
}

func (m *memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memory) check(w globalWrite) error {
	if _, ok := m.declared[w.key]; !ok {
		return fmt.Errorf("%w: %s", ErrUndeclaredGlobalKey, w.key)
	}
	switch w.rule {
	case RuleAnd, RuleOr:
		if _, ok := w.value.(bool); !ok {
			return fmt.Errorf("%w: %s %s needs a bool, got %T", ErrInvalidGlobalValue, w.rule, w.key, w.value)
		}
	case RuleIncr:
		if _, ok := w.value.(int64); !ok {
			return fmt.Errorf("%w: %s %s needs an int64, got %T", ErrInvalidGlobalValue, w.rule, w.key, w.value)
		}
	}
	return nil
}

// apply folds one write into the committed values. Callers hold mu.
// AND starts from true, OR from false and INCR from 0, so the result of a
// superstep's writes does not depend on which vertex ran first.
func (m *memory) apply(w globalWrite) {
	switch w.rule {
	case RuleSet:
		m.values[w.key] = w.value
	case RuleSetIfAbsent:
		if _, ok := m.values[w.key]; !ok {
			m.values[w.key] = w.value
		}
	case RuleAnd:
		cur, ok := m.values[w.key].(bool)
		if !ok {
			cur = true
		}
		m.values[w.key] = cur && w.value.(bool)
	case RuleOr:
		cur, _ := m.values[w.key].(bool)
		m.values[w.key] = cur || w.value.(bool)
	case RuleIncr:
		cur, _ := m.values[w.key].(int64)
		m.values[w.key] = cur + w.value.(int64)
	}
}

// merge folds buffered vertex writes in the given order.
func (m *memory) merge(batches [][]globalWrite) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, batch := range batches {
		for _, w := range batch {
			m.apply(w)
		}
	}
}

func (m *memory) advance() {
	m.mu.Lock()
	m.superstep++
	m.mu.Unlock()
}

func (m *memory) freeze() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.frozen {
		m.runtime = time.Since(m.start)
		m.frozen = true
	}
}

func (m *memory) snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// masterGlobals writes straight through to memory.
type masterGlobals struct {
	*memory
	errMu sync.Mutex
	err   error
}

func (g *masterGlobals) write(w globalWrite) {
	if err := g.check(w); err != nil {
		g.errMu.Lock()
		if g.err == nil {
			g.err = err
		}
		g.errMu.Unlock()
		return
	}
	g.mu.Lock()
	g.apply(w)
	g.mu.Unlock()
}

// takeErr returns and clears the first rejected write.
func (g *masterGlobals) takeErr() error {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	err := g.err
	g.err = nil
	return err
}

func (g *masterGlobals) Set(key string, value any) { g.write(globalWrite{RuleSet, key, value}) }
func (g *masterGlobals) SetIfAbsent(key string, value any) {
	g.write(globalWrite{RuleSetIfAbsent, key, value})
}
func (g *masterGlobals) And(key string, value bool)   { g.write(globalWrite{RuleAnd, key, value}) }
func (g *masterGlobals) Or(key string, value bool)    { g.write(globalWrite{RuleOr, key, value}) }
func (g *masterGlobals) Incr(key string, delta int64) { g.write(globalWrite{RuleIncr, key, delta}) }

// vertexGlobals buffers the writes of one vertex execution. It is owned by
// a single goroutine.
type vertexGlobals struct {
	*memory
	writes []globalWrite
	err    error
}

func (g *vertexGlobals) write(w globalWrite) {
	if err := g.check(w); err != nil {
		if g.err == nil {
			g.err = err
		}
		return
	}
	g.writes = append(g.writes, w)
}

func (g *vertexGlobals) Set(key string, value any) { g.write(globalWrite{RuleSet, key, value}) }
func (g *vertexGlobals) SetIfAbsent(key string, value any) {
	g.write(globalWrite{RuleSetIfAbsent, key, value})
}
func (g *vertexGlobals) And(key string, value bool)   { g.write(globalWrite{RuleAnd, key, value}) }
func (g *vertexGlobals) Or(key string, value bool)    { g.write(globalWrite{RuleOr, key, value}) }
func (g *vertexGlobals) Incr(key string, delta int64) { g.write(globalWrite{RuleIncr, key, delta}) }

// Snapshot is the read-only final state of a computation's globals.
type Snapshot struct {
	Values     map[string]any `json:"values" msgpack:"values"`
	Supersteps int            `json:"supersteps" msgpack:"supersteps"`
	Runtime    time.Duration  `json:"runtime" msgpack:"runtime"`
}

func (s Snapshot) Get(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
