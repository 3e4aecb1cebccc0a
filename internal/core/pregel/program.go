package pregel

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/pkg/validation"
)

// VertexProgramKey names the configuration entry that selects the program.
const VertexProgramKey = "gremlin.vertexProgram"

// KeyType says whether a compute key may change after the initial superstep.
type KeyType uint8

const (
	Variable KeyType = iota + 1
	Constant
)

func (k KeyType) String() string {
	switch k {
	case Variable:
		return "VARIABLE"
	case Constant:
		return "CONSTANT"
	default:
		return "unknown"
	}
}

// VertexProgram is the per-vertex logic of a bulk synchronous computation.
//
// A single instance serves a whole computation and Execute is called
// concurrently for different vertices, so an implementation must not mutate
// its own fields after Initialize.
type VertexProgram interface {
	// Initialize loads the program's parameters.
	Initialize(cfg Configuration) error
	// Setup runs once on the master before superstep 0.
	Setup(g Globals) error
	// Execute runs once per vertex per superstep.
	Execute(v graph.Vertex, m Messenger, g Globals) error
	// Terminate runs on the master after every barrier; true halts.
	Terminate(g Globals) bool
	// ComputeKeys declares the vertex properties the program may write.
	ComputeKeys() map[string]KeyType
	// GlobalKeys declares the globals the program may read or write.
	GlobalKeys() []string
}

// Combining is implemented by programs that fold messages in flight.
type Combining interface {
	Combiner() MessageCombiner
}

// Configuration carries a program's parameters. It round-trips through
// YAML, so numbers may arrive as int, int64, uint64 or float64.
type Configuration map[string]any

// ProgramName returns the registered program name.
func (c Configuration) ProgramName() (string, error) {
	name, ok := c[VertexProgramKey].(string)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNoProgram, VertexProgramKey)
	}
	return name, nil
}

func (c Configuration) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

func (c Configuration) GetString(key, def string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// GetInt returns key as an int. A present value that is not a whole number
// is reported as ErrInvalidConfiguration.
func (c Configuration) GetInt(key string, def int) (int, error) {
	switch v := c[key].(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s=%v is not an integer", ErrInvalidConfiguration, key, c[key])
}

func (c Configuration) GetFloat(key string, def float64) (float64, error) {
	switch v := c[key].(type) {
	case nil:
		return def, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s=%v is not a number", ErrInvalidConfiguration, key, c[key])
}

func (c Configuration) GetBool(key string, def bool) (bool, error) {
	switch v := c[key].(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: %s=%v is not a boolean", ErrInvalidConfiguration, key, c[key])
}

// Clone returns a shallow copy.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Factory returns a fresh, uninitialized program.
type Factory func() VertexProgram

// Registry maps program names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry holds the programs registered by this module.
var DefaultRegistry = NewRegistry()

// Register adds a program to the default registry.
func Register(name string, f Factory) { DefaultRegistry.Register(name, f) }

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names lists registered programs in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New resolves the program named by cfg and initializes it.
func (r *Registry) New(cfg Configuration) (VertexProgram, error) {
	name, err := cfg.ProgramName()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVertexProgram, name)
	}
	p := f()
	if err := p.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", name, err)
	}
	return p, nil
}

// checkKeys validates a program's declared compute and global keys.
func checkKeys(p VertexProgram) error {
	for k, kt := range p.ComputeKeys() {
		if !validation.IsKeyName(k) {
			return fmt.Errorf("%w: %q is not a valid key name", ErrInvalidComputeKeys, k)
		}
		if kt != Variable && kt != Constant {
			return fmt.Errorf("%w: %q has key type %v", ErrInvalidComputeKeys, k, kt)
		}
	}
	for _, k := range p.GlobalKeys() {
		if !validation.IsKeyName(k) {
			return fmt.Errorf("%w: global %q is not a valid key name", ErrInvalidComputeKeys, k)
		}
	}
	return nil
}
