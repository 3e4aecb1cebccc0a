package graphrepo

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Repository keeps named graphs in memory.
type Repository struct {
	mu     sync.RWMutex
	graphs map[string]graph.Graph
}

func NewRepository() *Repository {
	return &Repository{graphs: make(map[string]graph.Graph)}
}

// Save stores g under id, replacing any graph already there.
func (r *Repository) Save(_ context.Context, id string, g graph.Graph) error {
	if id == "" {
		return fmt.Errorf("%w: empty graph id", graph.ErrInvalidID)
	}
	if g == nil {
		return graph.ErrNilElement
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[id] = g
	return nil
}

func (r *Repository) Get(_ context.Context, id string) (graph.Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.graphs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrGraphNotFound, id)
	}
	return g, nil
}

// List returns the stored ids in sorted order.
func (r *Repository) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.graphs))
	for id := range r.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.graphs[id]; !ok {
		return fmt.Errorf("%w: %s", graph.ErrGraphNotFound, id)
	}
	delete(r.graphs, id)
	return nil
}

// LoadFile reads a YAML graph document and stores it under id.
func (r *Repository) LoadFile(ctx context.Context, id, path string) (*MemoryGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := r.Save(ctx, id, g); err != nil {
		return nil, err
	}
	return g, nil
}
