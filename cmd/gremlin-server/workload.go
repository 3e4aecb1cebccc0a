package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
	"github.com/flowgraph/gremlin/internal/app/usecases"
	"github.com/flowgraph/gremlin/internal/core/pregel"
)

// Workloads run a vertex program on a synthetic graph at a fixed rate.
const (
	workloadPageRank  = "pagerank"
	workloadTraversal = "traversal"
)

type workloadManager struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	logger  *slog.Logger
}

func newWorkloadManager(logger *slog.Logger) *workloadManager {
	return &workloadManager{cancels: make(map[string]context.CancelFunc), logger: logger}
}

func (m *workloadManager) start(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if kind != workloadPageRank && kind != workloadTraversal {
		http.Error(w, "unknown workload "+kind, http.StatusNotFound)
		return
	}
	rate := 200 * time.Millisecond
	if v := r.URL.Query().Get("rate_ms"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			rate = time.Duration(ms) * time.Millisecond
		}
	}
	size := 100
	if v := r.URL.Query().Get("vertices"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			size = n
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancels[kind] != nil {
		http.Error(w, kind+" workload already running", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancels[kind] = cancel
	go m.loop(ctx, kind, syntheticGraph(size, 4), rate)

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "%s workload started: vertices=%d rate=%v\n", kind, size, rate)
}

func (m *workloadManager) stop(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel := m.cancels[kind]; cancel != nil {
		cancel()
		delete(m.cancels, kind)
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s workload stopped\n", kind)
}

func (m *workloadManager) loop(ctx context.Context, kind string, g *graphrepo.MemoryGraph, rate time.Duration) {
	ticker := time.NewTicker(rate)
	defer ticker.Stop()
	executor := usecases.NewTraversalExecutor(nil, usecases.WithLogger(m.logger))
	vertices, _ := g.Stats()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var cfg pregel.Configuration
			switch kind {
			case workloadPageRank:
				cfg = pregel.PageRankConfig(vertices, 0.85, 10)
			default:
				cfg = usecases.TraversalStepsConfig("V", "out", "out")
			}
			program, err := pregel.DefaultRegistry.New(cfg)
			if err != nil {
				m.logger.Error("workload program", "kind", kind, "error", err)
				return
			}
			computer := pregel.DefaultConfig()
			computer.MaxSupersteps = 50
			if _, err := executor.Run(ctx, g, program, computer); err != nil && ctx.Err() == nil {
				m.logger.Warn("workload run failed", "kind", kind, "error", err)
			}
		}
	}
}

// syntheticGraph links every vertex to degree random others.
func syntheticGraph(n, degree int) *graphrepo.MemoryGraph {
	g := graphrepo.NewMemoryGraph()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < n; i++ {
		_, _ = g.AddVertex(int64(i), "node", nil)
	}
	for i := 0; i < n; i++ {
		for d := 0; d < degree; d++ {
			j := rng.Intn(n)
			if j == i {
				continue
			}
			_, _ = g.AddEdge(nil, "link", int64(i), int64(j), nil)
		}
	}
	return g
}
