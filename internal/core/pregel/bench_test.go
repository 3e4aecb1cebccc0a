package pregel

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
)

func BenchmarkSchedulerThroughput(b *testing.B) {
	ws := NewWorkStealingScheduler(runtime.NumCPU(), 1024)
	ws.StartWorkers()
	defer ws.Stop()

	res := make(chan VertexResult, 1024)
	task := VertexTask{VertexID: "A", Run: func() VertexResult { return VertexResult{} }, Result: res}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ws.Schedule(task)
		<-res
	}
}

func BenchmarkPageRank(b *testing.B) {
	g := graphrepo.NewMemoryGraph()
	const n = 200
	for i := 0; i < n; i++ {
		if _, err := g.AddVertex(fmt.Sprint(i), "node", nil); err != nil {
			b.Fatal(err)
		}
	}
	for i := 0; i < n; i++ {
		for _, j := range []int{(i + 1) % n, (i * 7) % n} {
			if _, err := g.AddEdge(nil, "link", fmt.Sprint(i), fmt.Sprint(j), nil); err != nil {
				b.Fatal(err)
			}
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := NewGraphComputer(g, DefaultConfig())
		if err != nil {
			b.Fatal(err)
		}
		if _, err := c.Run(context.Background(), PageRankConfig(n, 0.85, 10)); err != nil {
			b.Fatal(err)
		}
	}
}
