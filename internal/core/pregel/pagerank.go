package pregel

import (
	"fmt"
	"strings"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// PageRank program keys.
const (
	PageRankProgram = "pageRank"

	PageRankKey  = "gremlin.pageRankVertexProgram.pageRank"
	EdgeCountKey = "gremlin.pageRankVertexProgram.edgeCount"

	PageRankVertexCount = "gremlin.pageRankVertexProgram.vertexCount"
	PageRankAlpha       = "gremlin.pageRankVertexProgram.alpha"
	PageRankIterations  = "gremlin.pageRankVertexProgram.totalIterations"
	PageRankEdgeLabels  = "gremlin.pageRankVertexProgram.edgeLabels"
)

func init() {
	Register(PageRankProgram, func() VertexProgram { return &PageRankVertexProgram{} })
}

// PageRankVertexProgram ranks vertices by spreading rank over out edges for
// a fixed number of iterations.
type PageRankVertexProgram struct {
	vertexCount float64
	alpha       float64
	iterations  int
	incident    *LocalMessageType
}

// PageRankConfig builds a configuration for the program. labels restricts
// the out edges rank flows over.
func PageRankConfig(vertexCount int, alpha float64, iterations int, labels ...string) Configuration {
	return Configuration{
		VertexProgramKey:    PageRankProgram,
		PageRankVertexCount: vertexCount,
		PageRankAlpha:       alpha,
		PageRankIterations:  iterations,
		PageRankEdgeLabels:  strings.Join(labels, ","),
	}
}

func (p *PageRankVertexProgram) Name() string { return PageRankProgram }

func (p *PageRankVertexProgram) Initialize(cfg Configuration) error {
	var err error
	if p.vertexCount, err = cfg.GetFloat(PageRankVertexCount, 1); err != nil {
		return err
	}
	if p.vertexCount <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidConfiguration, PageRankVertexCount)
	}
	if p.alpha, err = cfg.GetFloat(PageRankAlpha, 0.85); err != nil {
		return err
	}
	if p.alpha < 0 || p.alpha > 1 {
		return fmt.Errorf("%w: %s must be within [0,1]", ErrInvalidConfiguration, PageRankAlpha)
	}
	if p.iterations, err = cfg.GetInt(PageRankIterations, 30); err != nil {
		return err
	}
	if p.iterations < 1 {
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalidConfiguration, PageRankIterations)
	}
	var labels []string
	if s := cfg.GetString(PageRankEdgeLabels, ""); s != "" {
		labels = strings.Split(s, ",")
	}
	p.incident = Local(graph.Out, labels...)
	return nil
}

func (p *PageRankVertexProgram) ComputeKeys() map[string]KeyType {
	return map[string]KeyType{PageRankKey: Variable, EdgeCountKey: Constant}
}

func (p *PageRankVertexProgram) GlobalKeys() []string { return nil }

func (p *PageRankVertexProgram) Combiner() MessageCombiner { return SumCombiner{} }

func (p *PageRankVertexProgram) Setup(Globals) error { return nil }

func (p *PageRankVertexProgram) Execute(v graph.Vertex, m Messenger, g Globals) error {
	var rank, edgeCount float64
	if g.IsInitialSuperstep() {
		rank = 1 / p.vertexCount
		edgeCount = float64(len(v.Edges(p.incident.Direction(), p.incident.Labels()...)))
		if err := v.SetProperty(EdgeCountKey, edgeCount); err != nil {
			return err
		}
	} else {
		var sum float64
		for _, msg := range m.ReceiveMessages(p.incident) {
			sum += toFloat(msg)
		}
		rank = p.alpha*sum + (1-p.alpha)/p.vertexCount
		if c, ok := v.Property(EdgeCountKey); ok {
			edgeCount, _ = c.(float64)
		}
	}
	if err := v.SetProperty(PageRankKey, rank); err != nil {
		return err
	}
	if edgeCount == 0 {
		return nil
	}
	return m.SendMessage(p.incident, rank/edgeCount)
}

func (p *PageRankVertexProgram) Terminate(g Globals) bool {
	return g.Superstep() >= p.iterations
}
