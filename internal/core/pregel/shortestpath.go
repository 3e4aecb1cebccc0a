package pregel

import (
	"fmt"
	"math"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Shortest path program keys.
const (
	ShortestPathProgram = "shortestPath"

	DistanceKey = "gremlin.shortestPathVertexProgram.distance"

	ShortestPathSource    = "gremlin.shortestPathVertexProgram.source"
	ShortestPathWeightKey = "gremlin.shortestPathVertexProgram.weightKey"

	shortestPathChanged = "gremlin.shortestPathVertexProgram.changed"
)

func init() {
	Register(ShortestPathProgram, func() VertexProgram { return &ShortestPathVertexProgram{} })
}

// ShortestPathVertexProgram computes single-source distances over out
// edges. Edge weights are read from weightKey and default to 1. It halts
// once a superstep improves no distance.
type ShortestPathVertexProgram struct {
	source    string
	weightKey string
	outgoing  *LocalMessageType
}

func ShortestPathConfig(source any, weightKey string) Configuration {
	return Configuration{
		VertexProgramKey:      ShortestPathProgram,
		ShortestPathSource:    fmt.Sprint(source),
		ShortestPathWeightKey: weightKey,
	}
}

func (p *ShortestPathVertexProgram) Name() string { return ShortestPathProgram }

func (p *ShortestPathVertexProgram) Initialize(cfg Configuration) error {
	p.source = cfg.GetString(ShortestPathSource, "")
	if p.source == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfiguration, ShortestPathSource)
	}
	p.weightKey = cfg.GetString(ShortestPathWeightKey, "")
	p.outgoing = Local(graph.Out).WithEdgeFunction(p.relax)
	return nil
}

// relax adds the edge weight to a distance crossing it.
func (p *ShortestPathVertexProgram) relax(msg any, e graph.Edge) any {
	w := 1.0
	if p.weightKey != "" {
		if v, ok := e.Property(p.weightKey); ok {
			w = toFloat(v)
		}
	}
	return toFloat(msg) + w
}

func (p *ShortestPathVertexProgram) ComputeKeys() map[string]KeyType {
	return map[string]KeyType{DistanceKey: Variable}
}

func (p *ShortestPathVertexProgram) GlobalKeys() []string { return []string{shortestPathChanged} }

func (p *ShortestPathVertexProgram) Combiner() MessageCombiner { return MinCombiner{} }

func (p *ShortestPathVertexProgram) Setup(g Globals) error {
	g.Set(shortestPathChanged, false)
	return nil
}

func (p *ShortestPathVertexProgram) Execute(v graph.Vertex, m Messenger, g Globals) error {
	current := math.Inf(1)
	if d, ok := v.Property(DistanceKey); ok {
		current = toFloat(d)
	}

	best := current
	if g.IsInitialSuperstep() && fmt.Sprint(v.ID()) == p.source {
		best = 0
	}
	for _, msg := range m.ReceiveMessages(p.outgoing) {
		if d := toFloat(msg); d < best {
			best = d
		}
	}

	if g.IsInitialSuperstep() || best < current {
		if err := v.SetProperty(DistanceKey, best); err != nil {
			return err
		}
	}
	if best < current {
		g.Or(shortestPathChanged, true)
		return m.SendMessage(p.outgoing, best)
	}
	return nil
}

// Terminate halts after a superstep in which no distance improved.
func (p *ShortestPathVertexProgram) Terminate(g Globals) bool {
	changed := GetBool(g, shortestPathChanged)
	g.Set(shortestPathChanged, false)
	return !changed
}
