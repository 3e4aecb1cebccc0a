package usecases

import (
	"fmt"
	"strings"

	"github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/internal/core/pregel"
	"github.com/flowgraph/gremlin/internal/core/traversal"
	imetrics "github.com/flowgraph/gremlin/internal/infrastructure/metrics"
)

const (
	// TraversalProgram is the registry name of TraversalVertexProgram.
	TraversalProgram = "traversal"

	// SupplierKey holds a Supplier in a program configuration.
	SupplierKey = "gremlin.traversalSupplier"
	// StepsKey holds a step list for traversal.Compile, as []string or a
	// whitespace separated string.
	StepsKey = "gremlin.traversalVertexProgram.steps"

	// TrackPathsKey forces path tracking even when no step reads paths.
	TrackPathsKey = "gremlin.traversalVertexProgram.trackPaths"

	// TrackerKey is the compute key holding each vertex's final traversers.
	TrackerKey = "gremlin.traversalVertexProgram.traverserTracker"
	// VoteToHaltKey is the global that stays true through a superstep in
	// which no traverser moved.
	VoteToHaltKey = "gremlin.traversalVertexProgram.voteToHalt"
)

// traverserLabel is the message label traversers travel under.
const traverserLabel = "traversers"

// Supplier builds a fresh traversal. It is called once per vertex execution,
// so it must not share step state between calls.
type Supplier func() (*traversal.Traversal, error)

// TraversalVertexProgram runs a traversal on the graph computer. Superstep 0
// seeds a traverser for every start element; later supersteps advance the
// traversers each vertex received through the local part of the pipeline
// and forward them whenever they land on an element another vertex hosts.
// Traversers that finish are counted in the tracker of the vertex they end on.
type TraversalVertexProgram struct {
	supplier   Supplier
	trackPaths bool
	startKind  graph.ElementKind
	describe   string
}

func init() {
	pregel.Register(TraversalProgram, func() pregel.VertexProgram { return &TraversalVertexProgram{} })
}

// TraversalConfig builds the configuration for a supplier.
func TraversalConfig(s Supplier) pregel.Configuration {
	return pregel.Configuration{pregel.VertexProgramKey: TraversalProgram, SupplierKey: s}
}

// TraversalStepsConfig builds the configuration for a compiled step list.
func TraversalStepsConfig(steps ...string) pregel.Configuration {
	return pregel.Configuration{pregel.VertexProgramKey: TraversalProgram, StepsKey: steps}
}

// NewTraversalVertexProgram returns an initialized program for s.
func NewTraversalVertexProgram(s Supplier) (*TraversalVertexProgram, error) {
	p := &TraversalVertexProgram{}
	if err := p.Initialize(TraversalConfig(s)); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *TraversalVertexProgram) Initialize(cfg pregel.Configuration) error {
	supplier, err := supplierFrom(cfg)
	if err != nil {
		return err
	}
	probe, err := supplier()
	if err != nil {
		return fmt.Errorf("%w: traversal supplier: %v", pregel.ErrInvalidConfiguration, err)
	}
	if err := probe.ApplyStrategies(); err != nil {
		return fmt.Errorf("%w: %v", pregel.ErrInvalidConfiguration, err)
	}

	start := probe.Start()
	kind := start.SourceKind()
	if kind != graph.KindVertex && kind != graph.KindEdge {
		return fmt.Errorf("%w: traversal must start with V() or E(), got %s",
			pregel.ErrInvalidConfiguration, start.Name())
	}

	forced, err := cfg.GetBool(TrackPathsKey, false)
	if err != nil {
		return err
	}

	p.supplier = supplier
	p.startKind = kind
	p.trackPaths = forced || start.Seed(nil).Tracking()
	p.describe = describe(probe)
	return nil
}

func supplierFrom(cfg pregel.Configuration) (Supplier, error) {
	switch s := cfg[SupplierKey].(type) {
	case Supplier:
		if s != nil {
			return s, nil
		}
	case func() (*traversal.Traversal, error):
		if s != nil {
			return s, nil
		}
	}

	var steps []string
	switch v := cfg[StepsKey].(type) {
	case []string:
		steps = v
	case []any:
		for _, s := range v {
			steps = append(steps, fmt.Sprint(s))
		}
	case string:
		steps = strings.Fields(v)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: neither %s nor %s is set",
			pregel.ErrInvalidConfiguration, SupplierKey, StepsKey)
	}
	return func() (*traversal.Traversal, error) {
		return traversal.Compile(nil, steps)
	}, nil
}

func describe(t *traversal.Traversal) string {
	names := make([]string, 0, len(t.Steps()))
	for _, s := range t.Steps() {
		names = append(names, s.String())
	}
	return "[" + strings.Join(names, ", ") + "]"
}

func (p *TraversalVertexProgram) Name() string { return TraversalProgram }

func (p *TraversalVertexProgram) String() string {
	return "TraversalVertexProgram" + p.describe
}

// TrackPaths reports whether final results keep their paths.
func (p *TraversalVertexProgram) TrackPaths() bool { return p.trackPaths }

func (p *TraversalVertexProgram) Setup(g pregel.Globals) error {
	g.SetIfAbsent(VoteToHaltKey, true)
	return nil
}

func (p *TraversalVertexProgram) Execute(v graph.Vertex, m pregel.Messenger, g pregel.Globals) error {
	if g.IsInitialSuperstep() {
		return p.seed(v, m, g)
	}
	return p.advance(v, m, g)
}

// Terminate halts once a whole superstep went by without a traverser being
// sent. Otherwise the vote is reset so that only the next superstep's
// senders can clear it.
func (p *TraversalVertexProgram) Terminate(g pregel.Globals) bool {
	if pregel.GetBool(g, VoteToHaltKey) {
		return true
	}
	g.Or(VoteToHaltKey, true)
	return false
}

func (p *TraversalVertexProgram) ComputeKeys() map[string]pregel.KeyType {
	return map[string]pregel.KeyType{TrackerKey: pregel.Variable}
}

func (p *TraversalVertexProgram) GlobalKeys() []string {
	return []string{VoteToHaltKey}
}

// local builds the per-execution pipeline. Steps only consume what is
// explicitly handed to them.
func (p *TraversalVertexProgram) local() (*traversal.Traversal, error) {
	t, err := p.supplier()
	if err != nil {
		return nil, err
	}
	if err := t.ApplyStrategies(); err != nil {
		return nil, err
	}
	if p.trackPaths {
		t.TrackPaths()
	}
	t.Isolate()
	return t, nil
}

func (p *TraversalVertexProgram) seed(v graph.Vertex, m pregel.Messenger, g pregel.Globals) error {
	t, err := p.local()
	if err != nil {
		return err
	}
	start := t.Start()
	future := start.Next().Label()
	if start.Next().IsEmpty() {
		future = traversal.NoFuture
	}

	var candidates []graph.Element
	switch p.startKind {
	case graph.KindVertex:
		candidates = append(candidates, v)
	case graph.KindEdge:
		for _, e := range v.Edges(graph.Out) {
			candidates = append(candidates, e)
		}
	}

	sent := false
	for _, el := range candidates {
		ok, err := start.Accepts(el)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		tr := start.Seed(el)
		tr.SetFuture(future)
		if err := send(m, v.ID(), tr); err != nil {
			return err
		}
		sent = true
	}
	g.And(VoteToHaltKey, !sent)
	return nil
}

// advance moves every received traverser as far as this vertex can take it.
func (p *TraversalVertexProgram) advance(v graph.Vertex, m pregel.Messenger, g pregel.Globals) error {
	msgs := m.ReceiveMessages(pregel.GlobalIDs().WithLabel(traverserLabel))
	if len(msgs) == 0 {
		return nil
	}
	t, err := p.local()
	if err != nil {
		return err
	}

	tracker := trackerOf(v).clone()
	finished := 0
	for _, msg := range msgs {
		in, ok := msg.(*traversal.Traverser)
		if !ok {
			return fmt.Errorf("unexpected message %T on vertex %v", msg, v.ID())
		}
		// A retried execution sees the same message again.
		tr := in.MakeSibling()
		if err := tr.Inflate(v); err != nil {
			return err
		}
		if tr.Future() == traversal.NoFuture {
			tracker.add(tr, p.trackPaths)
			finished++
			continue
		}
		step, err := t.StepByLabel(tr.Future())
		if err != nil {
			return err
		}
		step.AddStarts(tr)
	}

	sent := false
	for {
		step := pendingStep(t)
		if step == nil {
			break
		}
		outs, err := step.Drain()
		if err != nil {
			return err
		}
		next := step.Next()
		for _, out := range outs {
			moved, err := p.route(v, m, out, next, tracker)
			if err != nil {
				return err
			}
			if moved {
				sent = true
			} else if next.IsEmpty() {
				finished++
			}
		}
	}

	if finished > 0 {
		if err := v.SetProperty(TrackerKey, tracker); err != nil {
			return err
		}
	}
	g.And(VoteToHaltKey, !sent)
	return nil
}

// route hands out to the next step, sends it to the vertex hosting its
// element, or records it as final. It reports whether out was sent.
func (p *TraversalVertexProgram) route(v graph.Vertex, m pregel.Messenger, out *traversal.Traverser,
	next *traversal.Step, tracker *Tracker) (bool, error) {
	if ref, ok := out.Reference(); ok && !graph.Equal(ref.HostID, v.ID()) {
		future := traversal.NoFuture
		if !next.IsEmpty() {
			future = next.Label()
		}
		out.SetFuture(future)
		imetrics.AddTraversers(1)
		return true, send(m, ref.HostID, out)
	}
	if next.IsEmpty() {
		out.SetFuture(traversal.NoFuture)
		tracker.add(out, p.trackPaths)
		return false, nil
	}
	next.AddStarts(out)
	return false, nil
}

// pendingStep returns the earliest step with queued input. Loops feed
// earlier steps, so the scan restarts from the head each time.
func pendingStep(t *traversal.Traversal) *traversal.Step {
	for _, s := range t.Steps() {
		if s.HasStarts() {
			return s
		}
	}
	return nil
}

func send(m pregel.Messenger, host any, tr *traversal.Traverser) error {
	return m.SendMessage(pregel.GlobalIDs(host).WithLabel(traverserLabel), tr.Deflate())
}
