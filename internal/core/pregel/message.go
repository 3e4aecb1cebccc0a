package pregel

import (
	"fmt"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Default message type labels.
const (
	GlobalLabel = "global"
	LocalLabel  = "local"
)

// MessageType addresses a message and names the queue it is received from.
type MessageType interface {
	Label() string
	// Kind is "global" or "local".
	Kind() string
}

// GlobalMessageType addresses explicit vertices, by element or by id, or
// the vertices a query returns.
type GlobalMessageType struct {
	label string
	ids   []any
	query func(graph.Graph) []graph.Vertex
}

// Global addresses the given vertices.
func Global(vertices ...graph.Vertex) *GlobalMessageType {
	ids := make([]any, 0, len(vertices))
	for _, v := range vertices {
		ids = append(ids, v.ID())
	}
	return &GlobalMessageType{label: GlobalLabel, ids: ids}
}

// GlobalIDs addresses vertices by id.
func GlobalIDs(ids ...any) *GlobalMessageType {
	return &GlobalMessageType{label: GlobalLabel, ids: append([]any(nil), ids...)}
}

// GlobalQuery addresses whatever q returns when the message is sent.
func GlobalQuery(q func(graph.Graph) []graph.Vertex) *GlobalMessageType {
	return &GlobalMessageType{label: GlobalLabel, query: q}
}

// WithLabel returns a copy receiving under label.
func (m *GlobalMessageType) WithLabel(label string) *GlobalMessageType {
	c := *m
	c.label = label
	return &c
}

func (m *GlobalMessageType) Label() string { return m.label }
func (m *GlobalMessageType) Kind() string  { return GlobalLabel }

func (m *GlobalMessageType) targets(g graph.Graph) []any {
	if m.query == nil {
		return m.ids
	}
	vs := m.query(g)
	ids := make([]any, 0, len(vs))
	for _, v := range vs {
		ids = append(ids, v.ID())
	}
	return ids
}

// EdgeFunction rewrites a message as it crosses an edge.
type EdgeFunction func(msg any, e graph.Edge) any

// LocalMessageType addresses the vertices adjacent to the sender over the
// incident edges in a direction, optionally restricted by label.
type LocalMessageType struct {
	label  string
	dir    graph.Direction
	labels []string
	edgeFn EdgeFunction
}

// Local addresses adjacent vertices over incident edges.
func Local(dir graph.Direction, labels ...string) *LocalMessageType {
	return &LocalMessageType{label: LocalLabel, dir: dir, labels: append([]string(nil), labels...)}
}

// WithLabel returns a copy receiving under label.
func (m *LocalMessageType) WithLabel(label string) *LocalMessageType {
	c := *m
	c.label = label
	return &c
}

// WithEdgeFunction returns a copy that passes every message through fn.
func (m *LocalMessageType) WithEdgeFunction(fn EdgeFunction) *LocalMessageType {
	c := *m
	c.edgeFn = fn
	return &c
}

func (m *LocalMessageType) Label() string              { return m.label }
func (m *LocalMessageType) Kind() string               { return LocalLabel }
func (m *LocalMessageType) Direction() graph.Direction { return m.dir }
func (m *LocalMessageType) Labels() []string           { return m.labels }

// Messenger is a vertex's view of the message board during one execution.
type Messenger interface {
	// ReceiveMessages returns the messages delivered to this vertex under
	// mt's kind and label in the previous superstep. Never nil.
	ReceiveMessages(mt MessageType) []any
	// SendMessage queues msg for delivery in the next superstep.
	SendMessage(mt MessageType, msg any) error
}

// MessageCombiner folds two messages bound for the same vertex into one.
// It must be associative and commutative.
type MessageCombiner interface {
	Combine(a, b any) any
}

// CombinerFunc adapts a function to MessageCombiner.
type CombinerFunc func(a, b any) any

func (f CombinerFunc) Combine(a, b any) any { return f(a, b) }

// SumCombiner adds numeric messages. Mixed types are summed as float64.
type SumCombiner struct{}

func (SumCombiner) Combine(a, b any) any {
	switch x := a.(type) {
	case int:
		if y, ok := b.(int); ok {
			return x + y
		}
	case int64:
		if y, ok := b.(int64); ok {
			return x + y
		}
	}
	return toFloat(a) + toFloat(b)
}

// MinCombiner keeps the smaller numeric message.
type MinCombiner struct{}

func (MinCombiner) Combine(a, b any) any {
	if toFloat(b) < toFloat(a) {
		return b
	}
	return a
}

// MaxCombiner keeps the larger numeric message.
type MaxCombiner struct{}

func (MaxCombiner) Combine(a, b any) any {
	if toFloat(b) > toFloat(a) {
		return b
	}
	return a
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

// slot addresses one message queue of a vertex. Global and local sends under
// the same label land in different slots, so only local queues are combined.
type slot struct {
	kind  string
	label string
}

// inbox holds a superstep's deliveries: vertex id -> slot -> messages.
type inbox map[any]map[slot][]any

// outbox is the per-execution sending buffer. Local messages are folded on
// enqueue when a combiner is set.
type outbox struct {
	combiner MessageCombiner
	msgs     inbox
	sent     map[string]int64
	combined int64
}

func newOutbox(c MessageCombiner) *outbox {
	return &outbox{combiner: c, msgs: make(inbox), sent: make(map[string]int64)}
}

func (o *outbox) put(kind, label string, target, msg any) {
	bySlot, ok := o.msgs[target]
	if !ok {
		bySlot = make(map[slot][]any)
		o.msgs[target] = bySlot
	}
	o.sent[kind]++
	key := slot{kind: kind, label: label}
	q := bySlot[key]
	if o.combiner != nil && kind == LocalLabel && len(q) == 1 {
		q[0] = o.combiner.Combine(q[0], msg)
		o.combined++
		return
	}
	bySlot[key] = append(q, msg)
}

// board is the double-buffered message store. receiving is read during a
// superstep; outboxes are merged into the next receiving buffer at the barrier.
type board struct {
	combiner  MessageCombiner
	receiving inbox
}

func newBoard(c MessageCombiner) *board {
	return &board{combiner: c, receiving: make(inbox)}
}

func (b *board) messages(id any, kind, label string) []any {
	msgs := b.receiving[id][slot{kind: kind, label: label}]
	out := make([]any, len(msgs))
	copy(out, msgs)
	return out
}

// swap merges outboxes in order into a fresh buffer and makes it the
// receiving side. It returns how many local messages the combiner folded.
func (b *board) swap(outs []*outbox) int64 {
	next := make(inbox)
	var combined int64
	for _, o := range outs {
		if o == nil {
			continue
		}
		combined += o.combined
		for target, bySlot := range o.msgs {
			dst, ok := next[target]
			if !ok {
				dst = make(map[slot][]any)
				next[target] = dst
			}
			for key, msgs := range bySlot {
				q := dst[key]
				if b.combiner != nil && key.kind == LocalLabel && len(q) == 1 && len(msgs) == 1 {
					q[0] = b.combiner.Combine(q[0], msgs[0])
					combined++
					continue
				}
				dst[key] = append(q, msgs...)
			}
		}
	}
	b.receiving = next
	return combined
}

// messenger binds one vertex execution to the board.
type messenger struct {
	vertex graph.Vertex
	graph  graph.Graph
	board  *board
	out    *outbox
}

func (m *messenger) ReceiveMessages(mt MessageType) []any {
	return m.board.messages(m.vertex.ID(), mt.Kind(), mt.Label())
}

func (m *messenger) SendMessage(mt MessageType, msg any) error {
	switch t := mt.(type) {
	case *GlobalMessageType:
		for _, id := range t.targets(m.graph) {
			m.out.put(GlobalLabel, t.label, id, msg)
		}
	case *LocalMessageType:
		for _, e := range m.vertex.Edges(t.dir, t.labels...) {
			other := graph.Other(e, m.vertex)
			payload := msg
			if t.edgeFn != nil {
				payload = t.edgeFn(msg, e)
			}
			m.out.put(LocalLabel, t.label, other.ID(), payload)
		}
	default:
		return fmt.Errorf("unsupported message type %T", mt)
	}
	return nil
}
