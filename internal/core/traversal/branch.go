package traversal

import "fmt"

// Union feeds every input into each branch and interleaves their outputs
// round-robin. New input is pulled only once all branches are exhausted.
func (t *Traversal) Union(branches ...*Traversal) *Traversal {
	for _, b := range branches {
		t.adopt(b)
	}
	return t.addStep(&Step{kind: KindBranch, name: "union", branch: &unionBranch{branches: branches}})
}

// Match threads each input through labeled branches. A branch whose end step
// is unlabeled is a predicate on its start label; the branch ending at outAs
// produces the results; every other branch hands its outputs on to the
// branches starting at its end label.
func (t *Traversal) Match(inAs, outAs string, branches ...*Traversal) *Traversal {
	m, err := newMatchBranch(inAs, outAs, branches)
	if err != nil {
		t.fail(err)
		return t
	}
	for _, b := range branches {
		t.adopt(b)
	}
	return t.addStep(&Step{kind: KindBranch, name: "match", caps: CapPathConsumer, branch: m})
}

func (t *Traversal) adopt(b *Traversal) {
	if b.graph == nil {
		b.graph = t.graph
	}
	if len(b.steps) == 0 {
		b.Identity()
	}
	if b.err != nil {
		t.fail(b.err)
	}
}

type unionBranch struct {
	branches []*Traversal
	pos      int
}

func (u *unionBranch) traversals() []*Traversal { return u.branches }

func (u *unionBranch) process(s *Step) (*Traverser, error) {
	if len(u.branches) == 0 {
		return nil, nil
	}
	for {
		for range u.branches {
			b := u.branches[u.pos]
			u.pos = (u.pos + 1) % len(u.branches)
			ok, err := b.End().hasNext()
			if err != nil {
				return nil, err
			}
			if ok {
				return b.End().next()
			}
		}
		in, err := s.pull()
		if err != nil || in == nil {
			return nil, err
		}
		for _, b := range u.branches {
			b.AddStarts(in.MakeSibling())
		}
	}
}

type matchBranch struct {
	inAs       string
	outAs      string
	predicates map[string][]*Traversal
	internals  map[string][]*Traversal
	end        *Traversal
	endStartAs string
	all        []*Traversal
}

func newMatchBranch(inAs, outAs string, branches []*Traversal) (*matchBranch, error) {
	m := &matchBranch{
		inAs:       inAs,
		outAs:      outAs,
		predicates: make(map[string][]*Traversal),
		internals:  make(map[string][]*Traversal),
		all:        branches,
	}
	for _, b := range branches {
		start, end := b.Start(), b.End()
		if start.IsEmpty() || !start.Labeled() {
			return nil, fmt.Errorf("%w: every branch must start with a labeled step", ErrInvalidMatch)
		}
		switch {
		case !end.Labeled() || end == start:
			m.predicates[start.label] = append(m.predicates[start.label], b)
		case end.label == outAs:
			if m.end != nil {
				return nil, fmt.Errorf("%w: only one branch may end at %q", ErrInvalidMatch, outAs)
			}
			m.end = b
			m.endStartAs = start.label
		default:
			m.internals[start.label] = append(m.internals[start.label], b)
		}
	}
	if m.end == nil {
		return nil, fmt.Errorf("%w: no branch ends at %q", ErrInvalidMatch, outAs)
	}
	return m, nil
}

func (m *matchBranch) traversals() []*Traversal { return m.all }

func (m *matchBranch) process(s *Step) (*Traverser, error) {
	for {
		ok, err := m.end.End().hasNext()
		if err != nil {
			return nil, err
		}
		if ok {
			out, err := m.end.End().next()
			if err != nil {
				return nil, err
			}
			pass, err := m.checkPredicates(m.outAs, out)
			if err != nil {
				return nil, err
			}
			if pass {
				return out, nil
			}
			continue
		}
		in, err := s.pull()
		if err != nil || in == nil {
			return nil, err
		}
		in = in.MakeSibling()
		if in.path != nil {
			in.path.RenameLast(m.inAs)
		}
		if err := m.match(m.inAs, in); err != nil {
			return nil, err
		}
	}
}

func (m *matchBranch) match(as string, tr *Traverser) error {
	pass, err := m.checkPredicates(as, tr)
	if err != nil || !pass {
		return err
	}
	if as == m.endStartAs {
		m.end.AddStarts(tr)
		return nil
	}
	for _, b := range m.internals[as] {
		b.AddStarts(tr.MakeSibling())
		for {
			out, err := b.End().next()
			if err != nil {
				return err
			}
			if out == nil {
				break
			}
			if err := m.match(b.End().label, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkPredicates reports whether every predicate branch keyed by as yields
// at least one result for tr. It stops at the first rejection.
func (m *matchBranch) checkPredicates(as string, tr *Traverser) (bool, error) {
	for _, p := range m.predicates[as] {
		p.AddStarts(tr.MakeSibling())
		ok, err := p.End().hasNext()
		if err != nil {
			return false, err
		}
		if _, err := p.End().Drain(); err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
