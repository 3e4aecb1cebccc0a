package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVertex struct {
	id    string
	label string
	props map[string]any
	out   []Edge
}

func (v *stubVertex) ID() any       { return v.id }
func (v *stubVertex) Label() string { return v.label }
func (v *stubVertex) Property(key string) (any, bool) {
	val, ok := v.props[key]
	return val, ok
}
func (v *stubVertex) Keys() []string                    { return nil }
func (v *stubVertex) SetProperty(k string, x any) error { v.props[k] = x; return nil }
func (v *stubVertex) RemoveProperty(k string) error     { delete(v.props, k); return nil }
func (v *stubVertex) Edges(dir Direction, labels ...string) []Edge {
	if dir == In {
		return nil
	}
	return v.out
}
func (v *stubVertex) Vertices(dir Direction, labels ...string) []Vertex { return nil }

type stubEdge struct {
	id      string
	label   string
	out, in *stubVertex
	props   map[string]any
}

func (e *stubEdge) ID() any       { return e.id }
func (e *stubEdge) Label() string { return e.label }
func (e *stubEdge) Property(key string) (any, bool) {
	val, ok := e.props[key]
	return val, ok
}
func (e *stubEdge) Keys() []string                    { return nil }
func (e *stubEdge) SetProperty(k string, x any) error { return nil }
func (e *stubEdge) RemoveProperty(k string) error     { return nil }
func (e *stubEdge) OutVertex() Vertex                 { return e.out }
func (e *stubEdge) InVertex() Vertex                  { return e.in }

func fixture() (*stubVertex, *stubVertex, *stubEdge) {
	a := &stubVertex{id: "a", label: "person", props: map[string]any{"name": "alice"}}
	b := &stubVertex{id: "b", label: "person", props: map[string]any{"name": "bob"}}
	e := &stubEdge{id: "ab", label: "knows", out: a, in: b, props: map[string]any{"weight": 0.5}}
	a.out = []Edge{e}
	return a, b, e
}

func TestDetach(t *testing.T) {
	a, _, e := fixture()

	t.Run("vertex is its own host", func(t *testing.T) {
		r, ok := Detach(a)
		require.True(t, ok)
		assert.Equal(t, Reference{Kind: KindVertex, ID: "a", Label: "person", HostID: "a"}, r)
	})

	t.Run("edge is hosted by its out vertex", func(t *testing.T) {
		r, ok := Detach(e)
		require.True(t, ok)
		assert.Equal(t, KindEdge, r.Kind)
		assert.Equal(t, "a", r.HostID)
		assert.Equal(t, "knows", r.Label)
	})

	t.Run("edge property follows its edge", func(t *testing.T) {
		r, ok := Detach(Property{Key: "weight", Value: 0.5, Element: e})
		require.True(t, ok)
		assert.Equal(t, KindProperty, r.Kind)
		assert.Equal(t, KindEdge, r.OwnerKind)
		assert.Equal(t, "a", r.HostID)
	})

	t.Run("primitives do not detach", func(t *testing.T) {
		_, ok := Detach(42)
		assert.False(t, ok)
		assert.False(t, IsElement("x"))
	})
}

func TestResolve(t *testing.T) {
	a, b, e := fixture()

	t.Run("round trip keeps id and label", func(t *testing.T) {
		for _, el := range []any{a, e} {
			r, _ := Detach(el)
			back, err := Resolve(r, a)
			require.NoError(t, err)
			br, _ := Detach(back)
			assert.Equal(t, r.ID, br.ID)
			assert.Equal(t, r.Label, br.Label)
		}
	})

	t.Run("property is re-read from the local element", func(t *testing.T) {
		r, _ := Detach(Property{Key: "name", Value: "alice", Element: a})
		back, err := Resolve(r, a)
		require.NoError(t, err)
		assert.Equal(t, "alice", back.(Property).Value)
	})

	t.Run("remote vertex fails", func(t *testing.T) {
		r, _ := Detach(b)
		_, err := Resolve(r, a)
		assert.ErrorIs(t, err, ErrElementRemote)
	})

	t.Run("edge of another vertex fails", func(t *testing.T) {
		r, _ := Detach(e)
		_, err := Resolve(r, b)
		assert.ErrorIs(t, err, ErrElementRemote)
	})
}

func TestEqual(t *testing.T) {
	a, b, _ := fixture()
	ra, _ := Detach(a)

	assert.True(t, Equal(a, ra))
	assert.False(t, Equal(a, b))
	assert.False(t, Equal(a, "a"))
	assert.True(t, Equal(3, 3))
	assert.False(t, Equal(3, int64(3)))
	assert.True(t, Equal([]int{1, 2}, []int{1, 2}))
	assert.True(t, Equal(nil, nil))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, In, Out.Opposite())
	assert.Equal(t, Both, Both.Opposite())
	assert.Equal(t, "out", Out.String())
	assert.True(t, HasLabel(nil, "anything"))
	assert.False(t, HasLabel([]string{"knows"}, "likes"))
}
