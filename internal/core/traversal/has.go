package traversal

import (
	"fmt"
	"strings"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Reserved has-container keys addressing element identity instead of a property.
const (
	IDKey    = "~id"
	LabelKey = "~label"
)

// Compare is a binary predicate used by has containers.
type Compare uint8

const (
	Eq Compare = iota
	Neq
	Gt
	Gte
	Lt
	Lte
)

var compareNames = map[Compare]string{Eq: "eq", Neq: "neq", Gt: "gt", Gte: "gte", Lt: "lt", Lte: "lte"}

func (c Compare) String() string {
	if n, ok := compareNames[c]; ok {
		return n
	}
	return fmt.Sprintf("compare(%d)", uint8(c))
}

// ParseCompare maps a name such as "gte" to its operator.
func ParseCompare(name string) (Compare, bool) {
	for c, n := range compareNames {
		if n == strings.ToLower(name) {
			return c, true
		}
	}
	return 0, false
}

// Test applies the operator to a and b. Ordering is defined for numbers and strings.
func (c Compare) Test(a, b any) (bool, error) {
	switch c {
	case Eq:
		return looseEqual(a, b), nil
	case Neq:
		return !looseEqual(a, b), nil
	}
	if a == nil || b == nil {
		return false, nil
	}
	cmp, err := order(a, b)
	if err != nil {
		return false, err
	}
	switch c {
	case Gt:
		return cmp > 0, nil
	case Gte:
		return cmp >= 0, nil
	case Lt:
		return cmp < 0, nil
	case Lte:
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("unknown compare %s", c)
}

// HasContainer is a single key/compare/value predicate over an element.
type HasContainer struct {
	Key     string
	Compare Compare
	Value   any
}

func (hc HasContainer) String() string {
	return fmt.Sprintf("%s.%s(%v)", hc.Key, hc.Compare, hc.Value)
}

// Test evaluates the container against an element. Missing properties fail
// every comparison.
func (hc HasContainer) Test(v any) (bool, error) {
	el, ok := v.(graph.Element)
	if !ok {
		if p, isProp := v.(graph.Property); isProp && hc.Key == "" {
			return hc.Compare.Test(p.Value, hc.Value)
		}
		return false, fmt.Errorf("%w: %T", ErrNotAnElement, v)
	}
	var actual any
	switch hc.Key {
	case IDKey:
		actual = el.ID()
	case LabelKey:
		actual = el.Label()
	default:
		value, found := el.Property(hc.Key)
		if !found {
			return false, nil
		}
		actual = value
	}
	return hc.Compare.Test(actual, hc.Value)
}

func looseEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return graph.Equal(a, b)
}

func order(a, b any) (int, error) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, nil
			case fa > fb:
				return 1, nil
			}
			return 0, nil
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), nil
		}
	}
	return 0, fmt.Errorf("%w: %T and %T", ErrIncomparable, a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
