package traversal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowgraph/gremlin/internal/core/graph"
)

// Compile builds a traversal from a list of step specs such as
// ["V", "has:name=marko", "out:knows", "values:name"]. Arguments follow a
// colon and are comma separated.
func Compile(g graph.Graph, specs []string) (*Traversal, error) {
	t := New(g)
	for _, spec := range specs {
		name, args := splitSpec(spec)
		if err := compileStep(t, name, args); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidStepSpec, spec, err)
		}
		if t.err != nil {
			return nil, t.err
		}
	}
	if len(t.steps) == 0 {
		return nil, fmt.Errorf("%w: empty step list", ErrInvalidStepSpec)
	}
	return t, nil
}

func splitSpec(spec string) (string, []string) {
	name, rest, found := strings.Cut(strings.TrimSpace(spec), ":")
	if !found || rest == "" {
		return name, nil
	}
	args := strings.Split(rest, ",")
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
	}
	return name, args
}

func compileStep(t *Traversal, name string, args []string) error {
	switch name {
	case "V":
		t.V(stringIDs(args)...)
	case "E":
		t.E(stringIDs(args)...)
	case "inject":
		t.Inject(anyValues(args)...)
	case "out":
		t.Out(args...)
	case "in":
		t.In(args...)
	case "both":
		t.Both(args...)
	case "outE":
		t.OutE(args...)
	case "inE":
		t.InE(args...)
	case "bothE":
		t.BothE(args...)
	case "outV":
		t.OutV()
	case "inV":
		t.InV()
	case "bothV":
		t.BothV()
	case "has":
		return compileHas(t, args)
	case "hasLabel":
		if len(args) == 0 {
			return fmt.Errorf("hasLabel needs at least one label")
		}
		t.HasLabel(args...)
	case "values":
		t.Values(args...)
	case "value":
		if len(args) != 1 {
			return fmt.Errorf("value needs exactly one key")
		}
		t.Value(args[0])
	case "properties":
		t.Properties(args...)
	case "element":
		t.Element()
	case "id":
		t.ID()
	case "label":
		t.Label()
	case "identity":
		t.Identity()
	case "as":
		if len(args) != 1 {
			return fmt.Errorf("as needs exactly one label")
		}
		t.As(args[0])
	case "back":
		if len(args) != 1 {
			return fmt.Errorf("back needs exactly one label")
		}
		t.Back(args[0])
	case "path":
		t.Path()
	case "dedup":
		t.Dedup()
	case "shuffle":
		t.Shuffle()
	case "random":
		if len(args) != 1 {
			return fmt.Errorf("random needs a probability")
		}
		p, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		t.Random(p)
	case "groupCount":
		if len(args) != 1 {
			return fmt.Errorf("groupCount needs a memory key")
		}
		t.GroupCount(args[0], nil)
	default:
		return fmt.Errorf("unknown step %q", name)
	}
	return nil
}

func compileHas(t *Traversal, args []string) error {
	switch len(args) {
	case 1:
		key, value, found := strings.Cut(args[0], "=")
		if !found {
			return fmt.Errorf("has expects key=value")
		}
		t.Has(key, parseValue(value))
	case 3:
		c, ok := ParseCompare(args[1])
		if !ok {
			return fmt.Errorf("unknown compare %q", args[1])
		}
		t.HasP(args[0], c, parseValue(args[2]))
	default:
		return fmt.Errorf("has expects key=value or key,compare,value")
	}
	return nil
}

// stringIDs keeps ids as strings, which is how graph documents declare them.
func stringIDs(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func anyValues(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = parseValue(a)
	}
	return out
}

// parseValue reads integers and floats as numbers and everything else as a string.
func parseValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
