package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	graphrepo "github.com/flowgraph/gremlin/internal/adapters/repository/graph"
	"github.com/flowgraph/gremlin/internal/core/graph"
	"github.com/flowgraph/gremlin/internal/core/traversal"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <step>...",
		Short: "Run a traversal locally and print what it emits",
		Example: `  gremlin query --graph modern.yaml V:marko out:knows values:name
  gremlin query --graph modern.yaml V has:age,gt,30 path
  gremlin query --graph modern.yaml --read-only V out:created groupCount:software dedup`,
		Args: cobra.MinimumNArgs(1),
		RunE: runQuery,
	}
	cmd.Flags().StringP("graph", "g", "", "Graph document (YAML)")
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("read-only", false, "Emit elements that reject property writes")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	loaded, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	var g graph.Graph = loaded
	if ro, _ := cmd.Flags().GetBool("read-only"); ro {
		g = graphrepo.ReadOnly(loaded)
	}
	t, err := traversal.Compile(g, args)
	if err != nil {
		return usageError("%v", err)
	}
	values, err := t.ToList()
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		rendered := make([]any, len(values))
		for i, v := range values {
			rendered[i] = detach(v)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rendered)
	case "text":
		for _, v := range values {
			fmt.Fprintln(out, render(v))
		}
		return nil
	default:
		return usageError("invalid --format %q", format)
	}
}

func loadGraph(cmd *cobra.Command) (*graphrepo.MemoryGraph, error) {
	path, _ := cmd.Flags().GetString("graph")
	f, err := os.Open(path)
	if err != nil {
		return nil, usageError("open graph: %v", err)
	}
	defer f.Close()
	return graphrepo.LoadYAML(f)
}

// detach turns a traversal value into something that prints and encodes
// without dragging the graph along.
func detach(v any) any {
	switch x := v.(type) {
	case *traversal.Path:
		return x.Detached()
	case graph.Property:
		return map[string]any{x.Key: x.Value}
	}
	if ref, ok := graph.Detach(v); ok {
		return ref
	}
	return v
}

func render(v any) string {
	switch x := detach(v).(type) {
	case *traversal.Path:
		parts := make([]string, len(x.Objects))
		for i, o := range x.Objects {
			parts[i] = render(o)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
