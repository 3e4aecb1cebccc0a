package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gopkg.in/yaml.v3"

	"github.com/flowgraph/gremlin/internal/app/dto"
	"github.com/flowgraph/gremlin/internal/app/usecases"
	"github.com/flowgraph/gremlin/internal/core/pregel"
	"github.com/flowgraph/gremlin/internal/infrastructure/metrics"
	"github.com/flowgraph/gremlin/internal/infrastructure/telemetry"
	"github.com/flowgraph/gremlin/pkg/validation"
)

// ProgramFile is the YAML shape of a `gremlin run` program.
type ProgramFile struct {
	// Program is a registered vertex program name.
	Program string `yaml:"program" validate:"required"`
	// Steps is shorthand for the traversal program's step list.
	Steps []string `yaml:"steps"`
	// Config is handed to the program as is.
	Config   map[string]any        `yaml:"config"`
	Computer dto.ComputationConfig `yaml:"computer"`
}

func (p *ProgramFile) configuration(vertexCount int) pregel.Configuration {
	cfg := pregel.Configuration{}
	for k, v := range p.Config {
		cfg[k] = v
	}
	cfg[pregel.VertexProgramKey] = p.Program
	if len(p.Steps) > 0 {
		cfg[usecases.StepsKey] = p.Steps
	}
	if _, ok := cfg[pregel.PageRankVertexCount]; !ok && p.Program == pregel.PageRankProgram {
		cfg[pregel.PageRankVertexCount] = vertexCount
	}
	return cfg
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <program.yaml>",
		Short: "Run a vertex program on the graph computer",
		Long: `Run a vertex program over a graph document and print the outcome as JSON.

A program file names a registered program (traversal, pageRank, shortestPath),
its configuration and the computer settings:

  program: traversal
  steps: [V, out:knows, values:name]
  computer:
    parallelism: 4
    checkpoint_every: 1`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}
	cmd.Flags().StringP("graph", "g", "", "Graph document (YAML)")
	cmd.Flags().String("store", envOr("GREMLIN_CHECKPOINT_STORE", "memory"), "Checkpoint store: memory | sqlite:<path> | postgres://...")
	cmd.Flags().Bool("metrics", false, "Print Prometheus metrics to stderr when done")
	cmd.Flags().Bool("telemetry", false, "Print OpenTelemetry metric totals to stderr when done")
	_ = cmd.MarkFlagRequired("graph")
	return cmd
}

func readProgram(path string) (*ProgramFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usageError("read program: %v", err)
	}
	var p ProgramFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, usageError("decode program: %v", err)
	}
	if err := validation.ValidateStruct(p); err != nil {
		return nil, usageError("invalid program: %v", err)
	}
	return &p, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	program, err := readProgram(args[0])
	if err != nil {
		return err
	}
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}

	spec, _ := cmd.Flags().GetString("store")
	saver, closeStore, err := openStore(ctx, spec)
	if err != nil {
		return err
	}
	defer closeStore()

	var reader *sdkmetric.ManualReader
	meter := otel.GetMeterProvider().Meter("gremlin")
	if on, _ := cmd.Flags().GetBool("telemetry"); on {
		reader = sdkmetric.NewManualReader()
		meter = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("gremlin")
	}
	meters, err := telemetry.NewMetricsHandler(meter)
	if err != nil {
		return err
	}

	executor := usecases.NewTraversalExecutor(nil,
		usecases.WithCheckpoints(saver),
		usecases.WithStreamHandlers(
			telemetry.NewTracingHandler(otel.GetTracerProvider().Tracer("gremlin")),
			meters,
		),
	)

	vp, err := pregel.DefaultRegistry.New(program.configuration(len(g.Vertices())))
	if err != nil {
		return usageError("%v", err)
	}
	if err := program.Computer.Validate(); err != nil {
		return usageError("invalid computer settings: %v", err)
	}

	result, err := executor.Run(ctx, g, vp, executor.ComputerConfig(program.Computer))
	if err != nil {
		return err
	}
	if err := writeResult(cmd.OutOrStdout(), vp, result); err != nil {
		return err
	}

	if on, _ := cmd.Flags().GetBool("metrics"); on {
		if err := metrics.WritePrometheus(cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if reader != nil {
		return writeTelemetry(ctx, cmd.ErrOrStderr(), reader)
	}
	return nil
}

// runOutput is what `gremlin run` prints.
type runOutput struct {
	ComputationID string                 `json:"computation_id"`
	Program       string                 `json:"program"`
	Supersteps    int                    `json:"supersteps"`
	Runtime       string                 `json:"runtime"`
	Globals       map[string]any         `json:"globals,omitempty"`
	Results       []dto.TraverserResult  `json:"results,omitempty"`
	Vertices      map[string]vertexState `json:"vertices,omitempty"`
}

type vertexState map[string]any

func writeResult(w io.Writer, program pregel.VertexProgram, r *pregel.Result) error {
	out := runOutput{
		ComputationID: r.ComputationID,
		Program:       r.Program,
		Supersteps:    r.Supersteps(),
		Runtime:       r.Runtime().String(),
		Globals:       r.Globals.Values,
	}
	if _, ok := program.(*usecases.TraversalVertexProgram); ok {
		out.Results = usecases.Results(r)
		for i := range out.Results {
			out.Results[i].Value = detach(out.Results[i].Value)
		}
	} else {
		out.Vertices = computeState(program, r)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func computeState(program pregel.VertexProgram, r *pregel.Result) map[string]vertexState {
	keys := make([]string, 0, len(program.ComputeKeys()))
	for k := range program.ComputeKeys() {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	states := make(map[string]vertexState)
	for _, v := range r.Graph().Vertices() {
		state := vertexState{}
		for _, k := range keys {
			if value, ok := r.ComputeValue(v.ID(), k); ok {
				state[k] = value
			}
		}
		if len(state) > 0 {
			states[fmt.Sprint(v.ID())] = state
		}
	}
	return states
}

func writeTelemetry(ctx context.Context, w io.Writer, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				fmt.Fprintf(w, "%s %d\n", m.Name, total)
			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, dp := range data.DataPoints {
					count += dp.Count
					sum += dp.Sum
				}
				fmt.Fprintf(w, "%s count=%d sum=%g\n", m.Name, count, sum)
			}
		}
	}
	return nil
}
