package usecases

import (
	"context"

	"github.com/flowgraph/gremlin/internal/app/dto"
	"github.com/flowgraph/gremlin/internal/core/graph"
)

// GraphRepository resolves stored graphs by id.
type GraphRepository interface {
	Get(ctx context.Context, id string) (graph.Graph, error)
}

// Executor runs traversal requests on the graph computer.
type Executor interface {
	Execute(ctx context.Context, req *dto.TraversalRequest) (*dto.ComputationResponse, error)
}
