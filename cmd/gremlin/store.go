package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowgraph/gremlin/internal/adapters/repository/memory"
	"github.com/flowgraph/gremlin/internal/adapters/repository/postgres"
	"github.com/flowgraph/gremlin/internal/adapters/repository/sqlite"
	"github.com/flowgraph/gremlin/internal/core/checkpoint"
)

// openStore resolves a checkpoint store spec:
//
//	memory              process local, gone on exit
//	sqlite:<path>       SQLite file, ":memory:" allowed
//	postgres://...      PostgreSQL DSN
func openStore(ctx context.Context, spec string) (checkpoint.Saver, func(), error) {
	switch {
	case spec == "" || spec == "memory":
		s := memory.DefaultSaver()
		return s, func() { _ = s.Close() }, nil
	case strings.HasPrefix(spec, "sqlite:"):
		s, err := sqlite.Open(ctx, strings.TrimPrefix(spec, "sqlite:"), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	case strings.HasPrefix(spec, "postgres://"), strings.HasPrefix(spec, "postgresql://"):
		s, err := postgres.Connect(ctx, spec, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, usageError("unknown checkpoint store %q", spec)
	}
}
