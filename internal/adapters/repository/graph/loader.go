package graphrepo

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/flowgraph/gremlin/pkg/validation"
)

// Document is the YAML shape of a property graph.
type Document struct {
	Vertices []VertexDoc `yaml:"vertices" validate:"dive"`
	Edges    []EdgeDoc   `yaml:"edges" validate:"dive"`
}

type VertexDoc struct {
	ID         string         `yaml:"id" validate:"required,element_id"`
	Label      string         `yaml:"label"`
	Properties map[string]any `yaml:"properties"`
}

type EdgeDoc struct {
	ID         string         `yaml:"id" validate:"omitempty,element_id"`
	Label      string         `yaml:"label" validate:"required"`
	Out        string         `yaml:"out" validate:"required,element_id"`
	In         string         `yaml:"in" validate:"required,element_id"`
	Properties map[string]any `yaml:"properties"`
}

// LoadYAML decodes and validates a graph document and builds a MemoryGraph from it.
func LoadYAML(r io.Reader) (*MemoryGraph, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode graph document: %w", err)
	}
	return Build(doc)
}

// Build validates doc and materializes it.
func Build(doc Document) (*MemoryGraph, error) {
	if err := validation.ValidateStruct(doc); err != nil {
		return nil, fmt.Errorf("invalid graph document: %w", err)
	}
	g := NewMemoryGraph()
	for _, v := range doc.Vertices {
		if _, err := g.AddVertex(v.ID, v.Label, v.Properties); err != nil {
			return nil, err
		}
	}
	for _, e := range doc.Edges {
		var id any
		if e.ID != "" {
			id = e.ID
		}
		if _, err := g.AddEdge(id, e.Label, e.Out, e.In, e.Properties); err != nil {
			return nil, err
		}
	}
	return g, nil
}
