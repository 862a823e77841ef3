package pipeline

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
	"github.com/mvp-joe/splitter/internal/source"
)

// ImportGraph holds the import edges between the modules of a run. Edges
// point from the imported module to the importer, so a topological order
// lists dependencies first.
type ImportGraph struct {
	g graph.Graph[string, string]
}

// NewImportGraph creates an empty graph that refuses cycles.
func NewImportGraph() *ImportGraph {
	return &ImportGraph{g: graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())}
}

// AddModule adds path as a vertex. Adding it twice is not an error.
func (ig *ImportGraph) AddModule(path string) error {
	if err := ig.g.AddVertex(path); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return err
	}
	return nil
}

// AddImport records that importer imports imported. An edge that would close
// a cycle returns ErrImportCycle.
func (ig *ImportGraph) AddImport(importer, imported string) error {
	for _, p := range []string{importer, imported} {
		if err := ig.AddModule(p); err != nil {
			return err
		}
	}
	err := ig.g.AddEdge(imported, importer)
	switch {
	case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return fmt.Errorf("%w: %s and %s import each other", ErrImportCycle, importer, imported)
	default:
		return err
	}
}

// Order returns the modules with every module after the modules it imports.
// Ties are broken by path.
func (ig *ImportGraph) Order() ([]string, error) {
	return graph.StableTopologicalSort(ig.g, func(a, b string) bool { return a < b })
}

// BuildImportGraph links modules through their relative imports. Imports of
// modules outside the set are ignored.
func BuildImportGraph(modules []*source.Module) (*ImportGraph, error) {
	ig := NewImportGraph()
	for _, m := range modules {
		if err := ig.AddModule(m.Path); err != nil {
			return nil, err
		}
	}
	for _, m := range modules {
		for _, b := range m.Imports() {
			for _, other := range modules {
				if other.Path == m.Path || !source.ResolvesTo(b.Specifier, m.Path, other.Path) {
					continue
				}
				if err := ig.AddImport(m.Path, other.Path); err != nil {
					return nil, err
				}
			}
		}
	}
	return ig, nil
}
