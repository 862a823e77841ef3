package pipeline

import (
	"fmt"

	"github.com/mvp-joe/splitter/internal/source"
)

// Selector picks the composite whose nested helpers are extracted.
type Selector interface {
	Select(m *source.Module) (source.Decl, error)
	String() string
}

// ByName selects the top-level function-like declaration with this name.
type ByName string

// Select implements Selector.
func (n ByName) Select(m *source.Module) (source.Decl, error) {
	var found []source.Decl
	for _, d := range m.Decls() {
		if d.Info().Name == string(n) && source.IsFunctionLike(d) {
			found = append(found, d)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: no function named %s in %s", ErrCompositeNotFound, string(n), m.Path)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %d declarations named %s in %s", ErrAmbiguousComposite, len(found), string(n), m.Path)
	}
}

func (n ByName) String() string { return "name " + string(n) }

// FirstFunctionBinding selects the first top-level binding initialized with a
// function. The choice depends on declaration order, so it is only used when
// asked for explicitly.
type FirstFunctionBinding struct{}

// Select implements Selector.
func (FirstFunctionBinding) Select(m *source.Module) (source.Decl, error) {
	for _, d := range m.Decls() {
		if b, ok := d.(*source.BindingDecl); ok && b.FunctionValued {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: no function-valued binding in %s", ErrCompositeNotFound, m.Path)
}

func (FirstFunctionBinding) String() string { return "first function binding" }
