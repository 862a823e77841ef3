// Package reconcile writes missing type annotations back into modules. A
// Checker supplies the inferred type text for each gap; the Reconciler filters
// it and applies the accepted annotations.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvp-joe/splitter/internal/source"
)

// ErrCannotInfer is returned by checkers that have no answer for a query.
var ErrCannotInfer = errors.New("cannot infer type")

// QueryKind says what a query asks about.
type QueryKind string

const (
	QueryReturn    QueryKind = "return"
	QueryParameter QueryKind = "parameter"
	QueryLiteral   QueryKind = "const-literal"
)

// Query identifies one syntactic position whose type is wanted.
type Query struct {
	Kind   QueryKind `json:"kind"`
	Path   string    `json:"path"`
	Decl   string    `json:"decl"`
	Param  string    `json:"param,omitempty"`
	Offset int       `json:"offset"` // start byte of the function, parameter or declarator
	Line   int       `json:"line"`   // 1-indexed
	Column int       `json:"column"` // 0-indexed byte column
}

// Key identifies the query within its module.
func (q Query) Key() string {
	return fmt.Sprintf("%s@%d:%s:%s", q.Kind, q.Offset, q.Decl, q.Param)
}

// Checker answers type queries against a module. Implementations never modify
// the module.
type Checker interface {
	TypeOf(ctx context.Context, m *source.Module, q Query) (string, error)
}
