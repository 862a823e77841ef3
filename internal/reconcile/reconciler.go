package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mvp-joe/splitter/internal/report"
	"github.com/mvp-joe/splitter/internal/source"
	"github.com/mvp-joe/splitter/internal/storage"
)

// ErrSyntax is returned for modules that already fail to parse.
var ErrSyntax = errors.New("module has syntax errors")

// Reconciler fills annotation gaps using a Checker.
type Reconciler struct {
	store   *storage.Store
	checker Checker
	maxLen  int
	logger  *slog.Logger
}

// New creates a Reconciler. A maxTypeLength of zero uses DefaultMaxTypeLength.
func New(store *storage.Store, checker Checker, maxTypeLength int, logger *slog.Logger) *Reconciler {
	if maxTypeLength <= 0 {
		maxTypeLength = DefaultMaxTypeLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, checker: checker, maxLen: maxTypeLength, logger: logger}
}

// Result is the outcome of reconciling one module.
type Result struct {
	Path    string
	Written int
	Items   []report.Item
	Module  *source.Module
}

// Reconcile loads the module at path, annotates it and saves it when at least
// one annotation was written.
func (r *Reconciler) Reconcile(ctx context.Context, path string) (*Result, error) {
	m, err := r.store.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return r.ReconcileModule(ctx, m)
}

// ReconcileModule annotates m. Every query is answered against m as loaded;
// each accepted annotation must leave the module parseable or it is dropped.
// The module is saved only when something was written.
func (r *Reconciler) ReconcileModule(ctx context.Context, m *source.Module) (*Result, error) {
	if m.HasErrors {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, m.Path)
	}

	parser := r.store.Parser()
	tree, err := parser.ParseTree(m.Path, m.Src)
	if err != nil {
		return nil, err
	}
	gaps := FindGaps(tree.RootNode(), m.Src, m.Path)
	tree.Close()

	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].Pos() > gaps[j].Pos() })

	res := &Result{Path: m.Path, Module: m}
	var applied []rankedEdit

	for _, g := range gaps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := itemName(g.Query)
		kind := itemKind(g.Query.Kind)
		skip := func(reason string) {
			res.Items = append(res.Items, report.Item{Path: m.Path, Name: name, Kind: kind, Status: report.Skipped, Detail: reason})
		}

		if g.Skip != "" {
			skip(g.Skip)
			continue
		}

		t, err := r.checker.TypeOf(ctx, m, g.Query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			skip(err.Error())
			continue
		}
		if reason, ok := Acceptable(t, r.maxLen); !ok {
			skip(reason)
			continue
		}
		if g.Query.Kind == QueryLiteral && !narrowsString(t, g.Literal) {
			skip(fmt.Sprintf("%s does not narrow string", t))
			continue
		}

		next := mergeEdits(applied, g.edits(t))
		src, err := source.Splice(m.Src, plainEdits(next))
		if err != nil {
			skip(err.Error())
			continue
		}
		check, err := parser.Parse(m.Path, src)
		if err != nil {
			return nil, err
		}
		if check.HasErrors {
			r.logger.Debug("reconcile.revert",
				slog.String("path", m.Path),
				slog.String("name", name),
				slog.String("type", t))
			skip("annotation does not parse")
			continue
		}

		applied = next
		res.Module = check
		res.Written++
		res.Items = append(res.Items, report.Item{Path: m.Path, Name: name, Kind: kind, Status: report.Applied, Detail: t})
	}

	if res.Written == 0 {
		return res, nil
	}
	if err := r.store.Save(res.Module); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", m.Path, err)
	}

	r.logger.Debug("reconcile.write",
		slog.String("path", m.Path),
		slog.Int("written", res.Written),
		slog.Int("gaps", len(gaps)))
	return res, nil
}

func itemName(q Query) string {
	name := q.Decl
	if name == "" {
		name = fmt.Sprintf("<anonymous>@%d", q.Line)
	}
	if q.Kind == QueryParameter {
		return name + "(" + q.Param + ")"
	}
	return name
}

func itemKind(k QueryKind) report.Kind {
	switch k {
	case QueryParameter:
		return report.KindParameter
	case QueryLiteral:
		return report.KindLiteral
	default:
		return report.KindReturn
	}
}
