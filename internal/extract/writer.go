package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mvp-joe/splitter/internal/report"
	"github.com/mvp-joe/splitter/internal/source"
	"github.com/mvp-joe/splitter/internal/storage"
)

// Writer serializes candidates into a target module.
type Writer struct {
	store  *storage.Store
	logger *slog.Logger
}

// NewWriter creates a Writer persisting through store.
func NewWriter(store *storage.Store, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, logger: logger}
}

// WriteRequest describes one batch of candidates bound for one target.
type WriteRequest struct {
	Origin     *source.Module
	TargetPath string
	Candidates []Candidate

	// TypesPath is where extracted types live. Written text that references
	// types exported there gets a type-only import of exactly those names.
	TypesPath string
}

// WriteResult is the outcome of a Write.
type WriteResult struct {
	Target  *source.Module
	Written []Candidate // resolved against the request's origin
	Items   []report.Item
}

// Header is the first line of a module created by the writer.
func Header(originPath string) string {
	return fmt.Sprintf("// Code extracted from %s.\n", filepath.Base(originPath))
}

// Write copies each candidate's declaration into the target as an export,
// replacing a same-named declaration already there, adds the imports the
// moved text needs and saves the target. Candidates that no longer resolve in
// the origin are skipped. A save failure is returned wrapped in ErrPersist.
func (w *Writer) Write(req WriteRequest) (*WriteResult, error) {
	if filepath.Clean(req.TargetPath) == filepath.Clean(req.Origin.Path) {
		return nil, fmt.Errorf("%w: %s", ErrSelfTarget, req.TargetPath)
	}

	res := &WriteResult{}
	if len(req.Candidates) == 0 {
		return res, nil
	}

	target, existed, err := w.store.LoadOrNew(req.TargetPath, Header(req.Origin.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to load target %s: %w", req.TargetPath, err)
	}
	parser := w.store.Parser()

	var refs []string
	seen := make(map[string]bool)
	for _, c := range req.Candidates {
		d, ok := req.Origin.Lookup(c.Parent, c.Name)
		if !ok {
			res.Items = append(res.Items, skipItem(req.Origin.Path, c, ErrStaleCandidate.Error()))
			continue
		}

		next, err := placeDecl(parser, target, d.Info().Name, exportedText(req.Origin, d))
		if err != nil {
			res.Items = append(res.Items, skipItem(req.Origin.Path, c, err.Error()))
			continue
		}
		target = next

		c.Decl = d
		res.Written = append(res.Written, c)
		for _, r := range d.Info().Refs {
			if !seen[r] {
				seen[r] = true
				refs = append(refs, r)
			}
		}
	}
	if len(res.Written) == 0 {
		return res, nil
	}

	if len(target.Imports()) == 0 {
		styled := *target
		styled.Style = req.Origin.Style
		target = &styled
	}

	declared := target.DeclaredNames()
	if req.TypesPath != "" && filepath.Clean(req.TypesPath) != filepath.Clean(req.TargetPath) {
		exported, err := w.exportedTypeNames(req.TypesPath)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, r := range refs {
			if exported[r] && !declared[r] {
				names = append(names, r)
			}
		}
		if len(names) > 0 {
			spec, err := source.RelativeSpecifier(req.TargetPath, req.TypesPath)
			if err != nil {
				return nil, err
			}
			target, err = MergeImport(parser, target, &source.ImportBinding{Specifier: spec, Names: names, TypeOnly: true})
			if err != nil {
				return nil, fmt.Errorf("failed to import types into %s: %w", req.TargetPath, err)
			}
		}
	}

	carried, err := carriedImports(req.Origin, req.TargetPath, refs, declared)
	if err != nil {
		return nil, err
	}
	for _, b := range carried {
		target, err = MergeImport(parser, target, b)
		if err != nil {
			return nil, fmt.Errorf("failed to carry import %q into %s: %w", b.Specifier, req.TargetPath, err)
		}
	}

	if target.HasErrors {
		w.logger.Warn("extract.write.syntax",
			slog.String("target", req.TargetPath),
			slog.String("origin", req.Origin.Path))
	}

	if err := w.store.Save(target); err != nil {
		return nil, fmt.Errorf("failed to save target %s: %w", req.TargetPath, err)
	}

	for _, c := range res.Written {
		res.Items = append(res.Items, report.Item{
			Path:   req.TargetPath,
			Name:   c.Name,
			Kind:   c.ReportKind(),
			Status: report.Applied,
			Detail: "moved from " + filepath.Base(req.Origin.Path),
		})
	}
	res.Target = target

	w.logger.Debug("extract.write",
		slog.String("target", req.TargetPath),
		slog.Bool("created", !existed),
		slog.Int("written", len(res.Written)))
	return res, nil
}

func (w *Writer) exportedTypeNames(path string) (map[string]bool, error) {
	m, err := w.store.Load(path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load types module %s: %w", path, err)
	}

	names := make(map[string]bool)
	for _, d := range m.Decls() {
		info := d.Info()
		if !info.Exported {
			continue
		}
		switch d.(type) {
		case *source.TypeDecl, *source.AliasDecl:
			names[info.Name] = true
		}
	}
	return names, nil
}

// exportedText returns the declaration's statement text with an export
// keyword in front of the declaration. Nested declarations lose the
// indentation of their enclosing body.
func exportedText(m *source.Module, d source.Decl) string {
	info := d.Info()
	text := m.Text(info.Stmt)
	if !info.Exported {
		off := info.Node.Start - info.Stmt.Start
		text = text[:off] + "export " + text[off:]
	}
	if info.Parent != "" {
		text = source.Dedent(text, info.Indent)
	}
	return text
}

// placeDecl replaces a same-named top-level declaration in target with text,
// or appends text when the name is new.
func placeDecl(p *source.Parser, target *source.Module, name, text string) (*source.Module, error) {
	if existing, ok := target.Lookup("", name); ok {
		return p.Apply(target, []source.Edit{{Span: existing.Info().Stmt, Text: text}})
	}
	return p.Parse(target.Path, target.AppendText(text))
}

func skipItem(path string, c Candidate, reason string) report.Item {
	return report.Item{Path: path, Name: c.Name, Kind: c.ReportKind(), Status: report.Skipped, Detail: reason}
}
