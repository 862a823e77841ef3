package extract

import (
	"fmt"
	"strings"

	"github.com/mvp-joe/splitter/internal/source"
)

// MergeImport adds the entries of add to m. An existing mergeable binding for
// the same specifier is replaced by the union of both name lists (first-seen
// order kept); otherwise a new binding is inserted after the last import.
// Merging a value import into a type-only binding turns the binding into a
// value import with the old entries marked "type"; a type-only import never
// narrows a value binding. When nothing changes m is returned as is.
// Re-exports merge the same way, only with the re-export of the same
// specifier and type-only flag.
func MergeImport(p *source.Parser, m *source.Module, add *source.ImportBinding) (*source.Module, error) {
	if add.ReExport {
		existing, ok := m.ReExportFor(add.Specifier, add.TypeOnly)
		if !ok {
			return insertImport(p, m, add)
		}
		return mergeNames(p, m, existing, add)
	}
	if add.Namespace != "" {
		for _, b := range m.Imports() {
			if b.Specifier == add.Specifier && b.Namespace == add.Namespace {
				return m, nil
			}
		}
		return insertImport(p, m, add)
	}

	existing, ok := m.ImportFor(add.Specifier)
	if !ok || (add.Default != "" && existing.Default != "" && existing.Default != add.Default) {
		return insertImport(p, m, add)
	}
	return mergeNames(p, m, existing, add)
}

func mergeNames(p *source.Parser, m *source.Module, existing, add *source.ImportBinding) (*source.Module, error) {
	merged := *existing
	merged.Names = append([]string(nil), existing.Names...)
	changed := false

	if existing.TypeOnly && !add.TypeOnly {
		merged.TypeOnly = false
		for i, entry := range merged.Names {
			if !strings.HasPrefix(entry, "type ") {
				merged.Names[i] = "type " + entry
			}
		}
		changed = true
	}

	if add.Default != "" && merged.Default == "" {
		merged.Default = add.Default
		changed = true
	}

	for _, entry := range add.Names {
		if merged.Has(entry) {
			continue
		}
		if add.TypeOnly && !merged.TypeOnly && !strings.HasPrefix(entry, "type ") {
			entry = "type " + entry
		}
		merged.Names = append(merged.Names, entry)
		changed = true
	}

	if !changed {
		return m, nil
	}
	return p.Apply(m, []source.Edit{{Span: existing.Span, Text: merged.Render(m.Style)}})
}

func insertImport(p *source.Parser, m *source.Module, add *source.ImportBinding) (*source.Module, error) {
	offset, before, after := m.ImportInsertion()
	return p.Apply(m, []source.Edit{{
		Span: source.Span{Start: offset, End: offset},
		Text: before + add.Render(m.Style) + after,
	}})
}

// carriedImports builds the imports a target needs so that the names in refs
// that the origin imports still resolve once the text has moved. Names the
// target declares itself, and imports that would point the target at itself,
// are left out. Bindings come back grouped per origin binding, in origin order.
func carriedImports(origin *source.Module, targetPath string, refs []string, declared map[string]bool) ([]*source.ImportBinding, error) {
	wanted := make(map[string]bool, len(refs))
	for _, r := range refs {
		if !declared[r] {
			wanted[r] = true
		}
	}

	var out []*source.ImportBinding
	for _, b := range origin.Imports() {
		if source.ResolvesTo(b.Specifier, origin.Path, targetPath) {
			continue
		}

		carried := &source.ImportBinding{TypeOnly: b.TypeOnly}
		if b.Default != "" && wanted[b.Default] {
			carried.Default = b.Default
		}
		if b.Namespace != "" && wanted[b.Namespace] {
			carried.Namespace = b.Namespace
		}
		for _, entry := range b.Names {
			if wanted[source.EntryLocalName(entry)] {
				carried.Names = append(carried.Names, entry)
			}
		}
		if carried.Default == "" && carried.Namespace == "" && len(carried.Names) == 0 {
			continue
		}

		spec, err := source.RebaseSpecifier(b.Specifier, origin.Path, targetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to carry import %q: %w", b.Specifier, err)
		}
		carried.Specifier = spec

		// A namespace clause cannot share a statement with named entries.
		if carried.Namespace != "" && len(carried.Names) > 0 {
			named := *carried
			named.Namespace = ""
			carried.Names = nil
			carried.Default = ""
			out = append(out, &named)
		}
		out = append(out, carried)
	}
	return out, nil
}
