package source

import (
	"bytes"
	"strings"
)

// Module is one parsed source file. Modules are immutable: edits produce new
// source that is parsed into a fresh Module.
type Module struct {
	Path       string
	Src        []byte
	Statements []Statement
	Style      Style
	HasErrors  bool
	Uses       []Use
}

// Use is one identifier occurrence outside import statements.
type Use struct {
	Name string
	Pos  int
}

// UsedOutside returns the names used anywhere in the module except inside
// the given spans.
func (m *Module) UsedOutside(spans []Span) map[string]bool {
	used := make(map[string]bool)
	for _, u := range m.Uses {
		inside := false
		for _, s := range spans {
			if u.Pos >= s.Start && u.Pos < s.End {
				inside = true
				break
			}
		}
		if !inside {
			used[u.Name] = true
		}
	}
	return used
}

// Text returns the source covered by span.
func (m *Module) Text(span Span) string {
	return string(m.Src[span.Start:span.End])
}

// LineCount returns the number of lines in the module.
func (m *Module) LineCount() int {
	if len(m.Src) == 0 {
		return 0
	}
	n := bytes.Count(m.Src, []byte("\n"))
	if m.Src[len(m.Src)-1] != '\n' {
		n++
	}
	return n
}

// Decls returns the top-level declarations in order of appearance.
func (m *Module) Decls() []Decl {
	var decls []Decl
	for _, st := range m.Statements {
		if st.Kind == StmtDecl {
			decls = append(decls, st.Decl)
		}
	}
	return decls
}

// Lookup resolves a declaration by enclosing declaration name and name. An
// empty parent searches top-level declarations.
func (m *Module) Lookup(parent, name string) (Decl, bool) {
	if name == "" {
		return nil, false
	}
	if parent == "" {
		for _, d := range m.Decls() {
			if d.Info().Name == name {
				return d, true
			}
		}
		return nil, false
	}

	owner, ok := m.Lookup("", parent)
	if !ok {
		return nil, false
	}
	for _, d := range NestedOf(owner) {
		if d.Info().Name == name {
			return d, true
		}
	}
	return nil, false
}

// Imports returns the module's import bindings in order.
func (m *Module) Imports() []*ImportBinding {
	var imports []*ImportBinding
	for _, st := range m.Statements {
		if st.Kind == StmtImport {
			imports = append(imports, st.Import)
		}
	}
	return imports
}

// ImportFor returns the first mergeable binding for specifier.
func (m *Module) ImportFor(specifier string) (*ImportBinding, bool) {
	for _, b := range m.Imports() {
		if b.Specifier == specifier && b.Mergeable() {
			return b, true
		}
	}
	return nil, false
}

// ReExports returns the module's `export { ... } from` statements in order.
func (m *Module) ReExports() []*ImportBinding {
	var out []*ImportBinding
	for _, st := range m.Statements {
		if st.Kind == StmtReExport {
			out = append(out, st.Import)
		}
	}
	return out
}

// ReExportFor returns the first re-export of specifier with the given
// type-only flag.
func (m *Module) ReExportFor(specifier string, typeOnly bool) (*ImportBinding, bool) {
	for _, b := range m.ReExports() {
		if b.Specifier == specifier && b.TypeOnly == typeOnly {
			return b, true
		}
	}
	return nil, false
}

// ImportedNames returns every local name brought into scope by imports.
func (m *Module) ImportedNames() map[string]*ImportBinding {
	names := make(map[string]*ImportBinding)
	for _, b := range m.Imports() {
		for _, n := range b.LocalNames() {
			names[n] = b
		}
	}
	return names
}

// DeclaredNames returns the names of all top-level declarations.
func (m *Module) DeclaredNames() map[string]bool {
	names := make(map[string]bool)
	for _, d := range m.Decls() {
		if n := d.Info().Name; n != "" {
			names[n] = true
		}
	}
	return names
}

// ImportInsertion returns where a new import statement belongs and the text
// to place before and after it: below the last import, else below leading
// directives and comments, else at the top of the file.
func (m *Module) ImportInsertion() (offset int, before, after string) {
	var lastImport, lastPreamble *Statement
	inPreamble := true
	for i := range m.Statements {
		st := &m.Statements[i]
		switch st.Kind {
		case StmtImport, StmtReExport:
			lastImport = st
			inPreamble = false
		case StmtDirective, StmtComment:
			if inPreamble {
				lastPreamble = st
			}
		default:
			inPreamble = false
		}
	}

	switch {
	case lastImport != nil:
		return lastImport.Span.End, "\n", ""
	case lastPreamble != nil:
		return lastPreamble.Span.End, "\n\n", ""
	case len(bytes.TrimSpace(m.Src)) == 0:
		return 0, "", "\n"
	default:
		return 0, "", "\n\n"
	}
}

// AppendText returns the module source with text added as a new trailing
// block separated by a blank line.
func (m *Module) AppendText(text string) []byte {
	trimmed := bytes.TrimRight(m.Src, " \t\r\n")
	var buf bytes.Buffer
	buf.Write(trimmed)
	if len(trimmed) > 0 {
		buf.WriteString("\n\n")
	}
	buf.WriteString(strings.TrimRight(text, " \t\r\n"))
	buf.WriteString("\n")
	return buf.Bytes()
}
