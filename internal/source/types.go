package source

import "strings"

// Span is a half-open byte range [Start, End) into a module's source.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return o.Start >= s.Start && o.End <= s.End
}

// Shape identifies the syntactic shape of a declaration.
type Shape int

const (
	ShapeType Shape = iota
	ShapeAlias
	ShapeFunction
	ShapeBinding
	ShapeClass
)

func (s Shape) String() string {
	switch s {
	case ShapeType:
		return "type"
	case ShapeAlias:
		return "alias"
	case ShapeFunction:
		return "function"
	case ShapeBinding:
		return "binding"
	case ShapeClass:
		return "class"
	default:
		return "unknown"
	}
}

// DeclInfo holds the attributes every declaration shape shares.
type DeclInfo struct {
	Name string

	// Stmt covers the whole statement: attached leading comments, the export
	// keyword (if any) and the declaration itself.
	Stmt Span

	// Node covers only the declaration node, without export wrapper or comments.
	Node Span

	StartLine int // 1-indexed, of Node
	EndLine   int // 1-indexed, of Node
	Indent    int // column where Stmt starts

	Exported bool
	Default  bool

	// Parent is the name of the enclosing declaration; empty at top level.
	Parent string

	// Refs lists the identifiers the declaration uses but does not bind, in
	// order of first appearance. Its own name is excluded.
	Refs []string
}

// Info returns the shared declaration attributes.
func (d *DeclInfo) Info() *DeclInfo {
	return d
}

// LineCount returns end line - start line + 1.
func (d *DeclInfo) LineCount() int {
	return d.EndLine - d.StartLine + 1
}

// References reports whether the declaration mentions name.
func (d *DeclInfo) References(name string) bool {
	for _, r := range d.Refs {
		if r == name {
			return true
		}
	}
	return false
}

// Decl is the closed set of declaration shapes. Only types in this package
// implement it; consumers switch over the concrete variants.
type Decl interface {
	Info() *DeclInfo
	Shape() Shape
	sealed()
}

// TypeDecl is a structural type declaration (interface).
type TypeDecl struct {
	DeclInfo
}

// AliasDecl is a type alias declaration.
type AliasDecl struct {
	DeclInfo
}

// FunctionDecl is a function declaration.
type FunctionDecl struct {
	DeclInfo
	Body   Span // statement block; zero for overload signatures
	Params []string
	Nested []Decl
}

// BindingDecl is a variable binding (const, let or var).
type BindingDecl struct {
	DeclInfo
	Kind           string // "const", "let" or "var"
	Declarators    int
	FunctionValued bool
	Annotated      bool     // the declarator carries an explicit type
	Bound          []string // every name the declarators bind
	Params         []string // parameters of a function initializer
	Body           Span     // block body of a function initializer
	Nested         []Decl
}

// ClassDecl is a class or enum declaration. Both carry runtime values.
type ClassDecl struct {
	DeclInfo
	Keyword string // "class" or "enum"
}

func (*TypeDecl) Shape() Shape     { return ShapeType }
func (*AliasDecl) Shape() Shape    { return ShapeAlias }
func (*FunctionDecl) Shape() Shape { return ShapeFunction }
func (*BindingDecl) Shape() Shape  { return ShapeBinding }
func (*ClassDecl) Shape() Shape    { return ShapeClass }

func (*TypeDecl) sealed()     {}
func (*AliasDecl) sealed()    {}
func (*FunctionDecl) sealed() {}
func (*BindingDecl) sealed()  {}
func (*ClassDecl) sealed()    {}

// NestedOf returns the declarations found directly inside d's body.
func NestedOf(d Decl) []Decl {
	switch v := d.(type) {
	case *FunctionDecl:
		return v.Nested
	case *BindingDecl:
		return v.Nested
	case *TypeDecl, *AliasDecl, *ClassDecl:
		return nil
	default:
		panic("source: unknown declaration variant")
	}
}

// BodyOf returns the block body of d, if d has one.
func BodyOf(d Decl) (Span, bool) {
	switch v := d.(type) {
	case *FunctionDecl:
		return v.Body, v.Body.Len() > 0
	case *BindingDecl:
		return v.Body, v.Body.Len() > 0
	case *TypeDecl, *AliasDecl, *ClassDecl:
		return Span{}, false
	default:
		panic("source: unknown declaration variant")
	}
}

// ScopeOf returns the names bound directly in d's scope: its parameters and
// the declarations of its body.
func ScopeOf(d Decl) []string {
	var names []string
	switch v := d.(type) {
	case *FunctionDecl:
		names = append(names, v.Params...)
	case *BindingDecl:
		names = append(names, v.Params...)
	}
	for _, n := range NestedOf(d) {
		if b, ok := n.(*BindingDecl); ok {
			names = append(names, b.Bound...)
			continue
		}
		if name := n.Info().Name; name != "" {
			names = append(names, name)
		}
	}
	return names
}

// IsFunctionLike reports whether d is a function declaration or a
// function-valued binding.
func IsFunctionLike(d Decl) bool {
	switch v := d.(type) {
	case *FunctionDecl:
		return true
	case *BindingDecl:
		return v.FunctionValued
	case *TypeDecl, *AliasDecl, *ClassDecl:
		return false
	default:
		panic("source: unknown declaration variant")
	}
}

// StatementKind classifies a top-level statement.
type StatementKind int

const (
	StmtOther StatementKind = iota
	StmtImport
	StmtDecl
	StmtDirective
	StmtComment
	StmtReExport
)

// Statement is one entry of a module's ordered statement sequence.
type Statement struct {
	Kind   StatementKind
	Span   Span
	Decl   Decl
	Import *ImportBinding
}

// ImportBinding is a parsed import statement. With ReExport set it is an
// `export { ... } from` statement instead, which has named entries only.
type ImportBinding struct {
	Specifier string
	Names     []string // named entries as written, e.g. "A", "B as C", "type D"
	TypeOnly  bool
	Default   string
	Namespace string
	ReExport  bool
	Span      Span
}

// Mergeable reports whether named entries can be merged into the binding.
// Namespace imports cannot be combined with a named clause.
func (b *ImportBinding) Mergeable() bool {
	return b.Namespace == ""
}

// LocalNames returns the names the binding brings into scope.
func (b *ImportBinding) LocalNames() []string {
	var names []string
	if b.Default != "" {
		names = append(names, b.Default)
	}
	if b.Namespace != "" {
		names = append(names, b.Namespace)
	}
	for _, entry := range b.Names {
		names = append(names, EntryLocalName(entry))
	}
	return names
}

// Has reports whether an entry with the same local name is already present.
func (b *ImportBinding) Has(entry string) bool {
	local := EntryLocalName(entry)
	for _, existing := range b.Names {
		if EntryLocalName(existing) == local {
			return true
		}
	}
	return false
}

// EntryLocalName returns the local binding name of a named import entry.
// "A" -> "A", "A as B" -> "B", "type A" -> "A".
func EntryLocalName(entry string) string {
	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// Render formats the binding as an import or re-export statement.
func (b *ImportBinding) Render(style Style) string {
	var sb strings.Builder
	if b.ReExport {
		sb.WriteString("export ")
	} else {
		sb.WriteString("import ")
	}
	if b.TypeOnly {
		sb.WriteString("type ")
	}

	var clauses []string
	if b.Default != "" {
		clauses = append(clauses, b.Default)
	}
	if b.Namespace != "" {
		clauses = append(clauses, "* as "+b.Namespace)
	}
	if len(b.Names) > 0 {
		clauses = append(clauses, "{ "+strings.Join(b.Names, ", ")+" }")
	}
	if len(clauses) > 0 {
		sb.WriteString(strings.Join(clauses, ", "))
		sb.WriteString(" from ")
	}

	q := string(style.Quote)
	sb.WriteString(q + b.Specifier + q)
	if style.Semicolons {
		sb.WriteString(";")
	}
	return sb.String()
}

// Style captures the formatting conventions of a module so generated
// statements blend in.
type Style struct {
	Quote      byte
	Semicolons bool
}

// DefaultStyle is used for modules without imports to learn from.
var DefaultStyle = Style{Quote: '\'', Semicolons: true}
