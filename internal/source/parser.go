package source

import (
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Parser turns TypeScript and TSX source into Modules.
type Parser struct {
	ts  *sitter.Language
	tsx *sitter.Language
}

// NewParser creates a parser holding both TypeScript grammars.
func NewParser() *Parser {
	return &Parser{
		ts:  sitter.NewLanguage(typescript.LanguageTypescript()),
		tsx: sitter.NewLanguage(typescript.LanguageTSX()),
	}
}

// IsSourceFile reports whether path has an extension the parser understands.
func IsSourceFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs":
		return true
	}
	return false
}

func (p *Parser) languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx", ".jsx":
		return p.tsx
	default:
		return p.ts
	}
}

// ParseTree parses src and returns the raw syntax tree. The caller must Close it.
func (p *Parser) ParseTree(path string, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.languageFor(path)); err != nil {
		return nil, fmt.Errorf("failed to set language for %s: %w", path, err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", path)
	}
	return tree, nil
}

// Parse parses src into a Module. Syntax errors do not fail the parse; they
// are reported through Module.HasErrors.
func (p *Parser) Parse(path string, src []byte) (*Module, error) {
	tree, err := p.ParseTree(path, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	m := &Module{
		Path:      path,
		Src:       src,
		HasErrors: root.HasError(),
	}

	for _, st := range statementsOf(root, src) {
		m.Statements = append(m.Statements, classifyStatement(st, src, ""))
	}
	m.Style = detectStyle(m)
	m.Uses = collectUses(root, src)
	return m, nil
}

// collectUses records every identifier occurrence outside import statements.
func collectUses(root *sitter.Node, src []byte) []Use {
	var uses []Use
	walkTree(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			return false
		case "export_statement":
			if isReExport(n) {
				return false
			}
		case "identifier", "type_identifier", "shorthand_property_identifier":
			uses = append(uses, Use{Name: nodeText(n, src), Pos: int(n.StartByte())})
		}
		return true
	})
	return uses
}

// rawStatement is a statement node plus the span it owns once attached
// comments are folded in.
type rawStatement struct {
	node *sitter.Node
	span Span
}

// statementsOf lists the statements of a program or statement block. Comments
// directly above a statement (no blank line in between) are folded into its
// span; a comment on the same line as the end of the previous statement is
// folded into that one. Any other comment becomes its own statement.
func statementsOf(container *sitter.Node, src []byte) []rawStatement {
	var out []rawStatement
	var pending []*sitter.Node
	prevEndRow := -1

	flush := func() {
		for _, c := range pending {
			out = append(out, rawStatement{node: c, span: nodeSpan(c)})
		}
		pending = nil
	}

	for i := uint(0); i < container.ChildCount(); i++ {
		n := container.Child(i)
		if !n.IsNamed() {
			continue
		}

		if n.Kind() == "comment" {
			startRow := int(n.StartPosition().Row)
			if startRow == prevEndRow && len(out) > 0 && len(pending) == 0 {
				out[len(out)-1].span.End = int(n.EndByte())
				continue
			}
			pending = append(pending, n)
			continue
		}

		span := nodeSpan(n)
		// Attach the trailing run of comments that touch this statement.
		attachFrom := len(pending)
		nextRow := int(n.StartPosition().Row)
		for j := len(pending) - 1; j >= 0; j-- {
			if int(pending[j].EndPosition().Row)+1 < nextRow {
				break
			}
			attachFrom = j
			nextRow = int(pending[j].StartPosition().Row)
		}
		if attachFrom < len(pending) {
			span.Start = int(pending[attachFrom].StartByte())
			pending = pending[:attachFrom]
		}
		flush()

		out = append(out, rawStatement{node: n, span: span})
		prevEndRow = int(n.EndPosition().Row)
	}
	flush()

	return out
}

func classifyStatement(st rawStatement, src []byte, parent string) Statement {
	n := st.node
	switch n.Kind() {
	case "comment":
		return Statement{Kind: StmtComment, Span: st.span}
	case "import_statement":
		return Statement{Kind: StmtImport, Span: st.span, Import: parseImport(n, src)}
	case "expression_statement":
		if isDirective(n) {
			return Statement{Kind: StmtDirective, Span: st.span}
		}
	case "export_statement":
		if isReExport(n) {
			return Statement{Kind: StmtReExport, Span: st.span, Import: parseReExport(n, src)}
		}
		decl := n.ChildByFieldName("declaration")
		if decl == nil {
			decl = n.ChildByFieldName("value")
		}
		if decl == nil {
			return Statement{Kind: StmtOther, Span: st.span}
		}
		isDefault := findChildByType(n, "default") != nil
		if d := declFromNode(decl, src, st.span, int(n.StartPosition().Column), true, isDefault, parent); d != nil {
			return Statement{Kind: StmtDecl, Span: st.span, Decl: d}
		}
	default:
		if d := declFromNode(n, src, st.span, int(n.StartPosition().Column), false, false, parent); d != nil {
			return Statement{Kind: StmtDecl, Span: st.span, Decl: d}
		}
	}
	return Statement{Kind: StmtOther, Span: st.span}
}

// isDirective reports whether an expression statement is a bare string such
// as 'use client'.
func isDirective(n *sitter.Node) bool {
	if n.NamedChildCount() != 1 {
		return false
	}
	return n.NamedChild(0).Kind() == "string"
}

// declFromNode builds the declaration variant for n, or returns nil when n is
// not a declaration.
func declFromNode(n *sitter.Node, src []byte, stmt Span, indent int, exported, isDefault bool, parent string) Decl {
	info := DeclInfo{
		Stmt:      stmt,
		Node:      nodeSpan(n),
		StartLine: int(n.StartPosition().Row) + 1,
		EndLine:   int(n.EndPosition().Row) + 1,
		Indent:    indent,
		Exported:  exported,
		Default:   isDefault,
		Parent:    parent,
	}

	switch n.Kind() {
	case "interface_declaration":
		info.Name = nodeText(n.ChildByFieldName("name"), src)
		info.Refs = collectRefs(n, src, info.Name)
		return &TypeDecl{DeclInfo: info}

	case "type_alias_declaration":
		info.Name = nodeText(n.ChildByFieldName("name"), src)
		info.Refs = collectRefs(n, src, info.Name)
		return &AliasDecl{DeclInfo: info}

	case "function_declaration", "generator_function_declaration", "function_signature",
		"function_expression", "function":
		info.Name = nodeText(n.ChildByFieldName("name"), src)
		info.Refs = collectRefs(n, src, info.Name)
		fn := &FunctionDecl{DeclInfo: info, Params: paramNames(n, src)}
		if body := n.ChildByFieldName("body"); body != nil {
			fn.Body = nodeSpan(body)
			fn.Nested = nestedDecls(body, src, info.Name)
		}
		return fn

	case "lexical_declaration", "variable_declaration":
		declarators := findChildrenByType(n, "variable_declarator")
		if len(declarators) == 0 {
			return nil
		}
		b := &BindingDecl{Kind: "var", Declarators: len(declarators)}
		if kind := n.ChildByFieldName("kind"); kind != nil {
			b.Kind = nodeText(kind, src)
		}

		for _, d := range declarators {
			b.Bound = append(b.Bound, patternNames(d.ChildByFieldName("name"), src)...)
		}

		first := declarators[0]
		if nameNode := first.ChildByFieldName("name"); nameNode != nil && nameNode.Kind() == "identifier" {
			info.Name = nodeText(nameNode, src)
		}
		info.Refs = collectRefs(n, src, info.Name)
		b.Annotated = first.ChildByFieldName("type") != nil

		if value := first.ChildByFieldName("value"); value != nil && isFunctionValue(value) {
			b.FunctionValued = true
			b.Params = paramNames(value, src)
			if body := value.ChildByFieldName("body"); body != nil && body.Kind() == "statement_block" {
				b.Body = nodeSpan(body)
				b.Nested = nestedDecls(body, src, info.Name)
			}
		}
		b.DeclInfo = info
		return b

	case "class_declaration", "abstract_class_declaration", "class":
		info.Name = nodeText(n.ChildByFieldName("name"), src)
		info.Refs = collectRefs(n, src, info.Name)
		return &ClassDecl{DeclInfo: info, Keyword: "class"}

	case "enum_declaration":
		info.Name = nodeText(n.ChildByFieldName("name"), src)
		info.Refs = collectRefs(n, src, info.Name)
		return &ClassDecl{DeclInfo: info, Keyword: "enum"}
	}
	return nil
}

// nestedDecls returns the declarations that sit directly in a body block.
func nestedDecls(body *sitter.Node, src []byte, parent string) []Decl {
	var decls []Decl
	for _, st := range statementsOf(body, src) {
		s := classifyStatement(st, src, parent)
		if s.Kind == StmtDecl {
			decls = append(decls, s.Decl)
		}
	}
	return decls
}

func isFunctionValue(n *sitter.Node) bool {
	switch n.Kind() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return isFunctionValue(n.NamedChild(0))
		}
	}
	return false
}

// collectRefs gathers the identifiers n references but does not bind itself.
// Shadowing is not tracked: a name bound anywhere inside n is never a ref.
func collectRefs(n *sitter.Node, src []byte, self string) []string {
	seen := map[string]bool{self: true}
	for _, name := range boundNames(n, src) {
		seen[name] = true
	}
	var refs []string
	walkTree(n, func(c *sitter.Node) bool {
		switch c.Kind() {
		case "identifier", "type_identifier", "shorthand_property_identifier":
			name := nodeText(c, src)
			if !seen[name] {
				seen[name] = true
				refs = append(refs, name)
			}
		}
		return true
	})
	return refs
}

// boundNames lists the names declared anywhere inside n: variables,
// parameters, inner functions and classes, catch parameters and type
// parameters.
func boundNames(n *sitter.Node, src []byte) []string {
	var names []string
	walkTree(n, func(c *sitter.Node) bool {
		switch c.Kind() {
		case "variable_declarator":
			names = append(names, patternNames(c.ChildByFieldName("name"), src)...)
		case "required_parameter", "optional_parameter":
			names = append(names, patternNames(c.ChildByFieldName("pattern"), src)...)
		case "arrow_function":
			if p := c.ChildByFieldName("parameter"); p != nil {
				names = append(names, nodeText(p, src))
			}
		case "function_declaration", "generator_function_declaration", "function_expression",
			"class_declaration", "type_parameter":
			if c != n {
				if name := c.ChildByFieldName("name"); name != nil {
					names = append(names, nodeText(name, src))
				}
			}
		case "catch_clause":
			names = append(names, patternNames(c.ChildByFieldName("parameter"), src)...)
		}
		return true
	})
	return names
}

// patternNames returns the identifiers a binding pattern introduces. Default
// values are not bindings and are skipped.
func patternNames(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{nodeText(n, src)}
	case "assignment_pattern", "object_assignment_pattern":
		return patternNames(n.ChildByFieldName("left"), src)
	case "pair_pattern":
		return patternNames(n.ChildByFieldName("value"), src)
	case "object_pattern", "array_pattern", "rest_pattern":
		var names []string
		for i := uint(0); i < n.NamedChildCount(); i++ {
			names = append(names, patternNames(n.NamedChild(i), src)...)
		}
		return names
	}
	return nil
}

// paramNames lists the names bound by a function's parameters.
func paramNames(fn *sitter.Node, src []byte) []string {
	if p := fn.ChildByFieldName("parameter"); p != nil {
		return []string{nodeText(p, src)}
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := uint(0); i < params.NamedChildCount(); i++ {
		names = append(names, patternNames(params.NamedChild(i).ChildByFieldName("pattern"), src)...)
	}
	return names
}

func parseImport(n *sitter.Node, src []byte) *ImportBinding {
	b := &ImportBinding{Span: nodeSpan(n)}

	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "type":
			if !c.IsNamed() {
				b.TypeOnly = true
			}
		case "string":
			b.Specifier = unquote(nodeText(c, src))
		case "import_clause":
			parseImportClause(c, src, b)
		}
	}
	return b
}

// isReExport reports whether an export statement is `export { ... } from`.
func isReExport(n *sitter.Node) bool {
	return n.ChildByFieldName("source") != nil && findChildByType(n, "export_clause") != nil
}

func parseReExport(n *sitter.Node, src []byte) *ImportBinding {
	b := &ImportBinding{Span: nodeSpan(n), ReExport: true}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		switch c.Kind() {
		case "type":
			if !c.IsNamed() {
				b.TypeOnly = true
			}
		case "string":
			b.Specifier = unquote(nodeText(c, src))
		case "export_clause":
			for _, spec := range findChildrenByType(c, "export_specifier") {
				b.Names = append(b.Names, strings.Join(strings.Fields(nodeText(spec, src)), " "))
			}
		}
	}
	return b
}

func parseImportClause(clause *sitter.Node, src []byte, b *ImportBinding) {
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		c := clause.NamedChild(i)
		switch c.Kind() {
		case "identifier":
			b.Default = nodeText(c, src)
		case "namespace_import":
			if id := findChildByType(c, "identifier"); id != nil {
				b.Namespace = nodeText(id, src)
			}
		case "named_imports":
			for _, spec := range findChildrenByType(c, "import_specifier") {
				b.Names = append(b.Names, strings.Join(strings.Fields(nodeText(spec, src)), " "))
			}
		}
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

func detectStyle(m *Module) Style {
	style := DefaultStyle
	for _, st := range m.Statements {
		if st.Kind != StmtImport {
			continue
		}
		text := strings.TrimSpace(m.Text(st.Import.Span))
		if idx := strings.LastIndexAny(text, `'"`); idx >= 0 {
			style.Quote = text[idx]
		}
		style.Semicolons = strings.HasSuffix(text, ";")
		return style
	}
	for _, st := range m.Statements {
		if st.Kind == StmtDecl || st.Kind == StmtOther {
			text := strings.TrimSpace(m.Text(st.Span))
			if strings.HasSuffix(text, "}") {
				continue
			}
			style.Semicolons = strings.HasSuffix(text, ";")
			break
		}
	}
	return style
}

func nodeSpan(n *sitter.Node) Span {
	return Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// nodeText extracts the text content of a tree-sitter node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(i), visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}
