package reconcile

import (
	"sort"

	"github.com/mvp-joe/splitter/internal/source"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Gap is a missing annotation found in a module.
type Gap struct {
	Query Query

	// At is where ": T" is inserted for return and parameter gaps.
	At int

	// Replace is the declared type replaced by a literal gap.
	Replace source.Span

	// Wrap is a lone arrow parameter that needs parentheses before anything
	// can be annotated.
	Wrap *source.Span

	// Literal is the initializer text of a literal gap.
	Literal string

	// Skip is set when the gap is known to be unfillable.
	Skip string
}

// Pos is the gap's position for ordering edits.
func (g Gap) Pos() int {
	if g.Query.Kind == QueryLiteral {
		return g.Replace.Start
	}
	return g.At
}

// rankedEdit orders edits that share an offset: opening paren, parameter
// annotation, closing paren, return annotation.
type rankedEdit struct {
	source.Edit
	rank int
}

const (
	rankOpen = iota
	rankParam
	rankClose
	rankReturn
)

func (g Gap) edits(text string) []rankedEdit {
	insert := func(at int, s string, rank int) rankedEdit {
		return rankedEdit{Edit: source.Edit{Span: source.Span{Start: at, End: at}, Text: s}, rank: rank}
	}

	switch g.Query.Kind {
	case QueryLiteral:
		return []rankedEdit{{Edit: source.Edit{Span: g.Replace, Text: text}, rank: rankParam}}
	case QueryParameter:
		if g.Wrap != nil {
			return []rankedEdit{
				insert(g.Wrap.Start, "(", rankOpen),
				insert(g.At, ": "+text, rankParam),
				insert(g.Wrap.End, ")", rankClose),
			}
		}
		return []rankedEdit{insert(g.At, ": "+text, rankParam)}
	default:
		if g.Wrap != nil {
			return []rankedEdit{
				insert(g.Wrap.Start, "(", rankOpen),
				insert(g.Wrap.End, ")", rankClose),
				insert(g.At, ": "+text, rankReturn),
			}
		}
		return []rankedEdit{insert(g.At, ": "+text, rankReturn)}
	}
}

// mergeEdits adds next to applied, dropping exact duplicates (shared
// parentheses), and returns them in splice order.
func mergeEdits(applied, next []rankedEdit) []rankedEdit {
	out := append([]rankedEdit(nil), applied...)
	for _, e := range next {
		dup := false
		for _, a := range applied {
			if a == e {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].rank < out[j].rank
	})
	return out
}

func plainEdits(ranked []rankedEdit) []source.Edit {
	out := make([]source.Edit, len(ranked))
	for i, e := range ranked {
		out[i] = e.Edit
	}
	return out
}

// FindGaps lists the missing annotations of a parsed module at any depth:
// return types of functions and function-valued bindings, untyped
// parameters, and const string declarations that can be narrowed to their
// literal. Functions bound to an annotated variable are contextually typed and
// produce no gaps.
func FindGaps(root *sitter.Node, src []byte, path string) []Gap {
	var gaps []Gap

	walk(root, func(n *sitter.Node) {
		switch n.Kind() {
		case "function_declaration", "generator_function_declaration":
			if n.ChildByFieldName("body") == nil {
				return
			}
			name := text(n.ChildByFieldName("name"), src)
			gaps = append(gaps, functionGaps(n, n, name, src, path)...)

		case "variable_declarator":
			value := n.ChildByFieldName("value")
			if value == nil || !isFunctionNode(value) || n.ChildByFieldName("type") != nil {
				return
			}
			name := ""
			if id := n.ChildByFieldName("name"); id != nil && id.Kind() == "identifier" {
				name = text(id, src)
			}
			gaps = append(gaps, functionGaps(value, value, name, src, path)...)

		case "lexical_declaration":
			kind := n.ChildByFieldName("kind")
			if kind == nil || text(kind, src) != "const" {
				return
			}
			for i := uint(0); i < n.NamedChildCount(); i++ {
				if g, ok := literalGap(n.NamedChild(i), src, path); ok {
					gaps = append(gaps, g)
				}
			}
		}
	})

	return gaps
}

func functionGaps(fn, anchor *sitter.Node, name string, src []byte, path string) []Gap {
	var gaps []Gap

	params := fn.ChildByFieldName("parameters")
	lone := fn.ChildByFieldName("parameter")

	if fn.ChildByFieldName("return_type") == nil && fn.Kind() != "generator_function_declaration" {
		g := Gap{Query: newQuery(QueryReturn, path, name, "", anchor)}
		switch {
		case params != nil:
			g.At = int(params.EndByte())
		case lone != nil:
			span := nodeSpan(lone)
			g.At = span.End
			g.Wrap = &span
		default:
			g.Skip = "function has no parameter list"
		}
		gaps = append(gaps, g)
	}

	if lone != nil {
		span := nodeSpan(lone)
		gaps = append(gaps, Gap{
			Query: newQuery(QueryParameter, path, name, text(lone, src), lone),
			At:    span.End,
			Wrap:  &span,
		})
	}

	if params == nil {
		return gaps
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p.Kind() != "required_parameter" && p.Kind() != "optional_parameter" {
			continue
		}
		if p.ChildByFieldName("type") != nil {
			continue
		}
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil {
			continue
		}

		g := Gap{Query: newQuery(QueryParameter, path, name, text(pattern, src), p)}
		switch pattern.Kind() {
		case "identifier":
			g.At = int(pattern.EndByte())
			for j := uint(0); j < p.ChildCount(); j++ {
				if c := p.Child(j); c.Kind() == "?" {
					g.At = int(c.EndByte())
				}
			}
		case "this":
			continue
		case "rest_pattern":
			g.Skip = "rest parameter"
		default:
			g.Skip = "destructured parameter"
		}
		gaps = append(gaps, g)
	}
	return gaps
}

// literalGap matches `const x: string = 'lit'`.
func literalGap(decl *sitter.Node, src []byte, path string) (Gap, bool) {
	if decl.Kind() != "variable_declarator" {
		return Gap{}, false
	}
	ann := decl.ChildByFieldName("type")
	value := decl.ChildByFieldName("value")
	if ann == nil || value == nil || value.Kind() != "string" || ann.NamedChildCount() != 1 {
		return Gap{}, false
	}
	declared := ann.NamedChild(0)
	if declared.Kind() != "predefined_type" || text(declared, src) != "string" {
		return Gap{}, false
	}

	name := text(decl.ChildByFieldName("name"), src)
	return Gap{
		Query:   newQuery(QueryLiteral, path, name, "", decl),
		Replace: nodeSpan(declared),
		Literal: text(value, src),
	}, true
}

func newQuery(kind QueryKind, path, decl, param string, n *sitter.Node) Query {
	pos := n.StartPosition()
	return Query{
		Kind:   kind,
		Path:   path,
		Decl:   decl,
		Param:  param,
		Offset: int(n.StartByte()),
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column),
	}
}

func isFunctionNode(n *sitter.Node) bool {
	switch n.Kind() {
	case "arrow_function", "function_expression", "function":
		return true
	}
	return false
}

func nodeSpan(n *sitter.Node) source.Span {
	return source.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// walk visits every node depth-first.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := uint(0); i < n.ChildCount(); i++ {
		walk(n.Child(i), visit)
	}
}
