package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/mvp-joe/splitter/internal/source"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// maxResolveDepth bounds identifier chasing through initializers.
const maxResolveDepth = 8

// LocalChecker infers types from the syntax of a single module. It knows
// literals, operators, a handful of built-in calls, and functions in the same
// module that declare their return type. Anything else is ErrCannotInfer.
type LocalChecker struct {
	parser *source.Parser
}

// NewLocalChecker creates a LocalChecker.
func NewLocalChecker(parser *source.Parser) *LocalChecker {
	return &LocalChecker{parser: parser}
}

// TypeOf implements Checker.
func (c *LocalChecker) TypeOf(ctx context.Context, m *source.Module, q Query) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tree, err := c.parser.ParseTree(m.Path, m.Src)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	n := nodeAt(tree.RootNode(), q)
	if n == nil {
		return "", fmt.Errorf("%w: no %s at offset %d", ErrCannotInfer, q.Kind, q.Offset)
	}

	inf := &inferrer{src: m.Src, root: tree.RootNode()}
	var t string
	switch q.Kind {
	case QueryLiteral:
		if v := n.ChildByFieldName("value"); v != nil && v.Kind() == "string" {
			t = text(v, m.Src)
		}
	case QueryParameter:
		t = inf.param(n)
	default:
		t = inf.returnOf(n)
	}
	if t == "" {
		return "", ErrCannotInfer
	}
	return t, nil
}

func nodeAt(root *sitter.Node, q Query) *sitter.Node {
	var kinds map[string]bool
	switch q.Kind {
	case QueryLiteral:
		kinds = map[string]bool{"variable_declarator": true}
	case QueryParameter:
		kinds = map[string]bool{"required_parameter": true, "optional_parameter": true, "identifier": true}
	default:
		kinds = functionKinds
	}

	var found *sitter.Node
	walk(root, func(n *sitter.Node) {
		if found == nil && int(n.StartByte()) == q.Offset && kinds[n.Kind()] {
			found = n
		}
	})
	return found
}

var functionKinds = map[string]bool{
	"function_declaration":           true,
	"generator_function_declaration": true,
	"function_expression":            true,
	"function":                       true,
	"arrow_function":                 true,
	"method_definition":              true,
}

type inferrer struct {
	src  []byte
	root *sitter.Node
}

func (in *inferrer) param(n *sitter.Node) string {
	if n.Kind() == "identifier" {
		return "any"
	}
	if v := n.ChildByFieldName("value"); v != nil {
		return in.expr(v, 0)
	}
	return "any"
}

func (in *inferrer) returnOf(fn *sitter.Node) string {
	if fn.Kind() == "generator_function_declaration" {
		return ""
	}
	body := fn.ChildByFieldName("body")
	if body == nil {
		return ""
	}

	var t string
	if body.Kind() != "statement_block" {
		t = in.expr(body, 0)
	} else {
		var types []string
		in.returns(body, func(ret *sitter.Node) {
			if ret.NamedChildCount() == 0 {
				types = append(types, "undefined")
				return
			}
			types = append(types, in.expr(ret.NamedChild(0), 0))
		})
		switch {
		case len(types) == 0:
			t = "void"
		case completes(body):
			t = union(append(types, "undefined"))
		default:
			t = union(types)
		}
	}
	if t == "" {
		return ""
	}

	if isAsync(fn) {
		return "Promise<" + t + ">"
	}
	return t
}

// returns visits the return statements of a body without entering nested
// functions or classes.
func (in *inferrer) returns(n *sitter.Node, visit func(*sitter.Node)) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if functionKinds[c.Kind()] || c.Kind() == "class_declaration" || c.Kind() == "class" {
			continue
		}
		if c.Kind() == "return_statement" {
			visit(c)
			continue
		}
		in.returns(c, visit)
	}
}

func (in *inferrer) expr(n *sitter.Node, depth int) string {
	if n == nil || depth > maxResolveDepth {
		return ""
	}

	switch n.Kind() {
	case "string", "template_string":
		return "string"
	case "number":
		return "number"
	case "true", "false":
		return "boolean"
	case "null":
		return "null"
	case "undefined":
		return "undefined"
	case "regex":
		return "RegExp"
	case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
		return "JSX.Element"

	case "parenthesized_expression", "satisfies_expression":
		if n.NamedChildCount() == 0 {
			return ""
		}
		return in.expr(n.NamedChild(0), depth)

	case "as_expression":
		if n.NamedChildCount() < 2 {
			return ""
		}
		return text(n.NamedChild(1), in.src)

	case "unary_expression":
		switch in.operator(n) {
		case "!":
			return "boolean"
		case "typeof":
			return "string"
		case "-", "+", "~":
			return "number"
		case "void":
			return "undefined"
		}
		return ""

	case "binary_expression":
		return in.binary(n, depth)

	case "ternary_expression":
		a := in.expr(n.ChildByFieldName("consequence"), depth)
		b := in.expr(n.ChildByFieldName("alternative"), depth)
		return union([]string{a, b})

	case "new_expression":
		ctor := n.ChildByFieldName("constructor")
		if ctor == nil || ctor.Kind() != "identifier" {
			return ""
		}
		name := text(ctor, in.src)
		if args := n.ChildByFieldName("type_arguments"); args != nil {
			return name + text(args, in.src)
		}
		if genericBuiltins[name] {
			return ""
		}
		return name

	case "await_expression":
		if n.NamedChildCount() == 0 {
			return ""
		}
		t := in.expr(n.NamedChild(0), depth)
		if strings.HasPrefix(t, "Promise<") && strings.HasSuffix(t, ">") {
			return t[len("Promise<") : len(t)-1]
		}
		return t

	case "array":
		return in.array(n, depth)

	case "object":
		return in.object(n, depth)

	case "call_expression":
		return in.call(n, depth)

	case "member_expression":
		if text(n.ChildByFieldName("property"), in.src) != "length" {
			return ""
		}
		if recv := in.expr(n.ChildByFieldName("object"), depth+1); recv == "string" || isArrayType(recv) {
			return "number"
		}
		return ""

	case "identifier":
		return in.identifier(n, depth)
	}
	return ""
}

var genericBuiltins = map[string]bool{
	"Map": true, "Set": true, "WeakMap": true, "WeakSet": true, "Array": true, "Promise": true,
}

func (in *inferrer) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Kind()
	}
	return ""
}

func (in *inferrer) binary(n *sitter.Node, depth int) string {
	op := in.operator(n)
	switch op {
	case "==", "===", "!=", "!==", "<", ">", "<=", ">=", "instanceof", "in":
		return "boolean"
	case "-", "*", "/", "%", "**", "&", "|", "^", "<<", ">>", ">>>":
		return "number"
	}

	left := in.expr(n.ChildByFieldName("left"), depth)
	right := in.expr(n.ChildByFieldName("right"), depth)
	switch op {
	case "+":
		if left == "string" || right == "string" {
			return "string"
		}
		if left == "number" && right == "number" {
			return "number"
		}
	case "&&", "||", "??":
		if left != "" && left == right {
			return left
		}
	}
	return ""
}

func (in *inferrer) array(n *sitter.Node, depth int) string {
	if n.NamedChildCount() == 0 {
		return ""
	}
	var elems []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c.Kind() == "comment" {
			continue
		}
		elems = append(elems, in.expr(c, depth))
	}
	t := union(elems)
	if t == "" {
		return ""
	}
	if strings.Contains(t, " | ") {
		return "(" + t + ")[]"
	}
	return t + "[]"
}

func (in *inferrer) object(n *sitter.Node, depth int) string {
	var fields []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		var key, t string
		switch c.Kind() {
		case "pair":
			k := c.ChildByFieldName("key")
			if k == nil || k.Kind() != "property_identifier" {
				return ""
			}
			key = text(k, in.src)
			t = in.expr(c.ChildByFieldName("value"), depth)
		case "shorthand_property_identifier":
			key = text(c, in.src)
			t = in.resolve(c, key, depth)
		case "comment":
			continue
		default:
			return ""
		}
		if t == "" {
			return ""
		}
		fields = append(fields, key+": "+t)
	}
	if len(fields) == 0 {
		return ""
	}
	return "{ " + strings.Join(fields, "; ") + " }"
}

// Return types of built-in methods, by receiver type.
var (
	stringMethods = map[string]string{
		"toUpperCase": "string", "toLowerCase": "string", "trim": "string", "trimStart": "string",
		"trimEnd": "string", "padStart": "string", "padEnd": "string", "replace": "string",
		"replaceAll": "string", "charAt": "string", "repeat": "string", "substring": "string",
		"slice": "string", "toString": "string",
		"indexOf": "number", "lastIndexOf": "number", "charCodeAt": "number",
		"includes": "boolean", "startsWith": "boolean", "endsWith": "boolean",
	}
	arrayMethods = map[string]string{
		"join": "string", "toString": "string",
		"indexOf": "number", "lastIndexOf": "number", "push": "number",
		"includes": "boolean", "some": "boolean", "every": "boolean",
	}
	numberMethods = map[string]string{
		"toFixed": "string", "toPrecision": "string", "toString": "string",
	}
	dateMethods = map[string]string{
		"toISOString": "string", "toDateString": "string", "toString": "string",
		"getTime": "number", "getFullYear": "number", "getMonth": "number", "getDate": "number",
	}
)

func (in *inferrer) call(n *sitter.Node, depth int) string {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}

	switch fn.Kind() {
	case "identifier":
		name := text(fn, in.src)
		switch name {
		case "String":
			return "string"
		case "Number", "parseInt", "parseFloat":
			return "number"
		case "Boolean", "isNaN", "isFinite":
			return "boolean"
		}
		return in.declaredReturn(name)

	case "member_expression":
		recvNode := fn.ChildByFieldName("object")
		obj := text(recvNode, in.src)
		prop := text(fn.ChildByFieldName("property"), in.src)
		switch {
		case obj == "Math":
			return "number"
		case obj == "Date" && prop == "now":
			return "number"
		case obj == "JSON" && prop == "stringify":
			return "string"
		case obj == "Array" && prop == "isArray":
			return "boolean"
		case obj == "Object" && prop == "keys":
			return "string[]"
		}
		return methodReturn(in.expr(recvNode, depth+1), prop)
	}
	return ""
}

// methodReturn is the return type of the built-in method prop on a receiver
// of type recv. Unknown receivers give "".
func methodReturn(recv, prop string) string {
	switch {
	case recv == "string":
		return stringMethods[prop]
	case isArrayType(recv):
		return arrayMethods[prop]
	case recv == "number":
		return numberMethods[prop]
	case recv == "Date":
		return dateMethods[prop]
	case recv == "RegExp" && prop == "test":
		return "boolean"
	case (strings.HasPrefix(recv, "Set<") || strings.HasPrefix(recv, "Map<")) && prop == "has":
		return "boolean"
	}
	return ""
}

func isArrayType(t string) bool {
	return strings.HasSuffix(t, "[]") || strings.HasPrefix(t, "Array<") || strings.HasPrefix(t, "ReadonlyArray<")
}

// declaredReturn finds a top-level function named name with an explicit
// return type.
func (in *inferrer) declaredReturn(name string) string {
	var found string
	walk(in.root, func(n *sitter.Node) {
		if found != "" {
			return
		}
		switch n.Kind() {
		case "function_declaration":
			if text(n.ChildByFieldName("name"), in.src) == name {
				found = annotation(n.ChildByFieldName("return_type"), in.src)
			}
		case "variable_declarator":
			v := n.ChildByFieldName("value")
			if v != nil && isFunctionNode(v) && text(n.ChildByFieldName("name"), in.src) == name {
				found = annotation(v.ChildByFieldName("return_type"), in.src)
			}
		}
	})
	return found
}

func (in *inferrer) identifier(n *sitter.Node, depth int) string {
	name := text(n, in.src)
	switch name {
	case "undefined":
		return "undefined"
	case "NaN", "Infinity":
		return "number"
	}
	return in.resolve(n, name, depth)
}

// resolve finds the nearest declaration of name visible from n.
func (in *inferrer) resolve(n *sitter.Node, name string, depth int) string {
	for scope := n.Parent(); scope != nil; scope = scope.Parent() {
		switch {
		case scope.Kind() == "statement_block" || scope.Kind() == "program":
			if d := in.declarator(scope, name); d != nil {
				if t := annotation(d.ChildByFieldName("type"), in.src); t != "" {
					return t
				}
				v := d.ChildByFieldName("value")
				if v == nil || isFunctionNode(v) {
					return ""
				}
				return in.expr(v, depth+1)
			}
		case functionKinds[scope.Kind()]:
			if t, ok := in.paramType(scope, name, depth); ok {
				return t
			}
		}
	}
	return ""
}

func (in *inferrer) declarator(block *sitter.Node, name string) *sitter.Node {
	for i := uint(0); i < block.NamedChildCount(); i++ {
		c := block.NamedChild(i)
		if c.Kind() != "lexical_declaration" && c.Kind() != "variable_declaration" {
			continue
		}
		for j := uint(0); j < c.NamedChildCount(); j++ {
			d := c.NamedChild(j)
			if d.Kind() != "variable_declarator" {
				continue
			}
			id := d.ChildByFieldName("name")
			if id != nil && id.Kind() == "identifier" && text(id, in.src) == name {
				return d
			}
		}
	}
	return nil
}

func (in *inferrer) paramType(fn *sitter.Node, name string, depth int) (string, bool) {
	if lone := fn.ChildByFieldName("parameter"); lone != nil && text(lone, in.src) == name {
		return "", true
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return "", false
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		pattern := p.ChildByFieldName("pattern")
		if pattern == nil || pattern.Kind() != "identifier" || text(pattern, in.src) != name {
			continue
		}
		if t := annotation(p.ChildByFieldName("type"), in.src); t != "" {
			return t, true
		}
		if v := p.ChildByFieldName("value"); v != nil {
			return in.expr(v, depth+1), true
		}
		return "", true
	}
	return "", false
}

// completes reports whether control can run off the end of statement n.
// Loops other than while (true) are assumed to complete.
func completes(n *sitter.Node) bool {
	if n == nil {
		return true
	}
	switch n.Kind() {
	case "return_statement", "throw_statement":
		return false
	case "statement_block":
		return statementsComplete(n, 0)
	case "else_clause":
		return statementsComplete(n, 0)
	case "if_statement":
		alt := n.ChildByFieldName("alternative")
		if alt == nil {
			return true
		}
		return completes(n.ChildByFieldName("consequence")) || completes(alt)
	case "try_statement":
		if f := n.ChildByFieldName("finalizer"); f != nil && !completes(f.ChildByFieldName("body")) {
			return false
		}
		if completes(n.ChildByFieldName("body")) {
			return true
		}
		h := n.ChildByFieldName("handler")
		return h != nil && completes(h.ChildByFieldName("body"))
	case "switch_statement":
		return switchCompletes(n)
	case "while_statement":
		cond := n.ChildByFieldName("condition")
		if cond == nil || cond.NamedChildCount() != 1 || cond.NamedChild(0).Kind() != "true" {
			return true
		}
		return breaks(n.ChildByFieldName("body"))
	}
	return true
}

// statementsComplete reports whether the named children of n from index
// from on run to completion in sequence.
func statementsComplete(n *sitter.Node, from uint) bool {
	for i := from; i < n.NamedChildCount(); i++ {
		if !completes(n.NamedChild(i)) {
			return false
		}
	}
	return true
}

// switchCompletes reports whether a switch can finish without returning. It
// cannot when it has a default clause, nothing breaks out of it, and the last
// clause, where every fallthrough ends, does not complete.
func switchCompletes(n *sitter.Node) bool {
	body := n.ChildByFieldName("body")
	if body == nil || breaks(body) {
		return true
	}
	var last *sitter.Node
	hasDefault := false
	for i := uint(0); i < body.NamedChildCount(); i++ {
		c := body.NamedChild(i)
		switch c.Kind() {
		case "switch_default":
			hasDefault = true
			last = c
		case "switch_case":
			last = c
		}
	}
	if !hasDefault || last == nil {
		return true
	}
	from := uint(0)
	if last.Kind() == "switch_case" {
		from = 1
	}
	if last.NamedChildCount() <= from {
		return true
	}
	return statementsComplete(last, from)
}

// breaks reports whether n holds a break that leaves the enclosing statement:
// any labeled break, or an unlabeled one outside nested loops and switches.
func breaks(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch {
		case c.Kind() == "break_statement":
			return true
		case functionKinds[c.Kind()] || c.Kind() == "class_declaration" || c.Kind() == "class":
			continue
		case breakTargets[c.Kind()]:
			if labeledBreak(c) {
				return true
			}
			continue
		}
		if breaks(c) {
			return true
		}
	}
	return false
}

func labeledBreak(n *sitter.Node) bool {
	found := false
	walk(n, func(c *sitter.Node) {
		if c.Kind() == "break_statement" && c.NamedChildCount() > 0 {
			found = true
		}
	})
	return found
}

// breakTargets are the statements an unlabeled break leaves.
var breakTargets = map[string]bool{
	"for_statement":    true,
	"for_in_statement": true,
	"while_statement":  true,
	"do_statement":     true,
	"switch_statement": true,
}

func isAsync(fn *sitter.Node) bool {
	for i := uint(0); i < fn.ChildCount(); i++ {
		if fn.Child(i).Kind() == "async" {
			return true
		}
	}
	return false
}

// annotation returns the type text of a type_annotation node without its
// leading colon.
func annotation(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(text(n, src), ":"))
}

// union joins distinct types in first-seen order. Any unknown member makes the
// whole union unknown.
func union(types []string) string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range types {
		if t == "" {
			return ""
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return strings.Join(out, " | ")
}
