package reconcile

import (
	"strings"
	"testing"

	"github.com/mvp-joe/splitter/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FindGaps:
// - Untyped function returns and parameters are found, typed ones are not
// - Lone arrow parameters carry a wrap span
// - Functions bound to annotated variables are skipped entirely
// - Rest and destructured parameters are reported with a skip reason
// - `const x: string = 'lit'` produces a literal gap

const gapSource = `export function add(a, b = 2) {
  return a + b;
}
const double = x => x * 2;
const label: string = 'ready';
function typed(a: number): number {
  return a;
}
const handler: Handler = (e) => e;
function rest(...args) {}
function destr({ a }) {}
`

type gapSummary struct {
	Kind  QueryKind
	Decl  string
	Param string
	Skip  string
}

func findGaps(t *testing.T, path, src string) []Gap {
	t.Helper()
	tree, err := source.NewParser().ParseTree(path, []byte(src))
	require.NoError(t, err)
	defer tree.Close()
	return FindGaps(tree.RootNode(), []byte(src), path)
}

func TestFindGaps(t *testing.T) {
	t.Parallel()

	gaps := findGaps(t, "a.ts", gapSource)

	var got []gapSummary
	for _, g := range gaps {
		got = append(got, gapSummary{g.Query.Kind, g.Query.Decl, g.Query.Param, g.Skip})
	}
	want := []gapSummary{
		{QueryReturn, "add", "", ""},
		{QueryParameter, "add", "a", ""},
		{QueryParameter, "add", "b", ""},
		{QueryReturn, "double", "", ""},
		{QueryParameter, "double", "x", ""},
		{QueryLiteral, "label", "", ""},
		{QueryReturn, "rest", "", ""},
		{QueryParameter, "rest", "...args", "rest parameter"},
		{QueryReturn, "destr", "", ""},
		{QueryParameter, "destr", "{ a }", "destructured parameter"},
	}
	assert.Equal(t, want, got)

	// Test: Return annotation goes right after the parameter list
	assert.Equal(t, strings.Index(gapSource, ") {"), gaps[0].At-1)
	assert.Equal(t, 1, gaps[0].Query.Line)

	// Test: Lone arrow parameter is wrapped
	require.NotNil(t, gaps[3].Wrap)
	assert.Equal(t, "x", gapSource[gaps[3].Wrap.Start:gaps[3].Wrap.End])
	require.NotNil(t, gaps[4].Wrap)

	// Test: Literal gap replaces the declared string type
	assert.Equal(t, "string", gapSource[gaps[5].Replace.Start:gaps[5].Replace.End])
	assert.Equal(t, "'ready'", gaps[5].Literal)
}

func TestGapEdits_SharedParentheses(t *testing.T) {
	t.Parallel()

	src := "const double = x => x * 2;\n"
	gaps := findGaps(t, "a.ts", src)
	require.Len(t, gaps, 2)

	// Test: Return and parameter edits share one pair of parentheses
	edits := mergeEdits(nil, gaps[0].edits("number"))
	edits = mergeEdits(edits, gaps[1].edits("number"))
	out, err := source.Splice([]byte(src), plainEdits(edits))
	require.NoError(t, err)
	assert.Equal(t, "const double = (x: number): number => x * 2;\n", string(out))
}

func TestFindGaps_OptionalParameter(t *testing.T) {
	t.Parallel()

	src := "function f(a?): void {}\n"
	gaps := findGaps(t, "a.ts", src)
	require.Len(t, gaps, 1)

	// Test: Annotation goes after the question mark
	assert.Equal(t, strings.Index(src, "?")+1, gaps[0].At)
}
