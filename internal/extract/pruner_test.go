package extract

import (
	"regexp"
	"testing"

	"github.com/mvp-joe/splitter/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Prune:
// - Top-level candidates are removed with their comments and one surrounding blank line
// - Nested candidates are removed from the composite body; other helpers stay
// - Candidates that no longer resolve are skipped
// - Every pruned name stays resolvable through an import once the rewriter ran

func TestPrune_TopLevel(t *testing.T) {
	t.Parallel()

	p := source.NewParser()
	origin := loadFixture(t, "type_split.ts")
	cands := Classify(origin, DefaultThresholds())

	origin, err := NewRewriter(p).Rewrite(origin, "type_split.types.ts", Names(cands), true)
	require.NoError(t, err)

	pruned, items, err := Prune(p, origin, cands)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, pruned.HasErrors)

	var names []string
	for _, d := range pruned.Decls() {
		names = append(names, d.Info().Name)
	}
	assert.Equal(t, []string{"formatDate", "greet"}, names)
	assert.Contains(t, string(pruned.Src), "import type { User, FormData } from './type_split.types';\n\n// formatDate renders")

	// Test: No orphaned reference
	imported := pruned.ImportedNames()
	for _, c := range cands {
		_, ok := imported[c.Name]
		assert.True(t, ok, "%s must be imported after pruning", c.Name)
	}
}

func TestPrune_Nested(t *testing.T) {
	t.Parallel()

	p := source.NewParser()
	origin := loadFixture(t, "user_form.tsx")
	composite, ok := origin.Lookup("", "UserForm")
	require.True(t, ok)

	cands := ClassifyNested(origin, composite, regexp.MustCompile(`^(validate|get)`), Leaving(Classify(origin, DefaultThresholds())))
	pruned, _, err := Prune(p, origin, cands)
	require.NoError(t, err)
	assert.False(t, pruned.HasErrors)

	_, ok = pruned.Lookup("UserForm", "validateForm")
	assert.False(t, ok)
	_, ok = pruned.Lookup("UserForm", "getRoleBadgeColor")
	assert.False(t, ok)
	_, ok = pruned.Lookup("UserForm", "unrelatedHelper")
	assert.True(t, ok)

	// Test: Call sites in the body are untouched
	assert.Contains(t, string(pruned.Src), "const errors = validateForm(name);")
	assert.Contains(t, string(pruned.Src), "const [name, setName] = useState(user.name);\n\n  const unrelatedHelper")
}

func TestPrune_Stale(t *testing.T) {
	t.Parallel()

	origin := loadFixture(t, "type_split.ts")
	pruned, items, err := Prune(source.NewParser(), origin, []Candidate{{Name: "Missing", Category: CategoryType}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, ErrStaleCandidate.Error(), items[0].Detail)
	assert.Equal(t, string(origin.Src), string(pruned.Src))
}
