package discovery

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Discovery:
// - Walk matches include patterns, including root files against **/ patterns
// - Ignore rules skip dependency directories, declaration files and generated modules
// - Resolve keeps explicit files even when ignored and deduplicates
// - Invalid patterns are rejected

func setupFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range []string{
		"proj/root.ts",
		"proj/README.md",
		"proj/types.d.ts",
		"proj/src/a.ts",
		"proj/src/b.tsx",
		"proj/src/a.types.ts",
		"proj/src/a.utils.ts",
		"proj/node_modules/x/index.ts",
		"proj/.splitter/cache.ts",
	} {
		require.NoError(t, afero.WriteFile(fs, p, []byte("export {};\n"), 0o644))
	}
	return fs
}

func TestDiscovery_Walk(t *testing.T) {
	t.Parallel()

	d, err := New(setupFs(t), "proj", DefaultIgnore)
	require.NoError(t, err)

	files, err := d.Walk([]string{"**/*.ts", "**/*.tsx"})
	require.NoError(t, err)
	assert.Equal(t, []string{"proj/root.ts", "proj/src/a.ts", "proj/src/b.tsx"}, files)
}

func TestDiscovery_Resolve(t *testing.T) {
	t.Parallel()

	d, err := New(setupFs(t), "proj", DefaultIgnore)
	require.NoError(t, err)

	// Test: Explicit files bypass ignore rules, patterns are expanded
	files, err := d.Resolve([]string{"proj/src/a.types.ts", "src/*.ts", "proj/src/a.types.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"proj/src/a.ts", "proj/src/a.types.ts"}, files)

	// Test: No match is an empty result
	files, err = d.Resolve([]string{"lib/**/*.ts"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := New(afero.NewMemMapFs(), ".", []string{"[unclosed"})
	assert.Error(t, err)
}
