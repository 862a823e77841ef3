package storage

import (
	"testing"

	"github.com/mvp-joe/splitter/internal/source"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Store:
// - Load parses an existing module
// - Load of a missing path returns ErrNotFound
// - LoadOrNew falls back to the header for missing modules
// - Save writes content, creates parent directories and leaves no temp files
// - Save keeps the mode of an existing file
// - Save on a read-only filesystem fails without touching the file

func newMemStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewStore(fs, source.NewParser()), fs
}

func TestStore_Load(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, "src/a.ts", []byte("export interface A {}\n"), 0o644))

	// Test: Existing module is parsed
	m, err := store.Load("src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "src/a.ts", m.Path)
	require.Len(t, m.Decls(), 1)
	assert.Equal(t, "A", m.Decls()[0].Info().Name)

	// Test: Missing module reports ErrNotFound
	_, err = store.Load("src/missing.ts")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := store.Exists("src/a.ts")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_LoadOrNew(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, "a.ts", []byte("const a = 1;\n"), 0o644))

	m, existed, err := store.LoadOrNew("a.ts", "// header\n")
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "const a = 1;\n", string(m.Src))

	m, existed, err = store.LoadOrNew("b.ts", "// header\n")
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "// header\n", string(m.Src))
	assert.Equal(t, "b.ts", m.Path)
}

func TestStore_Save(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	m, _, err := store.LoadOrNew("out/nested/a.types.ts", "export type A = string;\n")
	require.NoError(t, err)

	// Test: Parent directories are created and content is written
	require.NoError(t, store.Save(m))
	got, err := afero.ReadFile(fs, "out/nested/a.types.ts")
	require.NoError(t, err)
	assert.Equal(t, "export type A = string;\n", string(got))

	// Test: No temp files remain
	entries, err := afero.ReadDir(fs, "out/nested")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.types.ts", entries[0].Name())
}

func TestStore_SavePreservesMode(t *testing.T) {
	t.Parallel()

	store, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, "run.ts", []byte("const a = 1;\n"), 0o600))

	m, err := store.Load("run.ts")
	require.NoError(t, err)
	require.NoError(t, store.Save(m))

	info, err := fs.Stat("run.ts")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())
}

func TestStore_SaveReadOnly(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "a.ts", []byte("const a = 1;\n"), 0o644))
	store := NewStore(afero.NewReadOnlyFs(base), source.NewParser())

	// Test: Loading still works, saving fails and leaves content untouched
	m, err := store.Load("a.ts")
	require.NoError(t, err)

	changed, err := store.Parser().Parse(m.Path, []byte("const a = 2;\n"))
	require.NoError(t, err)
	assert.ErrorIs(t, store.Save(changed), ErrPersist)

	got, err := afero.ReadFile(base, "a.ts")
	require.NoError(t, err)
	assert.Equal(t, "const a = 1;\n", string(got))
}
