package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mvp-joe/splitter/internal/reconcile"
	"github.com/mvp-joe/splitter/internal/report"
	"github.com/mvp-joe/splitter/internal/source"
	"github.com/mvp-joe/splitter/internal/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Pipeline:
// - Type split: interfaces move, the 12-line function stays, the origin imports the types and re-exports the exported one
// - Nested extraction moves validate/get helpers, keeps unrelatedHelper, and reconciliation annotates all three files
// - A nested helper using a module-level declaration that stays is reported and not moved
// - A second run changes nothing
// - A failing save aborts with ErrPersist before any pruning
// - Missing origin, missing selector and unknown composite are warnings and the run reaches Done
// - Formatter failures are warnings
// - Finished runs are journaled
// - Reconcile alone annotates the given paths and warns about missing ones

const fixtureDir = "../../testdata/code/typescript"

var allStates = []string{
	string(StateIdle),
	string(StateTopLevelExtraction),
	string(StateNestedExtraction),
	string(StateTypeReconciliation),
	string(StateExternalFormatting),
	string(StateDone),
}

func fixtureFs(t *testing.T, names ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, name := range names {
		src, err := os.ReadFile(filepath.Join(fixtureDir, name))
		require.NoError(t, err)
		require.NoError(t, afero.WriteFile(fs, name, src, 0o644))
	}
	return fs
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(b)
}

func newPipeline(fs afero.Fs, cfg Config) (*Pipeline, *storage.Store) {
	store := storage.NewStore(fs, source.NewParser())
	return New(store, cfg), store
}

func TestPipeline_TypeSplit(t *testing.T) {
	t.Parallel()

	fs := fixtureFs(t, "type_split.ts")
	p, _ := newPipeline(fs, Config{})

	rep, err := p.Run(context.Background(), "type_split.ts", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, allStates, rep.States)
	assert.Equal(t, 2, rep.Extracted())

	types := readFile(t, fs, "type_split.types.ts")
	assert.True(t, strings.HasPrefix(types, "// Code extracted from type_split.ts.\n\nexport interface User {"))
	assert.Contains(t, types, "export interface FormData {")

	origin := readFile(t, fs, "type_split.ts")
	assert.True(t, strings.HasPrefix(origin, "import type { User, FormData } from './type_split.types';\n"+
		"export type { User } from './type_split.types';\n\n// formatDate renders"), origin)
	assert.NotContains(t, origin, "interface User")
	assert.Contains(t, origin, "export function formatDate(date: Date): string {")
	assert.Contains(t, origin, "export function greet(user: User, form: FormData): string {")
}

func TestPipeline_NestedExtraction(t *testing.T) {
	t.Parallel()

	fs := fixtureFs(t, "user_form.tsx")
	parser := source.NewParser()
	p, store := newPipeline(fs, Config{Checker: reconcile.NewLocalChecker(parser)})

	opts := DefaultOptions()
	opts.NamePattern = regexp.MustCompile(`^(validate|get)`)
	opts.Selector = ByName("UserForm")

	rep, err := p.Run(context.Background(), "user_form.tsx", opts)
	require.NoError(t, err)
	assert.Equal(t, allStates, rep.States)
	assert.Empty(t, rep.Warnings)

	// Test: Types and helpers moved, unrelatedHelper stayed
	assert.Equal(t, 4, rep.Extracted())
	utils := readFile(t, fs, "user_form.utils.tsx")
	assert.Contains(t, utils, "import type { FormErrors } from './user_form.types';")
	assert.Contains(t, utils, "export const validateForm = (value: string): FormErrors => {")
	assert.Contains(t, utils, "export const getRoleBadgeColor = (role: string): string => {")
	assert.NotContains(t, utils, "unrelatedHelper")

	origin := readFile(t, fs, "user_form.tsx")
	assert.Contains(t, origin, "import type { User, FormErrors } from './user_form.types';")
	assert.Contains(t, origin, "import { validateForm, getRoleBadgeColor } from './user_form.utils';")
	assert.NotContains(t, origin, "const validateForm =")
	assert.NotContains(t, origin, "const getRoleBadgeColor =")
	assert.Contains(t, origin, "const unrelatedHelper = (): void => {")
	assert.Contains(t, origin, "export const UserForm = ({ user }: { user: User }): JSX.Element => {")
	assert.True(t, strings.HasPrefix(origin, "'use client';\n\nimport { useState } from 'react';\n"))

	// Test: Annotations land in every touched file
	assert.Equal(t, 4, rep.Annotations())

	// Test: No orphaned reference in any touched module
	for _, path := range []string{"user_form.tsx", "user_form.utils.tsx", "user_form.types.ts"} {
		m, err := store.Load(path)
		require.NoError(t, err)
		assert.False(t, m.HasErrors, path)
		assertNoOrphans(t, m)
	}
}

// assertNoOrphans checks that every reference to a moved name resolves to a
// declaration or an import of m.
func assertNoOrphans(t *testing.T, m *source.Module) {
	t.Helper()
	known := m.DeclaredNames()
	for name := range m.ImportedNames() {
		known[name] = true
	}
	moved := []string{"User", "FormErrors", "FormData", "validateForm", "getRoleBadgeColor"}
	for _, d := range m.Decls() {
		for _, ref := range d.Info().Refs {
			for _, name := range moved {
				if ref == name {
					assert.True(t, known[ref], "%s references %s without importing it", m.Path, ref)
				}
			}
		}
		for _, nested := range source.NestedOf(d) {
			for _, ref := range nested.Info().Refs {
				for _, name := range moved {
					if ref == name {
						assert.True(t, known[ref], "%s.%s references %s without importing it", d.Info().Name, nested.Info().Name, ref)
					}
				}
			}
		}
	}
}

func TestPipeline_NestedHelperUsingModuleConst(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	src := `const MAX_LEN = 10;

export const Form = () => {
  const validateName = (v: string) => {
    return v.length < MAX_LEN;
  };
  const validateAge = (n: number) => {
    return n > 0;
  };
  return validateName('a') && validateAge(1);
};
`
	require.NoError(t, afero.WriteFile(fs, "form.ts", []byte(src), 0o644))
	p, store := newPipeline(fs, Config{})

	opts := DefaultOptions()
	opts.NamePattern = regexp.MustCompile(`^validate`)
	opts.Selector = ByName("Form")

	rep, err := p.Run(context.Background(), "form.ts", opts)
	require.NoError(t, err)

	// Test: The helper using MAX_LEN stays and is reported, its sibling moves
	assert.Equal(t, 1, rep.Extracted())
	var skipped []report.Item
	for _, it := range rep.Items {
		if it.Status == report.Skipped && it.Name == "validateName" {
			skipped = append(skipped, it)
		}
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, "references MAX_LEN, which stays in form.ts", skipped[0].Detail)

	utils := readFile(t, fs, "form.utils.ts")
	assert.Contains(t, utils, "export const validateAge = (n: number) => {")
	assert.NotContains(t, utils, "MAX_LEN")

	origin := readFile(t, fs, "form.ts")
	assert.Contains(t, origin, "const validateName = (v: string) => {")
	assert.Contains(t, origin, "import { validateAge } from './form.utils';")

	// Test: Every name the utilities module uses is defined or imported there
	m, err := store.Load("form.utils.ts")
	require.NoError(t, err)
	known := m.DeclaredNames()
	for name := range m.ImportedNames() {
		known[name] = true
	}
	for _, d := range m.Decls() {
		for _, ref := range d.Info().Refs {
			assert.NotEqual(t, "MAX_LEN", ref)
		}
	}
	assert.True(t, known["validateAge"])
}

func TestPipeline_Idempotent(t *testing.T) {
	t.Parallel()

	fs := fixtureFs(t, "type_split.ts", "utilities.ts")
	p, _ := newPipeline(fs, Config{})

	for _, origin := range []string{"type_split.ts", "utilities.ts"} {
		_, err := p.Run(context.Background(), origin, DefaultOptions())
		require.NoError(t, err)
	}

	snapshot := make(map[string]string)
	paths := []string{"type_split.ts", "type_split.types.ts", "utilities.ts", "utilities.types.ts", "utilities.utils.ts"}
	for _, path := range paths {
		snapshot[path] = readFile(t, fs, path)
	}

	// Test: Running again extracts nothing and leaves every file as it was
	for _, origin := range []string{"type_split.ts", "utilities.ts"} {
		rep, err := p.Run(context.Background(), origin, DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 0, rep.Extracted())
	}
	for _, path := range paths {
		assert.Equal(t, snapshot[path], readFile(t, fs, path), path)
	}
}

func TestPipeline_Utilities(t *testing.T) {
	t.Parallel()

	fs := fixtureFs(t, "utilities.ts")
	p, _ := newPipeline(fs, Config{})

	_, err := p.Run(context.Background(), "utilities.ts", DefaultOptions())
	require.NoError(t, err)

	// Test: The utility imports its type from the types module and carries its own imports
	utils := readFile(t, fs, "utilities.utils.ts")
	assert.Contains(t, utils, "import type { Range } from './utilities.types';")
	assert.Contains(t, utils, "import { clamp } from './math';")
	assert.Contains(t, utils, "export function normalizeRange(range: Range, value: number) {")

	// Test: The origin imports only what its remaining code uses
	origin := readFile(t, fs, "utilities.ts")
	assert.Contains(t, origin, "import type { Range } from './utilities.types';")
	assert.NotContains(t, origin, "import { normalizeRange }")
	assert.NotContains(t, origin, "function normalizeRange")
	assert.Contains(t, origin, "export function inDefaultRange")

	// Test: Moved exports are re-exported so importers of the origin still resolve them
	assert.Contains(t, origin, "export type { Range } from './utilities.types';")
	assert.Contains(t, origin, "export { normalizeRange } from './utilities.utils';")
}

func TestPipeline_PersistFailure(t *testing.T) {
	t.Parallel()

	base := fixtureFs(t, "type_split.ts")
	before := readFile(t, base, "type_split.ts")
	p, _ := newPipeline(afero.NewReadOnlyFs(base), Config{})

	rep, err := p.Run(context.Background(), "type_split.ts", DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)

	// Test: Nothing pruned, run stopped before Done
	assert.Equal(t, before, readFile(t, base, "type_split.ts"))
	assert.False(t, rep.Reached(string(StateDone)))
	assert.Equal(t, 0, rep.Extracted())
}

func TestPipeline_StructuralWarnings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		origin   string
		selector Selector
		warning  string
		states   []string
	}{
		{
			name:    "missing origin",
			origin:  "missing.ts",
			warning: "origin module not found",
			states:  []string{"Idle", "TypeReconciliation", "ExternalFormatting", "Done"},
		},
		{
			name:    "no selector",
			origin:  "user_form.tsx",
			warning: "no composite selector",
			states:  allStates,
		},
		{
			name:     "unknown composite",
			origin:   "user_form.tsx",
			selector: ByName("Missing"),
			warning:  "composite not found",
			states:   allStates,
		},
		{
			name:     "expression body",
			origin:   "arrow.ts",
			selector: ByName("Short"),
			warning:  "composite has no block body",
			states:   allStates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := fixtureFs(t, "user_form.tsx")
			require.NoError(t, afero.WriteFile(fs, "arrow.ts", []byte("export const Short = (a: number) => a * 2;\n"), 0o644))
			p, _ := newPipeline(fs, Config{})

			opts := DefaultOptions()
			opts.Selector = tt.selector
			rep, err := p.Run(context.Background(), tt.origin, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.states, rep.States)
			require.NotEmpty(t, rep.Warnings)
			assert.Contains(t, strings.Join(rep.Warnings, "\n"), tt.warning)
		})
	}
}

func TestPipeline_SyntaxErrorOrigin(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	src := "export interface A {\n  a: string;\n}\nexport function f( {\n"
	require.NoError(t, afero.WriteFile(fs, "broken.ts", []byte(src), 0o644))
	p, _ := newPipeline(fs, Config{})

	rep, err := p.Run(context.Background(), "broken.ts", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, rep.Reached(string(StateDone)))
	assert.False(t, rep.Reached(string(StateTopLevelExtraction)))
	assert.Equal(t, src, readFile(t, fs, "broken.ts"))

	exists, err := afero.Exists(fs, "broken.types.ts")
	require.NoError(t, err)
	assert.False(t, exists)
}

type failingFormatter struct{ calls []string }

func (f *failingFormatter) Format(_ context.Context, path string) error {
	f.calls = append(f.calls, path)
	return errors.New("prettier exploded")
}

func TestPipeline_FormatterFailureIsWarning(t *testing.T) {
	t.Parallel()

	fs := fixtureFs(t, "type_split.ts")
	f := &failingFormatter{}
	p, _ := newPipeline(fs, Config{Formatter: f})

	rep, err := p.Run(context.Background(), "type_split.ts", DefaultOptions())
	require.NoError(t, err)
	assert.True(t, rep.Reached(string(StateDone)))
	assert.ElementsMatch(t, []string{"type_split.ts", "type_split.types.ts"}, f.calls)
	assert.Contains(t, strings.Join(rep.Warnings, "\n"), "prettier exploded")
}

func TestPipeline_Journal(t *testing.T) {
	t.Parallel()

	journal := storage.NewJournal(storage.NewTestDB(t))
	fs := fixtureFs(t, "type_split.ts")
	p, _ := newPipeline(fs, Config{Journal: journal})

	rep, err := p.Run(context.Background(), "type_split.ts", DefaultOptions())
	require.NoError(t, err)

	runs, err := journal.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].ID)
	assert.Equal(t, "type_split.ts", runs[0].Origin)
	assert.Equal(t, 2, runs[0].Extracted)
	assert.Equal(t, allStates, runs[0].States)

	items, err := journal.RunItems(rep.RunID)
	require.NoError(t, err)
	require.Len(t, items, len(rep.Items))
	assert.Equal(t, string(report.Applied), items[0].Status)
}

func TestPipeline_ReconcileOnly(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "calc.ts", []byte("export function double(n: number) {\n  return n * 2;\n}\n"), 0o644))
	parser := source.NewParser()
	p, _ := newPipeline(fs, Config{Checker: reconcile.NewLocalChecker(parser)})

	rep, err := p.Reconcile(context.Background(), []string{"calc.ts", "gone.ts"})
	require.NoError(t, err)
	assert.Equal(t, []string{"TypeReconciliation", "ExternalFormatting", "Done"}, rep.States)
	assert.Equal(t, 1, rep.Annotations())
	assert.Equal(t, 0, rep.Extracted())
	assert.Equal(t, "export function double(n: number): number {\n  return n * 2;\n}\n", readFile(t, fs, "calc.ts"))
	assert.Contains(t, strings.Join(rep.Warnings, "\n"), "gone.ts")
}

func TestPipeline_ReconcileWithoutChecker(t *testing.T) {
	t.Parallel()

	fs := fixtureFs(t, "utilities.ts")
	p, _ := newPipeline(fs, Config{})

	rep, err := p.Reconcile(context.Background(), []string{"utilities.ts"})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Annotations())
	assert.Contains(t, rep.Warnings, "type reconciliation disabled: no checker configured")
}
