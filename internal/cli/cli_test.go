package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/splitter/internal/config"
	"github.com/mvp-joe/splitter/internal/pipeline"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for CLI commands:
// - splitAll resolves globs under the root, splits every match and prints reports and totals
// - splitAll refuses an empty match and --types with several origins
// - printPlan prints JSON without writing files
// - history lists journaled runs and the items of one run
// - Paths outside the project root are rejected
// - Selection flags override only what was set
// - version prints the short form alone and build details otherwise

const fixtureDir = "../../testdata/code/typescript"

func setupProject(t *testing.T, cfg *config.Config, fixtures ...string) *project {
	t.Helper()
	root := t.TempDir()
	for _, name := range fixtures {
		src, err := os.ReadFile(filepath.Join(fixtureDir, name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, name), src, 0o644))
	}
	if cfg == nil {
		cfg = config.Default()
	}
	p, err := newProject(root, cfg, afero.NewBasePathFs(afero.NewOsFs(), root))
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestSplitAll(t *testing.T) {
	t.Parallel()

	p := setupProject(t, nil, "type_split.ts", "utilities.ts")

	var out bytes.Buffer
	stats, err := splitAll(context.Background(), p, []string{"*.ts"}, &selectionFlags{minFunctionLines: -1, minVariableLines: -1}, &out, false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 4, stats.Extracted)
	assert.Equal(t, 0, stats.Failed)
	assert.Contains(t, out.String(), "✓ Split complete: 2 modules")
	assert.Contains(t, out.String(), "type_split.ts (run ")

	types, err := os.ReadFile(filepath.Join(p.root, "type_split.types.ts"))
	require.NoError(t, err)
	assert.Contains(t, string(types), "export interface FormData {")

	// Test: Generated modules are not split again by the same glob
	out.Reset()
	stats, err = splitAll(context.Background(), p, []string{"*.ts"}, &selectionFlags{minFunctionLines: -1, minVariableLines: -1}, &out, true)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 0, stats.Extracted)
	assert.Empty(t, out.String())
}

func TestSplitAll_Errors(t *testing.T) {
	t.Parallel()

	p := setupProject(t, nil, "type_split.ts", "utilities.ts")
	flags := &selectionFlags{minFunctionLines: -1, minVariableLines: -1}

	_, err := splitAll(context.Background(), p, []string{"src/**/*.tsx"}, flags, &bytes.Buffer{}, true)
	assert.ErrorContains(t, err, "no modules match")

	flags.typesPath = "shared.types.ts"
	_, err = splitAll(context.Background(), p, []string{"*.ts"}, flags, &bytes.Buffer{}, true)
	assert.ErrorContains(t, err, "exactly one origin")

	_, err = p.rel(filepath.Join(p.root, "..", "elsewhere.ts"))
	assert.ErrorContains(t, err, "outside project root")
}

func TestPrintPlan(t *testing.T) {
	t.Parallel()

	p := setupProject(t, nil, "type_split.ts")

	var out bytes.Buffer
	flags := &selectionFlags{minFunctionLines: -1, minVariableLines: -1}
	require.NoError(t, printPlan(p, filepath.Join(p.root, "type_split.ts"), flags, true, &out))

	var plan pipeline.Plan
	require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
	assert.Equal(t, "type_split.ts", plan.Origin)
	assert.Equal(t, 2, plan.Moving())

	_, err := os.Stat(filepath.Join(p.root, "type_split.types.ts"))
	assert.True(t, os.IsNotExist(err))
}

func TestHistory(t *testing.T) {
	t.Parallel()

	p := setupProject(t, nil, "type_split.ts")
	require.NotNil(t, p.journal)

	_, err := splitAll(context.Background(), p, []string{"*.ts"}, &selectionFlags{minFunctionLines: -1, minVariableLines: -1}, &bytes.Buffer{}, true)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printRecentRuns(p.journal, 10, &out))
	assert.Contains(t, out.String(), "type_split.ts")
	assert.Contains(t, out.String(), "[Done]")

	runs, err := p.journal.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	out.Reset()
	require.NoError(t, printRunItems(p.journal, runs[0].ID, &out))
	assert.Contains(t, out.String(), "applied  type          User (type_split.types.ts)")

	assert.Error(t, printRunItems(p.journal, "no-such-run", &bytes.Buffer{}))
}

func TestNewProject_CheckerSelection(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Reconcile.Checker = config.CheckerNone
	cfg.Journal.Enabled = false
	p := setupProject(t, cfg)
	assert.Nil(t, p.journal)
	assert.Empty(t, p.closers)

	cfg = config.Default()
	cfg.Reconcile.Checker = config.CheckerCommand
	cfg.Journal.Enabled = false
	_, err := newProject(t.TempDir(), cfg, afero.NewMemMapFs())
	assert.Error(t, err)
}

func TestSelectionFlags_Apply(t *testing.T) {
	t.Parallel()

	base := pipeline.DefaultOptions()

	opts, err := (&selectionFlags{minFunctionLines: -1, minVariableLines: -1}).apply(base, 3)
	require.NoError(t, err)
	assert.Equal(t, base.Thresholds, opts.Thresholds)
	assert.Nil(t, opts.Selector)

	opts, err = (&selectionFlags{
		composite:        "UserForm",
		namePattern:      "^get",
		minFunctionLines: 0,
		minVariableLines: -1,
		utilsPath:        "helpers.ts",
	}).apply(base, 1)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ByName("UserForm"), opts.Selector)
	assert.Equal(t, 0, opts.Thresholds.MinFunctionLines)
	assert.Equal(t, 10, opts.Thresholds.MinVariableLines)
	assert.Equal(t, "helpers.ts", opts.UtilsPath)
	assert.Equal(t, "^get", opts.NamePattern.String())

	_, err = (&selectionFlags{namePattern: "(", minFunctionLines: -1, minVariableLines: -1}).apply(base, 1)
	assert.ErrorContains(t, err, "invalid --pattern")
}

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	// Test: --short prints only the version, the long form adds commit and date
	var short, long bytes.Buffer
	printVersion(&short, true)
	printVersion(&long, false)

	assert.Equal(t, versionString()+"\n", short.String())
	assert.Contains(t, long.String(), "splitter "+versionString())
	assert.Contains(t, long.String(), "commit: "+GitCommit)
}
