package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/splitter/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - Load uses defaults when no config file exists
// - Load reads .splitter/config.yml and .splitter/config.yaml
// - A partial config file merges with defaults
// - Environment variables override the config file
// - Malformed YAML and invalid values are errors
// - Validate rejects each invalid field with its sentinel and reports all of them at once
// - PipelineOptions maps thresholds, paths, pattern and selector

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, Dir)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	return root
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, 20, cfg.Extraction.MinFunctionLines)
	assert.Equal(t, 10, cfg.Extraction.MinVariableLines)
	assert.Equal(t, `^(validate|get|format|handle)`, cfg.Extraction.NamePattern)
	assert.Empty(t, cfg.Extraction.Composite)

	assert.Equal(t, CheckerLocal, cfg.Reconcile.Checker)
	assert.Equal(t, 30, cfg.Reconcile.TimeoutSeconds)
	assert.Equal(t, 100, cfg.Reconcile.MaxTypeLength)
	assert.Equal(t, 4096, cfg.Reconcile.CacheSize)

	assert.Empty(t, cfg.Format.Command)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, ".splitter/journal.db", cfg.Journal.Path)
	assert.Contains(t, cfg.Discovery.Ignore, "node_modules/**")

	assert.NoError(t, Validate(cfg))
}

func TestLoad_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader(t.TempDir()).Load()
	require.NoError(t, err)

	expected := Default()
	assert.Equal(t, expected.Extraction, cfg.Extraction)
	assert.Equal(t, expected.Reconcile.Checker, cfg.Reconcile.Checker)
	assert.Equal(t, expected.Reconcile.MaxTypeLength, cfg.Reconcile.MaxTypeLength)
	assert.Empty(t, cfg.Reconcile.Command)
	assert.Empty(t, cfg.Format.Command)
	assert.Equal(t, expected.Journal, cfg.Journal)
	assert.Equal(t, expected.Discovery.Ignore, cfg.Discovery.Ignore)
}

func TestLoad_ReadsConfigFile(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"config.yml", "config.yaml"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			root := writeConfig(t, name, `
extraction:
  min_function_lines: 40
  name_pattern: "^use"
  composite: Dashboard
reconcile:
  checker: command
  command: ["node", "tools/infer.js"]
format:
  command: ["prettier", "--write", "{path}"]
discovery:
  ignore:
    - "legacy/**"
`)
			cfg, err := LoadConfigFromDir(root)
			require.NoError(t, err)

			assert.Equal(t, 40, cfg.Extraction.MinFunctionLines)
			assert.Equal(t, 10, cfg.Extraction.MinVariableLines)
			assert.Equal(t, "^use", cfg.Extraction.NamePattern)
			assert.Equal(t, "Dashboard", cfg.Extraction.Composite)
			assert.Equal(t, CheckerCommand, cfg.Reconcile.Checker)
			assert.Equal(t, []string{"node", "tools/infer.js"}, cfg.Reconcile.Command)
			assert.Equal(t, 100, cfg.Reconcile.MaxTypeLength)
			assert.Equal(t, []string{"prettier", "--write", "{path}"}, cfg.Format.Command)
			assert.Equal(t, []string{"legacy/**"}, cfg.Discovery.Ignore)
			assert.True(t, cfg.Journal.Enabled)
		})
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	root := writeConfig(t, "config.yml", `
extraction:
  min_function_lines: 40
reconcile:
  checker: local
`)
	t.Setenv("SPLITTER_EXTRACTION_MIN_FUNCTION_LINES", "15")
	t.Setenv("SPLITTER_RECONCILE_CHECKER", "none")
	t.Setenv("SPLITTER_JOURNAL_ENABLED", "false")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Extraction.MinFunctionLines)
	assert.Equal(t, CheckerNone, cfg.Reconcile.Checker)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		root := writeConfig(t, "config.yml", "extraction: [unclosed\n")
		_, err := NewLoader(root).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()
		root := writeConfig(t, "config.yml", "reconcile:\n  checker: tsserver\n")
		_, err := NewLoader(root).Load()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidChecker)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"negative function lines", func(c *Config) { c.Extraction.MinFunctionLines = -1 }, ErrInvalidThreshold},
		{"negative variable lines", func(c *Config) { c.Extraction.MinVariableLines = -5 }, ErrInvalidThreshold},
		{"empty pattern", func(c *Config) { c.Extraction.NamePattern = " " }, ErrInvalidPattern},
		{"bad pattern", func(c *Config) { c.Extraction.NamePattern = "^(get" }, ErrInvalidPattern},
		{"two selectors", func(c *Config) { c.Extraction.Composite = "A"; c.Extraction.FirstBinding = true }, ErrConflictingSelector},
		{"unknown checker", func(c *Config) { c.Reconcile.Checker = "tsc" }, ErrInvalidChecker},
		{"command without argv", func(c *Config) { c.Reconcile.Checker = CheckerCommand }, ErrEmptyCommand},
		{"zero checker timeout", func(c *Config) { c.Reconcile.TimeoutSeconds = 0 }, ErrInvalidTimeout},
		{"zero type length", func(c *Config) { c.Reconcile.MaxTypeLength = 0 }, ErrInvalidTypeLength},
		{"negative cache", func(c *Config) { c.Reconcile.CacheSize = -1 }, ErrInvalidCacheSize},
		{"zero format timeout", func(c *Config) { c.Format.TimeoutSeconds = 0 }, ErrInvalidTimeout},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }, ErrEmptyJournalPath},
		{"bad ignore glob", func(c *Config) { c.Discovery.Ignore = []string{"src/[a"} }, ErrInvalidIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Extraction.MinFunctionLines = -1
	cfg.Reconcile.Checker = "tsc"
	cfg.Journal.Path = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed:")
	assert.ErrorIs(t, err, ErrInvalidThreshold)
	assert.ErrorIs(t, err, ErrInvalidChecker)
	assert.ErrorIs(t, err, ErrEmptyJournalPath)
}

func TestPipelineOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Extraction.MinFunctionLines = 30
	cfg.Extraction.UtilsPath = "src/helpers.ts"
	cfg.Extraction.NamePattern = "^get"

	opts, err := cfg.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, 30, opts.Thresholds.MinFunctionLines)
	assert.Equal(t, 10, opts.Thresholds.MinVariableLines)
	assert.Equal(t, "src/helpers.ts", opts.UtilsPath)
	assert.True(t, opts.NamePattern.MatchString("getName"))
	assert.False(t, opts.NamePattern.MatchString("validate"))
	assert.Nil(t, opts.Selector)

	cfg.Extraction.Composite = "UserForm"
	opts, err = cfg.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, pipeline.ByName("UserForm"), opts.Selector)

	cfg.Extraction.Composite = ""
	cfg.Extraction.FirstBinding = true
	opts, err = cfg.PipelineOptions()
	require.NoError(t, err)
	assert.Equal(t, pipeline.FirstFunctionBinding{}, opts.Selector)
}
