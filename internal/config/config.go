// Package config loads splitter settings from .splitter/config.yml with
// SPLITTER_* environment overrides.
package config

import (
	"github.com/mvp-joe/splitter/internal/discovery"
	"github.com/mvp-joe/splitter/internal/extract"
	"github.com/mvp-joe/splitter/internal/format"
	"github.com/mvp-joe/splitter/internal/reconcile"
)

// Checker backends.
const (
	CheckerLocal   = "local"
	CheckerCommand = "command"
	CheckerNone    = "none"
)

// Config is the complete splitter configuration.
type Config struct {
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Reconcile  ReconcileConfig  `yaml:"reconcile" mapstructure:"reconcile"`
	Format     FormatConfig     `yaml:"format" mapstructure:"format"`
	Journal    JournalConfig    `yaml:"journal" mapstructure:"journal"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
}

// ExtractionConfig controls candidate classification and target paths.
type ExtractionConfig struct {
	MinFunctionLines int    `yaml:"min_function_lines" mapstructure:"min_function_lines"`
	MinVariableLines int    `yaml:"min_variable_lines" mapstructure:"min_variable_lines"`
	NamePattern      string `yaml:"name_pattern" mapstructure:"name_pattern"` // nested helpers to extract
	TypesPath        string `yaml:"types_path" mapstructure:"types_path"`     // empty means <base>.types.ts
	UtilsPath        string `yaml:"utils_path" mapstructure:"utils_path"`     // empty means <base>.utils<ext>
	Composite        string `yaml:"composite" mapstructure:"composite"`       // composite name for nested extraction
	FirstBinding     bool   `yaml:"first_binding" mapstructure:"first_binding"`
}

// ReconcileConfig selects and tunes the type checker.
type ReconcileConfig struct {
	Checker        string   `yaml:"checker" mapstructure:"checker"` // "local", "command" or "none"
	Command        []string `yaml:"command" mapstructure:"command"` // argv of the external checker
	TimeoutSeconds int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxTypeLength  int      `yaml:"max_type_length" mapstructure:"max_type_length"`
	CacheSize      int      `yaml:"cache_size" mapstructure:"cache_size"` // 0 disables the answer cache
}

// FormatConfig configures the external formatter. An empty command disables
// formatting.
type FormatConfig struct {
	Command        []string `yaml:"command" mapstructure:"command"`
	TimeoutSeconds int      `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// JournalConfig configures the run journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"` // relative to the project root
}

// DiscoveryConfig lists files never split by batch runs.
type DiscoveryConfig struct {
	Ignore []string `yaml:"ignore" mapstructure:"ignore"`
}

// Default returns a configuration with the stock settings.
func Default() *Config {
	th := extract.DefaultThresholds()
	return &Config{
		Extraction: ExtractionConfig{
			MinFunctionLines: th.MinFunctionLines,
			MinVariableLines: th.MinVariableLines,
			NamePattern:      extract.DefaultNamePattern,
		},
		Reconcile: ReconcileConfig{
			Checker:        CheckerLocal,
			TimeoutSeconds: int(reconcile.DefaultCommandTimeout.Seconds()),
			MaxTypeLength:  reconcile.DefaultMaxTypeLength,
			CacheSize:      reconcile.DefaultCacheSize,
		},
		Format: FormatConfig{
			TimeoutSeconds: int(format.DefaultTimeout.Seconds()),
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    ".splitter/journal.db",
		},
		Discovery: DiscoveryConfig{
			Ignore: append([]string(nil), discovery.DefaultIgnore...),
		},
	}
}
