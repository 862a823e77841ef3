package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Dir is the per-project directory holding config.yml and the journal.
const Dir = ".splitter"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{
		rootDir: rootDir,
	}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SPLITTER_*)
// 2. Config file (.splitter/config.yml or .splitter/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, Dir))

	// SPLITTER_EXTRACTION_MIN_FUNCTION_LINES and friends
	v.SetEnvPrefix("SPLITTER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// Extraction
	v.BindEnv("extraction.min_function_lines")
	v.BindEnv("extraction.min_variable_lines")
	v.BindEnv("extraction.name_pattern")
	v.BindEnv("extraction.types_path")
	v.BindEnv("extraction.utils_path")
	v.BindEnv("extraction.composite")
	v.BindEnv("extraction.first_binding")

	// Reconcile
	v.BindEnv("reconcile.checker")
	v.BindEnv("reconcile.timeout_seconds")
	v.BindEnv("reconcile.max_type_length")
	v.BindEnv("reconcile.cache_size")

	// Format
	v.BindEnv("format.timeout_seconds")

	// Journal
	v.BindEnv("journal.enabled")
	v.BindEnv("journal.path")
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("extraction.min_function_lines", defaults.Extraction.MinFunctionLines)
	v.SetDefault("extraction.min_variable_lines", defaults.Extraction.MinVariableLines)
	v.SetDefault("extraction.name_pattern", defaults.Extraction.NamePattern)
	v.SetDefault("extraction.types_path", defaults.Extraction.TypesPath)
	v.SetDefault("extraction.utils_path", defaults.Extraction.UtilsPath)
	v.SetDefault("extraction.composite", defaults.Extraction.Composite)
	v.SetDefault("extraction.first_binding", defaults.Extraction.FirstBinding)

	v.SetDefault("reconcile.checker", defaults.Reconcile.Checker)
	v.SetDefault("reconcile.command", defaults.Reconcile.Command)
	v.SetDefault("reconcile.timeout_seconds", defaults.Reconcile.TimeoutSeconds)
	v.SetDefault("reconcile.max_type_length", defaults.Reconcile.MaxTypeLength)
	v.SetDefault("reconcile.cache_size", defaults.Reconcile.CacheSize)

	v.SetDefault("format.command", defaults.Format.Command)
	v.SetDefault("format.timeout_seconds", defaults.Format.TimeoutSeconds)

	v.SetDefault("journal.enabled", defaults.Journal.Enabled)
	v.SetDefault("journal.path", defaults.Journal.Path)

	v.SetDefault("discovery.ignore", defaults.Discovery.Ignore)
}

// LoadConfig loads configuration rooted at the current working directory.
func LoadConfig() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd).Load()
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
