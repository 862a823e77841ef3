package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidThreshold indicates a negative line threshold
	ErrInvalidThreshold = errors.New("invalid line threshold")

	// ErrInvalidPattern indicates a name pattern that does not compile
	ErrInvalidPattern = errors.New("invalid name pattern")

	// ErrInvalidChecker indicates an unsupported checker backend
	ErrInvalidChecker = errors.New("invalid checker")

	// ErrEmptyCommand indicates the command checker has no argv
	ErrEmptyCommand = errors.New("empty checker command")

	// ErrInvalidTimeout indicates a non-positive timeout
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidTypeLength indicates a non-positive annotation length limit
	ErrInvalidTypeLength = errors.New("invalid max type length")

	// ErrInvalidCacheSize indicates a negative checker cache size
	ErrInvalidCacheSize = errors.New("invalid cache size")

	// ErrEmptyJournalPath indicates an enabled journal without a path
	ErrEmptyJournalPath = errors.New("empty journal path")

	// ErrInvalidIgnore indicates an ignore glob that does not compile
	ErrInvalidIgnore = errors.New("invalid ignore pattern")

	// ErrConflictingSelector indicates both a composite name and first_binding
	ErrConflictingSelector = errors.New("conflicting composite selectors")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateExtraction(&cfg.Extraction); err != nil {
		errs = append(errs, err)
	}

	if err := validateReconcile(&cfg.Reconcile); err != nil {
		errs = append(errs, err)
	}

	if cfg.Format.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: format.timeout_seconds must be positive, got %d", ErrInvalidTimeout, cfg.Format.TimeoutSeconds))
	}

	if cfg.Journal.Enabled && strings.TrimSpace(cfg.Journal.Path) == "" {
		errs = append(errs, fmt.Errorf("%w: journal.path is required when the journal is enabled", ErrEmptyJournalPath))
	}

	for _, p := range cfg.Discovery.Ignore {
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %q: %v", ErrInvalidIgnore, p, err))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateExtraction(cfg *ExtractionConfig) error {
	var errs []error

	if cfg.MinFunctionLines < 0 {
		errs = append(errs, fmt.Errorf("%w: min_function_lines cannot be negative, got %d", ErrInvalidThreshold, cfg.MinFunctionLines))
	}
	if cfg.MinVariableLines < 0 {
		errs = append(errs, fmt.Errorf("%w: min_variable_lines cannot be negative, got %d", ErrInvalidThreshold, cfg.MinVariableLines))
	}

	if strings.TrimSpace(cfg.NamePattern) == "" {
		errs = append(errs, fmt.Errorf("%w: name_pattern is required", ErrInvalidPattern))
	} else if _, err := regexp.Compile(cfg.NamePattern); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidPattern, err))
	}

	if cfg.Composite != "" && cfg.FirstBinding {
		errs = append(errs, fmt.Errorf("%w: set composite or first_binding, not both", ErrConflictingSelector))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateReconcile(cfg *ReconcileConfig) error {
	var errs []error

	switch strings.ToLower(cfg.Checker) {
	case CheckerLocal, CheckerNone:
	case CheckerCommand:
		if len(cfg.Command) == 0 {
			errs = append(errs, fmt.Errorf("%w: reconcile.command is required for the command checker", ErrEmptyCommand))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'local', 'command' or 'none', got '%s'", ErrInvalidChecker, cfg.Checker))
	}

	if cfg.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: reconcile.timeout_seconds must be positive, got %d", ErrInvalidTimeout, cfg.TimeoutSeconds))
	}

	if cfg.MaxTypeLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTypeLength, cfg.MaxTypeLength))
	}

	if cfg.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: cannot be negative, got %d", ErrInvalidCacheSize, cfg.CacheSize))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
// The sentinels stay reachable through errors.Is.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return &validationError{msg: "validation failed:\n  - " + strings.Join(msgs, "\n  - "), errs: errs}
}

type validationError struct {
	msg  string
	errs []error
}

func (e *validationError) Error() string   { return e.msg }
func (e *validationError) Unwrap() []error { return e.errs }
