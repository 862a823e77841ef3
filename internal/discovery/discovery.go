// Package discovery resolves file arguments and glob patterns into the list of
// modules a batch run should split.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/mvp-joe/splitter/internal/source"
	"github.com/spf13/afero"
)

// DefaultIgnore skips dependencies, build output and files the splitter itself
// generates.
var DefaultIgnore = []string{
	"node_modules/**",
	"dist/**",
	"build/**",
	"**/*.d.ts",
	"**/*.types.ts",
	"**/*.utils.*",
}

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Discovery finds source modules under a root directory.
type Discovery struct {
	fs             afero.Fs
	rootDir        string
	ignorePatterns []compiledPattern
}

// New creates a Discovery rooted at rootDir.
func New(fs afero.Fs, rootDir string, ignorePatterns []string) (*Discovery, error) {
	ignore, err := compile(ignorePatterns)
	if err != nil {
		return nil, err
	}
	return &Discovery{fs: fs, rootDir: rootDir, ignorePatterns: ignore}, nil
}

func compile(patterns []string) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// Resolve expands args into module paths. An argument naming an existing file
// is taken as is, even when ignore rules would skip it; anything else is a glob
// pattern matched against paths relative to the root. The result is sorted and
// free of duplicates.
func (d *Discovery) Resolve(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	var patterns []string
	for _, arg := range args {
		info, err := d.fs.Stat(arg)
		if err == nil && !info.IsDir() {
			add(arg)
			continue
		}
		patterns = append(patterns, filepath.ToSlash(arg))
	}

	if len(patterns) > 0 {
		matched, err := d.Walk(patterns)
		if err != nil {
			return nil, err
		}
		for _, p := range matched {
			add(p)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Walk returns the source modules under the root matching any pattern.
func (d *Discovery) Walk(patterns []string) ([]string, error) {
	include, err := compile(patterns)
	if err != nil {
		return nil, err
	}

	var files []string
	err = afero.Walk(d.fs, d.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(d.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && d.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !source.IsSourceFile(path) || d.shouldIgnore(relPath) {
			return nil
		}
		if matchesAnyPattern(relPath, include) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// shouldIgnore checks if a path matches any ignore pattern.
func (d *Discovery) shouldIgnore(relPath string) bool {
	if strings.HasPrefix(relPath, ".splitter/") || relPath == ".splitter" {
		return true
	}
	if matchesAnyPattern(relPath, d.ignorePatterns) {
		return true
	}

	// "node_modules" should match pattern "node_modules/**"
	return matchesAnyPattern(relPath+"/**", d.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns. Root
// files also match "**/" patterns with the prefix removed.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if !strings.HasPrefix(cp.pattern, "**/") {
				continue
			}
			simplified, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/')
			if err == nil && simplified.Match(path) {
				return true
			}
		}
	}
	return false
}
