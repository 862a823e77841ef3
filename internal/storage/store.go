package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mvp-joe/splitter/internal/source"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned by Load when the module does not exist.
	ErrNotFound = errors.New("module not found")

	// ErrPersist wraps every failure to save a module.
	ErrPersist = errors.New("failed to persist module")
)

// Store loads and persists source modules on an afero filesystem.
type Store struct {
	fs     afero.Fs
	parser *source.Parser
}

// NewStore creates a Store over fs.
func NewStore(fs afero.Fs, parser *source.Parser) *Store {
	return &Store{fs: fs, parser: parser}
}

// NewOsStore creates a Store over the real filesystem.
func NewOsStore(parser *source.Parser) *Store {
	return NewStore(afero.NewOsFs(), parser)
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Parser returns the parser used for loaded modules.
func (s *Store) Parser() *source.Parser {
	return s.parser
}

// Exists reports whether a module exists at path.
func (s *Store) Exists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return ok, nil
}

// Load reads and parses the module at path.
func (s *Store) Load(path string) (*source.Module, error) {
	src, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return s.parser.Parse(path, src)
}

// LoadOrNew loads the module at path, or parses header as a fresh module when
// the path does not exist yet. The second result reports whether the module
// already existed.
func (s *Store) LoadOrNew(path, header string) (*source.Module, bool, error) {
	m, err := s.Load(path)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	m, err = s.parser.Parse(path, []byte(header))
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

// Save writes the module atomically: the content goes to a temporary file in
// the same directory which is then renamed over the destination. Errors wrap
// ErrPersist.
func (s *Store) Save(m *source.Module) error {
	if err := s.save(m); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Store) save(m *source.Module) error {
	dir := filepath.Dir(m.Path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	mode := os.FileMode(0o644)
	if info, err := s.fs.Stat(m.Path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(m.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", m.Path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(m.Src); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", m.Path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", m.Path, err)
	}
	if err := s.fs.Chmod(tmpName, mode); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to set mode on %s: %w", m.Path, err)
	}
	if err := s.fs.Rename(tmpName, m.Path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file to %s: %w", m.Path, err)
	}
	return nil
}
