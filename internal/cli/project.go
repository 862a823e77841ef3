package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvp-joe/splitter/internal/config"
	"github.com/mvp-joe/splitter/internal/discovery"
	"github.com/mvp-joe/splitter/internal/format"
	"github.com/mvp-joe/splitter/internal/pipeline"
	"github.com/mvp-joe/splitter/internal/reconcile"
	"github.com/mvp-joe/splitter/internal/source"
	"github.com/mvp-joe/splitter/internal/storage"
	"github.com/spf13/afero"
)

// project is a loaded configuration with the collaborators built from it.
// Paths handed to the store are relative to root.
type project struct {
	root     string
	cfg      *config.Config
	fs       afero.Fs
	store    *storage.Store
	pipeline *pipeline.Pipeline
	journal  *storage.Journal
	closers  []func()
}

// openProject loads the configuration under dir (the working directory when
// empty) and wires the pipeline the way it asks for.
func openProject(dir string) (*project, error) {
	root, err := resolveRoot(dir)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return newProject(root, cfg, afero.NewBasePathFs(afero.NewOsFs(), root))
}

func resolveRoot(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}

func newProject(root string, cfg *config.Config, fs afero.Fs) (*project, error) {
	p := &project{root: root, cfg: cfg, fs: fs}
	parser := source.NewParser()
	p.store = storage.NewStore(fs, parser)

	checker, err := p.newChecker(parser)
	if err != nil {
		p.Close()
		return nil, err
	}

	if cfg.Journal.Enabled {
		path := cfg.Journal.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		journal, err := storage.OpenJournal(path)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		p.journal = journal
		p.closers = append(p.closers, func() { journal.Close() })
	}

	p.pipeline = pipeline.New(p.store, pipeline.Config{
		Checker:       checker,
		MaxTypeLength: cfg.Reconcile.MaxTypeLength,
		Formatter:     format.NewCommand(cfg.Format.Command, root, seconds(cfg.Format.TimeoutSeconds)),
		Journal:       p.journal,
		Logger:        slog.Default(),
	})
	return p, nil
}

// newChecker builds the configured checker, wrapped in a cache when one is
// configured. A nil checker disables type reconciliation.
func (p *project) newChecker(parser *source.Parser) (reconcile.Checker, error) {
	rc := p.cfg.Reconcile

	var checker reconcile.Checker
	switch strings.ToLower(rc.Checker) {
	case config.CheckerNone:
		return nil, nil
	case config.CheckerCommand:
		cc, err := reconcile.NewCommandChecker(rc.Command, p.root, seconds(rc.TimeoutSeconds))
		if err != nil {
			return nil, err
		}
		checker = cc
	default:
		checker = reconcile.NewLocalChecker(parser)
	}

	if rc.CacheSize == 0 {
		return checker, nil
	}
	cached, err := reconcile.NewCachedChecker(checker, rc.CacheSize)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, cached.Close)
	return cached, nil
}

// rel converts a command-line path to a path relative to the project root.
func (p *project) rel(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(p.root, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s is outside project root %s", path, p.root)
	}
	return rel, nil
}

// resolve expands file arguments and glob patterns into root-relative module
// paths, skipping the configured ignore patterns for globs.
func (p *project) resolve(args []string) ([]string, error) {
	d, err := discovery.New(p.fs, ".", p.cfg.Discovery.Ignore)
	if err != nil {
		return nil, err
	}

	var rels []string
	for _, arg := range args {
		if hasMeta(arg) {
			rels = append(rels, filepath.ToSlash(arg))
			continue
		}
		rel, err := p.rel(arg)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return d.Resolve(rels)
}

func (p *project) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
