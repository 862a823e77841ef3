// Package pipeline runs the split of one origin module: top-level
// extraction, nested extraction, type reconciliation and external
// formatting, in that order, recording every outcome in a report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/mvp-joe/splitter/internal/extract"
	"github.com/mvp-joe/splitter/internal/format"
	"github.com/mvp-joe/splitter/internal/reconcile"
	"github.com/mvp-joe/splitter/internal/report"
	"github.com/mvp-joe/splitter/internal/source"
	"github.com/mvp-joe/splitter/internal/storage"
)

// Options control one run.
type Options struct {
	// TypesPath and UtilsPath override the target paths. Empty means
	// <base>.types.ts and <base>.utils<ext> next to the origin.
	TypesPath string
	UtilsPath string

	Thresholds  extract.Thresholds
	NamePattern *regexp.Regexp

	// Selector picks the composite for nested extraction. Nil skips the
	// nested pass with a warning.
	Selector Selector
}

// DefaultOptions returns options with the stock thresholds and name pattern.
func DefaultOptions() Options {
	return Options{
		Thresholds:  extract.DefaultThresholds(),
		NamePattern: regexp.MustCompile(extract.DefaultNamePattern),
	}
}

// TargetPaths returns the types and utilities paths for origin.
func (o Options) TargetPaths(origin string) (types, utils string) {
	ext := filepath.Ext(origin)
	base := source.StripSourceExt(origin)
	types, utils = o.TypesPath, o.UtilsPath
	if types == "" {
		types = base + ".types.ts"
	}
	if utils == "" {
		utils = base + ".utils" + ext
	}
	return types, utils
}

// Config wires the collaborators of a Pipeline.
type Config struct {
	// Checker answers type queries. Nil disables type reconciliation.
	Checker reconcile.Checker

	// MaxTypeLength bounds written annotations; zero uses the default.
	MaxTypeLength int

	// Formatter formats touched files. Nil means no formatting.
	Formatter format.Formatter

	// Journal records finished runs when set.
	Journal *storage.Journal

	Logger *slog.Logger
}

// Pipeline splits origin modules.
type Pipeline struct {
	store      *storage.Store
	writer     *extract.Writer
	rewriter   *extract.Rewriter
	reconciler *reconcile.Reconciler
	formatter  format.Formatter
	journal    *storage.Journal
	logger     *slog.Logger
}

// New creates a Pipeline persisting through store.
func New(store *storage.Store, cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	formatter := cfg.Formatter
	if formatter == nil {
		formatter = format.Nop{}
	}

	p := &Pipeline{
		store:     store,
		writer:    extract.NewWriter(store, logger),
		rewriter:  extract.NewRewriter(store.Parser()),
		formatter: formatter,
		journal:   cfg.Journal,
		logger:    logger,
	}
	if cfg.Checker != nil {
		p.reconciler = reconcile.New(store, cfg.Checker, cfg.MaxTypeLength, logger)
	}
	return p
}

// run is the mutable state of one Run.
type run struct {
	*Pipeline
	rep     *report.Report
	opts    Options
	types   string
	utils   string
	touched []string
}

func (r *run) touch(path string) {
	for _, p := range r.touched {
		if p == path {
			return
		}
	}
	r.touched = append(r.touched, path)
}

func (r *run) enter(s State) {
	r.rep.Enter(string(s))
	r.logger.Debug("pipeline.state", slog.String("origin", r.rep.Origin), slog.String("state", string(s)))
}

func (r *run) warn(err error) {
	r.rep.Warn("%v", err)
	r.logger.Warn("pipeline.warning", slog.String("origin", r.rep.Origin), slog.String("error", err.Error()))
}

// Run splits the module at originPath. Structural problems (missing origin,
// syntax errors, no composite) become warnings and the run still reaches
// Done. A persistence failure stops the run and is returned wrapped in
// ErrPersist together with the partial report.
func (p *Pipeline) Run(ctx context.Context, originPath string, opts Options) (*report.Report, error) {
	if opts.NamePattern == nil {
		opts.NamePattern = regexp.MustCompile(extract.DefaultNamePattern)
	}
	if opts.Thresholds == (extract.Thresholds{}) {
		opts.Thresholds = extract.DefaultThresholds()
	}

	r := &run{Pipeline: p, rep: report.New(uuid.NewString(), originPath), opts: opts}
	r.types, r.utils = opts.TargetPaths(originPath)

	err := r.execute(ctx, originPath)
	r.rep.Finish()
	p.record(r.rep)

	if err != nil {
		return r.rep, err
	}
	p.logger.Info("pipeline.done",
		slog.String("origin", originPath),
		slog.Int("extracted", r.rep.Extracted()),
		slog.Int("annotations", r.rep.Annotations()),
		slog.Int("skipped", r.rep.SkippedCount()))
	return r.rep, nil
}

// Reconcile annotates and formats paths without extracting anything. The
// report enters only the last three states. Missing or unparsable paths are
// warnings.
func (p *Pipeline) Reconcile(ctx context.Context, paths []string) (*report.Report, error) {
	r := &run{Pipeline: p, rep: report.New(uuid.NewString(), strings.Join(paths, ", ")), opts: DefaultOptions()}
	if p.reconciler == nil {
		r.warn(errors.New("type reconciliation disabled: no checker configured"))
	}
	for _, path := range paths {
		r.touch(path)
	}

	err := r.finish(ctx)
	r.rep.Finish()
	p.record(r.rep)
	if err != nil {
		return r.rep, err
	}
	p.logger.Info("pipeline.reconciled",
		slog.Int("paths", len(paths)),
		slog.Int("annotations", r.rep.Annotations()),
		slog.Int("skipped", r.rep.SkippedCount()))
	return r.rep, nil
}

func (r *run) execute(ctx context.Context, originPath string) error {
	r.enter(StateIdle)

	origin, err := r.loadOrigin(originPath)
	switch {
	case errors.Is(err, ErrOriginMissing), errors.Is(err, ErrSyntax):
		r.warn(fmt.Errorf("extraction skipped: %w", err))
	case err != nil:
		return err
	default:
		r.touch(origin.Path)

		r.enter(StateTopLevelExtraction)
		origin, err = r.topLevel(origin)
		if err != nil {
			return err
		}

		r.enter(StateNestedExtraction)
		if err := r.nested(origin); err != nil {
			return err
		}
	}

	return r.finish(ctx)
}

// finish reconciles and formats the touched modules.
func (r *run) finish(ctx context.Context) error {
	r.enter(StateTypeReconciliation)
	if err := r.reconcileTouched(ctx); err != nil {
		return err
	}

	r.enter(StateExternalFormatting)
	for _, path := range r.touched {
		if err := r.formatter.Format(ctx, path); err != nil {
			r.warn(fmt.Errorf("format %s: %w", path, err))
		}
	}

	r.enter(StateDone)
	return nil
}

func (r *run) loadOrigin(path string) (*source.Module, error) {
	m, err := r.store.Load(path)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOriginMissing, path)
	}
	if err != nil {
		return nil, err
	}
	if m.HasErrors {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, path)
	}
	return m, nil
}

// topLevel moves types and utilities out of origin and returns the saved,
// pruned origin.
func (r *run) topLevel(origin *source.Module) (*source.Module, error) {
	cands := extract.Classify(origin, r.opts.Thresholds)
	r.reportOthers(origin.Path, cands)

	types := extract.Filter(cands, extract.CategoryType)
	utils := extract.Filter(cands, extract.CategoryUtility)
	if len(types) == 0 && len(utils) == 0 {
		return origin, nil
	}

	used := origin.UsedOutside(stmtSpans(origin, append(append([]extract.Candidate(nil), types...), utils...)))
	pristine := origin

	var moved []extract.Candidate
	if len(types) > 0 {
		written, err := r.write(extract.WriteRequest{Origin: origin, TargetPath: r.types, Candidates: types})
		if err != nil {
			return nil, err
		}
		keepRefsOfStaying(used, types, written)
		origin, err = r.rewriter.Rewrite(origin, r.types, usedNames(written, used), true)
		if err != nil {
			return nil, err
		}
		origin, err = r.rewriter.ReExport(origin, r.types, exportedNames(written), true)
		if err != nil {
			return nil, err
		}
		moved = append(moved, written...)
	}

	if len(utils) > 0 {
		written, err := r.write(extract.WriteRequest{Origin: origin, TargetPath: r.utils, Candidates: utils, TypesPath: r.types})
		if err != nil {
			return nil, err
		}
		keepRefsOfStaying(used, utils, written)
		origin, err = r.rewriter.Rewrite(origin, r.utils, usedNames(written, used), false)
		if err != nil {
			return nil, err
		}
		origin, err = r.rewriter.ReExport(origin, r.utils, exportedNames(written), false)
		if err != nil {
			return nil, err
		}
		moved = append(moved, written...)
	}

	return r.pruneAndSave(pristine, origin, moved)
}

// nested moves the matching helpers of the selected composite into the
// utilities module.
func (r *run) nested(origin *source.Module) error {
	if r.opts.Selector == nil {
		r.warn(errors.New("nested extraction skipped: no composite selector"))
		return nil
	}

	composite, err := r.opts.Selector.Select(origin)
	if err != nil {
		r.warn(fmt.Errorf("nested extraction skipped: %w", err))
		return nil
	}
	if _, ok := source.BodyOf(composite); !ok {
		r.warn(fmt.Errorf("nested extraction skipped: %w: %s", ErrNotBlockBody, composite.Info().Name))
		return nil
	}

	cands := extract.ClassifyNested(origin, composite, r.opts.NamePattern, nil)
	r.reportOthers(origin.Path, cands)
	r.logger.Debug("pipeline.nested",
		slog.String("selector", describe(r.opts.Selector)),
		slog.String("composite", composite.Info().Name),
		slog.Int("candidates", len(cands)))

	utils := extract.Filter(cands, extract.CategoryUtility)
	if len(utils) == 0 {
		return nil
	}

	used := origin.UsedOutside(stmtSpans(origin, utils))
	written, err := r.write(extract.WriteRequest{Origin: origin, TargetPath: r.utils, Candidates: utils, TypesPath: r.types})
	if err != nil {
		return err
	}
	keepRefsOfStaying(used, utils, written)
	rewritten, err := r.rewriter.Rewrite(origin, r.utils, usedNames(written, used), false)
	if err != nil {
		return err
	}
	_, err = r.pruneAndSave(origin, rewritten, written)
	return err
}

// write runs the writer and reports its items. Skipped candidates stay in
// the origin, so the caller must not prune them.
func (r *run) write(req extract.WriteRequest) ([]extract.Candidate, error) {
	res, err := r.writer.Write(req)
	if err != nil {
		return nil, err
	}
	r.rep.Add(res.Items...)
	if len(res.Written) > 0 {
		r.touch(req.TargetPath)
	}
	return res.Written, nil
}

// pruneAndSave removes moved from origin and saves it. Spans are resolved in
// pristine, which has the same declarations as origin.
func (r *run) pruneAndSave(pristine, origin *source.Module, moved []extract.Candidate) (*source.Module, error) {
	if len(moved) == 0 {
		return origin, nil
	}
	pruned, items, err := extract.Prune(r.store.Parser(), origin, moved)
	r.rep.Add(items...)
	if err != nil {
		return nil, err
	}
	if pruned.HasErrors && !pristine.HasErrors {
		r.warn(fmt.Errorf("%s has syntax errors after extraction", origin.Path))
	}
	if err := r.store.Save(pruned); err != nil {
		return nil, fmt.Errorf("failed to save origin %s: %w", origin.Path, err)
	}
	return pruned, nil
}

func (r *run) reportOthers(path string, cands []extract.Candidate) {
	for _, c := range cands {
		if c.Category != extract.CategoryOther {
			continue
		}
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("<unnamed>@%d", c.Decl.Info().StartLine)
		}
		r.rep.Skip(path, name, report.KindOther, c.Reason)
	}
}

// reconcileTouched annotates every touched module, imported modules first.
func (r *run) reconcileTouched(ctx context.Context) error {
	if r.reconciler == nil || len(r.touched) == 0 {
		return nil
	}

	order, err := r.reconcileOrder()
	if err != nil {
		r.warn(err)
		order = r.touched
	}

	for _, path := range order {
		res, err := r.reconciler.Reconcile(ctx, path)
		switch {
		case errors.Is(err, ErrPersist):
			return err
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.warn(fmt.Errorf("reconcile %s: %w", path, err))
			continue
		}
		r.rep.Add(res.Items...)
	}
	return nil
}

func (r *run) reconcileOrder() ([]string, error) {
	var modules []*source.Module
	for _, path := range r.touched {
		m, err := r.store.Load(path)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	ig, err := BuildImportGraph(modules)
	if err != nil {
		return nil, err
	}
	return ig.Order()
}

func (p *Pipeline) record(rep *report.Report) {
	if p.journal == nil {
		return
	}
	run := &storage.RunRecord{
		ID:          rep.RunID,
		Origin:      rep.Origin,
		StartedAt:   rep.StartedAt,
		FinishedAt:  rep.FinishedAt,
		States:      rep.States,
		Warnings:    rep.Warnings,
		Extracted:   rep.Extracted(),
		Annotations: rep.Annotations(),
		Skipped:     rep.SkippedCount(),
	}
	for _, it := range rep.Items {
		run.Items = append(run.Items, storage.ItemRecord{
			Path:   it.Path,
			Name:   it.Name,
			Kind:   string(it.Kind),
			Status: string(it.Status),
			Detail: it.Detail,
		})
	}
	if err := p.journal.RecordRun(run); err != nil {
		p.logger.Warn("pipeline.journal", slog.String("run", rep.RunID), slog.String("error", err.Error()))
	}
}

func stmtSpans(m *source.Module, cands []extract.Candidate) []source.Span {
	var spans []source.Span
	for _, c := range cands {
		if d, ok := m.Lookup(c.Parent, c.Name); ok {
			spans = append(spans, d.Info().Stmt)
		}
	}
	return spans
}

// keepRefsOfStaying adds to used the refs of candidates the writer skipped,
// since they stay in the origin after all.
func keepRefsOfStaying(used map[string]bool, intended, written []extract.Candidate) {
	moved := make(map[string]bool, len(written))
	for _, c := range written {
		moved[c.Name] = true
	}
	for _, c := range intended {
		if moved[c.Name] {
			continue
		}
		for _, ref := range c.Decl.Info().Refs {
			used[ref] = true
		}
	}
}

// usedNames keeps the written names the staying code still uses.
func usedNames(written []extract.Candidate, used map[string]bool) []string {
	var names []string
	for _, c := range written {
		if used[c.Name] {
			names = append(names, c.Name)
		}
	}
	return names
}

// exportedNames lists the written names that origin exported, so importers
// of origin keep finding them there.
func exportedNames(written []extract.Candidate) []string {
	var names []string
	for _, c := range written {
		if c.Decl.Info().Exported {
			names = append(names, c.Name)
		}
	}
	return names
}

// describe names the selector for logs.
func describe(s Selector) string {
	if s == nil {
		return "none"
	}
	return strings.TrimSpace(s.String())
}
