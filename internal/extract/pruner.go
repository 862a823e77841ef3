package extract

import (
	"fmt"

	"github.com/mvp-joe/splitter/internal/report"
	"github.com/mvp-joe/splitter/internal/source"
)

// Prune removes the candidates' statements from origin and returns the pruned
// module. The removal set is resolved in full before any byte is cut, and the
// result is built as a fresh source. Candidates that no longer resolve are
// reported as skipped. Only call this once the targets holding the candidates
// have been saved.
func Prune(p *source.Parser, origin *source.Module, cands []Candidate) (*source.Module, []report.Item, error) {
	var (
		spans []source.Span
		items []report.Item
	)
	for _, c := range cands {
		d, ok := origin.Lookup(c.Parent, c.Name)
		if !ok {
			items = append(items, skipItem(origin.Path, c, ErrStaleCandidate.Error()))
			continue
		}
		spans = append(spans, source.LineSpan(origin.Src, d.Info().Stmt))
	}
	if len(spans) == 0 {
		return origin, items, nil
	}

	src, err := source.RemoveSpans(origin.Src, spans)
	if err != nil {
		return nil, items, fmt.Errorf("failed to prune %s: %w", origin.Path, err)
	}
	pruned, err := p.Parse(origin.Path, src)
	if err != nil {
		return nil, items, err
	}
	return pruned, items, nil
}
