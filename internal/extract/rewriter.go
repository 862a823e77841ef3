package extract

import (
	"fmt"

	"github.com/mvp-joe/splitter/internal/source"
)

// Rewriter keeps the origin's imports pointing at moved declarations.
type Rewriter struct {
	parser *source.Parser
}

// NewRewriter creates a Rewriter.
func NewRewriter(parser *source.Parser) *Rewriter {
	return &Rewriter{parser: parser}
}

// Rewrite imports names from targetPath into origin, merging with an existing
// binding for the same specifier. The result is not saved; the caller saves
// the origin together with the pruning that follows. It does not check that
// the target exports names.
func (r *Rewriter) Rewrite(origin *source.Module, targetPath string, names []string, typeOnly bool) (*source.Module, error) {
	if len(names) == 0 {
		return origin, nil
	}

	spec, err := source.RelativeSpecifier(origin.Path, targetPath)
	if err != nil {
		return nil, err
	}

	out, err := MergeImport(r.parser, origin, &source.ImportBinding{
		Specifier: spec,
		Names:     dedupe(names),
		TypeOnly:  typeOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rewrite imports of %s: %w", origin.Path, err)
	}
	return out, nil
}

// ReExport re-exports names from targetPath in origin, so modules that
// imported them from origin keep resolving. It merges with an existing
// re-export of the same specifier and kind. The result is not saved.
func (r *Rewriter) ReExport(origin *source.Module, targetPath string, names []string, typeOnly bool) (*source.Module, error) {
	if len(names) == 0 {
		return origin, nil
	}

	spec, err := source.RelativeSpecifier(origin.Path, targetPath)
	if err != nil {
		return nil, err
	}

	out, err := MergeImport(r.parser, origin, &source.ImportBinding{
		Specifier: spec,
		Names:     dedupe(names),
		TypeOnly:  typeOnly,
		ReExport:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to re-export from %s: %w", origin.Path, err)
	}
	return out, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
