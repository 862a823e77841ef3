package source

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOverlappingEdits is returned by Splice when two edits touch the same bytes.
var ErrOverlappingEdits = errors.New("overlapping edits")

// Edit replaces the bytes covered by Span with Text. An empty span inserts.
type Edit struct {
	Span Span
	Text string
}

// Splice applies edits to src and returns a new buffer. src is not modified.
func Splice(src []byte, edits []Edit) ([]byte, error) {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Span.Start < sorted[j].Span.Start
	})

	var buf bytes.Buffer
	buf.Grow(len(src))
	pos := 0
	for _, e := range sorted {
		if e.Span.Start < pos || e.Span.End < e.Span.Start || e.Span.End > len(src) {
			return nil, fmt.Errorf("%w: [%d,%d)", ErrOverlappingEdits, e.Span.Start, e.Span.End)
		}
		buf.Write(src[pos:e.Span.Start])
		buf.WriteString(e.Text)
		pos = e.Span.End
	}
	buf.Write(src[pos:])
	return buf.Bytes(), nil
}

// RemoveSpans deletes every span from src. Overlapping or touching spans are
// merged first.
func RemoveSpans(src []byte, spans []Span) ([]byte, error) {
	if len(spans) == 0 {
		return append([]byte(nil), src...), nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}

	edits := make([]Edit, len(merged))
	for i, s := range merged {
		edits[i] = Edit{Span: s}
	}
	return Splice(src, edits)
}

// LineSpan widens span to the whole lines it occupies when nothing else
// shares those lines. One blank line next to the removed block is included so
// removal does not leave a double gap.
func LineSpan(src []byte, span Span) Span {
	start := span.Start
	for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
		start--
	}
	if start > 0 && src[start-1] != '\n' {
		return span
	}

	end := span.End
	for end < len(src) && (src[end] == ' ' || src[end] == '\t' || src[end] == '\r') {
		end++
	}
	if end < len(src) && src[end] != '\n' {
		return span
	}
	if end < len(src) {
		end++
	}

	prevBlank := start == 0 || isBlankLineBefore(src, start) || opensBlockBefore(src, start)
	if nextEnd, ok := blankLineAt(src, end); ok && prevBlank {
		end = nextEnd
	} else if end == len(src) && start > 0 && isBlankLineBefore(src, start) {
		start = lineStart(src, start-1)
	}
	return Span{Start: start, End: end}
}

// blankLineAt reports whether the line starting at pos is blank and returns
// the offset just past it.
func blankLineAt(src []byte, pos int) (int, bool) {
	if pos >= len(src) {
		return pos, false
	}
	i := pos
	for i < len(src) && (src[i] == ' ' || src[i] == '\t' || src[i] == '\r') {
		i++
	}
	if i < len(src) && src[i] != '\n' {
		return pos, false
	}
	if i < len(src) {
		i++
	}
	return i, true
}

// isBlankLineBefore reports whether the line ending just before pos is blank.
// pos must be the start of a line.
func isBlankLineBefore(src []byte, pos int) bool {
	if pos == 0 {
		return false
	}
	ls := lineStart(src, pos-1)
	return len(bytes.TrimSpace(src[ls:pos])) == 0
}

// opensBlockBefore reports whether the line ending just before pos ends with
// an opening brace.
func opensBlockBefore(src []byte, pos int) bool {
	if pos == 0 {
		return false
	}
	prev := bytes.TrimSpace(src[lineStart(src, pos-1):pos])
	return len(prev) > 0 && prev[len(prev)-1] == '{'
}

// lineStart returns the offset of the first byte of the line containing pos.
func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

// Dedent removes up to indent columns of leading whitespace from every line
// after the first.
func Dedent(text string, indent int) string {
	if indent <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		n := 0
		for n < indent && n < len(line) && (line[n] == ' ' || line[n] == '\t') {
			n++
		}
		lines[i] = line[n:]
	}
	return strings.Join(lines, "\n")
}

var sourceExts = []string{".d.ts", ".tsx", ".ts", ".mts", ".cts", ".jsx", ".js", ".mjs", ".cjs"}

// StripSourceExt removes a TypeScript or JavaScript extension from p.
func StripSourceExt(p string) string {
	for _, ext := range sourceExts {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

// RelativeSpecifier returns the import specifier that resolves to toFile from
// a module at fromFile.
func RelativeSpecifier(fromFile, toFile string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(fromFile), toFile)
	if err != nil {
		return "", fmt.Errorf("failed to compute specifier from %s to %s: %w", fromFile, toFile, err)
	}
	return withRelativePrefix(StripSourceExt(filepath.ToSlash(rel))), nil
}

// RebaseSpecifier rewrites a relative specifier written in fromFile so that it
// resolves to the same module when written in toFile. Package specifiers are
// returned unchanged.
func RebaseSpecifier(spec, fromFile, toFile string) (string, error) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return spec, nil
	}
	abs := filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(spec))
	rel, err := filepath.Rel(filepath.Dir(toFile), abs)
	if err != nil {
		return "", fmt.Errorf("failed to rebase %s from %s to %s: %w", spec, fromFile, toFile, err)
	}
	return withRelativePrefix(filepath.ToSlash(rel)), nil
}

// ResolvesTo reports whether the relative specifier spec, written in fromFile,
// names file.
func ResolvesTo(spec, fromFile, file string) bool {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return false
	}
	resolved := filepath.Clean(filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(spec)))
	return resolved == filepath.Clean(StripSourceExt(file))
}

func withRelativePrefix(spec string) string {
	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		return spec
	}
	return "./" + spec
}

// Apply splices edits into m and parses the result into a new Module.
func (p *Parser) Apply(m *Module, edits []Edit) (*Module, error) {
	src, err := Splice(m.Src, edits)
	if err != nil {
		return nil, err
	}
	return p.Parse(m.Path, src)
}
