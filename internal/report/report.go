// Package report collects the per-item outcomes of a run. Every candidate and
// annotation gap ends up here as either Applied or Skipped with a reason.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Status is the outcome of one item.
type Status string

const (
	Applied Status = "applied"
	Skipped Status = "skipped"
)

// Kind says what an item was.
type Kind string

const (
	KindType      Kind = "type"
	KindUtility   Kind = "utility"
	KindNested    Kind = "nested"
	KindOther     Kind = "other"
	KindReturn    Kind = "return"
	KindParameter Kind = "parameter"
	KindLiteral   Kind = "const-literal"
)

// IsExtraction reports whether items of this kind relocate declarations.
func (k Kind) IsExtraction() bool {
	switch k {
	case KindType, KindUtility, KindNested, KindOther:
		return true
	}
	return false
}

// IsAnnotation reports whether items of this kind write type annotations.
func (k Kind) IsAnnotation() bool {
	switch k {
	case KindReturn, KindParameter, KindLiteral:
		return true
	}
	return false
}

// Item is one reported outcome. Detail holds the written text for applied
// annotations, the destination for applied extractions, and the reason for
// skipped items.
type Item struct {
	Path   string
	Name   string
	Kind   Kind
	Status Status
	Detail string
}

// FileSummary counts outcomes for one file.
type FileSummary struct {
	Path        string
	Extracted   int
	Annotations int
	Skipped     int
}

// Report is the ordered record of a run.
type Report struct {
	RunID      string
	Origin     string
	StartedAt  time.Time
	FinishedAt time.Time
	States     []string
	Items      []Item
	Warnings   []string
}

// New creates an empty report for origin.
func New(runID, origin string) *Report {
	return &Report{RunID: runID, Origin: origin, StartedAt: time.Now()}
}

// Enter records that the run reached state.
func (r *Report) Enter(state string) {
	r.States = append(r.States, state)
}

// Apply records an applied item.
func (r *Report) Apply(path, name string, kind Kind, detail string) {
	r.Items = append(r.Items, Item{Path: path, Name: name, Kind: kind, Status: Applied, Detail: detail})
}

// Skip records a skipped item.
func (r *Report) Skip(path, name string, kind Kind, reason string) {
	r.Items = append(r.Items, Item{Path: path, Name: name, Kind: kind, Status: Skipped, Detail: reason})
}

// Add appends already built items.
func (r *Report) Add(items ...Item) {
	r.Items = append(r.Items, items...)
}

// Warn records a non-fatal problem.
func (r *Report) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Finish stamps the finish time.
func (r *Report) Finish() {
	r.FinishedAt = time.Now()
}

// Extracted counts applied extraction items.
func (r *Report) Extracted() int {
	return r.count(func(it Item) bool { return it.Status == Applied && it.Kind.IsExtraction() })
}

// Annotations counts applied annotation items.
func (r *Report) Annotations() int {
	return r.count(func(it Item) bool { return it.Status == Applied && it.Kind.IsAnnotation() })
}

// SkippedCount counts skipped items of any kind.
func (r *Report) SkippedCount() int {
	return r.count(func(it Item) bool { return it.Status == Skipped })
}

func (r *Report) count(match func(Item) bool) int {
	n := 0
	for _, it := range r.Items {
		if match(it) {
			n++
		}
	}
	return n
}

// Files returns per-file counts sorted by path.
func (r *Report) Files() []FileSummary {
	byPath := make(map[string]*FileSummary)
	for _, it := range r.Items {
		fs, ok := byPath[it.Path]
		if !ok {
			fs = &FileSummary{Path: it.Path}
			byPath[it.Path] = fs
		}
		switch {
		case it.Status == Skipped:
			fs.Skipped++
		case it.Kind.IsExtraction():
			fs.Extracted++
		case it.Kind.IsAnnotation():
			fs.Annotations++
		}
	}

	out := make([]FileSummary, 0, len(byPath))
	for _, fs := range byPath {
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Reached reports whether the run visited state.
func (r *Report) Reached(state string) bool {
	for _, s := range r.States {
		if s == state {
			return true
		}
	}
	return false
}

// Write prints every item, every warning and the per-file summary.
func (r *Report) Write(w io.Writer) {
	for _, it := range r.Items {
		switch it.Status {
		case Applied:
			fmt.Fprintf(w, "  ✓ %-13s %s (%s)", it.Kind, it.Name, it.Path)
			if it.Detail != "" {
				fmt.Fprintf(w, ": %s", it.Detail)
			}
			fmt.Fprintln(w)
		case Skipped:
			fmt.Fprintf(w, "  - %-13s %s (%s) skipped: %s\n", it.Kind, it.Name, it.Path, it.Detail)
		}
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
	fmt.Fprintln(w, r.Summary())
}

// Summary returns the per-file counts as text.
func (r *Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d extracted, %d annotations written, %d skipped",
		r.Extracted(), r.Annotations(), r.SkippedCount())
	for _, fs := range r.Files() {
		fmt.Fprintf(&sb, "\n  %s: %d extracted, %d annotations, %d skipped",
			fs.Path, fs.Extracted, fs.Annotations, fs.Skipped)
	}
	return sb.String()
}
