// Package extract moves declarations out of an origin module: it classifies
// candidates, writes them into target modules, rewrites the origin's imports
// and prunes the moved declarations.
package extract

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/mvp-joe/splitter/internal/report"
	"github.com/mvp-joe/splitter/internal/source"
)

// Category is the classifier's verdict for a declaration.
type Category int

const (
	CategoryType Category = iota
	CategoryUtility
	CategoryComposite
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryType:
		return "type"
	case CategoryUtility:
		return "utility"
	case CategoryComposite:
		return "composite"
	default:
		return "other"
	}
}

// Candidate is a declaration selected (or explicitly rejected) for relocation.
type Candidate struct {
	Name     string
	Parent   string // enclosing composite for nested candidates
	Decl     source.Decl
	Lines    int
	Category Category
	Reason   string // why an "other" candidate stays put
}

// ReportKind maps the candidate to its report kind.
func (c Candidate) ReportKind() report.Kind {
	switch {
	case c.Category == CategoryType:
		return report.KindType
	case c.Category == CategoryUtility && c.Parent != "":
		return report.KindNested
	case c.Category == CategoryUtility:
		return report.KindUtility
	default:
		return report.KindOther
	}
}

// Thresholds are the size rules for top-level utilities.
type Thresholds struct {
	MinFunctionLines int
	MinVariableLines int
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{MinFunctionLines: 20, MinVariableLines: 10}
}

// DefaultNamePattern selects nested helpers worth extracting.
const DefaultNamePattern = `^(validate|get|format|handle)`

// Classify labels the top-level declarations of m. Declarations below the
// size thresholds that are not types are not candidates and are omitted.
// Output follows declaration order.
func Classify(m *source.Module, th Thresholds) []Candidate {
	decls := m.Decls()

	counts := make(map[string]int)
	for _, d := range decls {
		counts[d.Info().Name]++
	}

	var cands []Candidate
	for _, d := range decls {
		info := d.Info()
		c := Candidate{Name: info.Name, Decl: d, Lines: info.LineCount()}

		switch v := d.(type) {
		case *source.TypeDecl, *source.AliasDecl:
			c.Category = CategoryType

		case *source.FunctionDecl:
			if c.Lines <= th.MinFunctionLines {
				continue
			}
			c.Category = CategoryUtility
			if hasNestedHelpers(v) {
				c.Category = CategoryComposite
			}

		case *source.BindingDecl:
			if c.Lines <= th.MinVariableLines {
				continue
			}
			c.Category = CategoryUtility
			switch {
			case v.FunctionValued && hasNestedHelpers(v):
				c.Category = CategoryComposite
			case info.Name == "":
				c.Category, c.Reason = CategoryOther, "destructured binding has no single name"
			case v.Declarators > 1:
				c.Category, c.Reason = CategoryOther, fmt.Sprintf("statement declares %d bindings", v.Declarators)
			case v.Kind != "const":
				c.Category, c.Reason = CategoryOther, v.Kind+" binding may be reassigned"
			}

		case *source.ClassDecl:
			if c.Lines <= th.MinFunctionLines {
				continue
			}
			c.Category, c.Reason = CategoryOther, v.Keyword+" declarations are not relocated"

		default:
			panic(fmt.Sprintf("extract: unhandled declaration %T", d))
		}

		if c.Category == CategoryOther || c.Category == CategoryComposite {
			cands = append(cands, c)
			continue
		}
		switch {
		case info.Name == "":
			c.Category, c.Reason = CategoryOther, "unnamed declaration"
		case info.Default:
			c.Category, c.Reason = CategoryOther, "default export"
		case counts[info.Name] > 1:
			c.Category, c.Reason = CategoryOther, "declared more than once (overloads or merging)"
		}
		cands = append(cands, c)
	}

	rejectStayingReferences(m, cands)
	return cands
}

// hasNestedHelpers reports whether d's body declares function-like helpers.
func hasNestedHelpers(d source.Decl) bool {
	for _, n := range source.NestedOf(d) {
		if source.IsFunctionLike(n) {
			return true
		}
	}
	return false
}

// rejectStayingReferences demotes candidates whose text references an
// origin-local declaration that is not moving with them. Types may only
// depend on other moving types; utilities on moving types and utilities.
// Demotions cascade, so this runs to a fixed point.
func rejectStayingReferences(m *source.Module, cands []Candidate) {
	declared := m.DeclaredNames()

	for changed := true; changed; {
		changed = false

		movingTypes := make(map[string]bool)
		movingUtils := make(map[string]bool)
		for _, c := range cands {
			switch c.Category {
			case CategoryType:
				movingTypes[c.Name] = true
			case CategoryUtility:
				movingUtils[c.Name] = true
			}
		}

		for i := range cands {
			c := &cands[i]
			if c.Category != CategoryType && c.Category != CategoryUtility {
				continue
			}
			for _, ref := range c.Decl.Info().Refs {
				if !declared[ref] || movingTypes[ref] {
					continue
				}
				if c.Category == CategoryUtility && movingUtils[ref] {
					continue
				}
				c.Category = CategoryOther
				c.Reason = fmt.Sprintf("references %s, which stays in %s", ref, m.Path)
				changed = true
				break
			}
		}
	}
}

// ClassifyNested selects the declarations directly inside composite whose
// names match pattern. The pattern alone decides; no size rule applies. A
// match that uses a parameter or local of the composite, or a top-level
// declaration of m, that is not moving with it is demoted to CategoryOther,
// to a fixed point. leaving names top-level declarations of m that move to
// another module in the same run; the target reaches them through imports.
func ClassifyNested(m *source.Module, composite source.Decl, pattern *regexp.Regexp, leaving []string) []Candidate {
	parent := composite.Info().Name
	var cands []Candidate
	for _, d := range source.NestedOf(composite) {
		info := d.Info()
		if info.Name == "" || !pattern.MatchString(info.Name) {
			continue
		}
		c := Candidate{
			Name:     info.Name,
			Parent:   parent,
			Decl:     d,
			Lines:    info.LineCount(),
			Category: CategoryUtility,
		}
		if b, ok := d.(*source.BindingDecl); ok && b.Declarators > 1 {
			c.Category, c.Reason = CategoryOther, fmt.Sprintf("statement declares %d bindings", b.Declarators)
		}
		cands = append(cands, c)
	}

	scope := map[string]bool{parent: true}
	for _, name := range source.ScopeOf(composite) {
		scope[name] = true
	}
	staying := m.DeclaredNames()
	for _, name := range leaving {
		delete(staying, name)
	}

	for changed := true; changed; {
		changed = false

		moving := make(map[string]bool)
		for _, c := range cands {
			if c.Category == CategoryUtility {
				moving[c.Name] = true
			}
		}

		for i := range cands {
			c := &cands[i]
			if c.Category != CategoryUtility {
				continue
			}
			for _, ref := range c.Decl.Info().Refs {
				if moving[ref] {
					continue
				}
				where := ""
				switch {
				case scope[ref]:
					where = parent
				case staying[ref]:
					where = m.Path
				default:
					continue
				}
				c.Category = CategoryOther
				c.Reason = fmt.Sprintf("references %s, which stays in %s", ref, where)
				changed = true
				break
			}
		}
	}
	return cands
}

// Leaving returns the names of the candidates that move out of the origin.
func Leaving(cands []Candidate) []string {
	var names []string
	for _, c := range cands {
		if c.Category == CategoryType || c.Category == CategoryUtility {
			names = append(names, c.Name)
		}
	}
	return names
}

// SortBySize orders candidates largest first, keeping declaration order for
// equal sizes. The input is not modified.
func SortBySize(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Lines > out[j].Lines })
	return out
}

// Filter returns the candidates of the given category.
func Filter(cands []Candidate, cat Category) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the candidate names in order.
func Names(cands []Candidate) []string {
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Name
	}
	return names
}
