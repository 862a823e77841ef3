package pipeline

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mvp-joe/splitter/internal/extract"
)

// PlanItem is one classified declaration of a dry run.
type PlanItem struct {
	Name     string `json:"name"`
	Parent   string `json:"parent,omitempty"`
	Category string `json:"category"`
	Lines    int    `json:"lines"`
	Target   string `json:"target,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Plan previews what Run would move, without touching any file.
type Plan struct {
	Origin    string     `json:"origin"`
	TypesPath string     `json:"types_path"`
	UtilsPath string     `json:"utils_path"`
	Composite string     `json:"composite,omitempty"`
	Items     []PlanItem `json:"items"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// Plan classifies the origin at top level and, when a selector is given, the
// composite's helpers. Helpers are classified against the origin as it is now,
// before any top-level move. Structural problems become warnings, like in
// Run; only load failures are returned.
func (p *Pipeline) Plan(originPath string, opts Options) (*Plan, error) {
	if opts.NamePattern == nil {
		opts.NamePattern = regexp.MustCompile(extract.DefaultNamePattern)
	}
	if opts.Thresholds == (extract.Thresholds{}) {
		opts.Thresholds = extract.DefaultThresholds()
	}

	plan := &Plan{Origin: originPath}
	plan.TypesPath, plan.UtilsPath = opts.TargetPaths(originPath)

	r := &run{Pipeline: p, opts: opts}
	origin, err := r.loadOrigin(originPath)
	if errors.Is(err, ErrOriginMissing) || errors.Is(err, ErrSyntax) {
		plan.Warnings = append(plan.Warnings, err.Error())
		return plan, nil
	}
	if err != nil {
		return nil, err
	}

	top := extract.Classify(origin, opts.Thresholds)
	for _, c := range top {
		plan.Items = append(plan.Items, planItem(c, plan))
	}

	if opts.Selector == nil {
		return plan, nil
	}
	composite, err := opts.Selector.Select(origin)
	if err != nil {
		plan.Warnings = append(plan.Warnings, err.Error())
		return plan, nil
	}
	plan.Composite = composite.Info().Name
	for _, c := range extract.ClassifyNested(origin, composite, opts.NamePattern, extract.Leaving(top)) {
		plan.Items = append(plan.Items, planItem(c, plan))
	}
	return plan, nil
}

func planItem(c extract.Candidate, plan *Plan) PlanItem {
	it := PlanItem{
		Name:     c.Name,
		Parent:   c.Parent,
		Category: c.Category.String(),
		Lines:    c.Lines,
		Reason:   c.Reason,
	}
	switch c.Category {
	case extract.CategoryType:
		it.Target = plan.TypesPath
	case extract.CategoryUtility:
		it.Target = plan.UtilsPath
	}
	return it
}

// Moving counts the items with a target.
func (p *Plan) Moving() int {
	n := 0
	for _, it := range p.Items {
		if it.Target != "" {
			n++
		}
	}
	return n
}

// String renders the plan for terminals.
func (p *Plan) String() string {
	s := fmt.Sprintf("%s: %d of %d declarations would move", p.Origin, p.Moving(), len(p.Items))
	for _, it := range p.Items {
		name := it.Name
		if it.Parent != "" {
			name = it.Parent + "." + it.Name
		}
		switch {
		case it.Target != "":
			s += fmt.Sprintf("\n  → %-9s %s (%d lines) to %s", it.Category, name, it.Lines, it.Target)
		case it.Reason != "":
			s += fmt.Sprintf("\n  · %-9s %s stays: %s", it.Category, name, it.Reason)
		default:
			s += fmt.Sprintf("\n  · %-9s %s stays", it.Category, name)
		}
	}
	for _, w := range p.Warnings {
		s += "\n  ! " + w
	}
	return s
}
