// Package course holds the fixed set of assignment modules and the
// per-module data that drives rubric selection and figure analysis.
package course

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownModule = errors.New("unknown module")

// Module is one assignment module. Section is the 1-based report section
// number the per-section rubric files are named with (rubric_<section>_<slug>.txt).
type Module struct {
	Number          int    `json:"number"`
	Section         int    `json:"section"`
	Label           string `json:"label"`
	Slug            string `json:"slug"`
	AnalyzesFigures bool   `json:"analyzes_figures"`
}

var modules = []Module{
	{Number: 2, Section: 1, Label: "2 - Research Questions", Slug: "intro"},
	{Number: 3, Section: 2, Label: "3 - Study Design", Slug: "design"},
	{Number: 4, Section: 3, Label: "4 - Human Research Ethics", Slug: "ethics"},
	{Number: 5, Section: 4, Label: "5 - Presenting Results", Slug: "results", AnalyzesFigures: true},
	{Number: 6, Section: 5, Label: "6 - Discussion Section", Slug: "discussion"},
}

// All returns a copy of the module table in display order.
func All() []Module {
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

func ByNumber(n int) (Module, error) {
	for _, m := range modules {
		if m.Number == n {
			return m, nil
		}
	}
	return Module{}, fmt.Errorf("%w: %d", ErrUnknownModule, n)
}

// Parse accepts the full label, the bare number or the slug.
func Parse(s string) (Module, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Module{}, fmt.Errorf("%w: empty", ErrUnknownModule)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return ByNumber(n)
	}
	for _, m := range modules {
		if m.Label == s || strings.EqualFold(m.Slug, s) {
			return m, nil
		}
	}
	return Module{}, fmt.Errorf("%w: %q", ErrUnknownModule, s)
}

// RubricKey is the token rubric files are named after (rubric_<key>.txt).
func (m Module) RubricKey() string {
	return strconv.Itoa(m.Number)
}

// SectionRubricName is the per-section rubric file name, e.g. rubric_4_results.txt.
func (m Module) SectionRubricName() string {
	return fmt.Sprintf("rubric_%d_%s.txt", m.Section, m.Slug)
}

func (m Module) String() string { return m.Label }
