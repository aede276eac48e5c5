package graph

import (
	"fmt"
	"sort"
)

// Report is the structural validation result for a whole graph. Unknown
// dependency references are errors; isolated nodes are warnings only,
// useful for surfacing forgotten nodes in a UI.
type Report struct {
	Valid    bool     `json:"valid"`
	HasCycle bool     `json:"has_cycle"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks the whole graph: the cached cycle flag, dependency ids
// that reference non-existent nodes, and nodes with no dependents and no
// dependencies.
func (g *Graph) Validate() *Report {
	report := &Report{
		HasCycle: g.cyclic,
		Errors:   []string{},
		Warnings: []string{},
	}

	if g.cyclic {
		report.Errors = append(report.Errors,
			(&CycleError{Path: g.cycleTrail}).Error())
	}

	unknown := make(map[string][]string)

	for _, id := range g.order {
		for dep := range g.forward[id] {
			if !g.Contains(dep) {
				unknown[dep] = append(unknown[dep], id)
			}
		}
	}

	missing := make([]string, 0, len(unknown))
	for dep := range unknown {
		missing = append(missing, dep)
	}

	sort.Strings(missing)

	for _, dep := range missing {
		referrers := unknown[dep]
		sort.Strings(referrers)

		report.Errors = append(report.Errors,
			fmt.Sprintf("dependency %q does not exist (referenced by %v)", dep, referrers))
	}

	for _, id := range g.order {
		if len(g.forward[id]) == 0 && len(g.reverse[id]) == 0 {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("node %q is isolated: no dependencies and no dependents", id))
		}
	}

	report.Valid = len(report.Errors) == 0

	return report
}
