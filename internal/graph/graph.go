// Package graph builds the step dependency graph of an experiment and
// derives a deterministic execution order from it. Dependencies come from
// $steps references in step inputs and params; cycles and references to
// undeclared steps are structural errors caught before anything runs.
package graph

import (
	"fmt"
	"sort"

	"github.com/verdantlab/greenhouse/internal/document"
	"github.com/verdantlab/greenhouse/internal/refs"
	"github.com/verdantlab/greenhouse/internal/value"
)

// Plan is a validated, ordered execution plan. StepsInOrder is a topological
// order; Dependencies maps each step to its sorted direct dependencies.
type Plan struct {
	StepsInOrder []string
	Dependencies map[string][]string
}

// UnknownStepError reports a $steps reference to a step the experiment never
// declares.
type UnknownStepError struct {
	From string
	To   string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("step %q depends on undeclared step %q", e.From, e.To)
}

// CycleError reports a dependency cycle. Cycle lists the step ids along the
// cycle, first step repeated at the end.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	out := ""
	for i, id := range e.Cycle {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return "dependency cycle: " + out
}

// ExtractStepRefs returns the step ids a single step depends on, sorted and
// de-duplicated. Inputs are scanned directly; params are walked recursively
// so references nested in lists and maps are found too. Extraction is
// deliberately prefix-based: a malformed trailing segment still yields the
// dependency, and the resolver rejects the full reference later.
func ExtractStepRefs(step *document.StepDefinition) []string {
	seen := make(map[string]bool)

	for _, raw := range step.Inputs {
		if dep, _, ok := refs.StepRefPrefix(raw); ok {
			seen[dep] = true
		}
	}
	for _, v := range step.Params {
		collectStepRefs(v, seen)
	}

	deps := make([]string, 0, len(seen))
	for dep := range seen {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

func collectStepRefs(v value.Dynamic, seen map[string]bool) {
	switch v.Kind() {
	case value.KindString:
		if dep, _, ok := refs.StepRefPrefix(v.AsString()); ok {
			seen[dep] = true
		}
	case value.KindList:
		for _, e := range v.Elements() {
			collectStepRefs(e, seen)
		}
	case value.KindMap:
		for _, k := range v.Keys() {
			collectStepRefs(v.Index(k), seen)
		}
	}
}

// Build constructs the execution plan for an experiment: extract
// dependencies, reject unknown steps and cycles, then order the steps.
func Build(exp *document.Experiment) (*Plan, error) {
	deps := make(map[string][]string, len(exp.Steps))
	for i := range exp.Steps {
		step := &exp.Steps[i]
		deps[step.ID] = ExtractStepRefs(step)
	}

	for _, step := range exp.StepIDs() {
		for _, dep := range deps[step] {
			if _, ok := deps[dep]; !ok {
				return nil, &UnknownStepError{From: step, To: dep}
			}
		}
	}

	if cycle := findCycle(deps); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	return &Plan{
		StepsInOrder: topoOrder(deps),
		Dependencies: deps,
	}, nil
}

// Sinks returns the steps nothing else depends on, sorted. These are the
// experiment's terminal outputs.
func (p *Plan) Sinks() []string {
	dependedOn := make(map[string]bool)
	for _, deps := range p.Dependencies {
		for _, dep := range deps {
			dependedOn[dep] = true
		}
	}

	var sinks []string
	for _, step := range p.StepsInOrder {
		if !dependedOn[step] {
			sinks = append(sinks, step)
		}
	}
	sort.Strings(sinks)
	return sinks
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // fully explored
)

// findCycle runs a three-color DFS over the dependency map and reconstructs
// the first cycle it finds via parent pointers. Roots are visited in sorted
// order so the reported cycle is deterministic.
func findCycle(deps map[string][]string) []string {
	color := make(map[string]int, len(deps))
	parent := make(map[string]string, len(deps))

	roots := make([]string, 0, len(deps))
	for step := range deps {
		roots = append(roots, step)
	}
	sort.Strings(roots)

	var dfs func(step string) []string
	dfs = func(step string) []string {
		color[step] = colorGray
		for _, dep := range deps[step] {
			switch color[dep] {
			case colorGray:
				return reconstructCycle(parent, step, dep)
			case colorWhite:
				parent[dep] = step
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}
		color[step] = colorBlack
		return nil
	}

	for _, root := range roots {
		if color[root] == colorWhite {
			if cycle := dfs(root); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// reconstructCycle walks parent pointers from the step that closed the cycle
// back to the step it closed onto, then reverses into forward order.
func reconstructCycle(parent map[string]string, from, to string) []string {
	path := []string{from}
	for cur := from; cur != to; {
		cur = parent[cur]
		path = append(path, cur)
	}

	cycle := make([]string, 0, len(path)+1)
	for i := len(path) - 1; i >= 0; i-- {
		cycle = append(cycle, path[i])
	}
	return append(cycle, to)
}

// topoOrder is Kahn's algorithm with a sorted ready queue: among steps whose
// dependencies are all satisfied, the lexicographically smallest id runs
// first. Same experiment, same order, every time.
func topoOrder(deps map[string][]string) []string {
	remaining := make(map[string]int, len(deps))
	dependents := make(map[string][]string, len(deps))
	for step, stepDeps := range deps {
		remaining[step] = len(stepDeps)
		for _, dep := range stepDeps {
			dependents[dep] = append(dependents[dep], step)
		}
	}

	var ready []string
	for step, n := range remaining {
		if n == 0 {
			ready = append(ready, step)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(deps))
	for len(ready) > 0 {
		step := ready[0]
		ready = ready[1:]
		order = append(order, step)

		released := false
		for _, dependent := range dependents[step] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}
	return order
}
