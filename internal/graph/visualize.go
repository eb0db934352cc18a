package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/verdantlab/greenhouse/internal/document"
)

// Visualize renders the plan as indented text in execution order: each step
// with its primitive, direct dependencies, inputs, and outputs. Meant for
// -visualize output and debugging, not for machines.
func (p *Plan) Visualize(exp *document.Experiment) string {
	var b strings.Builder
	b.WriteString("execution plan:\n")
	for i, id := range p.StepsInOrder {
		step := exp.Step(id)
		if step == nil {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, id)
			continue
		}

		fmt.Fprintf(&b, "  %d. %s  [%s]\n", i+1, id, step.Primitive)
		if deps := p.Dependencies[id]; len(deps) > 0 {
			fmt.Fprintf(&b, "     after: %s\n", strings.Join(deps, ", "))
		}
		for _, name := range sortedNames(step.Inputs) {
			fmt.Fprintf(&b, "     in:  %s <- %s\n", name, step.Inputs[name])
		}
		for _, name := range sortedNames(step.Outputs) {
			fmt.Fprintf(&b, "     out: %s (%s)\n", name, step.Outputs[name])
		}
	}
	return b.String()
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
