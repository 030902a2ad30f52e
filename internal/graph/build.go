package graph

import (
	"sort"

	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

const (
	strengthExplicit    = 1.0
	strengthData        = 0.9
	strengthConditional = 0.85
	strengthImplicit    = 0.8
)

// Build derives the dependency graph of a template. On top of the explicit
// depends_on edges it infers:
//
//   - implicit dependencies, from bare `${steps.<id>}` prompt references on
//     undeclared steps (strength 0.8);
//   - data dependencies, from `${steps.<id>.<path>}` output references
//     (strength 0.9, carrying the referenced output paths);
//   - conditional dependencies, from step references inside a conditional
//     step's condition expression (strength 0.85).
//
// Construction fails closed: a dependency on an unknown step or a cycle over
// any edge class is a fatal configuration error.
func Build(tmpl *template.Template) (*Graph, error) {
	if tmpl == nil {
		return nil, pwerrors.NewValidationError("template", "template is nil", nil)
	}

	steps := make(map[template.StepID]template.StepTemplate, len(tmpl.Steps))
	for key, step := range tmpl.Steps {
		steps[template.StepID(key)] = step
	}

	edges := make(map[edgeKey]StepDependency)

	for key, step := range tmpl.Steps {
		id := template.StepID(key)
		for _, dep := range step.DependsOn {
			if _, ok := steps[dep]; !ok {
				return nil, pwerrors.NewInvalidDependencyError(key, string(dep))
			}
			addEdge(edges, StepDependency{From: dep, To: id, Kind: DependencyExplicit, Strength: strengthExplicit})
		}
	}

	for key, step := range tmpl.Steps {
		id := template.StepID(key)

		for _, ref := range tmpl.StepReferences(step.Prompt) {
			if ref.StepID == id {
				continue
			}
			if ref.Path != "" {
				addEdge(edges, StepDependency{
					From:            ref.StepID,
					To:              id,
					Kind:            DependencyData,
					RequiredOutputs: []string{ref.Path},
					Strength:        strengthData,
				})
				continue
			}
			if !step.HasDependency(ref.StepID) {
				addEdge(edges, StepDependency{From: ref.StepID, To: id, Kind: DependencyImplicit, Strength: strengthImplicit})
			}
		}

		if step.Type == template.StepTypeConditional {
			if condition, ok := step.Config["condition"].(string); ok {
				for _, ref := range tmpl.StepReferences(condition) {
					if ref.StepID == id {
						continue
					}
					edge := StepDependency{From: ref.StepID, To: id, Kind: DependencyConditional, Strength: strengthConditional}
					if ref.Path != "" {
						edge.RequiredOutputs = []string{ref.Path}
					}
					addEdge(edges, edge)
				}
			}
		}
	}

	g := newGraph(steps, edges)

	if cycles := g.findCycles(); len(cycles) > 0 {
		return nil, pwerrors.NewCircularDependencyError(cycles)
	}

	return g, nil
}

// addEdge inserts or merges an edge. Merging unions RequiredOutputs and keeps
// the strongest strength, since edge identity is (from, to, kind) only.
func addEdge(edges map[edgeKey]StepDependency, edge StepDependency) {
	key := edge.key()
	existing, ok := edges[key]
	if !ok {
		edges[key] = edge
		return
	}

	merged := existing
	if edge.Strength > merged.Strength {
		merged.Strength = edge.Strength
	}
	merged.RequiredOutputs = unionOutputs(existing.RequiredOutputs, edge.RequiredOutputs)
	edges[key] = merged
}

func unionOutputs(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
