package graph

import (
	"github.com/pipewright/pipewright/internal/template"
)

const weakImplicitThreshold = 0.5

// RedundantDependencies returns the direct edges A -> B where A is also a
// transitive dependency of B through some other path. Only non-explicit
// redundant edges are eligible for removal; explicit edges are reported for
// diagnostics but never pruned.
func (g *Graph) RedundantDependencies() []StepDependency {
	var redundant []StepDependency
	for _, edge := range g.Dependencies() {
		if g.hasIndirectPath(edge.From, edge.To) {
			redundant = append(redundant, edge)
		}
	}
	return redundant
}

// hasIndirectPath reports whether from is a transitive dependency of to via
// a path other than the direct edge.
func (g *Graph) hasIndirectPath(from, to template.StepID) bool {
	for _, dep := range g.upstream[to] {
		if dep == from {
			continue
		}
		if g.reaches(dep, from) {
			return true
		}
	}
	return false
}

// Optimize returns a graph with edges pruned according to the level.
// Conservative is the identity. Moderate strips redundant non-explicit edges.
// Aggressive additionally drops weak implicit edges (strength below 0.5)
// unless strong required-output data flow exists between the same pair.
// The aggressive relaxation is a best-effort heuristic, not a correctness
// guarantee.
func (g *Graph) Optimize(level OptimizationLevel) *Graph {
	if level == "" || level == OptimizationConservative {
		return g
	}

	removable := make(map[edgeKey]bool)

	for _, edge := range g.RedundantDependencies() {
		if edge.Kind != DependencyExplicit {
			removable[edge.key()] = true
		}
	}

	if level == OptimizationAggressive {
		for _, edge := range g.Dependencies() {
			if edge.Kind != DependencyImplicit || edge.Strength >= weakImplicitThreshold {
				continue
			}
			if g.carriesRequiredOutputs(edge.From, edge.To) {
				continue
			}
			removable[edge.key()] = true
		}
	}

	if len(removable) == 0 {
		return g
	}

	kept := make(map[edgeKey]StepDependency, len(g.edges))
	for key, edge := range g.edges {
		if !removable[key] {
			kept[key] = edge
		}
	}

	// Edge removal cannot introduce a cycle, so no re-validation is needed.
	return newGraph(g.steps, kept)
}

// carriesRequiredOutputs reports whether any strong edge between the pair
// carries required outputs, meaning pruning would break data flow.
func (g *Graph) carriesRequiredOutputs(from, to template.StepID) bool {
	for _, edge := range g.edges {
		if edge.From != from || edge.To != to {
			continue
		}
		if len(edge.RequiredOutputs) > 0 && edge.Strength > 0.7 {
			return true
		}
	}
	return false
}
