package graph

import (
	"sort"

	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// DependencyKind classifies how a dependency edge was established.
type DependencyKind string

const (
	// DependencyExplicit is declared in the step's depends_on list.
	DependencyExplicit DependencyKind = "explicit"
	// DependencyImplicit is inferred from a bare step reference in a prompt.
	DependencyImplicit DependencyKind = "implicit"
	// DependencyData is inferred from a reference to another step's output path.
	DependencyData DependencyKind = "data"
	// DependencyConditional is inferred from a conditional step's condition expression.
	DependencyConditional DependencyKind = "conditional"
)

// StepDependency is a directed edge From -> To meaning To depends on From.
// Identity for set membership is (From, To, Kind); RequiredOutputs and
// Strength are attributes, not identity.
type StepDependency struct {
	From            template.StepID
	To              template.StepID
	Kind            DependencyKind
	RequiredOutputs []string
	Strength        float64
}

type edgeKey struct {
	From template.StepID
	To   template.StepID
	Kind DependencyKind
}

func (d StepDependency) key() edgeKey {
	return edgeKey{From: d.From, To: d.To, Kind: d.Kind}
}

// Graph is the derived, queryable dependency graph of a pipeline template.
// It is read-only after construction and safe for concurrent reads.
type Graph struct {
	steps      map[template.StepID]template.StepTemplate
	edges      map[edgeKey]StepDependency
	dependents map[template.StepID][]template.StepID
	upstream   map[template.StepID][]template.StepID
}

func newGraph(steps map[template.StepID]template.StepTemplate, edges map[edgeKey]StepDependency) *Graph {
	g := &Graph{
		steps:      steps,
		edges:      edges,
		dependents: make(map[template.StepID][]template.StepID, len(steps)),
		upstream:   make(map[template.StepID][]template.StepID, len(steps)),
	}

	seen := make(map[[2]template.StepID]struct{}, len(edges))
	for _, edge := range sortedEdges(edges) {
		pair := [2]template.StepID{edge.From, edge.To}
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}
		g.dependents[edge.From] = append(g.dependents[edge.From], edge.To)
		g.upstream[edge.To] = append(g.upstream[edge.To], edge.From)
	}

	return g
}

// Size returns the number of steps in the graph.
func (g *Graph) Size() int { return len(g.steps) }

// Step returns the step template for id.
func (g *Graph) Step(id template.StepID) (template.StepTemplate, bool) {
	step, ok := g.steps[id]
	return step, ok
}

// StepIDs returns all step identifiers in sorted order.
func (g *Graph) StepIDs() []template.StepID {
	ids := make([]template.StepID, 0, len(g.steps))
	for id := range g.steps {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Dependencies returns every dependency edge, sorted for stable iteration.
func (g *Graph) Dependencies() []StepDependency {
	return sortedEdges(g.edges)
}

// DependenciesOf returns the upstream steps id depends on.
func (g *Graph) DependenciesOf(id template.StepID) []template.StepID {
	return append([]template.StepID(nil), g.upstream[id]...)
}

// DependentsOf returns the downstream steps that depend on id.
func (g *Graph) DependentsOf(id template.StepID) []template.StepID {
	return append([]template.StepID(nil), g.dependents[id]...)
}

// Roots returns the steps with no dependencies.
func (g *Graph) Roots() []template.StepID {
	var roots []template.StepID
	for id := range g.steps {
		if len(g.upstream[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sortIDs(roots)
	return roots
}

// Leaves returns the steps nothing depends on.
func (g *Graph) Leaves() []template.StepID {
	var leaves []template.StepID
	for id := range g.steps {
		if len(g.dependents[id]) == 0 {
			leaves = append(leaves, id)
		}
	}
	sortIDs(leaves)
	return leaves
}

// TopologicalSort returns a dependency-respecting order over all steps using
// Kahn's algorithm. Ties break alphabetically so the order is stable. If the
// result covers fewer steps than the graph holds, a cycle exists.
func (g *Graph) TopologicalSort() ([]template.StepID, error) {
	indegree := make(map[template.StepID]int, len(g.steps))
	for id := range g.steps {
		indegree[id] = len(g.upstream[id])
	}

	var queue []template.StepID
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sortIDs(queue)

	order := make([]template.StepID, 0, len(g.steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		var unblocked []template.StepID
		for _, dependent := range g.dependents[current] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				unblocked = append(unblocked, dependent)
			}
		}
		sortIDs(unblocked)
		queue = append(queue, unblocked...)
	}

	if len(order) != len(g.steps) {
		if cycles := g.findCycles(); len(cycles) > 0 {
			return nil, pwerrors.NewCircularDependencyError(cycles)
		}
		return nil, pwerrors.NewValidationError("graph", "topological sort did not cover all steps", nil)
	}

	return order, nil
}

// findCycles runs a DFS with a recursion stack over the upstream edges and
// reports every independent cycle found.
func (g *Graph) findCycles() [][]string {
	visiting := make(map[template.StepID]bool, len(g.steps))
	visited := make(map[template.StepID]bool, len(g.steps))
	var stack []template.StepID
	var cycles [][]string

	var dfs func(template.StepID)
	dfs = func(node template.StepID) {
		visiting[node] = true
		stack = append(stack, node)

		for _, dep := range g.upstream[node] {
			if visiting[dep] {
				for i, candidate := range stack {
					if candidate == dep {
						cycle := make([]string, 0, len(stack)-i+1)
						for _, id := range stack[i:] {
							cycle = append(cycle, string(id))
						}
						cycle = append(cycle, string(dep))
						cycles = append(cycles, cycle)
						break
					}
				}
				continue
			}
			if !visited[dep] {
				dfs(dep)
			}
		}

		visiting[node] = false
		visited[node] = true
		stack = stack[:len(stack)-1]
	}

	for _, id := range g.StepIDs() {
		if !visited[id] {
			dfs(id)
		}
	}

	return cycles
}

// reaches reports whether target is a transitive dependency of start.
func (g *Graph) reaches(start, target template.StepID) bool {
	if start == target {
		return true
	}
	seen := make(map[template.StepID]bool)
	stack := []template.StepID{start}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[current] {
			continue
		}
		seen[current] = true
		for _, dep := range g.upstream[current] {
			if dep == target {
				return true
			}
			stack = append(stack, dep)
		}
	}
	return false
}

func sortedEdges(edges map[edgeKey]StepDependency) []StepDependency {
	out := make([]StepDependency, 0, len(edges))
	for _, edge := range edges {
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func sortIDs(ids []template.StepID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
