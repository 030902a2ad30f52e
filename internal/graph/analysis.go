package graph

import (
	"fmt"
	"strings"

	"github.com/pipewright/pipewright/internal/template"
)

// AnalysisReport carries the diagnostics the planner derives from a graph:
// structure queries, redundant edges, and batching potential.
type AnalysisReport struct {
	StepCount      int
	EdgeCount      int
	Roots          []template.StepID
	Leaves         []template.StepID
	Redundant      []StepDependency
	CriticalPath   []template.StepID
	MaxGroupWidth  int
	Parallelizable bool
}

// Analyze computes a diagnostics report for the graph.
func Analyze(g *Graph) (*AnalysisReport, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	plan, err := CreateParallelPlan(g, OptimizationAggressive)
	if err != nil {
		return nil, err
	}

	maxWidth := 0
	for _, group := range plan.Groups {
		if len(group) > maxWidth {
			maxWidth = len(group)
		}
	}

	return &AnalysisReport{
		StepCount:      len(order),
		EdgeCount:      len(g.Dependencies()),
		Roots:          g.Roots(),
		Leaves:         g.Leaves(),
		Redundant:      g.RedundantDependencies(),
		CriticalPath:   plan.CriticalPath,
		MaxGroupWidth:  maxWidth,
		Parallelizable: maxWidth > 1,
	}, nil
}

// String renders the report for CLI display.
func (r *AnalysisReport) String() string {
	if r == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Steps: %d, edges: %d\n", r.StepCount, r.EdgeCount)
	fmt.Fprintf(&b, "Roots: %s\n", joinIDs(r.Roots))
	fmt.Fprintf(&b, "Leaves: %s\n", joinIDs(r.Leaves))
	if len(r.CriticalPath) > 0 {
		fmt.Fprintf(&b, "Critical path (%d deep): %s\n", len(r.CriticalPath), strings.Join(idStrings(r.CriticalPath), " -> "))
	}
	for _, edge := range r.Redundant {
		fmt.Fprintf(&b, "Redundant %s dependency: %s -> %s\n", edge.Kind, edge.From, edge.To)
	}
	fmt.Fprintf(&b, "Max parallel width: %d\n", r.MaxGroupWidth)
	return b.String()
}

func joinIDs(ids []template.StepID) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(idStrings(ids), ", ")
}

func idStrings(ids []template.StepID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
