package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// OptimizationLevel controls how aggressively the planner batches and prunes.
type OptimizationLevel string

const (
	// OptimizationConservative schedules one step per group and never prunes
	// edges. It is the safe default.
	OptimizationConservative OptimizationLevel = "conservative"
	// OptimizationModerate batches ready steps that opted into parallelism
	// and prunes redundant non-explicit edges.
	OptimizationModerate OptimizationLevel = "moderate"
	// OptimizationAggressive batches every ready step regardless of the
	// parallel flag and additionally prunes weak implicit edges.
	OptimizationAggressive OptimizationLevel = "aggressive"
)

const defaultStepEstimate = 30 * time.Second

// ParallelExecutionPlan is the planner's output for one (graph, level) pair:
// ordered execution groups, the critical path, and timing estimates.
type ParallelExecutionPlan struct {
	Level                  OptimizationLevel
	Groups                 [][]template.StepID
	CriticalPath           []template.StepID
	EstimatedTimeSavings   float64
	EstimatedExecutionTime time.Duration
	Bottlenecks            []template.StepID
}

// CreateParallelPlan walks the topological order collecting ready frontiers
// into execution groups according to the optimization level.
func CreateParallelPlan(g *Graph, level OptimizationLevel) (*ParallelExecutionPlan, error) {
	if level == "" {
		level = OptimizationConservative
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	scheduled := make(map[template.StepID]bool, len(order))
	var groups [][]template.StepID

	for len(scheduled) < len(order) {
		frontier := readyFrontier(g, order, scheduled)
		if len(frontier) == 0 {
			// Cannot happen on an acyclic graph; guards readiness bugs.
			return nil, pwerrors.NewDeadlockError(unscheduled(order, scheduled))
		}

		group := batchFrontier(g, frontier, level)
		for _, id := range group {
			scheduled[id] = true
		}
		groups = append(groups, group)
	}

	criticalPath := criticalPath(g, order)

	plan := &ParallelExecutionPlan{
		Level:                  level,
		Groups:                 groups,
		CriticalPath:           criticalPath,
		EstimatedTimeSavings:   timeSavings(len(order), len(groups)),
		EstimatedExecutionTime: estimateExecutionTime(g, groups),
		Bottlenecks:            bottlenecks(g, criticalPath),
	}
	return plan, nil
}

// unscheduled returns the ids from order that are not yet scheduled, for
// deadlock reporting.
func unscheduled(order []template.StepID, scheduled map[template.StepID]bool) []string {
	var remaining []string
	for _, id := range order {
		if !scheduled[id] {
			remaining = append(remaining, string(id))
		}
	}
	return remaining
}

// readyFrontier returns the not-yet-scheduled steps whose dependencies are
// all scheduled, in topological order.
func readyFrontier(g *Graph, order []template.StepID, scheduled map[template.StepID]bool) []template.StepID {
	var frontier []template.StepID
	for _, id := range order {
		if scheduled[id] {
			continue
		}
		ready := true
		for _, dep := range g.DependenciesOf(id) {
			if !scheduled[dep] {
				ready = false
				break
			}
		}
		if ready {
			frontier = append(frontier, id)
		}
	}
	return frontier
}

func batchFrontier(g *Graph, frontier []template.StepID, level OptimizationLevel) []template.StepID {
	switch level {
	case OptimizationConservative:
		return frontier[:1]
	case OptimizationAggressive:
		return frontier
	default:
		// The first ready step always joins so non-parallel work progresses;
		// the rest only if they opted into parallelism.
		group := []template.StepID{frontier[0]}
		for _, id := range frontier[1:] {
			if step, ok := g.Step(id); ok && step.Parallel {
				group = append(group, id)
			}
		}
		return group
	}
}

// criticalPath computes the longest dependency chain by dynamic programming
// over the topological order.
func criticalPath(g *Graph, order []template.StepID) []template.StepID {
	distance := make(map[template.StepID]int, len(order))
	predecessor := make(map[template.StepID]template.StepID, len(order))

	var tail template.StepID
	best := -1
	for _, id := range order {
		for _, dep := range g.DependenciesOf(id) {
			if distance[dep]+1 > distance[id] {
				distance[id] = distance[dep] + 1
				predecessor[id] = dep
			}
		}
		if distance[id] > best {
			best = distance[id]
			tail = id
		}
	}

	if best < 0 {
		return nil
	}

	path := []template.StepID{tail}
	for {
		prev, ok := predecessor[path[0]]
		if !ok {
			break
		}
		path = append([]template.StepID{prev}, path...)
	}
	return path
}

// bottlenecks returns critical-path steps that gate two or more dependents.
func bottlenecks(g *Graph, criticalPath []template.StepID) []template.StepID {
	var out []template.StepID
	for _, id := range criticalPath {
		if len(g.DependentsOf(id)) >= 2 {
			out = append(out, id)
		}
	}
	return out
}

func timeSavings(stepCount, groupCount int) float64 {
	if stepCount == 0 {
		return 0
	}
	return float64(stepCount-groupCount) / float64(stepCount)
}

// estimateExecutionTime sums the slowest step estimate of each group.
func estimateExecutionTime(g *Graph, groups [][]template.StepID) time.Duration {
	var total time.Duration
	for _, group := range groups {
		var slowest time.Duration
		for _, id := range group {
			estimate := defaultStepEstimate
			if step, ok := g.Step(id); ok && step.TimeoutSeconds > 0 {
				estimate = time.Duration(step.TimeoutSeconds) * time.Second
			}
			if estimate > slowest {
				slowest = estimate
			}
		}
		total += slowest
	}
	return total
}

// String renders a human readable summary of the plan.
func (p *ParallelExecutionPlan) String() string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	for i, group := range p.Groups {
		ids := make([]string, 0, len(group))
		for _, id := range group {
			ids = append(ids, string(id))
		}
		fmt.Fprintf(&b, "Group %d (%d steps): %s\n", i+1, len(group), strings.Join(ids, ", "))
	}
	if len(p.CriticalPath) > 0 {
		ids := make([]string, 0, len(p.CriticalPath))
		for _, id := range p.CriticalPath {
			ids = append(ids, string(id))
		}
		fmt.Fprintf(&b, "Critical path: %s\n", strings.Join(ids, " -> "))
	}
	fmt.Fprintf(&b, "Estimated time savings: %.0f%%\n", p.EstimatedTimeSavings*100)
	return b.String()
}
