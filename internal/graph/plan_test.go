package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pipewright/pipewright/internal/template"
)

func TestConservativePlanIsFullySequential(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {parallel: true},
		"bb": {parallel: true},
		"cc": {deps: []string{"aa", "bb"}, parallel: true},
	}))
	require.NoError(t, err)

	plan, err := CreateParallelPlan(g, OptimizationConservative)
	require.NoError(t, err)

	require.Len(t, plan.Groups, 3)
	for _, group := range plan.Groups {
		require.Len(t, group, 1)
	}
	require.Equal(t, 0.0, plan.EstimatedTimeSavings)
}

func TestModeratePlanHonorsParallelFlag(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {parallel: true},
		"cc": {},
		"dd": {deps: []string{"aa", "bb", "cc"}},
	}))
	require.NoError(t, err)

	plan, err := CreateParallelPlan(g, OptimizationModerate)
	require.NoError(t, err)

	// aa joins as the first ready step, bb joins because it is parallel,
	// cc is not parallel and waits for its own group.
	require.Equal(t, [][]template.StepID{{"aa", "bb"}, {"cc"}, {"dd"}}, plan.Groups)
}

func TestAggressivePlanGroupsIndependentSteps(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {},
	}))
	require.NoError(t, err)

	plan, err := CreateParallelPlan(g, OptimizationAggressive)
	require.NoError(t, err)

	require.Equal(t, [][]template.StepID{{"aa", "bb"}}, plan.Groups)
	require.Equal(t, 0.5, plan.EstimatedTimeSavings)
}

func TestPlanDiamondOrdering(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {deps: []string{"aa"}},
		"cc": {deps: []string{"aa"}},
		"dd": {deps: []string{"bb", "cc"}},
	}))
	require.NoError(t, err)

	plan, err := CreateParallelPlan(g, OptimizationAggressive)
	require.NoError(t, err)

	require.Equal(t, [][]template.StepID{{"aa"}, {"bb", "cc"}, {"dd"}}, plan.Groups)
	require.Len(t, plan.CriticalPath, 3)
	require.Equal(t, template.StepID("aa"), plan.CriticalPath[0])
	require.Equal(t, template.StepID("dd"), plan.CriticalPath[2])
	require.Equal(t, []template.StepID{"aa"}, plan.Bottlenecks)
}

func TestPlanDefaultsToConservative(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {},
	}))
	require.NoError(t, err)

	plan, err := CreateParallelPlan(g, "")
	require.NoError(t, err)
	require.Equal(t, OptimizationConservative, plan.Level)
	require.Len(t, plan.Groups, 2)
}

func TestPlanEstimatesExecutionTimeFromTimeouts(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {timeout: 60},
		"bb": {timeout: 120},
	}))
	require.NoError(t, err)

	plan, err := CreateParallelPlan(g, OptimizationAggressive)
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, plan.EstimatedExecutionTime)

	sequential, err := CreateParallelPlan(g, OptimizationConservative)
	require.NoError(t, err)
	require.Equal(t, 3*time.Minute, sequential.EstimatedExecutionTime)
}

func TestAnalyzeReportsStructure(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {deps: []string{"aa"}},
		"cc": {deps: []string{"aa"}},
		"dd": {deps: []string{"aa", "cc"}},
	}))
	require.NoError(t, err)

	report, err := Analyze(g)
	require.NoError(t, err)

	require.Equal(t, 4, report.StepCount)
	require.Equal(t, []template.StepID{"aa"}, report.Roots)
	require.ElementsMatch(t, []template.StepID{"bb", "dd"}, report.Leaves)
	require.Len(t, report.Redundant, 1)
	require.True(t, report.Parallelizable)
	require.NotEmpty(t, report.String())
}
