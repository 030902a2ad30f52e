package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

type stepDef struct {
	deps     []string
	prompt   string
	parallel bool
	stepType template.StepType
	config   map[string]any
	timeout  int
}

func makeTemplate(t *testing.T, defs map[string]stepDef) *template.Template {
	t.Helper()

	steps := make(map[string]template.StepTemplate, len(defs))
	for id, def := range defs {
		stepType := def.stepType
		if stepType == "" {
			stepType = template.StepTypeLLMGenerate
		}
		deps := make([]template.StepID, 0, len(def.deps))
		for _, dep := range def.deps {
			deps = append(deps, template.StepID(dep))
		}
		steps[id] = template.StepTemplate{
			ID:             template.StepID(id),
			Type:           stepType,
			Prompt:         def.prompt,
			DependsOn:      deps,
			Parallel:       def.parallel,
			Config:         def.config,
			TimeoutSeconds: def.timeout,
		}
	}

	tmpl, err := template.NewTemplate("test-pipeline", "1.0", "", nil, steps)
	require.NoError(t, err)
	return tmpl
}

func TestBuildExplicitDependencies(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"outline": {},
		"content": {deps: []string{"outline"}},
	}))
	require.NoError(t, err)

	require.Equal(t, 2, g.Size())
	require.Equal(t, []template.StepID{"outline"}, g.DependenciesOf("content"))
	require.Equal(t, []template.StepID{"content"}, g.DependentsOf("outline"))
	require.Equal(t, []template.StepID{"outline"}, g.Roots())
	require.Equal(t, []template.StepID{"content"}, g.Leaves())

	deps := g.Dependencies()
	require.Len(t, deps, 1)
	require.Equal(t, DependencyExplicit, deps[0].Kind)
	require.Equal(t, 1.0, deps[0].Strength)
}

func TestBuildInfersImplicitDependency(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"outline": {},
		"content": {prompt: "Expand on ${steps.outline}"},
	}))
	require.NoError(t, err)

	deps := g.Dependencies()
	require.Len(t, deps, 1)
	require.Equal(t, DependencyImplicit, deps[0].Kind)
	require.Equal(t, 0.8, deps[0].Strength)
	require.Equal(t, template.StepID("outline"), deps[0].From)
	require.Equal(t, template.StepID("content"), deps[0].To)
}

func TestBuildInfersDataDependencyWithRequiredOutputs(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"outline": {},
		"content": {prompt: "Use ${steps.outline.text} and ${steps.outline.title}"},
	}))
	require.NoError(t, err)

	deps := g.Dependencies()
	require.Len(t, deps, 1)
	require.Equal(t, DependencyData, deps[0].Kind)
	require.Equal(t, 0.9, deps[0].Strength)
	require.ElementsMatch(t, []string{"text", "title"}, deps[0].RequiredOutputs)
}

func TestBuildInfersConditionalDependency(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"review": {},
		"publish": {
			stepType: template.StepTypeConditional,
			config:   map[string]any{"condition": "${steps.review.approved}"},
		},
	}))
	require.NoError(t, err)

	deps := g.Dependencies()
	require.Len(t, deps, 1)
	require.Equal(t, DependencyConditional, deps[0].Kind)
	require.Equal(t, []string{"approved"}, deps[0].RequiredOutputs)
}

func TestBuildDetectsCycleAcrossInferredEdges(t *testing.T) {
	t.Parallel()

	// Template validation only checks explicit edges; the data reference
	// closes the loop at graph level.
	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {deps: []string{"bb"}},
		"bb": {prompt: "needs ${steps.aa.text}"},
	}))
	require.Error(t, err)
	require.Nil(t, g)

	var cycleErr *pwerrors.CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	require.NotEmpty(t, cycleErr.Cycles)
}

func TestTopologicalSortIsDependencyRespecting(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {deps: []string{"aa"}},
		"cc": {deps: []string{"aa"}},
		"dd": {deps: []string{"bb", "cc"}},
	}))
	require.NoError(t, err)

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, order, 4)

	position := make(map[template.StepID]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	require.Less(t, position["aa"], position["bb"])
	require.Less(t, position["aa"], position["cc"])
	require.Less(t, position["bb"], position["dd"])
	require.Less(t, position["cc"], position["dd"])
}

func TestRedundantDependencyDetection(t *testing.T) {
	t.Parallel()

	// a -> b -> c plus the direct edge a -> c, which is redundant.
	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {deps: []string{"aa"}},
		"cc": {deps: []string{"aa", "bb"}},
	}))
	require.NoError(t, err)

	redundant := g.RedundantDependencies()
	require.Len(t, redundant, 1)
	require.Equal(t, template.StepID("aa"), redundant[0].From)
	require.Equal(t, template.StepID("cc"), redundant[0].To)
}

func TestOptimizeConservativeIsIdentity(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {deps: []string{"aa"}},
		"cc": {deps: []string{"aa", "bb"}},
	}))
	require.NoError(t, err)

	require.Same(t, g, g.Optimize(OptimizationConservative))
}

func TestOptimizeModerateKeepsExplicitRedundantEdges(t *testing.T) {
	t.Parallel()

	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {deps: []string{"aa"}},
		"cc": {deps: []string{"aa", "bb"}},
	}))
	require.NoError(t, err)

	optimized := g.Optimize(OptimizationModerate)
	// The redundant edge is explicit, so it survives.
	require.Len(t, optimized.Dependencies(), 3)
}

func TestOptimizeModerateStripsRedundantInferredEdges(t *testing.T) {
	t.Parallel()

	// bb explicitly depends on aa; cc explicitly depends on bb and only
	// references aa's output, so the data edge aa -> cc is redundant.
	g, err := Build(makeTemplate(t, map[string]stepDef{
		"aa": {},
		"bb": {deps: []string{"aa"}},
		"cc": {deps: []string{"bb"}, prompt: "refine ${steps.aa.text}"},
	}))
	require.NoError(t, err)
	require.Len(t, g.Dependencies(), 3)

	optimized := g.Optimize(OptimizationModerate)
	require.Len(t, optimized.Dependencies(), 2)
	for _, edge := range optimized.Dependencies() {
		require.Equal(t, DependencyExplicit, edge.Kind)
	}
}

func TestOptimizeAggressiveDropsWeakImplicitEdges(t *testing.T) {
	t.Parallel()

	steps := map[template.StepID]template.StepTemplate{
		"aa": {ID: "aa", Type: template.StepTypeLLMGenerate},
		"bb": {ID: "bb", Type: template.StepTypeLLMGenerate},
	}
	weak := StepDependency{From: "aa", To: "bb", Kind: DependencyImplicit, Strength: 0.3}
	g := newGraph(steps, map[edgeKey]StepDependency{weak.key(): weak})

	optimized := g.Optimize(OptimizationAggressive)
	require.Empty(t, optimized.Dependencies())
}

func TestOptimizeAggressiveKeepsWeakEdgeCarryingRequiredOutputs(t *testing.T) {
	t.Parallel()

	steps := map[template.StepID]template.StepTemplate{
		"aa": {ID: "aa", Type: template.StepTypeLLMGenerate},
		"bb": {ID: "bb", Type: template.StepTypeLLMGenerate},
	}
	weak := StepDependency{From: "aa", To: "bb", Kind: DependencyImplicit, Strength: 0.3}
	data := StepDependency{From: "aa", To: "bb", Kind: DependencyData, Strength: 0.9, RequiredOutputs: []string{"text"}}
	g := newGraph(steps, map[edgeKey]StepDependency{weak.key(): weak, data.key(): data})

	optimized := g.Optimize(OptimizationAggressive)
	require.Len(t, optimized.Dependencies(), 2)
}
