package template

import (
	"fmt"
	"sort"

	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// InputSpec declares one user-supplied pipeline input.
type InputSpec struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type,omitempty" validate:"omitempty,oneof=string number boolean list"`
	Required    bool   `yaml:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Template is the immutable declarative definition of a pipeline: its steps,
// their dependencies, and the inputs it accepts. The step-dependency subgraph
// is guaranteed acyclic and fully resolved at construction time.
type Template struct {
	ID          string                  `yaml:"id" validate:"required"`
	Version     string                  `yaml:"version" validate:"required,semver"`
	Name        string                  `yaml:"name,omitempty"`
	Description string                  `yaml:"description,omitempty"`
	Inputs      []InputSpec             `yaml:"inputs,omitempty" validate:"omitempty,dive"`
	Steps       map[string]StepTemplate `yaml:"steps" validate:"required,min=1"`
}

// NewTemplate validates the raw definition and returns it as an immutable
// Template. Dependencies must resolve to declared sibling steps and the
// dependency subgraph must be acyclic; both are enforced here, not at
// execution time.
func NewTemplate(id, version, name string, inputs []InputSpec, steps map[string]StepTemplate) (*Template, error) {
	tmpl := &Template{
		ID:      id,
		Version: version,
		Name:    name,
		Inputs:  inputs,
		Steps:   steps,
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return tmpl, nil
}

// Validate enforces the template invariants.
func (t *Template) Validate() error {
	if t == nil {
		return pwerrors.NewValidationError("template", "template is nil", nil)
	}
	if t.ID == "" {
		return pwerrors.NewValidationError("id", "template id is required", nil)
	}
	if len(t.Steps) == 0 {
		return pwerrors.NewValidationError("steps", "template requires at least one step", nil)
	}

	for key, step := range t.Steps {
		if string(step.ID) == "" {
			step.ID = StepID(key)
			t.Steps[key] = step
		}
		if string(step.ID) != key {
			return pwerrors.NewValidationError(fmt.Sprintf("steps.%s", key), fmt.Sprintf("step key %q does not match step id %q", key, step.ID), nil)
		}
		if err := step.Validate(); err != nil {
			return err
		}
	}

	for key, step := range t.Steps {
		for _, dep := range step.DependsOn {
			if _, ok := t.Steps[string(dep)]; !ok {
				return pwerrors.NewInvalidDependencyError(key, string(dep))
			}
			if string(dep) == key {
				return pwerrors.NewCircularDependencyError([][]string{{key, key}})
			}
		}
	}

	if cycles := detectCycles(t.Steps); len(cycles) > 0 {
		return pwerrors.NewCircularDependencyError(cycles)
	}

	return nil
}

// Step returns the step declared under id.
func (t *Template) Step(id StepID) (StepTemplate, bool) {
	step, ok := t.Steps[string(id)]
	return step, ok
}

// StepIDs returns the declared step identifiers in sorted order.
func (t *Template) StepIDs() []StepID {
	ids := make([]StepID, 0, len(t.Steps))
	for key := range t.Steps {
		ids = append(ids, StepID(key))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TopologicalOrder returns the baseline execution order over the explicit
// dependency edges using Kahn's algorithm. Ties break alphabetically so the
// order is stable across runs.
func (t *Template) TopologicalOrder() ([]StepID, error) {
	indegree := make(map[StepID]int, len(t.Steps))
	dependents := make(map[StepID][]StepID, len(t.Steps))
	for key, step := range t.Steps {
		id := StepID(key)
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, dep := range step.DependsOn {
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []StepID
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sortStepIDs(queue)

	order := make([]StepID, 0, len(t.Steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		var unblocked []StepID
		for _, dependent := range dependents[current] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				unblocked = append(unblocked, dependent)
			}
		}
		sortStepIDs(unblocked)
		queue = append(queue, unblocked...)
	}

	if len(order) != len(t.Steps) {
		if cycles := detectCycles(t.Steps); len(cycles) > 0 {
			return nil, pwerrors.NewCircularDependencyError(cycles)
		}
		return nil, pwerrors.NewValidationError("steps", "topological sort did not cover all steps", nil)
	}

	return order, nil
}

// ValidateInputs checks user-supplied inputs against the declared input
// schema and returns one message per violation. An empty result means valid.
func (t *Template) ValidateInputs(inputs map[string]any) []string {
	var problems []string
	for _, spec := range t.Inputs {
		value, present := inputs[spec.Name]
		if !present {
			if spec.Required && spec.Default == nil {
				problems = append(problems, fmt.Sprintf("required input %q is missing", spec.Name))
			}
			continue
		}
		if spec.Type == "" {
			continue
		}
		if !matchesInputType(value, spec.Type) {
			problems = append(problems, fmt.Sprintf("input %q must be of type %s", spec.Name, spec.Type))
		}
	}
	return problems
}

// ApplyInputDefaults returns inputs merged over the declared defaults.
func (t *Template) ApplyInputDefaults(inputs map[string]any) map[string]any {
	merged := make(map[string]any, len(inputs)+len(t.Inputs))
	for _, spec := range t.Inputs {
		if spec.Default != nil {
			merged[spec.Name] = spec.Default
		}
	}
	for key, value := range inputs {
		merged[key] = value
	}
	return merged
}

func matchesInputType(value any, declared string) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "list":
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	}
	return true
}

func sortStepIDs(ids []StepID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
