package execution

import (
	"fmt"
	"strings"

	"github.com/pipewright/pipewright/internal/template"
)

// Variables is the nested namespace cross-step rendering resolves against.
// It holds the run inputs under "inputs" and every completed step's outputs
// under "steps.<id>". Only the orchestrator task of a run writes to it.
type Variables struct {
	data map[string]any
}

// NewVariables seeds the namespace with the run inputs (defaults already
// applied) and an empty steps namespace.
func NewVariables(inputs map[string]any) *Variables {
	if inputs == nil {
		inputs = map[string]any{}
	}
	return &Variables{data: map[string]any{
		"inputs": inputs,
		"steps":  map[string]any{},
	}}
}

// SetStepOutputs folds a completed step's outputs into the steps namespace.
func (v *Variables) SetStepOutputs(id template.StepID, outputs map[string]any) {
	steps := v.data["steps"].(map[string]any)
	if outputs == nil {
		outputs = map[string]any{}
	}
	steps[string(id)] = outputs
}

// Lookup resolves a dotted path such as "steps.outline.text" or
// "inputs.topic". Map keys may themselves contain dots (hierarchical step
// ids), so at each level the longest matching key wins.
func (v *Variables) Lookup(path string) (any, bool) {
	return lookupPath(v.data, path)
}

// Render substitutes every resolvable `${path}` placeholder in s with the
// value's string form. Unresolvable placeholders are left intact so the
// failure is visible downstream instead of silently erased.
func (v *Variables) Render(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}

		b.WriteString(rest[:start])
		expr := rest[start+2 : start+end]
		if value, ok := v.Lookup(expr); ok {
			b.WriteString(stringify(value))
		} else {
			b.WriteString(rest[start : start+end+1])
		}
		rest = rest[start+end+1:]
	}
	return b.String()
}

// StepOutputs returns the outputs recorded for id, nil when absent.
func (v *Variables) StepOutputs(id template.StepID) map[string]any {
	steps := v.data["steps"].(map[string]any)
	outputs, _ := steps[string(id)].(map[string]any)
	return outputs
}

// Input returns the run input stored under name.
func (v *Variables) Input(name string) (any, bool) {
	inputs := v.data["inputs"].(map[string]any)
	value, ok := inputs[name]
	return value, ok
}

func lookupPath(root map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	// Try the longest key first so "steps.research.web.summary" resolves the
	// step "research.web" before a step "research".
	current := any(root)
	rest := path
	for rest != "" {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		candidate := rest
		for {
			if value, ok := node[candidate]; ok {
				if len(candidate) == len(rest) {
					return value, true
				}
				current = value
				rest = rest[len(candidate)+1:]
				break
			}
			idx := strings.LastIndex(candidate, ".")
			if idx < 0 {
				return nil, false
			}
			candidate = candidate[:idx]
		}
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
