package template

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9_.\-]+)\}`)

// StepRef is a reference to another step's output found in a prompt.
// Path is empty when the prompt references the step as a whole rather than a
// specific output field.
type StepRef struct {
	StepID StepID
	Path   string
}

// StepReferences extracts every `${steps.<id>[.<path>]}` placeholder from
// prompt. Step ids may themselves contain dots, so the longest declared id is
// matched first and the remainder is treated as the output path.
func (t *Template) StepReferences(prompt string) []StepRef {
	var refs []StepRef
	seen := make(map[StepRef]struct{})

	for _, match := range placeholderPattern.FindAllStringSubmatch(prompt, -1) {
		expr := match[1]
		if !strings.HasPrefix(expr, "steps.") {
			continue
		}
		remainder := strings.TrimPrefix(expr, "steps.")

		ref, ok := t.resolveStepRef(remainder)
		if !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	return refs
}

// Placeholders returns every `${...}` expression in prompt, without the
// surrounding delimiters.
func Placeholders(prompt string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(prompt, -1)
	exprs := make([]string, 0, len(matches))
	for _, match := range matches {
		exprs = append(exprs, match[1])
	}
	return exprs
}

func (t *Template) resolveStepRef(remainder string) (StepRef, bool) {
	// Longest declared id wins so hierarchical ids ("research.web") are not
	// mistaken for a short id plus output path.
	candidate := remainder
	for {
		if _, ok := t.Steps[candidate]; ok {
			path := strings.TrimPrefix(remainder[len(candidate):], ".")
			return StepRef{StepID: StepID(candidate), Path: path}, true
		}
		idx := strings.LastIndex(candidate, ".")
		if idx < 0 {
			return StepRef{}, false
		}
		candidate = candidate[:idx]
	}
}
