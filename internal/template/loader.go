package template

import (
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// Load reads, decodes, and validates a pipeline template from a YAML file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pwerrors.NewValidationError("template", fmt.Sprintf("cannot read template file %s", path), err)
	}
	return Parse(data)
}

// Parse decodes and validates a pipeline template from YAML bytes.
func Parse(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, pwerrors.NewValidationError("template", "invalid template YAML", err)
	}

	// Step ids come from the mapping keys.
	for key, step := range tmpl.Steps {
		step.ID = StepID(key)
		tmpl.Steps[key] = step
	}

	if err := validatorInstance().Struct(&tmpl); err != nil {
		return nil, convertValidationError(err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}

	return &tmpl, nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return pwerrors.NewValidationError(first.Namespace(), fmt.Sprintf("failed %q constraint", first.Tag()), err)
	}
	return pwerrors.NewValidationError("template", err.Error(), err)
}
