package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// ValidateDocument runs struct-tag validation over every interface entry
// independently and returns only those that pass, per error handling kind
// 1: the offending interface is skipped, valid interfaces proceed.
func ValidateDocument(doc *Document) (map[string]InterfaceConfig, ValidationErrors) {
	valid := make(map[string]InterfaceConfig, len(doc.Interfaces))
	var errs ValidationErrors

	for name, cfg := range doc.Interfaces {
		if fieldErrs := validateInterface(name, cfg); len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		valid[name] = cfg
	}

	return valid, errs
}

// validateInterface runs a single Struct pass; the "dive" tags on Tests and
// RecoveryTasks in types.go make the validator recurse into each element
// automatically, so nested ActionConfig problems surface as dotted field
// paths (e.g. "Tests[0].Executable") without a second pass.
func validateInterface(name string, cfg InterfaceConfig) ValidationErrors {
	var errs ValidationErrors

	if err := structValidator.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, ValidationError{
					Interface: name,
					Field:     fe.Namespace(),
					Message:   describeTag(fe),
				})
			}
		} else {
			errs = append(errs, ValidationError{Interface: name, Field: "", Message: err.Error()})
		}
	}

	return errs
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
