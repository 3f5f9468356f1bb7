package config

import (
	"fmt"
	"strings"
)

// ValidationError reports one field-level problem found while validating a
// single interface's configuration.
type ValidationError struct {
	Interface string
	Field     string
	Message   string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("interface %q: field %q: %s", ve.Interface, ve.Field, ve.Message)
}

// ValidationErrors collects every problem found across a document. Per
// error handling kind 1, an interface with any entry here is skipped
// entirely; interfaces with no entries proceed unaffected.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	messages := make([]string, len(ve))
	for i, e := range ve {
		messages[i] = e.Error()
	}
	return strings.Join(messages, "; ")
}

// HasErrors reports whether any validation error was recorded.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// ForInterface returns the subset of errors naming the given interface.
func (ve ValidationErrors) ForInterface(name string) ValidationErrors {
	var out ValidationErrors
	for _, e := range ve {
		if e.Interface == name {
			out = append(out, e)
		}
	}
	return out
}
