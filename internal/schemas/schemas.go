// Package schemas provides JSON Schema validation for request payloads.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed run_request.schema.json
var runRequestSchema []byte

// FieldError represents a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError reports schema violations with field paths.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("schema validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Reasons returns the violations as human-readable strings.
func (ve *ValidationError) Reasons() []string {
	reasons := make([]string, 0, len(ve.Errors))
	for _, err := range ve.Errors {
		reasons = append(reasons, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return reasons
}

// ValidateRunRequest checks a raw /run body against the run request schema
// before the payload is decoded. Returns a *ValidationError describing every
// violation, or an error if the body is not valid JSON at all.
func ValidateRunRequest(body []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(runRequestSchema)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("request body is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{}
	for _, desc := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return ve
}
