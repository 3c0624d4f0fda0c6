// Package schemas checks config files and API request bodies against embedded
// JSON Schemas.
package schemas

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ConfigSchema is the JSON Schema for the content agent config file.
//
//go:embed config.schema.json
var ConfigSchema string

// GenerateRequestSchema is the JSON Schema for generation request bodies.
//
//go:embed generate_request.schema.json
var GenerateRequestSchema string

// FieldError is one schema violation. Field is a dotted path, "(root)" for the
// document itself.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in a document, ordered by field.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	parts := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		parts[i] = fmt.Sprintf("%d. %s: %s", i+1, fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SchemaLoadError means an embedded or caller-supplied schema did not compile.
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// DocumentError means the document is not well-formed JSON.
type DocumentError struct {
	Cause error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("malformed JSON document: %v", e.Cause)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

var (
	configSchema  = compileOnce("config.schema.json", &ConfigSchema)
	requestSchema = compileOnce("generate_request.schema.json", &GenerateRequestSchema)
)

// compileOnce defers compilation to first use so a broken schema surfaces as
// an error instead of a panic at init.
func compileOnce(name string, source *string) func() (*gojsonschema.Schema, error) {
	return sync.OnceValues(func() (*gojsonschema.Schema, error) {
		return compile(name, *source)
	})
}

func compile(name, source string) (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: "schema does not compile", Cause: err}
	}
	return schema, nil
}

// ValidateConfig validates config file content against ConfigSchema.
func ValidateConfig(data []byte) error {
	schema, err := configSchema()
	if err != nil {
		return err
	}
	return check(schema, gojsonschema.NewBytesLoader(data))
}

// ValidateGenerateRequest validates a request body against GenerateRequestSchema.
func ValidateGenerateRequest(data []byte) error {
	schema, err := requestSchema()
	if err != nil {
		return err
	}
	return check(schema, gojsonschema.NewBytesLoader(data))
}

// ValidateJSONString validates jsonContent against an ad hoc schema.
func ValidateJSONString(schemaContent, jsonContent string) error {
	schema, err := compile("(string schema)", schemaContent)
	if err != nil {
		return err
	}
	return check(schema, gojsonschema.NewStringLoader(jsonContent))
}

func check(schema *gojsonschema.Schema, document gojsonschema.JSONLoader) error {
	result, err := schema.Validate(document)
	if err != nil {
		return &DocumentError{Cause: err}
	}
	if result.Valid() {
		return nil
	}

	errs := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		errs = append(errs, FieldError{Field: field, Message: desc.Description()})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return &ValidationError{Errors: errs}
}
