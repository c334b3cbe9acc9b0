package task

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/taskboard-go/internal/utils"
)

//go:embed payload.schema.json
var payloadSchemaJSON []byte

const payloadSchemaURL = "https://taskboard.local/schemas/payload.json"

var (
	payloadSchemaOnce sync.Once
	payloadSchema     *jsonschema.Schema
	payloadSchemaErr  error
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // JSON path to the error location
	Err  error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Valid      bool
	Errors     []error
	Warnings   []string
	UsedSchema bool // true if JSON Schema validation was performed
}

// Err joins all validation errors, or returns nil when the payload is valid.
func (r *ValidationResult) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	return errors.Join(r.Errors...)
}

func compiledPayloadSchema() (*jsonschema.Schema, error) {
	payloadSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if err := compiler.AddResource(payloadSchemaURL, bytes.NewReader(payloadSchemaJSON)); err != nil {
			payloadSchemaErr = fmt.Errorf("load payload schema: %w", err)
			return
		}
		payloadSchema, payloadSchemaErr = compiler.Compile(payloadSchemaURL)
	})
	return payloadSchema, payloadSchemaErr
}

// ValidatePayload checks p before it is sent to the API. The payload is
// normalized first, so surrounding whitespace and duplicate teams are not
// errors.
func ValidatePayload(p Payload) *ValidationResult {
	p = p.Normalized()
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]error, 0),
		Warnings: make([]string, 0),
	}

	schema, err := compiledPayloadSchema()
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("JSON Schema validation not available, using minimal checks: %v", err))
		validateMinimal(p, result)
		return result
	}
	result.UsedSchema = true

	data, err := json.Marshal(p)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{Err: fmt.Errorf("marshal payload: %w", err)})
		return result
	}
	var obj interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{Err: fmt.Errorf("unmarshal payload: %w", err)})
		return result
	}

	if err := schema.Validate(obj); err != nil {
		result.Valid = false
		appendSchemaErrors(result, err)
	}
	return result
}

func appendSchemaErrors(result *ValidationResult, err error) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		result.Errors = append(result.Errors, err)
		return
	}
	collectSchemaErrors(result, ve)
}

func collectSchemaErrors(result *ValidationResult, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}
	if len(err.Causes) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Path: utils.JSONPointerToPath(err.InstanceLocation),
			Err:  errors.New(err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(result, cause)
	}
}

// validateMinimal mirrors the schema rules without the schema.
func validateMinimal(p Payload, result *ValidationResult) {
	fail := func(path string, err error) {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{Path: path, Err: err})
	}

	if p.Name == "" {
		fail("name", errors.New("task name is required"))
	}
	if !p.Status.Valid() {
		fail("status", fmt.Errorf("invalid status %q, must be one of: TO_DO, DOING, DONE", p.Status))
	}
	for i, t := range p.Teams {
		if !t.Valid() {
			fail(fmt.Sprintf("teams[%d]", i), fmt.Errorf("invalid team %q", t))
		}
	}
	if p.ExternalLink != "" {
		u, err := url.Parse(p.ExternalLink)
		if err != nil || !u.IsAbs() {
			fail("external_link", fmt.Errorf("%q is not a valid URL", p.ExternalLink))
		}
	}
}
