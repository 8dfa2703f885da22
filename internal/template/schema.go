package template

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaSource []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// ValidationError lists the schema violations of a template document.
type ValidationError struct {
	Causes []string
}

func (e *ValidationError) Error() string {
	return "invalid template: " + strings.Join(e.Causes, "; ")
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("template.json", bytes.NewReader(schemaSource)); err != nil {
			schemaErr = fmt.Errorf("failed to load template schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("template.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile template schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Validate checks a raw template document against the template schema.
// Schema violations are reported as *ValidationError.
func Validate(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ValidationError{Causes: []string{"not valid JSON: " + err.Error()}}
	}
	if err := s.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return &ValidationError{Causes: flatten(verr)}
		}
		return fmt.Errorf("failed to validate template: %w", err)
	}
	return nil
}

func flatten(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := verr.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + verr.Message}
	}
	var out []string
	for _, c := range verr.Causes {
		out = append(out, flatten(c)...)
	}
	return out
}
