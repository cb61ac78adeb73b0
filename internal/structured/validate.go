package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidationError reports a structured response that does not match its
// schema. It is terminal: the response came back from a successful provider
// call and is never retried.
type ValidationError struct {
	Schema string
	Errors []string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("structured response for %q failed validation: %v", e.Schema, e.Err)
	}
	return fmt.Sprintf("structured response for %q failed validation: %s", e.Schema, strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ErrMissingResponse is wrapped when the model returned no structured payload.
var ErrMissingResponse = errors.New("no structured response in model output")

// Validator checks raw JSON against a compiled schema.
type Validator struct {
	schema   Schema
	compiled *jsonschema.Schema
}

// NewValidator compiles s.
func NewValidator(s Schema) (*Validator, error) {
	doc, err := s.MarshalJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("render schema: %w", err)
	}

	name := s.Name
	if name == "" {
		name = "response"
	}
	compiled, err := jsonschema.CompileString("https://llmcall.local/schema/"+url.PathEscape(name)+".json", string(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Validator{schema: s, compiled: compiled}, nil
}

// Validate decodes raw and checks it against the schema.
func (v *Validator) Validate(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &ValidationError{Schema: v.schema.Name, Err: ErrMissingResponse}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &ValidationError{Schema: v.schema.Name, Errors: []string{"invalid JSON: " + err.Error()}, Err: err}
	}

	if err := v.compiled.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &ValidationError{Schema: v.schema.Name, Errors: flatten(ve), Err: err}
		}
		return &ValidationError{Schema: v.schema.Name, Err: err}
	}
	return nil
}

func flatten(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + ve.Message}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, flatten(c)...)
	}
	return out
}

// Decode validates raw against s and unmarshals it into T.
func Decode[T any](s Schema, raw []byte) (T, error) {
	var out T

	v, err := NewValidator(s)
	if err != nil {
		return out, err
	}
	if err := v.Validate(raw); err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &ValidationError{Schema: s.Name, Errors: []string{err.Error()}, Err: err}
	}
	return out, nil
}
