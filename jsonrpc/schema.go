package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a JSON Schema document bound to a method's params, a call's
// result, or one of the envelope shapes.
//
// A Schema is compiled at most once; the compiled form (or the compile
// error) is cached, so validating the same value twice gives the same
// verdict. A Schema is safe for concurrent use.
type Schema struct {
	raw []byte

	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

// NewSchema returns a Schema for raw without compiling it. A malformed
// document is reported as a *SchemaError by the first Validate call.
func NewSchema(raw []byte) *Schema {
	return &Schema{raw: append([]byte(nil), raw...)}
}

// CompileSchema compiles raw, returning a *SchemaError if the document is
// not a valid schema.
func CompileSchema(raw []byte) (*Schema, error) {
	s := NewSchema(raw)
	if err := s.compile(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustCompileSchema is like CompileSchema but panics on error.
func MustCompileSchema(raw string) *Schema {
	s, err := CompileSchema([]byte(raw))
	if err != nil {
		panic("jsonrpc: " + err.Error())
	}
	return s
}

// MarshalJSON returns the schema document.
func (s *Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return s.raw, nil
}

func (s *Schema) compile() error {
	s.once.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		c.AssertFormat = true
		if err := c.AddResource("schema.json", bytes.NewReader(s.raw)); err != nil {
			s.err = &SchemaError{Err: err}
			return
		}
		compiled, err := c.Compile("schema.json")
		if err != nil {
			s.err = &SchemaError{Err: err}
			return
		}
		s.compiled = compiled
	})
	return s.err
}

// Validate checks v against the schema. v may be any JSON-encodable Go
// value, a json.RawMessage, or a value produced by decoding JSON.
//
// The result is nil, a *Violation when v does not satisfy the schema, or a
// *SchemaError when the schema itself is malformed. Any other error means v
// could not be encoded as JSON.
func (s *Schema) Validate(v interface{}) error {
	if s == nil {
		return &SchemaError{Err: errors.New("nil schema")}
	}
	if err := s.compile(); err != nil {
		return err
	}
	doc, err := toDocument(v)
	if err != nil {
		return err
	}
	err = s.compiled.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return newViolation(ve)
	}
	return err
}

// Validate is shorthand for s.Validate(v).
func Validate(v interface{}, s *Schema) error {
	return s.Validate(v)
}

func toDocument(v interface{}) (interface{}, error) {
	var b []byte
	switch raw := v.(type) {
	case json.RawMessage:
		b = raw
	default:
		var err error
		b, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: encode value: %w", err)
		}
	}
	if len(b) == 0 {
		return nil, nil
	}
	return decodeValue(b)
}

// Violation describes the first way a value fails a schema.
type Violation struct {
	// Location is the JSON pointer of the offending value ("" for the root).
	Location string
	// Keyword is the JSON pointer of the failing schema keyword.
	Keyword string
	Message string
}

func newViolation(ve *jsonschema.ValidationError) *Violation {
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &Violation{
		Location: leaf.InstanceLocation,
		Keyword:  leaf.KeywordLocation,
		Message:  leaf.Message,
	}
}

func (v *Violation) Error() string {
	loc := v.Location
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, v.Message)
}

// SchemaError reports a schema document that cannot be compiled.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return "jsonrpc: invalid schema: " + e.Err.Error()
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
