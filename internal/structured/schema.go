// Package structured declares structured-output schemas, normalizes them for
// providers that reject optional fields, and validates model responses.
package structured

// Kind is the JSON type of a schema node.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// Schema is a declarative schema node. Object nodes list their Fields in
// declaration order; array nodes describe their element in Items.
type Schema struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Kind        Kind     `json:"type"`
	Fields      []Field  `json:"fields,omitempty"`
	Items       *Schema  `json:"items,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Field is a named member of an object schema.
type Field struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      Schema `json:"schema"`
	// Optional fields may be absent from the response.
	Optional bool `json:"optional,omitempty"`
	// Nullable fields must be present but may be null.
	Nullable bool `json:"nullable,omitempty"`
}

// Object builds an object schema.
func Object(name string, fields ...Field) Schema {
	return Schema{Name: name, Kind: KindObject, Fields: fields}
}

// ArrayOf builds an array schema.
func ArrayOf(items Schema) Schema {
	return Schema{Kind: KindArray, Items: &items}
}

// String, Number, Integer and Boolean build scalar schemas.
func String() Schema  { return Schema{Kind: KindString} }
func Number() Schema  { return Schema{Kind: KindNumber} }
func Integer() Schema { return Schema{Kind: KindInteger} }
func Boolean() Schema { return Schema{Kind: KindBoolean} }

// Required declares a field that must be present.
func Required(name string, s Schema) Field {
	return Field{Name: name, Schema: s}
}

// Optional declares a field that may be absent.
func Optional(name string, s Schema) Field {
	return Field{Name: name, Schema: s, Optional: true}
}

// WithDescription returns f with a description.
func (f Field) WithDescription(desc string) Field {
	f.Description = desc
	return f
}

// HasOptionalFields reports whether any top-level field is optional.
func (s Schema) HasOptionalFields() bool {
	for _, f := range s.Fields {
		if f.Optional {
			return true
		}
	}
	return false
}
