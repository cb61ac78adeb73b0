package structured

import (
	"encoding/json"

	"github.com/eino-contrib/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// JSONSchema renders s as a JSON Schema document. Object nodes are closed
// (additionalProperties false) and list their non-optional fields as required.
func (s Schema) JSONSchema() *jsonschema.Schema {
	return s.render(false)
}

func (s Schema) render(nullable bool) *jsonschema.Schema {
	js := &jsonschema.Schema{Description: s.Description}
	if s.Description == "" && s.Name != "" {
		js.Title = s.Name
	}

	if nullable {
		js.TypeEnhanced = []string{string(s.Kind), "null"}
	} else {
		js.Type = string(s.Kind)
	}

	for _, v := range s.Enum {
		js.Enum = append(js.Enum, v)
	}
	if nullable && len(js.Enum) > 0 {
		js.Enum = append(js.Enum, nil)
	}

	switch s.Kind {
	case KindObject:
		js.Properties = orderedmap.New[string, *jsonschema.Schema]()
		js.AdditionalProperties = jsonschema.FalseSchema
		js.Required = []string{}
		for _, f := range s.Fields {
			child := f.Schema.render(f.Nullable)
			if f.Description != "" {
				child.Description = f.Description
			}
			js.Properties.Set(f.Name, child)
			if !f.Optional {
				js.Required = append(js.Required, f.Name)
			}
		}
	case KindArray:
		if s.Items != nil {
			js.Items = s.Items.render(false)
		}
	}

	return js
}

// MarshalJSONSchema renders s and encodes it.
func (s Schema) MarshalJSONSchema() ([]byte, error) {
	return json.Marshal(s.JSONSchema())
}
