package structured

import "github.com/opencode-ai/llmcall/internal/provider"

// Normalize rewrites s for model. OpenAI-served models reject optional
// properties in strict structured output, so every optional top-level field
// becomes a required field whose value may be null. Other models, non-object
// schemas and schemas without optional fields are returned unchanged.
//
// Only top-level fields are rewritten. Optional fields of nested objects are
// left as they are.
func Normalize(s Schema, model provider.ModelName) Schema {
	if !model.IsOpenAICompatible() || s.Kind != KindObject || !s.HasOptionalFields() {
		return s
	}

	out := s
	out.Fields = make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		if f.Optional {
			f.Optional = false
			f.Nullable = true
		}
		out.Fields[i] = f
	}
	return out
}
