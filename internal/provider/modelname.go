package provider

import (
	"strings"
)

// Family identifies the provider family of a model.
type Family int

const (
	FamilyOpenAI Family = iota + 1
	FamilyGemini
	FamilyOpenRouter
)

func (f Family) String() string {
	switch f {
	case FamilyOpenAI:
		return "openai"
	case FamilyGemini:
		return "gemini"
	case FamilyOpenRouter:
		return "openrouter"
	default:
		return "unknown"
	}
}

const openRouterPrefix = "openrouter/"

// ModelName is a parsed model name.
type ModelName struct {
	// Raw is the name as given by the caller.
	Raw    string
	Family Family
	// SubProvider is the routed provider for OpenRouter models ("openai" in
	// "openrouter/openai/gpt-4o"). Empty for other families.
	SubProvider string
	// Model is the identifier sent to the provider. For OpenRouter this is
	// the remainder after the "openrouter/" prefix.
	Model string
}

// ParseModelName classifies a model name by its prefix.
func ParseModelName(raw string) (ModelName, error) {
	name := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(name, openRouterPrefix):
		rest := strings.TrimPrefix(name, openRouterPrefix)
		sub, model, ok := strings.Cut(rest, "/")
		if !ok || sub == "" || model == "" {
			return ModelName{}, unsupported(raw)
		}
		return ModelName{Raw: raw, Family: FamilyOpenRouter, SubProvider: sub, Model: rest}, nil
	case strings.HasPrefix(name, "gpt"):
		return ModelName{Raw: raw, Family: FamilyOpenAI, Model: name}, nil
	case strings.HasPrefix(name, "gemini"):
		return ModelName{Raw: raw, Family: FamilyGemini, Model: name}, nil
	default:
		return ModelName{}, unsupported(raw)
	}
}

func unsupported(raw string) error {
	return &ConfigError{Model: raw, Suggestion: Suggest(raw), Err: ErrModelNotSupported}
}

// IsOpenAICompatible reports whether the model is served by OpenAI, either
// directly or routed through OpenRouter. Such models take reasoning effort
// and reject optional fields in structured-output schemas.
func (m ModelName) IsOpenAICompatible() bool {
	switch m.Family {
	case FamilyOpenAI:
		return true
	case FamilyOpenRouter:
		return m.SubProvider == "openai"
	default:
		return false
	}
}

// AcceptsAudio reports whether the model can take raw audio content blocks.
// OpenRouter requests get transcribed text instead.
func (m ModelName) AcceptsAudio() bool {
	return m.Family == FamilyOpenAI || m.Family == FamilyGemini
}

func (m ModelName) String() string {
	return m.Raw
}
