package provider

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Model describes a known model.
type Model struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Family            string `json:"family"`
	ContextLength     int    `json:"contextLength"`
	MaxOutputTokens   int    `json:"maxOutputTokens"`
	SupportsTools     bool   `json:"supportsTools"`
	SupportsVision    bool   `json:"supportsVision"`
	SupportsAudio     bool   `json:"supportsAudio"`
	SupportsReasoning bool   `json:"supportsReasoning"`
}

var catalog = []Model{
	// GPT-5 family
	{ID: "gpt-5", Name: "GPT-5", Family: "openai", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsVision: true, SupportsReasoning: true},
	{ID: "gpt-5-mini", Name: "GPT-5 Mini", Family: "openai", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsVision: true, SupportsReasoning: true},
	{ID: "gpt-5-nano", Name: "GPT-5 Nano", Family: "openai", ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsVision: true},
	// GPT-4o family
	{ID: "gpt-4o", Name: "GPT-4o", Family: "openai", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true, SupportsVision: true},
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Family: "openai", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true, SupportsVision: true},
	{ID: "gpt-4o-audio-preview", Name: "GPT-4o Audio", Family: "openai", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true, SupportsAudio: true},
	{ID: "gpt-4.1", Name: "GPT-4.1", Family: "openai", ContextLength: 1047576, MaxOutputTokens: 32768, SupportsTools: true, SupportsVision: true},
	// Gemini
	{ID: "gemini-2.5-pro", Name: "Gemini 2.5 Pro", Family: "gemini", ContextLength: 1048576, MaxOutputTokens: 65536, SupportsTools: true, SupportsVision: true, SupportsAudio: true, SupportsReasoning: true},
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Family: "gemini", ContextLength: 1048576, MaxOutputTokens: 65536, SupportsTools: true, SupportsVision: true, SupportsAudio: true, SupportsReasoning: true},
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Family: "gemini", ContextLength: 1048576, MaxOutputTokens: 8192, SupportsTools: true, SupportsVision: true, SupportsAudio: true},
	// OpenRouter
	{ID: "openrouter/openai/gpt-4o", Name: "GPT-4o (OpenRouter)", Family: "openrouter", ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true, SupportsVision: true},
	{ID: "openrouter/openai/gpt-5", Name: "GPT-5 (OpenRouter)", Family: "openrouter", ContextLength: 400000, MaxOutputTokens: 128000, SupportsTools: true, SupportsVision: true, SupportsReasoning: true},
	{ID: "openrouter/anthropic/claude-sonnet-4", Name: "Claude Sonnet 4 (OpenRouter)", Family: "openrouter", ContextLength: 200000, MaxOutputTokens: 64000, SupportsTools: true, SupportsVision: true},
	{ID: "openrouter/meta-llama/llama-3.3-70b-instruct", Name: "Llama 3.3 70B (OpenRouter)", Family: "openrouter", ContextLength: 131072, MaxOutputTokens: 8192, SupportsTools: true},
}

// Models returns the known models, sorted by family then id.
func Models() []Model {
	models := make([]Model, len(catalog))
	copy(models, catalog)
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Family != models[j].Family {
			return familyPriority(models[i].Family) > familyPriority(models[j].Family)
		}
		return models[i].ID < models[j].ID
	})
	return models
}

// LookupModel returns the catalog entry for id.
func LookupModel(id string) (Model, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

func familyPriority(family string) int {
	switch family {
	case "openai":
		return 3
	case "gemini":
		return 2
	default:
		return 1
	}
}

// maxSuggestDistance bounds how far a typo may be from a known id.
const maxSuggestDistance = 3

// Suggest returns the known model id closest to name, or "" if none is close.
func Suggest(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, m := range catalog {
		if d := levenshtein.ComputeDistance(name, m.ID); d < bestDist {
			best, bestDist = m.ID, d
		}
	}
	return best
}
