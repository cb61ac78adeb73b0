// Package provider resolves model names to concrete LLM provider clients.
//
// A model name is parsed once into a closed ModelName variant:
//
//   - "gpt*"                        -> OpenAI
//   - "gemini*"                     -> Google Gemini
//   - "openrouter/<provider>/<id>"  -> OpenRouter, routed to <provider>
//
// Any other name is a configuration error wrapping ErrModelNotSupported.
// Downstream code switches on ModelName.Family and never on string prefixes.
//
// Resolution is split in two steps. BuildOptions is pure: it selects the API
// key, rewrites routed model ids, fixes the base URL and decides which model
// parameters are forwarded. NewClient then constructs the Eino chat model
// from those options without any network I/O:
//
//	name, err := provider.ParseModelName("openrouter/openai/gpt-4o")
//	opts, err := provider.BuildOptions(name, tokens, modelConfig)
//	client, err := provider.NewClient(ctx, opts)
//
// Resolve performs all three steps.
//
// All three families speak the OpenAI chat-completions protocol, so every
// client is backed by the eino-ext OpenAI ChatModel. Gemini is reached
// through Google's OpenAI-compatible endpoint.
package provider
