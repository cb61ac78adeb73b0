// Package config provides configuration loading, merging and path management
// for llmcall.
//
// # Configuration Loading
//
// Load merges configuration from several sources. Later sources override
// earlier ones:
//
//  1. Global config in the XDG config dir (~/.config/llmcall/), or
//     LLMCALL_CONFIG_DIR when set
//  2. Project config in the given directory and its .llmcall/ subdirectory
//  3. LLMCALL_CONFIG file
//  4. LLMCALL_CONFIG_CONTENT inline JSON
//  5. Environment variables
//
// In each directory the files llmcall.yaml, llmcall.yml, llmcall.json and
// llmcall.jsonc are probed in that order. Missing files are skipped; a file
// that fails to parse is logged and skipped. A file named by LLMCALL_CONFIG
// must load.
//
// # Supported Formats
//
// JSON and JSONC files are read with tidwall/jsonc. YAML files are read with
// gopkg.in/yaml.v3 and converted to JSON before decoding, so both formats
// share field names:
//
//	model: gpt-4o
//	aiModelsFallback: [gemini-2.0-flash, openrouter/openai/gpt-4o]
//	tokens:
//	  openAIApiKey: "{env:OPENAI_API_KEY}"
//	memory:
//	  kind: sqlite
//	  connectionString: /var/lib/llmcall/threads.db
//
// # Variable Interpolation
//
//   - {env:VAR_NAME} expands to the environment variable
//   - {file:path} expands to the file contents, with a trailing newline
//     trimmed; relative paths resolve against the config file's directory
//     and ~/ expands to $HOME
//
// # Environment Variables
//
//	OPENAI_API_KEY            tokens.openAIApiKey
//	GOOGLE_GEMINI_TOKEN       tokens.googleGeminiToken (GOOGLE_API_KEY is an alias)
//	OPENROUTER_API_KEY        tokens.openRouterApiKey
//	LLMCALL_MODEL             model
//	LLMCALL_FALLBACK_MODELS   aiModelsFallback, comma separated; empty disables fallback
//	LLMCALL_MAX_RETRIES       maxRetries
//	LLMCALL_MEMORY            memory, as a DSN (memory, sqlite:<path>, postgres://...,
//	                          mysql:<dsn>, redis://..., mongodb://..., file:<dir>, none)
//	LLMCALL_PORT              server.port
//	OTEL_EXPORTER_OTLP_ENDPOINT  enables telemetry with this endpoint
//
// # Validation
//
// Validate checks that at least one of the OpenAI or Gemini credentials is
// present, that every configured model name is supported, and that the
// memory config names a known backend. The CLI treats a validation failure
// as fatal.
package config
