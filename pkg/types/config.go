package types

// Config represents the llmcall configuration.
// It is loaded from JSONC or YAML files and environment overrides.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Provider credentials
	Tokens Tokens `json:"tokens,omitempty" yaml:"tokens,omitempty"`

	// Model selection
	Model    string   `json:"model,omitempty" yaml:"model,omitempty"`                       // "gpt-4o", "gemini-2.0-flash", "openrouter/openai/gpt-4o"
	Fallback []string `json:"aiModelsFallback,omitempty" yaml:"aiModelsFallback,omitempty"` // tried in order after Model

	// Retry budget per candidate model. Nil means the default of 3.
	MaxRetries *int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`

	// Default model parameters applied when a request carries none.
	ModelConfig *ModelConfig `json:"modelConfig,omitempty" yaml:"modelConfig,omitempty"`

	// Tools enables or disables bound tools by name or wildcard pattern.
	// Unlisted tools are enabled.
	Tools map[string]bool `json:"tools,omitempty" yaml:"tools,omitempty"`

	// Conversation persistence
	Memory *MemoryConfig `json:"memory,omitempty" yaml:"memory,omitempty"`

	Transcription *TranscriptionConfig `json:"transcription,omitempty" yaml:"transcription,omitempty"`
	Server        *ServerConfig        `json:"server,omitempty" yaml:"server,omitempty"`
	Telemetry     *TelemetryConfig     `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}

// Tokens holds API credentials for the supported provider families.
type Tokens struct {
	OpenAIAPIKey      string `json:"openAIApiKey,omitempty" yaml:"openAIApiKey,omitempty"`
	GoogleGeminiToken string `json:"googleGeminiToken,omitempty" yaml:"googleGeminiToken,omitempty"`
	OpenRouterAPIKey  string `json:"openRouterApiKey,omitempty" yaml:"openRouterApiKey,omitempty"`
}

// ModelConfig holds per-call model parameters.
// Nil pointers mean "use the provider default".
type ModelConfig struct {
	MaxTokens       *int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	ReasoningEffort string   `json:"reasoningEffort,omitempty" yaml:"reasoningEffort,omitempty"` // "low" | "medium" | "high"
}

// MemoryConfig is the serializable form of a checkpointer configuration.
// Kind selects the backend; the remaining fields apply to some kinds only.
type MemoryConfig struct {
	Kind string `json:"kind" yaml:"kind"` // "memory" | "sqlite" | "postgres" | "mysql" | "redis" | "mongodb" | "file"

	// ConnectionString is used by sqlite, postgres and mysql.
	ConnectionString string `json:"connectionString,omitempty" yaml:"connectionString,omitempty"`

	// URL is used by redis and mongodb.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Redis options
	Redis *RedisOptions `json:"redis,omitempty" yaml:"redis,omitempty"`

	// MongoDB database and collection names
	Database   string `json:"database,omitempty" yaml:"database,omitempty"`
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`

	// Dir is used by the file backend. Empty means the XDG data dir.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// RedisOptions tunes the Redis checkpointer.
type RedisOptions struct {
	KeyPrefix  string `json:"keyPrefix,omitempty" yaml:"keyPrefix,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty" yaml:"ttlSeconds,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	DB         *int   `json:"db,omitempty" yaml:"db,omitempty"`
}

// TranscriptionConfig configures the speech-to-text client.
type TranscriptionConfig struct {
	Model    string `json:"model,omitempty" yaml:"model,omitempty"` // default "whisper-1"
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	BaseURL  string `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `json:"port,omitempty" yaml:"port,omitempty"`
	CORSOrigins []string `json:"corsOrigins,omitempty" yaml:"corsOrigins,omitempty"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"` // OTLP gRPC endpoint, e.g. "localhost:4317"
	ServiceName string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	Insecure    bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}
