package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// Base URLs for the non-OpenAI families.
const (
	GeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Options are the effective settings of a provider client.
type Options struct {
	Name    ModelName
	APIKey  string
	BaseURL string // empty means the OpenAI default

	// Forwarded model parameters; nil or empty means provider default.
	MaxTokens       *int
	Temperature     *float32
	ReasoningEffort string

	// Warnings are non-fatal diagnostics produced while building the options.
	Warnings []string
}

// BuildOptions selects credentials and forwarded parameters for a model.
// It performs no I/O.
func BuildOptions(name ModelName, tokens types.Tokens, mc types.ModelConfig) (Options, error) {
	opts := Options{Name: name}

	switch name.Family {
	case FamilyOpenAI:
		opts.APIKey = tokens.OpenAIAPIKey
	case FamilyGemini:
		opts.APIKey = tokens.GoogleGeminiToken
		opts.BaseURL = GeminiBaseURL
	case FamilyOpenRouter:
		opts.APIKey = tokens.OpenRouterAPIKey
		opts.BaseURL = OpenRouterBaseURL
	default:
		return Options{}, &ConfigError{Model: name.Raw, Err: ErrModelNotSupported}
	}
	if opts.APIKey == "" {
		return Options{}, &ConfigError{Model: name.Raw, Err: ErrAPIKeyMissing}
	}

	if mc.MaxTokens != nil {
		v := *mc.MaxTokens
		opts.MaxTokens = &v
	}
	if mc.Temperature != nil {
		v := float32(*mc.Temperature)
		opts.Temperature = &v
	}

	if mc.ReasoningEffort != "" {
		if name.IsOpenAICompatible() {
			opts.ReasoningEffort = mc.ReasoningEffort
		} else {
			msg := fmt.Sprintf("reasoningEffort is not supported for model %s; option dropped", name.Raw)
			opts.Warnings = append(opts.Warnings, msg)
			logging.Component("provider").Warn().
				Str("model", name.Raw).
				Str("reasoningEffort", mc.ReasoningEffort).
				Msg("reasoningEffort is not supported for this model; option dropped")
		}
	}

	return opts, nil
}

// Client is a resolved provider client.
type Client struct {
	Name    ModelName
	Options Options

	chatModel model.ToolCallingChatModel
}

// NewClient constructs the Eino chat model for opts.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	cfg := &openai.ChatModelConfig{
		APIKey:      opts.APIKey,
		BaseURL:     opts.BaseURL,
		Model:       opts.Name.Model,
		Temperature: opts.Temperature,
	}

	if opts.MaxTokens != nil {
		maxTokens := *opts.MaxTokens
		if opts.Name.Family == FamilyOpenAI {
			// Use MaxCompletionTokens for reasoning model compatibility
			cfg.MaxCompletionTokens = &maxTokens
		} else {
			cfg.MaxTokens = &maxTokens
		}
	}
	if opts.ReasoningEffort != "" {
		cfg.ReasoningEffort = openai.ReasoningEffortLevel(opts.ReasoningEffort)
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model %s: %w", opts.Name.Family, opts.Name.Model, err)
	}

	return &Client{
		Name:      opts.Name,
		Options:   opts,
		chatModel: chatModel,
	}, nil
}

// NewClientWithModel wraps an existing chat model. Used for tests and for
// callers that bring their own Eino model.
func NewClientWithModel(name ModelName, chatModel model.ToolCallingChatModel) *Client {
	return &Client{Name: name, Options: Options{Name: name}, chatModel: chatModel}
}

// ChatModel returns the Eino ChatModel.
func (c *Client) ChatModel() model.ToolCallingChatModel {
	return c.chatModel
}

// Resolve parses raw, builds its options and constructs the client.
func Resolve(ctx context.Context, raw string, tokens types.Tokens, mc types.ModelConfig) (*Client, error) {
	name, err := ParseModelName(raw)
	if err != nil {
		return nil, err
	}
	opts, err := BuildOptions(name, tokens, mc)
	if err != nil {
		return nil, err
	}
	return NewClient(ctx, opts)
}
