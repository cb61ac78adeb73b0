package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/internal/structured"
	"github.com/opencode-ai/llmcall/pkg/types"
)

const (
	// MaxSteps is the default limit on model round trips per invocation.
	MaxSteps = 25
	// RespondTool is the tool bound for structured output.
	RespondTool = "respond"
)

var (
	// ErrMaxSteps is returned when the tool loop does not finish in time.
	ErrMaxSteps = errors.New("maximum steps reached")
	// ErrThreadRequired is returned by a Runner with a checkpointer when no
	// thread id is given.
	ErrThreadRequired = errors.New("thread id is required when a checkpointer is attached")
	// ErrEmptyInput is returned when there is nothing to send.
	ErrEmptyInput = errors.New("no messages to send")
	// ErrInvalidMessages wraps a message that cannot be sent to any model.
	ErrInvalidMessages = errors.New("invalid messages")
)

// IsInputError reports whether err is caused by the caller's input and would
// fail the same way on every model.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidMessages) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrThreadRequired)
}

// Agent invokes a model on a conversation.
type Agent interface {
	Invoke(ctx context.Context, msgs []types.Message, cfg InvokeConfig) (*Result, error)
}

// InvokeConfig carries per-invocation settings.
type InvokeConfig struct {
	ThreadID     string
	SystemPrompt string
	// Structured is the schema the response must follow, already
	// normalized for the target model.
	Structured *structured.Schema
}

// Result is the outcome of one invocation.
type Result struct {
	// Messages are the messages produced by the model and tools during the
	// invocation, in order. The final answer is last.
	Messages []*schema.Message
	// Structured is the raw structured payload, if one was requested and
	// produced.
	Structured json.RawMessage
}

// Last returns the final message, or nil.
func (r *Result) Last() *schema.Message {
	if r == nil || len(r.Messages) == 0 {
		return nil
	}
	return r.Messages[len(r.Messages)-1]
}

// Runner is the default Agent over an Eino chat model.
type Runner struct {
	name     string
	model    model.ToolCallingChatModel
	tools    []einotool.InvokableTool
	filter   map[string]bool
	saver    checkpoint.Saver
	maxSteps int
}

// Option configures a Runner.
type Option func(*Runner)

// WithTools binds tools the model may call.
func WithTools(tools ...einotool.InvokableTool) Option {
	return func(r *Runner) {
		r.tools = append(r.tools, tools...)
	}
}

// WithToolFilter enables or disables tools by name or pattern.
func WithToolFilter(filter map[string]bool) Option {
	return func(r *Runner) {
		r.filter = filter
	}
}

// WithCheckpointer attaches a checkpoint backend.
func WithCheckpointer(s checkpoint.Saver) Option {
	return func(r *Runner) {
		r.saver = s
	}
}

// WithMaxSteps overrides MaxSteps.
func WithMaxSteps(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// NewRunner creates a Runner. name is used for logging and snapshot metadata.
func NewRunner(name string, cm model.ToolCallingChatModel, opts ...Option) *Runner {
	r := &Runner{
		name:     name,
		model:    cm,
		maxSteps: MaxSteps,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invoke implements Agent.
func (r *Runner) Invoke(ctx context.Context, msgs []types.Message, cfg InvokeConfig) (*Result, error) {
	log := logging.Component("agent").With().Str("model", r.name).Str("threadID", cfg.ThreadID).Logger()

	if r.saver != nil && cfg.ThreadID == "" {
		return nil, ErrThreadRequired
	}

	turn, err := message.ToEino(msgs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessages, err)
	}

	prior, parentID, err := r.loadPrior(ctx, cfg.ThreadID)
	if err != nil {
		return nil, err
	}

	conversation := make([]*schema.Message, 0, len(prior)+len(turn)+1)
	if cfg.SystemPrompt != "" {
		conversation = append(conversation, &schema.Message{Role: schema.System, Content: cfg.SystemPrompt})
	}
	conversation = append(conversation, prior...)
	conversation = append(conversation, turn...)
	if len(conversation) == 0 {
		return nil, ErrEmptyInput
	}

	tools, infos, err := r.bindable(ctx, cfg.Structured)
	if err != nil {
		return nil, err
	}

	cm := r.model
	if len(infos) > 0 {
		cm, err = r.model.WithTools(infos)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	res := &Result{}
	for step := 0; ; step++ {
		if step >= r.maxSteps {
			log.Warn().Int("steps", step).Msg("tool loop did not finish")
			return nil, ErrMaxSteps
		}

		out, err := cm.Generate(ctx, conversation)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = &schema.Message{Role: schema.Assistant}
		}
		conversation = append(conversation, out)
		res.Messages = append(res.Messages, out)

		if len(out.ToolCalls) == 0 {
			if cfg.Structured != nil && res.Structured == nil {
				res.Structured = extractJSON(message.ContentText(out))
			}
			break
		}

		log.Debug().Int("step", step).Int("toolCalls", len(out.ToolCalls)).Msg("executing tool calls")

		answered := false
		for _, call := range out.ToolCalls {
			if cfg.Structured != nil && call.Function.Name == RespondTool {
				if res.Structured == nil {
					res.Structured = json.RawMessage(call.Function.Arguments)
				}
				answered = true
				continue
			}
			result := r.runTool(ctx, tools, call)
			toolMsg := &schema.Message{
				Role:       schema.Tool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			}
			conversation = append(conversation, toolMsg)
			res.Messages = append(res.Messages, toolMsg)
		}
		if answered {
			break
		}
	}

	if err := r.persist(ctx, cfg.ThreadID, parentID, prior, turn, res.Messages); err != nil {
		return nil, err
	}
	return res, nil
}

// loadPrior returns the thread's persisted messages without system messages.
func (r *Runner) loadPrior(ctx context.Context, threadID string) ([]*schema.Message, string, error) {
	if r.saver == nil {
		return nil, "", nil
	}

	snap, err := r.saver.Latest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load checkpoint: %w", err)
	}

	prior := make([]*schema.Message, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		if m == nil || m.Role == schema.System {
			continue
		}
		prior = append(prior, m)
	}
	return prior, snap.ID, nil
}

func (r *Runner) persist(ctx context.Context, threadID, parentID string, prior, turn, outputs []*schema.Message) error {
	if r.saver == nil {
		return nil
	}

	msgs := make([]*schema.Message, 0, len(prior)+len(turn)+len(outputs))
	msgs = append(msgs, prior...)
	msgs = append(msgs, turn...)
	msgs = append(msgs, outputs...)

	snap := &checkpoint.Snapshot{
		ParentID: parentID,
		Messages: msgs,
		Metadata: map[string]string{"model": r.name},
	}
	if err := r.saver.Put(ctx, threadID, snap); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}
