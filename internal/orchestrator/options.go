package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	einotool "github.com/cloudwego/eino/components/tool"
	"go.opentelemetry.io/otel/trace"

	"github.com/opencode-ai/llmcall/internal/agent"
	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/event"
	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/internal/provider"
)

const (
	// DefaultMaxRetries is the per-candidate attempt budget.
	DefaultMaxRetries = 3
	// RetryInitialInterval is the delay before the second attempt.
	RetryInitialInterval = time.Second
	// RetryMultiplier grows the delay between attempts.
	RetryMultiplier = 2.0
	// RetryMaxInterval caps a single delay.
	RetryMaxInterval = time.Minute
)

// Resolver constructs the provider client for a candidate.
type Resolver func(ctx context.Context, opts provider.Options) (*provider.Client, error)

// AgentFactory builds the agent that invokes a candidate. saver is nil when
// persistence is not configured.
type AgentFactory func(client *provider.Client, saver checkpoint.Saver, tools []einotool.InvokableTool) agent.Agent

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBackOff replaces the retry schedule. The function is called once per
// candidate; the attempt budget is applied on top of what it returns.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *Orchestrator) {
		o.newBackOff = fn
	}
}

// WithResolver replaces provider client construction.
func WithResolver(r Resolver) Option {
	return func(o *Orchestrator) {
		o.resolve = r
	}
}

// WithAgentFactory replaces the default Runner-based agent.
func WithAgentFactory(f AgentFactory) Option {
	return func(o *Orchestrator) {
		o.newAgent = f
	}
}

// WithBus publishes lifecycle events to bus instead of the global bus.
func WithBus(bus *event.Bus) Option {
	return func(o *Orchestrator) {
		o.bus = bus
	}
}

// WithTools binds tools to every invocation.
func WithTools(tools ...einotool.InvokableTool) Option {
	return func(o *Orchestrator) {
		o.tools = append(o.tools, tools...)
	}
}

// WithCheckpointer attaches an existing backend. It takes precedence over
// the memory config, and Close does not close it.
func WithCheckpointer(s checkpoint.Saver) Option {
	return func(o *Orchestrator) {
		o.saver = s
	}
}

// WithTranscriber transcribes audio messages for candidates that cannot take
// raw audio. Without one such candidates fail on audio input.
func WithTranscriber(tr message.Transcriber) Option {
	return func(o *Orchestrator) {
		o.transcriber = tr
	}
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.Multiplier = RetryMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = RetryMaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// retryPolicy limits b to attempts tries in total and stops on ctx.
func retryPolicy(ctx context.Context, b backoff.BackOff, attempts int) backoff.BackOff {
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

func defaultResolver(ctx context.Context, opts provider.Options) (*provider.Client, error) {
	return provider.NewClient(ctx, opts)
}

// runnerAgent is the default AgentFactory. It applies the configured tool
// switches.
func (o *Orchestrator) runnerAgent(client *provider.Client, saver checkpoint.Saver, tools []einotool.InvokableTool) agent.Agent {
	opts := []agent.Option{agent.WithTools(tools...), agent.WithToolFilter(o.cfg.Tools)}
	if saver != nil {
		opts = append(opts, agent.WithCheckpointer(saver))
	}
	return agent.NewRunner(client.Name.Raw, client.ChatModel(), opts...)
}
