package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	einotool "github.com/cloudwego/eino/components/tool"
	"go.opentelemetry.io/otel/trace"

	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/event"
	"github.com/opencode-ai/llmcall/internal/history"
	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/internal/telemetry"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// Placeholder replaces an empty final response.
const Placeholder = "No response generated"

var (
	// ErrThreadIDRequired is returned when persistence is configured and a
	// call carries no thread id.
	ErrThreadIDRequired = errors.New("threadId is required when memory is configured")
	// ErrNoModel is returned when neither the request nor the config names a
	// model.
	ErrNoModel = errors.New("no model specified")
	// ErrNoCheckpointer is returned by History when persistence is not
	// configured.
	ErrNoCheckpointer = errors.New("no checkpointer configured")
)

// Orchestrator runs calls against an ordered list of candidate models.
type Orchestrator struct {
	cfg types.Config

	saver checkpoint.Saver
	lazy  *checkpoint.Lazy

	tools       []einotool.InvokableTool
	transcriber message.Transcriber
	resolve     Resolver
	newAgent    AgentFactory
	newBackOff  func() backoff.BackOff
	bus         *event.Bus
	tracer      trace.Tracer
}

// New creates an Orchestrator. A memory config is validated here but its
// backend is constructed on first use.
func New(cfg types.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:        cfg,
		resolve:    defaultResolver,
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.newAgent == nil {
		o.newAgent = o.runnerAgent
	}
	if o.bus == nil {
		o.bus = event.Default()
	}
	if o.tracer == nil {
		o.tracer = telemetry.Tracer()
	}

	if o.saver == nil {
		mc, err := checkpoint.FromMemoryConfig(cfg.Memory)
		if err != nil {
			return nil, err
		}
		if mc != nil {
			o.lazy = checkpoint.NewLazy(mc)
		}
	}
	return o, nil
}

// Persistent reports whether a checkpointer is configured.
func (o *Orchestrator) Persistent() bool {
	return o.saver != nil || o.lazy != nil
}

// Checkpointer returns the configured backend, constructing it on first
// use. It returns nil when persistence is not configured.
func (o *Orchestrator) Checkpointer(ctx context.Context) (checkpoint.Saver, error) {
	if o.saver != nil {
		return o.saver, nil
	}
	if o.lazy == nil {
		return nil, nil
	}
	return o.lazy.Get(ctx)
}

// History reconstructs the thread's timeline from the checkpointer.
func (o *Orchestrator) History(ctx context.Context, threadID string) (*history.Result, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	saver, err := o.Checkpointer(ctx)
	if err != nil {
		return nil, err
	}
	if saver == nil {
		return nil, ErrNoCheckpointer
	}
	return history.Reconstruct(ctx, threadID, saver)
}

// Close closes a checkpointer built from the memory config. A backend
// passed with WithCheckpointer is left open.
func (o *Orchestrator) Close() error {
	if o.lazy == nil {
		return nil
	}
	if err := o.lazy.Close(); err != nil {
		return fmt.Errorf("failed to close checkpointer: %w", err)
	}
	return nil
}
