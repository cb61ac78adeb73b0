package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opencode-ai/llmcall/internal/agent"
	"github.com/opencode-ai/llmcall/internal/event"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/internal/provider"
	"github.com/opencode-ai/llmcall/internal/structured"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// CallRequest describes one call.
type CallRequest struct {
	// Model is the primary model. Empty means the configured default.
	Model string `json:"model,omitempty"`
	// Fallback overrides the configured fallback list when non-nil. An empty
	// non-nil slice disables fallback.
	Fallback     []string        `json:"aiModelsFallback,omitempty"`
	Messages     []types.Message `json:"messages"`
	SystemPrompt string          `json:"systemPrompt,omitempty"`
	// MaxRetries is the number of attempts per candidate. Nil means the
	// configured value, then DefaultMaxRetries.
	MaxRetries  *int               `json:"maxRetries,omitempty"`
	ModelConfig *types.ModelConfig `json:"modelConfig,omitempty"`
	ThreadID    string             `json:"threadId,omitempty"`
}

// CallResponse is the result of a free-form call.
type CallResponse struct {
	Text string `json:"text"`
	// Messages are the messages the answering model and its tools produced
	// during this call, final answer last. The caller's input and any thread
	// history are not included; see Orchestrator.History for the thread.
	Messages []types.Message `json:"messages"`
	// Model is the candidate that answered.
	Model string `json:"model"`
}

// StructuredResponse is the result of a structured call.
type StructuredResponse[T any] struct {
	Response T               `json:"response"`
	Raw      json.RawMessage `json:"raw"`
	Model    string          `json:"model"`
}

// candidate is a validated entry of the candidate list.
type candidate struct {
	name provider.ModelName
	opts provider.Options
}

// Call runs a free-form call. The error of the last candidate is returned
// unchanged when every candidate fails.
func (o *Orchestrator) Call(ctx context.Context, req CallRequest) (*CallResponse, error) {
	res, c, err := o.invoke(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	text := message.ContentText(res.Last())
	if text == "" {
		text = Placeholder
		logging.Component("orchestrator").Warn().
			Str("model", c.name.Raw).
			Msg("empty response, using placeholder")
	}

	return &CallResponse{
		Text:     text,
		Messages: message.FromEino(res.Messages),
		Model:    c.name.Raw,
	}, nil
}

// CallStructured runs a call whose response must follow s. The schema is
// normalized per candidate. A response that fails validation is returned as
// a *structured.ValidationError and is not retried.
func CallStructured[T any](ctx context.Context, o *Orchestrator, req CallRequest, s structured.Schema) (*StructuredResponse[T], error) {
	res, c, err := o.invoke(ctx, req, &s)
	if err != nil {
		return nil, err
	}

	normalized := structured.Normalize(s, c.name)
	out, err := structured.Decode[T](normalized, res.Structured)
	if err != nil {
		logging.Component("orchestrator").Error().Err(err).
			Str("model", c.name.Raw).
			Msg("structured response failed validation")
		return nil, err
	}

	return &StructuredResponse[T]{
		Response: out,
		Raw:      res.Structured,
		Model:    c.name.Raw,
	}, nil
}

// candidates returns the validated candidate list. Every candidate's
// configuration is checked before any model is called.
func (o *Orchestrator) candidates(req CallRequest) ([]candidate, error) {
	primary := req.Model
	if primary == "" {
		primary = o.cfg.Model
	}
	if primary == "" {
		return nil, ErrNoModel
	}

	fallback := req.Fallback
	if fallback == nil {
		fallback = o.cfg.Fallback
	}

	mc := types.ModelConfig{}
	if req.ModelConfig != nil {
		mc = *req.ModelConfig
	} else if o.cfg.ModelConfig != nil {
		mc = *o.cfg.ModelConfig
	}

	names := append([]string{primary}, fallback...)
	out := make([]candidate, 0, len(names))
	for _, raw := range names {
		name, err := provider.ParseModelName(raw)
		if err != nil {
			return nil, err
		}
		opts, err := provider.BuildOptions(name, o.cfg.Tokens, mc)
		if err != nil {
			return nil, err
		}
		for _, w := range opts.Warnings {
			o.bus.PublishSync(event.Event{
				Type: event.ModelWarning,
				Data: event.ModelWarningData{Model: name.Raw, Message: w},
			})
		}
		out = append(out, candidate{name: name, opts: opts})
	}
	return out, nil
}

func (o *Orchestrator) maxRetries(req CallRequest) int {
	n := DefaultMaxRetries
	if req.MaxRetries != nil {
		n = *req.MaxRetries
	} else if o.cfg.MaxRetries != nil {
		n = *o.cfg.MaxRetries
	}
	if n < 1 {
		n = 1
	}
	return n
}

// run is the per-call state shared by every candidate.
type run struct {
	req    CallRequest
	schema *structured.Schema
	budget int
	audio  *message.Transcripts
}

// invoke walks the candidate list in order and returns the first success.
// Errors caused by the caller's input stop the walk.
func (o *Orchestrator) invoke(ctx context.Context, req CallRequest, s *structured.Schema) (*agent.Result, candidate, error) {
	log := logging.Component("orchestrator")

	if o.Persistent() && req.ThreadID == "" {
		return nil, candidate{}, ErrThreadIDRequired
	}

	cands, err := o.candidates(req)
	if err != nil {
		return nil, candidate{}, err
	}

	// Messages no model can take are rejected before any model is called.
	if _, err := message.ToEino(req.Messages); err != nil {
		return nil, candidate{}, fmt.Errorf("%w: %w", agent.ErrInvalidMessages, err)
	}

	// Construction errors are fatal and surface before any model is called.
	if _, err := o.Checkpointer(ctx); err != nil {
		return nil, candidate{}, err
	}

	r := &run{
		req:    req,
		schema: s,
		budget: o.maxRetries(req),
		audio:  message.NewTranscripts(o.transcriber),
	}
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.name.Raw
	}

	ctx, span := o.tracer.Start(ctx, "llmcall.call", trace.WithAttributes(
		attribute.StringSlice("llmcall.candidates", names),
		attribute.String("llmcall.thread_id", req.ThreadID),
		attribute.Int("llmcall.max_retries", r.budget),
		attribute.Bool("llmcall.structured", s != nil),
	))
	defer span.End()

	o.bus.PublishSync(event.Event{
		Type: event.CallStarted,
		Data: event.CallStartedData{ThreadID: req.ThreadID, Candidates: names, Structured: s != nil},
	})

	total := 0
	var lastErr error
	for i, c := range cands {
		res, attempts, err := o.attempt(ctx, r, i, c)
		total += attempts
		if err == nil {
			span.SetAttributes(attribute.String("llmcall.model", c.name.Raw), attribute.Int("llmcall.attempts", total))
			o.bus.PublishSync(event.Event{
				Type: event.CallSucceeded,
				Data: event.CallSucceededData{
					ThreadID:    req.ThreadID,
					Model:       c.name.Raw,
					Attempts:    total,
					Placeholder: s == nil && message.ContentText(res.Last()) == "",
				},
			})
			log.Debug().Str("model", c.name.Raw).Int("attempts", total).Msg("call succeeded")
			return res, c, nil
		}

		lastErr = err
		if agent.IsInputError(err) {
			log.Warn().Err(err).Str("model", c.name.Raw).Msg("input rejected, not falling back")
			break
		}
		if i+1 < len(cands) {
			next := cands[i+1].name.Raw
			log.Warn().Err(err).Str("from", c.name.Raw).Str("to", next).Msg("model failed, falling back")
			o.bus.PublishSync(event.Event{
				Type: event.CallFallback,
				Data: event.CallFallbackData{ThreadID: req.ThreadID, From: c.name.Raw, To: next, Error: err.Error()},
			})
		}
	}

	log.Error().Err(lastErr).Int("attempts", total).Msg("all models failed")
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	o.bus.PublishSync(event.Event{
		Type: event.CallExhausted,
		Data: event.CallExhaustedData{ThreadID: req.ThreadID, Attempts: total, Error: lastErr.Error()},
	})
	return nil, candidate{}, lastErr
}

// attempt runs one candidate with its retry budget. It returns the number of
// invocations made. Input errors are not retried.
func (o *Orchestrator) attempt(ctx context.Context, r *run, index int, c candidate) (*agent.Result, int, error) {
	ctx, span := o.tracer.Start(ctx, "llmcall.candidate", trace.WithAttributes(
		attribute.String("llmcall.model", c.name.Raw),
		attribute.String("llmcall.family", c.name.Family.String()),
		attribute.Int("llmcall.candidate.index", index),
	))
	defer span.End()

	fail := func(err error, attempts int) (*agent.Result, int, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Int("llmcall.attempts", attempts))
		return nil, attempts, err
	}

	msgs, err := r.audio.ForModel(ctx, c.name, r.req.Messages)
	if err != nil {
		return fail(err, 0)
	}

	client, err := o.resolve(ctx, c.opts)
	if err != nil {
		return fail(err, 0)
	}

	saver, err := o.Checkpointer(ctx)
	if err != nil {
		return fail(err, 0)
	}
	ag := o.newAgent(client, saver, o.tools)

	cfg := agent.InvokeConfig{
		ThreadID:     r.req.ThreadID,
		SystemPrompt: r.req.SystemPrompt,
	}
	if r.schema != nil {
		normalized := structured.Normalize(*r.schema, c.name)
		cfg.Structured = &normalized
	}

	attempts := 0
	op := func() (*agent.Result, error) {
		attempts++
		res, err := ag.Invoke(ctx, msgs, cfg)
		data := event.CallAttemptData{ThreadID: r.req.ThreadID, Model: c.name.Raw, Index: index, Attempt: attempts}
		if err != nil {
			data.Error = err.Error()
		}
		o.bus.PublishSync(event.Event{Type: event.CallAttempt, Data: data})
		if agent.IsInputError(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, wait time.Duration) {
		logging.Component("orchestrator").Debug().Err(err).
			Str("model", c.name.Raw).
			Int("attempt", attempts).
			Dur("wait", wait).
			Msg("retrying")
	}

	res, err := backoff.RetryNotifyWithData(op, retryPolicy(ctx, o.newBackOff(), r.budget), notify)
	if err != nil {
		return fail(err, attempts)
	}
	if res == nil {
		res = &agent.Result{}
	}
	span.SetAttributes(attribute.Int("llmcall.attempts", attempts))
	return res, attempts, nil
}
