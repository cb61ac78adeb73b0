package orchestrator_test

import (
	"context"
	"errors"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/opencode-ai/llmcall/internal/agent"
	"github.com/opencode-ai/llmcall/internal/checkpoint"
	"github.com/opencode-ai/llmcall/internal/event"
	"github.com/opencode-ai/llmcall/internal/message"
	"github.com/opencode-ai/llmcall/internal/orchestrator"
	"github.com/opencode-ai/llmcall/internal/provider"
	"github.com/opencode-ai/llmcall/internal/structured"
	"github.com/opencode-ai/llmcall/pkg/types"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx context.Context
		h   *harness
		cfg types.Config
		req orchestrator.CallRequest
	)

	BeforeEach(func() {
		ctx = context.Background()
		h = newHarness()
		cfg = types.Config{
			Tokens:   allTokens,
			Model:    "gpt-4o",
			Fallback: []string{"gemini-2.5-flash", "openrouter/openai/gpt-4o"},
		}
		req = orchestrator.CallRequest{
			Messages:   []types.Message{message.Human("hello")},
			MaxRetries: intPtr(1),
		}
	})

	newOrchestrator := func(extra ...orchestrator.Option) *orchestrator.Orchestrator {
		o, err := orchestrator.New(cfg, h.options(extra...)...)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(o.Close)
		return o
	}

	Describe("candidate order", func() {
		It("returns the primary's response without touching fallbacks", func() {
			h.on("gpt-4o", succeed("from primary"))

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("from primary"))
			Expect(resp.Model).To(Equal("gpt-4o"))
			Expect(h.calls).To(Equal([]string{"gpt-4o"}))
		})

		It("tries candidates in strict order until one succeeds", func() {
			h.on("gpt-4o", fail(errors.New("primary down"))).
				on("gemini-2.5-flash", fail(errors.New("gemini down"))).
				on("openrouter/openai/gpt-4o", succeed("from openrouter"))

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("from openrouter"))
			Expect(resp.Model).To(Equal("openrouter/openai/gpt-4o"))
			Expect(h.calls).To(Equal([]string{"gpt-4o", "gemini-2.5-flash", "openrouter/openai/gpt-4o"}))
		})

		It("stops at the first fallback that succeeds", func() {
			h.on("gpt-4o", fail(errors.New("primary down"))).
				on("gemini-2.5-flash", succeed("from gemini")).
				on("openrouter/openai/gpt-4o", succeed("unused"))

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("from gemini"))
			Expect(h.calls).To(HaveLen(2))
		})

		It("uses the request's fallback list instead of the configured one", func() {
			req.Fallback = []string{"gemini-2.0-flash"}
			h.on("gpt-4o", fail(errors.New("down"))).
				on("gemini-2.0-flash", succeed("override"))

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("override"))
			Expect(h.calls).To(Equal([]string{"gpt-4o", "gemini-2.0-flash"}))
		})

		It("disables fallback with an empty request list", func() {
			req.Fallback = []string{}
			boom := errors.New("down")
			h.on("gpt-4o", fail(boom))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).To(BeIdenticalTo(boom))
			Expect(h.calls).To(Equal([]string{"gpt-4o"}))
		})

		It("uses the request model over the configured one", func() {
			req.Model = "gemini-2.5-pro"
			req.Fallback = []string{}
			h.on("gemini-2.5-pro", succeed("pro"))

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Model).To(Equal("gemini-2.5-pro"))
		})
	})

	Describe("retries", func() {
		It("retries a candidate before falling back", func() {
			req.MaxRetries = intPtr(3)
			h.on("gpt-4o", func(n int, _ agent.InvokeConfig) (*agent.Result, error) {
				if n < 3 {
					return nil, errors.New("flaky")
				}
				return succeed("third time")(n, agent.InvokeConfig{})
			})

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("third time"))
			Expect(h.calls).To(Equal([]string{"gpt-4o", "gpt-4o", "gpt-4o"}))
		})

		It("spends every candidate's budget and returns the last error unchanged", func() {
			req.MaxRetries = intPtr(3)
			last := errors.New("openrouter down")
			h.on("gpt-4o", fail(errors.New("primary down"))).
				on("gemini-2.5-flash", fail(errors.New("gemini down"))).
				on("openrouter/openai/gpt-4o", fail(last))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).To(BeIdenticalTo(last))
			Expect(h.callCount()).To(Equal(9))
			Expect(h.calls[:3]).To(HaveEach("gpt-4o"))
			Expect(h.calls[3:6]).To(HaveEach("gemini-2.5-flash"))
			Expect(h.calls[6:]).To(HaveEach("openrouter/openai/gpt-4o"))
		})

		It("uses the configured budget, then the default of three", func() {
			req.MaxRetries = nil
			req.Fallback = []string{}
			h.on("gpt-4o", fail(errors.New("down")))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).To(HaveOccurred())
			Expect(h.callCount()).To(Equal(orchestrator.DefaultMaxRetries))

			h = newHarness().on("gpt-4o", fail(errors.New("down")))
			cfg.MaxRetries = intPtr(2)
			_, err = newOrchestrator().Call(ctx, req)
			Expect(err).To(HaveOccurred())
			Expect(h.callCount()).To(Equal(2))
		})

		It("makes one attempt when the budget is zero", func() {
			req.MaxRetries = intPtr(0)
			req.Fallback = []string{}
			h.on("gpt-4o", fail(errors.New("down")))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).To(HaveOccurred())
			Expect(h.callCount()).To(Equal(1))
		})
	})

	Describe("configuration errors", func() {
		It("fails without a model", func() {
			cfg.Model = ""
			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).To(MatchError(orchestrator.ErrNoModel))
		})

		It("rejects unsupported model names before calling anything", func() {
			req.Fallback = []string{"claude-3-5-sonnet"}
			h.on("gpt-4o", succeed("unused"))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(errors.Is(err, provider.ErrModelNotSupported)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Model not supported"))
			Expect(h.resolves).To(BeZero())
			Expect(h.callCount()).To(BeZero())
		})

		It("requires the key of every candidate before calling anything", func() {
			cfg.Tokens = types.Tokens{OpenAIAPIKey: "sk-openai"}
			h.on("gpt-4o", succeed("unused"))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(errors.Is(err, provider.ErrAPIKeyMissing)).To(BeTrue())
			var ce *provider.ConfigError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Model).To(Equal("gemini-2.5-flash"))
			Expect(h.callCount()).To(BeZero())
		})

		It("requires a thread id when memory is configured, before any client exists", func() {
			cfg.Memory = &types.MemoryConfig{Kind: "memory"}
			h.on("gpt-4o", succeed("unused"))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).To(MatchError(orchestrator.ErrThreadIDRequired))
			Expect(h.resolves).To(BeZero())
			Expect(h.callCount()).To(BeZero())
		})

		It("surfaces a missing driver as a construction error naming the package", func() {
			cfg.Memory = &types.MemoryConfig{Kind: "postgres", ConnectionString: "postgres://localhost/llmcall"}
			req.ThreadID = "t1"
			h.on("gpt-4o", succeed("unused"))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(errors.Is(err, checkpoint.ErrDriverMissing)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("github.com/jackc/pgx/v5/stdlib"))
			Expect(h.callCount()).To(BeZero())
		})

		It("rejects an invalid memory config at construction", func() {
			cfg.Memory = &types.MemoryConfig{Kind: "cassandra"}
			_, err := orchestrator.New(cfg)
			Expect(errors.Is(err, checkpoint.ErrInvalidConfig)).To(BeTrue())
		})
	})

	Describe("input errors", func() {
		It("rejects a message no model can take before resolving any candidate", func() {
			req.MaxRetries = intPtr(3)
			req.Messages = []types.Message{{Role: types.RoleTool, Text: "42"}}

			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).To(MatchError(agent.ErrInvalidMessages))
			Expect(h.resolves).To(BeZero())
			Expect(h.callCount()).To(BeZero())
		})

		It("neither retries nor falls back when the agent rejects the input", func() {
			req.MaxRetries = intPtr(3)
			h.on("gpt-4o", fail(agent.ErrEmptyInput)).
				on("gemini-2.5-flash", succeed("unreachable"))

			bus := event.NewBus()
			var fallbacks int
			bus.Subscribe(event.CallFallback, func(event.Event) { fallbacks++ })

			_, err := newOrchestrator(orchestrator.WithBus(bus)).Call(ctx, req)
			Expect(err).To(MatchError(agent.ErrEmptyInput))
			Expect(h.calls).To(Equal([]string{"gpt-4o"}))
			Expect(fallbacks).To(BeZero())
		})
	})

	Describe("audio input", func() {
		var audio types.Message

		BeforeEach(func() {
			var err error
			audio, err = message.HumanWithAudio("Voice command:", message.Media{Data: []byte("RIFF"), Filename: "cmd.wav"})
			Expect(err).NotTo(HaveOccurred())
			req.Messages = []types.Message{audio}
			cfg.Fallback = []string{"openrouter/openai/gpt-4o", "openrouter/google/gemini-2.5-pro"}
		})

		It("sends raw audio to direct models and one shared transcript to routed ones", func() {
			tr := &countingTranscriber{text: "lights on"}
			h.on("gpt-4o", fail(errors.New("primary down"))).
				on("openrouter/openai/gpt-4o", fail(errors.New("routed down"))).
				on("openrouter/google/gemini-2.5-pro", succeed("done"))

			resp, err := newOrchestrator(orchestrator.WithTranscriber(tr)).Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Model).To(Equal("openrouter/google/gemini-2.5-pro"))

			Expect(h.inputs).To(HaveLen(3))
			Expect(h.inputs[0]).To(Equal([]types.Message{audio}))
			transcribed := []types.Message{{Role: types.RoleHuman, Text: "Voice command:\n\nlights on"}}
			Expect(h.inputs[1]).To(Equal(transcribed))
			Expect(h.inputs[2]).To(Equal(transcribed))
			Expect(tr.calls).To(Equal(1))
		})

		It("fails a routed candidate without a transcriber and moves on", func() {
			cfg.Fallback = []string{"openrouter/openai/gpt-4o", "gemini-2.5-flash"}
			h.on("gpt-4o", fail(errors.New("primary down"))).
				on("gemini-2.5-flash", succeed("heard you"))

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Model).To(Equal("gemini-2.5-flash"))
			Expect(h.calls).To(Equal([]string{"gpt-4o", "gemini-2.5-flash"}))
			Expect(h.inputs[1]).To(Equal([]types.Message{audio}))
		})
	})

	Describe("responses", func() {
		It("substitutes a placeholder for an empty final message", func() {
			h.on("gpt-4o", succeed(""))

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal(orchestrator.Placeholder))
		})

		It("substitutes a placeholder when no message came back", func() {
			h.on("gpt-4o", func(int, agent.InvokeConfig) (*agent.Result, error) {
				return &agent.Result{}, nil
			})

			resp, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("No response generated"))
		})

		It("passes the system prompt and thread to the agent", func() {
			req.SystemPrompt = "be brief"
			req.ThreadID = "t9"
			h.on("gpt-4o", succeed("ok"))

			_, err := newOrchestrator().Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.configs[0].SystemPrompt).To(Equal("be brief"))
			Expect(h.configs[0].ThreadID).To(Equal("t9"))
			Expect(h.configs[0].Structured).To(BeNil())
		})
	})

	Describe("structured output", func() {
		It("decodes a valid response", func() {
			h.on("gpt-4o", structuredReply(`{"value": 42, "unit": null}`))

			resp, err := orchestrator.CallStructured[answer](ctx, newOrchestrator(), req, answerSchema)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Response.Value).To(Equal(42))
			Expect(resp.Response.Unit).To(BeNil())
			Expect(resp.Model).To(Equal("gpt-4o"))
		})

		It("normalizes the schema for OpenAI-family candidates only", func() {
			h.on("gpt-4o", fail(errors.New("down"))).
				on("gemini-2.5-flash", structuredReply(`{"value": 1}`))

			_, err := orchestrator.CallStructured[answer](ctx, newOrchestrator(), req, answerSchema)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.configs).To(HaveLen(2))

			openai := h.configs[0].Structured
			Expect(openai).NotTo(BeNil())
			Expect(openai.Fields[1].Optional).To(BeFalse())
			Expect(openai.Fields[1].Nullable).To(BeTrue())

			gemini := h.configs[1].Structured
			Expect(gemini.Fields[1].Optional).To(BeTrue())
			Expect(gemini.Fields[1].Nullable).To(BeFalse())
		})

		It("treats a validation failure as terminal", func() {
			h.on("gpt-4o", structuredReply(`{"value": "forty-two"}`)).
				on("gemini-2.5-flash", structuredReply(`{"value": 42}`))

			_, err := orchestrator.CallStructured[answer](ctx, newOrchestrator(), req, answerSchema)
			var ve *structured.ValidationError
			Expect(errors.As(err, &ve)).To(BeTrue())
			Expect(h.calls).To(Equal([]string{"gpt-4o"}))
		})

		It("reports a missing structured payload as a validation error", func() {
			h.on("gpt-4o", succeed("plain text"))

			_, err := orchestrator.CallStructured[answer](ctx, newOrchestrator(), req, answerSchema)
			Expect(errors.Is(err, structured.ErrMissingResponse)).To(BeTrue())
		})
	})

	Describe("events", func() {
		It("publishes the lifecycle in order", func() {
			bus := event.NewBus()
			var mu sync.Mutex
			var seen []event.EventType
			bus.SubscribeAll(func(e event.Event) {
				mu.Lock()
				seen = append(seen, e.Type)
				mu.Unlock()
			})

			h.on("gpt-4o", fail(errors.New("down"))).
				on("gemini-2.5-flash", succeed("ok"))

			_, err := newOrchestrator(orchestrator.WithBus(bus)).Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			mu.Lock()
			defer mu.Unlock()
			Expect(seen).To(Equal([]event.EventType{
				event.CallStarted,
				event.CallAttempt,
				event.CallFallback,
				event.CallAttempt,
				event.CallSucceeded,
			}))
		})

		It("warns about a dropped reasoningEffort without failing", func() {
			bus := event.NewBus()
			var warnings []event.ModelWarningData
			bus.Subscribe(event.ModelWarning, func(e event.Event) {
				warnings = append(warnings, e.Data.(event.ModelWarningData))
			})

			req.ModelConfig = &types.ModelConfig{ReasoningEffort: "high"}
			h.on("gpt-4o", succeed("ok"))

			_, err := newOrchestrator(orchestrator.WithBus(bus)).Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(warnings).To(HaveLen(1))
			Expect(warnings[0].Model).To(Equal("gemini-2.5-flash"))
		})

		It("publishes exhaustion with the total attempt count", func() {
			bus := event.NewBus()
			var exhausted *event.CallExhaustedData
			bus.Subscribe(event.CallExhausted, func(e event.Event) {
				d := e.Data.(event.CallExhaustedData)
				exhausted = &d
			})

			req.MaxRetries = intPtr(2)
			h.on("gpt-4o", fail(errors.New("a"))).
				on("gemini-2.5-flash", fail(errors.New("b"))).
				on("openrouter/openai/gpt-4o", fail(errors.New("c")))

			_, err := newOrchestrator(orchestrator.WithBus(bus)).Call(ctx, req)
			Expect(err).To(MatchError("c"))
			Expect(exhausted).NotTo(BeNil())
			Expect(exhausted.Attempts).To(Equal(6))
		})
	})

	Describe("tracing", func() {
		It("records a call span and one span per candidate", func() {
			sr := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
			DeferCleanup(tp.Shutdown, context.Background())

			h.on("gpt-4o", fail(errors.New("down"))).
				on("gemini-2.5-flash", succeed("ok"))

			_, err := newOrchestrator(orchestrator.WithTracer(tp.Tracer("test"))).Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			var names []string
			for _, s := range sr.Ended() {
				names = append(names, s.Name())
			}
			Expect(names).To(ConsistOf("llmcall.candidate", "llmcall.candidate", "llmcall.call"))
		})
	})

	Describe("persistence", func() {
		It("shares one checkpointer across candidates and calls", func() {
			cfg.Memory = &types.MemoryConfig{Kind: "memory"}
			req.ThreadID = "t1"
			h.on("gpt-4o", fail(errors.New("down"))).
				on("gemini-2.5-flash", succeed("ok"))

			o := newOrchestrator()
			_, err := o.Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			_, err = o.Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			saver, err := o.Checkpointer(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(saver).NotTo(BeNil())
			Expect(h.savers).To(HaveLen(4))
			for _, s := range h.savers {
				Expect(s).To(BeIdenticalTo(saver))
			}
		})

		It("prefers an explicit checkpointer over the memory config", func() {
			explicit := checkpoint.NewMemorySaver()
			cfg.Memory = &types.MemoryConfig{Kind: "postgres", ConnectionString: "postgres://unused"}

			o := newOrchestrator(orchestrator.WithCheckpointer(explicit))
			saver, err := o.Checkpointer(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(saver).To(BeIdenticalTo(explicit))
		})

		It("has no checkpointer without memory config", func() {
			o := newOrchestrator()
			saver, err := o.Checkpointer(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(saver).To(BeNil())

			_, err = o.History(ctx, "t1")
			Expect(err).To(MatchError(orchestrator.ErrNoCheckpointer))
		})

		It("rebuilds history from the runner's snapshots", func() {
			cfg.Memory = &types.MemoryConfig{Kind: "memory"}
			runner := func(client *provider.Client, saver checkpoint.Saver, tools []einotool.InvokableTool) agent.Agent {
				return agent.NewRunner(client.Name.Raw, echoModel{}, agent.WithCheckpointer(saver))
			}
			o := newOrchestrator(orchestrator.WithAgentFactory(runner))

			req.ThreadID = "chat"
			req.SystemPrompt = "hidden"
			req.Messages = []types.Message{message.Human("one")}
			resp, err := o.Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Text).To(Equal("echo: one"))

			req.Messages = []types.Message{message.Human("two")}
			_, err = o.Call(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			hist, err := o.History(ctx, "chat")
			Expect(err).NotTo(HaveOccurred())
			Expect(hist.FullHistory).To(HaveLen(2))

			var got []string
			for _, m := range hist.Messages {
				got = append(got, string(m.Role)+":"+m.Content)
			}
			Expect(got).To(Equal([]string{"human:one", "ai:echo: one", "human:two", "ai:echo: two"}))
			Expect(hist.Messages[0].CreatedAt).To(Equal(hist.Messages[1].CreatedAt))
			Expect(hist.Messages[2].CreatedAt).To(Equal(hist.FullHistory[0].CreatedAt))
		})

		It("requires a thread id for history", func() {
			cfg.Memory = &types.MemoryConfig{Kind: "memory"}
			_, err := newOrchestrator().History(ctx, "")
			Expect(err).To(MatchError(orchestrator.ErrThreadIDRequired))
		})
	})
})

var _ = Describe("Call with the default runner", func() {
	It("drives the eino model through the agent", func() {
		factory := func(client *provider.Client, saver checkpoint.Saver, tools []einotool.InvokableTool) agent.Agent {
			return agent.NewRunner(client.Name.Raw, echoModel{})
		}
		o, err := orchestrator.New(types.Config{Tokens: allTokens, Model: "gpt-4o"},
			orchestrator.WithResolver(newHarness().resolver()),
			orchestrator.WithAgentFactory(factory),
			orchestrator.WithBus(event.NewBus()),
		)
		Expect(err).NotTo(HaveOccurred())

		resp, err := o.Call(context.Background(), orchestrator.CallRequest{
			Messages: []types.Message{message.Human("ping")},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Text).To(Equal("echo: ping"))
		Expect(resp.Messages).To(HaveLen(1))
		Expect(resp.Messages[0].Role).To(Equal(types.RoleAI))
	})

	It("applies the configured tool switches", func() {
		recorder := &toolRecorder{}
		resolver := func(ctx context.Context, opts provider.Options) (*provider.Client, error) {
			return provider.NewClientWithModel(opts.Name, recorder), nil
		}
		o, err := orchestrator.New(types.Config{
			Tokens: allTokens,
			Model:  "gpt-4o",
			Tools:  map[string]bool{"mcp_*": false, "mcp_search*": true},
		},
			orchestrator.WithResolver(resolver),
			orchestrator.WithBus(event.NewBus()),
			orchestrator.WithTools(namedTool("mcp_fetch"), namedTool("mcp_search_web"), namedTool("calculator")),
		)
		Expect(err).NotTo(HaveOccurred())

		_, err = o.Call(context.Background(), orchestrator.CallRequest{
			Messages: []types.Message{message.Human("ping")},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.bound).To(ConsistOf("mcp_search_web", "calculator"))
	})
})
