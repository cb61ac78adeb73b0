// Package agent runs a single model invocation for the orchestrator.
//
// The orchestrator treats an invocation as opaque: it hands an [Agent] the
// caller's messages and an [InvokeConfig], and gets back the messages the
// model produced plus, for structured calls, the raw structured payload.
// Retry and fallback live above this package.
//
// # Runner
//
// [Runner] is the default [Agent]. It drives an Eino ToolCallingChatModel:
//
//	runner := agent.NewRunner("gpt-4o", chatModel,
//	    agent.WithTools(calculator),
//	    agent.WithCheckpointer(saver),
//	)
//	res, err := runner.Invoke(ctx, msgs, agent.InvokeConfig{
//	    ThreadID:     "thread-1",
//	    SystemPrompt: "Answer briefly.",
//	})
//
// Each step sends the conversation to the model. Tool calls are executed and
// their results appended as tool messages until the model answers without
// calling a tool, or [MaxSteps] is reached.
//
// # Structured output
//
// When InvokeConfig.Structured is set, the runner binds an extra tool named
// [RespondTool] whose parameters are the schema. The arguments of the first
// call to that tool become Result.Structured. Models that answer in plain
// text instead are accepted when the text is a JSON document, optionally
// wrapped in a markdown code fence.
//
// # Persistence
//
// With a checkpointer the runner loads the thread's latest snapshot, places
// its messages between the system prompt and the new turn, and after a
// successful invocation appends a snapshot holding the prior messages, the
// new turn and the model output. The system prompt is never persisted.
//
// # Tool filtering
//
// [WithToolFilter] enables or disables tools by name. Keys are exact names
// or wildcard patterns; "*" matches every tool, "mcp_*" a prefix and "**"
// patterns are matched with doublestar. Tools not matched stay enabled.
package agent
