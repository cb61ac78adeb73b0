/*
Package event provides the pub/sub channel for call lifecycle events.

The orchestrator publishes an event at each state transition of a call so
that logs, metrics or a UI can follow retries and fallbacks without being
coupled to the orchestrator.

# Event Types

  - call.started: a call was accepted; data lists the candidate models
  - call.attempt: one invocation attempt against a candidate finished
  - call.fallback: a candidate exhausted its retries and the next one is tried
  - call.succeeded: a candidate produced a response
  - call.exhausted: every candidate failed
  - model.warning: a non-fatal diagnostic, such as a dropped option

# Usage

Subscribers receive the typed data directly:

	unsub := event.Subscribe(event.CallFallback, func(e event.Event) {
		data := e.Data.(event.CallFallbackData)
		log.Printf("falling back from %s to %s", data.From, data.To)
	})
	defer unsub()

[Bus.Publish] delivers asynchronously, one goroutine per subscriber.
[Bus.PublishSync] delivers in the caller's goroutine; the orchestrator uses
it so subscribers observe transitions in order.

# Watermill

Every published event is also encoded as JSON and published on [Topic] of
the bus's watermill GoChannel, with the event type in the "type" metadata
key. [Bus.Messages] subscribes to that stream; the HTTP server uses it for
its event feed.

# Testing

Tests should create an isolated bus with [NewBus], or call [Reset] to
replace the global one.
*/
package event
