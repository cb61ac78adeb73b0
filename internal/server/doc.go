// Package server exposes the call orchestrator over HTTP.
//
// The router is chi with request-id, logging, recovery, real-ip and CORS
// middleware. Every endpoint speaks JSON; errors use the envelope
//
//	{"error": {"code": "...", "message": "...", "details": {...}}}
//
// # API Endpoints
//
//   - GET  /health: liveness and whether memory is configured
//   - POST /v1/call: free-form call; body is an orchestrator.CallRequest
//     plus "newThread"
//   - POST /v1/call/structured: as /v1/call with a "schema" object; the
//     response is validated before it is returned
//   - GET  /v1/threads/{threadID}/history: reconstructed thread timeline
//   - GET  /v1/models: known model catalog, optionally filtered by ?family=
//   - GET  /v1/events: Server-Sent Events stream of call lifecycle events,
//     optionally filtered by ?threadId=
//
// # Error Mapping
//
// Configuration errors (unsupported model, missing key, missing thread id,
// unusable memory backend) map to 400. A structured response that fails its
// schema maps to 422. A call whose every candidate failed maps to 502 with
// the last provider error as the message.
package server
