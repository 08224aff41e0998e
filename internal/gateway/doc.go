// Package gateway orchestrates the skill-gateway server components.
//
// # Overview
//
// The gateway package is the central coordinator of the skill-gateway server.
// It owns the data store, skill registry, turn router, event broadcaster,
// replay cache, and HTTP server, and wires them together at startup.
//
// # HTTP API
//
// The gateway exposes HTTP endpoints in api.go:
//
//   - POST /api/messages - One inbound user turn
//   - POST /api/skills/v3/conversations/{id}/activities - Skill callback
//   - GET /api/conversations/{id}/events - Outbound activity stream (SSE)
//   - GET /healthz - Liveness check
//
// The callback endpoint is bearer-JWT verified and addressed by the opaque
// skill conversation id; the mapper resolves it back to the root
// conversation. An unknown id is rejected with 404.
//
// # Turn Serialization
//
// Turns within one conversation run strictly one at a time, enforced with a
// per-conversation mutex. Turns for different conversations run in parallel.
// A skill that replies synchronously from its activity handler would deadlock
// against the turn lock; skills are expected to ack and reply asynchronously.
//
// # SSE Streaming
//
// Router and skill output is streamed to the user as Server-Sent Events:
//
//	event: message
//	data: {"type":"message","text":"Echo: hello",...}
//
// Trace activities are the exception: they carry raw error detail for
// operators and are logged instead of published.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx)        // blocks until ctx is cancelled
//
// Run shuts the HTTP server down gracefully and releases the broadcaster,
// replay cache, and store.
package gateway
