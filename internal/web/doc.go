// Package web serves the MCP protocol over the HTTP+SSE wire transport.
//
// Each GET /sse connection becomes an independent MCP session: the server
// allocates a session ID, streams an initial "endpoint" event telling the
// client where to POST, then relays JSON-RPC messages as "message" events.
// POST /messages?session_id=<id> injects client messages into the matching
// session. GET /health reports liveness and the live session count.
//
// SSETransport implements the SDK transport contract, so the same MCP
// server instance that serves stdio serves every SSE session here.
package web
