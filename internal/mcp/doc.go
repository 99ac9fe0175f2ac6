// Package mcp implements the Model Context Protocol server exposing the
// web-search tool catalog.
//
// The server wraps the official MCP SDK and registers five tools:
//
//   - search_text: web search, optionally enriched with the full extracted
//     text of each result page
//   - search_news, search_images, search_videos: kind-specific searches
//   - search_books: registered for catalog stability; answers with a
//     descriptive error when the backend lacks the capability
//
// Tool handlers follow the net/http.Handler pattern: input schemas are
// inferred from structs with jsonschema-go, responses are built inline,
// and any backend fault is converted into an IsError text result so no
// fault ever escapes to the transport layer.
//
// The server is transport-agnostic: Run accepts any mcp.Transport, so the
// same instance serves stdio and the HTTP/SSE session transport in
// internal/web.
package mcp
