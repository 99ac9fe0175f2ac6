package mcp

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/websearch-mcp/internal/search"
)

// resultsToMCP serializes a result list as a single pretty-printed JSON
// text payload. An empty list serializes as "[]", not null.
func resultsToMCP(results []search.Result) *mcp.CallToolResult {
	if results == nil {
		results = []search.Result{}
	}

	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorTextResult("Error serializing search results: " + err.Error())
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}
}

// searchErrorResult converts a backend fault into a descriptive error
// result. The fault never propagates past the invoker: the transport
// always receives a well-formed response and the session stays alive.
func searchErrorResult(err error) *mcp.CallToolResult {
	return errorTextResult("Error performing search: " + err.Error())
}

func errorTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
