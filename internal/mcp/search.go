package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/websearch-mcp/internal/enrich"
	"github.com/koopa0/websearch-mcp/internal/search"
)

// Argument defaults applied when a caller omits a field. These mirror the
// published tool schemas.
const (
	defaultRegion           = "us-en"
	defaultSafeSearch       = "moderate"
	defaultMaxResults       = 10
	defaultMaxContentLength = 50000
)

// TextSearchInput is the input for the search_text tool.
type TextSearchInput struct {
	Query            string `json:"query" jsonschema:"Search query"`
	Region           string `json:"region,omitempty" jsonschema:"Region code, e.g. us-en, uk-en"`
	SafeSearch       string `json:"safesearch,omitempty" jsonschema:"Safe search level"`
	TimeLimit        string `json:"timelimit,omitempty" jsonschema:"Restrict results by age"`
	MaxResults       int    `json:"max_results,omitempty" jsonschema:"Maximum number of results"`
	FetchFullContent bool   `json:"fetch_full_content,omitempty" jsonschema:"If true, fetches and returns the full text content of each result page. This provides complete context but adds latency."`
	MaxContentLength int    `json:"max_content_length,omitempty" jsonschema:"Maximum characters of content to fetch per page (only used if fetch_full_content is true)."`
}

// SearchInput is the input shared by search_news, search_images and
// search_videos.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"Search query"`
	Region     string `json:"region,omitempty" jsonschema:"Region code, e.g. us-en, uk-en"`
	SafeSearch string `json:"safesearch,omitempty" jsonschema:"Safe search level"`
	TimeLimit  string `json:"timelimit,omitempty" jsonschema:"Restrict results by age"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results"`
}

// BookSearchInput is the input for the search_books tool.
type BookSearchInput struct {
	Query      string `json:"query" jsonschema:"Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results"`
}

// registerSearchTools registers the fixed tool catalog.
func (s *Server) registerSearchTools() error {
	textSchema, err := searchSchema[TextSearchInput]()
	if err != nil {
		return fmt.Errorf("schema for search_text: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_text",
		Description: "Perform a text search on the web. Use this for general web queries. Optionally fetch full page content for complete context.",
		InputSchema: textSchema,
	}, s.SearchText)

	newsSchema, err := searchSchema[SearchInput]()
	if err != nil {
		return fmt.Errorf("schema for search_news: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_news",
		Description: "Perform a news search.",
		InputSchema: newsSchema,
	}, s.SearchNews)

	imagesSchema, err := searchSchema[SearchInput]()
	if err != nil {
		return fmt.Errorf("schema for search_images: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_images",
		Description: "Perform an image search.",
		InputSchema: imagesSchema,
	}, s.SearchImages)

	videosSchema, err := searchSchema[SearchInput]()
	if err != nil {
		return fmt.Errorf("schema for search_videos: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_videos",
		Description: "Perform a video search.",
		InputSchema: videosSchema,
	}, s.SearchVideos)

	booksSchema, err := jsonschema.For[BookSearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search_books: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_books",
		Description: "Perform a book search (backend capability dependent).",
		InputSchema: booksSchema,
	}, s.SearchBooks)

	return nil
}

// searchSchema infers the schema for a search input struct and annotates
// the shared fields with enum constraints and defaults.
func searchSchema[T any]() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	if p, ok := schema.Properties["region"]; ok {
		p.Default = json.RawMessage(`"us-en"`)
	}
	if p, ok := schema.Properties["safesearch"]; ok {
		p.Enum = []any{"on", "moderate", "off"}
		p.Default = json.RawMessage(`"moderate"`)
	}
	if p, ok := schema.Properties["timelimit"]; ok {
		p.Enum = []any{"d", "w", "m", "y"}
	}
	if p, ok := schema.Properties["max_results"]; ok {
		p.Default = json.RawMessage(`10`)
	}
	if p, ok := schema.Properties["max_content_length"]; ok {
		p.Default = json.RawMessage(`50000`)
	}
	return schema, nil
}

// SearchText handles the search_text MCP tool call. It is the only tool
// that may route results through the enrichment pipeline.
func (s *Server) SearchText(ctx context.Context, _ *mcp.CallToolRequest, in TextSearchInput) (*mcp.CallToolResult, any, error) {
	s.logger.Info("tool call", "tool", "search_text", "query", in.Query, "fetch_full_content", in.FetchFullContent)

	results, err := s.searcher.Text(ctx, searchQuery(in.Query, in.Region, in.SafeSearch, in.TimeLimit, in.MaxResults))
	if err != nil {
		return searchErrorResult(err), nil, nil
	}

	if in.FetchFullContent && len(results) > 0 {
		maxLength := in.MaxContentLength
		if maxLength <= 0 {
			maxLength = defaultMaxContentLength
		}
		results = s.pipeline.Enrich(ctx, results, enrich.Options{
			Concurrency: s.enrichConcurrency,
			MaxLength:   maxLength,
		})
	}

	return resultsToMCP(results), nil, nil
}

// SearchNews handles the search_news MCP tool call.
func (s *Server) SearchNews(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	s.logger.Info("tool call", "tool", "search_news", "query", in.Query)

	results, err := s.searcher.News(ctx, searchQuery(in.Query, in.Region, in.SafeSearch, in.TimeLimit, in.MaxResults))
	if err != nil {
		return searchErrorResult(err), nil, nil
	}
	return resultsToMCP(results), nil, nil
}

// SearchImages handles the search_images MCP tool call.
func (s *Server) SearchImages(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	s.logger.Info("tool call", "tool", "search_images", "query", in.Query)

	results, err := s.searcher.Images(ctx, searchQuery(in.Query, in.Region, in.SafeSearch, in.TimeLimit, in.MaxResults))
	if err != nil {
		return searchErrorResult(err), nil, nil
	}
	return resultsToMCP(results), nil, nil
}

// SearchVideos handles the search_videos MCP tool call.
func (s *Server) SearchVideos(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	s.logger.Info("tool call", "tool", "search_videos", "query", in.Query)

	results, err := s.searcher.Videos(ctx, searchQuery(in.Query, in.Region, in.SafeSearch, in.TimeLimit, in.MaxResults))
	if err != nil {
		return searchErrorResult(err), nil, nil
	}
	return resultsToMCP(results), nil, nil
}

// SearchBooks handles the search_books MCP tool call. Backend capability
// was discovered once at construction; an unsupported backend yields a
// descriptive error result, not a fault.
func (s *Server) SearchBooks(ctx context.Context, _ *mcp.CallToolRequest, in BookSearchInput) (*mcp.CallToolResult, any, error) {
	s.logger.Info("tool call", "tool", "search_books", "query", in.Query)

	if !s.caps.Books {
		return errorTextResult("Error: 'books' search backend is not available."), nil, nil
	}

	results, err := s.searcher.Books(ctx, searchQuery(in.Query, "", "", "", in.MaxResults))
	if err != nil {
		return searchErrorResult(err), nil, nil
	}
	return resultsToMCP(results), nil, nil
}

// searchQuery assembles a backend query with catalog defaults applied.
func searchQuery(query, region, safeSearch, timeLimit string, maxResults int) search.Query {
	if region == "" {
		region = defaultRegion
	}
	if safeSearch == "" {
		safeSearch = defaultSafeSearch
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return search.Query{
		Query:      query,
		Region:     region,
		SafeSearch: safeSearch,
		TimeLimit:  timeLimit,
		MaxResults: maxResults,
	}
}
