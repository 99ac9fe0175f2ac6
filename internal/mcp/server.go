package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/websearch-mcp/internal/enrich"
	"github.com/koopa0/websearch-mcp/internal/log"
	"github.com/koopa0/websearch-mcp/internal/search"
)

// Server wraps the MCP SDK server with the web-search tool catalog.
type Server struct {
	mcpServer *mcp.Server
	searcher  search.Searcher
	pipeline  *enrich.Pipeline
	logger    log.Logger

	// caps is queried once at construction; per-call capability checks
	// are deliberately avoided.
	caps search.Capabilities

	enrichConcurrency int
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Logger  log.Logger

	// Searcher is the backend search collaborator (required).
	Searcher search.Searcher

	// Pipeline enriches text-search results (required).
	Pipeline *enrich.Pipeline

	// EnrichConcurrency caps simultaneous page fetches per tool call;
	// <= 0 means enrich.DefaultConcurrency.
	EnrichConcurrency int
}

// NewServer creates an MCP server with all search tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("enrichment pipeline is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer:         mcpServer,
		searcher:          cfg.Searcher,
		pipeline:          cfg.Pipeline,
		logger:            cfg.Logger,
		caps:              cfg.Searcher.Capabilities(),
		enrichConcurrency: cfg.EnrichConcurrency,
	}

	if err := s.registerSearchTools(); err != nil {
		return nil, fmt.Errorf("registering search tools: %w", err)
	}

	return s, nil
}

// Run serves MCP protocol traffic on the given transport until the
// connection closes or ctx is canceled. Each call creates an independent
// protocol session; Run may be invoked concurrently with distinct
// transports.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}
