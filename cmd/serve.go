package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/koopa0/websearch-mcp/internal/config"
	"github.com/koopa0/websearch-mcp/internal/enrich"
	"github.com/koopa0/websearch-mcp/internal/fetch"
	"github.com/koopa0/websearch-mcp/internal/log"
	"github.com/koopa0/websearch-mcp/internal/mcp"
	"github.com/koopa0/websearch-mcp/internal/observability"
	"github.com/koopa0/websearch-mcp/internal/search"
	"github.com/koopa0/websearch-mcp/internal/security"
	"github.com/koopa0/websearch-mcp/internal/web"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/SSE server",
	Long: `Start the session-multiplexed HTTP/SSE server.

Endpoints:
  GET  /sse       open an MCP session as an SSE stream
  POST /messages  deliver a JSON-RPC message to a session
  GET  /health    liveness and live session count`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the full stack and serves until interrupted.
func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	logger.Info("starting websearch-mcp server", "version", AppVersion)

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Tracing.Endpoint != "",
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("trace flush error", "error", err)
		}
	}()

	mcpServer, err := newMCPServer(cfg, logger)
	if err != nil {
		return err
	}

	webServer, err := web.NewServer(web.ServerConfig{
		Logger: logger,
		MCP:    mcpServer,
	})
	if err != nil {
		return fmt.Errorf("creating SSE server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           otelhttp.NewHandler(webServer, "websearch-mcp"),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		// No ReadTimeout/WriteTimeout: SSE streams stay open for the
		// lifetime of a session.
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Server.ListenAddr,
		"sse", "/sse",
		"messages", "/messages",
		"health", "/health",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server", "active_sessions", webServer.Sessions())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// newLogger builds the application logger from configuration.
func newLogger(cfg *config.Config) (log.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, fmt.Errorf("resolving log level: %w", err)
	}
	return log.New(log.Config{Level: level, JSON: cfg.LogJSON}), nil
}

// newMCPServer assembles the search backend, enrichment pipeline and
// protocol server shared by both transports.
func newMCPServer(cfg *config.Config, logger log.Logger) (*mcp.Server, error) {
	searcher := search.NewDuckDuckGo(cfg.Search.Timeout, logger)

	var fetchOpts []fetch.Option
	if cfg.Enrich.BlockPrivateHosts {
		fetchOpts = append(fetchOpts, fetch.WithGuard(security.NewURLGuard()))
	}
	fetcher := fetch.New(cfg.Enrich.FetchTimeout, logger, fetchOpts...)
	pipeline := enrich.New(fetcher, logger)

	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:              "websearch-mcp",
		Version:           AppVersion,
		Logger:            logger,
		Searcher:          searcher,
		Pipeline:          pipeline,
		EnrichConcurrency: cfg.Enrich.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	return mcpServer, nil
}
