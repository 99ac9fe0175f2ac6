package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/koopa0/websearch-mcp/internal/log"
	"github.com/koopa0/websearch-mcp/internal/mcp"
)

// maxMessageBytes caps a single POSTed JSON-RPC message.
const maxMessageBytes = 4 << 20

// Server is the HTTP server multiplexing MCP sessions over SSE.
type Server struct {
	mux      *http.ServeMux
	mcp      *mcp.Server
	registry *Registry
	logger   log.Logger
}

// ServerConfig contains configuration for creating the SSE server.
type ServerConfig struct {
	Logger log.Logger

	// MCP is the protocol server run once per session (required).
	MCP *mcp.Server
}

// NewServer creates an SSE server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.MCP == nil {
		return nil, errors.New("MCP server is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		mcp:      cfg.MCP,
		registry: NewRegistry(),
		logger:   cfg.Logger,
	}

	s.mux.HandleFunc("GET /sse", s.handleSSE)
	s.mux.HandleFunc("POST /messages", s.handleMessages)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s, nil
}

// ServeHTTP implements http.Handler with middleware stack.
// Order matters: recovery catches panics, logging tracks requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := recoveryMiddleware(s.logger)(loggingMiddleware(s.logger)(s.mux))
	handler.ServeHTTP(w, r)
}

// handleSSE owns one session end to end: it mints the session ID,
// registers the transport, runs the MCP protocol loop on the request
// goroutine and tears the session down when the client disconnects.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()

	transport, err := NewSSETransport(sessionID, w, s.logger)
	if err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if err := s.registry.Add(transport); err != nil {
		http.Error(w, "session collision", http.StatusInternalServerError)
		return
	}

	s.logger.Info("new SSE connection", "session_id", sessionID)
	defer func() {
		s.registry.Remove(sessionID)
		_ = transport.Close()
		s.logger.Info("closing SSE connection", "session_id", sessionID)
	}()

	// Run blocks until the client disconnects or the server shuts down.
	// Both surface as context cancellation or a closed transport, which
	// are routine teardown, not faults.
	err = s.mcp.Run(r.Context(), transport)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrSessionClosed) && !errors.Is(err, io.EOF) {
		s.logger.Error("SSE session error", "session_id", sessionID, "error", err)
	}
}

// handleMessages routes a POSTed JSON-RPC message to the session named
// in the query string.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing session_id"})
		return
	}

	transport, ok := s.registry.Get(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found or expired"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
		return
	}

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON-RPC message"})
		return
	}

	if err := transport.Deliver(r.Context(), msg); err != nil {
		// The session closed between lookup and delivery.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found or expired"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealth reports liveness and the live session count.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.registry.Len(),
	})
}

// Sessions reports the number of live SSE sessions.
func (s *Server) Sessions() int {
	return s.registry.Len()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
