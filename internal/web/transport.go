package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koopa0/websearch-mcp/internal/log"
)

// ErrSessionClosed reports an operation on a session whose stream has
// already shut down.
var ErrSessionClosed = errors.New("web: session closed")

// sessionState tracks the transport lifecycle. Transitions are one-way:
// connecting -> open -> closed.
type sessionState int

const (
	stateConnecting sessionState = iota
	stateOpen
	stateClosed
)

// incomingBuffer decouples POST /messages from the protocol loop so a
// slow consumer does not block the HTTP handler.
const incomingBuffer = 16

// SSETransport is a single-use MCP transport bound to one SSE response
// stream. Outbound JSON-RPC messages become "message" events on the
// stream; inbound messages arrive via Deliver from the POST handler.
type SSETransport struct {
	id       string
	endpoint string
	logger   log.Logger

	// mu guards the response stream and state. Writes interleave from
	// the protocol loop and Connect.
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	state   sessionState

	incoming  chan jsonrpc.Message
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSSETransport prepares a transport over the given response writer.
// The writer must support flushing; buffered proxies would otherwise
// stall the event stream indefinitely.
func NewSSETransport(id string, w http.ResponseWriter, logger log.Logger) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	return &SSETransport{
		id:       id,
		endpoint: "/messages?session_id=" + id,
		logger:   logger,
		w:        w,
		flusher:  flusher,
		state:    stateConnecting,
		incoming: make(chan jsonrpc.Message, incomingBuffer),
		closed:   make(chan struct{}),
	}, nil
}

// Connect opens the event stream: it sets the SSE headers, announces the
// message endpoint to the client and hands the connection to the
// protocol loop. It must be called at most once.
func (t *SSETransport) Connect(_ context.Context) (mcp.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case stateOpen:
		return nil, fmt.Errorf("web: transport %s already connected", t.id)
	case stateClosed:
		return nil, ErrSessionClosed
	}

	if hw, ok := t.w.(http.ResponseWriter); ok {
		h := hw.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	}

	if err := t.writeEvent("endpoint", t.endpoint); err != nil {
		return nil, fmt.Errorf("write endpoint event: %w", err)
	}
	t.state = stateOpen

	return t, nil
}

// SessionID identifies this session on the wire.
func (t *SSETransport) SessionID() string { return t.id }

// Read blocks until the POST handler delivers the next client message.
// A closed session reads as io.EOF so the protocol loop terminates
// cleanly.
func (t *SSETransport) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg := <-t.incoming:
		return msg, nil
	case <-t.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write streams one JSON-RPC message to the client as a "message" event.
func (t *SSETransport) Write(_ context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateOpen {
		return ErrSessionClosed
	}
	if err := t.writeEvent("message", string(data)); err != nil {
		return fmt.Errorf("write message event: %w", err)
	}
	return nil
}

// Deliver injects an inbound client message into the session. It is
// called by the POST /messages handler.
func (t *SSETransport) Deliver(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case <-t.closed:
		return ErrSessionClosed
	default:
	}

	select {
	case t.incoming <- msg:
		return nil
	case <-t.closed:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the session down. It is idempotent; pending Reads unblock
// with io.EOF and later Writes and Delivers fail with ErrSessionClosed.
func (t *SSETransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.state = stateClosed
		t.mu.Unlock()
		close(t.closed)
	})
	return nil
}

// writeEvent emits one SSE event and flushes. Callers hold mu. Payload
// lines are prefixed individually per the SSE framing rules.
func (t *SSETransport) writeEvent(event, payload string) error {
	if _, err := fmt.Fprintf(t.w, "event: %s\n", event); err != nil {
		return err
	}
	for _, line := range strings.Split(payload, "\n") {
		if _, err := fmt.Fprintf(t.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(t.w, "\n"); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}
