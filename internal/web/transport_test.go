package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/websearch-mcp/internal/log"
)

func decodeTestMessage(t *testing.T, raw string) jsonrpc.Message {
	t.Helper()

	msg, err := jsonrpc.DecodeMessage([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestSSETransport_RequiresFlusher(t *testing.T) {
	t.Parallel()

	// A bare ResponseWriter without Flush cannot stream events.
	_, err := NewSSETransport("sess-1", nopResponseWriter{}, log.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flusher")
}

func TestSSETransport_ConnectAnnouncesEndpoint(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	transport, err := NewSSETransport("sess-1", rec, log.NewNop())
	require.NoError(t, err)

	conn, err := transport.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-1", conn.SessionID())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.Equal(t, "event: endpoint\ndata: /messages?session_id=sess-1\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestSSETransport_ConnectTwice(t *testing.T) {
	t.Parallel()

	transport := newTestTransport(t, "sess-1")

	_, err := transport.Connect(context.Background())
	require.NoError(t, err)

	_, err = transport.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestSSETransport_WriteStreamsMessageEvent(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	transport, err := NewSSETransport("sess-1", rec, log.NewNop())
	require.NoError(t, err)

	conn, err := transport.Connect(context.Background())
	require.NoError(t, err)

	msg := decodeTestMessage(t, `{"jsonrpc":"2.0","id":1,"result":{}}`)
	require.NoError(t, conn.Write(context.Background(), msg))

	assert.Contains(t, rec.Body.String(), "event: message\ndata: {")
	assert.Contains(t, rec.Body.String(), `"jsonrpc":"2.0"`)
}

func TestSSETransport_DeliverReadRoundTrip(t *testing.T) {
	t.Parallel()

	transport := newTestTransport(t, "sess-1")
	conn, err := transport.Connect(context.Background())
	require.NoError(t, err)

	sent := decodeTestMessage(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	require.NoError(t, transport.Deliver(context.Background(), sent))

	got, err := conn.Read(context.Background())
	require.NoError(t, err)

	raw, err := jsonrpc.EncodeMessage(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"method":"ping"}`, string(raw))
}

func TestSSETransport_ReadHonorsContext(t *testing.T) {
	t.Parallel()

	transport := newTestTransport(t, "sess-1")
	conn, err := transport.Connect(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = conn.Read(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSSETransport_Close(t *testing.T) {
	t.Parallel()

	transport := newTestTransport(t, "sess-1")
	conn, err := transport.Connect(context.Background())
	require.NoError(t, err)

	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close(), "Close is idempotent")

	_, err = conn.Read(context.Background())
	require.ErrorIs(t, err, io.EOF, "a closed session reads as clean EOF")

	msg := decodeTestMessage(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.ErrorIs(t, conn.Write(context.Background(), msg), ErrSessionClosed)
	require.ErrorIs(t, transport.Deliver(context.Background(), msg), ErrSessionClosed)

	_, err = transport.Connect(context.Background())
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSSETransport_CloseUnblocksPendingRead(t *testing.T) {
	t.Parallel()

	transport := newTestTransport(t, "sess-1")
	conn, err := transport.Connect(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, readErr := conn.Read(context.Background())
		errCh <- readErr
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, transport.Close())

	select {
	case readErr := <-errCh:
		assert.ErrorIs(t, readErr, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Read did not unblock after Close")
	}
}

// nopResponseWriter implements http.ResponseWriter without http.Flusher.
type nopResponseWriter struct{}

func (nopResponseWriter) Header() http.Header         { return http.Header{} }
func (nopResponseWriter) Write(b []byte) (int, error) { return len(b), nil }
func (nopResponseWriter) WriteHeader(int)             {}
