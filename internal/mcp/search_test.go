package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/websearch-mcp/internal/enrich"
	"github.com/koopa0/websearch-mcp/internal/log"
	"github.com/koopa0/websearch-mcp/internal/search"
)

// fakeSearcher is a scripted search.Searcher recording the last query.
type fakeSearcher struct {
	results   []search.Result
	err       error
	caps      search.Capabilities
	lastQuery search.Query
	lastKind  string
}

func (f *fakeSearcher) Text(_ context.Context, q search.Query) ([]search.Result, error) {
	f.lastQuery, f.lastKind = q, "text"
	return f.results, f.err
}

func (f *fakeSearcher) News(_ context.Context, q search.Query) ([]search.Result, error) {
	f.lastQuery, f.lastKind = q, "news"
	return f.results, f.err
}

func (f *fakeSearcher) Images(_ context.Context, q search.Query) ([]search.Result, error) {
	f.lastQuery, f.lastKind = q, "images"
	return f.results, f.err
}

func (f *fakeSearcher) Videos(_ context.Context, q search.Query) ([]search.Result, error) {
	f.lastQuery, f.lastKind = q, "videos"
	return f.results, f.err
}

func (f *fakeSearcher) Books(_ context.Context, q search.Query) ([]search.Result, error) {
	f.lastQuery, f.lastKind = q, "books"
	return f.results, f.err
}

func (f *fakeSearcher) Capabilities() search.Capabilities { return f.caps }

// fetcherFunc adapts a function to enrich.PageFetcher.
type fetcherFunc func(ctx context.Context, url string, maxLength int) (string, bool)

func (f fetcherFunc) Fetch(ctx context.Context, url string, maxLength int) (string, bool) {
	return f(ctx, url, maxLength)
}

func okFetcher() enrich.PageFetcher {
	return fetcherFunc(func(_ context.Context, url string, _ int) (string, bool) {
		return "page text for " + url, true
	})
}

func newTestServer(t *testing.T, searcher *fakeSearcher, fetcher enrich.PageFetcher) *Server {
	t.Helper()

	s, err := NewServer(Config{
		Name:     "websearch-test",
		Version:  "0.0.1",
		Logger:   log.NewNop(),
		Searcher: searcher,
		Pipeline: enrich.New(fetcher, log.NewNop()),
	})
	require.NoError(t, err)
	return s
}

// textPayload decodes the single text content of a tool result.
func textPayload(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content type = %T, want *mcp.TextContent", result.Content[0])
	return tc.Text
}

func TestNewServer_Validation(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{caps: search.Capabilities{Text: true}}
	pipeline := enrich.New(okFetcher(), log.NewNop())

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing name", Config{Version: "1", Searcher: searcher, Pipeline: pipeline}},
		{"missing version", Config{Name: "x", Searcher: searcher, Pipeline: pipeline}},
		{"missing searcher", Config{Name: "x", Version: "1", Pipeline: pipeline}},
		{"missing pipeline", Config{Name: "x", Version: "1", Searcher: searcher}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewServer(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSearchText_AppliesDefaults(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []search.Result{}}
	s := newTestServer(t, searcher, okFetcher())

	_, _, err := s.SearchText(context.Background(), &mcp.CallToolRequest{}, TextSearchInput{Query: "golang"})
	require.NoError(t, err)

	assert.Equal(t, "us-en", searcher.lastQuery.Region)
	assert.Equal(t, "moderate", searcher.lastQuery.SafeSearch)
	assert.Empty(t, searcher.lastQuery.TimeLimit)
	assert.Equal(t, 10, searcher.lastQuery.MaxResults)
}

func TestSearchText_ReturnsPrettyJSON(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []search.Result{
		{"title": "Go", "href": "https://go.dev", "body": "The Go site"},
	}}
	s := newTestServer(t, searcher, okFetcher())

	result, _, err := s.SearchText(context.Background(), &mcp.CallToolRequest{}, TextSearchInput{Query: "golang"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	payload := textPayload(t, result)
	assert.Contains(t, payload, "\n  ", "payload should be indented")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "https://go.dev", decoded[0]["href"])
	assert.NotContains(t, decoded[0], "full_content", "no enrichment unless requested")
}

func TestSearchText_FetchFullContent(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []search.Result{
		{"title": "Go", "href": "https://go.dev"},
		{"title": "No URL here"},
	}}
	s := newTestServer(t, searcher, okFetcher())

	result, _, err := s.SearchText(context.Background(), &mcp.CallToolRequest{}, TextSearchInput{
		Query:            "golang",
		FetchFullContent: true,
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(textPayload(t, result)), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "page text for https://go.dev", decoded[0]["full_content"])
	assert.Equal(t, enrich.Sentinel, decoded[1]["full_content"])
}

func TestSearchText_BackendFailure(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: errors.New("backend exploded")}
	s := newTestServer(t, searcher, okFetcher())

	result, _, err := s.SearchText(context.Background(), &mcp.CallToolRequest{}, TextSearchInput{Query: "golang"})
	require.NoError(t, err, "backend faults must not escape the invoker")
	require.True(t, result.IsError)
	assert.Contains(t, textPayload(t, result), "Error performing search: backend exploded")
}

func TestSearchNews_NeverEnriches(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []search.Result{
		{"title": "Story", "url": "https://example.com/story"},
	}}
	fetchCalled := false
	s := newTestServer(t, searcher, fetcherFunc(func(context.Context, string, int) (string, bool) {
		fetchCalled = true
		return "x", true
	}))

	result, _, err := s.SearchNews(context.Background(), &mcp.CallToolRequest{}, SearchInput{Query: "golang"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.False(t, fetchCalled, "only search_text may enrich")
	assert.Equal(t, "news", searcher.lastKind)
}

func TestSearchBooks_UnavailableBackend(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{caps: search.Capabilities{Text: true, Books: false}}
	s := newTestServer(t, searcher, okFetcher())

	result, _, err := s.SearchBooks(context.Background(), &mcp.CallToolRequest{}, BookSearchInput{Query: "golang"})
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, textPayload(t, result), "'books' search backend is not available")
	assert.Empty(t, searcher.lastKind, "backend must not be called without the capability")
}

func TestSearchBooks_SupportedBackend(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{
		caps:    search.Capabilities{Books: true},
		results: []search.Result{{"title": "The Go Programming Language"}},
	}
	s := newTestServer(t, searcher, okFetcher())

	result, _, err := s.SearchBooks(context.Background(), &mcp.CallToolRequest{}, BookSearchInput{Query: "golang"})
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "books", searcher.lastKind)
}

func TestSearch_EmptyResults(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: nil}
	s := newTestServer(t, searcher, okFetcher())

	result, _, err := s.SearchImages(context.Background(), &mcp.CallToolRequest{}, SearchInput{Query: "golang"})
	require.NoError(t, err)
	assert.Equal(t, "[]", textPayload(t, result), "nil results serialize as an empty list")
}
