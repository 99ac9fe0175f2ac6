package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/websearch-mcp/internal/log"
)

const sampleResultsPage = `<!DOCTYPE html><html><body>
<div class="results">
  <div class="result result--ad">
    <a class="result__a" href="https://duckduckgo.com/y.js?ad=1">Sponsored</a>
  </div>
  <div class="result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">Go Documentation</a>
    <a class="result__snippet">The Go programming <b>language</b> docs.</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://go.dev/blog/">The Go Blog</a>
    <a class="result__snippet">News from the Go project.</a>
  </div>
  <div class="result">
    <a class="result__a" href="https://pkg.go.dev/">Package index</a>
    <a class="result__snippet">Discover packages.</a>
  </div>
</div>
</body></html>`

func TestDuckDuckGo_Text(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"q":  r.PostFormValue("q"),
			"kl": r.PostFormValue("kl"),
			"df": r.PostFormValue("df"),
		}
		if c, err := r.Cookie("kp"); err == nil {
			gotForm["kp"] = c.Value
		}
		fmt.Fprint(w, sampleResultsPage)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5*time.Second, log.NewNop(), WithEndpoints(srv.URL, srv.URL))

	results, err := d.Text(context.Background(), Query{
		Query:      "golang",
		Region:     "uk-en",
		SafeSearch: "on",
		TimeLimit:  "w",
		MaxResults: 10,
	})
	require.NoError(t, err)

	// The ad block is skipped; the three organic hits survive in order.
	require.Len(t, results, 3)
	assert.Equal(t, "Go Documentation", results[0]["title"])
	assert.Equal(t, "https://go.dev/doc/", results[0]["href"], "uddg redirect should be unwrapped")
	assert.Equal(t, "The Go programming language docs.", results[0]["body"])
	assert.Equal(t, "https://go.dev/blog/", results[1]["href"])
	assert.Equal(t, "https://pkg.go.dev/", results[2]["href"])

	assert.Equal(t, "golang", gotForm["q"])
	assert.Equal(t, "uk-en", gotForm["kl"])
	assert.Equal(t, "w", gotForm["df"])
	assert.Equal(t, "1", gotForm["kp"], "safesearch on maps to kp=1")
}

func TestDuckDuckGo_Text_MaxResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sampleResultsPage)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5*time.Second, log.NewNop(), WithEndpoints(srv.URL, srv.URL))

	results, err := d.Text(context.Background(), Query{Query: "golang", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDuckDuckGo_Text_BackendDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5*time.Second, log.NewNop(), WithEndpoints(srv.URL, srv.URL))

	_, err := d.Text(context.Background(), Query{Query: "golang"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestDuckDuckGo_News(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Landing page embedding the vqd token.
		fmt.Fprint(w, `<script>vqd="4-123456789";</script>`)
	})
	mux.HandleFunc("/news.js", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4-123456789", r.URL.Query().Get("vqd"))
		assert.Equal(t, "us-en", r.URL.Query().Get("l"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[
			{"date":1700000000,"title":"Go 1.22 released","excerpt":"The release.","url":"https://go.dev/blog/go1.22","image":"https://go.dev/img.png","source":"go.dev"},
			{"date":1700001000,"title":"Another story","excerpt":"Body.","url":"https://example.com/2","image":"","source":"example"}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDuckDuckGo(5*time.Second, log.NewNop(), WithEndpoints(srv.URL, srv.URL))

	results, err := d.News(context.Background(), Query{Query: "golang", Region: "us-en", MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Go 1.22 released", results[0]["title"])
	assert.Equal(t, "The release.", results[0]["body"])
	assert.Equal(t, "https://go.dev/blog/go1.22", results[0]["url"])
	assert.Equal(t, "2023-11-14T22:13:20Z", results[0]["date"], "epoch date converts to RFC3339")
}

func TestDuckDuckGo_News_NoVQD(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html>no token here</html>`)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5*time.Second, log.NewNop(), WithEndpoints(srv.URL, srv.URL))

	_, err := d.News(context.Background(), Query{Query: "golang"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vqd token")
}

func TestDuckDuckGo_Books_Unsupported(t *testing.T) {
	t.Parallel()

	d := NewDuckDuckGo(time.Second, log.NewNop())

	caps := d.Capabilities()
	assert.False(t, caps.Books)
	assert.True(t, caps.Text)

	_, err := d.Books(context.Background(), Query{Query: "golang"})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSafeSearchLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1", safeSearchLevel("on"))
	assert.Equal(t, "-1", safeSearchLevel("moderate"))
	assert.Equal(t, "-1", safeSearchLevel(""))
	assert.Equal(t, "-2", safeSearchLevel("off"))
	assert.Equal(t, "-2", safeSearchLevel("OFF"))
}

func TestUnwrapRedirect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&rut=x", "https://go.dev/"},
		{"https://go.dev/doc/", "https://go.dev/doc/"},
		{"//example.com/page", "https://example.com/page"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, unwrapRedirect(tt.in), "input %q", tt.in)
	}
}
