// Package fetch retrieves web pages and extracts their main readable text.
//
// The Fetcher deliberately reports failure as a "no content" outcome
// instead of an error: a single unreachable or unextractable page must
// never abort an enrichment batch. Callers that need to distinguish
// failure modes should consult the debug log.
package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/koopa0/websearch-mcp/internal/log"
	"github.com/koopa0/websearch-mcp/internal/security"
)

const (
	// DefaultTimeout bounds one outbound page fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxLength caps extracted text, in characters.
	DefaultMaxLength = 50000

	// maxBodyBytes caps the raw HTML we are willing to buffer per page.
	maxBodyBytes = 10 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fetcher retrieves pages over HTTP with a browser-like request signature
// and extracts their primary article text.
type Fetcher struct {
	client *http.Client
	guard  *security.URLGuard
	logger log.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithGuard installs an SSRF guard: URLs are validated before the
// request and again at dial time against the resolved IPs.
func WithGuard(g *security.URLGuard) Option {
	return func(f *Fetcher) {
		f.guard = g
		f.client.Transport = g.Transport()
		f.client.CheckRedirect = g.CheckRedirect
	}
}

// New creates a Fetcher. timeout applies per request; zero or negative
// means DefaultTimeout. Redirects are followed and TLS certificates are
// verified (both net/http defaults).
func New(timeout time.Duration, logger log.Logger, opts ...Option) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL and returns its extracted main text, truncated to
// maxLength characters (DefaultMaxLength when maxLength <= 0). The second
// return value is false when the page could not be fetched or no main
// content could be extracted; no failure propagates as an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxLength int) (string, bool) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Scheme == "" {
		f.logger.Debug("skipping unparseable url", "url", rawURL)
		return "", false
	}
	if f.guard != nil {
		if err := f.guard.Validate(rawURL); err != nil {
			f.logger.Debug("blocked url", "url", rawURL, "error", err)
			return "", false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		f.logger.Debug("building page request failed", "url", rawURL, "error", err)
		return "", false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("page fetch failed", "url", rawURL, "error", err)
		return "", false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		f.logger.Debug("page fetch non-200", "url", rawURL, "status", resp.StatusCode)
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.logger.Debug("reading page body failed", "url", rawURL, "error", err)
		return "", false
	}

	text, ok := extract(body, resp.Request.URL)
	if !ok {
		f.logger.Debug("no extractable content", "url", rawURL)
		return "", false
	}

	return truncate(text, maxLength), true
}

// extract isolates the main article text from an HTML document, dropping
// navigation, boilerplate, markup, links and images. Favors precision:
// when readability finds nothing it is confident in, report no content.
func extract(html []byte, pageURL *url.URL) (string, bool) {
	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", false
	}
	return text, true
}

// truncate cuts s to at most n characters on a rune boundary. The original
// implementation cut raw bytes; rune-safe is preferred so multi-byte
// sequences never split.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
