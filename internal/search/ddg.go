package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/koopa0/websearch-mcp/internal/log"
)

// ErrUnsupported indicates the backend has no implementation for the
// requested search kind. Callers should consult Capabilities first.
var ErrUnsupported = errors.New("search kind not supported by backend")

const (
	defaultHTMLEndpoint = "https://html.duckduckgo.com/html/"
	defaultAPIEndpoint  = "https://duckduckgo.com"

	// browserUserAgent keeps us reachable on servers that reject
	// unlabelled bot traffic.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// vqdRe extracts the query-scoped token DuckDuckGo requires on its JSON
// endpoints (news.js, i.js, v.js).
var vqdRe = regexp.MustCompile(`vqd=['"]?([^&'"]+)`)

// DuckDuckGo implements Searcher against DuckDuckGo's HTML and JSON
// endpoints. Text search scrapes the HTML endpoint; news, image and video
// search use the JSON endpoints behind a vqd token.
//
// Books are not supported: DuckDuckGo exposes no book backend, so
// Capabilities reports Books=false and Books() returns ErrUnsupported.
type DuckDuckGo struct {
	client *http.Client
	logger log.Logger

	// Endpoint overrides for tests; empty means production defaults.
	htmlEndpoint string
	apiEndpoint  string
}

// DuckDuckGoOption customizes a DuckDuckGo client.
type DuckDuckGoOption func(*DuckDuckGo)

// WithEndpoints overrides the HTML and JSON API endpoints. Tests point
// these at httptest servers.
func WithEndpoints(htmlEndpoint, apiEndpoint string) DuckDuckGoOption {
	return func(d *DuckDuckGo) {
		d.htmlEndpoint = htmlEndpoint
		d.apiEndpoint = apiEndpoint
	}
}

// NewDuckDuckGo creates a DuckDuckGo search client. timeout bounds each
// backend call end to end.
func NewDuckDuckGo(timeout time.Duration, logger log.Logger, opts ...DuckDuckGoOption) *DuckDuckGo {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	d := &DuckDuckGo{
		client:       &http.Client{Timeout: timeout},
		logger:       logger,
		htmlEndpoint: defaultHTMLEndpoint,
		apiEndpoint:  defaultAPIEndpoint,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Capabilities reports the search kinds this client implements.
func (d *DuckDuckGo) Capabilities() Capabilities {
	return Capabilities{Text: true, News: true, Images: true, Videos: true, Books: false}
}

// Text performs a web search via the HTML endpoint and scrapes the result
// list. Returned keys: title, href, body.
func (d *DuckDuckGo) Text(ctx context.Context, q Query) ([]Result, error) {
	form := url.Values{}
	form.Set("q", q.Query)
	form.Set("b", "")
	form.Set("kl", q.Region)
	if q.TimeLimit != "" {
		form.Set("df", q.TimeLimit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.htmlEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building text search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	d.setBrowserHeaders(req)
	// The HTML endpoint reads safe search from the kp cookie.
	req.AddCookie(&http.Cookie{Name: "kp", Value: safeSearchLevel(q.SafeSearch)})

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("text search: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing text search response: %w", err)
	}

	max := maxResults(q)
	results := make([]Result, 0, max)
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.HasClass("result--ad") {
			return true
		}
		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		target := unwrapRedirect(href)
		if target == "" {
			return true
		}
		results = append(results, Result{
			"title": strings.TrimSpace(anchor.Text()),
			"href":  target,
			"body":  strings.TrimSpace(sel.Find(".result__snippet").Text()),
		})
		return len(results) < max
	})

	d.logger.Debug("text search complete", "query", q.Query, "results", len(results))
	return results, nil
}

// News searches via the news.js JSON endpoint.
// Returned keys: date, title, body, url, image, source.
func (d *DuckDuckGo) News(ctx context.Context, q Query) ([]Result, error) {
	raw, err := d.jsonSearch(ctx, "/news.js", q, url.Values{"noamp": {"1"}})
	if err != nil {
		return nil, fmt.Errorf("news search: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, item := range raw {
		r := Result{
			"title":  item["title"],
			"body":   item["excerpt"],
			"url":    item["url"],
			"image":  item["image"],
			"source": item["source"],
		}
		if epoch, ok := item["date"].(float64); ok {
			r["date"] = time.Unix(int64(epoch), 0).UTC().Format(time.RFC3339)
		}
		results = append(results, r)
	}
	return results, nil
}

// Images searches via the i.js JSON endpoint.
// Returned keys: title, image, thumbnail, url, height, width, source.
func (d *DuckDuckGo) Images(ctx context.Context, q Query) ([]Result, error) {
	raw, err := d.jsonSearch(ctx, "/i.js", q, url.Values{"f": {",,,"}})
	if err != nil {
		return nil, fmt.Errorf("image search: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, item := range raw {
		results = append(results, Result{
			"title":     item["title"],
			"image":     item["image"],
			"thumbnail": item["thumbnail"],
			"url":       item["url"],
			"height":    item["height"],
			"width":     item["width"],
			"source":    item["source"],
		})
	}
	return results, nil
}

// Videos searches via the v.js JSON endpoint.
// Returned keys: title, content, description, duration, published,
// publisher, uploader, embed_url.
func (d *DuckDuckGo) Videos(ctx context.Context, q Query) ([]Result, error) {
	raw, err := d.jsonSearch(ctx, "/v.js", q, nil)
	if err != nil {
		return nil, fmt.Errorf("video search: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, item := range raw {
		results = append(results, Result{
			"title":       item["title"],
			"content":     item["content"],
			"description": item["description"],
			"duration":    item["duration"],
			"published":   item["published"],
			"publisher":   item["publisher"],
			"uploader":    item["uploader"],
			"embed_url":   item["embed_url"],
		})
	}
	return results, nil
}

// Books is not available on DuckDuckGo.
func (d *DuckDuckGo) Books(ctx context.Context, q Query) ([]Result, error) {
	return nil, ErrUnsupported
}

// jsonSearch drives the vqd-token JSON endpoints shared by news, image
// and video search, returning at most q.MaxResults raw items.
func (d *DuckDuckGo) jsonSearch(ctx context.Context, path string, q Query, extra url.Values) ([]map[string]any, error) {
	vqd, err := d.fetchVQD(ctx, q.Query)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("l", q.Region)
	params.Set("o", "json")
	params.Set("q", q.Query)
	params.Set("vqd", vqd)
	params.Set("p", safeSearchLevel(q.SafeSearch))
	if q.TimeLimit != "" {
		params.Set("df", q.TimeLimit)
	}
	for key, vals := range extra {
		for _, val := range vals {
			params.Add(key, val)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiEndpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	d.setBrowserHeaders(req)
	req.Header.Set("Referer", d.apiEndpoint+"/")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if max := maxResults(q); len(payload.Results) > max {
		payload.Results = payload.Results[:max]
	}
	return payload.Results, nil
}

// fetchVQD obtains the per-query token the JSON endpoints require.
func (d *DuckDuckGo) fetchVQD(ctx context.Context, query string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiEndpoint+"/?q="+url.QueryEscape(query), nil)
	if err != nil {
		return "", fmt.Errorf("building vqd request: %w", err)
	}
	d.setBrowserHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching vqd token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading vqd response: %w", err)
	}

	m := vqdRe.FindSubmatch(body)
	if m == nil {
		return "", errors.New("vqd token not found in response")
	}
	return string(m[1]), nil
}

func (d *DuckDuckGo) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
}

// safeSearchLevel maps the API-level safesearch names to DuckDuckGo's
// numeric levels: on=1, moderate=-1, off=-2.
func safeSearchLevel(s string) string {
	switch strings.ToLower(s) {
	case "on":
		return "1"
	case "off":
		return "-2"
	default:
		return "-1"
	}
}

func maxResults(q Query) int {
	if q.MaxResults <= 0 {
		return 10
	}
	return q.MaxResults
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg=<target> redirect links
// to the real target URL.
func unwrapRedirect(href string) string {
	if strings.Contains(href, "uddg=") {
		if parsed, err := url.Parse(href); err == nil {
			if target := parsed.Query().Get("uddg"); target != "" {
				return target
			}
		}
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
