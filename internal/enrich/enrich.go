// Package enrich augments search results with the full extracted text of
// their target pages, under a bounded concurrency ceiling.
package enrich

import (
	"context"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/koopa0/websearch-mcp/internal/log"
	"github.com/koopa0/websearch-mcp/internal/search"
)

const (
	// ContentKey is the single key the pipeline adds to each result.
	ContentKey = "full_content"

	// Sentinel marks a per-item, non-fatal enrichment failure. It is part
	// of the tool output contract; clients match on it.
	Sentinel = "[Content extraction failed or blocked]"

	// DefaultConcurrency caps simultaneous page fetches per batch.
	DefaultConcurrency = 5
)

// PageFetcher is the slice of internal/fetch the pipeline depends on.
// Fetch reports failure via its bool, never via an error.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, maxLength int) (string, bool)
}

// Options tune one Enrich invocation.
type Options struct {
	// Concurrency caps simultaneous fetches; <= 0 means DefaultConcurrency.
	// The gate is scoped to the invocation, not shared across calls.
	Concurrency int

	// MaxLength caps extracted text per page; <= 0 uses the fetcher default.
	MaxLength int
}

// Pipeline fans a result batch out to the fetcher and merges extracted
// content back in input order.
type Pipeline struct {
	fetcher PageFetcher
	logger  log.Logger
}

// New creates a Pipeline using the given fetcher.
func New(fetcher PageFetcher, logger log.Logger) *Pipeline {
	return &Pipeline{fetcher: fetcher, logger: logger}
}

// Enrich returns a new slice of the same length and order as results where
// every item carries ContentKey: the extracted page text, or Sentinel when
// the item has no URL or its fetch/extraction failed. Input items are
// copied, never mutated; one item's failure never affects another.
func (p *Pipeline) Enrich(ctx context.Context, results []search.Result, opts Options) []search.Result {
	if len(results) == 0 {
		return []search.Result{}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	p.logger.Info("fetching full content", "results", len(results), "concurrency", limit)

	out := make([]search.Result, len(results))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, r := range results {
		g.Go(func() error {
			item := maps.Clone(r)
			if item == nil {
				item = search.Result{}
			}

			item[ContentKey] = Sentinel
			if url := resultURL(item); url != "" {
				if content, ok := p.fetcher.Fetch(ctx, url, opts.MaxLength); ok {
					item[ContentKey] = content
				}
			}

			// Index-slot assignment keeps output order independent of
			// fetch completion order.
			out[i] = item
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	p.logger.Info("full content extraction complete")
	return out
}

// resultURL extracts the retrievable URL of a result. Text search emits
// "href"; other kinds use "url".
func resultURL(r search.Result) string {
	if href, ok := r["href"].(string); ok && href != "" {
		return href
	}
	if u, ok := r["url"].(string); ok && u != "" {
		return u
	}
	return ""
}
