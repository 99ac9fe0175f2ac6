// Package search defines the search backend boundary and its DuckDuckGo
// implementation.
//
// The rest of the application depends on the Searcher interface only; the
// concrete backend is injected at startup. Results are heterogeneous
// key/value maps because field sets vary by search kind, and the wire
// format is JSON either way.
package search

import "context"

// Result is one search hit: an open set of string keys to primitive values.
// Text results carry title/href/body; news, image and video results carry
// their own field sets. Identity is positional within the returned slice.
type Result map[string]any

// Query holds the common parameters of one backend search call.
type Query struct {
	Query      string
	Region     string // e.g. "us-en", "uk-en"
	SafeSearch string // "on", "moderate", "off"
	TimeLimit  string // "", "d", "w", "m", "y"
	MaxResults int
}

// Capabilities reports which search kinds a backend supports. It is
// queried once at wiring time, not re-checked per call.
type Capabilities struct {
	Text   bool
	News   bool
	Images bool
	Videos bool
	Books  bool
}

// Searcher is the external search collaborator. Implementations return an
// ordered result list or an error on hard backend failure; they never
// return partial errors per item.
type Searcher interface {
	Text(ctx context.Context, q Query) ([]Result, error)
	News(ctx context.Context, q Query) ([]Result, error)
	Images(ctx context.Context, q Query) ([]Result, error)
	Videos(ctx context.Context, q Query) ([]Result, error)
	Books(ctx context.Context, q Query) ([]Result, error)
	Capabilities() Capabilities
}
