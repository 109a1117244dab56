// Package source defines the capability contracts for pluggable result
// producers and file fetchers, and the registry that owns them.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is reported by a Fetcher when the remote target is gone.
var ErrNotFound = errors.New("source: target not found")

// Result is one retrievable item produced by a source. It is immutable once
// returned from Search or Feed.
type Result struct {
	SourceID    string
	OriginURL   string
	Title       string
	SizeBytes   int64
	Category    string
	GUID        string
	Description string
	Comments    string
	PublishedAt time.Time

	// Descriptive attributes surfaced as vendor extensions on the feed.
	Author    string
	BookTitle string
	Series    string
	Publisher string
	Format    string
	Language  string
	Year      string
	Age       string
}

// Progress reports transfer state during a fetch. total is zero when the
// fetcher cannot determine the final size.
type Progress func(downloaded, total int64)

// Source produces search results for a query within a category.
type Source interface {
	// ID returns the unique identifier of the source.
	ID() string

	// Categories returns the category ids the source can serve.
	Categories() []string

	// TestQuery returns a query known to yield results on a healthy source.
	TestQuery() string

	// Search executes a query against the source.
	Search(ctx context.Context, query, category string) ([]Result, error)
}

// Feeder is implemented by sources that expose a passive feed of recent
// items, used for periodic sync requests that carry no query.
type Feeder interface {
	Feed(ctx context.Context) ([]Result, error)
}

// Fetcher retrieves the file behind a result into a destination root.
type Fetcher interface {
	// HandledIDs returns the source identifiers this fetcher serves.
	HandledIDs() []string

	// Fetch downloads url into destRoot and returns the final file path.
	// It returns ErrNotFound when the remote reports the target gone.
	Fetch(ctx context.Context, url, title, destRoot, category string, onProgress Progress) (string, error)
}
