package batch

import (
	"context"
	"time"
)

// WorkQueue transports work items between ingestion and scrape workers.
// Delivery is at-least-once; receivers must be idempotent.
type WorkQueue interface {
	// Publish enqueues one work item.
	Publish(ctx context.Context, item WorkItem) error
	// Receive blocks, invoking handle for each delivered batch of items
	// until the context finishes. A non-nil handler error nacks the
	// delivery so the transport redelivers it.
	Receive(ctx context.Context, handle func(ctx context.Context, items []WorkItem) error) error
}

// ObjectMetadata is attached to every stored image.
type ObjectMetadata struct {
	ScraperVersion string
	FetchedAt      time.Time
	SourceURI      string
}

// ContentStore holds fetched card images keyed by storage path.
type ContentStore interface {
	// Exists reports whether any object is stored under the prefix.
	Exists(ctx context.Context, prefix string) (bool, error)
	// Put stores data at key with the given content type and metadata.
	Put(ctx context.Context, key string, contentType string, data []byte, meta ObjectMetadata) error
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL      string
	Headless bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces batch IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
