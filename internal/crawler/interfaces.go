package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
// Non-2xx responses and transport failures are returned as errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Parser turns a fetched body into a Document.
type Parser interface {
	Parse(body []byte, pageURL string) (Document, error)
}

// Document is a parsed page the engine can classify, extract and mine for links.
type Document interface {
	IsProductPage() bool
	ExtractProduct() (Extraction, error)
	Links() []string
	ProductCardLinks() []string
}

// Store persists observations. Implementations must make one observation
// (product upsert plus price row) atomic and must be safe for concurrent use.
type Store interface {
	RecordObservation(ctx context.Context, obs Observation) error
	Close() error
}

// HistoryReader is implemented by stores that can read price history back.
type HistoryReader interface {
	PriceHistory(ctx context.Context, url string) (Product, []PriceObservation, error)
}

// Limiter enforces the minimum interval between fetches.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
