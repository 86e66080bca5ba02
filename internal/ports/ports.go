package ports

import (
	"context"
	"time"

	"worldsentinel/internal/domain"
)

// Fetcher retrieves a raw feed document from an external endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// NewsFilter narrows the read-side news listing.
type NewsFilter struct {
	Sector string
	Region string
	Limit  int
}

// Store is the persistence contract consumed by the core. Every write is a
// discrete insert or upsert; there are no multi-step transactions.
type Store interface {
	// InsertNewsIfAbsent inserts the item keyed by its fingerprint and reports
	// whether a new row was created. A fingerprint collision is an expected
	// outcome, not an error.
	InsertNewsIfAbsent(ctx context.Context, item domain.NewsItem) (bool, error)

	// QueryItems returns all items with published_at >= since (closed-lower,
	// open-upper window).
	QueryItems(ctx context.Context, since time.Time) ([]domain.NewsItem, error)

	// QueryHistoricalCount counts items over the trailing sinceDays whose
	// title, summary or source contains substr (case-insensitive).
	QueryHistoricalCount(ctx context.Context, substr string, sinceDays int) (int, error)

	AppendIndexScore(ctx context.Context, score domain.IndexScore) error
	AppendSignal(ctx context.Context, sig domain.Signal) error

	// GetMeta returns the stored value or "" when the key is absent.
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	ListNews(ctx context.Context, filter NewsFilter) ([]domain.NewsItem, error)
	ListIndexScores(ctx context.Context, limit int) ([]domain.IndexScore, error)
	ListSignals(ctx context.Context, limit int) ([]domain.Signal, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
