package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// QuoteJournal persists an append-only history of issued quotes. The engine
// never reads the journal to make decisions; it exists for operations and
// archival.
type QuoteJournal interface {
	Insert(ctx context.Context, q RouteQuote) error
	ListRecent(ctx context.Context, limit int) ([]RouteQuote, error)
	ListBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]RouteQuote, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AssessmentJournal persists an append-only history of risk assessments.
type AssessmentJournal interface {
	Insert(ctx context.Context, a RiskAssessment) error
	ListRecent(ctx context.Context, limit int) ([]RiskAssessment, error)
	ListBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]RiskAssessment, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnipeJournal persists the outcome of each snipe pipeline run.
type SnipeJournal interface {
	Insert(ctx context.Context, rec SnipeRecord) error
	ListRecent(ctx context.Context, limit int) ([]SnipeRecord, error)
	ListBefore(ctx context.Context, cutoff time.Time, opts ListOpts) ([]SnipeRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
