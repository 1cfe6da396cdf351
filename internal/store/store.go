package store

import (
	"context"

	"github.com/nhle/otpmail/internal/model"
)

// HistoryFilter controls which audit records are returned.
type HistoryFilter struct {
	Email   string              // exact mailbox address, or "" (all)
	Mode    model.RetrievalMode // "poll", "list", or "" (all)
	Outcome string              // one of model.Outcome*, or "" (all)
	Limit   int                 // <= 0 selects DefaultHistoryLimit
}

// DefaultHistoryLimit is the number of records returned when a filter
// sets no limit.
const DefaultHistoryLimit = 50

// Store defines the persistence interface for the retrieval audit log.
// Records are append-only and never carry codes or credentials.
type Store interface {
	RecordRetrieval(ctx context.Context, r model.Retrieval) error
	RecentRetrievals(ctx context.Context, filter HistoryFilter) ([]model.Retrieval, error)
	Close() error
}
