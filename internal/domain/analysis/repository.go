package analysis

import "context"

// Repository abstracts the per-user analysis history in the document store.
type Repository interface {
	// AppendAnalysis adds one record to the user's history, creating the
	// history field when it does not exist yet.
	AppendAnalysis(ctx context.Context, userID int64, record Record) error
	// History returns the user's records in stored (append) order.
	History(ctx context.Context, userID int64) ([]Record, error)
}
