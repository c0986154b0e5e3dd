package out

import (
	"context"

	"github.com/vinodvk00/one-box-sub001/core/domain"
)

// BulkIndexResult summarizes a tolerant bulk write: per-document
// failures are counted as skipped, never abort the batch.
type BulkIndexResult struct {
	Indexed int
	Skipped int
}

// SearchIndex is the secondary store mirroring the relational messages.
// It is eventually consistent with the relational store; resync via
// BulkIndex is the authoritative repair path when the two diverge.
type SearchIndex interface {
	Index(ctx context.Context, msg *domain.Message) error
	BulkIndex(ctx context.Context, msgs []*domain.Message) (*BulkIndexResult, error)
	Search(ctx context.Context, filter *domain.MessageFilter) ([]*domain.Message, int, error)
	DeleteByAccount(ctx context.Context, accountID int64) (int, error)
}
