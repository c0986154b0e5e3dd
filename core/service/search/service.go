// Package search exposes paginated message search over the index.
package search

import (
	"context"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Request is one search call. Page is 1-indexed.
type Request struct {
	Query    string           `json:"query"`
	Account  *int64           `json:"account,omitempty"`
	Folder   *string          `json:"folder,omitempty"`
	Category *domain.Category `json:"category,omitempty"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}

// Result is a page of matches plus pagination metadata. Total always
// counts the full match set, also when the requested page is past it.
type Result struct {
	Messages   []*domain.Message `json:"messages"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// ResyncResult summarizes an index rebuild from the relational store.
type ResyncResult struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// Service runs searches against the index and repairs it from the
// relational store when the two diverge.
type Service struct {
	index     out.SearchIndex
	messages  out.MessageRepository
	resyncCap int
}

// NewService creates a search service. resyncCap bounds how many rows
// one resync pass reads back from the relational store.
func NewService(index out.SearchIndex, messages out.MessageRepository, resyncCap int) *Service {
	return &Service{index: index, messages: messages, resyncCap: resyncCap}
}

// Search returns one page of matches visible through the caller's
// allow-list. An empty allow-list matches nothing. A page past the
// last one returns an empty page with the true total.
func (s *Service) Search(ctx context.Context, req *Request, allowedAccountIDs []int64) (*Result, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if len(allowedAccountIDs) == 0 {
		return &Result{Messages: []*domain.Message{}, Page: page, Limit: limit}, nil
	}

	filter := &domain.MessageFilter{
		AccountIDs: allowedAccountIDs,
		Account:    req.Account,
		Folder:     req.Folder,
		Category:   req.Category,
		Query:      req.Query,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}

	msgs, total, err := s.index.Search(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeDatabaseError, "search index query failed")
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}

	return &Result{
		Messages:   msgs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// ResyncToIndex rebuilds index documents from the relational store,
// newest rows first, capped per pass. Individual document failures are
// skipped, never abort the pass.
func (s *Service) ResyncToIndex(ctx context.Context, allowedAccountIDs []int64) (*ResyncResult, error) {
	msgs, err := s.messages.ListForReindex(ctx, allowedAccountIDs, s.resyncCap)
	if err != nil {
		return nil, apperr.DatabaseError("list for reindex", err)
	}
	if len(msgs) == 0 {
		return &ResyncResult{}, nil
	}

	bulk, err := s.index.BulkIndex(ctx, msgs)
	if err != nil {
		return nil, apperr.IndexWriteFailure(err)
	}

	logger.Info("[Service.ResyncToIndex] Reindexed %d of %d messages (%d skipped)",
		bulk.Indexed, len(msgs), bulk.Skipped)
	return &ResyncResult{Indexed: bulk.Indexed, Skipped: bulk.Skipped, Total: len(msgs)}, nil
}

func totalPages(total, limit int) int {
	if total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
