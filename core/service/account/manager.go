// Package account implements mailbox account lifecycle operations.
package account

import (
	"context"
	"errors"

	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// PurgeResult reports what a purge removed from each store.
type PurgeResult struct {
	MessagesDeleted int `json:"messages_deleted"`
	IndexDeleted    int `json:"index_deleted"`
}

// Manager handles disconnect and purge. Both operations are scoped by
// the caller's allow-list: an account outside it looks absent.
type Manager struct {
	accounts out.AccountRepository
	messages out.MessageRepository
	index    out.SearchIndex
}

// NewManager creates an account manager.
func NewManager(accounts out.AccountRepository, messages out.MessageRepository, index out.SearchIndex) *Manager {
	return &Manager{accounts: accounts, messages: messages, index: index}
}

// Deactivate soft-disables an account. Its messages stay stored and
// searchable; the sync scheduler just stops fetching it.
func (m *Manager) Deactivate(ctx context.Context, accountID int64, allowedAccountIDs []int64) error {
	if !contains(allowedAccountIDs, accountID) {
		return apperr.NotFound("account")
	}
	if err := m.accounts.Deactivate(ctx, accountID); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return apperr.NotFound("account")
		}
		return apperr.DatabaseError("deactivate account", err)
	}
	logger.Info("[Manager.Deactivate] Account %d disconnected", accountID)
	return nil
}

// Purge removes the account's messages from both stores and deletes
// the account row. The relational store is authoritative: its delete
// goes first, and an index failure afterwards leaves only orphaned
// index documents, which a resync cannot resurrect into results
// because search filters on the allow-list.
func (m *Manager) Purge(ctx context.Context, accountID int64, allowedAccountIDs []int64) (*PurgeResult, error) {
	deleted, err := m.messages.DeleteByAccount(ctx, accountID, allowedAccountIDs)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("account")
		}
		return nil, apperr.DatabaseError("delete messages", err)
	}

	indexDeleted, err := m.index.DeleteByAccount(ctx, accountID)
	if err != nil {
		logger.WithError(err).Warn("[Manager.Purge] Failed to delete index documents for account %d", accountID)
		indexDeleted = 0
	}

	if err := m.accounts.Delete(ctx, accountID); err != nil && !errors.Is(err, out.ErrNotFound) {
		return nil, apperr.DatabaseError("delete account", err)
	}

	logger.Info("[Manager.Purge] Account %d purged: %d rows, %d index docs", accountID, deleted, indexDeleted)
	return &PurgeResult{MessagesDeleted: deleted, IndexDeleted: indexDeleted}, nil
}

// CountMessages returns the stored message count for one account.
func (m *Manager) CountMessages(ctx context.Context, accountID int64, allowedAccountIDs []int64) (int, error) {
	count, err := m.messages.CountByAccount(ctx, accountID, allowedAccountIDs)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return 0, apperr.NotFound("account")
		}
		return 0, apperr.DatabaseError("count messages", err)
	}
	return count, nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
