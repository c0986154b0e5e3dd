// Package out defines outbound (driven) ports for the pipeline.
package out

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vinodvk00/one-box-sub001/core/domain"
)

// Repository sentinels. ErrNotFound covers both truly absent rows and
// rows outside the caller's allow-list; callers cannot tell the two
// apart.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

// AccountRepository is the relational store port for mailbox accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	ListActive(ctx context.Context) ([]*domain.Account, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error)

	// UpdateSyncStatus writes the fetcher-owned sync state machine.
	UpdateSyncStatus(ctx context.Context, id int64, status domain.SyncStatus) error
	UpdateLastSyncAt(ctx context.Context, id int64, at time.Time) error

	// Deactivate soft-disables the account (disconnect without delete).
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// CredentialRepository reads OAuth token rows and IMAP configs.
// The pipeline never mutates tokens; refresh is an external concern.
type CredentialRepository interface {
	GetByAccountID(ctx context.Context, accountID int64) (*domain.Credential, error)
	GetImapConfig(ctx context.Context, accountID int64) (*domain.ImapConfig, error)
}

// UpsertResult reports whether an upsert inserted a new row. A dedup
// hit (pre-check or unique-violation) is Inserted=false, not an error.
type UpsertResult struct {
	Inserted bool
}

// MessageRepository is the write path of record for canonical messages.
// Every read/delete takes the caller's allowed account IDs and filters
// on them server-side; that allow-list is the tenant isolation boundary.
type MessageRepository interface {
	Upsert(ctx context.Context, msg *domain.Message) (*UpsertResult, error)
	GetByID(ctx context.Context, id string, allowedAccountIDs []int64) (*domain.Message, error)
	ListUncategorized(ctx context.Context, allowedAccountIDs []int64) ([]*domain.Message, error)
	CountUncategorized(ctx context.Context, allowedAccountIDs []int64) (int, error)
	ListForReindex(ctx context.Context, allowedAccountIDs []int64, limit int) ([]*domain.Message, error)
	UpdateCategory(ctx context.Context, id string, category domain.Category) error
	DeleteByAccount(ctx context.Context, accountID int64, allowedAccountIDs []int64) (int, error)
	CountByAccount(ctx context.Context, accountID int64, allowedAccountIDs []int64) (int, error)
}
