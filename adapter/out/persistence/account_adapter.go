package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vinodvk00/one-box-sub001/core/domain"
)

// AccountAdapter implements out.AccountRepository using PostgreSQL.
type AccountAdapter struct {
	db *sqlx.DB
}

// NewAccountAdapter creates a new AccountAdapter.
func NewAccountAdapter(db *sqlx.DB) *AccountAdapter {
	return &AccountAdapter{db: db}
}

const accountSelectColumns = `
	id, user_id, email, auth_kind, is_active, sync_status, last_sync_at,
	created_at, updated_at`

type accountRow struct {
	ID         int64        `db:"id"`
	UserID     uuid.UUID    `db:"user_id"`
	Email      string       `db:"email"`
	AuthKind   string       `db:"auth_kind"`
	IsActive   bool         `db:"is_active"`
	SyncStatus string       `db:"sync_status"`
	LastSyncAt sql.NullTime `db:"last_sync_at"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

func (r *accountRow) toDomain() *domain.Account {
	acc := &domain.Account{
		ID:         r.ID,
		UserID:     r.UserID,
		Email:      r.Email,
		AuthKind:   domain.AuthKind(r.AuthKind),
		IsActive:   r.IsActive,
		SyncStatus: domain.SyncStatus(r.SyncStatus),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.LastSyncAt.Valid {
		acc.LastSyncAt = &r.LastSyncAt.Time
	}
	return acc
}

// GetByID returns an account by ID.
func (a *AccountAdapter) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	var row accountRow
	query := `SELECT ` + accountSelectColumns + ` FROM accounts WHERE id = $1`

	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// GetByEmail returns an account by its mailbox address.
func (a *AccountAdapter) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var row accountRow
	query := `SELECT ` + accountSelectColumns + ` FROM accounts WHERE email = $1`

	if err := a.db.GetContext(ctx, &row, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// ListActive returns all active accounts (scheduled sync walks these).
func (a *AccountAdapter) ListActive(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountSelectColumns + ` FROM accounts WHERE is_active = true ORDER BY id`
	return a.queryAccounts(ctx, query)
}

// ListByUser returns all accounts owned by a user; this is the source
// of the per-request account allow-list.
func (a *AccountAdapter) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	query := `SELECT ` + accountSelectColumns + ` FROM accounts WHERE user_id = $1 ORDER BY id`
	return a.queryAccounts(ctx, query, userID)
}

// UpdateSyncStatus writes the sync state machine value.
func (a *AccountAdapter) UpdateSyncStatus(ctx context.Context, id int64, status domain.SyncStatus) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE accounts SET sync_status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastSyncAt records the sync watermark.
func (a *AccountAdapter) UpdateLastSyncAt(ctx context.Context, id int64, at time.Time) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE accounts SET last_sync_at = $1, updated_at = NOW() WHERE id = $2`, at, id)
	return err
}

// Deactivate soft-disables an account on disconnect.
func (a *AccountAdapter) Deactivate(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE accounts SET is_active = false, sync_status = $1, updated_at = NOW() WHERE id = $2`,
		string(domain.SyncStatusDisconnected), id)
	return err
}

// Delete removes an account row. Token and IMAP config rows cascade.
func (a *AccountAdapter) Delete(ctx context.Context, id int64) error {
	result, err := a.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (a *AccountAdapter) queryAccounts(ctx context.Context, query string, args ...any) ([]*domain.Account, error) {
	rows, err := a.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var row accountRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		accounts = append(accounts, row.toDomain())
	}
	return accounts, rows.Err()
}
