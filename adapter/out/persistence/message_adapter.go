// Package persistence provides Postgres adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
)

const pgUniqueViolation = "23505"

// MessageAdapter implements out.MessageRepository using PostgreSQL.
// The (account_id, uid) unique constraint is the sole concurrency-safety
// mechanism against duplicate inserts; a violation is translated into
// the same inserted=false outcome as a conflict hit, never an error.
type MessageAdapter struct {
	db *sqlx.DB
}

// NewMessageAdapter creates a new MessageAdapter.
func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

const messageSelectColumns = `
	id, account_id, folder, uid, subject, from_email, from_name,
	to_emails, cc_emails, bcc_emails, body_text, body_html, flags,
	category, message_date, created_at`

// messageRow represents the database row for messages.
type messageRow struct {
	ID        string         `db:"id"`
	AccountID int64          `db:"account_id"`
	Folder    string         `db:"folder"`
	UID       string         `db:"uid"`
	Subject   string         `db:"subject"`
	FromEmail string         `db:"from_email"`
	FromName  sql.NullString `db:"from_name"`
	ToEmails  pq.StringArray `db:"to_emails"`
	CcEmails  pq.StringArray `db:"cc_emails"`
	BccEmails pq.StringArray `db:"bcc_emails"`
	BodyText  string         `db:"body_text"`
	BodyHTML  sql.NullString `db:"body_html"`
	Flags     pq.StringArray `db:"flags"`
	Category  sql.NullString `db:"category"`
	Date      time.Time      `db:"message_date"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *messageRow) toDomain() *domain.Message {
	msg := &domain.Message{
		ID:        r.ID,
		AccountID: r.AccountID,
		Folder:    r.Folder,
		UID:       r.UID,
		Subject:   r.Subject,
		From:      domain.Contact{Address: r.FromEmail},
		To:        r.ToEmails,
		Cc:        r.CcEmails,
		Bcc:       r.BccEmails,
		BodyText:  r.BodyText,
		Flags:     r.Flags,
		Date:      r.Date,
		CreatedAt: r.CreatedAt,
	}
	if r.FromName.Valid {
		msg.From.Name = r.FromName.String
	}
	if r.BodyHTML.Valid {
		msg.BodyHTML = r.BodyHTML.String
	}
	if r.Category.Valid {
		cat := domain.Category(r.Category.String)
		msg.Category = &cat
	}
	return msg
}

// Upsert inserts a message, deduplicating on (account_id, uid).
// Existing content is never overwritten by a re-fetch: provider messages
// are immutable once delivered, so a conflict is a no-op.
func (a *MessageAdapter) Upsert(ctx context.Context, msg *domain.Message) (*out.UpsertResult, error) {
	query := `
		INSERT INTO messages (
			id, account_id, folder, uid, subject, from_email, from_name,
			to_emails, cc_emails, bcc_emails, body_text, body_html, flags,
			category, message_date
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (account_id, uid) DO NOTHING
		RETURNING id`

	var id string
	err := a.db.QueryRowxContext(ctx, query,
		msg.ID, msg.AccountID, msg.Folder, msg.UID, msg.Subject,
		msg.From.Address, nullStr(msg.From.Name),
		pq.Array(msg.To), pq.Array(msg.Cc), pq.Array(msg.Bcc),
		msg.BodyText, nullStr(msg.BodyHTML), pq.Array(msg.Flags),
		nullCategory(msg.Category), msg.Date,
	).Scan(&id)

	if err != nil {
		// DO NOTHING suppresses RETURNING on conflict
		if errors.Is(err, sql.ErrNoRows) {
			return &out.UpsertResult{Inserted: false}, nil
		}
		// Concurrent insert of the same key can still surface the
		// constraint directly (e.g. via the id primary key).
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return &out.UpsertResult{Inserted: false}, nil
		}
		return nil, fmt.Errorf("failed to upsert message: %w", err)
	}

	return &out.UpsertResult{Inserted: true}, nil
}

// GetByID returns a message only when it belongs to one of the allowed
// accounts. Absent and out-of-tenant are both ErrNotFound.
func (a *MessageAdapter) GetByID(ctx context.Context, id string, allowedAccountIDs []int64) (*domain.Message, error) {
	if len(allowedAccountIDs) == 0 {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE id = $1 AND account_id = ANY($2)`, messageSelectColumns)

	var row messageRow
	if err := a.db.QueryRowxContext(ctx, query, id, pq.Array(allowedAccountIDs)).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return row.toDomain(), nil
}

// ListUncategorized returns all uncategorized messages within the
// allowed accounts, oldest first so a batch sweep drains backlog in order.
func (a *MessageAdapter) ListUncategorized(ctx context.Context, allowedAccountIDs []int64) ([]*domain.Message, error) {
	if len(allowedAccountIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE category IS NULL AND account_id = ANY($1)
		ORDER BY message_date ASC`, messageSelectColumns)

	return a.queryMessages(ctx, query, pq.Array(allowedAccountIDs))
}

// CountUncategorized returns a live count for batch status polls.
func (a *MessageAdapter) CountUncategorized(ctx context.Context, allowedAccountIDs []int64) (int, error) {
	if len(allowedAccountIDs) == 0 {
		return 0, nil
	}

	var count int
	query := `SELECT COUNT(*) FROM messages WHERE category IS NULL AND account_id = ANY($1)`
	if err := a.db.GetContext(ctx, &count, query, pq.Array(allowedAccountIDs)); err != nil {
		return 0, err
	}
	return count, nil
}

// ListForReindex reads up to limit rows for an index rebuild, newest first.
func (a *MessageAdapter) ListForReindex(ctx context.Context, allowedAccountIDs []int64, limit int) ([]*domain.Message, error) {
	if len(allowedAccountIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10000
	}

	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE account_id = ANY($1)
		ORDER BY message_date DESC
		LIMIT $2`, messageSelectColumns)

	return a.queryMessages(ctx, query, pq.Array(allowedAccountIDs), limit)
}

// UpdateCategory sets the category on an already-persisted message.
func (a *MessageAdapter) UpdateCategory(ctx context.Context, id string, category domain.Category) error {
	result, err := a.db.ExecContext(ctx,
		`UPDATE messages SET category = $1 WHERE id = $2`, string(category), id)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByAccount removes all messages for an account the caller owns.
func (a *MessageAdapter) DeleteByAccount(ctx context.Context, accountID int64, allowedAccountIDs []int64) (int, error) {
	if !containsID(allowedAccountIDs, accountID) {
		return 0, ErrNotFound
	}

	// The allow-list is repeated in SQL so ownership is enforced
	// server-side like on the read paths.
	result, err := a.db.ExecContext(ctx,
		`DELETE FROM messages WHERE account_id = $1 AND account_id = ANY($2)`,
		accountID, pq.Array(allowedAccountIDs))
	if err != nil {
		return 0, err
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// CountByAccount counts messages for an account the caller owns.
func (a *MessageAdapter) CountByAccount(ctx context.Context, accountID int64, allowedAccountIDs []int64) (int, error) {
	if !containsID(allowedAccountIDs, accountID) {
		return 0, ErrNotFound
	}

	var count int
	if err := a.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE account_id = $1 AND account_id = ANY($2)`,
		accountID, pq.Array(allowedAccountIDs)); err != nil {
		return 0, err
	}
	return count, nil
}

func (a *MessageAdapter) queryMessages(ctx context.Context, query string, args ...any) ([]*domain.Message, error) {
	rows, err := a.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.Message
	for rows.Next() {
		var row messageRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		msgs = append(msgs, row.toDomain())
	}

	if err := rows.Err(); err != nil {
		return msgs, fmt.Errorf("error iterating rows: %w", err)
	}
	return msgs, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullCategory(c *domain.Category) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*c), Valid: true}
}
