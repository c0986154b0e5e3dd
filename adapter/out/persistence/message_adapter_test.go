package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinodvk00/one-box-sub001/core/domain"
)

func newMockAdapter(t *testing.T) (*MessageAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMessageAdapter(sqlx.NewDb(db, "sqlmock")), mock
}

func sampleMessage() *domain.Message {
	return &domain.Message{
		ID:        domain.MessageID(1, "42"),
		AccountID: 1,
		Folder:    "INBOX",
		UID:       "42",
		Subject:   "hello",
		From:      domain.Contact{Name: "Alice", Address: "alice@example.com"},
		To:        []string{"bob@example.com"},
		BodyText:  "hi",
		Date:      time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func messageRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "account_id", "folder", "uid", "subject", "from_email", "from_name",
		"to_emails", "cc_emails", "bcc_emails", "body_text", "body_html", "flags",
		"category", "message_date", "created_at",
	})
}

func TestUpsertInserted(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	msg := sampleMessage()

	mock.ExpectQuery("INSERT INTO messages").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(msg.ID))

	result, err := adapter.Upsert(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, result.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertConflictIsNotAnError(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	// ON CONFLICT DO NOTHING suppresses RETURNING, surfacing ErrNoRows.
	mock.ExpectQuery("INSERT INTO messages").
		WillReturnError(sql.ErrNoRows)

	result, err := adapter.Upsert(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.False(t, result.Inserted)
}

func TestUpsertUniqueViolationIsNotAnError(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("INSERT INTO messages").
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	result, err := adapter.Upsert(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.False(t, result.Inserted)
}

func TestUpsertOtherErrorSurfaces(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("INSERT INTO messages").
		WillReturnError(errors.New("connection reset"))

	_, err := adapter.Upsert(context.Background(), sampleMessage())
	assert.Error(t, err)
}

func TestGetByIDFiltersOnAllowList(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	msg := sampleMessage()

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WithArgs(msg.ID, pq.Array([]int64{1, 2})).
		WillReturnRows(messageRows().AddRow(
			msg.ID, msg.AccountID, msg.Folder, msg.UID, msg.Subject,
			msg.From.Address, msg.From.Name,
			"{bob@example.com}", "{}", "{}", msg.BodyText, nil, "{}",
			nil, msg.Date, msg.Date,
		))

	got, err := adapter.GetByID(context.Background(), msg.ID, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.From.Address)
	assert.Nil(t, got.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WillReturnError(sql.ErrNoRows)

	_, err := adapter.GetByID(context.Background(), "missing", []int64{1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByIDEmptyAllowListShortCircuits(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	// No expectations registered: the adapter must not touch the DB.
	_, err := adapter.GetByID(context.Background(), "any", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCategoryNotFound(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("UPDATE messages SET category").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.UpdateCategory(context.Background(), "missing", domain.CategorySpam)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCategory(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec("UPDATE messages SET category").
		WithArgs(string(domain.CategoryInterested), "some-id").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.UpdateCategory(context.Background(), "some-id", domain.CategoryInterested)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByAccountOutsideAllowList(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	_, err := adapter.DeleteByAccount(context.Background(), 5, []int64{1, 2})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByAccount(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	// Ownership is enforced in the statement itself, not only by the
	// in-process precheck.
	mock.ExpectExec(`DELETE FROM messages WHERE account_id = \$1 AND account_id = ANY\(\$2\)`).
		WithArgs(int64(1), pq.Array([]int64{1, 2})).
		WillReturnResult(sqlmock.NewResult(0, 7))

	count, err := adapter.DeleteByAccount(context.Background(), 1, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestCountByAccount(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM messages WHERE account_id = \$1 AND account_id = ANY\(\$2\)`).
		WithArgs(int64(1), pq.Array([]int64{1, 2})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := adapter.CountByAccount(context.Background(), 1, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCountByAccountOutsideAllowList(t *testing.T) {
	adapter, _ := newMockAdapter(t)

	_, err := adapter.CountByAccount(context.Background(), 9, []int64{1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUncategorizedEmptyAllowList(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	msgs, err := adapter.ListUncategorized(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUncategorized(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	msg := sampleMessage()

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WithArgs(pq.Array([]int64{1})).
		WillReturnRows(messageRows().AddRow(
			msg.ID, msg.AccountID, msg.Folder, msg.UID, msg.Subject,
			msg.From.Address, nil,
			"{}", "{}", "{}", msg.BodyText, nil, "{}",
			nil, msg.Date, msg.Date,
		))

	msgs, err := adapter.ListUncategorized(context.Background(), []int64{1})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].Category)
}
