package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/pkg/crypto"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// CredentialAdapter implements out.CredentialRepository using PostgreSQL.
// Token columns are AES-GCM encrypted at rest; reads decrypt transparently.
type CredentialAdapter struct {
	db                *sqlx.DB
	encryptionEnabled bool
}

// NewCredentialAdapter creates a new CredentialAdapter.
func NewCredentialAdapter(db *sqlx.DB) *CredentialAdapter {
	err := crypto.Init()
	encryptionEnabled := err == nil
	if !encryptionEnabled {
		logger.Warn("Token encryption disabled: %v", err)
	}

	return &CredentialAdapter{
		db:                db,
		encryptionEnabled: encryptionEnabled,
	}
}

type credentialRow struct {
	AccountID    int64          `db:"account_id"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	Scopes       pq.StringArray `db:"scopes"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// GetByAccountID returns the OAuth token row for an account.
func (a *CredentialAdapter) GetByAccountID(ctx context.Context, accountID int64) (*domain.Credential, error) {
	var row credentialRow
	query := `
		SELECT account_id, access_token, refresh_token, expires_at, scopes, updated_at
		FROM oauth_tokens
		WHERE account_id = $1`

	if err := a.db.GetContext(ctx, &row, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	cred := &domain.Credential{
		AccountID:    row.AccountID,
		AccessToken:  a.decryptToken(row.AccessToken),
		RefreshToken: a.decryptToken(row.RefreshToken),
		Scopes:       row.Scopes,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.ExpiresAt.Valid {
		cred.ExpiresAt = row.ExpiresAt.Time
	}
	return cred, nil
}

// GetImapConfig returns the IMAP connection settings for an account.
func (a *CredentialAdapter) GetImapConfig(ctx context.Context, accountID int64) (*domain.ImapConfig, error) {
	var cfg struct {
		AccountID int64  `db:"account_id"`
		Host      string `db:"host"`
		Port      int    `db:"port"`
		Username  string `db:"username"`
		Password  string `db:"password"`
		UseTLS    bool   `db:"use_tls"`
	}
	query := `
		SELECT account_id, host, port, username, password, use_tls
		FROM imap_configs
		WHERE account_id = $1`

	if err := a.db.GetContext(ctx, &cfg, query, accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &domain.ImapConfig{
		AccountID: cfg.AccountID,
		Host:      cfg.Host,
		Port:      cfg.Port,
		Username:  cfg.Username,
		Password:  a.decryptToken(cfg.Password),
		UseTLS:    cfg.UseTLS,
	}, nil
}

// decryptToken decrypts a stored value if it was written encrypted.
// Legacy plaintext rows pass through unchanged.
func (a *CredentialAdapter) decryptToken(token string) string {
	if token == "" || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := crypto.DecryptToken(token)
	if err != nil {
		logger.Warn("Failed to decrypt token: %v", err)
		return token
	}
	return decrypted
}
