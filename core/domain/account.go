package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuthKind identifies how a mailbox account authenticates.
type AuthKind string

const (
	AuthKindIMAP  AuthKind = "imap"
	AuthKindOAuth AuthKind = "oauth"
)

// SyncStatus is the account-level sync state machine.
// Transitions are owned exclusively by the mailbox fetcher.
type SyncStatus string

const (
	SyncStatusIdle         SyncStatus = "idle"
	SyncStatusSyncing      SyncStatus = "syncing"
	SyncStatusError        SyncStatus = "error"
	SyncStatusDisconnected SyncStatus = "disconnected"
)

// Account is one connected mailbox. An account carries either an IMAP
// config or an OAuth token set, never both.
type Account struct {
	ID         int64      `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Email      string     `json:"email"`
	AuthKind   AuthKind   `json:"auth_kind"`
	IsActive   bool       `json:"is_active"`
	SyncStatus SyncStatus `json:"sync_status"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Credential is the OAuth access/refresh token pair bound 1:1 to an
// oauth account. Tokens are stored encrypted; the pipeline only reads
// them to decide whether a fetch is allowed.
type Credential struct {
	AccountID    int64     `json:"account_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scopes       []string  `json:"scopes"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExpiresWithin reports whether the access token is already expired or
// will expire inside the given safety margin. A token with no recorded
// expiry is treated as expired.
func (c *Credential) ExpiresWithin(margin time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Add(margin).After(c.ExpiresAt)
}

// HasScope reports whether the credential was granted the given scope.
func (c *Credential) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ImapConfig holds plain IMAP connection settings for an imap account.
type ImapConfig struct {
	AccountID int64  `json:"account_id"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	UseTLS    bool   `json:"use_tls"`
}

// ConnectionStatus is the credential gate verdict for one account.
// Invalid never carries an error: a missing, expired or under-scoped
// token is an answer, not a failure.
type ConnectionStatus struct {
	Valid         bool     `json:"valid"`
	Scopes        []string `json:"scopes"`
	HasFullAccess bool     `json:"has_full_access"`
	Reason        string   `json:"reason,omitempty"`
}
