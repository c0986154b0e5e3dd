package auth

import (
	"context"
	"testing"
	"time"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
)

type fakeAccounts struct {
	out.AccountRepository
	byEmail map[string]*domain.Account
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	if acc, ok := f.byEmail[email]; ok {
		return acc, nil
	}
	return nil, out.ErrNotFound
}

type fakeCredentials struct {
	cred *domain.Credential
	imap *domain.ImapConfig
}

func (f *fakeCredentials) GetByAccountID(_ context.Context, _ int64) (*domain.Credential, error) {
	if f.cred == nil {
		return nil, out.ErrNotFound
	}
	return f.cred, nil
}

func (f *fakeCredentials) GetImapConfig(_ context.Context, _ int64) (*domain.ImapConfig, error) {
	if f.imap == nil {
		return nil, out.ErrNotFound
	}
	return f.imap, nil
}

func oauthAccount() *domain.Account {
	return &domain.Account{ID: 1, Email: "user@example.com", AuthKind: domain.AuthKindOAuth, IsActive: true}
}

func TestCheckConnectionUnknownAccount(t *testing.T) {
	gate := NewCredentialGate(&fakeAccounts{byEmail: map[string]*domain.Account{}}, &fakeCredentials{})

	status, err := gate.CheckConnection(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Valid {
		t.Error("unknown account must be invalid")
	}
}

func TestCheckConnectionMissingToken(t *testing.T) {
	acc := oauthAccount()
	gate := NewCredentialGate(
		&fakeAccounts{byEmail: map[string]*domain.Account{acc.Email: acc}},
		&fakeCredentials{},
	)

	status, err := gate.CheckConnection(context.Background(), acc.Email)
	if err != nil {
		t.Fatalf("missing token must be a verdict, not an error: %v", err)
	}
	if status.Valid {
		t.Error("missing token must be invalid")
	}
	if status.Reason == "" {
		t.Error("invalid verdict should carry a reason")
	}
}

func TestCheckConnectionExpiredToken(t *testing.T) {
	acc := oauthAccount()
	creds := &fakeCredentials{cred: &domain.Credential{
		AccountID: acc.ID,
		ExpiresAt: time.Now().Add(time.Minute), // inside the 5 min margin
		Scopes:    []string{scopeGmailReadonly},
	}}
	gate := NewCredentialGate(&fakeAccounts{byEmail: map[string]*domain.Account{acc.Email: acc}}, creds)

	status, err := gate.CheckConnection(context.Background(), acc.Email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Valid {
		t.Error("token expiring inside the margin must be invalid")
	}
}

func TestCheckConnectionValidToken(t *testing.T) {
	acc := oauthAccount()
	creds := &fakeCredentials{cred: &domain.Credential{
		AccountID: acc.ID,
		ExpiresAt: time.Now().Add(time.Hour),
		Scopes:    []string{scopeGmailReadonly},
	}}
	gate := NewCredentialGate(&fakeAccounts{byEmail: map[string]*domain.Account{acc.Email: acc}}, creds)

	status, err := gate.CheckConnection(context.Background(), acc.Email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Valid {
		t.Fatalf("expected valid, got reason %q", status.Reason)
	}
	if !status.HasFullAccess {
		t.Error("gmail.readonly scope should grant full access")
	}
}

func TestCheckConnectionNarrowScopes(t *testing.T) {
	acc := oauthAccount()
	creds := &fakeCredentials{cred: &domain.Credential{
		AccountID: acc.ID,
		ExpiresAt: time.Now().Add(time.Hour),
		Scopes:    []string{"https://www.googleapis.com/auth/userinfo.email"},
	}}
	gate := NewCredentialGate(&fakeAccounts{byEmail: map[string]*domain.Account{acc.Email: acc}}, creds)

	status, err := gate.CheckConnection(context.Background(), acc.Email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Valid {
		t.Error("narrow scopes are still a valid connection")
	}
	if status.HasFullAccess {
		t.Error("userinfo scope must not grant full access")
	}
}

func TestCheckConnectionNoExpiryIsExpired(t *testing.T) {
	acc := oauthAccount()
	creds := &fakeCredentials{cred: &domain.Credential{AccountID: acc.ID}}
	gate := NewCredentialGate(&fakeAccounts{byEmail: map[string]*domain.Account{acc.Email: acc}}, creds)

	status, err := gate.CheckConnection(context.Background(), acc.Email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Valid {
		t.Error("token without expiry must be treated as expired")
	}
}

func TestCheckConnectionImap(t *testing.T) {
	acc := &domain.Account{ID: 2, Email: "imap@example.com", AuthKind: domain.AuthKindIMAP, IsActive: true}
	creds := &fakeCredentials{imap: &domain.ImapConfig{
		AccountID: acc.ID, Host: "mail.example.com", Port: 993, Username: "imap@example.com", UseTLS: true,
	}}
	gate := NewCredentialGate(&fakeAccounts{byEmail: map[string]*domain.Account{acc.Email: acc}}, creds)

	status, err := gate.CheckConnection(context.Background(), acc.Email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Valid || !status.HasFullAccess {
		t.Errorf("complete imap config should be valid with full access, got %+v", status)
	}
}

func TestCheckConnectionDisabledAccount(t *testing.T) {
	acc := oauthAccount()
	acc.IsActive = false
	gate := NewCredentialGate(&fakeAccounts{byEmail: map[string]*domain.Account{acc.Email: acc}}, &fakeCredentials{})

	status, err := gate.CheckConnection(context.Background(), acc.Email)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Valid {
		t.Error("disabled account must be invalid")
	}
}
