// Package auth implements the credential gate: the pre-fetch check
// deciding whether a mailbox connection is usable.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// tokenExpiryMargin rejects tokens expiring too soon to survive a
// fetch; a token that dies mid-sync is worse than one rejected upfront.
const tokenExpiryMargin = 5 * time.Minute

// Scopes granting full mailbox read access.
const (
	scopeGmailReadonly = "https://www.googleapis.com/auth/gmail.readonly"
	scopeGmailModify   = "https://www.googleapis.com/auth/gmail.modify"
	scopeMailFull      = "https://mail.google.com/"
)

// CredentialGate checks connection validity for an account.
type CredentialGate struct {
	accounts    out.AccountRepository
	credentials out.CredentialRepository
}

// NewCredentialGate creates a credential gate.
func NewCredentialGate(accounts out.AccountRepository, credentials out.CredentialRepository) *CredentialGate {
	return &CredentialGate{accounts: accounts, credentials: credentials}
}

// CheckConnection reports whether the account identified by email can
// be fetched from right now. A missing, expired or under-scoped
// credential is a Valid=false verdict, never an error; errors are
// reserved for infrastructure failures.
func (g *CredentialGate) CheckConnection(ctx context.Context, email string) (*domain.ConnectionStatus, error) {
	account, err := g.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return &domain.ConnectionStatus{Valid: false, Reason: "account not found"}, nil
		}
		return nil, err
	}

	if !account.IsActive {
		return &domain.ConnectionStatus{Valid: false, Reason: "account disabled"}, nil
	}

	switch account.AuthKind {
	case domain.AuthKindIMAP:
		return g.checkImap(ctx, account)
	case domain.AuthKindOAuth:
		return g.checkOAuth(ctx, account)
	default:
		return &domain.ConnectionStatus{Valid: false, Reason: "unknown auth kind"}, nil
	}
}

// CheckAccount is CheckConnection for an already loaded account row.
// The fetcher calls this before every sync pass.
func (g *CredentialGate) CheckAccount(ctx context.Context, account *domain.Account) (*domain.ConnectionStatus, error) {
	if !account.IsActive {
		return &domain.ConnectionStatus{Valid: false, Reason: "account disabled"}, nil
	}

	switch account.AuthKind {
	case domain.AuthKindIMAP:
		return g.checkImap(ctx, account)
	case domain.AuthKindOAuth:
		return g.checkOAuth(ctx, account)
	default:
		return &domain.ConnectionStatus{Valid: false, Reason: "unknown auth kind"}, nil
	}
}

func (g *CredentialGate) checkImap(ctx context.Context, account *domain.Account) (*domain.ConnectionStatus, error) {
	cfg, err := g.credentials.GetImapConfig(ctx, account.ID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return &domain.ConnectionStatus{Valid: false, Reason: "no imap config"}, nil
		}
		return nil, err
	}
	if cfg.Host == "" || cfg.Username == "" {
		return &domain.ConnectionStatus{Valid: false, Reason: "incomplete imap config"}, nil
	}

	// IMAP carries no scope concept; a complete config is full access.
	return &domain.ConnectionStatus{Valid: true, HasFullAccess: true}, nil
}

func (g *CredentialGate) checkOAuth(ctx context.Context, account *domain.Account) (*domain.ConnectionStatus, error) {
	cred, err := g.credentials.GetByAccountID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return &domain.ConnectionStatus{Valid: false, Reason: "no oauth token"}, nil
		}
		return nil, err
	}

	if cred.ExpiresWithin(tokenExpiryMargin) {
		logger.Debug("[CredentialGate] Token for account %d expires at %s, rejecting", account.ID, cred.ExpiresAt)
		return &domain.ConnectionStatus{
			Valid:  false,
			Scopes: cred.Scopes,
			Reason: "token expired or expiring",
		}, nil
	}

	return &domain.ConnectionStatus{
		Valid:         true,
		Scopes:        cred.Scopes,
		HasFullAccess: hasFullAccess(cred),
	}, nil
}

func hasFullAccess(cred *domain.Credential) bool {
	return cred.HasScope(scopeMailFull) ||
		cred.HasScope(scopeGmailReadonly) ||
		cred.HasScope(scopeGmailModify)
}
