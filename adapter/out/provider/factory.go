package provider

import (
	"context"
	"fmt"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
)

// Factory routes each account to the provider matching its auth kind.
type Factory struct {
	gmail *GmailProvider
	imap  *ImapProvider
}

// NewFactory creates a provider factory.
func NewFactory(gmail *GmailProvider, imap *ImapProvider) *Factory {
	return &Factory{gmail: gmail, imap: imap}
}

// ProviderFor resolves the MailProvider for the account's auth kind.
func (f *Factory) ProviderFor(_ context.Context, account *domain.Account) (out.MailProvider, error) {
	switch account.AuthKind {
	case domain.AuthKindOAuth:
		return f.gmail, nil
	case domain.AuthKindIMAP:
		return f.imap, nil
	default:
		return nil, fmt.Errorf("unsupported auth kind %q for account %d", account.AuthKind, account.ID)
	}
}
