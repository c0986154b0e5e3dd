package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vinodvk00/one-box-sub001/core/domain"
)

// RawMessage is one provider message before normalization.
type RawMessage struct {
	UID      string
	Folder   string
	Subject  string
	From     domain.Contact
	To       []string
	Cc       []string
	Bcc      []string
	Date     time.Time
	BodyText string
	BodyHTML string
	Flags    []string
}

// FetchOptions bounds a provider fetch.
type FetchOptions struct {
	Since    time.Time
	MaxCount int
	Folder   string
}

// MailProvider is the opaque fetch-by-range primitive over one mailbox.
type MailProvider interface {
	// Fetch returns messages newer than opts.Since, capped at
	// opts.MaxCount, in provider order.
	Fetch(ctx context.Context, account *domain.Account, opts *FetchOptions) ([]*RawMessage, error)
}

// ProviderFactory resolves the MailProvider for an account's auth kind.
type ProviderFactory interface {
	ProviderFor(ctx context.Context, account *domain.Account) (MailProvider, error)
}

// Provider error codes. Both auth and rate-limit failures map to
// sync_status=error on the account and a non-fatal report to the caller.
const (
	ProviderErrAuth        = "auth"
	ProviderErrRateLimited = "rate_limited"
	ProviderErrUnavailable = "unavailable"
)

// ProviderError wraps a mailbox provider failure with a coarse code.
type ProviderError struct {
	Code string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderAuthError reports whether err is an auth-class provider failure.
func IsProviderAuthError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == ProviderErrAuth
}
