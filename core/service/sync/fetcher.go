// Package sync implements mailbox ingestion: fetch, dedup, index.
package sync

import (
	"context"
	"time"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/core/service/auth"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// FetchResult summarizes one sync pass over one account. Messages
// holds the successfully stored subset, duplicates included.
type FetchResult struct {
	Fetched     int `json:"fetched"`
	Inserted    int `json:"inserted"`
	Duplicates  int `json:"duplicates"`
	Indexed     int `json:"indexed"`
	IndexFailed int `json:"index_failed"`

	Messages []*domain.Message `json:"-"`
}

// Fetcher pulls messages from a provider into the relational store and
// mirrors them into the search index. It is the sole writer of the
// account sync status.
type Fetcher struct {
	gate      *auth.CredentialGate
	providers out.ProviderFactory
	messages  out.MessageRepository
	accounts  out.AccountRepository
	index     out.SearchIndex
}

// NewFetcher creates a fetcher.
func NewFetcher(
	gate *auth.CredentialGate,
	providers out.ProviderFactory,
	messages out.MessageRepository,
	accounts out.AccountRepository,
	index out.SearchIndex,
) *Fetcher {
	return &Fetcher{
		gate:      gate,
		providers: providers,
		messages:  messages,
		accounts:  accounts,
		index:     index,
	}
}

// FetchSince ingests messages newer than daysBack days, at most
// maxCount of them. When the account's last sync is newer than that
// window it becomes the lower bound, so routine syncs only pull what
// arrived since the previous run.
// Re-running over the same window is idempotent:
// already stored messages count as duplicates and are left untouched.
// With forceReindex, duplicates are still re-written to the search
// index so a wiped index can be rebuilt from a normal fetch.
//
// The account's sync status is syncing for the duration of the call
// and always restored to idle or error on return.
func (f *Fetcher) FetchSince(ctx context.Context, account *domain.Account, daysBack, maxCount int, forceReindex bool) (*FetchResult, error) {
	status, err := f.gate.CheckAccount(ctx, account)
	if err != nil {
		return nil, apperr.DatabaseError("failed to check credentials", err)
	}
	if !status.Valid {
		logger.Warn("[Fetcher.FetchSince] Account %d connection invalid: %s", account.ID, status.Reason)
		return nil, apperr.CredentialInvalid(status.Reason)
	}

	if err := f.accounts.UpdateSyncStatus(ctx, account.ID, domain.SyncStatusSyncing); err != nil {
		return nil, apperr.DatabaseError("failed to mark account syncing", err)
	}

	result, fetchErr := f.fetch(ctx, account, daysBack, maxCount, forceReindex)

	final := domain.SyncStatusIdle
	if fetchErr != nil {
		final = domain.SyncStatusError
	}
	if err := f.accounts.UpdateSyncStatus(ctx, account.ID, final); err != nil {
		logger.WithError(err).Error("[Fetcher.FetchSince] Failed to restore sync status for account %d", account.ID)
	}

	if fetchErr != nil {
		return nil, fetchErr
	}

	if err := f.accounts.UpdateLastSyncAt(ctx, account.ID, time.Now().UTC()); err != nil {
		logger.WithError(err).Warn("[Fetcher.FetchSince] Failed to update last_sync_at for account %d", account.ID)
	}

	logger.Info("[Fetcher.FetchSince] Account %d: fetched=%d inserted=%d duplicates=%d indexed=%d indexFailed=%d",
		account.ID, result.Fetched, result.Inserted, result.Duplicates, result.Indexed, result.IndexFailed)
	return result, nil
}

func (f *Fetcher) fetch(ctx context.Context, account *domain.Account, daysBack, maxCount int, forceReindex bool) (*FetchResult, error) {
	provider, err := f.providers.ProviderFor(ctx, account)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternalError, "no provider for account")
	}

	if daysBack <= 0 {
		daysBack = 1
	}
	since := time.Now().UTC().AddDate(0, 0, -daysBack)
	if !forceReindex && account.LastSyncAt != nil && account.LastSyncAt.After(since) {
		// Watermark: a routine sync only re-pulls from the last
		// successful run. forceReindex ignores it and takes the
		// full window.
		since = *account.LastSyncAt
	}
	opts := &out.FetchOptions{
		Since:    since,
		MaxCount: maxCount,
	}

	raws, err := provider.Fetch(ctx, account, opts)
	if err != nil {
		if out.IsProviderAuthError(err) {
			return nil, apperr.CredentialInvalid(err.Error())
		}
		return nil, apperr.ProviderUnavailable(string(account.AuthKind), err)
	}

	result := &FetchResult{Fetched: len(raws)}
	for _, raw := range raws {
		msg := normalize(account.ID, raw)

		up, err := f.messages.Upsert(ctx, msg)
		if err != nil {
			// One bad row must not sink the batch.
			logger.WithError(err).Error("[Fetcher.fetch] Failed to store message %s for account %d", msg.ID, account.ID)
			continue
		}

		if up.Inserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
		result.Messages = append(result.Messages, msg)

		if !up.Inserted && !forceReindex {
			continue
		}
		if err := f.index.Index(ctx, msg); err != nil {
			// Index writes are best-effort; resync repairs the gap.
			logger.WithError(err).Warn("[Fetcher.fetch] Failed to index message %s", msg.ID)
			result.IndexFailed++
			continue
		}
		result.Indexed++
	}

	return result, nil
}

// normalize maps a provider message onto the canonical record. The ID
// is derived from (accountID, uid), so refetches land on the same row.
func normalize(accountID int64, raw *out.RawMessage) *domain.Message {
	folder := raw.Folder
	if folder == "" {
		folder = "INBOX"
	}
	date := raw.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	return &domain.Message{
		ID:        domain.MessageID(accountID, raw.UID),
		AccountID: accountID,
		Folder:    folder,
		UID:       raw.UID,
		Subject:   raw.Subject,
		From:      raw.From,
		To:        raw.To,
		Cc:        raw.Cc,
		Bcc:       raw.Bcc,
		Date:      date,
		BodyText:  raw.BodyText,
		BodyHTML:  raw.BodyHTML,
		Flags:     raw.Flags,
	}
}
