package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/core/service/auth"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
)

// ---- fakes ----

type fakeAccounts struct {
	out.AccountRepository
	statuses   []domain.SyncStatus
	lastSyncAt *time.Time
}

func (f *fakeAccounts) UpdateSyncStatus(_ context.Context, _ int64, status domain.SyncStatus) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeAccounts) UpdateLastSyncAt(_ context.Context, _ int64, at time.Time) error {
	f.lastSyncAt = &at
	return nil
}

type fakeCredentials struct {
	imap *domain.ImapConfig
}

func (f *fakeCredentials) GetByAccountID(_ context.Context, _ int64) (*domain.Credential, error) {
	return nil, out.ErrNotFound
}

func (f *fakeCredentials) GetImapConfig(_ context.Context, _ int64) (*domain.ImapConfig, error) {
	if f.imap == nil {
		return nil, out.ErrNotFound
	}
	return f.imap, nil
}

type fakeProvider struct {
	raws []*out.RawMessage
	err  error
	opts *out.FetchOptions
}

func (f *fakeProvider) Fetch(_ context.Context, _ *domain.Account, opts *out.FetchOptions) ([]*out.RawMessage, error) {
	f.opts = opts
	return f.raws, f.err
}

type fakeFactory struct{ provider out.MailProvider }

func (f *fakeFactory) ProviderFor(_ context.Context, _ *domain.Account) (out.MailProvider, error) {
	return f.provider, nil
}

type fakeMessages struct {
	out.MessageRepository
	stored map[string]*domain.Message
}

func (f *fakeMessages) Upsert(_ context.Context, msg *domain.Message) (*out.UpsertResult, error) {
	if _, exists := f.stored[msg.ID]; exists {
		return &out.UpsertResult{Inserted: false}, nil
	}
	f.stored[msg.ID] = msg
	return &out.UpsertResult{Inserted: true}, nil
}

type fakeIndex struct {
	out.SearchIndex
	indexed map[string]int
	fail    bool
}

func (f *fakeIndex) Index(_ context.Context, msg *domain.Message) error {
	if f.fail {
		return errors.New("index down")
	}
	f.indexed[msg.ID]++
	return nil
}

// ---- helpers ----

func imapAccount() *domain.Account {
	return &domain.Account{ID: 7, Email: "sync@example.com", AuthKind: domain.AuthKindIMAP, IsActive: true}
}

func validImap() *domain.ImapConfig {
	return &domain.ImapConfig{AccountID: 7, Host: "mail.example.com", Port: 993, Username: "sync@example.com"}
}

func rawMessages(uids ...string) []*out.RawMessage {
	msgs := make([]*out.RawMessage, len(uids))
	for i, uid := range uids {
		msgs[i] = &out.RawMessage{
			UID:      uid,
			Subject:  "subject " + uid,
			From:     domain.Contact{Address: "sender@example.com"},
			Date:     time.Now(),
			BodyText: "body",
		}
	}
	return msgs
}

func newTestFetcher(accounts *fakeAccounts, creds *fakeCredentials, provider out.MailProvider, messages *fakeMessages, index *fakeIndex) *Fetcher {
	gate := auth.NewCredentialGate(accounts, creds)
	return NewFetcher(gate, &fakeFactory{provider: provider}, messages, accounts, index)
}

// ---- tests ----

func TestFetchSinceStoresAndIndexes(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}}
	f := newTestFetcher(accounts, &fakeCredentials{imap: validImap()}, &fakeProvider{raws: rawMessages("1", "2", "3")}, messages, index)

	result, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fetched != 3 || result.Inserted != 3 || result.Duplicates != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Indexed != 3 {
		t.Errorf("expected 3 indexed, got %d", result.Indexed)
	}
	if len(messages.stored) != 3 {
		t.Errorf("expected 3 stored rows, got %d", len(messages.stored))
	}
	if accounts.lastSyncAt == nil {
		t.Error("last_sync_at should be updated after a clean pass")
	}
}

func TestFetchSinceIdempotentRefetch(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}}
	provider := &fakeProvider{raws: rawMessages("1", "2")}
	f := newTestFetcher(accounts, &fakeCredentials{imap: validImap()}, provider, messages, index)

	if _, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	result, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}

	if result.Inserted != 0 || result.Duplicates != 2 {
		t.Errorf("refetch must dedup everything: %+v", result)
	}
	if len(messages.stored) != 2 {
		t.Errorf("expected 2 rows after refetch, got %d", len(messages.stored))
	}
	// Without forceReindex a duplicate is not re-indexed.
	for id, n := range index.indexed {
		if n != 1 {
			t.Errorf("message %s indexed %d times, want 1", id, n)
		}
	}
}

func TestFetchSinceForceReindex(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}}
	provider := &fakeProvider{raws: rawMessages("1")}
	f := newTestFetcher(accounts, &fakeCredentials{imap: validImap()}, provider, messages, index)

	if _, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	result, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, true)
	if err != nil {
		t.Fatalf("force pass: %v", err)
	}

	if result.Duplicates != 1 || result.Indexed != 1 {
		t.Errorf("forceReindex must re-index duplicates: %+v", result)
	}
}

func TestFetchSinceInvalidCredentials(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}}
	// No imap config: the gate rejects before any provider call.
	f := newTestFetcher(accounts, &fakeCredentials{}, &fakeProvider{}, messages, index)

	_, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false)
	if !apperr.IsCredentialInvalid(err) {
		t.Fatalf("expected CREDENTIAL_INVALID, got %v", err)
	}
	if len(accounts.statuses) != 0 {
		t.Errorf("gate rejection must not touch sync status, got %v", accounts.statuses)
	}
}

func TestFetchSinceProviderErrorSetsErrorStatus(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}}
	provider := &fakeProvider{err: &out.ProviderError{Code: out.ProviderErrUnavailable, Err: errors.New("down")}}
	f := newTestFetcher(accounts, &fakeCredentials{imap: validImap()}, provider, messages, index)

	_, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false)
	if err == nil {
		t.Fatal("expected error")
	}

	want := []domain.SyncStatus{domain.SyncStatusSyncing, domain.SyncStatusError}
	if len(accounts.statuses) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, accounts.statuses)
	}
	for i := range want {
		if accounts.statuses[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, accounts.statuses)
		}
	}
	if accounts.lastSyncAt != nil {
		t.Error("failed pass must not advance last_sync_at")
	}
}

func TestFetchSinceStatusRestoredToIdle(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}}
	f := newTestFetcher(accounts, &fakeCredentials{imap: validImap()}, &fakeProvider{raws: rawMessages("9")}, messages, index)

	if _, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := accounts.statuses[len(accounts.statuses)-1]
	if last != domain.SyncStatusIdle {
		t.Errorf("status must end at idle, got %s", last)
	}
}

func TestFetchSinceIndexFailureDoesNotBlock(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}, fail: true}
	f := newTestFetcher(accounts, &fakeCredentials{imap: validImap()}, &fakeProvider{raws: rawMessages("1", "2")}, messages, index)

	result, err := f.FetchSince(context.Background(), imapAccount(), 30, 100, false)
	if err != nil {
		t.Fatalf("index failures must not fail the fetch: %v", err)
	}
	if result.Inserted != 2 {
		t.Errorf("relational writes must land despite index failures, got %d", result.Inserted)
	}
	if result.IndexFailed != 2 {
		t.Errorf("expected 2 index failures, got %d", result.IndexFailed)
	}
}

func TestFetchSinceHonorsWatermark(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{stored: map[string]*domain.Message{}}
	index := &fakeIndex{indexed: map[string]int{}}
	provider := &fakeProvider{raws: rawMessages("1")}
	f := newTestFetcher(accounts, &fakeCredentials{imap: validImap()}, provider, messages, index)

	lastSync := time.Now().UTC().Add(-time.Hour)
	account := imapAccount()
	account.LastSyncAt = &lastSync

	if _, err := f.FetchSince(context.Background(), account, 30, 100, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !provider.opts.Since.Equal(lastSync) {
		t.Errorf("routine sync must start at the watermark %s, got %s", lastSync, provider.opts.Since)
	}

	// forceReindex ignores the watermark and takes the full window.
	if _, err := f.FetchSince(context.Background(), account, 30, 100, true); err != nil {
		t.Fatalf("force pass: %v", err)
	}
	if !provider.opts.Since.Before(time.Now().UTC().AddDate(0, 0, -29)) {
		t.Errorf("forceReindex must use the full range, got %s", provider.opts.Since)
	}

	// A watermark older than the window never widens it.
	stale := time.Now().UTC().AddDate(0, 0, -60)
	account.LastSyncAt = &stale
	if _, err := f.FetchSince(context.Background(), account, 30, 100, false); err != nil {
		t.Fatalf("stale watermark pass: %v", err)
	}
	if !provider.opts.Since.After(stale) {
		t.Errorf("stale watermark must not widen the window, got %s", provider.opts.Since)
	}
}

func TestNormalizeDerivesStableID(t *testing.T) {
	raw := &out.RawMessage{UID: "555", Subject: "hello"}
	a := normalize(7, raw)
	b := normalize(7, raw)

	if a.ID != b.ID {
		t.Error("normalize must derive the same ID for the same (account, uid)")
	}
	if a.ID != domain.MessageID(7, "555") {
		t.Error("ID must come from MessageID")
	}
	if a.Folder != "INBOX" {
		t.Errorf("empty folder must default to INBOX, got %s", a.Folder)
	}
}
