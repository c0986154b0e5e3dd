package account

import (
	"context"
	"errors"
	"testing"

	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
)

type fakeAccounts struct {
	out.AccountRepository
	deactivated []int64
	deleted     []int64
}

func (f *fakeAccounts) Deactivate(_ context.Context, id int64) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeAccounts) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeMessages struct {
	out.MessageRepository
	counts map[int64]int
}

func (f *fakeMessages) DeleteByAccount(_ context.Context, accountID int64, allowed []int64) (int, error) {
	for _, id := range allowed {
		if id == accountID {
			n := f.counts[accountID]
			delete(f.counts, accountID)
			return n, nil
		}
	}
	return 0, out.ErrNotFound
}

func (f *fakeMessages) CountByAccount(_ context.Context, accountID int64, allowed []int64) (int, error) {
	for _, id := range allowed {
		if id == accountID {
			return f.counts[accountID], nil
		}
	}
	return 0, out.ErrNotFound
}

type fakeIndex struct {
	out.SearchIndex
	deleted map[int64]int
	fail    bool
}

func (f *fakeIndex) DeleteByAccount(_ context.Context, accountID int64) (int, error) {
	if f.fail {
		return 0, errors.New("index down")
	}
	n := f.deleted[accountID]
	return n, nil
}

func TestPurgeRemovesBothStores(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{counts: map[int64]int{1: 4}}
	index := &fakeIndex{deleted: map[int64]int{1: 4}}
	manager := NewManager(accounts, messages, index)

	result, err := manager.Purge(context.Background(), 1, []int64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.MessagesDeleted != 4 || result.IndexDeleted != 4 {
		t.Errorf("unexpected purge result: %+v", result)
	}
	if len(accounts.deleted) != 1 || accounts.deleted[0] != 1 {
		t.Error("account row must be deleted")
	}
}

func TestPurgeOutsideAllowList(t *testing.T) {
	manager := NewManager(&fakeAccounts{}, &fakeMessages{counts: map[int64]int{}}, &fakeIndex{deleted: map[int64]int{}})

	_, err := manager.Purge(context.Background(), 9, []int64{1, 2})
	if !apperr.IsNotFound(err) {
		t.Fatalf("out-of-tenant purge must be NOT_FOUND, got %v", err)
	}
}

func TestPurgeToleratesIndexFailure(t *testing.T) {
	accounts := &fakeAccounts{}
	messages := &fakeMessages{counts: map[int64]int{1: 2}}
	manager := NewManager(accounts, messages, &fakeIndex{fail: true})

	result, err := manager.Purge(context.Background(), 1, []int64{1})
	if err != nil {
		t.Fatalf("index failure must not fail the purge: %v", err)
	}
	if result.MessagesDeleted != 2 || result.IndexDeleted != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(accounts.deleted) != 1 {
		t.Error("account row must still be deleted")
	}
}

func TestDeactivateRequiresOwnership(t *testing.T) {
	accounts := &fakeAccounts{}
	manager := NewManager(accounts, &fakeMessages{}, &fakeIndex{})

	if err := manager.Deactivate(context.Background(), 3, []int64{1}); !apperr.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if err := manager.Deactivate(context.Background(), 1, []int64{1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts.deactivated) != 1 {
		t.Error("account must be deactivated once")
	}
}

func TestCountMessages(t *testing.T) {
	manager := NewManager(&fakeAccounts{}, &fakeMessages{counts: map[int64]int{2: 11}}, &fakeIndex{})

	count, err := manager.CountMessages(context.Background(), 2, []int64{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 11 {
		t.Errorf("expected 11, got %d", count)
	}

	if _, err := manager.CountMessages(context.Background(), 2, []int64{1}); !apperr.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
