package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage/item"
)

type itemTable struct {
	store *Store
}

var _ item.IItemWriter = (*itemTable)(nil)

func itemKey(userID, itemID string) string {
	return userID + "\x00" + itemID
}

func linkedAccountKey(userID, itemID, providerAccountID string) string {
	return userID + "\x00" + itemID + "\x00" + providerAccountID
}

func (t *itemTable) Get(_ context.Context, userID, itemID string) (*ledger.LinkedItem, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	it, ok := t.store.data.items[itemKey(userID, itemID)]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &it, nil
}

func (t *itemTable) FindByItemID(_ context.Context, itemID string) (*ledger.LinkedItem, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	for _, it := range t.store.data.items {
		if it.ItemID == itemID {
			found := it
			return &found, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (t *itemTable) ListByUser(_ context.Context, userID string) ([]*ledger.LinkedItem, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []*ledger.LinkedItem
	for _, it := range t.store.data.items {
		if it.UserID == userID {
			c := it
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *itemTable) ListDueForSync(_ context.Context, cutoff time.Time) ([]*ledger.LinkedItem, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []*ledger.LinkedItem
	for _, it := range t.store.data.items {
		if it.Status != ledger.ItemActive {
			continue
		}
		if it.LastSyncedAt == nil || it.LastSyncedAt.Before(cutoff) {
			c := it
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastSyncedAt, out[j].LastSyncedAt
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
	return out, nil
}

func (t *itemTable) ListAccounts(_ context.Context, userID, itemID string) ([]ledger.LinkedAccount, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []ledger.LinkedAccount
	for _, acct := range t.store.data.linkedAccounts {
		if acct.UserID == userID && acct.ItemID == itemID {
			out = append(out, acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderAccountID < out[j].ProviderAccountID })
	return out, nil
}

func (t *itemTable) Upsert(_ context.Context, it ledger.LinkedItem) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	key := itemKey(it.UserID, it.ItemID)
	if existing, ok := t.store.data.items[key]; ok {
		existing.AccessToken = it.AccessToken
		existing.InstitutionName = it.InstitutionName
		existing.Status = it.Status
		existing.Error = it.Error
		existing.UpdatedAt = it.UpdatedAt
		t.store.data.items[key] = existing
		return nil
	}
	t.store.data.items[key] = it
	return nil
}

func (t *itemTable) SetStatus(_ context.Context, userID, itemID string, status ledger.ItemStatus, errMsg string, now time.Time) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	key := itemKey(userID, itemID)
	it, ok := t.store.data.items[key]
	if !ok {
		return ledger.ErrNotFound
	}
	it.Status = status
	it.Error = errMsg
	it.UpdatedAt = now
	t.store.data.items[key] = it
	return nil
}

func (t *itemTable) SaveCursor(_ context.Context, userID, itemID, cursor string, syncedAt time.Time) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	key := itemKey(userID, itemID)
	it, ok := t.store.data.items[key]
	if !ok {
		return ledger.ErrNotFound
	}
	it.Cursor = cursor
	it.LastSyncedAt = &syncedAt
	it.UpdatedAt = syncedAt
	t.store.data.items[key] = it
	return nil
}

func (t *itemTable) UpsertAccount(_ context.Context, acct ledger.LinkedAccount) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	t.store.data.linkedAccounts[linkedAccountKey(acct.UserID, acct.ItemID, acct.ProviderAccountID)] = acct
	return nil
}
