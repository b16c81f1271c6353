package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage/account"
)

type accountTable struct {
	store *Store
}

var _ account.IAccountWriter = (*accountTable)(nil)

func (t *accountTable) FindByName(_ context.Context, userID, name string) (*account.Account, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	acct, ok := t.store.data.accounts[userID+"\x00"+name]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &acct, nil
}

func (t *accountTable) ListByUser(_ context.Context, userID string) ([]*account.Account, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []*account.Account
	for _, acct := range t.store.data.accounts {
		if acct.UserID == userID {
			c := acct
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *accountTable) Ensure(_ context.Context, userID, name string, now time.Time) (uuid.UUID, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	key := userID + "\x00" + name
	if acct, ok := t.store.data.accounts[key]; ok {
		return acct.ID, nil
	}
	acct := account.Account{
		ID:        ledger.AccountID(userID, account.NameKind, name),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
	}
	t.store.data.accounts[key] = acct
	return acct.ID, nil
}
