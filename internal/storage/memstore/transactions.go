package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage/transaction"
)

type transactionTable struct {
	store *Store
}

var _ transaction.ITransactionWriter = (*transactionTable)(nil)

func (t *transactionTable) FindInRange(_ context.Context, owner ledger.Owner, from, to time.Time) ([]ledger.TransactionRecord, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	from, to = ledger.TruncateDate(from), ledger.TruncateDate(to)
	var out []ledger.TransactionRecord
	for _, rec := range t.store.data.transactions {
		if rec.UserID != owner.UserID || rec.AccountID != owner.AccountID {
			continue
		}
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}
		out = append(out, rec)
	}
	sortByCreated(out)
	return out, nil
}

func (t *transactionTable) FindByIDs(_ context.Context, userID string, ids []uuid.UUID) ([]ledger.TransactionRecord, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []ledger.TransactionRecord
	for _, id := range ids {
		if rec, ok := t.store.data.transactions[id]; ok && rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (t *transactionTable) ListByUser(_ context.Context, userID string) ([]ledger.TransactionRecord, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []ledger.TransactionRecord
	for _, rec := range t.store.data.transactions {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *transactionTable) List(_ context.Context, filter *transaction.TransactionFilter) ([]ledger.TransactionRecord, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var out []ledger.TransactionRecord
	for _, rec := range t.store.data.transactions {
		if rec.UserID != filter.UserID {
			continue
		}
		if filter.AccountID != nil && rec.AccountID != *filter.AccountID {
			continue
		}
		if filter.MaxCreationTime != nil && rec.CreatedAt.After(*filter.MaxCreationTime) {
			continue
		}
		out = append(out, rec)
	}
	sortByCreated(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit+1 {
		out = out[:filter.Limit+1]
	}
	return out, nil
}

func (t *transactionTable) ListUsers(_ context.Context) ([]string, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	seen := make(map[string]bool)
	var users []string
	for _, rec := range t.store.data.transactions {
		if !seen[rec.UserID] {
			seen[rec.UserID] = true
			users = append(users, rec.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

// LockAccount is a no-op: the write semaphore already serializes writers.
func (t *transactionTable) LockAccount(context.Context, ledger.Owner) error {
	return nil
}

func (t *transactionTable) Insert(_ context.Context, rec ledger.TransactionRecord) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if _, exists := t.store.data.transactions[rec.ID]; exists {
		return false, nil
	}
	rec.Date = ledger.TruncateDate(rec.Date)
	t.store.data.transactions[rec.ID] = rec
	return true, nil
}

func (t *transactionTable) Update(_ context.Context, id uuid.UUID, patch ledger.TransactionPatch, now time.Time) error {
	if patch.IsEmpty() {
		return nil
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rec, ok := t.store.data.transactions[id]
	if !ok {
		return ledger.ErrNotFound
	}
	t.store.data.transactions[id] = patch.Apply(rec, now)
	return nil
}

func (t *transactionTable) DeleteByIDs(_ context.Context, userID string, ids []uuid.UUID) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	var n int64
	for _, id := range ids {
		if rec, ok := t.store.data.transactions[id]; ok && rec.UserID == userID {
			delete(t.store.data.transactions, id)
			n++
		}
	}
	return n, nil
}

func (t *transactionTable) DeleteByExternalIDs(_ context.Context, userID string, source ledger.Source, externalIDs []string) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	wanted := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		wanted[id] = true
	}
	var n int64
	for id, rec := range t.store.data.transactions {
		if rec.UserID == userID && rec.Source == source && wanted[rec.ExternalID] {
			delete(t.store.data.transactions, id)
			n++
		}
	}
	return n, nil
}

func sortByCreated(records []ledger.TransactionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID.String() < records[j].ID.String()
	})
}
