// Package memstore is an in-process implementation of storage.Store used by
// tests and by the memory storage driver. Writers are serialized by a single
// store-wide lock; rolled back writers restore the snapshot taken at begin.
package memstore

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage"
	"github.com/carson-networks/ingest-server/internal/storage/account"
)

type data struct {
	transactions   map[uuid.UUID]ledger.TransactionRecord
	items          map[string]ledger.LinkedItem
	linkedAccounts map[string]ledger.LinkedAccount
	accounts       map[string]account.Account
}

func (d *data) clone() *data {
	c := &data{
		transactions:   make(map[uuid.UUID]ledger.TransactionRecord, len(d.transactions)),
		items:          make(map[string]ledger.LinkedItem, len(d.items)),
		linkedAccounts: make(map[string]ledger.LinkedAccount, len(d.linkedAccounts)),
		accounts:       make(map[string]account.Account, len(d.accounts)),
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.linkedAccounts {
		c.linkedAccounts[k] = v
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	return c
}

type Store struct {
	mu   sync.RWMutex
	data *data

	// writeSem admits one writer at a time.
	writeSem chan struct{}

	failMu     sync.Mutex
	failWrites int
	failErr    error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: &data{
			transactions:   make(map[uuid.UUID]ledger.TransactionRecord),
			items:          make(map[string]ledger.LinkedItem),
			linkedAccounts: make(map[string]ledger.LinkedAccount),
			accounts:       make(map[string]account.Account),
		},
		writeSem: make(chan struct{}, 1),
	}
}

// FailWrites makes the next n calls to Write return err.
func (s *Store) FailWrites(n int, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failWrites = n
	s.failErr = err
}

func (s *Store) Read() *storage.Reader {
	return &storage.Reader{
		Accounts:     &accountTable{store: s},
		Items:        &itemTable{store: s},
		Transactions: &transactionTable{store: s},
	}
}

func (s *Store) Write(ctx context.Context) (*storage.Writer, error) {
	if err := s.injectedFailure(); err != nil {
		return nil, err
	}

	select {
	case s.writeSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &memTx{store: s, snapshot: snapshot}
	return storage.NewWriterWith(
		tx,
		&accountTable{store: s},
		&itemTable{store: s},
		&transactionTable{store: s},
	), nil
}

func (s *Store) injectedFailure() error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if s.failWrites <= 0 {
		return nil
	}
	s.failWrites--
	return s.failErr
}

// memTx releases the write lock exactly once.
type memTx struct {
	store    *Store
	snapshot *data
	once     sync.Once
}

func (t *memTx) Commit(context.Context) error {
	t.once.Do(func() { <-t.store.writeSem })
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.once.Do(func() {
		t.store.mu.Lock()
		t.store.data = t.snapshot
		t.store.mu.Unlock()
		<-t.store.writeSem
	})
	return nil
}
