package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

func seedPages(t *testing.T, f *fixture, n int, account uuid.UUID) time.Time {
	t.Helper()
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	records := make([]ledger.TransactionRecord, n)
	for i := range records {
		records[i] = record("user-1", account, "Item", base.Add(time.Duration(i)*time.Minute))
	}
	f.seed(t, records...)
	return base.Add(time.Duration(n-1) * time.Minute)
}

// -- ListTransactions tests --

func TestListTransactions_NoCursorUsesDefaultLimit(t *testing.T) {
	f := newFixture(t, 0)
	newest := seedPages(t, f, defaultLimit+5, uuid.Must(uuid.NewV4()))

	txs, next, err := f.svc.Transactions.ListTransactions(context.Background(), "user-1", nil, nil)
	require.NoError(t, err)
	assert.Len(t, txs, defaultLimit)
	require.NotNil(t, next)
	assert.Equal(t, defaultLimit, next.Position)
	assert.Equal(t, defaultLimit, next.Limit)
	assert.True(t, next.MaxCreationTime.Equal(newest))
}

func TestListTransactions_FollowsCursorToLastPage(t *testing.T) {
	f := newFixture(t, 0)
	seedPages(t, f, 5, uuid.Must(uuid.NewV4()))
	ctx := context.Background()

	txs, next, err := f.svc.Transactions.ListTransactions(ctx, "user-1", nil, &TransactionCursor{
		Limit:           3,
		MaxCreationTime: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, txs, 3)
	require.NotNil(t, next)

	// Records created after the first page are not picked up by later pages.
	f.seed(t, record("user-1", uuid.Must(uuid.NewV4()), "Late", time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)))

	txs, next, err = f.svc.Transactions.ListTransactions(ctx, "user-1", nil, next)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Nil(t, next)
}

func TestListTransactions_FiltersByAccount(t *testing.T) {
	f := newFixture(t, 0)
	wanted := uuid.Must(uuid.NewV4())
	seedPages(t, f, 2, wanted)
	seedPages(t, f, 3, uuid.Must(uuid.NewV4()))

	txs, next, err := f.svc.Transactions.ListTransactions(context.Background(), "user-1", &wanted, nil)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.Nil(t, next)
}

func TestListTransactions_NoResults(t *testing.T) {
	f := newFixture(t, 0)

	txs, next, err := f.svc.Transactions.ListTransactions(context.Background(), "user-1", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, txs)
	assert.Nil(t, next)
}
