package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage/transaction"
)

func testRecord(owner ledger.Owner, desc string, day int) ledger.TransactionRecord {
	date := time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("-12.50")
	return ledger.TransactionRecord{
		ID:          ledger.RecordID(owner, date, amount, desc),
		UserID:      owner.UserID,
		AccountID:   owner.AccountID,
		Type:        ledger.TypeDebit,
		Amount:      amount,
		Date:        date,
		Description: desc,
		Category:    ledger.Uncategorized,
		Status:      ledger.StatusPosted,
		Source:      ledger.SourceImport,
		CreatedAt:   date,
		UpdatedAt:   date,
	}
}

func testOwner() ledger.Owner {
	return ledger.Owner{UserID: "user-1", AccountID: uuid.Must(uuid.NewV4())}
}

func TestWrite_CommitPersists(t *testing.T) {
	store := New()
	ctx := context.Background()
	owner := testOwner()

	w, err := store.Write(ctx)
	require.NoError(t, err)
	inserted, err := w.Transactions.Insert(ctx, testRecord(owner, "Coffee", 2))
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, w.Commit(ctx))

	found, err := store.Read().Transactions.FindInRange(ctx, owner, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestWrite_RollbackRestores(t *testing.T) {
	store := New()
	ctx := context.Background()
	owner := testOwner()

	w, _ := store.Write(ctx)
	_, _ = w.Transactions.Insert(ctx, testRecord(owner, "Coffee", 2))
	require.NoError(t, w.Rollback(ctx))

	all, err := store.Read().Transactions.ListByUser(ctx, owner.UserID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestWrite_InsertIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()
	rec := testRecord(testOwner(), "Coffee", 2)

	w, _ := store.Write(ctx)
	first, _ := w.Transactions.Insert(ctx, rec)
	second, _ := w.Transactions.Insert(ctx, rec)
	require.NoError(t, w.Commit(ctx))

	assert.True(t, first)
	assert.False(t, second)
}

func TestWrite_SerializesWriters(t *testing.T) {
	store := New()
	ctx := context.Background()

	w, err := store.Write(ctx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = store.Write(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, w.Commit(ctx))
	next, err := store.Write(ctx)
	require.NoError(t, err)
	require.NoError(t, next.Rollback(ctx))
}

func TestFailWrites(t *testing.T) {
	store := New()
	ctx := context.Background()
	boom := errors.New("connection reset")
	store.FailWrites(1, boom)

	_, err := store.Write(ctx)
	assert.ErrorIs(t, err, boom)

	w, err := store.Write(ctx)
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx))
}

func TestUpdateAndDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	owner := testOwner()
	rec := testRecord(owner, "Coffee", 2)
	rec.Status = ledger.StatusPending
	rec.Source = ledger.SourcePlaid
	rec.ExternalID = "tx-1"

	w, _ := store.Write(ctx)
	_, _ = w.Transactions.Insert(ctx, rec)
	require.NoError(t, w.Transactions.Update(ctx, rec.ID, ledger.TransactionPatch{Status: omit.From(ledger.StatusPosted)}, time.Now()))
	require.NoError(t, w.Commit(ctx))

	got, _ := store.Read().Transactions.FindByIDs(ctx, owner.UserID, []uuid.UUID{rec.ID})
	require.Len(t, got, 1)
	assert.Equal(t, ledger.StatusPosted, got[0].Status)

	w, _ = store.Write(ctx)
	n, err := w.Transactions.DeleteByExternalIDs(ctx, "someone-else", ledger.SourcePlaid, []string{"tx-1"})
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = w.Transactions.DeleteByExternalIDs(ctx, owner.UserID, ledger.SourcePlaid, []string{"tx-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, w.Commit(ctx))
}

func TestItems(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	w, _ := store.Write(ctx)
	require.NoError(t, w.Items.Upsert(ctx, ledger.LinkedItem{
		ItemID: "item-1", UserID: "u", AccessToken: "tok", Status: ledger.ItemActive, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, w.Items.SaveCursor(ctx, "u", "item-1", "cursor-1", now))
	require.NoError(t, w.Items.Upsert(ctx, ledger.LinkedItem{
		ItemID: "item-1", UserID: "u", AccessToken: "tok-2", Status: ledger.ItemActive, UpdatedAt: now,
	}))
	assert.ErrorIs(t, w.Items.SetStatus(ctx, "u", "missing", ledger.ItemError, "x", now), ledger.ErrNotFound)
	require.NoError(t, w.Commit(ctx))

	got, err := store.Read().Items.Get(ctx, "u", "item-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.AccessToken)
	assert.Equal(t, "cursor-1", got.Cursor, "upsert keeps the cursor")

	due, _ := store.Read().Items.ListDueForSync(ctx, now.Add(time.Hour))
	assert.Len(t, due, 1)
	notDue, _ := store.Read().Items.ListDueForSync(ctx, now.Add(-time.Hour))
	assert.Empty(t, notDue)
}

func TestAccountsEnsure(t *testing.T) {
	store := New()
	ctx := context.Background()

	w, _ := store.Write(ctx)
	first, err := w.Accounts.Ensure(ctx, "u", "Checking", time.Now())
	require.NoError(t, err)
	second, err := w.Accounts.Ensure(ctx, "u", "Checking", time.Now())
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx))

	assert.Equal(t, first, second)
	assert.Equal(t, ledger.AccountID("u", "name", "Checking"), first)
}

func TestTransactions_ListPagesNewestFirst(t *testing.T) {
	store := New()
	ctx := context.Background()
	owner := testOwner()

	w, err := store.Write(ctx)
	require.NoError(t, err)
	for day := 1; day <= 5; day++ {
		_, err := w.Transactions.Insert(ctx, testRecord(owner, "Coffee", day))
		require.NoError(t, err)
	}
	_, err = w.Transactions.Insert(ctx, testRecord(ledger.Owner{UserID: "user-2", AccountID: owner.AccountID}, "Tea", 1))
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx))

	page, err := store.Read().Transactions.List(ctx, &transaction.TransactionFilter{UserID: "user-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 3, "one extra row signals a further page")
	assert.Equal(t, 5, page[0].Date.Day())
	assert.Equal(t, 4, page[1].Date.Day())

	maxCreated := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	page, err = store.Read().Transactions.List(ctx, &transaction.TransactionFilter{
		UserID:          "user-1",
		Limit:           2,
		Offset:          2,
		MaxCreationTime: &maxCreated,
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].Date.Day())
}
