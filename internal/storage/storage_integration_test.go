//go:build integration

package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage"
	"github.com/carson-networks/ingest-server/internal/storage/counter"
	"github.com/carson-networks/ingest-server/internal/storage/jobstore"
)

// newPostgres starts a throwaway postgres, applies every migration and
// returns storage bound to it.
func newPostgres(t *testing.T) *storage.Storage {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ingest"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpassword"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err)
	}

	s := storage.FromDB(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgres_TransactionsInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newPostgres(t)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	w, err := s.Write(ctx)
	require.NoError(t, err)
	accountID, err := w.Accounts.Ensure(ctx, "user-1", "Checking", now)
	require.NoError(t, err)
	owner := ledger.Owner{UserID: "user-1", AccountID: accountID}
	amount := decimal.RequireFromString("12.50")
	date := ledger.TruncateDate(now)
	rec := ledger.TransactionRecord{
		ID:          ledger.RecordID(owner, date, amount, "Coffee"),
		UserID:      owner.UserID,
		AccountID:   accountID,
		Type:        ledger.TypeDebit,
		Amount:      amount,
		Date:        date,
		Description: "Coffee",
		Category:    ledger.Uncategorized,
		Status:      ledger.StatusPosted,
		Source:      ledger.SourceImport,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inserted, err := w.Transactions.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = w.Transactions.Insert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, w.Commit(ctx))

	found, err := s.Read().Transactions.FindInRange(ctx, owner, date.Add(-time.Hour), date.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, rec.ID, found[0].ID)
	assert.True(t, found[0].Amount.Equal(amount))
}

func TestPostgres_JobsClaimOnce(t *testing.T) {
	ctx := context.Background()
	s := newPostgres(t)
	store := jobstore.New(s.Bob)

	job := &jobs.Job{
		JobID:       jobs.NewJobID(),
		UserID:      "user-1",
		Type:        jobs.TypeImportTransactions,
		FileName:    "march.csv",
		Format:      "chase",
		CSVContent:  "Posting Date,Description,Amount\n",
		MaxAttempts: 3,
		RunAfter:    time.Now().Add(-time.Second),
	}
	require.NoError(t, store.Create(ctx, job))

	claimed, err := store.ClaimNext(ctx, []jobs.Type{jobs.TypeImportTransactions}, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.JobID, claimed.JobID)
	assert.Equal(t, 1, claimed.Attempts)

	again, err := store.ClaimNext(ctx, []jobs.Type{jobs.TypeImportTransactions}, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, again)

	assert.ErrorIs(t, store.Withdraw(ctx, job.JobID, "user-1"), ledger.ErrJobClaimed)
	require.NoError(t, store.Heartbeat(ctx, job.JobID))

	_, err = store.Transition(ctx, job.JobID, jobs.StatusProcessing, "")
	require.NoError(t, err)
	active, err := store.FindByFileName(ctx, "user-1", "march.csv")
	require.NoError(t, err)
	require.NotNil(t, active)

	done, err := store.Transition(ctx, job.JobID, jobs.StatusDone, "")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDone, done.Status)
	assert.NotNil(t, done.EndTime)

	finished, err := store.FindByFileName(ctx, "user-1", "march.csv")
	require.NoError(t, err)
	assert.Nil(t, finished, "a finished import does not block its file name")
	assert.ErrorIs(t, store.Heartbeat(ctx, job.JobID), ledger.ErrInvalidTransition)

	_, err = store.Get(ctx, job.JobID, "user-2")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestPostgres_PayloadStaging(t *testing.T) {
	ctx := context.Background()
	store := jobstore.New(newPostgres(t).Bob)

	ref, err := store.StagePayload(ctx, "a,b,c\n1,2,3\n")
	require.NoError(t, err)
	content, err := store.LoadPayload(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c\n1,2,3\n", content)

	require.NoError(t, store.DeletePayload(ctx, ref))
	_, err = store.LoadPayload(ctx, ref)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestPostgres_CounterWindows(t *testing.T) {
	ctx := context.Background()
	counters := counter.New(newPostgres(t).Bob)
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	count, resetAt, err := counters.Increment(ctx, "ratelimit:api:user:1", time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, resetAt.Equal(now.Add(time.Minute)))

	count, _, err = counters.Increment(ctx, "ratelimit:api:user:1", time.Minute, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The window has expired, so the count restarts.
	count, _, err = counters.Increment(ctx, "ratelimit:api:user:1", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	purged, err := counters.Purge(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestPostgres_ListUsers(t *testing.T) {
	ctx := context.Background()
	s := newPostgres(t)

	users, err := s.Read().Transactions.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	w, err := s.Write(ctx)
	require.NoError(t, err)
	_, err = w.Accounts.Ensure(ctx, "user-9", "Savings", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, w.Commit(ctx))

	// Accounts alone do not make a user visible to cleanup.
	users, err = s.Read().Transactions.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

}
