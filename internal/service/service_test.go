package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/adapter"
	"github.com/carson-networks/ingest-server/internal/jobs/memory"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/storage/memstore"
)

type fixture struct {
	store *memstore.Store
	jobs  *memory.Store
	svc   *Service
}

func newFixture(t *testing.T, inlineLimit int) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := memstore.New()
	delegator := operator.NewOperatorDelegator(store, 2, logger)
	delegator.Start()
	t.Cleanup(delegator.Stop)

	jobStore := memory.NewStore()
	svc := NewService(Dependencies{
		Store:              store,
		Executor:           delegator,
		Jobs:               jobStore,
		Payloads:           jobStore,
		Registry:           adapter.NewDefaultRegistry(),
		InlinePayloadLimit: inlineLimit,
		JobMaxAttempts:     3,
		Log:                logger,
	})
	return &fixture{store: store, jobs: jobStore, svc: svc}
}

// seed inserts records directly, bypassing deduplication.
func (f *fixture) seed(t *testing.T, records ...ledger.TransactionRecord) {
	t.Helper()
	ctx := context.Background()
	w, err := f.store.Write(ctx)
	require.NoError(t, err)
	for _, rec := range records {
		_, err := w.Transactions.Insert(ctx, rec)
		require.NoError(t, err)
	}
	require.NoError(t, w.Commit(ctx))
}

func record(userID string, accountID uuid.UUID, desc string, created time.Time) ledger.TransactionRecord {
	date := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return ledger.TransactionRecord{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      userID,
		AccountID:   accountID,
		Type:        ledger.TypeDebit,
		Amount:      decimal.RequireFromString("-9.99"),
		Date:        date,
		Description: desc,
		Category:    ledger.Uncategorized,
		Status:      ledger.StatusPosted,
		Source:      ledger.SourceImport,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}
