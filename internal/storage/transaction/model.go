package transaction

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

const tableName = "transactions"

var columns = []any{
	"id",
	"user_id",
	"account_id",
	"type",
	"amount",
	"date",
	"description",
	"category",
	"parent_category",
	"status",
	"account_mask",
	"source",
	"external_id",
	"created_at",
	"updated_at",
}

// ITransactionReader is the read side of the transactions table.
//
//go:generate mockery --name ITransactionReader --output mock_ITransactionReader.go
type ITransactionReader interface {
	// FindInRange returns the owner's records dated within [from, to].
	FindInRange(ctx context.Context, owner ledger.Owner, from, to time.Time) ([]ledger.TransactionRecord, error)
	FindByIDs(ctx context.Context, userID string, ids []uuid.UUID) ([]ledger.TransactionRecord, error)
	ListByUser(ctx context.Context, userID string) ([]ledger.TransactionRecord, error)
	// List returns one page of the filter's user, newest first. It fetches
	// Limit+1 rows so the caller can tell whether another page exists.
	List(ctx context.Context, filter *TransactionFilter) ([]ledger.TransactionRecord, error)
	ListUsers(ctx context.Context) ([]string, error)
}

// ITransactionWriter is the transactional write side of the transactions table.
//
//go:generate mockery --name ITransactionWriter --output mock_ITransactionWriter.go
type ITransactionWriter interface {
	ITransactionReader

	// LockAccount serializes writers of one account until the transaction ends.
	LockAccount(ctx context.Context, owner ledger.Owner) error
	// Insert stores rec and reports false when a record with its id already exists.
	Insert(ctx context.Context, rec ledger.TransactionRecord) (bool, error)
	Update(ctx context.Context, id uuid.UUID, patch ledger.TransactionPatch, now time.Time) error
	DeleteByIDs(ctx context.Context, userID string, ids []uuid.UUID) (int64, error)
	DeleteByExternalIDs(ctx context.Context, userID string, source ledger.Source, externalIDs []string) (int64, error)
}

// TransactionFilter selects a page of one user's transactions.
type TransactionFilter struct {
	UserID          string
	AccountID       *uuid.UUID
	Limit           int
	Offset          int
	MaxCreationTime *time.Time
}

type transactionRow struct {
	ID             uuid.UUID       `db:"id"`
	UserID         string          `db:"user_id"`
	AccountID      uuid.UUID       `db:"account_id"`
	Type           string          `db:"type"`
	Amount         decimal.Decimal `db:"amount"`
	Date           time.Time       `db:"date"`
	Description    string          `db:"description"`
	Category       string          `db:"category"`
	ParentCategory string          `db:"parent_category"`
	Status         string          `db:"status"`
	AccountMask    string          `db:"account_mask"`
	Source         string          `db:"source"`
	ExternalID     string          `db:"external_id"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func rowToRecord(row transactionRow) ledger.TransactionRecord {
	return ledger.TransactionRecord{
		ID:             row.ID,
		UserID:         row.UserID,
		AccountID:      row.AccountID,
		Type:           ledger.TransactionType(row.Type),
		Amount:         row.Amount,
		Date:           ledger.TruncateDate(row.Date),
		Description:    row.Description,
		Category:       row.Category,
		ParentCategory: row.ParentCategory,
		Status:         ledger.TransactionStatus(row.Status),
		AccountMask:    row.AccountMask,
		Source:         ledger.Source(row.Source),
		ExternalID:     row.ExternalID,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func rowsToRecords(rows []transactionRow) []ledger.TransactionRecord {
	records := make([]ledger.TransactionRecord, len(rows))
	for i, row := range rows {
		records[i] = rowToRecord(row)
	}
	return records
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
