package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage"
	"github.com/carson-networks/ingest-server/internal/storage/transaction"
)

const defaultLimit = 20

// TransactionCursor identifies a position in a paginated result set
// and carries the limit and maxCreationTime so subsequent pages are consistent.
type TransactionCursor struct {
	Position        int
	Limit           int
	MaxCreationTime time.Time
}

// TransactionService handles transaction business logic.
type TransactionService struct {
	storage storage.Store
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(store storage.Store) *TransactionService {
	return &TransactionService{storage: store}
}

// ListTransactions returns a page of the user's transactions using
// cursor-based pagination, optionally limited to one account.
func (s *TransactionService) ListTransactions(
	ctx context.Context,
	userID string,
	accountID *uuid.UUID,
	cursor *TransactionCursor,
) ([]ledger.TransactionRecord, *TransactionCursor, error) {
	limit := defaultLimit
	offset := 0
	var maxCreationTime *time.Time
	if cursor != nil {
		limit = cursor.Limit
		offset = cursor.Position
		maxCreationTime = &cursor.MaxCreationTime
	}

	filter := &transaction.TransactionFilter{
		UserID:          userID,
		AccountID:       accountID,
		Limit:           limit,
		Offset:          offset,
		MaxCreationTime: maxCreationTime,
	}

	rows, err := s.storage.Read().Transactions.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	if len(rows) == 0 {
		return nil, nil, nil
	}

	var nextCursor *TransactionCursor
	if len(rows) > limit {
		rows = rows[:limit]

		cursorMaxCreationTime := rows[0].CreatedAt
		if maxCreationTime != nil {
			cursorMaxCreationTime = *maxCreationTime
		}

		nextCursor = &TransactionCursor{
			Position:        offset + limit,
			Limit:           limit,
			MaxCreationTime: cursorMaxCreationTime,
		}
	}

	return rows, nextCursor, nil
}
