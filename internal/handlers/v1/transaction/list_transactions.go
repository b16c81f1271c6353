package transaction

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/service"
)

// ListTransactionsCursor represents a pagination cursor in request and response bodies.
// It bundles position, limit, and maxCreationTime so subsequent pages use consistent parameters.
type ListTransactionsCursor struct {
	Position        int    `json:"position" minimum:"0" doc:"Numeric offset position for the next page"`
	Limit           int    `json:"limit" minimum:"1" maximum:"100" doc:"Page size used for this cursor"`
	MaxCreationTime string `json:"maxCreationTime" format:"date-time" doc:"Upper bound on created_at locked in from the first page"`
}

// ListTransactionsBody is the request body for listing transactions.
type ListTransactionsBody struct {
	AccountID string                  `json:"accountId,omitempty" format:"uuid" doc:"Only return transactions of this account"`
	Cursor    *ListTransactionsCursor `json:"cursor,omitempty" doc:"Cursor from a previous response to fetch the next page"`
}

type ListTransactionsInput struct {
	Body ListTransactionsBody
}

type ListTransactionsResponseBody struct {
	Transactions []Transaction           `json:"transactions" doc:"Page of transactions"`
	NextCursor   *ListTransactionsCursor `json:"nextCursor,omitempty" doc:"Cursor to fetch the next page, absent on the last page"`
}

type ListTransactionsOutput struct {
	Body ListTransactionsResponseBody
}

// transactionLister is the interface for listing transactions.
type transactionLister interface {
	ListTransactions(
		ctx context.Context,
		userID string,
		accountID *uuid.UUID,
		cursor *service.TransactionCursor,
	) ([]ledger.TransactionRecord, *service.TransactionCursor, error)
}

// ListTransactionsHandler handles POST /v1/transactions/list.
type ListTransactionsHandler struct {
	TransactionService transactionLister
}

func NewListTransactionsHandler(svc transactionLister) *ListTransactionsHandler {
	return &ListTransactionsHandler{TransactionService: svc}
}

func (h *ListTransactionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodPost,
		Path:        "/v1/transactions/list",
		Summary:     "List transactions",
		Description: "Returns the caller's transactions newest first using cursor-based pagination.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

// parseListTransactionsInput parses and validates the API input.
// When a cursor is provided, limit and maxCreationTime come from it.
// Without a cursor, the service uses its default limit.
func parseListTransactionsInput(input *ListTransactionsInput) (accountID *uuid.UUID, cursor *service.TransactionCursor, err error) {
	if input.Body.AccountID != "" {
		id, parseErr := uuid.FromString(input.Body.AccountID)
		if parseErr != nil {
			return nil, nil, huma.NewError(http.StatusBadRequest, "invalid accountId", parseErr)
		}
		accountID = &id
	}

	if input.Body.Cursor == nil {
		return accountID, nil, nil
	}

	if input.Body.Cursor.Position < 0 {
		return nil, nil, huma.NewError(http.StatusBadRequest, "cursor position must be non-negative")
	}

	maxCreationTime, parseErr := time.Parse(time.RFC3339, input.Body.Cursor.MaxCreationTime)
	if parseErr != nil {
		return nil, nil, huma.NewError(http.StatusBadRequest, "invalid cursor maxCreationTime", parseErr)
	}

	return accountID, &service.TransactionCursor{
		Position:        input.Body.Cursor.Position,
		Limit:           input.Body.Cursor.Limit,
		MaxCreationTime: maxCreationTime,
	}, nil
}

func (h *ListTransactionsHandler) handle(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	logData := logging.GetLogData(ctx)
	accountID, requestCursor, err := parseListTransactionsInput(input)
	if err != nil {
		return nil, err
	}

	stopTimer := logData.AddTiming("listTransactionsMs")
	transactions, nextCursor, err := h.TransactionService.ListTransactions(ctx, userID, accountID, requestCursor)
	stopTimer()
	if err != nil {
		return nil, apierror.From(err, "failed to list transactions")
	}

	logData.AddData("transactionCount", len(transactions))

	resp := ListTransactionsResponseBody{
		Transactions: make([]Transaction, len(transactions)),
	}
	for i, tx := range transactions {
		resp.Transactions[i] = toTransaction(tx)
	}

	if nextCursor != nil {
		resp.NextCursor = &ListTransactionsCursor{
			Position:        nextCursor.Position,
			Limit:           nextCursor.Limit,
			MaxCreationTime: nextCursor.MaxCreationTime.Format(time.RFC3339),
		}
	}

	return &ListTransactionsOutput{Body: resp}, nil
}
