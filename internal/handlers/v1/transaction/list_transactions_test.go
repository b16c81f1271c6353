package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/carson-networks/ingest-server/internal/auth"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/service"
)

const testUser = "user-1"

type mockTransactionLister struct {
	mock.Mock
}

func (m *mockTransactionLister) ListTransactions(
	ctx context.Context,
	userID string,
	accountID *uuid.UUID,
	cursor *service.TransactionCursor,
) ([]ledger.TransactionRecord, *service.TransactionCursor, error) {
	args := m.Called(ctx, userID, accountID, cursor)
	txs, _ := args.Get(0).([]ledger.TransactionRecord)
	next, _ := args.Get(1).(*service.TransactionCursor)
	return txs, next, args.Error(2)
}

// newTestAPI returns a humatest API whose requests are authenticated as
// userID. An empty userID leaves requests anonymous.
func newTestAPI(t *testing.T, userID string, register func(huma.API)) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	if userID != "" {
		api.UseMiddleware(func(ctx huma.Context, next func(huma.Context)) {
			next(huma.WithContext(ctx, auth.WithUserID(ctx.Context(), userID)))
		})
	}
	register(api)
	return api
}

func newListTestAPI(t *testing.T, svc transactionLister) humatest.TestAPI {
	return newTestAPI(t, testUser, NewListTransactionsHandler(svc).Register)
}

func record(now time.Time) ledger.TransactionRecord {
	return ledger.TransactionRecord{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      testUser,
		AccountID:   uuid.Must(uuid.NewV4()),
		Type:        ledger.TypeDebit,
		Amount:      decimal.RequireFromString("10.00"),
		Date:        ledger.TruncateDate(now),
		Description: "Coffee",
		Category:    ledger.Uncategorized,
		Status:      ledger.StatusPosted,
		Source:      ledger.SourceImport,
		CreatedAt:   now,
	}
}

// -- parseListTransactionsInput unit tests --

func TestParseListTransactionsInput_NoCursor(t *testing.T) {
	input := &ListTransactionsInput{
		Body: ListTransactionsBody{},
	}

	accountID, cursor, err := parseListTransactionsInput(input)
	assert.NoError(t, err)
	assert.Nil(t, accountID)
	assert.Nil(t, cursor)
}

func TestParseListTransactionsInput_WithCursor(t *testing.T) {
	cursorMaxTime := "2025-06-15T08:00:00Z"

	input := &ListTransactionsInput{
		Body: ListTransactionsBody{
			Cursor: &ListTransactionsCursor{
				Position:        40,
				Limit:           10,
				MaxCreationTime: cursorMaxTime,
			},
		},
	}

	_, cursor, err := parseListTransactionsInput(input)
	assert.NoError(t, err)

	expectedMax, _ := time.Parse(time.RFC3339, cursorMaxTime)
	assert.NotNil(t, cursor)
	assert.Equal(t, 40, cursor.Position)
	assert.Equal(t, 10, cursor.Limit)
	assert.Equal(t, expectedMax, cursor.MaxCreationTime)
}

func TestParseListTransactionsInput_AccountFilter(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	accountID, _, err := parseListTransactionsInput(&ListTransactionsInput{
		Body: ListTransactionsBody{AccountID: id.String()},
	})
	assert.NoError(t, err)
	if assert.NotNil(t, accountID) {
		assert.Equal(t, id, *accountID)
	}

	_, _, err = parseListTransactionsInput(&ListTransactionsInput{
		Body: ListTransactionsBody{AccountID: "checking"},
	})
	assert.Error(t, err)
}

func TestParseListTransactionsInput_InvalidCursorMaxCreationTime(t *testing.T) {
	input := &ListTransactionsInput{
		Body: ListTransactionsBody{
			Cursor: &ListTransactionsCursor{
				Position:        0,
				Limit:           10,
				MaxCreationTime: "not-a-date",
			},
		},
	}

	_, _, err := parseListTransactionsInput(input)
	assert.Error(t, err)
}

// -- HTTP integration tests --

func TestHTTP_ListTransactions_SinglePage(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tx := record(now)

	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, testUser, (*uuid.UUID)(nil), (*service.TransactionCursor)(nil)).
		Return([]ledger.TransactionRecord{tx}, (*service.TransactionCursor)(nil), nil)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transactions/list", ListTransactionsBody{})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ListTransactionsResponseBody
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Transactions, 1)
	assert.Equal(t, tx.ID.String(), body.Transactions[0].ID)
	assert.Equal(t, "2025-06-01", body.Transactions[0].Date)
	assert.Equal(t, "debit", body.Transactions[0].Type)
	assert.Nil(t, body.NextCursor)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_MultiplePages(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svcDefaultLimit := 20

	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, testUser, (*uuid.UUID)(nil), (*service.TransactionCursor)(nil)).
		Return([]ledger.TransactionRecord{record(now), record(now)}, &service.TransactionCursor{
			Position:        svcDefaultLimit,
			Limit:           svcDefaultLimit,
			MaxCreationTime: now,
		}, nil)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transactions/list", ListTransactionsBody{})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ListTransactionsResponseBody
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Transactions, 2)
	assert.NotNil(t, body.NextCursor)
	assert.Equal(t, svcDefaultLimit, body.NextCursor.Position)
	assert.Equal(t, svcDefaultLimit, body.NextCursor.Limit)
	assert.Equal(t, now.Format(time.RFC3339), body.NextCursor.MaxCreationTime)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_WithCursorAndAccount(t *testing.T) {
	maxTime := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	accountID := uuid.Must(uuid.NewV4())

	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, testUser,
		mock.MatchedBy(func(id *uuid.UUID) bool { return id != nil && *id == accountID }),
		mock.MatchedBy(func(c *service.TransactionCursor) bool {
			return c != nil &&
				c.Position == 40 &&
				c.Limit == 10 &&
				c.MaxCreationTime.Equal(maxTime)
		})).Return(([]ledger.TransactionRecord)(nil), (*service.TransactionCursor)(nil), nil)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transactions/list", ListTransactionsBody{
		AccountID: accountID.String(),
		Cursor: &ListTransactionsCursor{
			Position:        40,
			Limit:           10,
			MaxCreationTime: maxTime.Format(time.RFC3339),
		},
	})

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ListTransactionsResponseBody
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Transactions)
	assert.Nil(t, body.NextCursor)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_ServiceError(t *testing.T) {
	mockSvc := new(mockTransactionLister)
	mockSvc.On("ListTransactions", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(([]ledger.TransactionRecord)(nil), (*service.TransactionCursor)(nil), errors.New("database unavailable"))

	resp := newListTestAPI(t, mockSvc).Post("/v1/transactions/list", ListTransactionsBody{})

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	mockSvc.AssertExpectations(t)
}

func TestHTTP_ListTransactions_InvalidCursorMaxCreationTime(t *testing.T) {
	mockSvc := new(mockTransactionLister)

	resp := newListTestAPI(t, mockSvc).Post("/v1/transactions/list", ListTransactionsBody{
		Cursor: &ListTransactionsCursor{
			Position:        0,
			Limit:           10,
			MaxCreationTime: "not-a-date",
		},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	mockSvc.AssertNotCalled(t, "ListTransactions")
}

func TestHTTP_ListTransactions_RequiresUser(t *testing.T) {
	mockSvc := new(mockTransactionLister)

	resp := newTestAPI(t, "", NewListTransactionsHandler(mockSvc).Register).
		Post("/v1/transactions/list", ListTransactionsBody{})

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	mockSvc.AssertNotCalled(t, "ListTransactions")
}
