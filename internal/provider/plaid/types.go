package plaid

import (
	"context"

	"github.com/shopspring/decimal"
)

// Provider is the subset of the aggregation provider API the sync worker uses.
//
//go:generate mockery --name Provider --output mock_Provider.go
type Provider interface {
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	GetItem(ctx context.Context, accessToken string) (*ItemResponse, error)
	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string, count int) (*SyncResponse, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type ItemResponse struct {
	Item struct {
		ItemID        string `json:"item_id"`
		InstitutionID string `json:"institution_id"`
	} `json:"item"`
	Institution struct {
		Name string `json:"name"`
	} `json:"institution"`
}

// Account is one account inside a linked item.
type Account struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name"`
	Mask         string `json:"mask"`
	Type         string `json:"type"`
	Subtype      string `json:"subtype"`
}

// Transaction as returned by transactions/sync. Positive amounts are outflows.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Name          string          `json:"name"`
	MerchantName  string          `json:"merchant_name"`
	Pending       bool            `json:"pending"`
	Category      []string        `json:"category"`
}

type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
}

// SyncResponse is one page of transactions/sync.
type SyncResponse struct {
	Added      []Transaction        `json:"added"`
	Modified   []Transaction        `json:"modified"`
	Removed    []RemovedTransaction `json:"removed"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}
