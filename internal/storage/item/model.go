package item

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

const (
	itemsTable    = "linked_items"
	accountsTable = "linked_accounts"
)

var itemColumns = []any{
	"item_id",
	"user_id",
	"access_token",
	"institution_name",
	"status",
	"error",
	"cursor",
	"last_synced_at",
	"created_at",
	"updated_at",
}

var accountColumns = []any{
	"user_id",
	"item_id",
	"provider_account_id",
	"account_id",
	"name",
	"mask",
}

// IItemReader reads linked provider items and their accounts.
//
//go:generate mockery --name IItemReader --output mock_IItemReader.go
type IItemReader interface {
	Get(ctx context.Context, userID, itemID string) (*ledger.LinkedItem, error)
	// FindByItemID looks an item up without a user scope, for provider webhooks.
	FindByItemID(ctx context.Context, itemID string) (*ledger.LinkedItem, error)
	ListByUser(ctx context.Context, userID string) ([]*ledger.LinkedItem, error)
	// ListDueForSync returns active items last synced before the cutoff or never.
	ListDueForSync(ctx context.Context, cutoff time.Time) ([]*ledger.LinkedItem, error)
	ListAccounts(ctx context.Context, userID, itemID string) ([]ledger.LinkedAccount, error)
}

// IItemWriter is the transactional write side of linked items.
//
//go:generate mockery --name IItemWriter --output mock_IItemWriter.go
type IItemWriter interface {
	IItemReader

	Upsert(ctx context.Context, item ledger.LinkedItem) error
	SetStatus(ctx context.Context, userID, itemID string, status ledger.ItemStatus, errMsg string, now time.Time) error
	SaveCursor(ctx context.Context, userID, itemID, cursor string, syncedAt time.Time) error
	UpsertAccount(ctx context.Context, account ledger.LinkedAccount) error
}

type itemRow struct {
	ItemID          string       `db:"item_id"`
	UserID          string       `db:"user_id"`
	AccessToken     string       `db:"access_token"`
	InstitutionName string       `db:"institution_name"`
	Status          string       `db:"status"`
	Error           string       `db:"error"`
	Cursor          string       `db:"cursor"`
	LastSyncedAt    sql.NullTime `db:"last_synced_at"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

type accountRow struct {
	UserID            string    `db:"user_id"`
	ItemID            string    `db:"item_id"`
	ProviderAccountID string    `db:"provider_account_id"`
	AccountID         uuid.UUID `db:"account_id"`
	Name              string    `db:"name"`
	Mask              string    `db:"mask"`
}

func rowToItem(row itemRow) *ledger.LinkedItem {
	item := &ledger.LinkedItem{
		ItemID:          row.ItemID,
		UserID:          row.UserID,
		AccessToken:     row.AccessToken,
		InstitutionName: row.InstitutionName,
		Status:          ledger.ItemStatus(row.Status),
		Error:           row.Error,
		Cursor:          row.Cursor,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.LastSyncedAt.Valid {
		t := row.LastSyncedAt.Time
		item.LastSyncedAt = &t
	}
	return item
}

func rowToAccount(row accountRow) ledger.LinkedAccount {
	return ledger.LinkedAccount{
		UserID:            row.UserID,
		ItemID:            row.ItemID,
		ProviderAccountID: row.ProviderAccountID,
		AccountID:         row.AccountID,
		Name:              row.Name,
		Mask:              row.Mask,
	}
}
