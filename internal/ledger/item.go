package ledger

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ItemStatus is the lifecycle state of a linked provider item.
type ItemStatus string

const (
	ItemActive            ItemStatus = "active"
	ItemError             ItemStatus = "error"
	ItemPendingExpiration ItemStatus = "pending_expiration"
	ItemRevoked           ItemStatus = "revoked"
)

// LinkedItem is a user's connection to an institution through the aggregation provider.
type LinkedItem struct {
	ItemID          string
	UserID          string
	AccessToken     string
	InstitutionName string
	Status          ItemStatus
	Error           string
	Cursor          string
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LinkedAccount maps a provider account inside an item to a local account.
type LinkedAccount struct {
	UserID            string
	ItemID            string
	ProviderAccountID string
	AccountID         uuid.UUID
	Name              string
	Mask              string
}
