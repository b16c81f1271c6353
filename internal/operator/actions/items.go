package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// UpsertItem stores a linked item and the provider accounts inside it.
type UpsertItem struct {
	Item     ledger.LinkedItem
	Accounts []ledger.LinkedAccount
}

func (u *UpsertItem) Perform(ctx context.Context, writer *storage.Writer) error {
	if err := writer.Items.Upsert(ctx, u.Item); err != nil {
		return fmt.Errorf("upsert item %s: %w", u.Item.ItemID, err)
	}
	for _, acct := range u.Accounts {
		if err := writer.Items.UpsertAccount(ctx, acct); err != nil {
			return fmt.Errorf("upsert account %s: %w", acct.ProviderAccountID, err)
		}
	}
	return nil
}

// SetItemStatus moves a linked item to a new status with an optional message.
type SetItemStatus struct {
	UserID  string
	ItemID  string
	Status  ledger.ItemStatus
	Message string
	Now     time.Time
}

func (s *SetItemStatus) Perform(ctx context.Context, writer *storage.Writer) error {
	return writer.Items.SetStatus(ctx, s.UserID, s.ItemID, s.Status, s.Message, s.Now)
}

// SaveCursor records how far an item's sync has progressed.
type SaveCursor struct {
	UserID   string
	ItemID   string
	Cursor   string
	SyncedAt time.Time
}

func (s *SaveCursor) Perform(ctx context.Context, writer *storage.Writer) error {
	return writer.Items.SaveCursor(ctx, s.UserID, s.ItemID, s.Cursor, s.SyncedAt)
}

// ResolveAccount finds or creates the user's finance account with Name.
type ResolveAccount struct {
	UserID string
	Name   string
	Now    time.Time

	AccountID uuid.UUID
}

func (r *ResolveAccount) Perform(ctx context.Context, writer *storage.Writer) error {
	var err error
	r.AccountID, err = writer.Accounts.Ensure(ctx, r.UserID, r.Name, r.Now)
	return err
}
