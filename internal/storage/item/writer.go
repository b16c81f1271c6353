package item

import (
	"context"
	"time"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

type Writer struct {
	tx bob.Tx
	Reader
}

var _ IItemWriter = (*Writer)(nil)

func NewWriter(tx bob.Tx) *Writer {
	return &Writer{
		tx: tx,
		Reader: Reader{
			exec: tx,
		},
	}
}

// Upsert inserts the item or, when the user already linked it, refreshes
// its token, institution and status. The sync cursor is kept.
func (w *Writer) Upsert(ctx context.Context, item ledger.LinkedItem) error {
	query := psql.Insert(
		im.Into(itemsTable,
			"item_id", "user_id", "access_token", "institution_name", "status", "error", "cursor",
			"created_at", "updated_at",
		),
		im.Values(psql.Arg(
			item.ItemID, item.UserID, item.AccessToken, item.InstitutionName, string(item.Status), item.Error, item.Cursor,
			item.CreatedAt, item.UpdatedAt,
		)),
		im.OnConflict("user_id", "item_id").DoUpdate(
			im.SetExcluded("access_token", "institution_name", "status", "error", "updated_at"),
		),
	)
	_, err := bob.Exec(ctx, w.tx, query)
	return err
}

func (w *Writer) SetStatus(ctx context.Context, userID, itemID string, status ledger.ItemStatus, errMsg string, now time.Time) error {
	query := psql.Update(
		um.Table(itemsTable),
		um.SetCol("status").ToArg(string(status)),
		um.SetCol("error").ToArg(errMsg),
		um.SetCol("updated_at").ToArg(now),
		um.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		um.Where(psql.Quote("item_id").EQ(psql.Arg(itemID))),
	)
	return w.execOne(ctx, query)
}

func (w *Writer) SaveCursor(ctx context.Context, userID, itemID, cursor string, syncedAt time.Time) error {
	query := psql.Update(
		um.Table(itemsTable),
		um.SetCol("cursor").ToArg(cursor),
		um.SetCol("last_synced_at").ToArg(syncedAt),
		um.SetCol("updated_at").ToArg(syncedAt),
		um.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		um.Where(psql.Quote("item_id").EQ(psql.Arg(itemID))),
	)
	return w.execOne(ctx, query)
}

func (w *Writer) UpsertAccount(ctx context.Context, account ledger.LinkedAccount) error {
	query := psql.Insert(
		im.Into(accountsTable, "user_id", "item_id", "provider_account_id", "account_id", "name", "mask"),
		im.Values(psql.Arg(
			account.UserID, account.ItemID, account.ProviderAccountID, account.AccountID, account.Name, account.Mask,
		)),
		im.OnConflict("user_id", "item_id", "provider_account_id").DoUpdate(
			im.SetExcluded("name", "mask"),
		),
	)
	_, err := bob.Exec(ctx, w.tx, query)
	return err
}

func (w *Writer) execOne(ctx context.Context, query bob.Query) error {
	res, err := bob.Exec(ctx, w.tx, query)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
