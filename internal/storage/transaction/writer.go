package transaction

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/lib/pq"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/um"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

type Writer struct {
	tx bob.Tx
	Reader
}

var _ ITransactionWriter = (*Writer)(nil)

func NewWriter(tx bob.Tx) *Writer {
	return &Writer{
		tx: tx,
		Reader: Reader{
			exec: tx,
		},
	}
}

func (w *Writer) LockAccount(ctx context.Context, owner ledger.Owner) error {
	key := owner.UserID + "|" + owner.AccountID.String()
	_, err := bob.Exec(ctx, w.tx, psql.RawQuery("SELECT pg_advisory_xact_lock(hashtext(?))", key))
	return err
}

func (w *Writer) Insert(ctx context.Context, rec ledger.TransactionRecord) (bool, error) {
	query := psql.Insert(
		im.Into(tableName,
			"id", "user_id", "account_id", "type", "amount", "date", "description",
			"category", "parent_category", "status", "account_mask", "source", "external_id",
			"created_at", "updated_at",
		),
		im.Values(psql.Arg(
			rec.ID, rec.UserID, rec.AccountID, string(rec.Type), rec.Amount, ledger.TruncateDate(rec.Date), rec.Description,
			rec.Category, rec.ParentCategory, string(rec.Status), rec.AccountMask, string(rec.Source), rec.ExternalID,
			rec.CreatedAt, rec.UpdatedAt,
		)),
		im.OnConflict("id").DoNothing(),
	)
	res, err := bob.Exec(ctx, w.tx, query)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (w *Writer) Update(ctx context.Context, id uuid.UUID, patch ledger.TransactionPatch, now time.Time) error {
	if patch.IsEmpty() {
		return nil
	}

	mods := []bob.Mod[*dialect.UpdateQuery]{
		um.Table(tableName),
		um.SetCol("updated_at").ToArg(now),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
	}
	if v, ok := patch.Status.Get(); ok {
		mods = append(mods, um.SetCol("status").ToArg(string(v)))
	}
	if v, ok := patch.Amount.Get(); ok {
		mods = append(mods, um.SetCol("amount").ToArg(v))
	}
	if v, ok := patch.Date.Get(); ok {
		mods = append(mods, um.SetCol("date").ToArg(ledger.TruncateDate(v)))
	}
	if v, ok := patch.Description.Get(); ok {
		mods = append(mods, um.SetCol("description").ToArg(v))
	}
	if v, ok := patch.Category.Get(); ok {
		mods = append(mods, um.SetCol("category").ToArg(v))
	}
	if v, ok := patch.ParentCategory.Get(); ok {
		mods = append(mods, um.SetCol("parent_category").ToArg(v))
	}
	if v, ok := patch.AccountMask.Get(); ok {
		mods = append(mods, um.SetCol("account_mask").ToArg(v))
	}

	_, err := bob.Exec(ctx, w.tx, psql.Update(mods...))
	return err
}

func (w *Writer) DeleteByIDs(ctx context.Context, userID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := psql.Delete(
		dm.From(tableName),
		dm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		dm.Where(psql.Quote("id").EQ(psql.Raw("ANY(?::uuid[])", pq.Array(uuidStrings(ids))))),
	)
	res, err := bob.Exec(ctx, w.tx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (w *Writer) DeleteByExternalIDs(ctx context.Context, userID string, source ledger.Source, externalIDs []string) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	query := psql.Delete(
		dm.From(tableName),
		dm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		dm.Where(psql.Quote("source").EQ(psql.Arg(string(source)))),
		dm.Where(psql.Quote("external_id").EQ(psql.Raw("ANY(?)", pq.Array(externalIDs)))),
	)
	res, err := bob.Exec(ctx, w.tx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
