package item

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

type Reader struct {
	exec bob.Executor
}

var _ IItemReader = (*Reader)(nil)

func NewReader(exec bob.Executor) *Reader {
	return &Reader{exec: exec}
}

func (r *Reader) Get(ctx context.Context, userID, itemID string) (*ledger.LinkedItem, error) {
	return r.findOne(ctx,
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.Where(psql.Quote("item_id").EQ(psql.Arg(itemID))),
	)
}

func (r *Reader) FindByItemID(ctx context.Context, itemID string) (*ledger.LinkedItem, error) {
	return r.findOne(ctx, sm.Where(psql.Quote("item_id").EQ(psql.Arg(itemID))))
}

func (r *Reader) findOne(ctx context.Context, where ...bob.Mod[*dialect.SelectQuery]) (*ledger.LinkedItem, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(itemColumns...),
		sm.From(itemsTable),
		sm.Limit(1),
	}
	queryMods = append(queryMods, where...)

	row, err := bob.One(ctx, r.exec, psql.Select(queryMods...), scan.StructMapper[itemRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToItem(row), nil
}

func (r *Reader) ListByUser(ctx context.Context, userID string) ([]*ledger.LinkedItem, error) {
	query := psql.Select(
		sm.Columns(itemColumns...),
		sm.From(itemsTable),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.OrderBy(psql.Quote("created_at")).Asc(),
	)
	rows, err := bob.All(ctx, r.exec, query, scan.StructMapper[itemRow]())
	if err != nil {
		return nil, err
	}
	items := make([]*ledger.LinkedItem, len(rows))
	for i, row := range rows {
		items[i] = rowToItem(row)
	}
	return items, nil
}

func (r *Reader) ListDueForSync(ctx context.Context, cutoff time.Time) ([]*ledger.LinkedItem, error) {
	query := psql.Select(
		sm.Columns(itemColumns...),
		sm.From(itemsTable),
		sm.Where(psql.Quote("status").EQ(psql.Arg(string(ledger.ItemActive)))),
		sm.Where(psql.Or(
			psql.Quote("last_synced_at").IsNull(),
			psql.Quote("last_synced_at").LT(psql.Arg(cutoff)),
		)),
		sm.OrderBy(psql.Quote("last_synced_at")).Asc().NullsFirst(),
	)
	rows, err := bob.All(ctx, r.exec, query, scan.StructMapper[itemRow]())
	if err != nil {
		return nil, err
	}
	items := make([]*ledger.LinkedItem, len(rows))
	for i, row := range rows {
		items[i] = rowToItem(row)
	}
	return items, nil
}

func (r *Reader) ListAccounts(ctx context.Context, userID, itemID string) ([]ledger.LinkedAccount, error) {
	query := psql.Select(
		sm.Columns(accountColumns...),
		sm.From(accountsTable),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.Where(psql.Quote("item_id").EQ(psql.Arg(itemID))),
	)
	rows, err := bob.All(ctx, r.exec, query, scan.StructMapper[accountRow]())
	if err != nil {
		return nil, err
	}
	accounts := make([]ledger.LinkedAccount, len(rows))
	for i, row := range rows {
		accounts[i] = rowToAccount(row)
	}
	return accounts, nil
}
