package transaction

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/lib/pq"
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

var _ ITransactionReader = (*Reader)(nil)

func NewReader(exec bob.Executor) *Reader {
	return &Reader{exec: exec}
}

func (r *Reader) FindInRange(ctx context.Context, owner ledger.Owner, from, to time.Time) ([]ledger.TransactionRecord, error) {
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(owner.UserID))),
		sm.Where(psql.Quote("account_id").EQ(psql.Arg(owner.AccountID))),
		sm.Where(psql.Quote("date").Between(psql.Arg(ledger.TruncateDate(from)), psql.Arg(ledger.TruncateDate(to)))),
		sm.OrderBy(psql.Quote("created_at")).Asc(),
	)
	rows, err := bob.All(ctx, r.exec, query, scan.StructMapper[transactionRow]())
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows), nil
}

func (r *Reader) FindByIDs(ctx context.Context, userID string, ids []uuid.UUID) ([]ledger.TransactionRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.Where(psql.Quote("id").EQ(psql.Raw("ANY(?::uuid[])", pq.Array(uuidStrings(ids))))),
	)
	rows, err := bob.All(ctx, r.exec, query, scan.StructMapper[transactionRow]())
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows), nil
}

func (r *Reader) ListByUser(ctx context.Context, userID string) ([]ledger.TransactionRecord, error) {
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.OrderBy(psql.Quote("date")).Asc(),
		sm.OrderBy(psql.Quote("created_at")).Asc(),
	)
	rows, err := bob.All(ctx, r.exec, query, scan.StructMapper[transactionRow]())
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows), nil
}

func (r *Reader) List(ctx context.Context, filter *TransactionFilter) ([]ledger.TransactionRecord, error) {
	queryMods := []bob.Mod[*dialect.SelectQuery]{
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(filter.UserID))),
	}
	if filter.AccountID != nil {
		queryMods = append(queryMods, sm.Where(psql.Quote("account_id").EQ(psql.Arg(*filter.AccountID))))
	}
	if filter.MaxCreationTime != nil {
		queryMods = append(queryMods, sm.Where(psql.Quote("created_at").LTE(psql.Arg(*filter.MaxCreationTime))))
	}
	if filter.Limit > 0 {
		queryMods = append(queryMods, sm.Limit(filter.Limit+1))
	}
	if filter.Offset > 0 {
		queryMods = append(queryMods, sm.Offset(filter.Offset))
	}
	queryMods = append(queryMods,
		sm.OrderBy(psql.Quote("created_at")).Desc(),
		sm.OrderBy(psql.Quote("id")).Desc(),
	)

	rows, err := bob.All(ctx, r.exec, psql.Select(queryMods...), scan.StructMapper[transactionRow]())
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows), nil
}

func (r *Reader) ListUsers(ctx context.Context) ([]string, error) {
	query := psql.Select(
		sm.Distinct(),
		sm.Columns("user_id"),
		sm.From(tableName),
		sm.OrderBy(psql.Quote("user_id")).Asc(),
	)
	return bob.All(ctx, r.exec, query, scan.SingleColumnMapper[string])
}
