package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

type Reader struct {
	exec bob.Executor
}

var _ IAccountReader = (*Reader)(nil)

func NewReader(exec bob.Executor) *Reader {
	return &Reader{exec: exec}
}

func (r *Reader) FindByName(ctx context.Context, userID, name string) (*Account, error) {
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.Where(psql.Quote("name").EQ(psql.Arg(name))),
	)
	row, err := bob.One(ctx, r.exec, query, scan.StructMapper[Account]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Reader) ListByUser(ctx context.Context, userID string) ([]*Account, error) {
	query := psql.Select(
		sm.Columns(columns...),
		sm.From(tableName),
		sm.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
		sm.OrderBy(psql.Quote("name")).Asc(),
		sm.OrderBy(psql.Quote("id")).Asc(),
	)
	rows, err := bob.All(ctx, r.exec, query, scan.StructMapper[*Account]())
	if err != nil {
		return nil, err
	}
	return rows, nil
}
