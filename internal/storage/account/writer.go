package account

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

type Writer struct {
	tx bob.Tx
	Reader
}

var _ IAccountWriter = (*Writer)(nil)

func NewWriter(tx bob.Tx) *Writer {
	return &Writer{
		tx: tx,
		Reader: Reader{
			exec: tx,
		},
	}
}

func (w *Writer) Ensure(ctx context.Context, userID, name string, now time.Time) (uuid.UUID, error) {
	id := ledger.AccountID(userID, NameKind, name)
	query := psql.Insert(
		im.Into(tableName, "id", "user_id", "name", "created_at"),
		im.Values(psql.Arg(id, userID, name, now)),
		im.OnConflict("user_id", "name").DoNothing(),
	)
	if _, err := bob.Exec(ctx, w.tx, query); err != nil {
		return uuid.Nil, err
	}

	existing, err := w.FindByName(ctx, userID, name)
	if err != nil {
		return uuid.Nil, err
	}
	return existing.ID, nil
}
