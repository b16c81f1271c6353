package actions

import (
	"context"

	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// DeleteRemoved deletes the user's provider records the provider reported as removed.
type DeleteRemoved struct {
	UserID      string
	Source      ledger.Source
	ExternalIDs []string

	Deleted int64
}

func (d *DeleteRemoved) Perform(ctx context.Context, writer *storage.Writer) error {
	var err error
	d.Deleted, err = writer.Transactions.DeleteByExternalIDs(ctx, d.UserID, d.Source, d.ExternalIDs)
	return err
}
