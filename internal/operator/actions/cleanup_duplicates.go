package actions

import (
	"context"

	"github.com/carson-networks/ingest-server/internal/dedup"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// CleanupDuplicates removes all but one record of every exact duplicate
// group of a user. With DryRun set it only computes the plan.
type CleanupDuplicates struct {
	UserID string
	DryRun bool

	Plan    []dedup.CleanupGroup
	Deleted int64
}

func (c *CleanupDuplicates) Perform(ctx context.Context, writer *storage.Writer) error {
	c.Plan = nil
	c.Deleted = 0

	seen, err := writer.Transactions.ListByUser(ctx, c.UserID)
	if err != nil {
		return err
	}
	owners := distinctOwners(seen)
	if len(owners) == 0 {
		return nil
	}

	if !c.DryRun {
		for _, owner := range owners {
			if err := writer.Transactions.LockAccount(ctx, owner); err != nil {
				return err
			}
		}
	}

	// Re-read under the locks. Accounts that appeared since the first read
	// are left for the next run.
	records, err := writer.Transactions.ListByUser(ctx, c.UserID)
	if err != nil {
		return err
	}
	locked := make(map[ledger.Owner]bool, len(owners))
	for _, owner := range owners {
		locked[owner] = true
	}
	kept := records[:0]
	for _, rec := range records {
		if locked[ledger.Owner{UserID: rec.UserID, AccountID: rec.AccountID}] {
			kept = append(kept, rec)
		}
	}

	c.Plan = dedup.PlanCleanup(kept)
	if c.DryRun || len(c.Plan) == 0 {
		return nil
	}
	c.Deleted, err = writer.Transactions.DeleteByIDs(ctx, c.UserID, dedup.DeleteIDs(c.Plan))
	return err
}
