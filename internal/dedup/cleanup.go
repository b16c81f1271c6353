package dedup

import (
	"sort"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// CleanupGroup is one set of records sharing the exact dedup key.
type CleanupGroup struct {
	Keep   uuid.UUID
	Delete []uuid.UUID
}

// PlanCleanup groups records by exact (account, description, date, amount)
// and, for every group with more than one member, keeps the earliest
// created record. Ties on creation time keep the smallest id. Groups of one
// are never returned, so applying a plan never empties a group and a second
// plan over the result is empty.
func PlanCleanup(records []ledger.TransactionRecord) []CleanupGroup {
	groups := make(map[string][]ledger.TransactionRecord)
	var order []string
	for _, rec := range records {
		key := cleanupKey(rec)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}
	sort.Strings(order)

	var plan []CleanupGroup
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
				return members[i].CreatedAt.Before(members[j].CreatedAt)
			}
			return members[i].ID.String() < members[j].ID.String()
		})

		group := CleanupGroup{Keep: members[0].ID}
		for _, m := range members[1:] {
			group.Delete = append(group.Delete, m.ID)
		}
		plan = append(plan, group)
	}
	return plan
}

// DeleteIDs flattens a plan into the ids to remove.
func DeleteIDs(plan []CleanupGroup) []uuid.UUID {
	var ids []uuid.UUID
	for _, g := range plan {
		ids = append(ids, g.Delete...)
	}
	return ids
}

func cleanupKey(rec ledger.TransactionRecord) string {
	return strings.Join([]string{
		rec.UserID,
		rec.AccountID.String(),
		rec.Description,
		ledger.TruncateDate(rec.Date).Format(ledger.DateLayout),
		rec.Amount.String(),
	}, "\x00")
}
