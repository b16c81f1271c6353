package actions

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/dedup"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// BatchRecord is a normalized record and the source row it came from.
type BatchRecord struct {
	Row    int
	Record ledger.TransactionRecord
}

// RowOutcome is what PersistBatch did with one record.
type RowOutcome struct {
	Row      int
	Action   dedup.Action
	RecordID uuid.UUID
	Err      error
}

// PersistBatch writes a batch of records through the deduplication engine.
// Each account touched is locked first and its existing records re-read
// inside the transaction, so two batches for the same account can never both
// create the same record. Accounts are locked in sorted order.
type PersistBatch struct {
	Records   []BatchRecord
	Threshold int
	Engine    *dedup.Engine
	Now       time.Time

	Outcomes []RowOutcome
}

func (p *PersistBatch) Perform(ctx context.Context, writer *storage.Writer) error {
	p.Outcomes = make([]RowOutcome, 0, len(p.Records))
	engine := p.Engine
	if engine == nil {
		engine = dedup.NewEngine()
	}
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	byOwner := make(map[ledger.Owner][]BatchRecord)
	var owners []ledger.Owner
	for _, br := range p.Records {
		owner := ledger.Owner{UserID: br.Record.UserID, AccountID: br.Record.AccountID}
		if _, ok := byOwner[owner]; !ok {
			owners = append(owners, owner)
		}
		byOwner[owner] = append(byOwner[owner], br)
	}
	sortOwners(owners)

	results := make(map[int]RowOutcome, len(p.Records))
	for _, owner := range owners {
		if err := p.persistAccount(ctx, writer, engine, owner, byOwner[owner], now, results); err != nil {
			return err
		}
	}
	for _, br := range p.Records {
		p.Outcomes = append(p.Outcomes, results[br.Row])
	}
	return nil
}

func (p *PersistBatch) persistAccount(
	ctx context.Context,
	writer *storage.Writer,
	engine *dedup.Engine,
	owner ledger.Owner,
	records []BatchRecord,
	now time.Time,
	results map[int]RowOutcome,
) error {
	if err := writer.Transactions.LockAccount(ctx, owner); err != nil {
		return fmt.Errorf("lock account %s: %w", owner.AccountID, err)
	}

	existing, err := loadCandidates(ctx, writer, engine, owner, records, p.Threshold)
	if err != nil {
		return err
	}

	for _, br := range records {
		candidate := br.Record
		if candidate.CreatedAt.IsZero() {
			candidate.CreatedAt = now
		}
		if candidate.UpdatedAt.IsZero() {
			candidate.UpdatedAt = now
		}

		decision := engine.Classify(candidate, existing, p.Threshold)
		outcome := RowOutcome{Row: br.Row, Action: decision.Action, RecordID: candidate.ID, Err: decision.Err}

		switch decision.Action {
		case dedup.ActionCreate:
			inserted, err := writer.Transactions.Insert(ctx, candidate)
			if err != nil {
				return fmt.Errorf("insert row %d: %w", br.Row, err)
			}
			if !inserted {
				outcome.Action = dedup.ActionSkip
				break
			}
			existing = append(existing, candidate)
		case dedup.ActionMerge, dedup.ActionUpdate:
			target := decision.Target
			outcome.RecordID = target.ID
			if err := writer.Transactions.Update(ctx, target.ID, decision.Patch, now); err != nil {
				return fmt.Errorf("update row %d: %w", br.Row, err)
			}
			for i := range existing {
				if existing[i].ID == target.ID {
					existing[i] = decision.Patch.Apply(existing[i], now)
				}
			}
		case dedup.ActionSkip:
			outcome.RecordID = decision.Target.ID
		}
		results[br.Row] = outcome
	}
	return nil
}

// loadCandidates reads every existing record that could match one of the
// batch's records: those inside the union of their date ranges plus those
// sharing an id.
func loadCandidates(
	ctx context.Context,
	writer *storage.Writer,
	engine *dedup.Engine,
	owner ledger.Owner,
	records []BatchRecord,
	threshold int,
) ([]ledger.TransactionRecord, error) {
	var from, to time.Time
	ids := make([]uuid.UUID, 0, len(records))
	for i, br := range records {
		lo, hi := engine.Range(br.Record, threshold)
		if i == 0 || lo.Before(from) {
			from = lo
		}
		if i == 0 || hi.After(to) {
			to = hi
		}
		ids = append(ids, br.Record.ID)
	}

	inRange, err := writer.Transactions.FindInRange(ctx, owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	byID, err := writer.Transactions.FindByIDs(ctx, owner.UserID, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidates by id: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(inRange))
	for _, rec := range inRange {
		seen[rec.ID] = true
	}
	for _, rec := range byID {
		if !seen[rec.ID] {
			seen[rec.ID] = true
			inRange = append(inRange, rec)
		}
	}
	return inRange, nil
}

// distinctOwners returns the accounts records belong to in lock order.
func distinctOwners(records []ledger.TransactionRecord) []ledger.Owner {
	seen := make(map[ledger.Owner]bool)
	var owners []ledger.Owner
	for _, rec := range records {
		owner := ledger.Owner{UserID: rec.UserID, AccountID: rec.AccountID}
		if !seen[owner] {
			seen[owner] = true
			owners = append(owners, owner)
		}
	}
	sortOwners(owners)
	return owners
}

// sortOwners puts owners in the order every action takes account locks.
func sortOwners(owners []ledger.Owner) {
	sort.Slice(owners, func(i, j int) bool {
		if owners[i].UserID != owners[j].UserID {
			return owners[i].UserID < owners[j].UserID
		}
		return bytes.Compare(owners[i].AccountID[:], owners[j].AccountID[:]) < 0
	})
}
