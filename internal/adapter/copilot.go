package adapter

import (
	"github.com/carson-networks/ingest-server/internal/ledger"
)

var copilotTypes = map[string]ledger.TransactionType{
	"regular":           ledger.TypeDebit,
	"income":            ledger.TypeCredit,
	"internal transfer": ledger.TypeTransfer,
}

// Copilot normalizes Copilot Money exports. Copilot reports spending as
// positive amounts, so the sign is flipped into the canonical convention.
type Copilot struct{}

func (Copilot) Normalize(row Row, owner ledger.Owner) (ledger.TransactionRecord, error) {
	date, err := ParseDate(row.Get("date"), ledger.DateLayout)
	if err != nil {
		return ledger.TransactionRecord{}, rowError(row, "date: %v", err)
	}

	amount, err := ParseAmount(row.Get("amount"))
	if err != nil {
		return ledger.TransactionRecord{}, rowError(row, "amount: %v", err)
	}
	amount = amount.Neg()

	description := row.Get("name")

	return ledger.TransactionRecord{
		ID:             ledger.RecordID(owner, date, amount, description),
		UserID:         owner.UserID,
		AccountID:      owner.AccountID,
		Type:           InferType(row.Get("type"), copilotTypes),
		Amount:         amount,
		Date:           date,
		Description:    description,
		Category:       orUncategorized(row.Get("category")),
		ParentCategory: orUncategorized(row.Get("parent category", "parent_category")),
		Status:         parseStatus(row.Get("status")),
		AccountMask:    lastFour(row.Get("account mask", "account_mask")),
		Source:         ledger.SourceImport,
	}, nil
}

func (Copilot) AccountName(row Row) string {
	return row.Get("account")
}

var _ Adapter = Copilot{}
