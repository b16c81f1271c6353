package adapter

import (
	"strings"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// PlaidCategorySeparator joins the provider's category hierarchy into one field.
const PlaidCategorySeparator = ">"

// Plaid normalizes rows built from aggregation provider transactions. The
// provider reports outflows as positive amounts.
type Plaid struct{}

func (Plaid) Normalize(row Row, owner ledger.Owner) (ledger.TransactionRecord, error) {
	externalID := row.Get("transaction_id")
	if externalID == "" {
		return ledger.TransactionRecord{}, rowError(row, "transaction_id is missing")
	}

	date, err := ParseDate(row.Get("date"), ledger.DateLayout)
	if err != nil {
		return ledger.TransactionRecord{}, rowError(row, "date: %v", err)
	}

	raw, err := ParseAmount(row.Get("amount"))
	if err != nil {
		return ledger.TransactionRecord{}, rowError(row, "amount: %v", err)
	}

	txType := ledger.TypeCredit
	if raw.IsPositive() {
		txType = ledger.TypeDebit
	}

	description := row.Get("name")
	if description == "" {
		description = row.Get("merchant_name")
	}

	category, parent := ledger.Uncategorized, ledger.Uncategorized
	if parts := splitCategory(row.Get("category")); len(parts) > 0 {
		category = parts[len(parts)-1]
		if len(parts) > 1 {
			parent = parts[0]
		}
	}

	status := ledger.StatusPosted
	if strings.EqualFold(row.Get("pending"), "true") {
		status = ledger.StatusPending
	}

	return ledger.TransactionRecord{
		ID:             ledger.ExternalRecordID(owner, ledger.SourcePlaid, externalID),
		UserID:         owner.UserID,
		AccountID:      owner.AccountID,
		Type:           txType,
		Amount:         raw.Neg().Round(2),
		Date:           date,
		Description:    description,
		Category:       category,
		ParentCategory: parent,
		Status:         status,
		AccountMask:    row.Get("mask"),
		Source:         ledger.SourcePlaid,
		ExternalID:     externalID,
	}, nil
}

func (Plaid) AccountName(row Row) string {
	return row.Get("account_id")
}

func splitCategory(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(raw, PlaidCategorySeparator) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

var _ Adapter = Plaid{}
