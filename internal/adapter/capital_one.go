package adapter

import (
	"strings"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

var capitalOneDateLayouts = []string{"1/2/2006", "1/2/06", ledger.DateLayout}

var capitalOneTypes = map[string]ledger.TransactionType{
	"debit":    ledger.TypeDebit,
	"credit":   ledger.TypeCredit,
	"transfer": ledger.TypeTransfer,
}

// CapitalOne normalizes Capital One account exports.
type CapitalOne struct{}

func (CapitalOne) Normalize(row Row, owner ledger.Owner) (ledger.TransactionRecord, error) {
	date, err := ParseDate(row.Get("Transaction Date"), capitalOneDateLayouts...)
	if err != nil {
		return ledger.TransactionRecord{}, rowError(row, "transaction date: %v", err)
	}

	amount, err := ParseAmount(row.Get("Transaction Amount"))
	if err != nil {
		return ledger.TransactionRecord{}, rowError(row, "transaction amount: %v", err)
	}

	txType := InferType(row.Get("Transaction Type"), capitalOneTypes)
	amount = signAmount(amount, txType)
	description := row.Get("Transaction Description")

	return ledger.TransactionRecord{
		ID:             ledger.RecordID(owner, date, amount, description),
		UserID:         owner.UserID,
		AccountID:      owner.AccountID,
		Type:           txType,
		Amount:         amount,
		Date:           date,
		Description:    description,
		Category:       ledger.Uncategorized,
		ParentCategory: ledger.Uncategorized,
		Status:         ledger.StatusPosted,
		AccountMask:    lastFour(row.Get("Account Number")),
		Source:         ledger.SourceImport,
	}, nil
}

func (CapitalOne) AccountName(row Row) string {
	number := strings.TrimSpace(row.Get("Account Number"))
	if number == "" {
		return "Capital One"
	}
	return "Capital One " + number
}

var _ Adapter = CapitalOne{}
