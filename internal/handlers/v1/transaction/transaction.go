package transaction

import (
	"time"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// Transaction is the API response model for a transaction.
// It is used only for responses, not for request bodies.
type Transaction struct {
	ID             string `json:"id" doc:"Transaction UUID"`
	AccountID      string `json:"accountId" doc:"Account UUID"`
	Type           string `json:"type" enum:"debit,credit,transfer"`
	Amount         string `json:"amount" doc:"Decimal amount, always non-negative"`
	Date           string `json:"date" doc:"Calendar date, YYYY-MM-DD"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	ParentCategory string `json:"parentCategory,omitempty"`
	Status         string `json:"status" enum:"posted,pending"`
	AccountMask    string `json:"accountMask,omitempty"`
	Source         string `json:"source" enum:"import,plaid"`
	CreatedAt      string `json:"createdAt" doc:"RFC3339 creation time"`
}

func toTransaction(tx ledger.TransactionRecord) Transaction {
	return Transaction{
		ID:             tx.ID.String(),
		AccountID:      tx.AccountID.String(),
		Type:           string(tx.Type),
		Amount:         tx.Amount.String(),
		Date:           tx.Date.Format(ledger.DateLayout),
		Description:    tx.Description,
		Category:       tx.Category,
		ParentCategory: tx.ParentCategory,
		Status:         string(tx.Status),
		AccountMask:    tx.AccountMask,
		Source:         string(tx.Source),
		CreatedAt:      tx.CreatedAt.Format(time.RFC3339),
	}
}
