package ledger

import (
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/shopspring/decimal"
)

// TransactionPatch lists the fields a merge changes on an existing record.
// Unset fields are left untouched.
type TransactionPatch struct {
	Status         omit.Val[TransactionStatus]
	Amount         omit.Val[decimal.Decimal]
	Date           omit.Val[time.Time]
	Description    omit.Val[string]
	Category       omit.Val[string]
	ParentCategory omit.Val[string]
	AccountMask    omit.Val[string]
}

// IsEmpty reports whether applying the patch would change nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Status.IsUnset() &&
		p.Amount.IsUnset() &&
		p.Date.IsUnset() &&
		p.Description.IsUnset() &&
		p.Category.IsUnset() &&
		p.ParentCategory.IsUnset() &&
		p.AccountMask.IsUnset()
}

// Apply returns a copy of rec with the patch applied.
func (p TransactionPatch) Apply(rec TransactionRecord, now time.Time) TransactionRecord {
	if v, ok := p.Status.Get(); ok {
		rec.Status = v
	}
	if v, ok := p.Amount.Get(); ok {
		rec.Amount = v
	}
	if v, ok := p.Date.Get(); ok {
		rec.Date = v
	}
	if v, ok := p.Description.Get(); ok {
		rec.Description = v
	}
	if v, ok := p.Category.Get(); ok {
		rec.Category = v
	}
	if v, ok := p.ParentCategory.Get(); ok {
		rec.ParentCategory = v
	}
	if v, ok := p.AccountMask.Get(); ok {
		rec.AccountMask = v
	}
	rec.UpdatedAt = now
	return rec
}
