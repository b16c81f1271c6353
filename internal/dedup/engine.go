package dedup

import (
	"time"

	"github.com/aarondl/opt/omit"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// Action is the outcome of classifying one candidate record.
type Action string

const (
	ActionCreate Action = "create"
	ActionSkip   Action = "skip"
	// ActionMerge moves an existing pending record to posted.
	ActionMerge Action = "merge"
	// ActionUpdate fills fields on an existing record without a status change.
	ActionUpdate    Action = "update"
	ActionAmbiguous Action = "ambiguous"
)

const (
	// SimilarityBar is the minimum description similarity for a fuzzy match.
	SimilarityBar = 0.8

	// MaxThreshold bounds the caller-configured tolerance.
	MaxThreshold = 100

	thresholdUnit = time.Hour
)

// Decision is the classification of a candidate against persisted records.
type Decision struct {
	Action Action
	Target *ledger.TransactionRecord
	Patch  ledger.TransactionPatch
	Err    error
}

// Engine compares candidates against existing records. It holds no state
// beyond its configuration and is safe for concurrent use.
type Engine struct {
	bar float64
}

func NewEngine() *Engine {
	return &Engine{bar: SimilarityBar}
}

// Window is how far apart two dates may be and still match. A threshold of
// zero only matches the same calendar date.
func (e *Engine) Window(threshold int) time.Duration {
	if threshold <= 0 {
		return 0
	}
	if threshold > MaxThreshold {
		threshold = MaxThreshold
	}
	return time.Duration(threshold) * thresholdUnit
}

// Range returns the inclusive date range to load existing records from.
func (e *Engine) Range(candidate ledger.TransactionRecord, threshold int) (time.Time, time.Time) {
	date := ledger.TruncateDate(candidate.Date)
	window := e.Window(threshold)
	return ledger.TruncateDate(date.Add(-window)), ledger.TruncateDate(date.Add(window))
}

// Matches reports whether existing is the same logical transaction as
// candidate under threshold.
func (e *Engine) Matches(candidate, existing ledger.TransactionRecord, threshold int) bool {
	if candidate.UserID != existing.UserID || candidate.AccountID != existing.AccountID {
		return false
	}
	if !candidate.Amount.Equal(existing.Amount) {
		return false
	}
	if threshold <= 0 {
		return sameKey(candidate, existing)
	}

	gap := ledger.TruncateDate(candidate.Date).Sub(ledger.TruncateDate(existing.Date))
	if gap < 0 {
		gap = -gap
	}
	if gap > e.Window(threshold) {
		return false
	}
	return Similarity(candidate.Description, existing.Description) >= e.bar
}

// Classify decides what to do with candidate given the persisted records
// of the same account that fall inside the threshold's date range.
func (e *Engine) Classify(candidate ledger.TransactionRecord, existing []ledger.TransactionRecord, threshold int) Decision {
	for i := range existing {
		if existing[i].ID == candidate.ID {
			return decide(candidate, &existing[i], true)
		}
	}

	var exact, fuzzy []*ledger.TransactionRecord
	for i := range existing {
		rec := &existing[i]
		if !e.Matches(candidate, *rec, threshold) {
			continue
		}
		if sameKey(candidate, *rec) {
			exact = append(exact, rec)
		} else {
			fuzzy = append(fuzzy, rec)
		}
	}

	switch {
	case len(exact) == 1:
		return decide(candidate, exact[0], false)
	case len(exact) > 1:
		return ambiguous(exact)
	case len(fuzzy) == 1:
		return decide(candidate, fuzzy[0], false)
	case len(fuzzy) > 1:
		return ambiguous(fuzzy)
	}
	return Decision{Action: ActionCreate}
}

func decide(candidate ledger.TransactionRecord, target *ledger.TransactionRecord, sameSource bool) Decision {
	patch := diff(*target, candidate, sameSource)
	switch {
	case patch.IsEmpty():
		return Decision{Action: ActionSkip, Target: target}
	case patch.Status.IsValue():
		return Decision{Action: ActionMerge, Target: target, Patch: patch}
	}
	return Decision{Action: ActionUpdate, Target: target, Patch: patch}
}

func ambiguous(matches []*ledger.TransactionRecord) Decision {
	err := &ledger.DuplicateResolutionAmbiguity{}
	for _, m := range matches {
		err.Matches = append(err.Matches, m.ID)
	}
	return Decision{Action: ActionAmbiguous, Err: err}
}

// diff builds the patch that brings existing up to date with candidate.
// Status only moves from pending to posted. When both come from the same
// source row the candidate's amount, date and description win.
func diff(existing, candidate ledger.TransactionRecord, sameSource bool) ledger.TransactionPatch {
	var patch ledger.TransactionPatch

	if existing.Status == ledger.StatusPending && candidate.Status == ledger.StatusPosted {
		patch.Status = omit.From(ledger.StatusPosted)
	}
	if existing.AccountMask == "" && candidate.AccountMask != "" {
		patch.AccountMask = omit.From(candidate.AccountMask)
	}
	if isUncategorized(existing.Category) && !isUncategorized(candidate.Category) {
		patch.Category = omit.From(candidate.Category)
		patch.ParentCategory = omit.From(candidate.ParentCategory)
	}

	if sameSource {
		if !existing.Amount.Equal(candidate.Amount) {
			patch.Amount = omit.From(candidate.Amount)
		}
		if !ledger.TruncateDate(existing.Date).Equal(ledger.TruncateDate(candidate.Date)) {
			patch.Date = omit.From(ledger.TruncateDate(candidate.Date))
		}
		if existing.Description != candidate.Description {
			patch.Description = omit.From(candidate.Description)
		}
	}
	return patch
}

func sameKey(a, b ledger.TransactionRecord) bool {
	return a.AccountID == b.AccountID &&
		ledger.TruncateDate(a.Date).Equal(ledger.TruncateDate(b.Date)) &&
		a.Amount.Equal(b.Amount) &&
		a.Description == b.Description
}

func isUncategorized(category string) bool {
	return category == "" || category == ledger.Uncategorized
}
