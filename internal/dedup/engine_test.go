package dedup

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

var testAccount = uuid.Must(uuid.FromString("0d2b6f0e-5a51-4c39-8f7c-5b1a7c2e9d10"))

func record(date string, amount string, description string, status ledger.TransactionStatus) ledger.TransactionRecord {
	d, _ := time.Parse(ledger.DateLayout, date)
	owner := ledger.Owner{UserID: "user-1", AccountID: testAccount}
	amt := decimal.RequireFromString(amount)
	return ledger.TransactionRecord{
		ID:          ledger.RecordID(owner, d, amt, description),
		UserID:      owner.UserID,
		AccountID:   owner.AccountID,
		Type:        ledger.TypeDebit,
		Amount:      amt,
		Date:        d,
		Description: description,
		Category:    ledger.Uncategorized,
		Status:      status,
		Source:      ledger.SourceImport,
	}
}

func withID(rec ledger.TransactionRecord) ledger.TransactionRecord {
	rec.ID = uuid.Must(uuid.NewV4())
	return rec
}

// -- Classify tests --

func TestClassify_NoMatchCreates(t *testing.T) {
	e := NewEngine()
	candidate := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)

	d := e.Classify(candidate, nil, 60)

	assert.Equal(t, ActionCreate, d.Action)
	assert.Nil(t, d.Target)
}

func TestClassify_SameIDSkips(t *testing.T) {
	e := NewEngine()
	candidate := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)

	d := e.Classify(candidate, []ledger.TransactionRecord{candidate}, 0)

	assert.Equal(t, ActionSkip, d.Action)
	assert.Equal(t, candidate.ID, d.Target.ID)
}

func TestClassify_ExactKeyFromOtherPathSkips(t *testing.T) {
	e := NewEngine()
	imported := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)
	synced := withID(imported)
	synced.Source = ledger.SourcePlaid
	synced.ExternalID = "tx-1"

	d := e.Classify(synced, []ledger.TransactionRecord{imported}, 0)

	assert.Equal(t, ActionSkip, d.Action)
	assert.Equal(t, imported.ID, d.Target.ID)
}

func TestClassify_PendingToPostedMerges(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "COFFEE SHOP #123", ledger.StatusPending)
	candidate := withID(record("2025-01-11", "-25.00", "Coffee Shop #123 Seattle", ledger.StatusPosted))

	d := e.Classify(candidate, []ledger.TransactionRecord{existing}, 60)

	require.Equal(t, ActionMerge, d.Action)
	status, ok := d.Patch.Status.Get()
	assert.True(t, ok)
	assert.Equal(t, ledger.StatusPosted, status)
	assert.True(t, d.Patch.Amount.IsUnset(), "amount never changes across sources")
}

func TestClassify_PostedThenPendingSkips(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)
	candidate := withID(record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPending))

	d := e.Classify(candidate, []ledger.TransactionRecord{existing}, 60)

	assert.Equal(t, ActionSkip, d.Action)
}

func TestClassify_FillsCategoryAsUpdate(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)
	candidate := withID(existing)
	candidate.Category = "Coffee"
	candidate.ParentCategory = "Food"
	candidate.AccountMask = "1234"

	d := e.Classify(candidate, []ledger.TransactionRecord{existing}, 60)

	require.Equal(t, ActionUpdate, d.Action)
	assert.Equal(t, "Coffee", d.Patch.Category.GetOrZero())
	assert.Equal(t, "1234", d.Patch.AccountMask.GetOrZero())
}

func TestClassify_ThresholdZeroIsExactOnly(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPending)
	nextDay := withID(record("2025-01-11", "-25.00", "Coffee Shop", ledger.StatusPosted))

	assert.Equal(t, ActionCreate, e.Classify(nextDay, []ledger.TransactionRecord{existing}, 0).Action)
	assert.Equal(t, ActionMerge, e.Classify(nextDay, []ledger.TransactionRecord{existing}, 60).Action)
}

func TestClassify_OutsideWindowCreates(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-01", "-25.00", "Coffee Shop", ledger.StatusPosted)
	candidate := withID(record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted))

	d := e.Classify(candidate, []ledger.TransactionRecord{existing}, 60)

	assert.Equal(t, ActionCreate, d.Action)
}

func TestClassify_DifferentAmountCreates(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)
	candidate := withID(record("2025-01-10", "-25.01", "Coffee Shop", ledger.StatusPosted))

	assert.Equal(t, ActionCreate, e.Classify(candidate, []ledger.TransactionRecord{existing}, 100).Action)
}

func TestClassify_DissimilarDescriptionCreates(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)
	candidate := withID(record("2025-01-10", "-25.00", "Gas Station", ledger.StatusPosted))

	assert.Equal(t, ActionCreate, e.Classify(candidate, []ledger.TransactionRecord{existing}, 100).Action)
}

func TestClassify_SeveralFuzzyMatchesIsAmbiguous(t *testing.T) {
	e := NewEngine()
	a := record("2025-01-09", "-25.00", "Coffee Shop", ledger.StatusPending)
	b := record("2025-01-11", "-25.00", "Coffee Shop", ledger.StatusPending)
	candidate := withID(record("2025-01-10", "-25.00", "Coffee Shop Downtown", ledger.StatusPosted))

	d := e.Classify(candidate, []ledger.TransactionRecord{a, b}, 60)

	require.Equal(t, ActionAmbiguous, d.Action)
	var ambiguity *ledger.DuplicateResolutionAmbiguity
	require.True(t, errors.As(d.Err, &ambiguity))
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ambiguity.Matches)
}

func TestClassify_ExactMatchWinsOverFuzzy(t *testing.T) {
	e := NewEngine()
	exact := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPending)
	near := record("2025-01-11", "-25.00", "Coffee Shop", ledger.StatusPending)
	candidate := withID(record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted))

	d := e.Classify(candidate, []ledger.TransactionRecord{near, exact}, 60)

	require.Equal(t, ActionMerge, d.Action)
	assert.Equal(t, exact.ID, d.Target.ID)
}

func TestClassify_SameSourceTakesProviderCorrections(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "Coffee", ledger.StatusPending)
	candidate := existing
	candidate.Amount = decimal.RequireFromString("-27.50")
	candidate.Status = ledger.StatusPosted

	d := e.Classify(candidate, []ledger.TransactionRecord{existing}, 60)

	require.Equal(t, ActionMerge, d.Action)
	assert.True(t, d.Patch.Amount.GetOrZero().Equal(decimal.RequireFromString("-27.50")))
}

func TestClassify_OtherAccountNeverMatches(t *testing.T) {
	e := NewEngine()
	existing := record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted)
	existing.AccountID = uuid.Must(uuid.NewV4())
	candidate := withID(record("2025-01-10", "-25.00", "Coffee Shop", ledger.StatusPosted))

	assert.Equal(t, ActionCreate, e.Classify(candidate, []ledger.TransactionRecord{existing}, 60).Action)
}

// -- Window tests --

func TestWindowAndRange(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, time.Duration(0), e.Window(0))
	assert.Equal(t, 60*time.Hour, e.Window(60))
	assert.Equal(t, 100*time.Hour, e.Window(500))

	from, to := e.Range(record("2025-01-10", "-1", "x", ledger.StatusPosted), 48)
	assert.Equal(t, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), to)
}

// -- Similarity tests --

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("AMAZON MKTPLACE", "amazon mktplace pmts"))
	assert.Equal(t, 1.0, Similarity("Coffee-Shop", "coffee shop"))
	assert.GreaterOrEqual(t, Similarity("STARBUCKS 1234", "STARBUCKS 1235"), SimilarityBar)
	assert.Less(t, Similarity("Coffee Shop", "Gas Station"), SimilarityBar)
	assert.Equal(t, 0.0, Similarity("", "Coffee"))
	assert.Less(t, Similarity("abc", "abcdefghij"), SimilarityBar, "short strings do not match by containment")
}
