package ledger

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TypeDebit    TransactionType = "debit"
	TypeCredit   TransactionType = "credit"
	TypeTransfer TransactionType = "transfer"
)

// TransactionStatus is the settlement state reported by the institution.
type TransactionStatus string

const (
	StatusPosted  TransactionStatus = "posted"
	StatusPending TransactionStatus = "pending"
)

// Source identifies the ingestion path that produced a record.
type Source string

const (
	SourceImport Source = "import"
	SourcePlaid  Source = "plaid"
)

// Uncategorized is the category assigned until a classifier runs.
const Uncategorized = "uncategorized"

// DateLayout is the calendar date layout used in ids and logs.
const DateLayout = "2006-01-02"

// recordNamespace seeds the name-based ids of normalized records.
var recordNamespace = uuid.Must(uuid.FromString("3f1c8a52-6d0e-4c8f-9a57-0d9b1e7b2c41"))

// TransactionRecord is the canonical, institution-agnostic transaction.
type TransactionRecord struct {
	ID             uuid.UUID
	UserID         string
	AccountID      uuid.UUID
	Type           TransactionType
	Amount         decimal.Decimal
	Date           time.Time
	Description    string
	Category       string
	ParentCategory string
	Status         TransactionStatus
	AccountMask    string
	Source         Source
	ExternalID     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Owner scopes a normalization to one user and account.
type Owner struct {
	UserID    string
	AccountID uuid.UUID
}

// TruncateDate drops the time of day, keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeDescription lowercases and strips everything but letters and digits.
func NormalizeDescription(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RecordID derives the id of a file-imported row from its dedup key, so
// re-normalizing the same source row always yields the same id.
func RecordID(owner Owner, date time.Time, amount decimal.Decimal, description string) uuid.UUID {
	name := strings.Join([]string{
		owner.UserID,
		owner.AccountID.String(),
		TruncateDate(date).Format(DateLayout),
		amount.StringFixed(2),
		NormalizeDescription(description),
	}, "|")
	return uuid.NewV5(recordNamespace, name)
}

// ExternalRecordID derives the id of a provider row from the provider's own id.
func ExternalRecordID(owner Owner, source Source, externalID string) uuid.UUID {
	name := strings.Join([]string{owner.UserID, owner.AccountID.String(), string(source), externalID}, "|")
	return uuid.NewV5(recordNamespace, name)
}

// AccountID derives a stable account id from a per-user key such as an
// account name or a provider account id.
func AccountID(userID, kind, key string) uuid.UUID {
	return uuid.NewV5(recordNamespace, strings.Join([]string{"account", kind, userID, key}, "|"))
}
