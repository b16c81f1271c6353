package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/ledger"
)

// Type is the kind of work a job carries.
type Type string

const (
	TypeImportTransactions Type = "import-transactions"
	TypePlaidSync          Type = "plaid-sync"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// ActiveStatuses are the statuses of jobs that have not finished.
var ActiveStatuses = []Status{StatusQueued, StatusUploading, StatusProcessing}

var transitions = map[Status][]Status{
	StatusQueued:     {StatusUploading, StatusProcessing, StatusError},
	StatusUploading:  {StatusProcessing, StatusError},
	StatusProcessing: {StatusDone, StatusError},
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// SourcesOf lists the statuses that may move to to.
func SourcesOf(to Status) []Status {
	var out []Status
	for _, from := range ActiveStatuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// CheckTransition returns ledger.ErrInvalidTransition for illegal changes.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ledger.ErrInvalidTransition, from, to)
	}
	return nil
}

// Job is one unit of ingestion work and its status record.
type Job struct {
	JobID     string
	UserID    string
	Type      Type
	Status    Status
	Stats     Stats
	Error     string
	StartTime *time.Time
	EndTime   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// import-transactions
	FileName   string
	AccountID  *uuid.UUID
	Format     string
	Options    Options
	CSVContent string
	// PayloadRef points at staged content that must be loaded before parsing.
	PayloadRef string

	// plaid-sync
	ItemID      string
	AccessToken string
	InitialSync bool

	Attempts        int
	MaxAttempts     int
	RunAfter        time.Time
	ClaimedAt       *time.Time
	HeartbeatAt     *time.Time
	DeleteRequested bool
}

// NewJobID returns a fresh job id.
func NewJobID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// Store is the durable job record and queue shared by the API and workers.
// Every user-facing lookup is scoped by userID.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID, userID string) (*Job, error)
	// FindByFileName returns the newest unfinished import of fileName, or
	// nil when there is none.
	FindByFileName(ctx context.Context, userID, fileName string) (*Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Job, error)

	// ClaimNext hands one runnable queued job of the given types to the
	// caller, or returns nil when there is none. Jobs whose heartbeat is older
	// than lease are claimable again.
	ClaimNext(ctx context.Context, types []Type, lease time.Duration) (*Job, error)
	Transition(ctx context.Context, jobID string, to Status, errMsg string) (*Job, error)
	MergeStats(ctx context.Context, jobID string, update Stats) (Stats, error)
	// Heartbeat extends the lease of a claimed job that has not finished.
	// It returns ledger.ErrInvalidTransition once the job is terminal.
	Heartbeat(ctx context.Context, jobID string) error
	// Requeue returns a claimed job to the queue for another attempt.
	Requeue(ctx context.Context, jobID string, runAfter time.Time, errMsg string) error

	// Withdraw cancels a queued job that no worker has claimed yet.
	Withdraw(ctx context.Context, jobID, userID string) error
	RequestDeletion(ctx context.Context, jobID, userID string) error
	DeletionRequested(ctx context.Context, jobID string) (bool, error)
}

// PayloadStore stages import content too large to keep on the job record.
type PayloadStore interface {
	StagePayload(ctx context.Context, content string) (string, error)
	LoadPayload(ctx context.Context, ref string) (string, error)
	DeletePayload(ctx context.Context, ref string) error
}
