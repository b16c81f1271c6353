// Package jobstore is the postgres job record and durable queue.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/lib/pq"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
)

const withdrawnMessage = "withdrawn before processing"

type Store struct {
	db  bob.DB
	now func() time.Time
}

var (
	_ jobs.Store        = (*Store)(nil)
	_ jobs.PayloadStore = (*Store)(nil)
)

func New(db bob.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Create(ctx context.Context, job *jobs.Job) error {
	stats, err := json.Marshal(job.Stats)
	if err != nil {
		return err
	}
	options, err := json.Marshal(job.Options)
	if err != nil {
		return err
	}
	now := s.now()
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	runAfter := job.RunAfter
	if runAfter.IsZero() {
		runAfter = now
	}
	status := job.Status
	if status == "" {
		status = jobs.StatusQueued
	}

	query := psql.Insert(
		im.Into(jobsTable,
			"job_id", "user_id", "type", "status", "stats", "error",
			"file_name", "account_id", "format", "options", "csv_content", "payload_ref",
			"item_id", "access_token", "initial_sync", "max_attempts", "run_after",
			"created_at", "updated_at",
		),
		im.Values(psql.Arg(
			job.JobID, job.UserID, string(job.Type), string(status), stats, job.Error,
			job.FileName, nullableUUID(job.AccountID), job.Format, options, job.CSVContent, job.PayloadRef,
			job.ItemID, job.AccessToken, job.InitialSync, job.MaxAttempts, runAfter,
			createdAt, now,
		)),
	)
	_, err = bob.Exec(ctx, s.db, query)
	return err
}

func (s *Store) Get(ctx context.Context, jobID, userID string) (*jobs.Job, error) {
	query := psql.RawQuery("SELECT "+selectColumns+" FROM "+jobsTable+" WHERE job_id = ? AND user_id = ?", jobID, userID)
	return s.one(ctx, s.db, query, jobID)
}

func (s *Store) FindByFileName(ctx context.Context, userID, fileName string) (*jobs.Job, error) {
	query := psql.RawQuery(
		"SELECT "+selectColumns+" FROM "+jobsTable+
			" WHERE user_id = ? AND file_name = ? AND type = ? AND status = ANY(?)"+
			" ORDER BY created_at DESC LIMIT 1",
		userID, fileName, string(jobs.TypeImportTransactions), pq.Array(statusStrings(jobs.ActiveStatuses)),
	)
	job, err := s.one(ctx, s.db, query, fileName)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	return job, err
}

func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]*jobs.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := psql.RawQuery(
		"SELECT "+selectColumns+" FROM "+jobsTable+" WHERE user_id = ? ORDER BY created_at DESC LIMIT ?",
		userID, limit,
	)
	rows, err := bob.All(ctx, s.db, query, scan.StructMapper[jobRow]())
	if err != nil {
		return nil, err
	}
	result := make([]*jobs.Job, 0, len(rows))
	for _, row := range rows {
		job, err := rowToJob(row)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, nil
}

// ClaimNext locks the oldest runnable job with SKIP LOCKED so concurrent
// workers never receive the same job.
func (s *Store) ClaimNext(ctx context.Context, types []jobs.Type, lease time.Duration) (*jobs.Job, error) {
	now := s.now()
	staleBefore := now.Add(-lease)
	if lease <= 0 {
		staleBefore = time.Time{}
	}

	query := psql.RawQuery(
		"UPDATE "+jobsTable+" SET claimed_at = ?, heartbeat_at = ?, attempts = attempts + 1, updated_at = ?"+
			" WHERE job_id = ("+
			" SELECT job_id FROM "+jobsTable+
			" WHERE type = ANY(?) AND status <> ALL(?)"+
			" AND ((claimed_at IS NULL AND status = ? AND run_after <= ?)"+
			" OR (claimed_at IS NOT NULL AND heartbeat_at < ?))"+
			" ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED)"+
			" RETURNING "+selectColumns,
		now, now, now,
		pq.Array(typeStrings(types)), pq.Array(statusStrings([]jobs.Status{jobs.StatusDone, jobs.StatusError})),
		string(jobs.StatusQueued), now,
		staleBefore,
	)
	job, err := s.one(ctx, s.db, query, "next")
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	return job, err
}

func (s *Store) Transition(ctx context.Context, jobID string, to jobs.Status, errMsg string) (*jobs.Job, error) {
	now := s.now()
	starting := to == jobs.StatusUploading || to == jobs.StatusProcessing

	query := psql.RawQuery(
		"UPDATE "+jobsTable+" SET status = ?,"+
			" error = CASE WHEN ?::text = '' THEN error ELSE ?::text END,"+
			" start_time = CASE WHEN start_time IS NULL AND ?::boolean THEN ?::timestamptz ELSE start_time END,"+
			" end_time = CASE WHEN ?::boolean THEN ?::timestamptz ELSE end_time END,"+
			" heartbeat_at = ?, updated_at = ?"+
			" WHERE job_id = ? AND status = ANY(?)"+
			" RETURNING "+selectColumns,
		string(to),
		errMsg, errMsg,
		starting, now,
		to.Terminal(), now,
		now, now,
		jobID, pq.Array(statusStrings(jobs.SourcesOf(to))),
	)
	job, err := s.one(ctx, s.db, query, jobID)
	if !errors.Is(err, ledger.ErrNotFound) {
		return job, err
	}

	current, lookupErr := s.status(ctx, jobID)
	if lookupErr != nil {
		return nil, lookupErr
	}
	return nil, jobs.CheckTransition(current, to)
}

func (s *Store) MergeStats(ctx context.Context, jobID string, update jobs.Stats) (jobs.Stats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return jobs.Stats{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	raw, err := bob.One(ctx, tx,
		psql.RawQuery("SELECT stats FROM "+jobsTable+" WHERE job_id = ? FOR UPDATE", jobID),
		scan.SingleColumnMapper[[]byte],
	)
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Stats{}, fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	if err != nil {
		return jobs.Stats{}, err
	}

	var current jobs.Stats
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &current); err != nil {
			return jobs.Stats{}, err
		}
	}
	merged := current.Merge(update)
	encoded, err := json.Marshal(merged)
	if err != nil {
		return jobs.Stats{}, err
	}

	now := s.now()
	_, err = bob.Exec(ctx, tx, psql.Update(
		um.Table(jobsTable),
		um.SetCol("stats").ToArg(encoded),
		um.SetCol("heartbeat_at").ToArg(now),
		um.SetCol("updated_at").ToArg(now),
		um.Where(psql.Quote("job_id").EQ(psql.Arg(jobID))),
	))
	if err != nil {
		return jobs.Stats{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return jobs.Stats{}, err
	}
	return merged, nil
}

func (s *Store) Heartbeat(ctx context.Context, jobID string) error {
	now := s.now()
	query := psql.RawQuery(
		"UPDATE "+jobsTable+" SET heartbeat_at = ?, updated_at = ?"+
			" WHERE job_id = ? AND claimed_at IS NOT NULL AND status = ANY(?)",
		now, now,
		jobID, pq.Array(statusStrings(jobs.ActiveStatuses)),
	)
	n, err := s.exec(ctx, query)
	if err != nil || n > 0 {
		return err
	}
	current, err := s.status(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s job holds no lease", ledger.ErrInvalidTransition, current)
}

func (s *Store) Requeue(ctx context.Context, jobID string, runAfter time.Time, errMsg string) error {
	query := psql.RawQuery(
		"UPDATE "+jobsTable+" SET status = ?, claimed_at = NULL, heartbeat_at = NULL, run_after = ?, error = ?, updated_at = ?"+
			" WHERE job_id = ? AND status <> ALL(?)",
		string(jobs.StatusQueued), runAfter, errMsg, s.now(),
		jobID, pq.Array(statusStrings([]jobs.Status{jobs.StatusDone, jobs.StatusError})),
	)
	n, err := s.exec(ctx, query)
	if err != nil || n > 0 {
		return err
	}
	current, err := s.status(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s job cannot be requeued", ledger.ErrInvalidTransition, current)
}

func (s *Store) Withdraw(ctx context.Context, jobID, userID string) error {
	now := s.now()
	query := psql.RawQuery(
		"UPDATE "+jobsTable+" SET status = ?, error = ?, end_time = ?, updated_at = ?"+
			" WHERE job_id = ? AND user_id = ? AND status = ? AND claimed_at IS NULL",
		string(jobs.StatusError), withdrawnMessage, now, now,
		jobID, userID, string(jobs.StatusQueued),
	)
	n, err := s.exec(ctx, query)
	if err != nil || n > 0 {
		return err
	}
	if _, err := s.Get(ctx, jobID, userID); err != nil {
		return err
	}
	return fmt.Errorf("job %s: %w", jobID, ledger.ErrJobClaimed)
}

func (s *Store) RequestDeletion(ctx context.Context, jobID, userID string) error {
	query := psql.Update(
		um.Table(jobsTable),
		um.SetCol("delete_requested").ToArg(true),
		um.SetCol("updated_at").ToArg(s.now()),
		um.Where(psql.Quote("job_id").EQ(psql.Arg(jobID))),
		um.Where(psql.Quote("user_id").EQ(psql.Arg(userID))),
	)
	n, err := s.exec(ctx, query)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	return nil
}

func (s *Store) DeletionRequested(ctx context.Context, jobID string) (bool, error) {
	query := psql.Select(
		sm.Columns("delete_requested"),
		sm.From(jobsTable),
		sm.Where(psql.Quote("job_id").EQ(psql.Arg(jobID))),
	)
	requested, err := bob.One(ctx, s.db, query, scan.SingleColumnMapper[bool])
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	return requested, err
}

func (s *Store) StagePayload(ctx context.Context, content string) (string, error) {
	ref := uuid.Must(uuid.NewV4()).String()
	query := psql.Insert(
		im.Into(payloadsTable, "payload_ref", "content", "created_at"),
		im.Values(psql.Arg(ref, content, s.now())),
	)
	if _, err := bob.Exec(ctx, s.db, query); err != nil {
		return "", err
	}
	return ref, nil
}

func (s *Store) LoadPayload(ctx context.Context, ref string) (string, error) {
	query := psql.Select(
		sm.Columns("content"),
		sm.From(payloadsTable),
		sm.Where(psql.Quote("payload_ref").EQ(psql.Arg(ref))),
	)
	content, err := bob.One(ctx, s.db, query, scan.SingleColumnMapper[string])
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("payload %s: %w", ref, ledger.ErrNotFound)
	}
	return content, err
}

func (s *Store) DeletePayload(ctx context.Context, ref string) error {
	_, err := bob.Exec(ctx, s.db, psql.Delete(
		dm.From(payloadsTable),
		dm.Where(psql.Quote("payload_ref").EQ(psql.Arg(ref))),
	))
	return err
}

func (s *Store) one(ctx context.Context, exec bob.Executor, query bob.Query, key string) (*jobs.Job, error) {
	row, err := bob.One(ctx, exec, query, scan.StructMapper[jobRow]())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", key, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rowToJob(row)
}

func (s *Store) status(ctx context.Context, jobID string) (jobs.Status, error) {
	query := psql.Select(
		sm.Columns("status"),
		sm.From(jobsTable),
		sm.Where(psql.Quote("job_id").EQ(psql.Arg(jobID))),
	)
	status, err := bob.One(ctx, s.db, query, scan.SingleColumnMapper[string])
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("job %s: %w", jobID, ledger.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return jobs.Status(status), nil
}

func (s *Store) exec(ctx context.Context, query bob.Query) (int64, error) {
	res, err := bob.Exec(ctx, s.db, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
