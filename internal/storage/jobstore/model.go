package jobstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/jobs"
)

const (
	jobsTable     = "import_jobs"
	payloadsTable = "job_payloads"
)

const selectColumns = "job_id, user_id, type, status, stats, error, start_time, end_time, " +
	"file_name, account_id, format, options, csv_content, payload_ref, item_id, access_token, initial_sync, " +
	"attempts, max_attempts, run_after, claimed_at, heartbeat_at, delete_requested, created_at, updated_at"

type jobRow struct {
	JobID           string        `db:"job_id"`
	UserID          string        `db:"user_id"`
	Type            string        `db:"type"`
	Status          string        `db:"status"`
	Stats           []byte        `db:"stats"`
	Error           string        `db:"error"`
	StartTime       sql.NullTime  `db:"start_time"`
	EndTime         sql.NullTime  `db:"end_time"`
	FileName        string        `db:"file_name"`
	AccountID       uuid.NullUUID `db:"account_id"`
	Format          string        `db:"format"`
	Options         []byte        `db:"options"`
	CSVContent      string        `db:"csv_content"`
	PayloadRef      string        `db:"payload_ref"`
	ItemID          string        `db:"item_id"`
	AccessToken     string        `db:"access_token"`
	InitialSync     bool          `db:"initial_sync"`
	Attempts        int           `db:"attempts"`
	MaxAttempts     int           `db:"max_attempts"`
	RunAfter        time.Time     `db:"run_after"`
	ClaimedAt       sql.NullTime  `db:"claimed_at"`
	HeartbeatAt     sql.NullTime  `db:"heartbeat_at"`
	DeleteRequested bool          `db:"delete_requested"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

func rowToJob(row jobRow) (*jobs.Job, error) {
	job := &jobs.Job{
		JobID:           row.JobID,
		UserID:          row.UserID,
		Type:            jobs.Type(row.Type),
		Status:          jobs.Status(row.Status),
		Error:           row.Error,
		StartTime:       nullTime(row.StartTime),
		EndTime:         nullTime(row.EndTime),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		FileName:        row.FileName,
		Format:          row.Format,
		CSVContent:      row.CSVContent,
		PayloadRef:      row.PayloadRef,
		ItemID:          row.ItemID,
		AccessToken:     row.AccessToken,
		InitialSync:     row.InitialSync,
		Attempts:        row.Attempts,
		MaxAttempts:     row.MaxAttempts,
		RunAfter:        row.RunAfter,
		ClaimedAt:       nullTime(row.ClaimedAt),
		HeartbeatAt:     nullTime(row.HeartbeatAt),
		DeleteRequested: row.DeleteRequested,
	}
	if row.AccountID.Valid {
		id := row.AccountID.UUID
		job.AccountID = &id
	}
	if len(row.Stats) > 0 {
		if err := json.Unmarshal(row.Stats, &job.Stats); err != nil {
			return nil, fmt.Errorf("decode stats of job %s: %w", row.JobID, err)
		}
	}
	if len(row.Options) > 0 {
		if err := json.Unmarshal(row.Options, &job.Options); err != nil {
			return nil, fmt.Errorf("decode options of job %s: %w", row.JobID, err)
		}
	}
	return job, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func statusStrings(statuses []jobs.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func typeStrings(types []jobs.Type) []string {
	if len(types) == 0 {
		types = []jobs.Type{jobs.TypeImportTransactions, jobs.TypePlaidSync}
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
