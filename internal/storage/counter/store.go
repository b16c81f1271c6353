// Package counter keeps rate-limit windows in postgres so every server
// replica shares one budget per identity.
package counter

import (
	"context"
	"time"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/ingest-server/internal/ratelimit"
)

type window struct {
	Count   int64     `db:"count"`
	ResetAt time.Time `db:"reset_at"`
}

type Store struct {
	exec bob.Executor
}

var _ ratelimit.CounterStore = (*Store)(nil)

func New(exec bob.Executor) *Store {
	return &Store{exec: exec}
}

// Increment is a single upsert: an expired window restarts at 1 with a new
// reset time, a live one is incremented in place.
func (s *Store) Increment(ctx context.Context, key string, windowSize time.Duration, now time.Time) (int64, time.Time, error) {
	query := psql.RawQuery(
		"INSERT INTO rate_limit_counters (key, count, reset_at) VALUES (?, 1, ?)"+
			" ON CONFLICT (key) DO UPDATE SET"+
			" count = CASE WHEN rate_limit_counters.reset_at <= ? THEN 1 ELSE rate_limit_counters.count + 1 END,"+
			" reset_at = CASE WHEN rate_limit_counters.reset_at <= ? THEN EXCLUDED.reset_at ELSE rate_limit_counters.reset_at END"+
			" RETURNING count, reset_at",
		key, now.Add(windowSize), now, now,
	)
	w, err := bob.One(ctx, s.exec, query, scan.StructMapper[window]())
	if err != nil {
		return 0, time.Time{}, err
	}
	return w.Count, w.ResetAt, nil
}

// Purge drops windows that expired before now.
func (s *Store) Purge(ctx context.Context, now time.Time) (int64, error) {
	res, err := bob.Exec(ctx, s.exec, psql.RawQuery("DELETE FROM rate_limit_counters WHERE reset_at <= ?", now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
