package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/stephenafamo/bob"

	"github.com/carson-networks/ingest-server/internal/config"
)

// Store hands out readers and transactional writers. The postgres Storage
// and memstore both implement it.
type Store interface {
	Read() *Reader
	Write(ctx context.Context) (*Writer, error)
}

type Storage struct {
	DB  *sql.DB
	Bob bob.DB
}

var _ Store = (*Storage)(nil)

func ConnectionString(env *config.Config) string {
	return "postgres://" + env.PostgresUsername + ":" +
		env.PostgresPassword + "@" + env.PostgresAddress + ":" +
		env.PostgresPort + "/" + env.PostgresDB + "?sslmode=disable"
}

func NewStorage(ctx context.Context, env *config.Config) (*Storage, error) {
	db, err := sql.Open("postgres", ConnectionString(env))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(env.PostgresMaxConns)
	db.SetMaxIdleConns(env.PostgresMaxConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return FromDB(db), nil
}

// FromDB wraps an already opened database.
func FromDB(db *sql.DB) *Storage {
	return &Storage{
		DB:  db,
		Bob: bob.NewDB(db),
	}
}

func (s *Storage) Read() *Reader {
	return NewReader(s.Bob)
}

// Write opens a transaction. The caller must Commit or Rollback the writer.
func (s *Storage) Write(ctx context.Context) (*Writer, error) {
	tx, err := s.Bob.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return NewWriter(tx), nil
}

func (s *Storage) Close() error {
	return s.DB.Close()
}
