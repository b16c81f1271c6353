package account

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

const tableName = "finance_accounts"

// NameKind is the id namespace of accounts resolved from a source row's
// account name.
const NameKind = "name"

var columns = []any{"id", "user_id", "name", "created_at"}

// Account is a user's finance account that imported records attach to.
type Account struct {
	ID        uuid.UUID `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// IAccountReader defines the read operations on finance accounts.
//
//go:generate mockery --name IAccountReader --output mock_IAccountReader.go
type IAccountReader interface {
	FindByName(ctx context.Context, userID, name string) (*Account, error)
	ListByUser(ctx context.Context, userID string) ([]*Account, error)
}

// IAccountWriter adds account creation to IAccountReader.
//
//go:generate mockery --name IAccountWriter --output mock_IAccountWriter.go
type IAccountWriter interface {
	IAccountReader

	// Ensure returns the id of the user's account with the given name,
	// creating it when absent.
	Ensure(ctx context.Context, userID, name string, now time.Time) (uuid.UUID, error)
}
