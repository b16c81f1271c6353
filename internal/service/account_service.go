package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/operator/actions"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// Account represents a finance account in the service layer.
type Account struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// AccountService handles account business logic.
type AccountService struct {
	storage  storage.Store
	executor operator.Executor
	now      func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(store storage.Store, executor operator.Executor) *AccountService {
	return &AccountService{
		storage:  store,
		executor: executor,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount returns the id of the user's account called name, creating
// it when absent. Imports that name the same account attach to it.
func (s *AccountService) CreateAccount(ctx context.Context, userID, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: account name is required", ErrInvalidRequest)
	}
	action := &actions.ResolveAccount{
		UserID: userID,
		Name:   name,
		Now:    s.now(),
	}
	if err := s.executor.Process(ctx, action); err != nil {
		return uuid.Nil, err
	}
	return action.AccountID, nil
}

// ListAccounts returns every account of the user.
func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]Account, error) {
	rows, err := s.storage.Read().Accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	convertedAccounts := make([]Account, len(rows))
	for i, row := range rows {
		convertedAccounts[i] = Account{
			ID:        row.ID,
			Name:      row.Name,
			CreatedAt: row.CreatedAt,
		}
	}
	return convertedAccounts, nil
}
