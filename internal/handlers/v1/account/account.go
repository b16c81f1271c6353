package account

import (
	"time"

	"github.com/carson-networks/ingest-server/internal/service"
)

// Account is the API response model for an account.
type Account struct {
	ID        string `json:"id" doc:"Account UUID"`
	Name      string `json:"name" doc:"Account name"`
	CreatedAt string `json:"createdAt" doc:"RFC3339 creation time"`
}

func toAccount(acc service.Account) Account {
	return Account{
		ID:        acc.ID.String(),
		Name:      acc.Name,
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
	}
}
