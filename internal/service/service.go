package service

import (
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/adapter"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// Service holds all business logic services.
type Service struct {
	Imports      *ImportService
	Transactions *TransactionService
	Accounts     *AccountService
	Cleanup      *CleanupService
}

// Dependencies are the shared components the services are built from.
type Dependencies struct {
	Store              storage.Store
	Executor           operator.Executor
	Jobs               jobs.Store
	Payloads           jobs.PayloadStore
	Registry           *adapter.Registry
	InlinePayloadLimit int
	JobMaxAttempts     int
	Log                logrus.FieldLogger
}

// NewService creates a new Service from deps.
func NewService(deps Dependencies) *Service {
	return &Service{
		Imports:      NewImportService(deps.Jobs, deps.Payloads, deps.Registry, deps.InlinePayloadLimit, deps.JobMaxAttempts, deps.Log),
		Transactions: NewTransactionService(deps.Store),
		Accounts:     NewAccountService(deps.Store, deps.Executor),
		Cleanup:      NewCleanupService(deps.Store, deps.Executor, deps.Log),
	}
}
