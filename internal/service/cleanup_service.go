package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/dedup"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/operator/actions"
	"github.com/carson-networks/ingest-server/internal/storage"
)

// CleanupResult is the outcome of a batch cleanup for one user.
type CleanupResult struct {
	UserID  string
	Groups  []dedup.CleanupGroup
	Deleted int64
}

// CleanupService runs the retroactive duplicate cleanup.
type CleanupService struct {
	storage  storage.Store
	executor operator.Executor
	log      logrus.FieldLogger
}

func NewCleanupService(store storage.Store, executor operator.Executor, log logrus.FieldLogger) *CleanupService {
	return &CleanupService{storage: store, executor: executor, log: log}
}

// CleanupUser deletes the user's exact duplicates, keeping the earliest
// created record of each group. With dryRun nothing is deleted.
func (s *CleanupService) CleanupUser(ctx context.Context, userID string, dryRun bool) (*CleanupResult, error) {
	action := &actions.CleanupDuplicates{
		UserID: userID,
		DryRun: dryRun,
	}
	if err := s.executor.Process(ctx, action); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"userId":  userID,
		"groups":  len(action.Plan),
		"deleted": action.Deleted,
		"dryRun":  dryRun,
	}).Info("CleanupService.CleanupUser")
	return &CleanupResult{
		UserID:  userID,
		Groups:  action.Plan,
		Deleted: action.Deleted,
	}, nil
}

// CleanupAll runs CleanupUser for every user with transactions. It stops at
// the first failure and returns the results gathered so far.
func (s *CleanupService) CleanupAll(ctx context.Context, dryRun bool) ([]*CleanupResult, error) {
	users, err := s.storage.Read().Transactions.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*CleanupResult, 0, len(users))
	for _, userID := range users {
		result, err := s.CleanupUser(ctx, userID, dryRun)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}
