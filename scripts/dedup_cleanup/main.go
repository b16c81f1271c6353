package main

import (
	"context"
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/config"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/service"
	"github.com/carson-networks/ingest-server/internal/storage"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report duplicate groups without deleting them")
	userID := flag.String("user", "", "only clean up this user; all users when empty")
	flag.Parse()

	logger := logging.SetupLogging()

	env, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Fatal("ProcessEnvironmentVariables")
		return
	}

	ctx := context.Background()
	dbStorage, err := storage.NewStorage(ctx, env)
	if err != nil {
		logger.WithError(err).Fatal("storage.NewStorage")
		return
	}
	defer dbStorage.Close()

	delegator := operator.NewOperatorDelegator(dbStorage, 1, logger)
	delegator.Start()
	defer delegator.Stop()

	cleanup := service.NewCleanupService(dbStorage, delegator, logger)

	var results []*service.CleanupResult
	if *userID != "" {
		result, err := cleanup.CleanupUser(ctx, *userID, *dryRun)
		if err != nil {
			logger.WithError(err).Error("CleanupUser")
			return
		}
		results = append(results, result)
	} else {
		results, err = cleanup.CleanupAll(ctx, *dryRun)
		if err != nil {
			logger.WithError(err).Error("CleanupAll")
			return
		}
	}

	var groups int
	var deleted int64
	for _, result := range results {
		groups += len(result.Groups)
		deleted += result.Deleted
		for _, group := range result.Groups {
			logger.WithFields(logrus.Fields{
				"userId": result.UserID,
				"keep":   group.Keep.String(),
				"delete": len(group.Delete),
			}).Info("DedupCleanup.group")
		}
	}
	logger.WithFields(logrus.Fields{
		"dryRun":  *dryRun,
		"users":   len(results),
		"groups":  groups,
		"deleted": deleted,
	}).Info("DedupCleanup.complete")
}
