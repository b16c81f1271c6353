package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/carson-networks/ingest-server/api"
	"github.com/carson-networks/ingest-server/internal/adapter"
	"github.com/carson-networks/ingest-server/internal/auth"
	"github.com/carson-networks/ingest-server/internal/config"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/status"
	"github.com/carson-networks/ingest-server/internal/importer"
	"github.com/carson-networks/ingest-server/internal/itemsync"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/jobs/memory"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/operator"
	"github.com/carson-networks/ingest-server/internal/provider/plaid"
	"github.com/carson-networks/ingest-server/internal/ratelimit"
	"github.com/carson-networks/ingest-server/internal/service"
	"github.com/carson-networks/ingest-server/internal/storage"
	"github.com/carson-networks/ingest-server/internal/storage/counter"
	"github.com/carson-networks/ingest-server/internal/storage/jobstore"
	"github.com/carson-networks/ingest-server/internal/storage/memstore"
	"github.com/carson-networks/ingest-server/internal/worker"
)

const counterPurgeInterval = 10 * time.Minute

// backends is the storage wiring chosen by STORAGE_DRIVER.
type backends struct {
	store    storage.Store
	jobs     jobs.Store
	payloads jobs.PayloadStore
	counters ratelimit.CounterStore
	purger   *counter.Store
	checks   []status.Pinger
	close    func()
}

func main() {
	logger := logging.SetupLogging()
	logger.Info("ingest-server starting")

	envConfig, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Fatal("config.ProcessEnvironmentVariables")
		return
	}
	if err := logging.SetLevel(logger, envConfig.LogLevel); err != nil {
		logger.WithError(err).Fatal("logging.SetLevel")
		return
	}
	if envConfig.JWTSecret == "" {
		logger.Fatal("config.JWTSecret is required")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, envConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("storage.open")
		return
	}
	defer b.close()

	delegator := operator.NewOperatorDelegator(b.store, envConfig.OperatorCount, logger)
	delegator.Start()
	defer delegator.Stop()

	registry := adapter.NewDefaultRegistry()
	provider := plaid.NewClient(plaid.Config{
		BaseURL:           envConfig.PlaidBaseURL,
		ClientID:          envConfig.PlaidClientID,
		Secret:            envConfig.PlaidSecret,
		Timeout:           envConfig.PlaidCallTimeout,
		RequestsPerSecond: envConfig.PlaidRequestsPerSecond,
	})

	svc := service.NewService(service.Dependencies{
		Store:              b.store,
		Executor:           delegator,
		Jobs:               b.jobs,
		Payloads:           b.payloads,
		Registry:           registry,
		InlinePayloadLimit: envConfig.InlinePayloadLimit,
		JobMaxAttempts:     envConfig.JobMaxAttempts,
		Log:                logger,
	})
	itemService := itemsync.NewService(b.store, delegator, b.jobs, provider, envConfig.SyncMaxAttempts, logger)

	pool := worker.NewPool(b.jobs, worker.Config{
		Workers:      envConfig.WorkerCount,
		PollInterval: envConfig.WorkerPollInterval,
		Lease:        envConfig.JobLease,
		MaxAttempts:  envConfig.JobMaxAttempts,
		BaseDelay:    envConfig.SyncBaseDelay,
		MaxDelay:     envConfig.SyncBaseDelay * 60,
	}, logger)
	pool.Register(jobs.TypeImportTransactions, importer.NewProcessor(b.jobs, b.payloads, registry, delegator, logger))
	pool.Register(jobs.TypePlaidSync, itemsync.NewWorker(b.store, delegator, b.jobs, provider, itemsync.WorkerConfig{
		MaxAttempts: envConfig.SyncMaxAttempts,
		BaseDelay:   envConfig.SyncBaseDelay,
		MaxDelay:    envConfig.SyncBaseDelay * 30,
	}, logger))

	apiPolicy := ratelimit.DefaultAPIPolicy
	apiPolicy.Limit, apiPolicy.Window = envConfig.APIRateLimit, envConfig.APIRateWindow
	importPolicy := ratelimit.DefaultImportPolicy
	importPolicy.Limit, importPolicy.Window = envConfig.ImportRateLimit, envConfig.ImportRateWindow

	httpRest := api.Rest{
		Logger:        logger,
		Port:          envConfig.HTTPPort,
		Service:       svc,
		Items:         itemService,
		Authenticator: auth.NewAuthenticator(envConfig.JWTSecret),
		APILimiter:    ratelimit.NewLimiter(b.counters, apiPolicy, logger),
		ImportLimiter: ratelimit.NewLimiter(b.counters, importPolicy, logger),
		WebhookSecret: envConfig.PlaidWebhookSecret,
		HealthChecks:  b.checks,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return httpRest.Serve(ctx) })
	group.Go(func() error { return pool.Run(ctx) })
	group.Go(func() error { return itemsync.NewScheduler(itemService, envConfig.SyncInterval, logger).Run(ctx) })
	if b.purger != nil {
		group.Go(func() error { return purgeCounters(ctx, b.purger, logger) })
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("ingest-server stopped with error")
		return
	}
	logger.Info("ingest-server stopped")
}

func openBackends(ctx context.Context, env *config.Config, logger logrus.FieldLogger) (*backends, error) {
	if env.StorageDriver == config.StorageDriverMemory {
		logger.Warn("storage.memory: data will not survive a restart")
		jobStore := memory.NewStore()
		counters := ratelimit.NewMemoryStore(counterPurgeInterval)
		return &backends{
			store:    memstore.New(),
			jobs:     jobStore,
			payloads: jobStore,
			counters: counters,
			close:    func() {},
		}, nil
	}

	dbStorage, err := storage.NewStorage(ctx, env)
	if err != nil {
		return nil, err
	}
	jobStore := jobstore.New(dbStorage.Bob)
	b := &backends{
		store:    dbStorage,
		jobs:     jobStore,
		payloads: jobStore,
		checks:   []status.Pinger{dbStorage.DB},
		close: func() {
			if err := dbStorage.Close(); err != nil {
				logger.WithError(err).Error("storage.close")
			}
		},
	}
	if env.RateLimitStore == config.StorageDriverMemory {
		b.counters = ratelimit.NewMemoryStore(counterPurgeInterval)
	} else {
		counters := counter.New(dbStorage.Bob)
		b.counters = counters
		b.purger = counters
	}
	return b, nil
}

// purgeCounters drops expired rate limit windows until ctx is done.
func purgeCounters(ctx context.Context, counters *counter.Store, logger logrus.FieldLogger) error {
	ticker := time.NewTicker(counterPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			purged, err := counters.Purge(ctx, time.Now().UTC())
			if err != nil {
				logger.WithError(err).Warn("RateLimit.purge.error")
				continue
			}
			if purged > 0 {
				logger.WithField("purged", purged).Debug("RateLimit.purge.complete")
			}
		}
	}
}
