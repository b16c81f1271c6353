package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/auth"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/account"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/imports"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/items"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/status"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/transaction"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/webhook"
	"github.com/carson-networks/ingest-server/internal/itemsync"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/ratelimit"
	"github.com/carson-networks/ingest-server/internal/service"
)

type Rest struct {
	Logger *logrus.Logger
	Port   string

	Service       *service.Service
	Items         *itemsync.Service
	Authenticator *auth.Authenticator
	APILimiter    *ratelimit.Limiter
	ImportLimiter *ratelimit.Limiter
	WebhookSecret string
	HealthChecks  []status.Pinger
}

// Handler builds the full HTTP surface: /status plus the versioned API.
func (r *Rest) Handler() http.Handler {
	mux := http.NewServeMux()

	statusHandler := status.NewHandler(r.HealthChecks...)
	mux.HandleFunc("/status", logging.LoggingWrapper("Status", r.Logger, statusHandler.Handler))

	config := huma.DefaultConfig("Transaction Ingest API", "1.0.0")
	humaAPI := humago.New(mux, config)
	humaAPI.UseMiddleware(
		logging.Middleware(r.Logger),
		AuthMiddleware(humaAPI, r.Authenticator, webhook.OperationID),
		RateLimitMiddleware(humaAPI, r.APILimiter, r.ImportLimiter, r.Logger),
	)

	imports.NewSubmitImportHandler(r.Service.Imports).Register(humaAPI)
	imports.NewGetImportHandler(r.Service.Imports).Register(humaAPI)
	imports.NewListImportsHandler(r.Service.Imports).Register(humaAPI)
	imports.NewDeleteImportHandler(r.Service.Imports).Register(humaAPI)

	account.NewCreateAccountHandler(r.Service.Accounts).Register(humaAPI)
	account.NewListAccountsHandler(r.Service.Accounts).Register(humaAPI)

	transaction.NewListTransactionsHandler(r.Service.Transactions).Register(humaAPI)
	transaction.NewCleanupTransactionsHandler(r.Service.Cleanup).Register(humaAPI)

	items.NewHandler(r.Items).Register(humaAPI)
	webhook.NewHandler(r.Items, r.WebhookSecret).Register(humaAPI)

	return mux
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (r *Rest) Serve(ctx context.Context) error {
	server := http.Server{
		Addr:              ":" + r.Port,
		Handler:           r.Handler(),
		ReadTimeout:       time.Duration(30) * time.Second,
		WriteTimeout:      time.Duration(30) * time.Second,
		IdleTimeout:       time.Duration(10) * time.Second,
		ReadHeaderTimeout: time.Duration(10) * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			r.Logger.WithError(err).Error("HttpServer.Serve.shutdown error")
		}
	}()

	r.Logger.WithField("port", r.Port).Info("HttpServer.Serve.listening")
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		r.Logger.WithError(err).Error("HttpServer.Serve.listen error")
		return err
	}
	r.Logger.Info("HttpServer.Serve.shutting down")
	return nil
}
