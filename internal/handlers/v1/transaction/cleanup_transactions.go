package transaction

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/service"
)

type CleanupTransactionsInput struct {
	Body struct {
		DryRun bool `json:"dryRun,omitempty" doc:"Report the duplicate groups without deleting anything"`
	}
}

// CleanupGroup is one set of exact duplicates; Keep survives the cleanup.
type CleanupGroup struct {
	Keep   string   `json:"keep"`
	Delete []string `json:"delete"`
}

type CleanupTransactionsOutput struct {
	Body struct {
		DryRun  bool           `json:"dryRun"`
		Deleted int64          `json:"deleted"`
		Groups  []CleanupGroup `json:"groups"`
	}
}

type duplicateCleaner interface {
	CleanupUser(ctx context.Context, userID string, dryRun bool) (*service.CleanupResult, error)
}

// CleanupTransactionsHandler handles POST /v1/transactions/cleanup.
type CleanupTransactionsHandler struct {
	CleanupService duplicateCleaner
}

func NewCleanupTransactionsHandler(svc duplicateCleaner) *CleanupTransactionsHandler {
	return &CleanupTransactionsHandler{CleanupService: svc}
}

func (h *CleanupTransactionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "cleanup-transactions",
		Method:      http.MethodPost,
		Path:        "/v1/transactions/cleanup",
		Summary:     "Remove duplicate transactions",
		Description: "Deletes exact duplicates of the caller's transactions, keeping the earliest created record of each group.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *CleanupTransactionsHandler) handle(ctx context.Context, input *CleanupTransactionsInput) (*CleanupTransactionsOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	stopTimer := logging.GetLogData(ctx).AddTiming("cleanupMs")
	result, err := h.CleanupService.CleanupUser(ctx, userID, input.Body.DryRun)
	stopTimer()
	if err != nil {
		return nil, apierror.From(err, "failed to clean up duplicates")
	}
	logging.GetLogData(ctx).AddData("deleted", result.Deleted)

	out := &CleanupTransactionsOutput{}
	out.Body.DryRun = input.Body.DryRun
	out.Body.Deleted = result.Deleted
	out.Body.Groups = make([]CleanupGroup, len(result.Groups))
	for i, group := range result.Groups {
		deleted := make([]string, len(group.Delete))
		for j, id := range group.Delete {
			deleted[j] = id.String()
		}
		out.Body.Groups[i] = CleanupGroup{Keep: group.Keep.String(), Delete: deleted}
	}
	return out, nil
}
