package items

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/logging"
)

// Item is the API response model for a linked item. The access token is
// never returned.
type Item struct {
	ItemID          string `json:"itemId"`
	InstitutionName string `json:"institutionName,omitempty"`
	Status          string `json:"status" enum:"active,error,pending_expiration,revoked"`
	Error           string `json:"error,omitempty"`
	LastSyncedAt    string `json:"lastSyncedAt,omitempty" doc:"RFC3339 time of the last completed sync page"`
	CreatedAt       string `json:"createdAt"`
}

func toItem(item *ledger.LinkedItem) Item {
	out := Item{
		ItemID:          item.ItemID,
		InstitutionName: item.InstitutionName,
		Status:          string(item.Status),
		Error:           item.Error,
		CreatedAt:       item.CreatedAt.Format(time.RFC3339),
	}
	if item.LastSyncedAt != nil {
		out.LastSyncedAt = item.LastSyncedAt.Format(time.RFC3339)
	}
	return out
}

// itemService is the slice of the item sync service the handlers use.
type itemService interface {
	ListItems(ctx context.Context, userID string) ([]*ledger.LinkedItem, error)
	LinkItem(ctx context.Context, userID, publicToken string) (*ledger.LinkedItem, *jobs.Job, error)
	TriggerSync(ctx context.Context, userID, itemID string) (*jobs.Job, error)
	Disconnect(ctx context.Context, userID, itemID string) error
}

// Handler serves the /v1/items endpoints.
type Handler struct {
	ItemService itemService
}

func NewHandler(svc itemService) *Handler {
	return &Handler{ItemService: svc}
}

func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-items",
		Method:      http.MethodGet,
		Path:        "/v1/items",
		Summary:     "List linked items",
		Tags:        []string{"Items"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "link-item",
		Method:      http.MethodPost,
		Path:        "/v1/items/link",
		Summary:     "Link item",
		Description: "Exchanges a public token from the provider's link flow and queues the initial sync.",
		Tags:        []string{"Items"},
	}, h.link)
	huma.Register(api, huma.Operation{
		OperationID: "sync-item",
		Method:      http.MethodPost,
		Path:        "/v1/items/{itemId}/sync",
		Summary:     "Sync item",
		Description: "Queues an incremental sync of an active item.",
		Tags:        []string{"Items"},
	}, h.sync)
	huma.Register(api, huma.Operation{
		OperationID: "disconnect-item",
		Method:      http.MethodDelete,
		Path:        "/v1/items/{itemId}",
		Summary:     "Disconnect item",
		Description: "Revokes the item at the provider when possible and marks it disconnected.",
		Tags:        []string{"Items"},
	}, h.disconnect)
}

type ListItemsOutput struct {
	Body struct {
		Items []Item `json:"items"`
	}
}

func (h *Handler) list(ctx context.Context, _ *struct{}) (*ListItemsOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	found, err := h.ItemService.ListItems(ctx, userID)
	if err != nil {
		return nil, apierror.From(err, "failed to list items")
	}

	out := &ListItemsOutput{}
	out.Body.Items = make([]Item, len(found))
	for i, item := range found {
		out.Body.Items[i] = toItem(item)
	}
	return out, nil
}

type LinkItemInput struct {
	Body struct {
		PublicToken string `json:"publicToken" minLength:"1" doc:"Public token from the provider's link flow"`
	}
}

type SyncQueuedResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
}

type LinkItemOutput struct {
	Status int
	Body   struct {
		Item Item               `json:"item"`
		Sync SyncQueuedResponse `json:"sync"`
	}
}

func (h *Handler) link(ctx context.Context, input *LinkItemInput) (*LinkItemOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	stopTimer := logging.GetLogData(ctx).AddTiming("linkItemMs")
	item, job, err := h.ItemService.LinkItem(ctx, userID, input.Body.PublicToken)
	stopTimer()
	if err != nil {
		return nil, apierror.From(err, "failed to link item")
	}
	logging.GetLogData(ctx).AddData("itemId", item.ItemID)

	out := &LinkItemOutput{Status: http.StatusCreated}
	out.Body.Item = toItem(item)
	out.Body.Sync = SyncQueuedResponse{Success: true, JobID: job.JobID, Status: string(job.Status)}
	return out, nil
}

type ItemPathInput struct {
	ItemID string `path:"itemId"`
}

type SyncItemOutput struct {
	Status int
	Body   SyncQueuedResponse
}

func (h *Handler) sync(ctx context.Context, input *ItemPathInput) (*SyncItemOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	job, err := h.ItemService.TriggerSync(ctx, userID, input.ItemID)
	if err != nil {
		return nil, apierror.From(err, "failed to queue sync")
	}
	return &SyncItemOutput{
		Status: http.StatusAccepted,
		Body:   SyncQueuedResponse{Success: true, JobID: job.JobID, Status: string(job.Status)},
	}, nil
}

type DisconnectItemOutput struct {
	Body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
}

func (h *Handler) disconnect(ctx context.Context, input *ItemPathInput) (*DisconnectItemOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.ItemService.Disconnect(ctx, userID, input.ItemID); err != nil {
		return nil, apierror.From(err, "failed to disconnect item")
	}

	out := &DisconnectItemOutput{}
	out.Body.Success = true
	out.Body.Message = "item disconnected"
	return out, nil
}
