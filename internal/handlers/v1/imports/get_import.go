package imports

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/jobs"
)

type GetImportInput struct {
	JobID string `path:"jobId" doc:"Job id"`
}

type GetImportOutput struct {
	Body Job
}

type importGetter interface {
	Get(ctx context.Context, userID, jobID string) (*jobs.Job, error)
}

// GetImportHandler handles GET /v1/imports/{jobId}.
type GetImportHandler struct {
	ImportService importGetter
}

func NewGetImportHandler(svc importGetter) *GetImportHandler {
	return &GetImportHandler{ImportService: svc}
}

func (h *GetImportHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-import",
		Method:      http.MethodGet,
		Path:        "/v1/imports/{jobId}",
		Summary:     "Get import job",
		Description: "Returns the status and live statistics of one of the caller's jobs.",
		Tags:        []string{"Imports"},
	}, h.handle)
}

func (h *GetImportHandler) handle(ctx context.Context, input *GetImportInput) (*GetImportOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	job, err := h.ImportService.Get(ctx, userID, input.JobID)
	if err != nil {
		return nil, apierror.From(err, "failed to get import")
	}
	return &GetImportOutput{Body: toJob(job)}, nil
}
