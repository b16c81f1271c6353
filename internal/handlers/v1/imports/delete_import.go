package imports

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/service"
)

type DeleteImportInput struct {
	JobID string `path:"jobId" doc:"Job id"`
}

type DeleteImportResponse struct {
	Success   bool   `json:"success"`
	Withdrawn bool   `json:"withdrawn" doc:"True when the job was cancelled before any worker claimed it"`
	Message   string `json:"message"`
	Job       Job    `json:"job"`
}

type DeleteImportOutput struct {
	Body DeleteImportResponse
}

type importDeleter interface {
	Delete(ctx context.Context, userID, jobID string) (*service.DeleteResult, error)
}

// DeleteImportHandler handles DELETE /v1/imports/{jobId}.
type DeleteImportHandler struct {
	ImportService importDeleter
}

func NewDeleteImportHandler(svc importDeleter) *DeleteImportHandler {
	return &DeleteImportHandler{ImportService: svc}
}

func (h *DeleteImportHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "delete-import",
		Method:      http.MethodDelete,
		Path:        "/v1/imports/{jobId}",
		Summary:     "Cancel import job",
		Description: "Withdraws a queued job. A job already being processed finishes its current batch and ends in error.",
		Tags:        []string{"Imports"},
	}, h.handle)
}

func (h *DeleteImportHandler) handle(ctx context.Context, input *DeleteImportInput) (*DeleteImportOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	result, err := h.ImportService.Delete(ctx, userID, input.JobID)
	if err != nil {
		return nil, apierror.From(err, "failed to delete import")
	}

	message := "job withdrawn"
	if !result.Withdrawn {
		message = "job is being processed; remaining retries will be skipped"
	}
	return &DeleteImportOutput{Body: DeleteImportResponse{
		Success:   true,
		Withdrawn: result.Withdrawn,
		Message:   message,
		Job:       toJob(result.Job),
	}}, nil
}
