package imports

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/logging"
)

type ListImportsInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"100" doc:"Maximum jobs to return, 0 for all"`
}

type ListImportsResponseBody struct {
	Jobs []Job `json:"jobs" doc:"The caller's jobs, newest first"`
}

type ListImportsOutput struct {
	Body ListImportsResponseBody
}

type importLister interface {
	List(ctx context.Context, userID string, limit int) ([]*jobs.Job, error)
}

// ListImportsHandler handles GET /v1/imports.
type ListImportsHandler struct {
	ImportService importLister
}

func NewListImportsHandler(svc importLister) *ListImportsHandler {
	return &ListImportsHandler{ImportService: svc}
}

func (h *ListImportsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-imports",
		Method:      http.MethodGet,
		Path:        "/v1/imports",
		Summary:     "List import jobs",
		Description: "Returns the caller's jobs, newest first.",
		Tags:        []string{"Imports"},
	}, h.handle)
}

func (h *ListImportsHandler) handle(ctx context.Context, input *ListImportsInput) (*ListImportsOutput, error) {
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	found, err := h.ImportService.List(ctx, userID, input.Limit)
	if err != nil {
		return nil, apierror.From(err, "failed to list imports")
	}
	logging.GetLogData(ctx).AddData("jobCount", len(found))

	resp := ListImportsResponseBody{Jobs: make([]Job, len(found))}
	for i, job := range found {
		resp.Jobs[i] = toJob(job)
	}
	return &ListImportsOutput{Body: resp}, nil
}
