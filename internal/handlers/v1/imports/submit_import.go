package imports

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/ingest-server/internal/handlers/v1/apierror"
	"github.com/carson-networks/ingest-server/internal/jobs"
	"github.com/carson-networks/ingest-server/internal/logging"
	"github.com/carson-networks/ingest-server/internal/service"
)

// SubmitOperationID is rate limited by the import policy rather than the
// general API policy.
const SubmitOperationID = "submit-import"

// SubmitImportBody is the request body for submitting an import.
type SubmitImportBody struct {
	CSVContent           string `json:"csvContent" minLength:"1" doc:"Raw CSV export including its header row"`
	Format               string `json:"format" minLength:"1" doc:"Source format, e.g. capital-one or copilot"`
	FileName             string `json:"fileName,omitempty" doc:"Name of the uploaded file; resubmitting a name returns the existing job"`
	AccountID            string `json:"accountId,omitempty" doc:"Account UUID all rows belong to; rows name their account when omitted"`
	DeduplicateThreshold *int   `json:"deduplicateThreshold,omitempty" doc:"Duplicate date window in hours, 0 for exact matches only (default 60)"`
	BatchSize            *int   `json:"batchSize,omitempty" doc:"Rows persisted per batch (default 20)"`
	BatchDelay           *int   `json:"batchDelay,omitempty" doc:"Milliseconds between batches (default 200)"`
	MaxRetries           *int   `json:"maxRetries,omitempty" doc:"Retries of a failed batch (default 3)"`
	RetryDelay           *int   `json:"retryDelay,omitempty" doc:"Milliseconds between batch retries (default 500)"`
}

// SubmitImportInput is the Huma input for submitting an import.
type SubmitImportInput struct {
	Body SubmitImportBody
}

// SubmitImportResponse is the response body for submitting an import.
type SubmitImportResponse struct {
	Success  bool   `json:"success" doc:"Whether the submission was accepted"`
	JobID    string `json:"jobId" doc:"Id of the queued or existing job"`
	FileName string `json:"fileName" doc:"File name the job is tracked under"`
	Status   string `json:"status" doc:"Current job status"`
	Existing bool   `json:"existing,omitempty" doc:"True when the file was already submitted"`
}

// SubmitImportOutput is the Huma output for submitting an import.
type SubmitImportOutput struct {
	Status int
	Body   SubmitImportResponse
}

type importSubmitter interface {
	Submit(ctx context.Context, req service.ImportRequest) (*jobs.Job, bool, error)
}

// SubmitImportHandler handles POST /v1/imports.
type SubmitImportHandler struct {
	ImportService importSubmitter
}

func NewSubmitImportHandler(svc importSubmitter) *SubmitImportHandler {
	return &SubmitImportHandler{ImportService: svc}
}

// Register registers the submit import endpoint with the Huma API.
func (h *SubmitImportHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: SubmitOperationID,
		Method:      http.MethodPost,
		Path:        "/v1/imports",
		Summary:     "Submit import",
		Description: "Queues a CSV export for import. Processing happens in the background; poll the job for progress.",
		Tags:        []string{"Imports"},
	}, h.handle)
}

func parseSubmitImportInput(userID string, input *SubmitImportInput) (service.ImportRequest, error) {
	req := service.ImportRequest{
		UserID:     userID,
		FileName:   input.Body.FileName,
		Format:     input.Body.Format,
		CSVContent: input.Body.CSVContent,
		Options: service.ImportOptions{
			DeduplicateThreshold: input.Body.DeduplicateThreshold,
			BatchSize:            input.Body.BatchSize,
			BatchDelayMs:         input.Body.BatchDelay,
			MaxRetries:           input.Body.MaxRetries,
			RetryDelayMs:         input.Body.RetryDelay,
		},
	}
	if input.Body.AccountID != "" {
		accountID, err := uuid.FromString(input.Body.AccountID)
		if err != nil {
			return service.ImportRequest{}, huma.NewError(http.StatusBadRequest, "invalid accountId", err)
		}
		req.AccountID = &accountID
	}
	return req, nil
}

func (h *SubmitImportHandler) handle(ctx context.Context, input *SubmitImportInput) (*SubmitImportOutput, error) {
	logData := logging.GetLogData(ctx)
	userID, err := apierror.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	req, err := parseSubmitImportInput(userID, input)
	if err != nil {
		return nil, err
	}

	stopTimer := logData.AddTiming("submitImportMs")
	job, existing, err := h.ImportService.Submit(ctx, req)
	stopTimer()
	if err != nil {
		return nil, apierror.From(err, "failed to submit import")
	}
	logData.AddData("jobId", job.JobID)
	logData.AddData("existing", existing)

	status := http.StatusAccepted
	if existing {
		status = http.StatusOK
	}
	return &SubmitImportOutput{
		Status: status,
		Body: SubmitImportResponse{
			Success:  true,
			JobID:    job.JobID,
			FileName: job.FileName,
			Status:   string(job.Status),
			Existing: existing,
		},
	}, nil
}
