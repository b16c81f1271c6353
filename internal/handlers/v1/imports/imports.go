package imports

import (
	"time"

	"github.com/carson-networks/ingest-server/internal/jobs"
)

// Job is the API response model for an import or sync job.
type Job struct {
	JobID     string     `json:"jobId" doc:"Job id"`
	UserID    string     `json:"userId" doc:"Owner of the job"`
	Type      string     `json:"type" doc:"import-transactions or plaid-sync"`
	Status    string     `json:"status" enum:"queued,uploading,processing,done,error" doc:"Lifecycle state"`
	FileName  string     `json:"fileName,omitempty" doc:"Submitted file name"`
	Stats     jobs.Stats `json:"stats" doc:"Progress and outcome counters"`
	Error     string     `json:"error,omitempty" doc:"Failure message of an errored job"`
	CreatedAt string     `json:"createdAt" doc:"RFC3339 submission time"`
	StartTime string     `json:"startTime,omitempty" doc:"RFC3339 time processing started"`
	EndTime   string     `json:"endTime,omitempty" doc:"RFC3339 time the job reached a terminal state"`
}

func toJob(job *jobs.Job) Job {
	out := Job{
		JobID:     job.JobID,
		UserID:    job.UserID,
		Type:      string(job.Type),
		Status:    string(job.Status),
		FileName:  job.FileName,
		Stats:     job.Stats,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartTime != nil {
		out.StartTime = job.StartTime.Format(time.RFC3339)
	}
	if job.EndTime != nil {
		out.EndTime = job.EndTime.Format(time.RFC3339)
	}
	return out
}
