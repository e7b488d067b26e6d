package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/fraud-reports/internal/reports"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeGenerateReport represents a report generation job.
	JobTypeGenerateReport JobType = "generate_report"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

var (
	// ErrJobNotFound is returned when a job ID is unknown to the store.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// GenerateReportJob asks for a report to be generated for one account.
type GenerateReportJob struct {
	JobID   string          `json:"job_id"`
	Type    JobType         `json:"type"`
	Account reports.Account `json:"account"`
	Status  JobStatus       `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Outcome is the generator status of the last successful run.
	Outcome    reports.GenerateStatus `json:"outcome,omitempty"`
	Link       string                 `json:"link,omitempty"`
	ObjectName string                 `json:"object_name,omitempty"`
	Error      string                 `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher publishes jobs to a queue.
type Publisher interface {
	PublishGenerateReport(ctx context.Context, job *GenerateReportJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer consumes jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs. handler is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job for retry.
// The handler may record results on job.
type JobHandler func(ctx context.Context, job *GenerateReportJob) error

// JobStore stores and retrieves job state.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *GenerateReportJob) error

	// GetJob retrieves a job by ID. Unknown IDs yield ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*GenerateReportJob, error)

	// ListJobs retrieves jobs, newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*GenerateReportJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Account reports.Account
	Status  JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
