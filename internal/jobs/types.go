package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/gastos/internal/domain"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeArchiveExpense copies a stored expense into the analytics archive.
	JobTypeArchiveExpense JobType = "archive_expense"
	// JobTypeArchiveReceipt uploads the photo an expense was extracted from.
	JobTypeArchiveReceipt JobType = "archive_receipt"
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

// Job is one unit of background archival work.
type Job struct {
	JobID     string  `json:"job_id"`
	Type      JobType `json:"type"`
	ExpenseID string  `json:"expense_id"`
	OwnerID   string  `json:"owner_id"`

	// Expense is the record being archived.
	Expense *domain.Expense `json:"-"`

	// Receipt holds the photo bytes for archive_receipt jobs.
	Receipt  []byte `json:"-"`
	MIMEType string `json:"mime_type,omitempty"`

	// Location is where the job put its output, e.g. a gs:// URI.
	Location string `json:"location,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job.
	Publish(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for
// retry.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID. Unknown IDs return domain.ErrNotFound.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Type      JobType
	ExpenseID string
	Status    JobStatus
	Limit     int
	Offset    int
}
