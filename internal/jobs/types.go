package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessStatement ingests an uploaded CSV statement and re-runs
	// subscription detection for its user.
	JobTypeProcessStatement JobType = "process_statement"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ProcessStatementJob carries one uploaded statement through ingestion and
// detection.
type ProcessStatementJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID owns the statement and the resulting transactions.
	UserID string `json:"user_id"`

	// GCSURI is where the uploaded CSV lives.
	GCSURI string `json:"gcs_uri"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ProcessStatementJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ProcessStatementJob) GetType() JobType {
	return JobTypeProcessStatement
}

// GetStatus implements the Job interface.
func (j *ProcessStatementJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory,
// Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishProcessStatement publishes a statement processing job.
	PublishProcessStatement(ctx context.Context, job *ProcessStatementJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue. The handler function is
	// called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job. It should return an error
// if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ProcessStatementJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ProcessStatementJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessStatementJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// UserID filters jobs by user.
	UserID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int
}
