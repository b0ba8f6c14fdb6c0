package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/slidegen/internal/models"
)

// JobReader gives read-only access to job snapshots
type JobReader interface {
	// Get returns a copy of the job; found is false for unknown ids
	Get(id string) (job models.Job, found bool)
}

// JobRegistry is the authoritative in-memory store of job state
type JobRegistry interface {
	JobReader

	// Create registers a new queued job and returns its snapshot
	Create(jobType models.JobType, payload interface{}) (models.Job, error)

	// Update moves a job to status, recording result (done) or errMsg (error).
	// Illegal transitions return ErrInvalidTransition from the jobs package.
	Update(id string, status models.JobStatus, result *models.JobResult, errMsg string) (models.Job, error)

	// List returns snapshots matching filter, oldest first
	List(filter models.JobFilter) []models.Job

	// Stats counts jobs per status
	Stats() models.JobStats

	// PruneFinishedBefore evicts terminal jobs finished before t and returns the count
	PruneFinishedBefore(t time.Time) int
}

// JobSubmitter accepts work for asynchronous execution
type JobSubmitter interface {
	// Submit validates payload, registers a queued job and schedules it.
	// It never waits for the work itself.
	Submit(ctx context.Context, jobType models.JobType, payload interface{}) (string, error)
}
