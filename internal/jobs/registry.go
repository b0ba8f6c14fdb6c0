package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
	"github.com/ternarybob/slidegen/internal/models"
)

const maxIDAttempts = 8

// Registry is the in-memory job store. All reads return copies, so callers
// never observe a job while it is being written.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*models.Job
	logger arbor.ILogger

	newID func() string
	now   func() time.Time
}

func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		jobs:   make(map[string]*models.Job),
		logger: logger,
		newID:  common.NewJobID,
		now:    time.Now,
	}
}

// Create registers a queued job with a fresh id
func (r *Registry) Create(jobType models.JobType, payload interface{}) (models.Job, error) {
	if !jobType.Valid() {
		return models.Job{}, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := ""
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate := r.newID()
		if _, exists := r.jobs[candidate]; !exists {
			id = candidate
			break
		}
		r.logger.Warn().Str("job_id", candidate).Msg("Job id collision, generating another")
	}
	if id == "" {
		return models.Job{}, fmt.Errorf("failed to allocate a unique job id after %d attempts", maxIDAttempts)
	}

	now := r.now()
	job := &models.Job{
		ID:        id,
		Type:      jobType,
		Status:    models.JobStatusQueued,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[id] = job

	return job.Clone(), nil
}

// Get returns a snapshot of the job
func (r *Registry) Get(id string) (models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return job.Clone(), true
}

// Update applies a status change. A done job must carry a result and no error,
// an error job a message and no result, and a running job neither.
func (r *Registry) Update(id string, status models.JobStatus, result *models.JobResult, errMsg string) (models.Job, error) {
	if err := checkOutcome(status, result, errMsg); err != nil {
		return models.Job{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if !job.Status.CanTransitionTo(status) {
		return models.Job{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, status)
	}

	now := r.now()
	job.Status = status
	job.UpdatedAt = now

	switch status {
	case models.JobStatusRunning:
		job.StartedAt = &now
	case models.JobStatusDone:
		job.Result = result.Clone()
		job.FinishedAt = &now
	case models.JobStatusError:
		job.Error = errMsg
		job.FinishedAt = &now
	}

	return job.Clone(), nil
}

func checkOutcome(status models.JobStatus, result *models.JobResult, errMsg string) error {
	switch status {
	case models.JobStatusRunning:
		if result != nil || errMsg != "" {
			return fmt.Errorf("%w: running job cannot carry a result or error", ErrInvalidOutcome)
		}
	case models.JobStatusDone:
		if result == nil || errMsg != "" {
			return fmt.Errorf("%w: done job needs a result and no error", ErrInvalidOutcome)
		}
	case models.JobStatusError:
		if errMsg == "" || result != nil {
			return fmt.Errorf("%w: failed job needs an error message and no result", ErrInvalidOutcome)
		}
	default:
		return fmt.Errorf("%w: cannot move a job to %q", ErrInvalidTransition, status)
	}
	return nil
}

// List returns matching jobs ordered by creation time
func (r *Registry) List(filter models.JobFilter) []models.Job {
	r.mu.RLock()
	jobs := make([]models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.Matches(job) {
			jobs = append(jobs, job.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

func (r *Registry) Stats() models.JobStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := models.JobStats{Total: len(r.jobs)}
	for _, job := range r.jobs {
		switch job.Status {
		case models.JobStatusQueued:
			stats.Queued++
		case models.JobStatusRunning:
			stats.Running++
		case models.JobStatusDone:
			stats.Done++
		case models.JobStatusError:
			stats.Error++
		}
	}
	return stats
}

// PruneFinishedBefore removes terminal jobs that finished before cutoff.
// Queued and running jobs are never removed.
func (r *Registry) PruneFinishedBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if job.Status.IsTerminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}
