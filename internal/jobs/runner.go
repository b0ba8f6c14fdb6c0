package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/ternarybob/slidegen/internal/worker"
)

// Runner validates submissions, schedules them on the worker pool and drives
// each job through its lifecycle.
type Runner struct {
	registry interfaces.JobRegistry
	store    interfaces.ArtifactStore
	notifier interfaces.Notifier
	pool     *worker.WorkerPool
	logger   arbor.ILogger

	mu        sync.RWMutex
	producers map[models.JobType]interfaces.Producer

	timeout              time.Duration
	defaultOutlineLength int
}

// RunnerOption configures optional runner behaviour
type RunnerOption func(*Runner)

// WithTimeout bounds each job. Zero disables the deadline.
func WithTimeout(timeout time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = timeout
	}
}

// WithDefaultOutlineLength sets the slide count used when a request omits length
func WithDefaultOutlineLength(length int) RunnerOption {
	return func(r *Runner) {
		r.defaultOutlineLength = length
	}
}

func NewRunner(
	registry interfaces.JobRegistry,
	store interfaces.ArtifactStore,
	notifier interfaces.Notifier,
	pool *worker.WorkerPool,
	logger arbor.ILogger,
	opts ...RunnerOption,
) *Runner {
	r := &Runner{
		registry:             registry,
		store:                store,
		notifier:             notifier,
		pool:                 pool,
		logger:               logger,
		producers:            make(map[models.JobType]interfaces.Producer),
		defaultOutlineLength: models.DefaultOutlineLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProducer sets the producer for a job type
func (r *Runner) RegisterProducer(jobType models.JobType, producer interfaces.Producer) {
	r.mu.Lock()
	r.producers[jobType] = producer
	r.mu.Unlock()

	r.logger.Debug().
		Str("job_type", string(jobType)).
		Msg("Producer registered")
}

func (r *Runner) producer(jobType models.JobType) (interfaces.Producer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[jobType]
	return p, ok
}

// Start launches the worker pool
func (r *Runner) Start() {
	r.pool.Start()
}

// Stop shuts the pool down. Running jobs see their context cancelled and
// jobs that never started are failed.
func (r *Runner) Stop() {
	dropped := r.pool.Stop()
	for _, task := range dropped {
		r.fail(context.Background(), task.ID, "job cancelled: service shutting down")
	}
}

// Submit validates payload, registers a queued job and hands it to the worker pool
func (r *Runner) Submit(ctx context.Context, jobType models.JobType, payload interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, ok := r.producer(jobType); !ok {
		return "", fmt.Errorf("%w: %w: %q", ErrSubmission, ErrUnknownJobType, jobType)
	}

	prepared, err := r.preparePayload(jobType, payload)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	job, err := r.registry.Create(jobType, prepared)
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	err = r.pool.Submit(worker.Task{
		ID: job.ID,
		Run: func(ctx context.Context) {
			if err := r.Execute(ctx, job.ID); err != nil {
				r.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Job execution skipped")
			}
		},
	})
	if err != nil {
		r.fail(ctx, job.ID, "job runner is not accepting work")
		return "", fmt.Errorf("%w: %v", ErrRunnerStopped, err)
	}

	r.logger.Info().
		Str("job_id", job.ID).
		Str("job_type", string(jobType)).
		Msg("Job queued")

	return job.ID, nil
}

// preparePayload validates the request and stores a private copy with defaults applied
func (r *Runner) preparePayload(jobType models.JobType, payload interface{}) (interface{}, error) {
	switch jobType {
	case models.JobTypeOutline:
		var req models.OutlineRequest
		switch p := payload.(type) {
		case *models.OutlineRequest:
			if p == nil {
				return nil, errors.New("missing outline request")
			}
			req = *p
		case models.OutlineRequest:
			req = p
		default:
			return nil, fmt.Errorf("unexpected payload %T for outline job", payload)
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		req.ApplyDefaults(r.defaultOutlineLength)
		return &req, nil

	case models.JobTypeImage:
		var req models.ImageRequest
		switch p := payload.(type) {
		case *models.ImageRequest:
			if p == nil {
				return nil, errors.New("missing image request")
			}
			req = *p
		case models.ImageRequest:
			req = p
		default:
			return nil, fmt.Errorf("unexpected payload %T for image job", payload)
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		req.ApplyDefaults()
		return &req, nil

	case models.JobTypeDeck:
		var req models.DeckRequest
		switch p := payload.(type) {
		case *models.DeckRequest:
			if p == nil {
				return nil, errors.New("missing deck request")
			}
			req = *p
		case models.DeckRequest:
			req = p
		default:
			return nil, fmt.Errorf("unexpected payload %T for deck job", payload)
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		req.ApplyDefaults()
		req.Images = append([]models.ImageRef(nil), req.Images...)
		return &req, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
}

// Execute runs one job to completion. Producer, storage, deadline and panic
// failures end in the error state; the returned error only reports jobs that
// could not be started (unknown id or not queued).
func (r *Runner) Execute(ctx context.Context, id string) error {
	job, found := r.registry.Get(id)
	if !found {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	logger := r.logger.WithCorrelationId(id)

	running, err := r.registry.Update(id, models.JobStatusRunning, nil, "")
	if err != nil {
		return err
	}
	r.notify(ctx, running)

	logger.Info().
		Str("job_type", string(job.Type)).
		Msg("Job started")

	start := time.Now()
	result, err := r.produce(ctx, job)
	if err != nil {
		logger.Warn().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		r.fail(ctx, id, err.Error())
		return nil
	}

	done, err := r.registry.Update(id, models.JobStatusDone, result, "")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to record job result")
		return nil
	}
	r.notify(ctx, done)

	logger.Info().
		Dur("duration", time.Since(start)).
		Msg("Job completed")

	return nil
}

// produce runs the producer under the job deadline and converts its output into a result
func (r *Runner) produce(ctx context.Context, job models.Job) (*models.JobResult, error) {
	producer, ok := r.producer(job.Type)
	if !ok {
		return nil, fmt.Errorf("no producer registered for job type %q", job.Type)
	}

	runCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	output, err := r.invoke(runCtx, producer, job)
	if err != nil {
		return nil, err
	}

	return r.collect(runCtx, job, output)
}

type producerResult struct {
	output *interfaces.ProducerOutput
	err    error
}

// invoke calls the producer on its own goroutine so the deadline holds even
// when the producer ignores its context.
func (r *Runner) invoke(ctx context.Context, producer interfaces.Producer, job models.Job) (*interfaces.ProducerOutput, error) {
	resultCh := make(chan producerResult, 1)

	go func() {
		defer common.RecoverPanic(r.logger, "producer "+job.ID, func(p interface{}) {
			resultCh <- producerResult{err: fmt.Errorf("%s producer panicked: %v", job.Type, p)}
		})
		output, err := producer.Run(ctx, job.ID, job.Payload)
		resultCh <- producerResult{output: output, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		if res.output == nil {
			return nil, fmt.Errorf("%s producer returned no output", job.Type)
		}
		return res.output, nil
	case <-ctx.Done():
		r.discardLate(job.ID, resultCh)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("job timed out after %s", r.timeout)
		}
		return nil, fmt.Errorf("job cancelled: %v", ctx.Err())
	}
}

// discardLate waits for a producer that outlived its job and removes any
// scratch file it hands back.
func (r *Runner) discardLate(jobID string, resultCh <-chan producerResult) {
	common.SafeGo(r.logger, "discard late output "+jobID, func() {
		res := <-resultCh
		if res.output == nil || res.output.FilePath == "" {
			return
		}
		if err := os.Remove(res.output.FilePath); err != nil && !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Str("path", res.output.FilePath).Msg("Failed to remove late scratch file")
			return
		}
		r.logger.Debug().Str("job_id", jobID).Str("path", res.output.FilePath).Msg("Removed scratch file from timed out producer")
	})
}

// collect stores file output and shapes the result for the job type
func (r *Runner) collect(ctx context.Context, job models.Job, output *interfaces.ProducerOutput) (*models.JobResult, error) {
	if output.FilePath != "" {
		defer func() {
			if err := os.Remove(output.FilePath); err != nil && !os.IsNotExist(err) {
				r.logger.Warn().Err(err).Str("path", output.FilePath).Msg("Failed to remove scratch file")
			}
		}()
	}

	switch job.Type {
	case models.JobTypeOutline:
		if len(output.Slides) == 0 {
			return nil, errors.New("outline producer returned no slides")
		}
		return &models.JobResult{Slides: output.Slides}, nil

	case models.JobTypeImage:
		url, err := r.reference(ctx, job, output, "image.png")
		if err != nil {
			return nil, err
		}
		return &models.JobResult{ImageURL: url}, nil

	case models.JobTypeDeck:
		url, err := r.reference(ctx, job, output, "deck.pdf")
		if err != nil {
			return nil, err
		}
		return &models.JobResult{DeckURL: url}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, job.Type)
}

func (r *Runner) reference(ctx context.Context, job models.Job, output *interfaces.ProducerOutput, defaultName string) (string, error) {
	if output.FilePath == "" {
		if output.URL == "" {
			return "", fmt.Errorf("%s producer returned neither a file nor a url", job.Type)
		}
		return output.URL, nil
	}

	name := output.FileName
	if name == "" {
		name = defaultName
	}

	url, err := r.store.Store(ctx, output.FilePath, job.ID, name)
	if err != nil {
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}
	return url, nil
}

// fail moves a job to error and announces it. Jobs already terminal are left alone.
func (r *Runner) fail(ctx context.Context, id, message string) {
	failed, err := r.registry.Update(id, models.JobStatusError, nil, message)
	if err != nil {
		r.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to mark job as failed")
		return
	}
	r.notify(ctx, failed)
}

// notify broadcasts the job state. It detaches from ctx so a cancelled job
// still reaches subscribers.
func (r *Runner) notify(ctx context.Context, job models.Job) {
	if r.notifier == nil {
		return
	}
	r.notifier.Broadcast(context.WithoutCancel(ctx), models.NewJobUpdateEvent(job))
}
