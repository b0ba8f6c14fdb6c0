package jobs

import "errors"

var (
	// ErrSubmission wraps every reason a request is rejected before a job exists
	ErrSubmission = errors.New("invalid submission")

	// ErrUnknownJobType is returned for job types without a producer
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrJobNotFound is returned by Update and Execute for unknown ids
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a status change breaks the lifecycle
	// queued -> running -> done|error (or queued -> error)
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrInvalidOutcome is returned when result/error do not match the target status
	ErrInvalidOutcome = errors.New("invalid job outcome")

	// ErrRunnerStopped is returned by Submit after the runner has shut down
	ErrRunnerStopped = errors.New("job runner stopped")
)
