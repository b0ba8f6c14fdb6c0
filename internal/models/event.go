package models

// EventTypeJobUpdate is the message type pushed to websocket subscribers
const EventTypeJobUpdate = "job-update"

// JobUpdateEvent announces a job state change
type JobUpdateEvent struct {
	Type   string     `json:"type"`
	JobID  string     `json:"job_id"`
	Status JobStatus  `json:"status"`
	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// NewJobUpdateEvent builds the event for the job's current state
func NewJobUpdateEvent(job Job) JobUpdateEvent {
	return JobUpdateEvent{
		Type:   EventTypeJobUpdate,
		JobID:  job.ID,
		Status: job.Status,
		Result: job.Result.Clone(),
		Error:  job.Error,
	}
}
