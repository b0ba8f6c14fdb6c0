package models

import (
	"time"
)

// JobType identifies which content producer handles a job
type JobType string

const (
	JobTypeOutline JobType = "outline"
	JobTypeImage   JobType = "image"
	JobTypeDeck    JobType = "deck"
)

// Valid reports whether t is a known job type
func (t JobType) Valid() bool {
	switch t {
	case JobTypeOutline, JobTypeImage, JobTypeDeck:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusDone, JobStatusError:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// CanTransitionTo reports whether s -> next is a legal lifecycle step.
// Allowed: queued -> running, queued -> error, running -> done, running -> error.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusError
	case JobStatusRunning:
		return next == JobStatusDone || next == JobStatusError
	}
	return false
}

// Slide is one entry of a generated outline
type Slide struct {
	Title   string   `json:"title" toml:"title" yaml:"title"`
	Bullets []string `json:"bullets" toml:"bullets" yaml:"bullets"`
}

// JobResult is the output of a successful job. Exactly one field is populated,
// matching the job type.
type JobResult struct {
	Slides   []Slide `json:"slides,omitempty"`
	ImageURL string  `json:"image_url,omitempty"`
	DeckURL  string  `json:"deck_url,omitempty"`
}

// ArtifactURL returns the downloadable reference, preferring the deck over the image
func (r *JobResult) ArtifactURL() string {
	if r == nil {
		return ""
	}
	if r.DeckURL != "" {
		return r.DeckURL
	}
	return r.ImageURL
}

// Clone returns a deep copy of the result
func (r *JobResult) Clone() *JobResult {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Slides != nil {
		clone.Slides = make([]Slide, len(r.Slides))
		for i, s := range r.Slides {
			clone.Slides[i] = Slide{
				Title:   s.Title,
				Bullets: append([]string(nil), s.Bullets...),
			}
		}
	}
	return &clone
}

// Job is the registry's record of one unit of background work.
// Payload holds the validated request and is never mutated after creation.
type Job struct {
	ID         string      `json:"job_id"`
	Type       JobType     `json:"type"`
	Status     JobStatus   `json:"status"`
	Payload    interface{} `json:"payload,omitempty"`
	Result     *JobResult  `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// Clone returns a copy that shares nothing mutable with j
func (j *Job) Clone() Job {
	clone := *j
	clone.Result = j.Result.Clone()
	if j.StartedAt != nil {
		t := *j.StartedAt
		clone.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		clone.FinishedAt = &t
	}
	return clone
}

// JobFilter narrows a job listing. Zero values match everything.
type JobFilter struct {
	Status JobStatus
	Type   JobType
}

// Matches reports whether j satisfies the filter
func (f JobFilter) Matches(j *Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Type != "" && j.Type != f.Type {
		return false
	}
	return true
}

// JobStats counts jobs per status
type JobStats struct {
	Total   int `json:"total"`
	Queued  int `json:"queued"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Error   int `json:"error"`
}
