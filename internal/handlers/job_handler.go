package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/jobs"
	"github.com/ternarybob/slidegen/internal/models"
)

// JobHandler serves job submission, status and download endpoints
type JobHandler struct {
	submitter interfaces.JobSubmitter
	registry  interfaces.JobRegistry
	store     interfaces.ArtifactStore
	logger    arbor.ILogger
}

func NewJobHandler(submitter interfaces.JobSubmitter, registry interfaces.JobRegistry, store interfaces.ArtifactStore, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		submitter: submitter,
		registry:  registry,
		store:     store,
		logger:    logger,
	}
}

// GenerateOutlineHandler queues an outline job
// POST /api/generate-outline {title, audience, length, style}
func (h *JobHandler) GenerateOutlineHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.OutlineRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.submit(w, r, models.JobTypeOutline, &req)
}

// GenerateImageHandler queues an image job
// POST /api/generate-image {prompt, size, style}
func (h *JobHandler) GenerateImageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.ImageRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.submit(w, r, models.JobTypeImage, &req)
}

// GeneratePPTHandler queues a deck job
// POST /api/generate-ppt {outline_id, images, template, options}
func (h *JobHandler) GeneratePPTHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req models.DeckRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.submit(w, r, models.JobTypeDeck, &req)
}

func (h *JobHandler) submit(w http.ResponseWriter, r *http.Request, jobType models.JobType, payload interface{}) {
	id, err := h.submitter.Submit(r.Context(), jobType, payload)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrSubmission):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, jobs.ErrRunnerStopped):
			WriteError(w, http.StatusServiceUnavailable, "service is shutting down")
		default:
			h.logger.Error().Err(err).Str("job_type", string(jobType)).Msg("Failed to submit job")
			WriteError(w, http.StatusInternalServerError, "failed to submit job")
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": id,
		"status": string(models.JobStatusQueued),
	})
}

// JobStatusHandler returns the current job snapshot
// GET /api/job-status/{id}
func (h *JobHandler) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	job, ok := h.lookup(w, r, "/api/job-status/")
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// DownloadHandler returns the artifact reference of a finished job
// GET /api/download/{id}
func (h *JobHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	job, ok := h.lookup(w, r, "/api/download/")
	if !ok {
		return
	}

	ref := job.Result.ArtifactURL()
	if ref == "" {
		WriteError(w, http.StatusConflict, fmt.Sprintf("no artifact available for job (status: %s)", job.Status))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"job_id":       job.ID,
		"download_url": ref,
	})
}

// ArtifactHandler streams the stored artifact file of a finished job
// GET /api/artifacts/{id}
func (h *JobHandler) ArtifactHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	job, ok := h.lookup(w, r, "/api/artifacts/")
	if !ok {
		return
	}

	ref := job.Result.ArtifactURL()
	if ref == "" {
		WriteError(w, http.StatusConflict, fmt.Sprintf("no artifact available for job (status: %s)", job.Status))
		return
	}

	path, err := h.store.LocalPath(ref)
	if err != nil {
		h.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Artifact not available locally")
		WriteError(w, http.StatusNotFound, "artifact not available")
		return
	}

	http.ServeFile(w, r, path)
}

// ListJobsHandler lists jobs with optional filters
// GET /api/jobs?status=done&type=image
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	filter := models.JobFilter{
		Status: models.JobStatus(r.URL.Query().Get("status")),
		Type:   models.JobType(r.URL.Query().Get("type")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid status filter %q", filter.Status))
		return
	}
	if filter.Type != "" && !filter.Type.Valid() {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid type filter %q", filter.Type))
		return
	}

	list := h.registry.List(filter)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
		"stats": h.registry.Stats(),
	})
}

func (h *JobHandler) lookup(w http.ResponseWriter, r *http.Request, prefix string) (models.Job, bool) {
	id := PathID(r, prefix)
	if id == "" {
		WriteError(w, http.StatusNotFound, "job not found")
		return models.Job{}, false
	}
	job, found := h.registry.Get(id)
	if !found {
		WriteError(w, http.StatusNotFound, "job not found")
		return models.Job{}, false
	}
	return job, true
}
