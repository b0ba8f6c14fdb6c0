package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/jobs"
	"github.com/ternarybob/slidegen/internal/models"
	"github.com/ternarybob/slidegen/internal/services/events"
	"github.com/ternarybob/slidegen/internal/services/producers"
	"github.com/ternarybob/slidegen/internal/storage/local"
	"github.com/ternarybob/slidegen/internal/worker"
)

type fixture struct {
	registry *jobs.Registry
	runner   *jobs.Runner
	hub      *events.Hub
	store    *local.ArtifactStore
	jobs     *JobHandler
	ws       *WebSocketHandler
	api      *APIHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := arbor.NewLogger()

	store, err := local.NewArtifactStore(t.TempDir(), logger)
	require.NoError(t, err)

	registry := jobs.NewRegistry(logger)
	hub := events.NewHub(time.Second, logger)
	runner := jobs.NewRunner(registry, store, hub, worker.NewWorkerPool(logger, 2), logger, jobs.WithTimeout(10*time.Second))
	runner.RegisterProducer(models.JobTypeOutline, producers.NewOutlineProducer(logger))
	runner.RegisterProducer(models.JobTypeImage, producers.NewImageProducer(t.TempDir(), logger))
	runner.RegisterProducer(models.JobTypeDeck, producers.NewMockProducer(models.JobTypeDeck, 0, logger))
	runner.Start()
	t.Cleanup(func() {
		runner.Stop()
		hub.Close()
	})

	return &fixture{
		registry: registry,
		runner:   runner,
		hub:      hub,
		store:    store,
		jobs:     NewJobHandler(runner, registry, store, logger),
		ws:       NewWebSocketHandler(hub, nil, logger),
		api:      NewAPIHandler(registry, hub, logger),
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func get(handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (f *fixture) waitTerminal(t *testing.T, id string) models.Job {
	t.Helper()
	var job models.Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = f.registry.Get(id)
		return ok && job.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestGenerateOutline(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.jobs.GenerateOutlineHandler, "/api/generate-outline", `{"title":"Q3 Review","length":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "queued", body["status"])
	id, _ := body["job_id"].(string)
	require.NotEmpty(t, id)

	f.waitTerminal(t, id)

	rec = get(f.jobs.JobStatusHandler, "/api/job-status/"+id)
	require.Equal(t, http.StatusOK, rec.Code)

	var job struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
		Result struct {
			Slides []models.Slide `json:"slides"`
		} `json:"result"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, id, job.JobID)
	assert.Equal(t, "done", job.Status)
	assert.Empty(t, job.Error)
	require.Len(t, job.Result.Slides, 3)
	for _, s := range job.Result.Slides {
		assert.NotEmpty(t, s.Title)
		assert.NotEmpty(t, s.Bullets)
	}

	// terminal reads are stable
	again := get(f.jobs.JobStatusHandler, "/api/job-status/"+id)
	assert.Equal(t, rec.Body.String(), again.Body.String())
}

func TestGenerate_SubmissionErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		want    string
	}{
		{"missing title", f.jobs.GenerateOutlineHandler, `{"audience":"execs"}`, "title"},
		{"empty body", f.jobs.GenerateOutlineHandler, ``, "empty"},
		{"bad json", f.jobs.GenerateImageHandler, `{"prompt":`, "invalid JSON"},
		{"missing prompt", f.jobs.GenerateImageHandler, `{"size":"10x10"}`, "prompt"},
		{"missing outline_id", f.jobs.GeneratePPTHandler, `{"images":[]}`, "outline_id"},
		{"bad image ref", f.jobs.GeneratePPTHandler, `{"outline_id":"x","images":[{"slide":0}]}`, "images[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, tt.handler, "/api/x", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Contains(t, body["error"], tt.want)
		})
	}

	assert.Empty(t, f.registry.List(models.JobFilter{}))
}

func TestGenerate_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := get(f.jobs.GenerateOutlineHandler, "/api/generate-outline")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestJobStatus_NotFound(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/job-status/nope", "/api/job-status/", "/api/job-status/a/b"} {
		rec := get(f.jobs.JobStatusHandler, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestImageJob_InvalidSizeEndsInError(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.jobs.GenerateImageHandler, "/api/generate-image", `{"prompt":"x","size":"huge"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode(t, rec)["job_id"].(string)

	job := f.waitTerminal(t, id)
	assert.Equal(t, models.JobStatusError, job.Status)
	assert.NotEmpty(t, job.Error)
	assert.Nil(t, job.Result)

	rec = get(f.jobs.DownloadHandler, "/api/download/"+id)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDownloadAndArtifact(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.jobs.GenerateImageHandler, "/api/generate-image", `{"prompt":"a lighthouse","size":"32x16"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode(t, rec)["job_id"].(string)
	job := f.waitTerminal(t, id)
	require.Equal(t, models.JobStatusDone, job.Status)

	rec = get(f.jobs.DownloadHandler, "/api/download/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, job.Result.ImageURL, body["download_url"])
	assert.True(t, strings.HasPrefix(body["download_url"].(string), "file://"))

	rec = get(f.jobs.ArtifactHandler, "/api/artifacts/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	assert.Equal(t, http.StatusNotFound, get(f.jobs.DownloadHandler, "/api/download/unknown").Code)
	assert.Equal(t, http.StatusNotFound, get(f.jobs.ArtifactHandler, "/api/artifacts/unknown").Code)
}

func TestDownload_OutlineHasNoArtifact(t *testing.T) {
	f := newFixture(t)

	rec := postJSON(t, f.jobs.GenerateOutlineHandler, "/api/generate-outline", `{"title":"T"}`)
	id := decode(t, rec)["job_id"].(string)
	f.waitTerminal(t, id)

	rec = get(f.jobs.DownloadHandler, "/api/download/"+id)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "done")
}

func TestListJobs(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{"title":"A"}`, `{"title":"B"}`} {
		rec := postJSON(t, f.jobs.GenerateOutlineHandler, "/api/generate-outline", body)
		f.waitTerminal(t, decode(t, rec)["job_id"].(string))
	}
	rec := postJSON(t, f.jobs.GenerateImageHandler, "/api/generate-image", `{"prompt":"p","size":"bad"}`)
	f.waitTerminal(t, decode(t, rec)["job_id"].(string))

	rec = get(f.jobs.ListJobsHandler, "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["count"])
	stats := body["stats"].(map[string]interface{})
	assert.EqualValues(t, 2, stats["done"])
	assert.EqualValues(t, 1, stats["error"])

	rec = get(f.jobs.ListJobsHandler, "/api/jobs?type=outline&status=done")
	assert.EqualValues(t, 2, decode(t, rec)["count"])

	assert.Equal(t, http.StatusBadRequest, get(f.jobs.ListJobsHandler, "/api/jobs?status=weird").Code)
	assert.Equal(t, http.StatusBadRequest, get(f.jobs.ListJobsHandler, "/api/jobs?type=video").Code)
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t)

	rec := get(f.api.HealthHandler, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["subscribers"])
	assert.Contains(t, body, "jobs")

	rec = get(f.api.VersionHandler, "/api/version")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "version")

	rec = get(f.api.NotFoundHandler, "/api/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebSocket_ReceivesJobUpdatesInOrder(t *testing.T) {
	f := newFixture(t)

	server := httptest.NewServer(http.HandlerFunc(f.ws.HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	id, err := f.runner.Submit(context.Background(), models.JobTypeOutline, &models.OutlineRequest{Title: "Q3 Review", Length: 3})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var statuses []string
	for len(statuses) < 2 {
		var event models.JobUpdateEvent
		require.NoError(t, conn.ReadJSON(&event))
		if event.JobID != id {
			continue
		}
		assert.Equal(t, models.EventTypeJobUpdate, event.Type)
		statuses = append(statuses, string(event.Status))
		if event.Status == models.JobStatusDone {
			require.NotNil(t, event.Result)
			assert.Len(t, event.Result.Slides, 3)
		}
	}
	assert.Equal(t, []string{"running", "done"}, statuses)

	conn.Close()
	require.Eventually(t, func() bool { return f.hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	hub := events.NewHub(time.Second, arbor.NewLogger())
	defer hub.Close()
	h := NewWebSocketHandler(hub, []string{"http://localhost:3000/"}, arbor.NewLogger())

	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{"http://localhost:3000"}})
	require.NoError(t, err)
	conn.Close()
}
