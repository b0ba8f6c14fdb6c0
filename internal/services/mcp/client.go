package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/slidegen/internal/httpclient"
	"github.com/ternarybob/slidegen/internal/models"
)

// ErrJobNotFound is returned when the server does not know a job id
var ErrJobNotFound = errors.New("job not found")

// APIError is a non-2xx reply from the slidegen API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slidegen api: %d %s", e.StatusCode, e.Message)
}

// JobList is the /api/jobs reply
type JobList struct {
	Jobs  []models.Job    `json:"jobs"`
	Count int             `json:"count"`
	Stats models.JobStats `json:"stats"`
}

// Client talks to a running slidegen server over its HTTP API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. apiKey may be empty.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	headers := map[string]string{"Accept": "application/json"}
	if apiKey != "" {
		headers["X-API-Key"] = apiKey
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewClientWithHeaders(timeout, headers),
	}
}

func (c *Client) GenerateOutline(ctx context.Context, req *models.OutlineRequest) (string, error) {
	return c.submit(ctx, "/api/generate-outline", req)
}

func (c *Client) GenerateImage(ctx context.Context, req *models.ImageRequest) (string, error) {
	return c.submit(ctx, "/api/generate-image", req)
}

func (c *Client) GenerateDeck(ctx context.Context, req *models.DeckRequest) (string, error) {
	return c.submit(ctx, "/api/generate-ppt", req)
}

func (c *Client) submit(ctx context.Context, path string, body interface{}) (string, error) {
	var reply struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &reply); err != nil {
		return "", err
	}
	if reply.JobID == "" {
		return "", fmt.Errorf("slidegen api: %s returned no job_id", path)
	}
	return reply.JobID, nil
}

// Job fetches the current snapshot of a job
func (c *Client) Job(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodGet, "/api/job-status/"+url.PathEscape(id), nil, &job); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, err
	}
	return &job, nil
}

// ListJobs lists jobs, optionally filtered by status and type
func (c *Client) ListJobs(ctx context.Context, status, jobType string) (*JobList, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if jobType != "" {
		q.Set("type", jobType)
	}
	path := "/api/jobs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list JobList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// WaitForJob polls until the job reaches done or error, or ctx ends
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration) (*models.Job, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("slidegen api unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s reply: %w", path, err)
	}
	return nil
}
