package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/common"
	"github.com/ternarybob/slidegen/internal/models"
)

// StatsProvider reports job counts for the health endpoint
type StatsProvider interface {
	Stats() models.JobStats
}

// SubscriberCounter reports live push connections
type SubscriberCounter interface {
	Count() int
}

type APIHandler struct {
	stats       StatsProvider
	subscribers SubscriberCounter
	logger      arbor.ILogger
}

func NewAPIHandler(stats StatsProvider, subscribers SubscriberCounter, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		stats:       stats,
		subscribers: subscribers,
		logger:      logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns liveness plus job and connection counts
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	resp := map[string]interface{}{
		"status":     "ok",
		"goroutines": common.GetGoroutineCount(),
	}
	if h.stats != nil {
		resp["jobs"] = h.stats.Stats()
	}
	if h.subscribers != nil {
		resp["subscribers"] = h.subscribers.Count()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
