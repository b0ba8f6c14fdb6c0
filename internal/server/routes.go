package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Generation
	mux.HandleFunc("/api/generate-outline", s.app.JobHandler.GenerateOutlineHandler) // POST
	mux.HandleFunc("/api/generate-image", s.app.JobHandler.GenerateImageHandler)     // POST
	mux.HandleFunc("/api/generate-ppt", s.app.JobHandler.GeneratePPTHandler)         // POST

	// API routes - Jobs
	mux.HandleFunc("/api/job-status/", s.app.JobHandler.JobStatusHandler) // GET /{id}
	mux.HandleFunc("/api/download/", s.app.JobHandler.DownloadHandler)    // GET /{id}
	mux.HandleFunc("/api/artifacts/", s.app.JobHandler.ArtifactHandler)   // GET /{id}
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)         // GET ?status=&type=

	// API routes - Canva
	mux.HandleFunc("/api/canva/oauth/start", s.app.CanvaHandler.OAuthStartHandler)
	mux.HandleFunc("/api/canva/oauth/callback", s.app.CanvaHandler.OAuthCallbackHandler)
	mux.HandleFunc("/api/canva/token/", s.handleTokenRoutes) // GET/DELETE /{user_id}
	mux.HandleFunc("/api/proxy/fetch", s.app.CanvaHandler.ProxyFetchHandler) // POST

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleTokenRoutes routes /api/canva/token/{user_id} by method
func (s *Server) handleTokenRoutes(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		http.MethodGet:    s.app.CanvaHandler.TokenHandler,
		http.MethodDelete: s.app.CanvaHandler.DeleteTokenHandler,
	})
}
