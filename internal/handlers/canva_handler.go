package handlers

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/interfaces"
	"github.com/ternarybob/slidegen/internal/services/canva"
)

var (
	connectedPage = template.Must(template.New("connected").Parse(
		`<html><body><h3>Canva connected for {{.}}. You can close this tab.</h3></body></html>`))
	failedPage = template.Must(template.New("failed").Parse(
		`<html><body><h3>Canva connection failed: {{.}}</h3></body></html>`))
)

// CanvaHandler serves the OAuth relay and the asset proxy
type CanvaHandler struct {
	oauth  *canva.OAuthService
	proxy  *canva.Proxy
	logger arbor.ILogger
}

func NewCanvaHandler(oauth *canva.OAuthService, proxy *canva.Proxy, logger arbor.ILogger) *CanvaHandler {
	return &CanvaHandler{oauth: oauth, proxy: proxy, logger: logger}
}

// OAuthStartHandler redirects to the Canva authorize page
// GET /api/canva/oauth/start?user_id=
func (h *CanvaHandler) OAuthStartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	target, err := h.oauth.AuthCodeURL(r.URL.Query().Get("user_id"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// OAuthCallbackHandler exchanges the code and stores the token under state
// GET /api/canva/oauth/callback?code=&state=
func (h *CanvaHandler) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()

	token, err := h.oauth.Exchange(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, canva.ErrMissingCode):
			status = http.StatusBadRequest
		case errors.Is(err, canva.ErrNotConfigured):
			status = http.StatusInternalServerError
		default:
			h.logger.Warn().Err(err).Msg("Canva token exchange failed")
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		failedPage.Execute(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	connectedPage.Execute(w, token.UserID)
}

// TokenHandler returns the stored token for a user
// GET /api/canva/token/{user_id}
func (h *CanvaHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	userID := PathID(r, "/api/canva/token/")
	if userID == "" {
		WriteError(w, http.StatusNotFound, "token not found")
		return
	}

	token, err := h.oauth.Token(r.Context(), userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrTokenNotFound) {
			WriteError(w, http.StatusNotFound, "token not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to load Canva token")
		WriteError(w, http.StatusInternalServerError, "failed to load token")
		return
	}
	WriteJSON(w, http.StatusOK, token)
}

// DeleteTokenHandler removes the stored token for a user
// DELETE /api/canva/token/{user_id}
func (h *CanvaHandler) DeleteTokenHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	userID := PathID(r, "/api/canva/token/")
	if userID == "" {
		WriteError(w, http.StatusNotFound, "token not found")
		return
	}
	if err := h.oauth.Disconnect(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to delete Canva token")
		WriteError(w, http.StatusInternalServerError, "failed to delete token")
		return
	}
	WriteSuccess(w, "token deleted")
}

type proxyRequest struct {
	URL string `json:"url"`
}

// ProxyFetchHandler relays an allow-listed GET
// POST /api/proxy/fetch {url}
func (h *CanvaHandler) ProxyFetchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req proxyRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.proxy.Fetch(r.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, canva.ErrInvalidURL):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, canva.ErrHostNotAllowed):
			WriteError(w, http.StatusForbidden, "host not allowed")
		default:
			WriteError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(res.StatusCode)
	w.Write(res.Body)
}
