package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/slidegen/internal/app"
	"github.com/ternarybob/slidegen/internal/common"
)

func newTestServer(t *testing.T, mutate func(*common.Config)) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	cfg := common.NewDefaultConfig()
	cfg.Storage.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.Storage.Badger.Path = filepath.Join(dir, "badger")
	cfg.Templates.Dir = filepath.Join(dir, "templates")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)

	ts := httptest.NewServer(New(application).Handler())
	t.Cleanup(func() {
		ts.Close()
		application.Close()
	})
	return ts
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func waitStatus(t *testing.T, base, id string, headers map[string]string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.Eventually(t, func() bool {
		var resp *http.Response
		resp, body = doJSON(t, http.MethodGet, base+"/api/job-status/"+id, "", headers)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		status := body["status"]
		return status == "done" || status == "error"
	}, 10*time.Second, 20*time.Millisecond)
	return body
}

func TestEndToEnd_OutlineImageDeck(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/generate-outline", `{"title":"Q3 Review","audience":"board","length":3}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	outlineID := body["job_id"].(string)

	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/generate-image", `{"prompt":"growth chart","size":"64x64"}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	imageID := body["job_id"].(string)

	outline := waitStatus(t, ts.URL, outlineID, nil)
	require.Equal(t, "done", outline["status"])
	image := waitStatus(t, ts.URL, imageID, nil)
	require.Equal(t, "done", image["status"])

	deckBody := `{"outline_id":"` + outlineID + `","images":[{"slide":1,"image_job":"` + imageID + `"}],"template":"dark"}`
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/generate-ppt", deckBody, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	deckID := body["job_id"].(string)

	deck := waitStatus(t, ts.URL, deckID, nil)
	require.Equal(t, "done", deck["status"], deck["error"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/download/"+deckID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasSuffix(body["download_url"].(string), "/"+deckID+"/deck.pdf"))

	res, err := http.Get(ts.URL + "/api/artifacts/" + deckID)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/pdf", res.Header.Get("Content-Type"))

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/download/"+outlineID, "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMockMode(t *testing.T) {
	ts := newTestServer(t, func(cfg *common.Config) {
		cfg.Producers.Mode = "mock"
		cfg.Producers.MockDelay = "10ms"
	})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/generate-image", `{"prompt":"x"}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	id := body["job_id"].(string)

	job := waitStatus(t, ts.URL, id, nil)
	require.Equal(t, "done", job["status"])
	result := job["result"].(map[string]interface{})
	assert.Equal(t, "file:///tmp/mock_images/"+id+".png", result["image_url"])
}

func TestLLMMode(t *testing.T) {
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"m",`+
			`"content":[{"type":"text","text":"{\"slides\":[{\"title\":\"Opening\",\"bullets\":[\"Hello\"]}]}"}],`+
			`"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer model.Close()

	ts := newTestServer(t, func(cfg *common.Config) {
		cfg.Producers.Mode = "llm"
		cfg.LLM.Provider = "claude"
		cfg.LLM.APIKey = "test-key"
		cfg.LLM.BaseURL = model.URL
		cfg.LLM.MaxRetries = 0
	})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/generate-outline", `{"title":"Kickoff","length":3}`, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := waitStatus(t, ts.URL, body["job_id"].(string), nil)
	require.Equal(t, "done", job["status"], job["error"])
	slides := job["result"].(map[string]interface{})["slides"].([]interface{})
	require.Len(t, slides, 1)
	assert.Equal(t, "Opening", slides[0].(map[string]interface{})["title"])
}

func TestAPIKeyGate(t *testing.T) {
	ts := newTestServer(t, func(cfg *common.Config) {
		cfg.Auth.APIKey = "s3cret"
	})

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/jobs", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "error", body["status"])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/jobs", "", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/jobs", "", map[string]string{"X-API-Key": "s3cret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, wsResp)
	assert.Equal(t, http.StatusUnauthorized, wsResp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?api_key=s3cret", nil)
	require.NoError(t, err)
	conn.Close()
}

func TestRoutingEdges(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "/api/nope", body["path"])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/job-status/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/canva/token/alice", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "DELETE, GET", resp.Header.Get("Allow"))

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/generate-outline", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}
