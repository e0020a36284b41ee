package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/purview-router/internal/api"
	"github.com/agentoven/purview-router/internal/api/handlers"
	"github.com/agentoven/purview-router/internal/config"
	"github.com/agentoven/purview-router/pkg/models"
)

type stubService struct{}

func (stubService) ProcessQuery(_ context.Context, q, tid string) (*models.QueryResult, error) {
	return &models.QueryResult{Success: true, Response: "routed", Annotations: []models.Annotation{}}, nil
}

func (stubService) ProcessQueryDirect(_ context.Context, q, agent, tid string) (*models.QueryResult, error) {
	return &models.QueryResult{Success: true, Response: agent}, nil
}

func (stubService) AnalyzePurview(_ context.Context, q string) (*models.AnalyzeResult, error) {
	return &models.AnalyzeResult{Success: true}, nil
}

func (stubService) GetThreadMessages(_ context.Context, tid string) (*models.ThreadMessagesResult, error) {
	return &models.ThreadMessagesResult{Success: true, ThreadID: tid, Messages: []models.ThreadMessage{}}, nil
}

func (stubService) Health() models.ServiceHealth { return models.ServiceHealth{} }

type stubGenie struct{}

func (stubGenie) Ask(context.Context, string) (*models.GenieResult, error) {
	return &models.GenieResult{Status: models.StatusSuccess}, nil
}

func (stubGenie) Configured() bool { return true }

func newRouter(cfg *config.Config) http.Handler {
	return api.NewRouter(cfg, handlers.New(stubService{}, stubGenie{}, cfg))
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RoutesWithoutAuth(t *testing.T) {
	r := newRouter(&config.Config{Version: "test"})

	rec := serve(r, http.MethodPost, "/api/route", `{"query":"blog"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"routed"`)

	rec = serve(r, http.MethodGet, "/api/thread/thread_1/messages", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"thread_1"`)

	rec = serve(r, http.MethodGet, "/version", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_APIKeyEnforced(t *testing.T) {
	r := newRouter(&config.Config{Auth: config.AuthConfig{APIKeys: []string{"secret"}}})

	rec := serve(r, http.MethodPost, "/api/route", `{"query":"blog"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(r, http.MethodPost, "/api/route", `{"query":"blog"}`, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(r, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestRouter_Metrics(t *testing.T) {
	r := newRouter(&config.Config{Auth: config.AuthConfig{APIKeys: []string{"secret"}}})

	rec := serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_ServesUIWithFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	r := newRouter(&config.Config{UIDir: dir})

	rec := serve(r, http.MethodGet, "/app.js", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")

	rec = serve(r, http.MethodGet, "/chat/history", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "app")

	rec = serve(r, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
