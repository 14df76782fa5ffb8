package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/file-container/internal/conf"
	"github.com/lk2023060901/file-container/internal/container/service"
	apperrors "github.com/lk2023060901/file-container/internal/pkg/errors"
	"github.com/lk2023060901/file-container/internal/pkg/logger"
	"github.com/lk2023060901/file-container/internal/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPServer(t *testing.T, webRoot string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &conf.Config{Server: conf.ServerConfig{Host: "127.0.0.1", Port: 3000, WebRoot: webRoot}}
	svc := service.NewContainerService(nil, nil, nil, nil)
	return NewHTTPServer(cfg, logger.NewNop(), svc).Handler()
}

func TestHealth(t *testing.T) {
	h := newTestHTTPServer(t, "")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestNoRoute(t *testing.T) {
	h := newTestHTTPServer(t, "")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "endpoint not found", body.Error)
	assert.Equal(t, apperrors.ErrNotFound, body.Code)
}

func TestIndexPage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>files</h1>"), 0o644))
	h := newTestHTTPServer(t, root)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>files</h1>")

	// Without a web root there is no index route.
	h = newTestHTTPServer(t, "")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
