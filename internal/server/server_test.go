package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/livetv/internal/config"
	"github.com/stwalsh4118/livetv/internal/db"
	"github.com/stwalsh4118/livetv/internal/dvr"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/middleware"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 7734},
		Logging: config.LoggingConfig{Level: "info"},
	}
	source := guide.SourceFunc(func(context.Context, guide.Request) (guide.Data, error) {
		return guide.Data{}, nil
	})
	unconfigured := dvr.NewClient(dvr.Options{})
	return NewWithSources(cfg, database, Sources{
		M3U:       unconfigured,
		Guide:     source,
		Manifests: unconfigured,
		DVR:       unconfigured,
	})
}

func TestRouter_HealthAndRequestID(t *testing.T) {
	router := setupTestServer(t).Router()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, w.Body.String(), `"dvr":{"configured":false}`)
}

func TestRouter_StreamProxyMissingChannel(t *testing.T) {
	router := setupTestServer(t).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/proxy/stream/99", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Channel not found"}`, w.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	router := setupTestServer(t).Router()

	// Generate one counted request first
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/channels", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "livetv_http_requests_total"))
}

func TestRouter_SyncWithoutDVR(t *testing.T) {
	router := setupTestServer(t).Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/channels/sync", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestShutdown_NotStarted(t *testing.T) {
	assert.NoError(t, setupTestServer(t).Shutdown(context.Background()))
}
