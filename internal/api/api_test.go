package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/livetv/internal/channel"
	"github.com/stwalsh4118/livetv/internal/db"
	"github.com/stwalsh4118/livetv/internal/dvr"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/models"
	"github.com/stwalsh4118/livetv/internal/playlist"
)

type fakeM3U struct {
	content string
	err     error
}

func (f *fakeM3U) FetchM3U(context.Context) ([]byte, error) {
	return []byte(f.content), f.err
}

type fakeDVRStatus struct {
	configured bool
	state      dvr.BreakerState
}

func (f fakeDVRStatus) Configured() bool               { return f.configured }
func (f fakeDVRStatus) BreakerState() dvr.BreakerState { return f.state }

type fakeManifests struct {
	body []byte
	err  error
	urls []string
}

func (f *fakeManifests) FetchManifest(_ context.Context, streamURL string) ([]byte, error) {
	f.urls = append(f.urls, streamURL)
	return f.body, f.err
}

// testRouterDeps overrides the upstream collaborators of a test router
type testRouterDeps struct {
	status    DVRStatus
	manifests ManifestSource
}

// setupTestDB creates a migrated database in a temp directory
func setupTestDB(t *testing.T) (*db.DB, *db.Repositories, func()) {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	cleanup := func() {
		_ = database.Close()
	}
	return database, db.NewRepositories(database), cleanup
}

// setupTestRouter creates a test router with every API route and a healthy DVR
func setupTestRouter(database *db.DB, repos *db.Repositories, m3u channel.M3USource, source guide.Source) *gin.Engine {
	return setupTestRouterWith(database, repos, m3u, source, testRouterDeps{
		status:    fakeDVRStatus{configured: true, state: dvr.BreakerClosed},
		manifests: &fakeManifests{},
	})
}

func setupTestRouterWith(database *db.DB, repos *db.Repositories, m3u channel.M3USource, source guide.Source, deps testRouterDeps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	apiGroup := router.Group("/api")
	channelService := channel.NewChannelService(repos, m3u)

	SetupStreamRoutes(router, channelService, deps.manifests)
	SetupHealthRoutes(apiGroup, database, deps.status)
	SetupChannelRoutes(apiGroup, channelService)
	SetupPlaylistRoutes(apiGroup, playlist.NewService(repos, nil))
	SetupGuideRoutes(apiGroup, source)

	return router
}

func seedChannel(t *testing.T, repos *db.Repositories, name, tvgID, group string, enabled bool) *models.Channel {
	t.Helper()
	ch := models.NewChannel(name, "http://dvr.local/devices/ANY/channels/"+tvgID+"/hls/master.m3u8?codec=copy&format=hls")
	ch.TvgID = tvgID
	ch.GroupTitle = group
	ch.IsEnabled = enabled
	require.NoError(t, repos.Channels.Create(context.Background(), ch))
	return ch
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthCheck(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "healthy", resp.Database)
	assert.True(t, resp.DVR.Configured)
	assert.Equal(t, "closed", resp.DVR.Breaker)

	tests := []struct {
		name    string
		status  DVRStatus
		breaker string
	}{
		{name: "breaker open", status: fakeDVRStatus{configured: true, state: dvr.BreakerOpen}, breaker: "open"},
		{name: "breaker half open", status: fakeDVRStatus{configured: true, state: dvr.BreakerHalfOpen}, breaker: "half_open"},
		{name: "dvr not configured", status: fakeDVRStatus{}, breaker: ""},
		{name: "no dvr status", status: nil, breaker: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouterWith(database, repos, nil, nil, testRouterDeps{status: tt.status, manifests: &fakeManifests{}})

			w := doJSON(t, router, http.MethodGet, "/api/health", nil)
			assert.Equal(t, http.StatusOK, w.Code)

			var resp HealthResponse
			decode(t, w, &resp)
			assert.Equal(t, "degraded", resp.Status)
			assert.Equal(t, "healthy", resp.Database)
			assert.Equal(t, tt.breaker, resp.DVR.Breaker)
			assert.Contains(t, resp.Details, "dvr_error")
		})
	}

	t.Run("database down", func(t *testing.T) {
		require.NoError(t, database.Close())

		w := doJSON(t, router, http.MethodGet, "/api/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp HealthResponse
		decode(t, w, &resp)
		assert.Equal(t, "unhealthy", resp.Database)
		assert.Contains(t, resp.Details, "database_error")
	})
}

func TestProxyStream(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	ch := seedChannel(t, repos, "ESPN", "espn", "Sports", true)

	t.Run("serves manifest", func(t *testing.T) {
		manifests := &fakeManifests{body: []byte("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nhttp://dvr.local/v.m3u8\n")}
		router := setupTestRouterWith(database, repos, nil, nil, testRouterDeps{manifests: manifests})

		w := doJSON(t, router, http.MethodGet, "/proxy/stream/"+itoa(ch.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/vnd.apple.mpegurl", w.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
		assert.Equal(t, "no-cache", w.Header().Get("Pragma"))
		assert.Equal(t, "0", w.Header().Get("Expires"))
		assert.Equal(t, string(manifests.body), w.Body.String())
		assert.Equal(t, []string{ch.StreamURL}, manifests.urls)
	})

	t.Run("missing channel", func(t *testing.T) {
		router := setupTestRouterWith(database, repos, nil, nil, testRouterDeps{manifests: &fakeManifests{}})

		w := doJSON(t, router, http.MethodGet, "/proxy/stream/9999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Channel not found"}`, w.Body.String())
	})

	t.Run("invalid id", func(t *testing.T) {
		router := setupTestRouterWith(database, repos, nil, nil, testRouterDeps{manifests: &fakeManifests{}})

		w := doJSON(t, router, http.MethodGet, "/proxy/stream/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		manifests := &fakeManifests{err: errors.New("dvr unreachable")}
		router := setupTestRouterWith(database, repos, nil, nil, testRouterDeps{manifests: manifests})

		w := doJSON(t, router, http.MethodGet, "/proxy/stream/"+itoa(ch.ID), nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var resp ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, "stream_failed", resp.Error)
	})
}

func TestGetChannel(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)
	ch := seedChannel(t, repos, "ESPN", "espn", "Sports", true)

	t.Run("found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/channels/"+itoa(ch.ID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp ChannelDetailResponse
		decode(t, w, &resp)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Channel)
		assert.Equal(t, "ESPN", resp.Channel.Name)
		assert.Equal(t, "espn", resp.Channel.TvgID)
	})

	t.Run("not found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/channels/999", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp map[string]interface{}
		decode(t, w, &resp)
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, "Channel not found", resp["error"])
	})

	t.Run("invalid id", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/api/channels/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListChannels_EnabledFilter(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)
	seedChannel(t, repos, "A", "a", "News", true)
	seedChannel(t, repos, "B", "b", "News", false)

	var all ChannelListResponse
	decode(t, doJSON(t, router, http.MethodGet, "/api/channels", nil), &all)
	assert.Len(t, all.Channels, 2)

	var enabled ChannelListResponse
	decode(t, doJSON(t, router, http.MethodGet, "/api/channels?enabled=true", nil), &enabled)
	require.Len(t, enabled.Channels, 1)
	assert.Equal(t, "A", enabled.Channels[0].Name)
}

func TestToggleAndBulkToggle(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)
	a := seedChannel(t, repos, "A", "a", "News", true)
	seedChannel(t, repos, "B", "b", "News", true)

	w := doJSON(t, router, http.MethodPost, "/api/channels/"+itoa(a.ID)+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var toggle ToggleResponse
	decode(t, w, &toggle)
	assert.True(t, toggle.Success)
	assert.Equal(t, a.ID, toggle.ChannelID)
	assert.False(t, toggle.IsEnabled)

	w = doJSON(t, router, http.MethodPost, "/api/channels/999/toggle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/channels/bulk-toggle", map[string]bool{"enable": false})
	require.Equal(t, http.StatusOK, w.Code)
	var bulk map[string]interface{}
	decode(t, w, &bulk)
	assert.Equal(t, true, bulk["success"])
	assert.Equal(t, float64(1), bulk["channels_updated"])
	assert.Equal(t, float64(2), bulk["total_channels"])
	assert.Equal(t, false, bulk["enabled"])
}

func TestGetStats(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)
	seedChannel(t, repos, "A", "a", "News", true)
	seedChannel(t, repos, "B", "b", "Sports", false)
	seedChannel(t, repos, "C", "c", "Sports", true)

	w := doJSON(t, router, http.MethodGet, "/api/channels/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats StatsResponse
	decode(t, w, &stats)
	assert.Equal(t, int64(3), stats.TotalChannels)
	assert.Equal(t, int64(2), stats.EnabledChannels)
	assert.Equal(t, int64(1), stats.DisabledChannels)
	assert.Equal(t, []string{"News", "Sports"}, stats.Groups)
	assert.Equal(t, 2, stats.GroupCount)
}

func TestSearch(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)
	seedChannel(t, repos, "ESPN", "espn", "Sports", true)
	seedChannel(t, repos, "ESPN2", "espn2", "Sports", false)

	var resp ChannelListResponse
	decode(t, doJSON(t, router, http.MethodGet, "/api/search?q=espn", nil), &resp)
	assert.True(t, resp.Success)
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "ESPN", resp.Channels[0].Name)

	var empty ChannelListResponse
	decode(t, doJSON(t, router, http.MethodGet, "/api/search?q=", nil), &empty)
	assert.True(t, empty.Success)
	assert.Empty(t, empty.Channels)
}

func TestSyncChannels(t *testing.T) {
	const m3u = `#EXTM3U
#EXTINF:-1 tvg-id="news.9" tvg-chno="9" group-title="News",News 9
http://dvr.local/devices/ANY/channels/9/stream.mpg
#EXTINF:-1 tvg-id="sports",Sports
http://cdn.example.com/sports.m3u8
`
	t.Run("success", func(t *testing.T) {
		database, repos, cleanup := setupTestDB(t)
		defer cleanup()
		router := setupTestRouter(database, repos, &fakeM3U{content: m3u}, nil)

		w := doJSON(t, router, http.MethodPost, "/api/channels/sync", SyncRequest{})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp map[string]interface{}
		decode(t, w, &resp)
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, float64(2), resp["channels_processed"])
		assert.Equal(t, float64(2), resp["channels_added"])
		assert.Equal(t, float64(0), resp["channels_updated"])
		assert.Equal(t, float64(2), resp["total_channels"])

		w = doJSON(t, router, http.MethodPost, "/api/channels/sync", nil)
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, w, &resp)
		assert.Equal(t, float64(2), resp["channels_updated"])
	})

	t.Run("no dvr configured", func(t *testing.T) {
		database, repos, cleanup := setupTestDB(t)
		defer cleanup()
		router := setupTestRouter(database, repos, nil, nil)

		w := doJSON(t, router, http.MethodPost, "/api/channels/sync", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("dvr failure", func(t *testing.T) {
		database, repos, cleanup := setupTestDB(t)
		defer cleanup()
		router := setupTestRouter(database, repos, &fakeM3U{err: errors.New("connection refused")}, nil)

		w := doJSON(t, router, http.MethodPost, "/api/channels/sync", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestPlaylists_SaveAndList(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)
	a := seedChannel(t, repos, "A", "a", "News", true)
	b := seedChannel(t, repos, "B", "b", "News", true)

	payload := map[string]interface{}{
		"playlists": []map[string]interface{}{
			{
				"id":       1712345678901,
				"name":     "Favorites",
				"channels": []map[string]int64{{"id": b.ID}, {"id": a.ID}},
			},
			{
				"kind": "ephemeral-search",
				"name": "Search Results",
			},
		},
	}
	w := doJSON(t, router, http.MethodPost, "/api/playlists", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var saved SavePlaylistsResponse
	decode(t, w, &saved)
	assert.True(t, saved.Success)
	require.Len(t, saved.Playlists, 1)
	assert.Equal(t, "Favorites", saved.Playlists[0].Name)
	assert.Equal(t, []int64{b.ID, a.ID}, saved.Playlists[0].ChannelIDs())

	w = doJSON(t, router, http.MethodPost, "/api/search-history/add", SearchHistoryRequest{ChannelID: a.ID})
	require.Equal(t, http.StatusOK, w.Code)

	var list PlaylistListResponse
	decode(t, doJSON(t, router, http.MethodGet, "/api/playlists", nil), &list)
	require.Len(t, list.Playlists, 2)
	assert.Equal(t, models.PlaylistKindHistory, list.Playlists[0].Kind)
	assert.Equal(t, "Favorites", list.Playlists[1].Name)

	var channels ChannelListResponse
	w = doJSON(t, router, http.MethodGet, "/api/playlists/"+itoa(saved.Playlists[0].ID)+"/channels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &channels)
	require.Len(t, channels.Channels, 2)
	assert.Equal(t, "B", channels.Channels[0].Name)

	w = doJSON(t, router, http.MethodGet, "/api/playlists/999/channels", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlaylists_Validation(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/playlists", map[string]interface{}{
		"playlists": []map[string]interface{}{{"name": "  "}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/playlists", map[string]interface{}{
		"playlists": []map[string]interface{}{{"name": "Bad", "channels": []map[string]int64{{"id": 404}}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHistory(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()
	router := setupTestRouter(database, repos, nil, nil)
	a := seedChannel(t, repos, "A", "a", "News", true)

	w := doJSON(t, router, http.MethodPost, "/api/search-history/add", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var missing map[string]interface{}
	decode(t, w, &missing)
	assert.Equal(t, "Channel ID is required", missing["error"])

	w = doJSON(t, router, http.MethodPost, "/api/search-history/add", SearchHistoryRequest{ChannelID: 999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/search-history/add", SearchHistoryRequest{ChannelID: a.ID})
	require.Equal(t, http.StatusOK, w.Code)

	var history SearchHistoryResponse
	decode(t, doJSON(t, router, http.MethodGet, "/api/search-history", nil), &history)
	require.NotNil(t, history.Playlist)
	assert.Equal(t, models.PlaylistKindHistory, history.Playlist.Kind)
	assert.Equal(t, []int64{a.ID}, history.Playlist.ChannelIDs())

	w = doJSON(t, router, http.MethodPost, "/api/search-history/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)

	decode(t, doJSON(t, router, http.MethodGet, "/api/search-history", nil), &history)
	assert.Empty(t, history.Playlist.Channels)
}

func TestGuideData(t *testing.T) {
	database, repos, cleanup := setupTestDB(t)
	defer cleanup()

	var got guide.Request
	source := guide.SourceFunc(func(_ context.Context, req guide.Request) (guide.Data, error) {
		got = req
		if len(req.Channels) == 1 && req.Channels[0] == 13 {
			return nil, errors.New("dvr unreachable")
		}
		return guide.Data{
			7: {{Title: "Evening News", StartTime: "2024-01-01T18:00:00Z", EndTime: "2024-01-01T19:00:00Z"}},
		}, nil
	})
	router := setupTestRouter(database, repos, nil, source)

	t.Run("success", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/guide/data", map[string]interface{}{
			"channels":   []int64{7},
			"start_time": "2024-01-01T18:00:00Z",
			"end_time":   "2024-01-02T02:00:00Z",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "max-age=900", w.Header().Get("Cache-Control"))
		assert.NotEmpty(t, w.Header().Get("Expires"))

		var resp map[string][]models.Program
		decode(t, w, &resp)
		require.Len(t, resp["7"], 1)
		assert.Equal(t, "Evening News", resp["7"][0].Title)
		assert.Equal(t, []int64{7}, got.Channels)
	})

	t.Run("failure answers empty object", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/guide/data", map[string]interface{}{"channels": []int64{13}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
		assert.Empty(t, w.Header().Get("Cache-Control"))
	})

	t.Run("no channels", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/api/guide/data", map[string]interface{}{"channels": []int64{}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/guide/data", bytes.NewReader([]byte("{")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, w.Body.String())
	})
}
