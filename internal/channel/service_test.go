package channel

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/livetv/internal/db"
	"github.com/stwalsh4118/livetv/internal/models"
)

type fakeSource struct {
	content []byte
	err     error
}

func (f *fakeSource) FetchM3U(ctx context.Context) ([]byte, error) {
	return f.content, f.err
}

// setupTestService creates a service with a test database
func setupTestService(t *testing.T, source M3USource) (*ChannelService, *db.Repositories, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(tmpFile)
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)

	migrationsPath := "file://../../migrations"
	err = db.RunMigrations(sqlDB, migrationsPath)
	require.NoError(t, err)

	repos := db.NewRepositories(database)
	service := NewChannelService(repos, source)

	cleanup := func() {
		_ = database.Close()
	}

	return service, repos, cleanup
}

func TestGetByID_NotFound(t *testing.T) {
	service, _, cleanup := setupTestService(t, nil)
	defer cleanup()

	_, err := service.GetByID(context.Background(), 404)
	assert.True(t, IsChannelNotFound(err))
}

func TestToggle(t *testing.T) {
	service, repos, cleanup := setupTestService(t, nil)
	defer cleanup()
	ctx := context.Background()

	ch := models.NewChannel("Toggle Me", "http://example.com/a.m3u8")
	require.NoError(t, repos.Channels.Create(ctx, ch))

	enabled, err := service.Toggle(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, enabled)

	enabled, err = service.Toggle(ctx, ch.ID)
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = service.Toggle(ctx, 999)
	assert.True(t, IsChannelNotFound(err))
}

func TestSearch_BlankQuery(t *testing.T) {
	service, repos, cleanup := setupTestService(t, nil)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repos.Channels.Create(ctx, models.NewChannel("Any", "http://example.com/a.m3u8")))

	results, err := service.Search(ctx, "   ")
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	results, err = service.Search(ctx, " an ")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSync_AddsThenUpdates(t *testing.T) {
	source := &fakeSource{content: []byte(sampleM3U)}
	service, repos, cleanup := setupTestService(t, source)
	defer cleanup()
	ctx := context.Background()

	result, err := service.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 3, result.Total)

	news, err := repos.Channels.FindByTvgID(ctx, "news.9")
	require.NoError(t, err)
	assert.True(t, news.IsEnabled)

	// A disabled channel stays disabled across syncs
	_, err = service.Toggle(ctx, news.ID)
	require.NoError(t, err)

	source.content = []byte(`#EXTM3U
#EXTINF:-1 tvg-id="news.9" tvg-logo="http://img/new-logo.png",News Nine
http://cdn.example.com/news9.m3u8
#EXTINF:-1 tvg-chno="12",Movies
http://cdn.example.com/movies.m3u8
`)
	result, err = service.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 3, result.Total)

	updated, err := repos.Channels.GetByID(ctx, news.ID)
	require.NoError(t, err)
	assert.Equal(t, "News Nine", updated.Name)
	assert.Equal(t, "http://img/new-logo.png", updated.LogoURL)
	assert.False(t, updated.IsEnabled)
}

func TestSync_ReplaceExisting(t *testing.T) {
	source := &fakeSource{content: []byte(sampleM3U)}
	service, _, cleanup := setupTestService(t, source)
	defer cleanup()
	ctx := context.Background()

	_, err := service.Sync(ctx, false)
	require.NoError(t, err)

	source.content = []byte("#EXTINF:-1,Only\nhttp://cdn.example.com/only.m3u8\n")
	result, err := service.Sync(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Total)
}

func TestSync_Errors(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		service, _, cleanup := setupTestService(t, nil)
		defer cleanup()
		_, err := service.Sync(context.Background(), false)
		assert.ErrorIs(t, err, ErrSyncUnavailable)
	})

	t.Run("fetch failure", func(t *testing.T) {
		service, _, cleanup := setupTestService(t, &fakeSource{err: errors.New("connection refused")})
		defer cleanup()
		_, err := service.Sync(context.Background(), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("empty list", func(t *testing.T) {
		service, _, cleanup := setupTestService(t, &fakeSource{content: []byte("#EXTM3U\n")})
		defer cleanup()
		_, err := service.Sync(context.Background(), false)
		assert.True(t, IsNoChannelsFound(err))
	})
}

func TestSetAllEnabled(t *testing.T) {
	service, repos, cleanup := setupTestService(t, nil)
	defer cleanup()
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, repos.Channels.Create(ctx, models.NewChannel(name, "http://example.com/"+name+".m3u8")))
	}

	result, err := service.SetAllEnabled(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Updated)
	assert.Equal(t, int64(3), result.Total)
	assert.False(t, result.Enabled)

	result, err = service.SetAllEnabled(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Updated)

	enabled, err := service.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)
}
