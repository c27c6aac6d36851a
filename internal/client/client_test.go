package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 2*time.Second)
}

func TestFetchGuide(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/guide/data", r.URL.Path)

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []interface{}{float64(7)}, body["channels"])
		assert.Equal(t, "2024-01-01T00:00:00Z", body["start_time"])
		assert.Equal(t, "2024-01-01T08:00:00Z", body["end_time"])

		_, _ = w.Write([]byte(`{"7":[{"title":"A","start_time":"2024-01-01T00:00:00Z","end_time":"2024-01-01T01:00:00Z"}]}`))
	})

	data, err := c.FetchGuide(context.Background(), guide.Request{
		Channels:  []int64{7},
		StartTime: start,
		EndTime:   start.Add(8 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, data[7], 1)
	assert.Equal(t, "A", data[7][0].Title)
}

func TestFetchGuide_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchGuide(context.Background(), guide.Request{Channels: []int64{1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestLookupChannel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/channels/5":
			_, _ = w.Write([]byte(`{"success":true,"channel":{"id":5,"name":"Five","logo_url":"http://img/5.png","stream_url":"http://s/5.m3u8","is_enabled":true}}`))
		case "/api/channels/6":
			_, _ = w.Write([]byte(`{"success":false,"error":"Channel not found"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"Channel not found"}`))
		}
	})
	ctx := context.Background()

	ch, err := c.LookupChannel(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Five", ch.Name)
	assert.Equal(t, "http://img/5.png", ch.LogoURL)

	_, err = c.LookupChannel(ctx, 6)
	assert.True(t, IsChannelNotFound(err))

	_, err = c.LookupChannel(ctx, 404)
	assert.True(t, IsChannelNotFound(err))
}

func TestSavePlaylistsSkipsReadOnly(t *testing.T) {
	var got savePlaylistsRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/playlists", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	ch := &models.Channel{ID: 1, Name: "One"}
	err := c.SavePlaylists(context.Background(), []*models.Playlist{
		models.NewHistoryPlaylist([]*models.Channel{ch}),
		{ID: 3, Kind: models.PlaylistKindUser, Name: "Mine", Channels: []*models.Channel{ch}},
		models.NewEphemeralSearchPlaylist(ch),
	})
	require.NoError(t, err)
	require.Len(t, got.Playlists, 1)
	assert.Equal(t, "Mine", got.Playlists[0].Name)
}

func TestListPlaylistsAndSearchHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/playlists":
			_, _ = w.Write([]byte(`{"success":true,"playlists":[{"id":0,"kind":"history","name":"Search History","channels":[{"id":2,"name":"Two"}]},{"id":4,"name":"Mine","channels":[]}]}`))
		case "/api/search-history/add":
			var body searchHistoryRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, int64(2), body.ChannelID)
			_, _ = w.Write([]byte(`{"success":true}`))
		case "/api/search":
			assert.Equal(t, "news 9", r.URL.Query().Get("q"))
			_, _ = w.Write([]byte(`{"success":true,"channels":[{"id":9,"name":"News 9"}]}`))
		}
	})
	ctx := context.Background()

	playlists, err := c.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.True(t, playlists[0].ReadOnly())
	assert.False(t, playlists[1].ReadOnly(), "missing kind is a user playlist")

	require.NoError(t, c.AddSearchHistory(ctx, 2))

	found, err := c.SearchChannels(ctx, "news 9")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(9), found[0].ID)
}

func TestStreamURL(t *testing.T) {
	c := New("http://livetv.local:8080/", time.Second)
	assert.Equal(t, "http://livetv.local:8080/proxy/stream/12", c.StreamURL(&models.Channel{ID: 12}))
}
