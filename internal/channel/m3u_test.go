package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleM3U = `#EXTM3U
#EXTINF:-1 channel-id="9" tvg-id="news.9" tvg-chno="9" tvg-name="NEWS9" tvg-logo="http://img/news.png" group-title="News, Local",News 9
http://192.168.1.10:8089/devices/ANY/channels/9/stream.mpg?format=ts

#EXTINF:-1 tvg-id="sports" group-title="Sports",Sports, Live & "Extra"
http://cdn.example.com/sports.m3u8
#EXTINF:-1,Orphan without url
#EXTVLCOPT:network-caching=1000
#EXTINF:-1 tvg-chno="12",Movies
http://cdn.example.com/movies.m3u8
`

func TestParseM3U(t *testing.T) {
	entries, err := ParseM3U([]byte(sampleM3U))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	news := entries[0]
	assert.Equal(t, "News 9", news.Name)
	assert.Equal(t, "news.9", news.TvgID)
	assert.Equal(t, "9", news.ChannelNumber)
	assert.Equal(t, "http://img/news.png", news.LogoURL)
	assert.Equal(t, "News, Local", news.GroupTitle)
	assert.Equal(t, "NEWS9", news.Attributes["tvg-name"])
	assert.Equal(t, "9", news.Attributes["channel-id"])
	assert.Contains(t, news.StreamURL, "format=hls")
	assert.Contains(t, news.StreamURL, "codec=copy")

	sports := entries[1]
	assert.Equal(t, `Sports, Live & "Extra"`, sports.Name)
	assert.Equal(t, "http://cdn.example.com/sports.m3u8", sports.StreamURL)

	// The orphan EXTINF is replaced by the next one before any URL appears
	assert.Equal(t, "Movies", entries[2].Name)
	assert.Equal(t, "12", entries[2].ChannelNumber)
	assert.Empty(t, entries[2].TvgID)
}

func TestParseM3U_Empty(t *testing.T) {
	entries, err := ParseM3U([]byte("#EXTM3U\n"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNormalizeStreamURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "channels dvr device stream",
			in:   "http://channels.local:8089/devices/ANY/channels/5/stream.mpg?format=ts",
			want: "http://channels.local:8089/devices/ANY/channels/5/stream.mpg?codec=copy&format=hls",
		},
		{
			name: "non dvr url untouched",
			in:   "http://cdn.example.com/live.m3u8?token=abc",
			want: "http://cdn.example.com/live.m3u8?token=abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStreamURL(tt.in))
		})
	}
}
