package session

import (
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/livetv/internal/logger"
)

// LogRenderer writes each view as a structured log line
type LogRenderer struct {
	SessionID string
}

// Render logs the view
func (r LogRenderer) Render(v View) {
	event := logger.Log.Info().
		Str("session_id", r.SessionID).
		Str("state", string(v.State))

	if v.Message != "" {
		event = event.Str("message", v.Message)
	}
	if v.Playlist != nil {
		event = event.
			Str("playlist", v.Playlist.Name).
			Str("playlist_kind", string(v.Playlist.Kind)).
			Int("channel_count", v.Playlist.ChannelCount)
	}
	if v.Channel != nil {
		event = event.
			Int64("channel_id", v.Channel.ID).
			Str("channel", v.Channel.Name)
	}
	if v.NowPlaying != nil {
		event = event.Dict("now_playing", zerolog.Dict().
			Str("title", v.NowPlaying.Title).
			Str("time", v.NowPlaying.TimeRange).
			Float64("progress", v.NowPlaying.Progress))
	} else if v.Channel != nil {
		event = event.Str("now_playing", "no program information")
	}

	event.Msg("Session view updated")
}
