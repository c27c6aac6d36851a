package session

import (
	"time"

	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/models"
)

// State is the visible playback state of a session
type State string

const (
	// StateNoChannel shows the "no channel selected" placeholder
	StateNoChannel State = "no-channel"
	// StateLoading means a stream load was requested
	StateLoading State = "loading"
	// StateLive means the stream is playing
	StateLive State = "live"
	// StateStalled means the stream stopped advancing
	StateStalled State = "stalled"
	// StateError means the stream failed to load
	StateError State = "error"
	// StateChannelUnavailable means a requested channel could not be found
	StateChannelUnavailable State = "channel-unavailable"
)

// MessageChannelUnavailable is shown for StateChannelUnavailable
const MessageChannelUnavailable = "Channel not available"

// PlaylistSummary describes a playlist in the view
type PlaylistSummary struct {
	Key          string
	Name         string
	Kind         models.PlaylistKind
	ReadOnly     bool
	ChannelCount int
}

// ChannelEntry is one row of the active playlist's channel list
type ChannelEntry struct {
	ID       int64
	Name     string
	LogoURL  string
	Program  string
	Selected bool
}

// NowPlaying describes the current program of the active channel
type NowPlaying struct {
	Title       string
	Episode     string
	Description string
	TimeRange   string
	Progress    float64
}

// View is a snapshot of everything a renderer displays
type View struct {
	State     State
	Message   string
	Playlists []PlaylistSummary
	Playlist  *PlaylistSummary
	Channel   *ChannelEntry
	// NowPlaying is nil when there is no program information
	NowPlaying *NowPlaying
	Channels   []ChannelEntry
	RenderedAt time.Time
}

// Renderer receives a view after every state change. Render is called with
// the controller lock held and must not call back into the controller.
type Renderer interface {
	Render(View)
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(View)

// Render calls f(v)
func (f RendererFunc) Render(v View) {
	f(v)
}

func summarize(p *models.Playlist) PlaylistSummary {
	return PlaylistSummary{
		Key:          p.Key(),
		Name:         p.Name,
		Kind:         p.EffectiveKind(),
		ReadOnly:     p.ReadOnly(),
		ChannelCount: len(p.Channels),
	}
}

// buildView computes the view from the session state and the guide cache at now
func (c *Controller) buildView(now time.Time) View {
	v := View{
		State:      c.state,
		Message:    c.message,
		Playlists:  make([]PlaylistSummary, 0, len(c.playlists)),
		RenderedAt: now,
	}

	for _, p := range c.playlists {
		v.Playlists = append(v.Playlists, summarize(p))
	}

	cache := c.refresher.Cache()

	if c.active != nil {
		s := summarize(c.active)
		v.Playlist = &s
		v.Channels = make([]ChannelEntry, 0, len(c.active.Channels))
		for _, ch := range c.active.Channels {
			entry := ChannelEntry{
				ID:       ch.ID,
				Name:     ch.Name,
				LogoURL:  ch.LogoURL,
				Selected: c.channel != nil && c.channel.ID == ch.ID,
			}
			if p, ok := guide.FindCurrent(cache.Programs(ch.ID), now); ok {
				entry.Program = p.DisplayTitle()
			}
			v.Channels = append(v.Channels, entry)
		}
	}

	if c.channel != nil {
		v.Channel = &ChannelEntry{
			ID:       c.channel.ID,
			Name:     c.channel.Name,
			LogoURL:  c.channel.LogoURL,
			Selected: true,
		}
		if p, ok := guide.FindCurrent(cache.Programs(c.channel.ID), now); ok {
			v.Channel.Program = p.DisplayTitle()
			v.NowPlaying = &NowPlaying{
				Title:       p.DisplayTitle(),
				Episode:     p.Episode,
				Description: p.Description,
				TimeRange:   guide.FormatTimeRange(p, c.location),
				Progress:    guide.Progress(p, now),
			}
		}
	}

	return v
}
