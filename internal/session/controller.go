// Package session implements the playback session controller: it owns the
// active playlist and channel, drives stream loads and keeps the now-playing
// view in line with the guide cache.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/metrics"
	"github.com/stwalsh4118/livetv/internal/models"
	"github.com/stwalsh4118/livetv/internal/playback"
)

const (
	// DefaultDisplayInterval is how often the view is re-rendered from the cache
	DefaultDisplayInterval = 30 * time.Second

	// DefaultRefreshInterval is how often the guide is refetched unconditionally
	DefaultRefreshInterval = 15 * time.Minute
)

// Player loads streams. Load must tear down any previous stream before returning.
type Player interface {
	Load(ctx context.Context, streamURL string) error
	Stop()
	Events() <-chan playback.Event
}

// ChannelLookup fetches a single channel record by id
type ChannelLookup interface {
	LookupChannel(ctx context.Context, id int64) (*models.Channel, error)
}

// RecentStore records recently watched channels
type RecentStore interface {
	AddRecent(ch *models.Channel) error
}

// SelectionStore remembers the selected playlist across sessions
type SelectionStore interface {
	SelectedPlaylist() (string, error)
	SetSelectedPlaylist(name string) error
}

// PlaylistStore loads and bulk-saves playlists
type PlaylistStore interface {
	ListPlaylists(ctx context.Context) ([]*models.Playlist, error)
	SavePlaylists(ctx context.Context, playlists []*models.Playlist) error
}

// SearchHistory records channels reached through search or a deep link
type SearchHistory interface {
	AddSearchHistory(ctx context.Context, channelID int64) error
}

// Deps are the controller's collaborators. Refresher and Player are required;
// the rest may be nil.
type Deps struct {
	Refresher *guide.Refresher
	Player    Player
	Lookup    ChannelLookup
	Recent    RecentStore
	Selection SelectionStore
	Playlists PlaylistStore
	History   SearchHistory
	Renderer  Renderer

	// StreamURL maps a channel to the URL the player loads. Defaults to the channel's own stream URL.
	StreamURL func(*models.Channel) string
}

// Options configures a Controller
type Options struct {
	DisplayInterval time.Duration
	RefreshInterval time.Duration
	Location        *time.Location
	Clock           clockwork.Clock
}

// Controller is the state of one playback session. All handlers are
// serialized by a single lock; guide fetches run without it.
type Controller struct {
	refresher *guide.Refresher
	player    Player
	lookup    ChannelLookup
	recent    RecentStore
	selection SelectionStore
	store     PlaylistStore
	history   SearchHistory
	renderer  Renderer
	streamURL func(*models.Channel) string

	displayInterval time.Duration
	refreshInterval time.Duration
	location        *time.Location
	clock           clockwork.Clock

	mu        sync.Mutex
	playlists []*models.Playlist
	active    *models.Playlist
	channel   *models.Channel
	state     State
	message   string
}

// NewController creates a session controller with no playlist selected
func NewController(deps Deps, opts Options) *Controller {
	if opts.DisplayInterval <= 0 {
		opts.DisplayInterval = DefaultDisplayInterval
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if deps.Renderer == nil {
		deps.Renderer = RendererFunc(func(View) {})
	}
	if deps.StreamURL == nil {
		deps.StreamURL = func(ch *models.Channel) string { return ch.StreamURL }
	}

	return &Controller{
		refresher:       deps.Refresher,
		player:          deps.Player,
		lookup:          deps.Lookup,
		recent:          deps.Recent,
		selection:       deps.Selection,
		store:           deps.Playlists,
		history:         deps.History,
		renderer:        deps.Renderer,
		streamURL:       deps.StreamURL,
		displayInterval: opts.DisplayInterval,
		refreshInterval: opts.RefreshInterval,
		location:        opts.Location,
		clock:           opts.Clock,
		state:           StateNoChannel,
	}
}

// View returns the current view
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buildView(c.clock.Now())
}

// Playlists returns the known playlists, synthesized ones first
func (c *Controller) Playlists() []*models.Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.Playlist(nil), c.playlists...)
}

// SetPlaylists replaces the known playlists. An ephemeral search playlist is kept in front.
func (c *Controller) SetPlaylists(playlists []*models.Playlist) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPlaylistsLocked(playlists)
	c.renderLocked()
}

// LoadPlaylists fetches the playlists from the playlist store
func (c *Controller) LoadPlaylists(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	playlists, err := c.store.ListPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("failed to load playlists: %w", err)
	}
	c.SetPlaylists(playlists)
	return nil
}

// SavePlaylists bulk-saves the user playlists. Read-only playlists are never sent.
func (c *Controller) SavePlaylists(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	user := make([]*models.Playlist, 0, len(c.playlists))
	for _, p := range c.playlists {
		if !p.ReadOnly() {
			user = append(user, p)
		}
	}
	c.mu.Unlock()

	if err := c.store.SavePlaylists(ctx, user); err != nil {
		return fmt.Errorf("failed to save playlists: %w", err)
	}
	return nil
}

// SelectPlaylist stops playback, makes p the active channel set, remembers
// the choice and refreshes the guide for the new channels
func (c *Controller) SelectPlaylist(ctx context.Context, p *models.Playlist) {
	if p == nil {
		return
	}

	c.mu.Lock()
	c.switchPlaylistLocked(p)
	ids := p.ChannelIDs()
	c.renderLocked()
	c.mu.Unlock()

	c.refresh(ctx, ids)
}

// SelectChannel loads ch's stream and recomputes the now-playing view
func (c *Controller) SelectChannel(ctx context.Context, ch *models.Channel) error {
	if ch == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectChannelLocked(ctx, ch)
}

// SelectChannelByID selects a channel from the known playlists, switching
// playlist if needed. A channel in no playlist is looked up and placed in an
// ephemeral search playlist. A failed lookup leaves the session in
// StateChannelUnavailable and returns ErrChannelUnavailable.
func (c *Controller) SelectChannelByID(ctx context.Context, id int64) error {
	c.mu.Lock()
	if p, ch, ok := c.findLocked(id); ok {
		var ids []int64
		if p != c.active {
			c.switchPlaylistLocked(p)
			ids = p.ChannelIDs()
		}
		err := c.selectChannelLocked(ctx, ch)
		c.mu.Unlock()
		c.refresh(ctx, ids)
		return err
	}
	c.mu.Unlock()

	ch, err := c.lookupChannel(ctx, id)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Int64("channel_id", id).
			Msg("Requested channel is not available")

		c.mu.Lock()
		c.player.Stop()
		c.channel = nil
		c.state = StateChannelUnavailable
		c.message = MessageChannelUnavailable
		c.renderLocked()
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrChannelUnavailable, id)
	}

	if c.history != nil {
		if err := c.history.AddSearchHistory(ctx, ch.ID); err != nil {
			logger.Log.Warn().
				Err(err).
				Int64("channel_id", ch.ID).
				Msg("Failed to record search history")
		}
	}

	c.mu.Lock()
	ephemeral := models.NewEphemeralSearchPlaylist(ch)
	c.setPlaylistsLocked(append([]*models.Playlist{ephemeral}, c.withoutEphemeral()...))
	c.switchPlaylistLocked(ephemeral)
	err = c.selectChannelLocked(ctx, ch)
	c.mu.Unlock()

	c.refresh(ctx, ephemeral.ChannelIDs())
	return err
}

// RestoreSelection selects the remembered playlist, or the first one
func (c *Controller) RestoreSelection(ctx context.Context) error {
	name := ""
	if c.selection != nil {
		saved, err := c.selection.SelectedPlaylist()
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to read remembered playlist")
		}
		name = saved
	}

	c.mu.Lock()
	var target *models.Playlist
	for _, p := range c.playlists {
		if name != "" && p.Name == name {
			target = p
			break
		}
	}
	if target == nil && len(c.playlists) > 0 {
		target = c.playlists[0]
	}
	if target == nil {
		c.renderLocked()
	}
	c.mu.Unlock()

	if target == nil {
		return ErrNoPlaylists
	}
	c.SelectPlaylist(ctx, target)
	return nil
}

// Tick re-renders from the cache. When the active channel has no current
// program and the refresh cooldown has elapsed it also refreshes the guide.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	now := c.clock.Now()
	view := c.buildView(now)
	c.renderer.Render(view)

	var ids []int64
	if c.channel != nil && view.NowPlaying == nil && c.refresher.ShouldRefreshOnDemand(now) && c.active != nil {
		ids = c.active.ChannelIDs()
	}
	c.mu.Unlock()

	if len(ids) > 0 {
		logger.Log.Debug().
			Int("channels", len(ids)).
			Msg("No current program for active channel, refreshing guide")
		metrics.OnDemandRefreshes.Inc()
		c.refresh(ctx, ids)
	}
}

// RefreshGuide fetches the guide for the active playlist
func (c *Controller) RefreshGuide(ctx context.Context) guide.Outcome {
	c.mu.Lock()
	var ids []int64
	if c.active != nil {
		ids = c.active.ChannelIDs()
	}
	c.mu.Unlock()

	return c.refresh(ctx, ids)
}

// HandlePlaybackEvent updates the view state from a player event. Events
// for a stream other than the active channel's are ignored.
func (c *Controller) HandlePlaybackEvent(ev playback.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil || ev.Source != c.streamURL(c.channel) {
		return
	}

	switch ev.Kind {
	case playback.EventLoading:
		c.state, c.message = StateLoading, ""
	case playback.EventLive:
		c.state, c.message = StateLive, ""
	case playback.EventStalled:
		c.state, c.message = StateStalled, playback.MessageStalled
	case playback.EventError:
		c.state, c.message = StateError, playback.ErrorMessage(ev.Err)
	default:
		return
	}
	c.renderLocked()
}

// Run drives the display and refresh timers and delivers player events
// until ctx is cancelled, then stops playback
func (c *Controller) Run(ctx context.Context) error {
	display := c.clock.NewTicker(c.displayInterval)
	defer display.Stop()
	hard := c.clock.NewTicker(c.refreshInterval)
	defer hard.Stop()

	events := c.player.Events()
	for {
		select {
		case <-ctx.Done():
			c.player.Stop()
			return nil
		case <-display.Chan():
			c.Tick(ctx)
		case <-hard.Chan():
			c.RefreshGuide(ctx)
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.HandlePlaybackEvent(ev)
		}
	}
}

// refresh fetches without the controller lock and re-renders on new data
func (c *Controller) refresh(ctx context.Context, ids []int64) guide.Outcome {
	if len(ids) == 0 {
		return guide.OutcomeSkipped
	}
	outcome := c.refresher.Refresh(ctx, ids)
	if outcome == guide.OutcomeApplied {
		c.mu.Lock()
		c.renderLocked()
		c.mu.Unlock()
	}
	return outcome
}

func (c *Controller) lookupChannel(ctx context.Context, id int64) (*models.Channel, error) {
	if c.lookup == nil {
		return nil, ErrChannelUnavailable
	}
	ch, err := c.lookup.LookupChannel(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, ErrChannelUnavailable
	}
	return ch, nil
}

func (c *Controller) selectChannelLocked(ctx context.Context, ch *models.Channel) error {
	c.channel = ch
	c.state, c.message = StateLoading, ""

	if c.recent != nil {
		if err := c.recent.AddRecent(ch); err != nil {
			logger.Log.Warn().
				Err(err).
				Int64("channel_id", ch.ID).
				Msg("Failed to record recently watched channel")
		}
	}

	err := c.player.Load(ctx, c.streamURL(ch))
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int64("channel_id", ch.ID).
			Msg("Failed to load channel stream")
		c.state, c.message = StateError, playback.ErrorMessage(err)
	}

	c.renderLocked()
	if err != nil {
		return fmt.Errorf("failed to load channel %d: %w", ch.ID, err)
	}
	return nil
}

func (c *Controller) switchPlaylistLocked(p *models.Playlist) {
	c.player.Stop()
	c.active = p
	c.channel = nil
	c.state, c.message = StateNoChannel, ""

	if c.selection != nil && p.EffectiveKind() != models.PlaylistKindEphemeralSearch {
		if err := c.selection.SetSelectedPlaylist(p.Name); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("playlist", p.Name).
				Msg("Failed to remember selected playlist")
		}
	}
}

func (c *Controller) setPlaylistsLocked(playlists []*models.Playlist) {
	next := make([]*models.Playlist, 0, len(playlists)+1)
	hasEphemeral := false
	for _, p := range playlists {
		if p.EffectiveKind() == models.PlaylistKindEphemeralSearch {
			hasEphemeral = true
		}
	}
	if !hasEphemeral {
		for _, p := range c.playlists {
			if p.EffectiveKind() == models.PlaylistKindEphemeralSearch {
				next = append(next, p)
			}
		}
	}
	next = append(next, playlists...)
	c.playlists = next

	if c.active == nil {
		return
	}
	for _, p := range next {
		if p == c.active {
			return
		}
	}
	for _, p := range next {
		if p.Key() == c.active.Key() {
			c.active = p
			return
		}
	}
}

func (c *Controller) withoutEphemeral() []*models.Playlist {
	out := make([]*models.Playlist, 0, len(c.playlists))
	for _, p := range c.playlists {
		if p.EffectiveKind() != models.PlaylistKindEphemeralSearch {
			out = append(out, p)
		}
	}
	return out
}

func (c *Controller) findLocked(id int64) (*models.Playlist, *models.Channel, bool) {
	if c.active != nil {
		if ch, ok := c.active.FindChannel(id); ok {
			return c.active, ch, true
		}
	}
	for _, p := range c.playlists {
		if ch, ok := p.FindChannel(id); ok {
			return p, ch, true
		}
	}
	return nil, nil, false
}

func (c *Controller) renderLocked() {
	c.renderer.Render(c.buildView(c.clock.Now()))
}
