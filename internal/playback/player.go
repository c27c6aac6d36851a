// Package playback loads and monitors HLS live streams for the headless player.
package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/livetv/internal/logger"
)

const (
	defaultStallPolls   = 3
	defaultPollInterval = 6 * time.Second
	defaultFetchTimeout = 10 * time.Second
	eventBufferSize     = 16
	maxManifestBytes    = 4 << 20
	codecParam          = "codec"
	codecCopy           = "copy"
	codecH264           = "h264"
)

// EventKind identifies a playback event
type EventKind string

const (
	// EventLoading is sent when a stream load starts
	EventLoading EventKind = "loading"
	// EventLive is sent once the media playlist is parsed, and again after a stall clears
	EventLive EventKind = "live"
	// EventStalled is sent when the media sequence stops advancing
	EventStalled EventKind = "stalled"
	// EventError is sent when the stream cannot be loaded
	EventError EventKind = "error"
)

// Event reports a playback state change for the stream passed to Load
type Event struct {
	Kind   EventKind
	Source string
	URL    string
	Err    error
}

// Options configures an HLSPlayer
type Options struct {
	HTTPClient   *http.Client
	Clock        clockwork.Clock
	PollInterval time.Duration
	StallPolls   int
}

// HLSPlayer fetches a stream's manifest, follows the first variant of a
// master playlist and polls the media playlist until stopped. Only one stream
// is active at a time.
type HLSPlayer struct {
	client       *http.Client
	clock        clockwork.Clock
	pollInterval time.Duration
	stallPolls   int
	events       chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHLSPlayer creates a player. Zero options fall back to defaults.
func NewHLSPlayer(opts Options) *HLSPlayer {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultFetchTimeout}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.StallPolls <= 0 {
		opts.StallPolls = defaultStallPolls
	}
	return &HLSPlayer{
		client:       opts.HTTPClient,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
		stallPolls:   opts.StallPolls,
		events:       make(chan Event, eventBufferSize),
	}
}

// Events returns the channel playback events are delivered on
func (p *HLSPlayer) Events() <-chan Event {
	return p.events
}

// Load stops any active stream, waiting for it to exit, then starts loading
// streamURL in the background. The stream runs until Stop, the next Load, or
// ctx is cancelled.
func (p *HLSPlayer) Load(ctx context.Context, streamURL string) error {
	p.Stop()

	if streamURL == "" {
		return ErrNoStreamURL
	}
	if _, err := url.Parse(streamURL); err != nil {
		return fmt.Errorf("failed to parse stream url: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.run(runCtx, streamURL, done)
	return nil
}

// Stop tears down the active stream and waits for it to exit. Events still
// queued from it are discarded.
func (p *HLSPlayer) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	for {
		select {
		case <-p.events:
		default:
			return
		}
	}
}

func (p *HLSPlayer) run(ctx context.Context, source string, done chan struct{}) {
	defer close(done)

	p.emit(ctx, Event{Kind: EventLoading, Source: source, URL: source})

	media, mediaURL, err := p.open(ctx, source)
	if err != nil && ctx.Err() == nil {
		if alt, ok := FallbackURL(source); ok {
			logger.Log.Warn().
				Err(err).
				Str("url", source).
				Str("fallback_url", alt).
				Msg("Stream failed to load, trying codec fallback")
			media, mediaURL, err = p.open(ctx, alt)
			if err != nil {
				err = fmt.Errorf("%w: %v", ErrFallbackExhausted, err)
			}
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Log.Error().
			Err(err).
			Str("url", source).
			Msg("Failed to load stream")
		p.emit(ctx, Event{Kind: EventError, Source: source, URL: source, Err: err})
		return
	}

	logger.Log.Info().
		Str("url", mediaURL).
		Uint64("media_sequence", media.SeqNo).
		Uint("segments", media.Count()).
		Msg("Stream loaded")
	p.emit(ctx, Event{Kind: EventLive, Source: source, URL: mediaURL})

	if media.Closed {
		return
	}
	p.monitor(ctx, source, mediaURL, media.SeqNo)
}

// monitor polls the media playlist and reports stalls when the media
// sequence stops advancing for stallPolls consecutive polls
func (p *HLSPlayer) monitor(ctx context.Context, source, mediaURL string, lastSeq uint64) {
	ticker := p.clock.NewTicker(p.pollInterval)
	defer ticker.Stop()

	misses := 0
	stalled := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		media, err := p.fetchMedia(ctx, mediaURL)
		if ctx.Err() != nil {
			return
		}

		switch {
		case err != nil:
			logger.Log.Debug().Err(err).Str("url", mediaURL).Msg("Media playlist poll failed")
			misses++
		case media.SeqNo == lastSeq:
			misses++
		default:
			lastSeq = media.SeqNo
			misses = 0
			if stalled {
				stalled = false
				p.emit(ctx, Event{Kind: EventLive, Source: source, URL: mediaURL})
			}
		}

		if !stalled && misses >= p.stallPolls {
			stalled = true
			logger.Log.Warn().
				Str("url", mediaURL).
				Uint64("media_sequence", lastSeq).
				Msg("Stream stalled")
			p.emit(ctx, Event{Kind: EventStalled, Source: source, URL: mediaURL})
		}

		if err == nil && media.Closed {
			return
		}
	}
}

// open resolves rawURL to a media playlist, following the first variant of a master playlist
func (p *HLSPlayer) open(ctx context.Context, rawURL string) (*m3u8.MediaPlaylist, string, error) {
	playlist, listType, err := p.fetch(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}

	switch listType {
	case m3u8.MEDIA:
		return playlist.(*m3u8.MediaPlaylist), rawURL, nil
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		variantURL, err := firstVariant(master, rawURL)
		if err != nil {
			return nil, "", err
		}
		media, err := p.fetchMedia(ctx, variantURL)
		if err != nil {
			return nil, "", err
		}
		return media, variantURL, nil
	default:
		return nil, "", ErrInvalidManifest
	}
}

func (p *HLSPlayer) fetchMedia(ctx context.Context, rawURL string) (*m3u8.MediaPlaylist, error) {
	playlist, listType, err := p.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("%w: expected media playlist at %s", ErrInvalidManifest, rawURL)
	}
	return playlist.(*m3u8.MediaPlaylist), nil
}

func (p *HLSPlayer) fetch(ctx context.Context, rawURL string) (m3u8.Playlist, m3u8.ListType, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create manifest request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	playlist, listType, err := m3u8.DecodeFrom(io.LimitReader(resp.Body, maxManifestBytes), false)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return playlist, listType, nil
}

func (p *HLSPlayer) emit(ctx context.Context, ev Event) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}

func firstVariant(master *m3u8.MasterPlaylist, base string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse manifest url: %w", err)
	}
	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		ref, err := url.Parse(v.URI)
		if err != nil {
			continue
		}
		return baseURL.ResolveReference(ref).String(), nil
	}
	return "", ErrNoVariants
}

// FallbackURL swaps the codec query parameter between copy and h264. It
// reports false when the URL carries no codec parameter.
func FallbackURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	current := q.Get(codecParam)
	if current == "" {
		return "", false
	}
	if current == codecCopy {
		q.Set(codecParam, codecH264)
	} else {
		q.Set(codecParam, codecCopy)
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}
