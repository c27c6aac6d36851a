package dvr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Eyevinn/hls-m3u8/m3u8"
	"github.com/stwalsh4118/livetv/internal/logger"
)

// defaultPort is the port a Channels DVR server listens on
const defaultPort = "8089"

// ErrInvalidStreamURL indicates a channel stream URL could not be parsed
var ErrInvalidStreamURL = errors.New("invalid stream url")

// PlaybackURL rewrites a channel stream URL for HLS playback.
// HDHomeRun tuners and direct DVR streams need an h264 transcode; everything else is copied.
func PlaybackURL(streamURL string) (string, error) {
	u, err := url.Parse(streamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidStreamURL, streamURL)
	}

	codec := "copy"
	lower := strings.ToLower(streamURL)
	if strings.Contains(lower, "hdhomerun") || strings.Contains(lower, defaultPort) {
		codec = "h264"
	}

	q := u.Query()
	q.Set("format", "hls")
	q.Set("codec", codec)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchManifest downloads the HLS manifest for a channel stream.
// Relative URIs are resolved against the upstream URL so the manifest stays playable when served from elsewhere.
// Manifest loads are a single attempt and stay outside the breaker; a player retries on its own schedule.
func (c *Client) FetchManifest(ctx context.Context, streamURL string) ([]byte, error) {
	target, err := PlaybackURL(streamURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stream %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch stream %s: %w: %d", target, ErrUnexpectedStatus, resp.StatusCode)
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(io.LimitReader(resp.Body, maxResponseBytes)); err != nil {
		return nil, fmt.Errorf("failed to read stream manifest: %w", err)
	}

	// Redirects move the base for relative references
	return AbsoluteManifest(body.Bytes(), resp.Request.URL), nil
}

// AbsoluteManifest resolves every relative URI in an HLS manifest against base.
// Bodies that do not decode as a playlist are returned unchanged.
func AbsoluteManifest(body []byte, base *url.URL) []byte {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil {
		logger.Log.Debug().Err(err).Str("base", base.String()).Msg("Stream manifest not decodable, passing through")
		return body
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		for _, v := range master.Variants {
			if v == nil {
				continue
			}
			v.URI = resolve(base, v.URI)
			for _, alt := range v.Alternatives {
				if alt != nil {
					alt.URI = resolve(base, alt.URI)
				}
			}
		}
		return master.Encode().Bytes()
	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		for _, seg := range media.GetAllSegments() {
			seg.URI = resolve(base, seg.URI)
			if seg.Map != nil {
				seg.Map.URI = resolve(base, seg.Map.URI)
			}
			for i := range seg.Keys {
				seg.Keys[i].URI = resolve(base, seg.Keys[i].URI)
			}
		}
		if media.Map != nil {
			media.Map.URI = resolve(base, media.Map.URI)
		}
		for i := range media.Keys {
			media.Keys[i].URI = resolve(base, media.Keys[i].URI)
		}
		// Emit every segment the upstream listed, not just the default live window
		_ = media.SetWinSize(0)
		return media.Encode().Bytes()
	default:
		return body
	}
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}
