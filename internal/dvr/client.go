// Package dvr talks to the upstream Channels DVR server for the M3U channel list and XMLTV guide.
package dvr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/livetv/internal/logger"
)

const (
	defaultDevice      = "ANY"
	defaultAttempts    = 3
	defaultRetryDelay  = 500 * time.Millisecond
	maxResponseBytes   = 64 << 20
	defaultGuideWindow = 14400
	defaultBreakerTrip = 5
	defaultBreakerWait = 30 * time.Second
)

// ErrNotConfigured indicates no DVR base URL was configured
var ErrNotConfigured = errors.New("dvr base url not configured")

// ErrUnexpectedStatus indicates the DVR answered with a non-2xx status
var ErrUnexpectedStatus = errors.New("unexpected dvr response status")

// IsNotConfigured checks if the error is a missing DVR configuration error
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// Options configures a Client
type Options struct {
	BaseURL            string
	Device             string
	RequestTimeout     time.Duration
	EPGDurationSeconds int
	Attempts           uint
	RetryDelay         time.Duration

	// BreakerThreshold consecutive failed fetches open the breaker for BreakerReset
	BreakerThreshold int
	BreakerReset     time.Duration
	Clock            clockwork.Clock
}

// Client downloads channel lists and guide data from a DVR
type Client struct {
	baseURL    string
	device     string
	duration   int
	attempts   uint
	retryDelay time.Duration
	breaker    *Breaker
	http       *http.Client
}

// NewClient creates a DVR client. An empty base URL is allowed; fetches then fail with ErrNotConfigured.
func NewClient(opts Options) *Client {
	device := opts.Device
	if device == "" {
		device = defaultDevice
	}
	duration := opts.EPGDurationSeconds
	if duration <= 0 {
		duration = defaultGuideWindow
	}
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	trip := opts.BreakerThreshold
	if trip <= 0 {
		trip = defaultBreakerTrip
	}
	wait := opts.BreakerReset
	if wait <= 0 {
		wait = defaultBreakerWait
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		device:     device,
		duration:   duration,
		attempts:   attempts,
		retryDelay: delay,
		breaker:    NewBreaker(trip, wait, opts.Clock),
		http:       &http.Client{Timeout: opts.RequestTimeout},
	}
}

// M3UURL returns the channel list URL, requesting HLS passthrough streams
func (c *Client) M3UURL() (string, error) {
	if c.baseURL == "" {
		return "", ErrNotConfigured
	}
	q := url.Values{}
	q.Set("format", "hls")
	q.Set("codec", "copy")
	return fmt.Sprintf("%s/devices/%s/channels.m3u?%s", c.baseURL, url.PathEscape(c.device), q.Encode()), nil
}

// GuideURL returns the XMLTV guide URL
func (c *Client) GuideURL() (string, error) {
	if c.baseURL == "" {
		return "", ErrNotConfigured
	}
	return fmt.Sprintf("%s/devices/%s/guide/xmltv?duration=%d", c.baseURL, url.PathEscape(c.device), c.duration), nil
}

// FetchM3U downloads the channel list
func (c *Client) FetchM3U(ctx context.Context) ([]byte, error) {
	u, err := c.M3UURL()
	if err != nil {
		return nil, err
	}
	return c.get(ctx, u)
}

// FetchXMLTV downloads the XMLTV guide document
func (c *Client) FetchXMLTV(ctx context.Context) ([]byte, error) {
	u, err := c.GuideURL()
	if err != nil {
		return nil, err
	}
	return c.get(ctx, u)
}

// get performs a GET with retries on transport errors and 5xx responses.
// Fetches that still fail count against the circuit breaker.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	var body []byte
	err := c.breaker.Call(func() error {
		var err error
		body, err = retry.DoWithData(
			func() ([]byte, error) {
				return c.getOnce(ctx, u)
			},
			retry.Context(ctx),
			retry.Attempts(c.attempts),
			retry.Delay(c.retryDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				logger.Log.Warn().
					Err(err).
					Uint("attempt", n+1).
					Str("url", u).
					Msg("DVR request failed, retrying")
			}),
		)
		return err
	}, countsAsOutage)
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) {
			logger.Log.Warn().Str("url", u).Msg("DVR circuit breaker open, skipping request")
		}
		return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	return body, nil
}

// BreakerState reports the circuit breaker state
func (c *Client) BreakerState() BreakerState {
	return c.breaker.State()
}

// countsAsOutage excludes caller cancellation from breaker accounting
func countsAsOutage(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) getOnce(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		if resp.StatusCode < 500 {
			return nil, retry.Unrecoverable(statusErr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// Configured reports whether a DVR base URL was set
func (c *Client) Configured() bool {
	return c.baseURL != ""
}
