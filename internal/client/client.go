// Package client is the player's HTTP client for the livetv API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/livetv/internal/guide"
	"github.com/stwalsh4118/livetv/internal/models"
)

const maxErrorBody = 4 << 10

var (
	// ErrChannelNotFound indicates the server has no channel with the requested id
	ErrChannelNotFound = errors.New("channel not found")

	// ErrUnexpectedStatus indicates a non-2xx response
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// IsChannelNotFound checks if the error is a channel not found error
func IsChannelNotFound(err error) bool {
	return errors.Is(err, ErrChannelNotFound)
}

// Client calls the livetv API
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the API rooted at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// StreamURL returns the server's stream proxy URL for a channel
func (c *Client) StreamURL(ch *models.Channel) string {
	return c.baseURL + "/proxy/stream/" + strconv.FormatInt(ch.ID, 10)
}

type channelResponse struct {
	Success bool            `json:"success"`
	Channel *models.Channel `json:"channel"`
	Error   string          `json:"error"`
}

type playlistsResponse struct {
	Success   bool               `json:"success"`
	Playlists []*models.Playlist `json:"playlists"`
}

type searchResponse struct {
	Success  bool              `json:"success"`
	Channels []*models.Channel `json:"channels"`
}

type savePlaylistsRequest struct {
	Playlists []*models.Playlist `json:"playlists"`
}

type searchHistoryRequest struct {
	ChannelID int64 `json:"channel_id"`
}

// FetchGuide requests guide data for the given window. It implements guide.Source.
func (c *Client) FetchGuide(ctx context.Context, req guide.Request) (guide.Data, error) {
	data := guide.Data{}
	if err := c.do(ctx, http.MethodPost, "/api/guide/data", req, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch guide data: %w", err)
	}
	return data, nil
}

// LookupChannel fetches a single channel by id
func (c *Client) LookupChannel(ctx context.Context, id int64) (*models.Channel, error) {
	var resp channelResponse
	err := c.do(ctx, http.MethodGet, "/api/channels/"+strconv.FormatInt(id, 10), nil, &resp)
	if err != nil {
		if statusIs(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
		}
		return nil, fmt.Errorf("failed to look up channel %d: %w", id, err)
	}
	if !resp.Success || resp.Channel == nil {
		return nil, fmt.Errorf("%w: %d", ErrChannelNotFound, id)
	}
	return resp.Channel, nil
}

// ListPlaylists fetches the playlists, including the search history playlist when present
func (c *Client) ListPlaylists(ctx context.Context) ([]*models.Playlist, error) {
	var resp playlistsResponse
	if err := c.do(ctx, http.MethodGet, "/api/playlists", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	return resp.Playlists, nil
}

// SavePlaylists bulk-saves user playlists. Read-only playlists are not sent.
func (c *Client) SavePlaylists(ctx context.Context, playlists []*models.Playlist) error {
	body := savePlaylistsRequest{Playlists: make([]*models.Playlist, 0, len(playlists))}
	for _, p := range playlists {
		if !p.ReadOnly() {
			body.Playlists = append(body.Playlists, p)
		}
	}
	if err := c.do(ctx, http.MethodPost, "/api/playlists", body, nil); err != nil {
		return fmt.Errorf("failed to save playlists: %w", err)
	}
	return nil
}

// AddSearchHistory records a channel in the server's search history
func (c *Client) AddSearchHistory(ctx context.Context, channelID int64) error {
	if err := c.do(ctx, http.MethodPost, "/api/search-history/add", searchHistoryRequest{ChannelID: channelID}, nil); err != nil {
		return fmt.Errorf("failed to add search history: %w", err)
	}
	return nil
}

// SearchChannels searches enabled channels by name, guide id, or number
func (c *Client) SearchChannels(ctx context.Context, query string) ([]*models.Channel, error) {
	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to search channels: %w", err)
	}
	return resp.Channels, nil
}

// StatusError carries the status code of a failed response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.Code)
	}
	return fmt.Sprintf("%s: %d: %s", ErrUnexpectedStatus, e.Code, e.Body)
}

// Unwrap makes StatusError match ErrUnexpectedStatus
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

func statusIs(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
