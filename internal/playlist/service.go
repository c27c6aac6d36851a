// Package playlist manages user playlists and the server-side search history.
package playlist

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/livetv/internal/db"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/models"
)

const (
	// MaxNameLength is the longest accepted playlist name
	MaxNameLength = 100

	// Client-generated ids above this value are timestamps for playlists not yet stored
	newPlaylistIDThreshold = 1_000_000_000
)

// Service handles playlist and search history operations
type Service struct {
	repos *db.Repositories
	clock clockwork.Clock
}

// NewService creates a playlist service. A nil clock uses the real clock.
func NewService(repos *db.Repositories, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{repos: repos, clock: clock}
}

// List returns the user playlists ordered by name. When search history is not
// empty it is prepended as a read-only history playlist.
func (s *Service) List(ctx context.Context) ([]*models.Playlist, error) {
	playlists, err := s.repos.Playlists.List(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list playlists")
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}

	history, err := s.SearchHistory(ctx)
	if err != nil {
		return nil, err
	}
	if len(history.Channels) > 0 {
		playlists = append([]*models.Playlist{history}, playlists...)
	}
	return playlists, nil
}

// Save replaces the stored playlists with the given set. Read-only playlists
// are ignored, playlists with a zero or client-generated id are created, and
// stored playlists missing from the set are deleted.
func (s *Service) Save(ctx context.Context, playlists []*models.Playlist) ([]*models.Playlist, error) {
	writes := make([]db.PlaylistWrite, 0, len(playlists))
	for _, p := range playlists {
		if p == nil || p.ReadOnly() {
			continue
		}

		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, ErrNameRequired
		}
		if utf8.RuneCountInString(name) > MaxNameLength {
			return nil, fmt.Errorf("%w: %q", ErrNameTooLong, name)
		}

		id := p.ID
		if id < 0 || id > newPlaylistIDThreshold {
			id = 0
		}
		writes = append(writes, db.PlaylistWrite{
			ID:          id,
			Name:        name,
			Description: p.Description,
			ChannelIDs:  p.ChannelIDs(),
		})
	}

	if _, err := s.repos.Playlists.ReplaceAll(ctx, writes); err != nil {
		if db.IsForeignKey(err) {
			return nil, ErrUnknownChannel
		}
		logger.Log.Error().Err(err).Int("count", len(writes)).Msg("Failed to save playlists")
		return nil, fmt.Errorf("failed to save playlists: %w", err)
	}

	logger.Log.Info().Int("count", len(writes)).Msg("Playlists saved")

	saved, err := s.repos.Playlists.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload playlists: %w", err)
	}
	return saved, nil
}

// Channels returns a stored playlist's channels in order
func (s *Service) Channels(ctx context.Context, playlistID int64) ([]*models.Channel, error) {
	playlist, err := s.repos.Playlists.GetByID(ctx, playlistID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	return playlist.Channels, nil
}

// AddSearchHistory records a channel as most recently searched, keeping at most
// models.MaxSearchHistory entries
func (s *Service) AddSearchHistory(ctx context.Context, channelID int64) error {
	err := s.repos.SearchHistory.Add(ctx, channelID, s.clock.Now(), models.MaxSearchHistory)
	if err != nil {
		if db.IsForeignKey(err) {
			return ErrUnknownChannel
		}
		return fmt.Errorf("failed to add search history: %w", err)
	}

	logger.Log.Debug().Int64("channel_id", channelID).Msg("Channel added to search history")
	return nil
}

// SearchHistory returns the enabled history channels as a read-only playlist
func (s *Service) SearchHistory(ctx context.Context) (*models.Playlist, error) {
	channels, err := s.repos.SearchHistory.Channels(ctx, models.MaxSearchHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}
	return models.NewHistoryPlaylist(channels), nil
}

// ClearSearchHistory removes all search history
func (s *Service) ClearSearchHistory(ctx context.Context) error {
	if err := s.repos.SearchHistory.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear search history: %w", err)
	}
	logger.Log.Info().Msg("Search history cleared")
	return nil
}
