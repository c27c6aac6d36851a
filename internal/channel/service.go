// Package channel implements the channel catalog: lookup, search, enable toggles, and M3U sync from the DVR.
package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/stwalsh4118/livetv/internal/db"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/metrics"
	"github.com/stwalsh4118/livetv/internal/models"
)

// MaxSearchResults caps channel search results
const MaxSearchResults = 100

// M3USource provides the raw channel list
type M3USource interface {
	FetchM3U(ctx context.Context) ([]byte, error)
}

// SyncResult summarizes a channel sync
type SyncResult struct {
	Processed int `json:"channels_processed"`
	Added     int `json:"channels_added"`
	Updated   int `json:"channels_updated"`
	Skipped   int `json:"channels_skipped"`
	Total     int `json:"total_channels"`
}

// ChannelService handles business logic for channel operations
type ChannelService struct {
	repos  *db.Repositories
	source M3USource
}

// NewChannelService creates a new channel service instance. source may be nil
// when no DVR is configured; Sync then returns ErrSyncUnavailable.
func NewChannelService(repos *db.Repositories, source M3USource) *ChannelService {
	return &ChannelService{
		repos:  repos,
		source: source,
	}
}

// GetByID retrieves a channel by its ID
func (s *ChannelService) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	channel, err := s.repos.Channels.GetByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrChannelNotFound
		}
		logger.Log.Error().
			Err(err).
			Int64("channel_id", id).
			Msg("Failed to get channel by ID")
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	return channel, nil
}

// List retrieves channels ordered by name
func (s *ChannelService) List(ctx context.Context, enabledOnly bool) ([]*models.Channel, error) {
	channels, err := s.repos.Channels.List(ctx, enabledOnly)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Failed to list channels")
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	logger.Log.Debug().
		Int("count", len(channels)).
		Bool("enabled_only", enabledOnly).
		Msg("Listed channels")

	return channels, nil
}

// Toggle flips a channel's enabled flag and returns the new value
func (s *ChannelService) Toggle(ctx context.Context, id int64) (bool, error) {
	enabled, err := s.repos.Channels.ToggleEnabled(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return false, ErrChannelNotFound
		}
		return false, fmt.Errorf("failed to toggle channel: %w", err)
	}

	logger.Log.Info().
		Int64("channel_id", id).
		Bool("is_enabled", enabled).
		Msg("Channel toggled")

	return enabled, nil
}

// BulkResult summarizes a bulk enable or disable
type BulkResult struct {
	Updated int64 `json:"channels_updated"`
	Total   int64 `json:"total_channels"`
	Enabled bool  `json:"enabled"`
}

// SetAllEnabled enables or disables every channel
func (s *ChannelService) SetAllEnabled(ctx context.Context, enabled bool) (*BulkResult, error) {
	updated, err := s.repos.Channels.SetAllEnabled(ctx, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to update channels: %w", err)
	}

	stats, err := s.repos.Channels.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count channels: %w", err)
	}

	logger.Log.Info().
		Bool("is_enabled", enabled).
		Int64("updated", updated).
		Msg("Channels bulk toggled")

	return &BulkResult{Updated: updated, Total: stats.Total, Enabled: enabled}, nil
}

// Search finds enabled channels matching query by name, guide id, or number.
// A blank query returns no results.
func (s *ChannelService) Search(ctx context.Context, query string) ([]*models.Channel, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*models.Channel{}, nil
	}

	channels, err := s.repos.Channels.Search(ctx, query, MaxSearchResults)
	if err != nil {
		return nil, fmt.Errorf("failed to search channels: %w", err)
	}
	return channels, nil
}

// Stats returns catalog counts and group titles
func (s *ChannelService) Stats(ctx context.Context) (*db.ChannelStats, error) {
	stats, err := s.repos.Channels.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel stats: %w", err)
	}
	return stats, nil
}

// Sync downloads the DVR channel list and upserts every entry. Existing rows
// match by guide id first, then by name and stream URL. A failing entry is
// logged and skipped.
func (s *ChannelService) Sync(ctx context.Context, replaceExisting bool) (*SyncResult, error) {
	if s.source == nil {
		metrics.ChannelSyncs.WithLabelValues("unavailable").Inc()
		return nil, ErrSyncUnavailable
	}

	content, err := s.source.FetchM3U(ctx)
	if err != nil {
		metrics.ChannelSyncs.WithLabelValues("failed").Inc()
		logger.Log.Error().Err(err).Msg("Failed to fetch M3U content from DVR")
		return nil, fmt.Errorf("failed to fetch channel list: %w", err)
	}

	entries, err := ParseM3U(content)
	if err != nil {
		metrics.ChannelSyncs.WithLabelValues("failed").Inc()
		return nil, err
	}
	if len(entries) == 0 {
		metrics.ChannelSyncs.WithLabelValues("empty").Inc()
		return nil, ErrNoChannelsFound
	}

	if replaceExisting {
		if err := s.repos.Channels.DeleteAll(ctx); err != nil {
			metrics.ChannelSyncs.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("failed to clear channels: %w", err)
		}
	}

	result := &SyncResult{}
	for _, entry := range entries {
		result.Processed++
		if entry.Name == "" || entry.StreamURL == "" {
			result.Skipped++
			continue
		}

		added, err := s.upsert(ctx, entry)
		if err != nil {
			result.Skipped++
			logger.Log.Error().
				Err(err).
				Str("name", entry.Name).
				Str("tvg_id", entry.TvgID).
				Msg("Failed to sync channel")
			continue
		}
		if added {
			result.Added++
		} else {
			result.Updated++
		}
	}

	stats, err := s.repos.Channels.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count channels: %w", err)
	}
	result.Total = int(stats.Total)

	metrics.ChannelSyncs.WithLabelValues("success").Inc()
	logger.Log.Info().
		Int("processed", result.Processed).
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("Channel sync completed")

	return result, nil
}

// upsert writes one entry and reports whether a new row was created
func (s *ChannelService) upsert(ctx context.Context, entry Entry) (bool, error) {
	existing, err := s.findExisting(ctx, entry)
	if err != nil {
		return false, err
	}

	if existing != nil {
		applyEntry(existing, entry)
		if err := s.repos.Channels.Update(ctx, existing); err != nil {
			return false, fmt.Errorf("failed to update channel %d: %w", existing.ID, err)
		}
		return false, nil
	}

	channel := models.NewChannel(entry.Name, entry.StreamURL)
	applyEntry(channel, entry)
	if err := s.repos.Channels.Create(ctx, channel); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ChannelService) findExisting(ctx context.Context, entry Entry) (*models.Channel, error) {
	if entry.TvgID != "" {
		ch, err := s.repos.Channels.FindByTvgID(ctx, entry.TvgID)
		if err == nil {
			return ch, nil
		}
		if !db.IsNotFound(err) {
			return nil, err
		}
	}

	ch, err := s.repos.Channels.FindByNameAndURL(ctx, entry.Name, entry.StreamURL)
	if err == nil {
		return ch, nil
	}
	if db.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func applyEntry(ch *models.Channel, entry Entry) {
	ch.Name = entry.Name
	ch.TvgID = entry.TvgID
	ch.StreamURL = entry.StreamURL
	ch.LogoURL = entry.LogoURL
	ch.ChannelNumber = entry.ChannelNumber
	ch.GroupTitle = entry.GroupTitle
	ch.Attributes = entry.Attributes
}
