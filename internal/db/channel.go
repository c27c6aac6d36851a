package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/livetv/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelStats summarizes the channel catalog
type ChannelStats struct {
	Total    int64    `json:"total"`
	Enabled  int64    `json:"enabled"`
	Disabled int64    `json:"disabled"`
	Groups   []string `json:"groups"`
}

// ChannelRepository handles database operations for channels
type ChannelRepository struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// Create inserts a new channel into the database
func (r *ChannelRepository) Create(ctx context.Context, channel *models.Channel) error {
	result := r.db.WithContext(ctx).Create(channel)
	if result.Error != nil {
		return fmt.Errorf("failed to create channel: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a channel by its id
func (r *ChannelRepository) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	var channel models.Channel
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&channel)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &channel, nil
}

// FindByTvgID retrieves the channel carrying the given guide id
func (r *ChannelRepository) FindByTvgID(ctx context.Context, tvgID string) (*models.Channel, error) {
	var channel models.Channel
	result := r.db.WithContext(ctx).Where("tvg_id = ?", tvgID).First(&channel)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &channel, nil
}

// FindByNameAndURL retrieves a channel without a guide id by its name and stream URL
func (r *ChannelRepository) FindByNameAndURL(ctx context.Context, name, streamURL string) (*models.Channel, error) {
	var channel models.Channel
	result := r.db.WithContext(ctx).
		Where("name = ? AND stream_url = ?", name, streamURL).
		First(&channel)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &channel, nil
}

// List retrieves channels ordered by name, optionally only enabled ones
func (r *ChannelRepository) List(ctx context.Context, enabledOnly bool) ([]*models.Channel, error) {
	var channels []*models.Channel
	query := r.db.WithContext(ctx)
	if enabledOnly {
		query = query.Where("is_enabled = ?", true)
	}
	result := query.Order("name ASC").Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channels: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// ListByIDs retrieves the channels with the given ids in no particular order
func (r *ChannelRepository) ListByIDs(ctx context.Context, ids []int64) ([]*models.Channel, error) {
	channels := []*models.Channel{}
	if len(ids) == 0 {
		return channels, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list channels by id: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// Update writes the fields owned by the M3U sync. The enabled flag is left untouched.
func (r *ChannelRepository) Update(ctx context.Context, channel *models.Channel) error {
	channel.UpdatedAt = time.Now().UTC()

	// Select forces zero values such as a cleared logo to be written
	result := r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("id = ?", channel.ID).
		Select("name", "tvg_id", "stream_url", "logo_url", "channel_number", "group_title", "attributes", "updated_at").
		Updates(channel)
	if result.Error != nil {
		return fmt.Errorf("failed to update channel: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleEnabled flips the enabled flag and returns the new value
func (r *ChannelRepository) ToggleEnabled(ctx context.Context, id int64) (bool, error) {
	var enabled bool
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var channel models.Channel
		if err := tx.Where("id = ?", id).First(&channel).Error; err != nil {
			return MapGormError(err)
		}
		enabled = !channel.IsEnabled
		return tx.Model(&models.Channel{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"is_enabled": enabled,
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return false, err
	}
	return enabled, nil
}

// Search matches enabled channels by name, guide id, or channel number.
// Name matches sort before guide id matches, then channel number matches.
func (r *ChannelRepository) Search(ctx context.Context, query string, limit int) ([]*models.Channel, error) {
	pattern := "%" + query + "%"
	var channels []*models.Channel
	result := r.db.WithContext(ctx).
		Where("(name LIKE ? OR tvg_id LIKE ? OR channel_number LIKE ?) AND is_enabled = ?", pattern, pattern, pattern, true).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN name LIKE ? THEN 1 WHEN tvg_id LIKE ? THEN 2 WHEN channel_number LIKE ? THEN 3 ELSE 4 END, name ASC",
			Vars:               []interface{}{pattern, pattern, pattern},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to search channels: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// Stats counts channels and collects distinct group titles
func (r *ChannelRepository) Stats(ctx context.Context) (*ChannelStats, error) {
	stats := &ChannelStats{Groups: []string{}}
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Channel{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count channels: %w", MapGormError(err))
	}
	if err := db.Model(&models.Channel{}).Where("is_enabled = ?", true).Count(&stats.Enabled).Error; err != nil {
		return nil, fmt.Errorf("failed to count enabled channels: %w", MapGormError(err))
	}
	stats.Disabled = stats.Total - stats.Enabled

	err := db.Model(&models.Channel{}).
		Where("group_title IS NOT NULL AND group_title <> ''").
		Distinct().
		Order("group_title ASC").
		Pluck("group_title", &stats.Groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list channel groups: %w", MapGormError(err))
	}

	return stats, nil
}

// DeleteAll removes every channel; playlist links and search history cascade
func (r *ChannelRepository) DeleteAll(ctx context.Context) error {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.Channel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete channels: %w", MapGormError(result.Error))
	}
	return nil
}

// SetAllEnabled sets is_enabled on every channel not already in that state
// and returns how many rows changed
func (r *ChannelRepository) SetAllEnabled(ctx context.Context, enabled bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("is_enabled <> ?", enabled).
		Updates(map[string]interface{}{
			"is_enabled": enabled,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update channels: %w", MapGormError(result.Error))
	}
	return result.RowsAffected, nil
}
