package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/livetv/internal/models"
	"gorm.io/gorm"
)

// SearchHistoryRepository handles database operations for channel search history
type SearchHistoryRepository struct {
	db *DB
}

// NewSearchHistoryRepository creates a new search history repository
func NewSearchHistoryRepository(db *DB) *SearchHistoryRepository {
	return &SearchHistoryRepository{db: db}
}

// Add records channelID as the newest entry, removing any older entry for the
// same channel and trimming the history to limit entries
func (r *SearchHistoryRepository) Add(ctx context.Context, channelID int64, at time.Time, limit int) error {
	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", channelID).Delete(&models.SearchHistoryEntry{}).Error; err != nil {
			return fmt.Errorf("failed to remove previous entry: %w", MapGormError(err))
		}

		entry := &models.SearchHistoryEntry{ChannelID: channelID, SearchedAt: at.UTC()}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to add search history entry: %w", MapGormError(err))
		}

		if limit <= 0 {
			return nil
		}
		keep := tx.Model(&models.SearchHistoryEntry{}).
			Select("id").
			Order("searched_at DESC, id DESC").
			Limit(limit)
		if err := tx.Where("id NOT IN (?)", keep).Delete(&models.SearchHistoryEntry{}).Error; err != nil {
			return fmt.Errorf("failed to trim search history: %w", MapGormError(err))
		}
		return nil
	})
}

// Channels retrieves the enabled channels in search history, newest first
func (r *SearchHistoryRepository) Channels(ctx context.Context, limit int) ([]*models.Channel, error) {
	channels := []*models.Channel{}
	query := r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Select("channels.*").
		Joins("JOIN search_history ON search_history.channel_id = channels.id").
		Where("channels.is_enabled = ?", true).
		Order("search_history.searched_at DESC, search_history.id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to get search history channels: %w", MapGormError(err))
	}
	return channels, nil
}

// Clear removes every search history entry
func (r *SearchHistoryRepository) Clear(ctx context.Context) error {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&models.SearchHistoryEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to clear search history: %w", MapGormError(result.Error))
	}
	return nil
}
