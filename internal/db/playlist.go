package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/livetv/internal/models"
	"gorm.io/gorm"
)

// PlaylistRepository handles database operations for user playlists and their channels
type PlaylistRepository struct {
	db *DB
}

// NewPlaylistRepository creates a new playlist repository
func NewPlaylistRepository(db *DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// List retrieves all playlists ordered by name with their channels loaded
func (r *PlaylistRepository) List(ctx context.Context) ([]*models.Playlist, error) {
	var playlists []*models.Playlist
	result := r.db.WithContext(ctx).Order("name ASC").Find(&playlists)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", MapGormError(result.Error))
	}

	for _, p := range playlists {
		p.Kind = models.PlaylistKindUser
		channels, err := r.Channels(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Channels = channels
	}
	return playlists, nil
}

// GetByID retrieves a playlist with its channels
func (r *PlaylistRepository) GetByID(ctx context.Context, id int64) (*models.Playlist, error) {
	var playlist models.Playlist
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&playlist)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	playlist.Kind = models.PlaylistKindUser

	channels, err := r.Channels(ctx, id)
	if err != nil {
		return nil, err
	}
	playlist.Channels = channels
	return &playlist, nil
}

// Channels retrieves the channels of a playlist in sort order
func (r *PlaylistRepository) Channels(ctx context.Context, playlistID int64) ([]*models.Channel, error) {
	channels := []*models.Channel{}
	result := r.db.WithContext(ctx).
		Model(&models.Channel{}).
		Select("channels.*").
		Joins("JOIN playlist_channels ON playlist_channels.channel_id = channels.id").
		Where("playlist_channels.playlist_id = ?", playlistID).
		Order("playlist_channels.sort_order ASC").
		Find(&channels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get playlist channels: %w", MapGormError(result.Error))
	}
	return channels, nil
}

// Create inserts a playlist row. Channels are not written.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *models.Playlist) error {
	result := r.db.WithContext(ctx).Create(playlist)
	if result.Error != nil {
		return fmt.Errorf("failed to create playlist: %w", MapGormError(result.Error))
	}
	return nil
}

// Delete deletes a playlist; its channel links cascade
func (r *PlaylistRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Playlist{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete playlist: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PlaylistWrite is one entry of a bulk playlist save. A zero ID creates a new playlist.
type PlaylistWrite struct {
	ID          int64
	Name        string
	Description string
	ChannelIDs  []int64
}

// ReplaceAll makes the stored playlists match writes in a single transaction.
// Playlists absent from writes are deleted, entries with a zero ID are created,
// and every playlist's channel links are rewritten with sort order starting at 1.
// It returns the resulting playlist ids in input order.
func (r *PlaylistRepository) ReplaceAll(ctx context.Context, writes []PlaylistWrite) ([]int64, error) {
	ids := make([]int64, len(writes))

	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		keep := make([]int64, 0, len(writes))
		for _, w := range writes {
			if w.ID != 0 {
				keep = append(keep, w.ID)
			}
		}

		del := tx.Model(&models.Playlist{})
		if len(keep) > 0 {
			del = del.Where("id NOT IN ?", keep)
		} else {
			del = del.Where("1 = 1")
		}
		if err := del.Delete(&models.Playlist{}).Error; err != nil {
			return fmt.Errorf("failed to delete removed playlists: %w", MapGormError(err))
		}

		now := time.Now().UTC()
		for i, w := range writes {
			id, err := upsertPlaylist(tx, w, now)
			if err != nil {
				return err
			}
			ids[i] = id

			if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistChannel{}).Error; err != nil {
				return fmt.Errorf("failed to clear channels for playlist %d: %w", id, MapGormError(err))
			}

			links := make([]models.PlaylistChannel, 0, len(w.ChannelIDs))
			seen := make(map[int64]bool, len(w.ChannelIDs))
			for _, channelID := range w.ChannelIDs {
				if seen[channelID] {
					continue
				}
				seen[channelID] = true
				links = append(links, models.PlaylistChannel{
					PlaylistID: id,
					ChannelID:  channelID,
					SortOrder:  len(links) + 1,
				})
			}
			if len(links) == 0 {
				continue
			}
			if err := tx.Create(&links).Error; err != nil {
				return fmt.Errorf("failed to add channels to playlist %d: %w", id, MapGormError(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// upsertPlaylist updates an existing playlist row or creates it when the id is
// zero or no longer present
func upsertPlaylist(tx *gorm.DB, w PlaylistWrite, now time.Time) (int64, error) {
	if w.ID != 0 {
		result := tx.Model(&models.Playlist{}).
			Where("id = ?", w.ID).
			Updates(map[string]interface{}{
				"name":        w.Name,
				"description": w.Description,
				"updated_at":  now,
			})
		if result.Error != nil {
			return 0, fmt.Errorf("failed to update playlist %d: %w", w.ID, MapGormError(result.Error))
		}
		if result.RowsAffected > 0 {
			return w.ID, nil
		}
	}

	playlist := &models.Playlist{
		Name:        w.Name,
		Description: w.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.Create(playlist).Error; err != nil {
		return 0, fmt.Errorf("failed to create playlist %q: %w", w.Name, MapGormError(err))
	}
	return playlist.ID, nil
}
