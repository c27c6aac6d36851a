package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/livetv/internal/logger"
	"github.com/stwalsh4118/livetv/internal/models"
	"github.com/stwalsh4118/livetv/internal/playlist"
)

// PlaylistListResponse represents the playlists shown in the player
type PlaylistListResponse struct {
	Success   bool               `json:"success"`
	Playlists []*models.Playlist `json:"playlists"`
}

// SavePlaylistsRequest carries the complete set of user playlists
type SavePlaylistsRequest struct {
	Playlists []*models.Playlist `json:"playlists"`
}

// SavePlaylistsResponse acknowledges a save with the stored playlists
type SavePlaylistsResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	Playlists []*models.Playlist `json:"playlists"`
}

// SearchHistoryRequest adds a channel to search history
type SearchHistoryRequest struct {
	ChannelID int64 `json:"channel_id"`
}

// SearchHistoryResponse presents search history as a playlist
type SearchHistoryResponse struct {
	Success  bool             `json:"success"`
	Playlist *models.Playlist `json:"playlist"`
}

// PlaylistHandler handles playlist and search history API requests
type PlaylistHandler struct {
	playlistService *playlist.Service
}

// NewPlaylistHandler creates a new playlist handler instance
func NewPlaylistHandler(playlistService *playlist.Service) *PlaylistHandler {
	return &PlaylistHandler{playlistService: playlistService}
}

// ListPlaylists handles GET /api/playlists
func (h *PlaylistHandler) ListPlaylists(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	playlists, err := h.playlistService.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to retrieve playlists",
		})
		return
	}

	c.JSON(http.StatusOK, PlaylistListResponse{Success: true, Playlists: playlists})
}

// SavePlaylists handles POST /api/playlists
func (h *PlaylistHandler) SavePlaylists(c *gin.Context) {
	var req SavePlaylistsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	saved, err := h.playlistService.Save(ctx, req.Playlists)
	if err != nil {
		if playlist.IsValidation(err) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_playlist",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "save_failed",
			Message: "Failed to save playlists",
		})
		return
	}

	c.JSON(http.StatusOK, SavePlaylistsResponse{
		Success:   true,
		Message:   "Playlists saved successfully",
		Playlists: saved,
	})
}

// GetPlaylistChannels handles GET /api/playlists/:id/channels
func (h *PlaylistHandler) GetPlaylistChannels(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid playlist ID format",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	channels, err := h.playlistService.Channels(ctx, id)
	if err != nil {
		if errors.Is(err, playlist.ErrPlaylistNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Playlist not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "retrieval_failed",
			Message: "Failed to retrieve playlist channels",
		})
		return
	}

	c.JSON(http.StatusOK, ChannelListResponse{Success: true, Channels: channels})
}

// AddSearchHistory handles POST /api/search-history/add
func (h *PlaylistHandler) AddSearchHistory(c *gin.Context) {
	var req SearchHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChannelID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Channel ID is required",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.playlistService.AddSearchHistory(ctx, req.ChannelID); err != nil {
		if errors.Is(err, playlist.ErrUnknownChannel) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Channel not found",
			})
			return
		}
		logger.Log.Error().Err(err).Int64("channel_id", req.ChannelID).Msg("Failed to add search history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to add channel to search history",
		})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Channel added to search history"})
}

// GetSearchHistory handles GET /api/search-history
func (h *PlaylistHandler) GetSearchHistory(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	history, err := h.playlistService.SearchHistory(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to get search history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to retrieve search history",
		})
		return
	}

	c.JSON(http.StatusOK, SearchHistoryResponse{Success: true, Playlist: history})
}

// ClearSearchHistory handles POST /api/search-history/clear
func (h *PlaylistHandler) ClearSearchHistory(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.playlistService.ClearSearchHistory(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to clear search history",
		})
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Search history cleared"})
}

// SetupPlaylistRoutes registers playlist and search history routes
func SetupPlaylistRoutes(apiGroup *gin.RouterGroup, playlistService *playlist.Service) {
	handler := NewPlaylistHandler(playlistService)

	apiGroup.GET("/playlists", handler.ListPlaylists)
	apiGroup.POST("/playlists", handler.SavePlaylists)
	apiGroup.GET("/playlists/:id/channels", handler.GetPlaylistChannels)

	apiGroup.POST("/search-history/add", handler.AddSearchHistory)
	apiGroup.GET("/search-history", handler.GetSearchHistory)
	apiGroup.POST("/search-history/clear", handler.ClearSearchHistory)
}
